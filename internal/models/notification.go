package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Notification struct {
	gorm.Model

	Type    string         `gorm:"not null;index"` // e.g. "invite.created"
	Payload datatypes.JSON `gorm:"type:jsonb"`
	Status  string         `gorm:"not null"` // "pending", "sent", "failed"
	Message string
	SentAt  *time.Time
}
