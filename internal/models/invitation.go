package models

import (
	"time"

	"gorm.io/gorm"
)

type Invitation struct {
	gorm.Model

	ResourceType  string `gorm:"not null;index"` // "team" or "project"
	ResourceID    uint   `gorm:"not null;index"`
	InviterUserID uint   `gorm:"not null;index"`
	InviteeEmail  string `gorm:"not null;index"` // stored lowercased

	// SHA-256 of the signed token; the signed token itself is never persisted.
	TokenHash string `gorm:"uniqueIndex;not null"`

	ExpiresAt        time.Time `gorm:"not null"`
	ConsumedAt       *time.Time
	ConsumedByUserID *uint
	RevokedAt        *time.Time

	// Relationships
	Inviter User `gorm:"foreignKey:InviterUserID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
