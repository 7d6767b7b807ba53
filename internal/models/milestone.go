package models

import (
	"time"

	"gorm.io/gorm"
)

type Milestone struct {
	gorm.Model

	Slug        string `gorm:"uniqueIndex;not null"`
	Name        string `gorm:"not null"`
	Description string
	ProjectID   uint       `gorm:"not null;index"`
	Status      string     `gorm:"not null"` // "backlog", "todo", "in_progress", "done", "cancelled"
	DueAt       *time.Time

	// Relationships
	Project   Project             `gorm:"foreignKey:ProjectID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Assignees []MilestoneAssignee `gorm:"foreignKey:MilestoneID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
