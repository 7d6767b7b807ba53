package models

import "gorm.io/gorm"

type MilestoneAssignee struct {
	gorm.Model

	MilestoneID uint `gorm:"not null;uniqueIndex:idx_milestone_user"`
	UserID      uint `gorm:"not null;uniqueIndex:idx_milestone_user"`

	// Relationships
	Milestone Milestone `gorm:"foreignKey:MilestoneID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
