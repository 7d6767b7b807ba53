package models

import "gorm.io/gorm"

type Team struct {
	gorm.Model

	Slug         string `gorm:"uniqueIndex;not null"`
	Name         string `gorm:"not null"`
	Type         string `gorm:"not null"` // "personal" or "team"
	ProfileImage string

	// Relationships
	TeamMemberships []TeamMembership `gorm:"foreignKey:TeamID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Projects        []Project        `gorm:"foreignKey:TeamID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
