package types

import "time"

type UserResponse struct {
	ID        uint   `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type TeamResponse struct {
	ID           uint   `json:"id"`
	Slug         string `json:"slug"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	ProfileImage string `json:"profile_image,omitempty"`
}

type ProjectResponse struct {
	ID          uint   `json:"id"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description"`
	TeamID      uint   `json:"team_id"`
}

type MemberResponse struct {
	UserID    uint   `json:"user_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

type InvitationResponse struct {
	ID           uint      `json:"id"`
	ResourceType string    `json:"resource_type"`
	ResourceID   uint      `json:"resource_id"`
	InviteeEmail string    `json:"invitee_email"`
	ExpiresAt    time.Time `json:"expires_at"`
	Consumed     bool      `json:"consumed"`
	Revoked      bool      `json:"revoked"`
}

type MilestoneResponse struct {
	ID          uint       `json:"id"`
	Slug        string     `json:"slug"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	ProjectID   uint       `json:"project_id"`
	Status      string     `json:"status"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	DueStatus   string     `json:"due_status"`
	AssigneeIDs []uint     `json:"assignee_ids"`
}
