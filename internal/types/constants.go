package types

import (
	"os"
	"strings"
)

const ContextUserKey = "user"

// Team kinds. A personal team is auto-created at signup and keeps exactly
// one member (its owner) for its lifetime.
const (
	TeamTypePersonal = "personal"
	TeamTypeTeam     = "team"
)

// Roles per resource kind.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Milestone statuses. Backlog..Done are totally ordered for board
// navigation; Cancelled sits outside the order and is only entered or
// left by an explicit status set.
const (
	MilestoneStatusBacklog    = "backlog"
	MilestoneStatusTodo       = "todo"
	MilestoneStatusInProgress = "in_progress"
	MilestoneStatusDone       = "done"
	MilestoneStatusCancelled  = "cancelled"
)

// MilestoneStatuses lists every valid status value.
var MilestoneStatuses = []string{
	MilestoneStatusBacklog,
	MilestoneStatusTodo,
	MilestoneStatusInProgress,
	MilestoneStatusDone,
	MilestoneStatusCancelled,
}

func IsValidMilestoneStatus(status string) bool {
	for _, s := range MilestoneStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Invitation resource kinds.
const (
	ResourceTypeTeam    = "team"
	ResourceTypeProject = "project"
)

// Due statuses derived from a milestone's due date; presentation only,
// never persisted.
const (
	DueStatusNotDue  = "not_due"
	DueStatusDueSoon = "due_soon"
	DueStatusDue     = "due"
	DueStatusOverdue = "overdue"
)

// Notification lifecycle.
const (
	NotificationStatusPending = "pending"
	NotificationStatusSent    = "sent"
	NotificationStatusFailed  = "failed"
)

const EventInviteCreated = "invite.created"

var (
	// Default allowed origins for development
	defaultOrigins = []string{
		"http://localhost:3000",
		"http://localhost:5173",
	}

	AllowedOrigins = initAllowedOrigins()
)

func initAllowedOrigins() []string {
	origins := make([]string, len(defaultOrigins))
	copy(origins, defaultOrigins)

	if clientURL := os.Getenv("CLIENT_URL"); clientURL != "" {
		origins = append(origins, clientURL)
	}

	if allowedOrigins := os.Getenv("ALLOWED_ORIGINS"); allowedOrigins != "" {
		envOrigins := strings.Split(allowedOrigins, ",")
		for _, origin := range envOrigins {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}

	return origins
}
