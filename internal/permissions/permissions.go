// Package permissions is the single source of truth for authorization
// decisions. Every mutating service operation asks Can before touching
// the database. The rules are a fixed table, not a runtime-built ability
// set, so the whole domain can be enumerated in tests.
package permissions

import "github.com/milepost-dev/milepost/internal/types"

type Action string

const (
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionManage Action = "manage"
	ActionDelete Action = "delete"
)

type ResourceKind string

const (
	ResourceTeam      ResourceKind = "team"
	ResourceProject   ResourceKind = "project"
	ResourceMilestone ResourceKind = "milestone"
)

// Rank returns the total order of roles used for outranking checks.
// Ranks are stable: adding a role must never renumber these.
func Rank(role string) int {
	switch role {
	case types.RoleMember:
		return 1
	case types.RoleAdmin:
		return 2
	case types.RoleOwner:
		return 3
	default:
		return 0
	}
}

// Outranks reports whether role a sits strictly above role b.
func Outranks(a, b string) bool {
	return Rank(a) > Rank(b)
}

// Can answers whether a subject holding role on a resource may perform
// action. An empty role means the caller has no membership and therefore
// no standing. Pure and deterministic.
//
// Notable asymmetries, kept on purpose:
//   - a project admin has manage but is explicitly denied delete;
//   - milestone delete mirrors the project rule (admin denied), while
//     milestone update covers only the status field and is open to every
//     project member.
func Can(role string, action Action, resource ResourceKind) bool {
	if role == "" {
		return false
	}

	switch resource {
	case ResourceTeam:
		switch action {
		case ActionRead:
			return role == types.RoleMember || role == types.RoleOwner
		case ActionUpdate, ActionManage, ActionDelete:
			return role == types.RoleOwner
		}
	case ResourceProject:
		switch action {
		case ActionRead:
			return role == types.RoleMember || role == types.RoleAdmin || role == types.RoleOwner
		case ActionUpdate, ActionManage:
			return role == types.RoleAdmin || role == types.RoleOwner
		case ActionDelete:
			return role == types.RoleOwner
		}
	case ResourceMilestone:
		switch action {
		case ActionRead, ActionUpdate:
			return role == types.RoleMember || role == types.RoleAdmin || role == types.RoleOwner
		case ActionManage:
			return role == types.RoleAdmin || role == types.RoleOwner
		case ActionDelete:
			return role == types.RoleOwner
		}
	}

	return false
}
