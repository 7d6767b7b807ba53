package services

import (
	"errors"
	"strings"

	"github.com/milepost-dev/milepost/internal/apperr"
	"github.com/milepost-dev/milepost/internal/models"
	"github.com/milepost-dev/milepost/internal/permissions"
	"github.com/milepost-dev/milepost/internal/slugs"
	"github.com/milepost-dev/milepost/internal/types"
	"gorm.io/gorm"
)

// MembershipService owns team and project membership records. Membership
// rows are only ever created or mutated through these operations, so the
// invariants (every team and project keeps at least one owner, personal
// teams keep exactly one member) hold everywhere else by construction.
type MembershipService struct {
	db *gorm.DB
}

func NewMembershipService(db *gorm.DB) *MembershipService {
	return &MembershipService{db: db}
}

// CreateUser creates the user row together with their personal team and
// its sole owner membership in one transaction.
func (s *MembershipService) CreateUser(firstName, lastName, email, passwordHash string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user := models.User{
		FirstName:    firstName,
		LastName:     lastName,
		Email:        email,
		PasswordHash: passwordHash,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict("email already exists")
			}
			return apperr.Internal(err)
		}

		return createTeamTx(tx, user.FullName(), types.TeamTypePersonal, user.ID, nil)
	})

	if err != nil {
		return nil, err
	}

	return &user, nil
}

// CreateTeam creates a team and an owner membership for the creator.
func (s *MembershipService) CreateTeam(name, teamType string, creatorUserID uint) (*models.Team, error) {
	if teamType != types.TeamTypePersonal && teamType != types.TeamTypeTeam {
		return nil, apperr.BadRequest("invalid team type %q", teamType)
	}

	var team *models.Team

	err := s.db.Transaction(func(tx *gorm.DB) error {
		return createTeamTx(tx, name, teamType, creatorUserID, &team)
	})

	if err != nil {
		return nil, err
	}

	return team, nil
}

func createTeamTx(tx *gorm.DB, name, teamType string, creatorUserID uint, out **models.Team) error {
	var team models.Team

	err := slugs.CreateWithSlug(name, func(slug string) error {
		team = models.Team{Slug: slug, Name: name, Type: teamType}
		return tx.Create(&team).Error
	})

	if err != nil {
		return apperr.Internal(err)
	}

	membership := models.TeamMembership{
		UserID: creatorUserID,
		TeamID: team.ID,
		Role:   types.RoleOwner,
	}

	if err := tx.Create(&membership).Error; err != nil {
		return apperr.Internal(err)
	}

	if out != nil {
		*out = &team
	}

	return nil
}

// CreateProject creates a project under a team plus an owner membership
// for the creator. The creator's team role is deliberately not checked:
// access control happens at the project level on read and mutation.
func (s *MembershipService) CreateProject(name, description string, teamID, creatorUserID uint) (*models.Project, error) {
	var team models.Team

	if err := s.db.First(&team, teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("team not found")
		}
		return nil, apperr.Internal(err)
	}

	var project models.Project

	err := s.db.Transaction(func(tx *gorm.DB) error {
		err := slugs.CreateWithSlug(name, func(slug string) error {
			project = models.Project{
				Slug:        slug,
				Name:        name,
				Description: description,
				TeamID:      team.ID,
			}
			return tx.Create(&project).Error
		})

		if err != nil {
			return apperr.Internal(err)
		}

		membership := models.ProjectMembership{
			UserID:    creatorUserID,
			TeamID:    team.ID,
			ProjectID: project.ID,
			Role:      types.RoleOwner,
		}

		return tx.Create(&membership).Error
	})

	if err != nil {
		return nil, err
	}

	return &project, nil
}

// TeamRole returns the caller's role on a team, or "" for non-members.
func (s *MembershipService) TeamRole(teamID, userID uint) (string, error) {
	return teamRole(s.db, teamID, userID)
}

// ProjectRole returns the caller's role on a project, or "" for non-members.
func (s *MembershipService) ProjectRole(projectID, userID uint) (string, error) {
	return projectRole(s.db, projectID, userID)
}

func teamRole(tx *gorm.DB, teamID, userID uint) (string, error) {
	var membership models.TeamMembership

	err := tx.Where("team_id = ? AND user_id = ?", teamID, userID).First(&membership).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", apperr.Internal(err)
	}

	return membership.Role, nil
}

func projectRole(tx *gorm.DB, projectID, userID uint) (string, error) {
	var membership models.ProjectMembership

	err := tx.Where("project_id = ? AND user_id = ?", projectID, userID).First(&membership).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", apperr.Internal(err)
	}

	return membership.Role, nil
}

// SetTeamMemberRole changes a member's team role. Only owners may manage
// the roster, and the change must not strip the team of its last owner.
func (s *MembershipService) SetTeamMemberRole(teamID, userID uint, newRole string, actingUserID uint) error {
	if newRole != types.RoleOwner && newRole != types.RoleMember {
		return apperr.BadRequest("invalid team role %q", newRole)
	}

	actingRole, err := s.TeamRole(teamID, actingUserID)

	if err != nil {
		return err
	}

	if !permissions.Can(actingRole, permissions.ActionManage, permissions.ResourceTeam) {
		return apperr.Forbidden("insufficient role to manage team members")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var membership models.TeamMembership

		if err := tx.Where("team_id = ? AND user_id = ?", teamID, userID).First(&membership).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("team membership not found")
			}
			return apperr.Internal(err)
		}

		if membership.Role == newRole {
			return nil
		}

		if membership.Role == types.RoleOwner {
			owners, err := countTeamOwners(tx, teamID)
			if err != nil {
				return err
			}
			if owners <= 1 {
				return apperr.Conflict("cannot demote the last owner of a team")
			}
		}

		return tx.Model(&membership).Update("role", newRole).Error
	})
}

// RemoveTeamMember removes a member from a team, refusing to remove the
// sole owner.
func (s *MembershipService) RemoveTeamMember(teamID, userID uint, actingUserID uint) error {
	actingRole, err := s.TeamRole(teamID, actingUserID)

	if err != nil {
		return err
	}

	if !permissions.Can(actingRole, permissions.ActionManage, permissions.ResourceTeam) {
		return apperr.Forbidden("insufficient role to manage team members")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var membership models.TeamMembership

		if err := tx.Where("team_id = ? AND user_id = ?", teamID, userID).First(&membership).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("team membership not found")
			}
			return apperr.Internal(err)
		}

		if membership.Role == types.RoleOwner {
			owners, err := countTeamOwners(tx, teamID)
			if err != nil {
				return err
			}
			if owners <= 1 {
				return apperr.Conflict("cannot remove the last owner of a team")
			}
		}

		return tx.Delete(&membership).Error
	})
}

// SetProjectMemberRole changes a member's project role. Admins may manage
// members but may neither touch an owner nor hand out the owner role; both
// directions of an owner change require an acting owner.
func (s *MembershipService) SetProjectMemberRole(projectID, userID uint, newRole string, actingUserID uint) error {
	if newRole != types.RoleOwner && newRole != types.RoleAdmin && newRole != types.RoleMember {
		return apperr.BadRequest("invalid project role %q", newRole)
	}

	actingRole, err := s.ProjectRole(projectID, actingUserID)

	if err != nil {
		return err
	}

	if !permissions.Can(actingRole, permissions.ActionManage, permissions.ResourceProject) {
		return apperr.Forbidden("insufficient role to manage project members")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var membership models.ProjectMembership

		if err := tx.Where("project_id = ? AND user_id = ?", projectID, userID).First(&membership).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("project membership not found")
			}
			return apperr.Internal(err)
		}

		if (membership.Role == types.RoleOwner || newRole == types.RoleOwner) && actingRole != types.RoleOwner {
			return apperr.Forbidden("only an owner may assign or revoke the owner role")
		}

		if membership.Role == newRole {
			return nil
		}

		if membership.Role == types.RoleOwner {
			owners, err := countProjectOwners(tx, projectID)
			if err != nil {
				return err
			}
			if owners <= 1 {
				return apperr.Conflict("cannot demote the last owner of a project")
			}
		}

		return tx.Model(&membership).Update("role", newRole).Error
	})
}

// RemoveProjectMember removes a member from a project. Admins may not
// remove owners, the last owner can never be removed, and in the
// degenerate ownerless state the last admin cannot remove themselves.
func (s *MembershipService) RemoveProjectMember(projectID, userID uint, actingUserID uint) error {
	actingRole, err := s.ProjectRole(projectID, actingUserID)

	if err != nil {
		return err
	}

	if !permissions.Can(actingRole, permissions.ActionManage, permissions.ResourceProject) {
		return apperr.Forbidden("insufficient role to manage project members")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var membership models.ProjectMembership

		if err := tx.Where("project_id = ? AND user_id = ?", projectID, userID).First(&membership).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("project membership not found")
			}
			return apperr.Internal(err)
		}

		if membership.Role == types.RoleOwner {
			if actingRole != types.RoleOwner {
				return apperr.Forbidden("only an owner may remove an owner")
			}

			owners, err := countProjectOwners(tx, projectID)
			if err != nil {
				return err
			}
			if owners <= 1 {
				return apperr.Conflict("cannot remove the last owner of a project")
			}
		}

		// Should not occur while the owner invariant holds, but checked
		// in case a project ever ends up ownerless.
		if membership.Role == types.RoleAdmin && userID == actingUserID {
			owners, err := countProjectOwners(tx, projectID)
			if err != nil {
				return err
			}
			if owners == 0 {
				var admins int64
				if err := tx.Model(&models.ProjectMembership{}).
					Where("project_id = ? AND role = ?", projectID, types.RoleAdmin).
					Count(&admins).Error; err != nil {
					return apperr.Internal(err)
				}
				if admins <= 1 {
					return apperr.Conflict("cannot remove the last admin of an ownerless project")
				}
			}
		}

		return tx.Delete(&membership).Error
	})
}

func countTeamOwners(tx *gorm.DB, teamID uint) (int64, error) {
	var owners int64

	err := tx.Model(&models.TeamMembership{}).
		Where("team_id = ? AND role = ?", teamID, types.RoleOwner).
		Count(&owners).Error

	if err != nil {
		return 0, apperr.Internal(err)
	}

	return owners, nil
}

func countProjectOwners(tx *gorm.DB, projectID uint) (int64, error) {
	var owners int64

	err := tx.Model(&models.ProjectMembership{}).
		Where("project_id = ? AND role = ?", projectID, types.RoleOwner).
		Count(&owners).Error

	if err != nil {
		return 0, apperr.Internal(err)
	}

	return owners, nil
}

// ListTeamMembers returns the team roster, optionally filtered by a
// case-insensitive substring over name and email.
func (s *MembershipService) ListTeamMembers(teamID, callerUserID uint, filter string) ([]types.MemberResponse, error) {
	callerRole, err := s.TeamRole(teamID, callerUserID)

	if err != nil {
		return nil, err
	}

	if !permissions.Can(callerRole, permissions.ActionRead, permissions.ResourceTeam) {
		return nil, apperr.Forbidden("insufficient role to list team members")
	}

	query := s.db.Model(&models.TeamMembership{}).
		Joins("JOIN users ON users.id = team_memberships.user_id").
		Where("team_memberships.team_id = ?", teamID).
		Select("team_memberships.user_id, users.first_name, users.last_name, users.email, team_memberships.role")

	return listMembers(query, filter)
}

// ListProjectMembers is the project counterpart of ListTeamMembers.
func (s *MembershipService) ListProjectMembers(projectID, callerUserID uint, filter string) ([]types.MemberResponse, error) {
	callerRole, err := s.ProjectRole(projectID, callerUserID)

	if err != nil {
		return nil, err
	}

	if !permissions.Can(callerRole, permissions.ActionRead, permissions.ResourceProject) {
		return nil, apperr.Forbidden("insufficient role to list project members")
	}

	query := s.db.Model(&models.ProjectMembership{}).
		Joins("JOIN users ON users.id = project_memberships.user_id").
		Where("project_memberships.project_id = ?", projectID).
		Select("project_memberships.user_id, users.first_name, users.last_name, users.email, project_memberships.role")

	return listMembers(query, filter)
}

func listMembers(query *gorm.DB, filter string) ([]types.MemberResponse, error) {
	if filter != "" {
		like := "%" + strings.ToLower(filter) + "%"
		query = query.Where(
			"LOWER(users.first_name || ' ' || users.last_name) LIKE ? OR LOWER(users.email) LIKE ?",
			like, like,
		)
	}

	var members []types.MemberResponse

	if err := query.Scan(&members).Error; err != nil {
		return nil, apperr.Internal(err)
	}

	return members, nil
}
