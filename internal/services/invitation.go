package services

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/milepost-dev/milepost/internal/apperr"
	"github.com/milepost-dev/milepost/internal/models"
	"github.com/milepost-dev/milepost/internal/permissions"
	"github.com/milepost-dev/milepost/internal/types"
	"gorm.io/gorm"
)

// Verification failure kinds for invitation tokens. Callers that only
// pre-render a landing page can distinguish these without a database
// round trip.
var (
	ErrTokenMalformed        = errors.New("invitation token malformed")
	ErrTokenSignatureInvalid = errors.New("invitation token signature invalid")
	ErrTokenExpired          = errors.New("invitation token expired")
)

// InviteClaims is the signed payload of an invitation token.
type InviteClaims struct {
	ResourceType string `json:"resource_type"`
	ResourceID   uint   `json:"resource_id"`
	InviteeEmail string `json:"invitee_email"`
	jwt.RegisteredClaims
}

// InvitationService issues and redeems signed invitation tokens. The
// token is verifiable offline (signature and expiry), while consumption
// state lives in the invitations table, keyed by a SHA-256 of the signed
// token so the redeemable string itself is never persisted.
type InvitationService struct {
	db     *gorm.DB
	secret []byte
}

func NewInvitationService(db *gorm.DB, secret []byte) *InvitationService {
	return &InvitationService{db: db, secret: secret}
}

type CreateInvitationResult struct {
	Invitation  *models.Invitation
	SignedToken string
	Events      []Event
}

// CreateInvitation persists an invitation and returns the signed token
// plus the pending invite.created event. Requires manage on the target
// resource; personal teams never take invitations. The event is
// returned, not delivered; delivery is the dispatcher's problem and
// never affects this call's outcome.
func (s *InvitationService) CreateInvitation(resourceType string, resourceID uint, inviteeEmail string, inviterUserID uint, ttlDays int) (*CreateInvitationResult, error) {
	inviteeEmail = strings.ToLower(strings.TrimSpace(inviteeEmail))

	if inviteeEmail == "" {
		return nil, apperr.BadRequest("invitee email is required")
	}

	if ttlDays <= 0 {
		return nil, apperr.BadRequest("invitation ttl must be at least one day")
	}

	resourceName, err := s.authorizeManage(resourceType, resourceID, inviterUserID)

	if err != nil {
		return nil, err
	}

	var inviter models.User

	if err := s.db.First(&inviter, inviterUserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Unauthorised("inviter account not found")
		}
		return nil, apperr.Internal(err)
	}

	expiresAt := time.Now().Add(time.Duration(ttlDays) * 24 * time.Hour)

	claims := InviteClaims{
		ResourceType: resourceType,
		ResourceID:   resourceID,
		InviteeEmail: inviteeEmail,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	signedToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)

	if err != nil {
		return nil, apperr.Internal(err)
	}

	invitation := models.Invitation{
		ResourceType:  resourceType,
		ResourceID:    resourceID,
		InviterUserID: inviterUserID,
		InviteeEmail:  inviteeEmail,
		TokenHash:     hashToken(signedToken),
		ExpiresAt:     expiresAt,
	}

	if err := s.db.Create(&invitation).Error; err != nil {
		return nil, apperr.Internal(err)
	}

	event := Event{
		Type: types.EventInviteCreated,
		Payload: map[string]interface{}{
			"inviter_email": inviter.Email,
			"invitee_name":  inviteeEmail,
			"resource_name": resourceName,
			"token":         signedToken,
			"ttl_days":      ttlDays,
		},
	}

	return &CreateInvitationResult{
		Invitation:  &invitation,
		SignedToken: signedToken,
		Events:      []Event{event},
	}, nil
}

// VerifyToken checks signature and expiry only. Consumption state is a
// separate, database-backed concern so this stays a cheap pure check.
func (s *InvitationService) VerifyToken(signedToken string) (*InviteClaims, error) {
	claims := &InviteClaims{}

	_, err := jwt.ParseWithClaims(signedToken, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenSignatureInvalid
		default:
			return nil, ErrTokenMalformed
		}
	}

	if claims.ResourceType != types.ResourceTypeTeam && claims.ResourceType != types.ResourceTypeProject {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

type AcceptInvitationResult struct {
	ResourceType string
	Role         string
	Team         *models.Team
	Project      *models.Project
}

// AcceptInvitation redeems a token for the accepting user. The accepting
// account's email must match the invitee email; on mismatch the expected
// email is surfaced as error metadata so the caller can prefill signup.
// A second accept by the same user is a no-op success.
func (s *InvitationService) AcceptInvitation(signedToken string, acceptingUserID uint) (*AcceptInvitationResult, error) {
	claims, err := s.VerifyToken(signedToken)

	if err != nil {
		return nil, apperr.BadRequest("invalid or expired invitation token")
	}

	var user models.User

	if err := s.db.First(&user, acceptingUserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Unauthorised("account not found")
		}
		return nil, apperr.Internal(err)
	}

	if !strings.EqualFold(user.Email, claims.InviteeEmail) {
		return nil, apperr.Unauthorised("invitation was issued to a different email").
			WithMeta("email", claims.InviteeEmail)
	}

	result := &AcceptInvitationResult{ResourceType: claims.ResourceType}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var invitation models.Invitation

		if err := tx.Where("token_hash = ?", hashToken(signedToken)).First(&invitation).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.BadRequest("invitation is no longer valid")
			}
			return apperr.Internal(err)
		}

		if invitation.RevokedAt != nil {
			return apperr.BadRequest("invitation has been revoked")
		}

		if invitation.ConsumedAt != nil {
			if invitation.ConsumedByUserID == nil || *invitation.ConsumedByUserID != acceptingUserID {
				return apperr.Conflict("invitation has already been used")
			}
			// Same user retrying a consumed token: fall through and
			// make sure the membership exists.
		} else {
			now := time.Now()
			updates := map[string]interface{}{
				"consumed_at":         &now,
				"consumed_by_user_id": &acceptingUserID,
			}
			if err := tx.Model(&invitation).Updates(updates).Error; err != nil {
				return apperr.Internal(err)
			}
		}

		switch claims.ResourceType {
		case types.ResourceTypeTeam:
			var team models.Team

			if err := tx.First(&team, claims.ResourceID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.NotFound("team not found")
				}
				return apperr.Internal(err)
			}

			// Re-checked here so a stray invitation row can never grow
			// a personal team past its single owner.
			if team.Type == types.TeamTypePersonal {
				return apperr.Conflict("personal teams cannot gain members")
			}

			membership, err := ensureTeamMembership(tx, team.ID, acceptingUserID)

			if err != nil {
				return err
			}

			result.Team = &team
			result.Role = membership.Role
		case types.ResourceTypeProject:
			var project models.Project

			if err := tx.First(&project, claims.ResourceID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.NotFound("project not found")
				}
				return apperr.Internal(err)
			}

			membership, err := ensureProjectMembership(tx, &project, acceptingUserID)

			if err != nil {
				return err
			}

			result.Project = &project
			result.Role = membership.Role
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return result, nil
}

// RevokeInvitation marks an invitation so later accepts fail. Requires
// manage on the invitation's resource.
func (s *InvitationService) RevokeInvitation(invitationID, actingUserID uint) error {
	var invitation models.Invitation

	if err := s.db.First(&invitation, invitationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("invitation not found")
		}
		return apperr.Internal(err)
	}

	if _, err := s.authorizeManage(invitation.ResourceType, invitation.ResourceID, actingUserID); err != nil {
		return err
	}

	if invitation.ConsumedAt != nil {
		return apperr.Conflict("invitation has already been used")
	}

	if invitation.RevokedAt != nil {
		return nil
	}

	now := time.Now()

	if err := s.db.Model(&invitation).Update("revoked_at", &now).Error; err != nil {
		return apperr.Internal(err)
	}

	return nil
}

// ListInvitations returns all invitations for a resource. Requires manage.
func (s *InvitationService) ListInvitations(resourceType string, resourceID, callerUserID uint) ([]models.Invitation, error) {
	if _, err := s.authorizeManage(resourceType, resourceID, callerUserID); err != nil {
		return nil, err
	}

	var invitations []models.Invitation

	err := s.db.Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Order("id").
		Find(&invitations).Error

	if err != nil {
		return nil, apperr.Internal(err)
	}

	return invitations, nil
}

// authorizeManage checks the actor holds manage on the resource and
// returns the resource name for event payloads.
func (s *InvitationService) authorizeManage(resourceType string, resourceID, userID uint) (string, error) {
	switch resourceType {
	case types.ResourceTypeTeam:
		var team models.Team

		if err := s.db.First(&team, resourceID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", apperr.NotFound("team not found")
			}
			return "", apperr.Internal(err)
		}

		// A personal team keeps exactly one member for its lifetime.
		if team.Type == types.TeamTypePersonal {
			return "", apperr.BadRequest("cannot invite members to a personal team")
		}

		role, err := teamRole(s.db, resourceID, userID)
		if err != nil {
			return "", err
		}

		if !permissions.Can(role, permissions.ActionManage, permissions.ResourceTeam) {
			return "", apperr.Forbidden("insufficient role to manage team invitations")
		}

		return team.Name, nil
	case types.ResourceTypeProject:
		var project models.Project

		if err := s.db.First(&project, resourceID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", apperr.NotFound("project not found")
			}
			return "", apperr.Internal(err)
		}

		role, err := projectRole(s.db, resourceID, userID)
		if err != nil {
			return "", err
		}

		if !permissions.Can(role, permissions.ActionManage, permissions.ResourceProject) {
			return "", apperr.Forbidden("insufficient role to manage project invitations")
		}

		return project.Name, nil
	default:
		return "", apperr.BadRequest("invalid resource type %q", resourceType)
	}
}

// ensureTeamMembership makes the accepting user a member of the team. A
// duplicate key on insert means either a concurrent accept won the race
// or a soft-deleted row from an earlier removal still occupies the
// unique index; both resolve to whatever row is there. The insert runs
// in a savepoint so the surrounding transaction survives the conflict.
func ensureTeamMembership(tx *gorm.DB, teamID, userID uint) (*models.TeamMembership, error) {
	membership := models.TeamMembership{UserID: userID, TeamID: teamID}

	err := tx.Transaction(func(tx *gorm.DB) error {
		return tx.Where(&membership).
			Attrs(models.TeamMembership{Role: types.RoleMember}).
			FirstOrCreate(&membership).Error
	})

	if err == nil {
		return &membership, nil
	}

	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, apperr.Internal(err)
	}

	var existing models.TeamMembership

	err = tx.Unscoped().
		Where("team_id = ? AND user_id = ?", teamID, userID).
		First(&existing).Error

	if err != nil {
		return nil, apperr.Internal(err)
	}

	if existing.DeletedAt.Valid {
		updates := map[string]interface{}{"deleted_at": nil, "role": types.RoleMember}

		if err := tx.Unscoped().Model(&existing).Updates(updates).Error; err != nil {
			return nil, apperr.Internal(err)
		}

		existing.DeletedAt = gorm.DeletedAt{}
		existing.Role = types.RoleMember
	}

	return &existing, nil
}

// ensureProjectMembership is the project counterpart of
// ensureTeamMembership.
func ensureProjectMembership(tx *gorm.DB, project *models.Project, userID uint) (*models.ProjectMembership, error) {
	membership := models.ProjectMembership{
		UserID:    userID,
		TeamID:    project.TeamID,
		ProjectID: project.ID,
	}

	err := tx.Transaction(func(tx *gorm.DB) error {
		return tx.Where(&membership).
			Attrs(models.ProjectMembership{Role: types.RoleMember}).
			FirstOrCreate(&membership).Error
	})

	if err == nil {
		return &membership, nil
	}

	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, apperr.Internal(err)
	}

	var existing models.ProjectMembership

	err = tx.Unscoped().
		Where("project_id = ? AND user_id = ?", project.ID, userID).
		First(&existing).Error

	if err != nil {
		return nil, apperr.Internal(err)
	}

	if existing.DeletedAt.Valid {
		updates := map[string]interface{}{"deleted_at": nil, "role": types.RoleMember}

		if err := tx.Unscoped().Model(&existing).Updates(updates).Error; err != nil {
			return nil, apperr.Internal(err)
		}

		existing.DeletedAt = gorm.DeletedAt{}
		existing.Role = types.RoleMember
	}

	return &existing, nil
}

func hashToken(signedToken string) string {
	sum := sha256.Sum256([]byte(signedToken))
	return hex.EncodeToString(sum[:])
}
