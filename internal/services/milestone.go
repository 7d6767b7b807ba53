package services

import (
	"errors"
	"time"

	"github.com/milepost-dev/milepost/internal/apperr"
	"github.com/milepost-dev/milepost/internal/models"
	"github.com/milepost-dev/milepost/internal/permissions"
	"github.com/milepost-dev/milepost/internal/slugs"
	"github.com/milepost-dev/milepost/internal/types"
	"gorm.io/gorm"
)

// MilestoneService owns the milestone workflow: status moves, the
// assignee set, and creation/edit/delete. Status changes are open to any
// project member; everything else needs manage. Left/right adjacency on
// the board is a client concern, the server accepts any valid status.
type MilestoneService struct {
	db *gorm.DB
}

func NewMilestoneService(db *gorm.DB) *MilestoneService {
	return &MilestoneService{db: db}
}

type CreateMilestoneInput struct {
	Name        string
	Description string
	ProjectID   uint
	Status      string
	AssigneeIDs []uint
	DueAt       *time.Time
}

// CreateMilestone creates a milestone and its assignee rows atomically.
// Every assignee must already be a member of the project; invalid ids
// fail the whole call and are named in the error metadata.
func (s *MilestoneService) CreateMilestone(input CreateMilestoneInput, actingUserID uint) (*models.Milestone, error) {
	role, err := projectRole(s.db, input.ProjectID, actingUserID)

	if err != nil {
		return nil, err
	}

	if !permissions.Can(role, permissions.ActionManage, permissions.ResourceProject) {
		return nil, apperr.Forbidden("insufficient role to create milestones")
	}

	status := input.Status

	if status == "" {
		status = types.MilestoneStatusBacklog
	}

	if !types.IsValidMilestoneStatus(status) {
		return nil, apperr.BadRequest("invalid milestone status %q", status)
	}

	if err := s.validateAssignees(input.ProjectID, input.AssigneeIDs); err != nil {
		return nil, err
	}

	var milestone models.Milestone

	err = s.db.Transaction(func(tx *gorm.DB) error {
		err := slugs.CreateWithSlug(input.Name, func(slug string) error {
			milestone = models.Milestone{
				Slug:        slug,
				Name:        input.Name,
				Description: input.Description,
				ProjectID:   input.ProjectID,
				Status:      status,
				DueAt:       input.DueAt,
			}
			return tx.Create(&milestone).Error
		})

		if err != nil {
			return apperr.Internal(err)
		}

		for _, userID := range dedupe(input.AssigneeIDs) {
			assignee := models.MilestoneAssignee{MilestoneID: milestone.ID, UserID: userID}

			if err := tx.Create(&assignee).Error; err != nil {
				return apperr.Internal(err)
			}
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return &milestone, nil
}

// ChangeStatus moves a milestone to any valid status. Open to every
// project member; no other field is touched.
func (s *MilestoneService) ChangeStatus(milestoneID uint, newStatus string, actingUserID uint) (*models.Milestone, error) {
	if !types.IsValidMilestoneStatus(newStatus) {
		return nil, apperr.BadRequest("invalid milestone status %q", newStatus)
	}

	milestone, role, err := s.loadWithRole(milestoneID, actingUserID)

	if err != nil {
		return nil, err
	}

	if !permissions.Can(role, permissions.ActionUpdate, permissions.ResourceMilestone) {
		return nil, apperr.Forbidden("insufficient role to change milestone status")
	}

	if err := s.db.Model(milestone).Update("status", newStatus).Error; err != nil {
		return nil, apperr.Internal(err)
	}

	return milestone, nil
}

type EditMilestoneInput struct {
	Name        *string
	Description *string
	Status      *string
	DueAt       *time.Time
	ClearDueAt  bool
	// AssigneeIDs, when non-nil, replaces the whole assignee set.
	AssigneeIDs *[]uint
}

// EditMilestone updates milestone fields and, when requested, replaces
// the assignee set by diff inside the same transaction. Requires manage.
func (s *MilestoneService) EditMilestone(milestoneID uint, input EditMilestoneInput, actingUserID uint) (*models.Milestone, error) {
	milestone, role, err := s.loadWithRole(milestoneID, actingUserID)

	if err != nil {
		return nil, err
	}

	if !permissions.Can(role, permissions.ActionManage, permissions.ResourceMilestone) {
		return nil, apperr.Forbidden("insufficient role to edit milestone")
	}

	updates := make(map[string]interface{})

	if input.Name != nil {
		if *input.Name == "" {
			return nil, apperr.BadRequest("milestone name cannot be empty")
		}
		updates["name"] = *input.Name
	}

	if input.Description != nil {
		updates["description"] = *input.Description
	}

	if input.Status != nil {
		if !types.IsValidMilestoneStatus(*input.Status) {
			return nil, apperr.BadRequest("invalid milestone status %q", *input.Status)
		}
		updates["status"] = *input.Status
	}

	if input.ClearDueAt {
		updates["due_at"] = nil
	} else if input.DueAt != nil {
		updates["due_at"] = input.DueAt
	}

	if input.AssigneeIDs != nil {
		if err := s.validateAssignees(milestone.ProjectID, *input.AssigneeIDs); err != nil {
			return nil, err
		}
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(milestone).Updates(updates).Error; err != nil {
				return apperr.Internal(err)
			}
		}

		if input.AssigneeIDs != nil {
			if err := replaceAssignees(tx, milestone.ID, dedupe(*input.AssigneeIDs)); err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return milestone, nil
}

// AddAssignee assigns a project member to the milestone. Assigning an
// already-assigned user is a no-op success.
func (s *MilestoneService) AddAssignee(milestoneID, userID, actingUserID uint) error {
	milestone, role, err := s.loadWithRole(milestoneID, actingUserID)

	if err != nil {
		return err
	}

	if !permissions.Can(role, permissions.ActionManage, permissions.ResourceMilestone) {
		return apperr.Forbidden("insufficient role to manage milestone assignees")
	}

	if err := s.validateAssignees(milestone.ProjectID, []uint{userID}); err != nil {
		return err
	}

	assignee := models.MilestoneAssignee{MilestoneID: milestoneID, UserID: userID}

	if err := s.db.Where(&assignee).FirstOrCreate(&assignee).Error; err != nil {
		return apperr.Internal(err)
	}

	return nil
}

// RemoveAssignee unassigns a user. Removing a non-assigned user is a
// no-op success.
func (s *MilestoneService) RemoveAssignee(milestoneID, userID, actingUserID uint) error {
	_, role, err := s.loadWithRole(milestoneID, actingUserID)

	if err != nil {
		return err
	}

	if !permissions.Can(role, permissions.ActionManage, permissions.ResourceMilestone) {
		return apperr.Forbidden("insufficient role to manage milestone assignees")
	}

	err = s.db.Where("milestone_id = ? AND user_id = ?", milestoneID, userID).
		Delete(&models.MilestoneAssignee{}).Error

	if err != nil {
		return apperr.Internal(err)
	}

	return nil
}

// DeleteMilestone removes a milestone. Gated on manage, so admins may
// delete milestones even though project deletion stays owner-only.
func (s *MilestoneService) DeleteMilestone(milestoneID, actingUserID uint) error {
	milestone, role, err := s.loadWithRole(milestoneID, actingUserID)

	if err != nil {
		return err
	}

	if !permissions.Can(role, permissions.ActionManage, permissions.ResourceMilestone) {
		return apperr.Forbidden("insufficient role to delete milestone")
	}

	if err := s.db.Delete(milestone).Error; err != nil {
		return apperr.Internal(err)
	}

	return nil
}

// GetMilestone returns a milestone with its assignee ids. Requires read.
func (s *MilestoneService) GetMilestone(milestoneID, callerUserID uint) (*models.Milestone, []uint, error) {
	milestone, role, err := s.loadWithRole(milestoneID, callerUserID)

	if err != nil {
		return nil, nil, err
	}

	if !permissions.Can(role, permissions.ActionRead, permissions.ResourceMilestone) {
		return nil, nil, apperr.Forbidden("insufficient role to view milestone")
	}

	assigneeIDs, err := s.AssigneeIDs(milestoneID)

	if err != nil {
		return nil, nil, err
	}

	return milestone, assigneeIDs, nil
}

// ListMilestones returns a project's milestones. Requires read.
func (s *MilestoneService) ListMilestones(projectID, callerUserID uint) ([]models.Milestone, error) {
	role, err := projectRole(s.db, projectID, callerUserID)

	if err != nil {
		return nil, err
	}

	if !permissions.Can(role, permissions.ActionRead, permissions.ResourceMilestone) {
		return nil, apperr.Forbidden("insufficient role to list milestones")
	}

	var milestones []models.Milestone

	err = s.db.Where("project_id = ?", projectID).Order("id").Find(&milestones).Error

	if err != nil {
		return nil, apperr.Internal(err)
	}

	return milestones, nil
}

// AssigneeIDs returns the current assignee user ids of a milestone.
func (s *MilestoneService) AssigneeIDs(milestoneID uint) ([]uint, error) {
	var ids []uint

	err := s.db.Model(&models.MilestoneAssignee{}).
		Where("milestone_id = ?", milestoneID).
		Order("user_id").
		Pluck("user_id", &ids).Error

	if err != nil {
		return nil, apperr.Internal(err)
	}

	return ids, nil
}

func (s *MilestoneService) loadWithRole(milestoneID, userID uint) (*models.Milestone, string, error) {
	var milestone models.Milestone

	if err := s.db.First(&milestone, milestoneID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", apperr.NotFound("milestone not found")
		}
		return nil, "", apperr.Internal(err)
	}

	role, err := projectRole(s.db, milestone.ProjectID, userID)

	if err != nil {
		return nil, "", err
	}

	return &milestone, role, nil
}

// validateAssignees rejects any id without a project membership, naming
// the offenders instead of silently dropping them.
func (s *MilestoneService) validateAssignees(projectID uint, assigneeIDs []uint) error {
	if len(assigneeIDs) == 0 {
		return nil
	}

	ids := dedupe(assigneeIDs)

	var memberIDs []uint

	err := s.db.Model(&models.ProjectMembership{}).
		Where("project_id = ? AND user_id IN ?", projectID, ids).
		Pluck("user_id", &memberIDs).Error

	if err != nil {
		return apperr.Internal(err)
	}

	members := make(map[uint]bool, len(memberIDs))

	for _, id := range memberIDs {
		members[id] = true
	}

	var invalid []uint

	for _, id := range ids {
		if !members[id] {
			invalid = append(invalid, id)
		}
	}

	if len(invalid) > 0 {
		return apperr.BadRequest("assignees are not project members").
			WithMeta("invalid_user_ids", invalid)
	}

	return nil
}

func replaceAssignees(tx *gorm.DB, milestoneID uint, desired []uint) error {
	var current []uint

	err := tx.Model(&models.MilestoneAssignee{}).
		Where("milestone_id = ?", milestoneID).
		Pluck("user_id", &current).Error

	if err != nil {
		return apperr.Internal(err)
	}

	currentSet := make(map[uint]bool, len(current))

	for _, id := range current {
		currentSet[id] = true
	}

	desiredSet := make(map[uint]bool, len(desired))

	for _, id := range desired {
		desiredSet[id] = true

		if !currentSet[id] {
			assignee := models.MilestoneAssignee{MilestoneID: milestoneID, UserID: id}

			if err := tx.Create(&assignee).Error; err != nil {
				return apperr.Internal(err)
			}
		}
	}

	for _, id := range current {
		if !desiredSet[id] {
			err := tx.Where("milestone_id = ? AND user_id = ?", milestoneID, id).
				Delete(&models.MilestoneAssignee{}).Error

			if err != nil {
				return apperr.Internal(err)
			}
		}
	}

	return nil
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))

	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}

	return out
}

// StatusRank gives the board order of the linear statuses. Cancelled has
// no position; it is entered and left only by explicit status set.
func StatusRank(status string) (int, bool) {
	switch status {
	case types.MilestoneStatusBacklog:
		return 0, true
	case types.MilestoneStatusTodo:
		return 1, true
	case types.MilestoneStatusInProgress:
		return 2, true
	case types.MilestoneStatusDone:
		return 3, true
	default:
		return 0, false
	}
}

// DueStatus classifies a due date against now: overdue when the due day
// has passed, due on the day itself, due soon within the next ten whole
// days, otherwise not due. Unset due dates are never due.
func DueStatus(dueAt *time.Time, now time.Time) string {
	if dueAt == nil {
		return types.DueStatusNotDue
	}

	due := startOfDay(*dueAt)
	today := startOfDay(now.In(dueAt.Location()))

	days := int(due.Sub(today).Hours() / 24)

	switch {
	case days < 0:
		return types.DueStatusOverdue
	case days == 0:
		return types.DueStatusDue
	case days <= 10:
		return types.DueStatusDueSoon
	default:
		return types.DueStatusNotDue
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
