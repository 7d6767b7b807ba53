package services

import (
	"testing"
	"time"

	"github.com/milepost-dev/milepost/internal/apperr"
	"github.com/milepost-dev/milepost/internal/models"
	"github.com/milepost-dev/milepost/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMilestoneDefaultsAndSlug(t *testing.T) {
	db := newTestDB(t)
	members := NewMembershipService(db)
	milestones := NewMilestoneService(db)

	owner := createTestUser(t, members, "alice@example.com")
	project := createTestProject(t, members, owner)

	milestone, err := milestones.CreateMilestone(CreateMilestoneInput{
		Name:      "Launch Checklist",
		ProjectID: project.ID,
	}, owner.ID)
	require.NoError(t, err)

	assert.Equal(t, types.MilestoneStatusBacklog, milestone.Status)
	assert.Contains(t, milestone.Slug, "launch-checklist-")
	assert.Nil(t, milestone.DueAt)
}

func TestCreateMilestoneRequiresManage(t *testing.T) {
	db := newTestDB(t)
	members := NewMembershipService(db)
	milestones := NewMilestoneService(db)

	owner := createTestUser(t, members, "alice@example.com")
	member := createTestUser(t, members, "bob@example.com")
	project := createTestProject(t, members, owner)
	addProjectMember(t, db, project, member, types.RoleMember)

	_, err := milestones.CreateMilestone(CreateMilestoneInput{
		Name:      "Nope",
		ProjectID: project.ID,
	}, member.ID)
	requireKind(t, err, apperr.KindForbidden)

	admin := createTestUser(t, members, "carol@example.com")
	addProjectMember(t, db, project, admin, types.RoleAdmin)

	_, err = milestones.CreateMilestone(CreateMilestoneInput{
		Name:      "Admin Can",
		ProjectID: project.ID,
	}, admin.ID)
	require.NoError(t, err)
}

func TestCreateMilestoneInvalidStatus(t *testing.T) {
	db := newTestDB(t)
	members := NewMembershipService(db)
	milestones := NewMilestoneService(db)

	owner := createTestUser(t, members, "alice@example.com")
	project := createTestProject(t, members, owner)

	_, err := milestones.CreateMilestone(CreateMilestoneInput{
		Name:      "Bad",
		ProjectID: project.ID,
		Status:    "archived",
	}, owner.ID)
	requireKind(t, err, apperr.KindBadRequest)
}

func TestCreateMilestoneRejectsNonMemberAssignees(t *testing.T) {
	db := newTestDB(t)
	members := NewMembershipService(db)
	milestones := NewMilestoneService(db)

	owner := createTestUser(t, members, "alice@example.com")
	outsider := createTestUser(t, members, "dora@example.com")
	project := createTestProject(t, members, owner)

	_, err := milestones.CreateMilestone(CreateMilestoneInput{
		Name:        "Assigned",
		ProjectID:   project.ID,
		AssigneeIDs: []uint{owner.ID, outsider.ID},
	}, owner.ID)
	requireKind(t, err, apperr.KindBadRequest)

	appErr, ok := err.(*apperr.Error)
	require.True(t, ok)
	assert.Equal(t, []uint{outsider.ID}, appErr.Meta["invalid_user_ids"])

	// The whole call failed, nothing was created.
	var count int64
	require.NoError(t, db.Model(&models.Milestone{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestCreateMilestoneDedupesAssignees(t *testing.T) {
	db := newTestDB(t)
	members := NewMembershipService(db)
	milestones := NewMilestoneService(db)

	owner := createTestUser(t, members, "alice@example.com")
	project := createTestProject(t, members, owner)

	milestone, err := milestones.CreateMilestone(CreateMilestoneInput{
		Name:        "Deduped",
		ProjectID:   project.ID,
		AssigneeIDs: []uint{owner.ID, owner.ID, owner.ID},
	}, owner.ID)
	require.NoError(t, err)

	ids, err := milestones.AssigneeIDs(milestone.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{owner.ID}, ids)
}

func TestChangeStatusOpenToMembers(t *testing.T) {
	db := newTestDB(t)
	members := NewMembershipService(db)
	milestones := NewMilestoneService(db)

	owner := createTestUser(t, members, "alice@example.com")
	member := createTestUser(t, members, "bob@example.com")
	project := createTestProject(t, members, owner)
	addProjectMember(t, db, project, member, types.RoleMember)

	milestone, err := milestones.CreateMilestone(CreateMilestoneInput{
		Name:      "Board Card",
		ProjectID: project.ID,
	}, owner.ID)
	require.NoError(t, err)

	_, err = milestones.ChangeStatus(milestone.ID, types.MilestoneStatusInProgress, member.ID)
	require.NoError(t, err)

	var stored models.Milestone
	require.NoError(t, db.First(&stored, milestone.ID).Error)
	assert.Equal(t, types.MilestoneStatusInProgress, stored.Status)

	// Any valid transition is accepted, including backwards and into
	// cancelled.
	_, err = milestones.ChangeStatus(milestone.ID, types.MilestoneStatusBacklog, member.ID)
	require.NoError(t, err)
	_, err = milestones.ChangeStatus(milestone.ID, types.MilestoneStatusCancelled, member.ID)
	require.NoError(t, err)

	_, err = milestones.ChangeStatus(milestone.ID, "bogus", member.ID)
	requireKind(t, err, apperr.KindBadRequest)

	outsider := createTestUser(t, members, "eve@example.com")
	_, err = milestones.ChangeStatus(milestone.ID, types.MilestoneStatusTodo, outsider.ID)
	requireKind(t, err, apperr.KindForbidden)
}

func TestEditMilestoneRequiresManage(t *testing.T) {
	db := newTestDB(t)
	members := NewMembershipService(db)
	milestones := NewMilestoneService(db)

	owner := createTestUser(t, members, "alice@example.com")
	member := createTestUser(t, members, "bob@example.com")
	project := createTestProject(t, members, owner)
	addProjectMember(t, db, project, member, types.RoleMember)

	milestone, err := milestones.CreateMilestone(CreateMilestoneInput{
		Name:      "Original",
		ProjectID: project.ID,
	}, owner.ID)
	require.NoError(t, err)

	name := "Renamed"
	_, err = milestones.EditMilestone(milestone.ID, EditMilestoneInput{Name: &name}, member.ID)
	requireKind(t, err, apperr.KindForbidden)

	_, err = milestones.EditMilestone(milestone.ID, EditMilestoneInput{Name: &name}, owner.ID)
	require.NoError(t, err)

	var stored models.Milestone
	require.NoError(t, db.First(&stored, milestone.ID).Error)
	assert.Equal(t, "Renamed", stored.Name)
}

func TestEditMilestoneDueDateSetAndClear(t *testing.T) {
	db := newTestDB(t)
	members := NewMembershipService(db)
	milestones := NewMilestoneService(db)

	owner := createTestUser(t, members, "alice@example.com")
	project := createTestProject(t, members, owner)

	milestone, err := milestones.CreateMilestone(CreateMilestoneInput{
		Name:      "Dated",
		ProjectID: project.ID,
	}, owner.ID)
	require.NoError(t, err)

	due := time.Date(2030, 2, 1, 12, 0, 0, 0, time.UTC)
	_, err = milestones.EditMilestone(milestone.ID, EditMilestoneInput{DueAt: &due}, owner.ID)
	require.NoError(t, err)

	var stored models.Milestone
	require.NoError(t, db.First(&stored, milestone.ID).Error)
	require.NotNil(t, stored.DueAt)

	_, err = milestones.EditMilestone(milestone.ID, EditMilestoneInput{ClearDueAt: true}, owner.ID)
	require.NoError(t, err)

	require.NoError(t, db.First(&stored, milestone.ID).Error)
	assert.Nil(t, stored.DueAt)
}

func TestEditMilestoneReplacesAssigneeSet(t *testing.T) {
	db := newTestDB(t)
	members := NewMembershipService(db)
	milestones := NewMilestoneService(db)

	owner := createTestUser(t, members, "alice@example.com")
	bob := createTestUser(t, members, "bob@example.com")
	carol := createTestUser(t, members, "carol@example.com")
	project := createTestProject(t, members, owner)
	addProjectMember(t, db, project, bob, types.RoleMember)
	addProjectMember(t, db, project, carol, types.RoleMember)

	milestone, err := milestones.CreateMilestone(CreateMilestoneInput{
		Name:        "Reassigned",
		ProjectID:   project.ID,
		AssigneeIDs: []uint{owner.ID, bob.ID},
	}, owner.ID)
	require.NoError(t, err)

	desired := []uint{bob.ID, carol.ID}
	_, err = milestones.EditMilestone(milestone.ID, EditMilestoneInput{AssigneeIDs: &desired}, owner.ID)
	require.NoError(t, err)

	ids, err := milestones.AssigneeIDs(milestone.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, desired, ids)

	// Replacing with an empty set clears every assignee.
	empty := []uint{}
	_, err = milestones.EditMilestone(milestone.ID, EditMilestoneInput{AssigneeIDs: &empty}, owner.ID)
	require.NoError(t, err)

	ids, err = milestones.AssigneeIDs(milestone.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestAddAndRemoveAssigneeIdempotent(t *testing.T) {
	db := newTestDB(t)
	members := NewMembershipService(db)
	milestones := NewMilestoneService(db)

	owner := createTestUser(t, members, "alice@example.com")
	bob := createTestUser(t, members, "bob@example.com")
	project := createTestProject(t, members, owner)
	addProjectMember(t, db, project, bob, types.RoleMember)

	milestone, err := milestones.CreateMilestone(CreateMilestoneInput{
		Name:      "Assignable",
		ProjectID: project.ID,
	}, owner.ID)
	require.NoError(t, err)

	require.NoError(t, milestones.AddAssignee(milestone.ID, bob.ID, owner.ID))
	require.NoError(t, milestones.AddAssignee(milestone.ID, bob.ID, owner.ID))

	var count int64
	require.NoError(t, db.Model(&models.MilestoneAssignee{}).
		Where("milestone_id = ?", milestone.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	outsider := createTestUser(t, members, "eve@example.com")
	err = milestones.AddAssignee(milestone.ID, outsider.ID, owner.ID)
	requireKind(t, err, apperr.KindBadRequest)

	require.NoError(t, milestones.RemoveAssignee(milestone.ID, bob.ID, owner.ID))
	require.NoError(t, milestones.RemoveAssignee(milestone.ID, bob.ID, owner.ID))

	require.NoError(t, db.Model(&models.MilestoneAssignee{}).
		Where("milestone_id = ?", milestone.ID).Count(&count).Error)
	assert.Equal(t, int64(0), count)

	// Assignee management is manage-gated.
	err = milestones.AddAssignee(milestone.ID, bob.ID, bob.ID)
	requireKind(t, err, apperr.KindForbidden)
}

func TestDeleteMilestone(t *testing.T) {
	db := newTestDB(t)
	members := NewMembershipService(db)
	milestones := NewMilestoneService(db)

	owner := createTestUser(t, members, "alice@example.com")
	member := createTestUser(t, members, "bob@example.com")
	admin := createTestUser(t, members, "carol@example.com")
	project := createTestProject(t, members, owner)
	addProjectMember(t, db, project, member, types.RoleMember)
	addProjectMember(t, db, project, admin, types.RoleAdmin)

	milestone, err := milestones.CreateMilestone(CreateMilestoneInput{
		Name:      "Doomed",
		ProjectID: project.ID,
	}, owner.ID)
	require.NoError(t, err)

	err = milestones.DeleteMilestone(milestone.ID, member.ID)
	requireKind(t, err, apperr.KindForbidden)

	// Admins hold manage and may delete milestones.
	require.NoError(t, milestones.DeleteMilestone(milestone.ID, admin.ID))

	err = milestones.DeleteMilestone(milestone.ID, admin.ID)
	requireKind(t, err, apperr.KindNotFound)
}

func TestGetAndListMilestonesRequireRead(t *testing.T) {
	db := newTestDB(t)
	members := NewMembershipService(db)
	milestones := NewMilestoneService(db)

	owner := createTestUser(t, members, "alice@example.com")
	outsider := createTestUser(t, members, "eve@example.com")
	project := createTestProject(t, members, owner)

	milestone, err := milestones.CreateMilestone(CreateMilestoneInput{
		Name:        "Visible",
		ProjectID:   project.ID,
		AssigneeIDs: []uint{owner.ID},
	}, owner.ID)
	require.NoError(t, err)

	got, ids, err := milestones.GetMilestone(milestone.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, milestone.ID, got.ID)
	assert.Equal(t, []uint{owner.ID}, ids)

	_, _, err = milestones.GetMilestone(milestone.ID, outsider.ID)
	requireKind(t, err, apperr.KindForbidden)

	list, err := milestones.ListMilestones(project.ID, owner.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = milestones.ListMilestones(project.ID, outsider.ID)
	requireKind(t, err, apperr.KindForbidden)
}

func TestStatusRank(t *testing.T) {
	ranks := make([]int, 0, 4)

	for _, status := range []string{
		types.MilestoneStatusBacklog,
		types.MilestoneStatusTodo,
		types.MilestoneStatusInProgress,
		types.MilestoneStatusDone,
	} {
		rank, ok := StatusRank(status)
		require.True(t, ok, status)
		ranks = append(ranks, rank)
	}

	assert.Equal(t, []int{0, 1, 2, 3}, ranks)

	_, ok := StatusRank(types.MilestoneStatusCancelled)
	assert.False(t, ok)
}

func TestDueStatus(t *testing.T) {
	now := time.Date(2030, 2, 1, 9, 30, 0, 0, time.UTC)

	day := func(y int, m time.Month, d int) *time.Time {
		v := time.Date(y, m, d, 23, 0, 0, 0, time.UTC)
		return &v
	}

	assert.Equal(t, types.DueStatusNotDue, DueStatus(nil, now))
	assert.Equal(t, types.DueStatusOverdue, DueStatus(day(2030, 1, 31), now))
	assert.Equal(t, types.DueStatusDue, DueStatus(day(2030, 2, 1), now))
	assert.Equal(t, types.DueStatusDueSoon, DueStatus(day(2030, 2, 8), now))
	assert.Equal(t, types.DueStatusDueSoon, DueStatus(day(2030, 2, 11), now))
	assert.Equal(t, types.DueStatusNotDue, DueStatus(day(2030, 2, 12), now))
	assert.Equal(t, types.DueStatusNotDue, DueStatus(day(2030, 3, 1), now))

	// Time of day never matters, only the calendar day.
	lateToday := time.Date(2030, 2, 1, 0, 5, 0, 0, time.UTC)
	assert.Equal(t, types.DueStatusDue, DueStatus(&lateToday, now))
}
