package services

import (
	"fmt"
	"testing"

	"github.com/milepost-dev/milepost/internal/models"
	"github.com/milepost-dev/milepost/internal/types"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A single connection keeps every session on the same in-memory
	// database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.User{},
		&models.Team{},
		&models.TeamMembership{},
		&models.Project{},
		&models.ProjectMembership{},
		&models.Invitation{},
		&models.Milestone{},
		&models.MilestoneAssignee{},
		&models.Notification{},
	)
	require.NoError(t, err)

	return db
}

var testUserSeq int

func createTestUser(t *testing.T, svc *MembershipService, email string) *models.User {
	t.Helper()

	testUserSeq++

	user, err := svc.CreateUser(fmt.Sprintf("User%d", testUserSeq), "Test", email, "hash")
	require.NoError(t, err)

	return user
}

func createTestProject(t *testing.T, svc *MembershipService, owner *models.User) *models.Project {
	t.Helper()

	team, err := svc.CreateTeam("Test Team", types.TeamTypeTeam, owner.ID)
	require.NoError(t, err)

	project, err := svc.CreateProject("Test Project", "", team.ID, owner.ID)
	require.NoError(t, err)

	return project
}

func addProjectMember(t *testing.T, db *gorm.DB, project *models.Project, user *models.User, role string) {
	t.Helper()

	membership := models.ProjectMembership{
		UserID:    user.ID,
		TeamID:    project.TeamID,
		ProjectID: project.ID,
		Role:      role,
	}
	require.NoError(t, db.Create(&membership).Error)
}
