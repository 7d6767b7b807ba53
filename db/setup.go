package db

import (
	"github.com/milepost-dev/milepost/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func ConnectDatabase(dsn string) error {
	var err error

	// TranslateError turns driver unique-violation errors into
	// gorm.ErrDuplicatedKey, which the slug retry loop and the
	// membership upsert paths rely on.
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})

	if err != nil {
		return err
	}

	return nil
}

func MigrateDatabase() error {
	models := []interface{}{
		&models.User{},
		&models.Team{},
		&models.TeamMembership{},
		&models.Project{},
		&models.ProjectMembership{},
		&models.Invitation{},
		&models.Milestone{},
		&models.MilestoneAssignee{},
		&models.Notification{},
	}

	migrator := DB.Migrator()

	for _, model := range models {
		if !migrator.HasTable(model) {
			if err := DB.AutoMigrate(model); err != nil {
				return err
			}
		}
	}

	return nil
}
