package config

import (
	"fmt"

	"github.com/bellapacxx/live-bingo/models"
	"github.com/bellapacxx/live-bingo/utils/logger"

	"gorm.io/gorm"
)

// Migrate creates or updates the room tables.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Room{},
		&models.Player{},
		&models.Mark{},
		&models.Draw{},
		&models.Winner{},
	)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Infof("✅ Database migration completed")
	return nil
}
