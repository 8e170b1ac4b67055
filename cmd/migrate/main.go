package main

import (
	"github.com/bellapacxx/live-bingo/config"
	"github.com/bellapacxx/live-bingo/utils/logger"
)

func main() {
	cfg := config.Load()
	defer logger.Sync()

	if cfg.DatabaseURL == "" {
		logger.Fatalf("[FATAL] DATABASE_URL is required in .env or environment")
	}
	db, err := config.SetupDatabase(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("[FATAL] %v", err)
	}
	if err := config.Migrate(db); err != nil {
		logger.Fatalf("[FATAL] %v", err)
	}
	logger.Infof("✅ Database migration completed successfully")
}
