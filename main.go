package main

import (
	"context"
	"time"

	"github.com/bellapacxx/live-bingo/config"
	"github.com/bellapacxx/live-bingo/controllers"
	"github.com/bellapacxx/live-bingo/routes"
	"github.com/bellapacxx/live-bingo/services"
	"github.com/bellapacxx/live-bingo/store"
	"github.com/bellapacxx/live-bingo/utils/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// setupStore picks postgres when DATABASE_URL is set and memory otherwise.
func setupStore(cfg config.Config) store.Store {
	if cfg.DatabaseURL == "" {
		logger.Infof("[Init] DATABASE_URL not set, keeping rooms in memory")
		return store.NewMemory()
	}

	db, err := config.SetupDatabase(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("[FATAL] %v", err)
	}
	if err := config.Migrate(db); err != nil {
		logger.Fatalf("[FATAL] %v", err)
	}
	return store.NewPostgres(db)
}

// setupRouter initializes Gin routes and middleware
func setupRouter(cfg config.Config, st store.Store, hub *services.Hub, rooms *services.RoomService) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	ws := services.NewWSHandler(hub, rooms, cfg.AllowedOrigins, cfg.MessageRate, cfg.MessageBurst)
	routes.SetupRoutes(r, controllers.NewRoomController(st), ws.Handle)
	return r
}

func main() {
	cfg := config.Load()
	if !logger.SetLevel(cfg.LogLevel) {
		logger.Warnf("[Init] Unknown LOG_LEVEL %q, keeping info", cfg.LogLevel)
	}
	defer logger.Sync()

	st := setupStore(cfg)
	hub := services.NewHub()
	rooms := services.NewRoomService(st, hub, services.RoomOptions{
		GracePeriod:     cfg.GracePeriod,
		RoomTTL:         cfg.RoomTTL,
		DrawRevealDelay: cfg.DrawRevealDelay,
		EndOnFirstWin:   cfg.EndOnFirstWin,
	})
	go rooms.RunJanitor(context.Background(), cfg.JanitorInterval)

	router := setupRouter(cfg, st, hub, rooms)

	logger.Infof("🚀 Bingo server starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Fatalf("[FATAL] Failed to start server: %v", err)
	}
}
