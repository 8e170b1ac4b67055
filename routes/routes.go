package routes

import (
	"net/http"
	"time"

	"github.com/bellapacxx/live-bingo/controllers"
	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, rooms *controllers.RoomController, ws gin.HandlerFunc) {
	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now()})
	})

	api := r.Group("/api")

	// ----------------------
	// Room routes
	// ----------------------
	api.GET("/rooms/:code", rooms.GetRoom) // Room summary before joining

	// ----------------------
	// Pattern routes
	// ----------------------
	api.GET("/patterns", controllers.ListPatterns) // Preset winning patterns

	// WebSocket game endpoint
	r.GET("/ws", ws)
}
