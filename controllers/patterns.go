package controllers

import (
	"net/http"

	"github.com/bellapacxx/live-bingo/game"
	"github.com/gin-gonic/gin"
)

// ListPatterns returns the preset winning patterns offered when creating a room.
func ListPatterns(c *gin.Context) {
	c.JSON(http.StatusOK, game.Presets())
}
