package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/bellapacxx/live-bingo/game"
	"github.com/bellapacxx/live-bingo/protocol"
	"github.com/bellapacxx/live-bingo/store"
	"github.com/bellapacxx/live-bingo/utils/logger"
	"github.com/gin-gonic/gin"
)

// RoomController serves read-only room lookups for the landing page.
type RoomController struct {
	store store.Store
}

func NewRoomController(st store.Store) *RoomController {
	return &RoomController{store: st}
}

type roomSummary struct {
	RoomID        string                `json:"roomId"`
	Status        game.Status           `json:"status"`
	Players       []protocol.PlayerView `json:"players"`
	NumbersCalled int                   `json:"numbersCalled"`
	Winners       []string              `json:"winners"`
	CanJoin       bool                  `json:"canJoin"`
	ExpiresAt     time.Time             `json:"expiresAt"`
}

// GetRoom returns a summary of the room so a client can decide between
// joining and spectating before opening a socket.
func (rc *RoomController) GetRoom(c *gin.Context) {
	code := protocol.NormalizeRoomID(c.Param("code"))

	room, err := rc.store.Get(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, game.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
			return
		}
		logger.Errorf("[Room %s] lookup failed: %v", code, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, roomSummary{
		RoomID:        room.ID,
		Status:        room.Status,
		Players:       protocol.Roster(room),
		NumbersCalled: len(room.NumbersDrawn),
		Winners:       append([]string{}, room.Winners...),
		CanJoin:       room.Status == game.StatusWaiting,
		ExpiresAt:     room.ExpiresAt,
	})
}
