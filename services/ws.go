package services

import (
	"net/http"

	"github.com/bellapacxx/live-bingo/utils/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// WSHandler upgrades GET /ws and attaches a client to the hub.
type WSHandler struct {
	hub      *Hub
	rooms    *RoomService
	upgrader websocket.Upgrader
	rate     rate.Limit
	burst    int
}

// NewWSHandler accepts browser origins from allowed ("*" allows any).
// A non-positive perSecond disables rate limiting.
func NewWSHandler(hub *Hub, rooms *RoomService, allowed []string, perSecond float64, burst int) *WSHandler {
	origins := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		origins[o] = true
	}
	return &WSHandler{
		hub:   hub,
		rooms: rooms,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins["*"] || origins[origin]
			},
		},
		rate:  rate.Limit(perSecond),
		burst: burst,
	}
}

func (h *WSHandler) Handle(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("[WS] upgrade error: %v", err)
		return
	}

	var limiter *rate.Limiter
	if h.rate > 0 {
		limiter = rate.NewLimiter(h.rate, h.burst)
	}
	client := NewClient(uuid.NewString(), conn, h.hub, h.rooms, limiter)
	logger.Infof("[WS] New client %s from %s", client.ID(), c.ClientIP())

	client.Start()
}
