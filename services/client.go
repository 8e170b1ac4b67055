package services

import (
	"context"
	"sync"
	"time"

	"github.com/bellapacxx/live-bingo/protocol"
	"github.com/bellapacxx/live-bingo/utils/logger"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

type Client struct {
	id      string
	conn    *websocket.Conn
	hub     *Hub
	rooms   *RoomService
	limiter *rate.Limiter
	send    chan []byte

	mu     sync.Mutex
	closed bool
	once   sync.Once
}

func NewClient(id string, conn *websocket.Conn, hub *Hub, rooms *RoomService, limiter *rate.Limiter) *Client {
	return &Client{
		id:      id,
		conn:    conn,
		hub:     hub,
		rooms:   rooms,
		limiter: limiter,
		send:    make(chan []byte, sendBuffer),
	}
}

func (c *Client) ID() string { return c.id }

// Send never blocks. A full buffer drops the frame.
func (c *Client) Send(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close stops accepting frames. The write pump drains what is queued and
// then hangs up.
func (c *Client) Close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
	})
}

// Start registers the client and runs its pumps.
func (c *Client) Start() {
	c.hub.Register(c)
	go c.writePump()
	go c.readPump()
}

// --------------------
// Client read/write pumps
// --------------------
func (c *Client) readPump() {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		c.rooms.Disconnect(c.id)
		c.hub.Unregister(c.id)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warnf("[Client %s] read error: %v", c.id, err)
			} else {
				logger.Debugf("[Client %s] disconnected", c.id)
			}
			return
		}

		if c.limiter != nil && !c.limiter.Allow() {
			c.reject("Too many messages, slow down")
			continue
		}

		func(msg []byte) {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("[Client %s] recovered from panic: %v", c.id, r)
					c.reject("Something went wrong, please try again")
				}
			}()

			ev, err := protocol.Decode(msg)
			if err != nil {
				logger.Debugf("[Client %s] invalid message: %v", c.id, err)
				c.reject(err.Error())
				return
			}
			c.rooms.Handle(ctx, c.id, ev)
		}(message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Warnf("[Client %s] write error: %v", c.id, err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) reject(msg string) {
	b, err := protocol.Message(protocol.TypeActionError, msg).Encode()
	if err != nil {
		return
	}
	if !c.Send(b) {
		logger.Warnf("[Client %s] dropped action_error", c.id)
	}
}
