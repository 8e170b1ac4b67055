package services

import (
	"sync"

	"github.com/bellapacxx/live-bingo/protocol"
	"github.com/bellapacxx/live-bingo/utils/logger"
)

// Conn is one live transport connection.
type Conn interface {
	ID() string
	// Send queues a frame without blocking. False means it was dropped.
	Send(frame []byte) bool
	// Close flushes queued frames and hangs up.
	Close()
}

// Binding ties a connection to a room. An empty PlayerID marks a spectator.
type Binding struct {
	RoomID   string
	PlayerID string
}

func (b Binding) Spectator() bool { return b.PlayerID == "" }

// Broadcaster is the slice of the hub the room logic talks to.
type Broadcaster interface {
	Bind(connID string, b Binding)
	Unbind(connID string)
	Binding(connID string) (Binding, bool)
	Connections(roomID string) []string
	EmitToRoom(roomID string, ev protocol.ServerEvent)
	EmitTo(connID string, ev protocol.ServerEvent)
	EvictRoom(roomID string)
	Disconnect(connID string)
}

// Hub owns every connection and the room channels they are subscribed to.
type Hub struct {
	mu       sync.RWMutex
	conns    map[string]Conn
	rooms    map[string]map[string]struct{}
	bindings map[string]Binding
}

func NewHub() *Hub {
	return &Hub{
		conns:    make(map[string]Conn),
		rooms:    make(map[string]map[string]struct{}),
		bindings: make(map[string]Binding),
	}
}

func (h *Hub) Register(c Conn) {
	h.mu.Lock()
	if old, ok := h.conns[c.ID()]; ok && old != c {
		old.Close()
	}
	h.conns[c.ID()] = c
	total := len(h.conns)
	h.mu.Unlock()

	logger.Debugf("[Hub] connection %s registered (total=%d)", c.ID(), total)
}

// Unregister forgets the connection and returns what it was bound to.
func (h *Hub) Unregister(connID string) (Binding, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, ok := h.bindings[connID]
	h.unbindLocked(connID)
	delete(h.conns, connID)
	return b, ok
}

// Bind subscribes the connection to b.RoomID and records who it is. Any
// earlier binding of the same connection is replaced.
func (h *Hub) Bind(connID string, b Binding) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.unbindLocked(connID)
	h.bindings[connID] = b
	h.subscribeLocked(b.RoomID, connID)
}

func (h *Hub) Unbind(connID string) {
	if connID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unbindLocked(connID)
}

func (h *Hub) Binding(connID string) (Binding, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	b, ok := h.bindings[connID]
	return b, ok
}

func (h *Hub) Connections(roomID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, 0, len(h.rooms[roomID]))
	for id := range h.rooms[roomID] {
		out = append(out, id)
	}
	return out
}

func (h *Hub) EmitToRoom(roomID string, ev protocol.ServerEvent) {
	b, err := ev.Encode()
	if err != nil {
		logger.Errorf("[Room %s] encode %s: %v", roomID, ev.Type, err)
		return
	}

	h.mu.RLock()
	targets := make([]Conn, 0, len(h.rooms[roomID]))
	for id := range h.rooms[roomID] {
		if c, ok := h.conns[id]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.Send(b) {
			logger.Warnf("[Room %s] dropped %s for %s", roomID, ev.Type, c.ID())
		}
	}
}

func (h *Hub) EmitTo(connID string, ev protocol.ServerEvent) {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		logger.Debugf("[Hub] %s for %s: connection gone", ev.Type, connID)
		return
	}

	b, err := ev.Encode()
	if err != nil {
		logger.Errorf("[Hub] encode %s: %v", ev.Type, err)
		return
	}
	if !c.Send(b) {
		logger.Warnf("[Hub] dropped %s for %s", ev.Type, connID)
	}
}

// EvictRoom drops every subscription and binding for the room. The
// connections themselves stay open.
func (h *Hub) EvictRoom(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id := range h.rooms[roomID] {
		if b, ok := h.bindings[id]; ok && b.RoomID == roomID {
			delete(h.bindings, id)
		}
	}
	delete(h.rooms, roomID)
}

// Disconnect force-closes a connection after its queued frames are sent.
func (h *Hub) Disconnect(connID string) {
	h.mu.Lock()
	c, ok := h.conns[connID]
	h.unbindLocked(connID)
	h.mu.Unlock()

	if ok {
		c.Close()
	}
}

func (h *Hub) subscribeLocked(roomID, connID string) {
	set, ok := h.rooms[roomID]
	if !ok {
		set = make(map[string]struct{})
		h.rooms[roomID] = set
	}
	set[connID] = struct{}{}
}

func (h *Hub) unsubscribeLocked(roomID, connID string) {
	set, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(h.rooms, roomID)
	}
}

func (h *Hub) unbindLocked(connID string) {
	if b, ok := h.bindings[connID]; ok {
		h.unsubscribeLocked(b.RoomID, connID)
		delete(h.bindings, connID)
	}
}
