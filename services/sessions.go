package services

import (
	"sync"
	"time"
)

type graceTimer struct {
	roomID string
	connID string
	timer  *time.Timer
}

// Sessions holds the pending evictions of players whose connection dropped.
// A rejoin within the grace period cancels the eviction.
type Sessions struct {
	grace time.Duration

	mu     sync.Mutex
	timers map[string]*graceTimer // by player id
}

func NewSessions(grace time.Duration) *Sessions {
	return &Sessions{grace: grace, timers: make(map[string]*graceTimer)}
}

// Schedule runs evict after the grace period unless cancelled first. A
// second schedule for the same player replaces the first.
func (s *Sessions) Schedule(roomID, playerID, connID string, evict func()) {
	gt := &graceTimer{roomID: roomID, connID: connID}

	s.mu.Lock()
	if old, ok := s.timers[playerID]; ok {
		old.timer.Stop()
	}
	s.timers[playerID] = gt
	gt.timer = time.AfterFunc(s.grace, func() {
		s.mu.Lock()
		current := s.timers[playerID] == gt
		if current {
			delete(s.timers, playerID)
		}
		s.mu.Unlock()

		if current {
			evict()
		}
	})
	s.mu.Unlock()
}

// Cancel stops the player's pending eviction, reporting whether one existed.
func (s *Sessions) Cancel(playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	gt, ok := s.timers[playerID]
	if !ok {
		return false
	}
	gt.timer.Stop()
	delete(s.timers, playerID)
	return true
}

// CancelRoom stops every pending eviction in the room.
func (s *Sessions) CancelRoom(roomID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, gt := range s.timers {
		if gt.roomID == roomID {
			gt.timer.Stop()
			delete(s.timers, id)
			n++
		}
	}
	return n
}
