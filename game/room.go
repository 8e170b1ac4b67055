package game

import (
	"strings"
	"time"
)

// Status is the lifecycle stage of a room.
type Status string

const (
	StatusWaiting Status = "waiting"
	StatusPlaying Status = "playing"
	StatusEnded   Status = "ended"
)

// Player is one member of a room. ID is durable across reconnects while
// ConnectionID follows whichever socket the player is currently using.
type Player struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	ConnectionID string  `json:"-"`
	IsHost       bool    `json:"isHost"`
	Card         *Card   `json:"cardMatrix,omitempty"`
	Marked       CellSet `json:"markedIndices"`
}

// Room is the authoritative state of one game session.
type Room struct {
	ID               string
	HostConnectionID string
	Status           Status
	NumbersDrawn     []int
	CurrentNumber    int // 0 until the first draw
	Pattern          CellSet
	Winners          []string
	Players          []Player
	CreatedAt        time.Time
	ExpiresAt        time.Time
}

// NewRoom creates a waiting room whose only member is the host. The host
// holds no card.
func NewRoom(id string, host Player, pattern CellSet, now time.Time, ttl time.Duration) *Room {
	host.IsHost = true
	host.Card = nil
	host.Marked = FreeBaseline
	return &Room{
		ID:               id,
		HostConnectionID: host.ConnectionID,
		Status:           StatusWaiting,
		Pattern:          pattern,
		Players:          []Player{host},
		CreatedAt:        now,
		ExpiresAt:        now.Add(ttl),
	}
}

// Clone returns a deep copy safe to hand across goroutines.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	c := *r
	c.NumbersDrawn = append([]int(nil), r.NumbersDrawn...)
	c.Winners = append([]string(nil), r.Winners...)
	c.Players = make([]Player, len(r.Players))
	for i, p := range r.Players {
		if p.Card != nil {
			card := *p.Card
			p.Card = &card
		}
		c.Players[i] = p
	}
	return &c
}

func (r *Room) Host() *Player {
	for i := range r.Players {
		if r.Players[i].IsHost {
			return &r.Players[i]
		}
	}
	return nil
}

func (r *Room) PlayerByID(id string) *Player {
	if id == "" {
		return nil
	}
	for i := range r.Players {
		if r.Players[i].ID == id {
			return &r.Players[i]
		}
	}
	return nil
}

func (r *Room) PlayerByConnection(connID string) *Player {
	if connID == "" {
		return nil
	}
	for i := range r.Players {
		if r.Players[i].ConnectionID == connID {
			return &r.Players[i]
		}
	}
	return nil
}

// ResolveIdentity finds a prior player by durable id, falling back to name.
func (r *Room) ResolveIdentity(id, name string) *Player {
	if p := r.PlayerByID(id); p != nil {
		return p
	}
	return r.PlayerByName(name)
}

// PlayerByName matches names ignoring case. Names are unique per room.
func (r *Room) PlayerByName(name string) *Player {
	if name == "" {
		return nil
	}
	for i := range r.Players {
		if strings.EqualFold(r.Players[i].Name, name) {
			return &r.Players[i]
		}
	}
	return nil
}

func (r *Room) IsHostConnection(connID string) bool {
	return connID != "" && r.HostConnectionID == connID
}

// Contestants counts players other than the host.
func (r *Room) Contestants() int {
	n := 0
	for _, p := range r.Players {
		if !p.IsHost {
			n++
		}
	}
	return n
}

func (r *Room) HasDrawn(n int) bool {
	for _, d := range r.NumbersDrawn {
		if d == n {
			return true
		}
	}
	return false
}

// Rank is the 1-based win position of name, or 0.
func (r *Room) Rank(name string) int {
	for i, w := range r.Winners {
		if w == name {
			return i + 1
		}
	}
	return 0
}

// Progress maps each contestant's id to the pattern cells they still need.
func (r *Room) Progress() map[string]int {
	out := make(map[string]int, len(r.Players))
	for _, p := range r.Players {
		if p.IsHost {
			continue
		}
		out[p.ID] = Remaining(p.Marked, r.Pattern)
	}
	return out
}
