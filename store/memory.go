package store

import (
	"context"
	"sync"
	"time"

	"github.com/bellapacxx/live-bingo/game"
)

// memoryRoom guards one room so updates to different rooms never contend.
type memoryRoom struct {
	mu   sync.Mutex
	room *game.Room
}

// Memory keeps rooms in process. Used when no DATABASE_URL is configured
// and in tests.
type Memory struct {
	mu    sync.RWMutex
	rooms map[string]*memoryRoom
}

func NewMemory() *Memory {
	return &Memory{rooms: make(map[string]*memoryRoom)}
}

func (m *Memory) entry(code string) (*memoryRoom, error) {
	m.mu.RLock()
	e, ok := m.rooms[code]
	m.mu.RUnlock()
	if !ok {
		return nil, game.ErrRoomNotFound
	}
	return e, nil
}

// update runs fn with the room locked. A room deleted while we waited for
// the lock reads as not found.
func (m *Memory) update(code string, fn func(r *game.Room) error) error {
	e, err := m.entry(code)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.room == nil {
		return game.ErrRoomNotFound
	}
	return fn(e.room)
}

func (m *Memory) Create(ctx context.Context, room *game.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[room.ID]; ok {
		return game.ErrRoomExists
	}
	m.rooms[room.ID] = &memoryRoom{room: room.Clone()}
	return nil
}

func (m *Memory) Get(ctx context.Context, code string) (*game.Room, error) {
	var out *game.Room
	err := m.update(code, func(r *game.Room) error {
		out = r.Clone()
		return nil
	})
	return out, err
}

func (m *Memory) Delete(ctx context.Context, code string) error {
	m.mu.Lock()
	e, ok := m.rooms[code]
	delete(m.rooms, code)
	m.mu.Unlock()
	if !ok {
		return game.ErrRoomNotFound
	}
	e.mu.Lock()
	e.room = nil
	e.mu.Unlock()
	return nil
}

func (m *Memory) AddPlayer(ctx context.Context, code string, p game.Player, when game.Status) error {
	return m.update(code, func(r *game.Room) error {
		if r.Status != when {
			return ErrConflict
		}
		if r.PlayerByName(p.Name) != nil {
			return game.ErrNameTaken
		}
		if p.Card != nil {
			card := *p.Card
			p.Card = &card
		}
		r.Players = append(r.Players, p)
		return nil
	})
}

func (m *Memory) RemovePlayer(ctx context.Context, code, playerID string) error {
	return m.update(code, func(r *game.Room) error {
		for i := range r.Players {
			if r.Players[i].ID == playerID {
				r.Players = append(r.Players[:i], r.Players[i+1:]...)
				return nil
			}
		}
		return game.ErrPlayerNotFound
	})
}

func (m *Memory) BindConnection(ctx context.Context, code, playerID, connID string) error {
	return m.update(code, func(r *game.Room) error {
		p := r.PlayerByID(playerID)
		if p == nil {
			return game.ErrPlayerNotFound
		}
		p.ConnectionID = connID
		if p.IsHost {
			r.HostConnectionID = connID
		}
		return nil
	})
}

func (m *Memory) SetStatus(ctx context.Context, code string, from []game.Status, to game.Status) error {
	return m.update(code, func(r *game.Room) error {
		if !statusIn(r.Status, from) {
			return ErrConflict
		}
		r.Status = to
		return nil
	})
}

func (m *Memory) AssignMissingCards(ctx context.Context, code string, cards map[string]game.Card) error {
	return m.update(code, func(r *game.Room) error {
		for i := range r.Players {
			p := &r.Players[i]
			card, ok := cards[p.ID]
			if !ok || p.Card != nil || p.IsHost {
				continue
			}
			p.Card = &card
			p.Marked = game.FreeBaseline
		}
		return nil
	})
}

func (m *Memory) AppendDraw(ctx context.Context, code string, n int) ([]int, error) {
	var history []int
	err := m.update(code, func(r *game.Room) error {
		if r.Status != game.StatusPlaying || r.HasDrawn(n) {
			return ErrConflict
		}
		r.NumbersDrawn = append(r.NumbersDrawn, n)
		r.CurrentNumber = n
		history = append([]int(nil), r.NumbersDrawn...)
		return nil
	})
	return history, err
}

func (m *Memory) MarkCell(ctx context.Context, code, playerID string, cell, number int) (game.CellSet, bool, error) {
	var (
		marked game.CellSet
		added  bool
	)
	err := m.update(code, func(r *game.Room) error {
		if r.Status != game.StatusPlaying {
			return ErrConflict
		}
		p := r.PlayerByID(playerID)
		if p == nil {
			return game.ErrPlayerNotFound
		}
		if err := checkMark(p.Card, cell, number, r.HasDrawn(number)); err != nil {
			return err
		}
		if !p.Marked.Has(cell) {
			p.Marked = p.Marked.Add(cell)
			added = true
		}
		marked = p.Marked
		return nil
	})
	return marked, added, err
}

func (m *Memory) SetCard(ctx context.Context, code, playerID string, card game.Card, when game.Status) error {
	return m.update(code, func(r *game.Room) error {
		if r.Status != when {
			return ErrConflict
		}
		p := r.PlayerByID(playerID)
		if p == nil {
			return game.ErrPlayerNotFound
		}
		p.Card = &card
		p.Marked = game.FreeBaseline
		return nil
	})
}

func (m *Memory) SetPattern(ctx context.Context, code string, pattern game.CellSet, when game.Status) error {
	return m.update(code, func(r *game.Room) error {
		if r.Status != when {
			return ErrConflict
		}
		r.Pattern = pattern
		return nil
	})
}

func (m *Memory) AddWinner(ctx context.Context, code, name string) ([]string, int, bool, error) {
	var (
		winners []string
		rank    int
		added   bool
	)
	err := m.update(code, func(r *game.Room) error {
		if rank = r.Rank(name); rank == 0 {
			if r.Status != game.StatusPlaying {
				return ErrConflict
			}
			r.Winners = append(r.Winners, name)
			rank = len(r.Winners)
			added = true
		}
		winners = append([]string(nil), r.Winners...)
		return nil
	})
	return winners, rank, added, err
}

func (m *Memory) ResetRound(ctx context.Context, code string, cards map[string]game.Card) error {
	return m.update(code, func(r *game.Room) error {
		if r.Status != game.StatusPlaying && r.Status != game.StatusEnded {
			return ErrConflict
		}
		r.Status = game.StatusWaiting
		r.NumbersDrawn = nil
		r.CurrentNumber = 0
		r.Winners = nil
		for i := range r.Players {
			p := &r.Players[i]
			p.Marked = game.FreeBaseline
			if p.IsHost {
				continue
			}
			if card, ok := cards[p.ID]; ok {
				p.Card = &card
			}
		}
		return nil
	})
}

func (m *Memory) PurgeExpired(ctx context.Context, now time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var purged []string
	for code, e := range m.rooms {
		e.mu.Lock()
		if e.room != nil && !now.Before(e.room.ExpiresAt) {
			e.room = nil
			delete(m.rooms, code)
			purged = append(purged, code)
		}
		e.mu.Unlock()
	}
	return purged, nil
}
