package services

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/bellapacxx/live-bingo/game"
	"github.com/bellapacxx/live-bingo/protocol"
	"github.com/bellapacxx/live-bingo/store"
	"github.com/stretchr/testify/require"
)

// fakeConn records every frame the hub sends it.
type fakeConn struct {
	id string

	mu     sync.Mutex
	frames []protocol.Envelope[json.RawMessage]
	closed bool
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(frame []byte) bool {
	var env protocol.Envelope[json.RawMessage]
	if err := json.Unmarshal(frame, &env); err != nil {
		panic(err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.frames = append(f.frames, env)
	return true
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.frames))
	for i, e := range f.frames {
		out[i] = e.Type
	}
	return out
}

func (f *fakeConn) all(typ string) []json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []json.RawMessage
	for _, e := range f.frames {
		if e.Type == typ {
			out = append(out, e.Data)
		}
	}
	return out
}

func (f *fakeConn) count(typ string) int { return len(f.all(typ)) }

func (f *fakeConn) reset() {
	f.mu.Lock()
	f.frames = nil
	f.mu.Unlock()
}

// last decodes the most recent event of type typ into T.
func last[T any](t *testing.T, f *fakeConn, typ string) T {
	t.Helper()
	frames := f.all(typ)
	require.NotEmpty(t, frames, "%s never received %s (got %v)", f.id, typ, f.types())
	var v T
	require.NoError(t, json.Unmarshal(frames[len(frames)-1], &v))
	return v
}

type harness struct {
	t     *testing.T
	ctx   context.Context
	st    *store.Memory
	hub   *Hub
	svc   *RoomService
	conns map[string]*fakeConn
}

func newHarness(t *testing.T, tweak ...func(*RoomOptions)) *harness {
	opts := RoomOptions{
		GracePeriod: 50 * time.Millisecond,
		Rand:        rand.New(rand.NewSource(42)),
	}
	for _, fn := range tweak {
		fn(&opts)
	}
	st := store.NewMemory()
	hub := NewHub()
	return &harness{
		t:     t,
		ctx:   context.Background(),
		st:    st,
		hub:   hub,
		svc:   NewRoomService(st, hub, opts),
		conns: make(map[string]*fakeConn),
	}
}

func (h *harness) conn(id string) *fakeConn {
	if c, ok := h.conns[id]; ok {
		return c
	}
	c := &fakeConn{id: id}
	h.conns[id] = c
	h.hub.Register(c)
	return c
}

// drop simulates the transport closing, the way the read pump does.
func (h *harness) drop(id string) {
	h.svc.Disconnect(id)
	h.hub.Unregister(id)
	h.conns[id].Close()
}

func (h *harness) room(code string) *game.Room {
	h.t.Helper()
	r, err := h.st.Get(h.ctx, code)
	require.NoError(h.t, err)
	return r
}

// createRoom opens a room hosted by connID and returns its code and the host's id.
func (h *harness) createRoom(connID string, pattern ...int) (string, string) {
	h.t.Helper()
	if len(pattern) == 0 {
		pattern = []int{0, 4, 12, 20, 24}
	}
	c := h.conn(connID)
	require.NoError(h.t, h.svc.CreateRoom(h.ctx, connID, "Host", pattern))
	data := last[protocol.RoomCreatedData](h.t, c, protocol.TypeRoomCreated)
	return data.RoomID, data.Player.ID
}

// join adds a player and returns their durable id.
func (h *harness) join(connID, code, name string) string {
	h.t.Helper()
	c := h.conn(connID)
	require.NoError(h.t, h.svc.JoinRoom(h.ctx, connID, code, name, ""))
	data := last[protocol.RoomJoinedData](h.t, c, protocol.TypeRoomJoined)
	return data.Player.ID
}

// callFor draws the number on the player's card at cell directly in the store.
func (h *harness) callFor(code, playerID string, cell int) int {
	h.t.Helper()
	p := h.room(code).PlayerByID(playerID)
	require.NotNil(h.t, p)
	n := p.Card.At(cell)
	if !h.room(code).HasDrawn(n) {
		_, err := h.st.AppendDraw(h.ctx, code, n)
		require.NoError(h.t, err)
	}
	return n
}

// completePattern draws and marks every non-free pattern cell for a player.
func (h *harness) completePattern(code, playerID, connID string) {
	h.t.Helper()
	for _, cell := range h.room(code).Pattern.Indices() {
		if cell == game.FreeCell {
			continue
		}
		n := h.callFor(code, playerID, cell)
		require.NoError(h.t, h.svc.MarkNumber(h.ctx, connID, n, cell))
	}
}
