package services

import (
	"sort"
	"testing"

	"github.com/bellapacxx/live-bingo/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubBindingsAndBroadcast(t *testing.T) {
	hub := NewHub()
	a, b, c := &fakeConn{id: "a"}, &fakeConn{id: "b"}, &fakeConn{id: "c"}
	for _, conn := range []*fakeConn{a, b, c} {
		hub.Register(conn)
	}

	hub.Bind("a", Binding{RoomID: "R1", PlayerID: "p-a"})
	hub.Bind("b", Binding{RoomID: "R1"})
	hub.Bind("c", Binding{RoomID: "R2", PlayerID: "p-c"})

	ids := hub.Connections("R1")
	sort.Strings(ids)
	assert.Equal(t, []string{"a", "b"}, ids)

	bind, ok := hub.Binding("b")
	require.True(t, ok)
	assert.True(t, bind.Spectator())

	hub.EmitToRoom("R1", protocol.Message(protocol.TypeRoomDestroyed, "bye"))
	assert.Equal(t, 1, a.count(protocol.TypeRoomDestroyed))
	assert.Equal(t, 1, b.count(protocol.TypeRoomDestroyed))
	assert.Zero(t, c.count(protocol.TypeRoomDestroyed))

	hub.EmitTo("c", protocol.Message(protocol.TypeActionError, "nope"))
	assert.Equal(t, []string{protocol.TypeActionError}, c.types())
	hub.EmitTo("missing", protocol.Message(protocol.TypeActionError, "nope"))
}

func TestHubRebindMovesRooms(t *testing.T) {
	hub := NewHub()
	hub.Register(&fakeConn{id: "a"})

	hub.Bind("a", Binding{RoomID: "R1", PlayerID: "p"})
	hub.Bind("a", Binding{RoomID: "R2", PlayerID: "p"})

	assert.Empty(t, hub.Connections("R1"))
	assert.Equal(t, []string{"a"}, hub.Connections("R2"))
}

func TestHubEvictRoomKeepsConnections(t *testing.T) {
	hub := NewHub()
	a := &fakeConn{id: "a"}
	hub.Register(a)
	hub.Bind("a", Binding{RoomID: "R1", PlayerID: "p"})

	hub.EvictRoom("R1")
	_, ok := hub.Binding("a")
	assert.False(t, ok)
	assert.Empty(t, hub.Connections("R1"))
	assert.False(t, a.isClosed())

	hub.EmitTo("a", protocol.Message(protocol.TypeError, "still here"))
	assert.Equal(t, 1, a.count(protocol.TypeError))
}

func TestHubDisconnectAndUnregister(t *testing.T) {
	hub := NewHub()
	a, b := &fakeConn{id: "a"}, &fakeConn{id: "b"}
	hub.Register(a)
	hub.Register(b)
	hub.Bind("a", Binding{RoomID: "R1", PlayerID: "p-a"})
	hub.Bind("b", Binding{RoomID: "R1", PlayerID: "p-b"})

	hub.Disconnect("a")
	assert.True(t, a.isClosed())
	assert.Equal(t, []string{"b"}, hub.Connections("R1"))

	bind, ok := hub.Unregister("b")
	require.True(t, ok)
	assert.Equal(t, "p-b", bind.PlayerID)
	assert.Empty(t, hub.Connections("R1"))

	_, ok = hub.Unregister("b")
	assert.False(t, ok)
}
