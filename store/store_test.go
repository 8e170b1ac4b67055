package store_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bellapacxx/live-bingo/game"
	"github.com/bellapacxx/live-bingo/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

func newCode() string {
	return strings.ToUpper(uuid.NewString()[:6])
}

func card(seed int) game.Card {
	var c game.Card
	for col := 0; col < game.GridSize; col++ {
		for row := 0; row < game.GridSize; row++ {
			c[row][col] = col*game.ColumnBand + row + 1 + seed%10
		}
	}
	c[2][2] = game.FreeSpace
	return c
}

// seedRoom creates a waiting room with a host and two contestants.
func seedRoom(t *testing.T, s store.Store) *game.Room {
	t.Helper()
	ctx := context.Background()
	r := game.NewRoom(newCode(), game.Player{ID: uuid.NewString(), Name: "Host", ConnectionID: "c-host"},
		game.NewCellSet(0, 4, 12, 20, 24), epoch, 24*time.Hour)
	require.NoError(t, s.Create(ctx, r))

	for i, name := range []string{"Alice", "Bob"} {
		c := card(i)
		p := game.Player{ID: uuid.NewString(), Name: name, ConnectionID: "c-" + name, Card: &c, Marked: game.FreeBaseline}
		require.NoError(t, s.AddPlayer(ctx, r.ID, p, game.StatusWaiting))
	}
	got, err := s.Get(ctx, r.ID)
	require.NoError(t, err)
	return got
}

// runStoreContract exercises the behaviour every Store must share.
func runStoreContract(t *testing.T, s store.Store) {
	ctx := context.Background()

	t.Run("CreateAndGet", func(t *testing.T) {
		r := seedRoom(t, s)
		require.Len(t, r.Players, 3)
		assert.Equal(t, game.StatusWaiting, r.Status)
		assert.Equal(t, "c-host", r.HostConnectionID)
		assert.Equal(t, []int{0, 4, 12, 20, 24}, r.Pattern.Indices())

		host := r.Host()
		require.NotNil(t, host)
		assert.Nil(t, host.Card)
		assert.Equal(t, game.FreeBaseline, host.Marked)

		assert.Equal(t, "Alice", r.Players[1].Name)
		require.NotNil(t, r.Players[1].Card)
		assert.Equal(t, card(0), *r.Players[1].Card)
		assert.True(t, r.ExpiresAt.Equal(epoch.Add(24*time.Hour)))
	})

	t.Run("CreateDuplicate", func(t *testing.T) {
		r := seedRoom(t, s)
		dup := game.NewRoom(r.ID, game.Player{ID: uuid.NewString(), Name: "Other"}, game.FreeBaseline, epoch, time.Hour)
		assert.ErrorIs(t, s.Create(ctx, dup), game.ErrRoomExists)
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := s.Get(ctx, "NOPE00")
		assert.ErrorIs(t, err, game.ErrRoomNotFound)
	})

	t.Run("AddPlayerGuarded", func(t *testing.T) {
		r := seedRoom(t, s)
		require.NoError(t, s.SetStatus(ctx, r.ID, []game.Status{game.StatusWaiting}, game.StatusPlaying))

		late := game.Player{ID: uuid.NewString(), Name: "Late", Marked: game.FreeBaseline}
		assert.ErrorIs(t, s.AddPlayer(ctx, r.ID, late, game.StatusWaiting), store.ErrConflict)
		assert.ErrorIs(t, s.AddPlayer(ctx, "NOPE00", late, game.StatusWaiting), game.ErrRoomNotFound)
	})

	t.Run("AddPlayerUniqueName", func(t *testing.T) {
		r := seedRoom(t, s)
		for _, name := range []string{"alice", "BOB", "host"} {
			p := game.Player{ID: uuid.NewString(), Name: name, Marked: game.FreeBaseline}
			assert.ErrorIs(t, s.AddPlayer(ctx, r.ID, p, game.StatusWaiting), game.ErrNameTaken, name)
		}
		carol := game.Player{ID: uuid.NewString(), Name: "Carol", Marked: game.FreeBaseline}
		require.NoError(t, s.AddPlayer(ctx, r.ID, carol, game.StatusWaiting))

		got, err := s.Get(ctx, r.ID)
		require.NoError(t, err)
		assert.Len(t, got.Players, 4)
	})

	t.Run("BindConnection", func(t *testing.T) {
		r := seedRoom(t, s)
		host := r.Host()
		require.NoError(t, s.BindConnection(ctx, r.ID, host.ID, "c-host-2"))
		require.NoError(t, s.BindConnection(ctx, r.ID, r.Players[1].ID, "c-alice-2"))

		got, err := s.Get(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, "c-host-2", got.HostConnectionID)
		assert.Equal(t, "c-alice-2", got.Players[1].ConnectionID)
		assert.ErrorIs(t, s.BindConnection(ctx, r.ID, "ghost", "c"), game.ErrPlayerNotFound)
	})

	t.Run("SetStatusGuard", func(t *testing.T) {
		r := seedRoom(t, s)
		err := s.SetStatus(ctx, r.ID, []game.Status{game.StatusPlaying}, game.StatusEnded)
		assert.ErrorIs(t, err, store.ErrConflict)
		err = s.SetStatus(ctx, "NOPE00", []game.Status{game.StatusWaiting}, game.StatusPlaying)
		assert.ErrorIs(t, err, game.ErrRoomNotFound)
	})

	t.Run("AssignMissingCards", func(t *testing.T) {
		r := seedRoom(t, s)
		nocard := game.Player{ID: uuid.NewString(), Name: "Carol", Marked: game.FreeBaseline}
		require.NoError(t, s.AddPlayer(ctx, r.ID, nocard, game.StatusWaiting))

		cards := map[string]game.Card{
			r.Players[1].ID: card(7),
			nocard.ID:       card(3),
			r.Host().ID:     card(4),
		}
		require.NoError(t, s.AssignMissingCards(ctx, r.ID, cards))

		got, err := s.Get(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, card(0), *got.PlayerByID(r.Players[1].ID).Card, "existing card kept")
		assert.Equal(t, card(3), *got.PlayerByID(nocard.ID).Card)
		assert.Nil(t, got.Host().Card)
	})

	t.Run("AppendDraw", func(t *testing.T) {
		r := seedRoom(t, s)
		_, err := s.AppendDraw(ctx, r.ID, 5)
		assert.ErrorIs(t, err, store.ErrConflict, "not playing yet")

		require.NoError(t, s.SetStatus(ctx, r.ID, []game.Status{game.StatusWaiting}, game.StatusPlaying))
		history, err := s.AppendDraw(ctx, r.ID, 5)
		require.NoError(t, err)
		assert.Equal(t, []int{5}, history)

		history, err = s.AppendDraw(ctx, r.ID, 61)
		require.NoError(t, err)
		assert.Equal(t, []int{5, 61}, history)

		_, err = s.AppendDraw(ctx, r.ID, 5)
		assert.ErrorIs(t, err, store.ErrConflict)

		got, err := s.Get(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, 61, got.CurrentNumber)
		assert.Equal(t, []int{5, 61}, got.NumbersDrawn)
	})

	t.Run("MarkCellGuarded", func(t *testing.T) {
		r := seedRoom(t, s)
		id := r.Players[1].ID // card(0): cell 0 holds 1, cell 1 holds 16

		_, _, err := s.MarkCell(ctx, r.ID, id, 0, 1)
		assert.ErrorIs(t, err, store.ErrConflict, "not playing yet")

		require.NoError(t, s.SetStatus(ctx, r.ID, []game.Status{game.StatusWaiting}, game.StatusPlaying))
		_, _, err = s.MarkCell(ctx, r.ID, id, 0, 1)
		assert.ErrorIs(t, err, game.ErrNotCalled)

		_, err = s.AppendDraw(ctx, r.ID, 1)
		require.NoError(t, err)
		_, _, err = s.MarkCell(ctx, r.ID, id, 1, 1)
		assert.ErrorIs(t, err, game.ErrCardMismatch)
		_, _, err = s.MarkCell(ctx, r.ID, r.Host().ID, 0, 1)
		assert.ErrorIs(t, err, game.ErrHostHasNoCard)

		marked, added, err := s.MarkCell(ctx, r.ID, id, 0, 1)
		require.NoError(t, err)
		assert.True(t, added)
		assert.Equal(t, game.NewCellSet(0, 12), marked)

		marked, added, err = s.MarkCell(ctx, r.ID, id, 0, 1)
		require.NoError(t, err)
		assert.False(t, added)
		assert.Equal(t, game.NewCellSet(0, 12), marked)

		_, _, err = s.MarkCell(ctx, r.ID, "ghost", 0, 1)
		assert.ErrorIs(t, err, game.ErrPlayerNotFound)
	})

	t.Run("MarkCellAfterRestart", func(t *testing.T) {
		r := seedRoom(t, s)
		id := r.Players[1].ID
		require.NoError(t, s.SetStatus(ctx, r.ID, []game.Status{game.StatusWaiting}, game.StatusPlaying))
		_, err := s.AppendDraw(ctx, r.ID, 1)
		require.NoError(t, err)

		// The host restarts after the player read the room but before the mark lands.
		require.NoError(t, s.ResetRound(ctx, r.ID, map[string]game.Card{id: card(0)}))
		_, _, err = s.MarkCell(ctx, r.ID, id, 0, 1)
		assert.ErrorIs(t, err, store.ErrConflict)

		require.NoError(t, s.SetStatus(ctx, r.ID, []game.Status{game.StatusWaiting}, game.StatusPlaying))
		_, _, err = s.MarkCell(ctx, r.ID, id, 0, 1)
		assert.ErrorIs(t, err, game.ErrNotCalled, "draws from the previous round are gone")

		got, err := s.Get(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, game.FreeBaseline, got.PlayerByID(id).Marked)
	})

	t.Run("SetCardAndPattern", func(t *testing.T) {
		r := seedRoom(t, s)
		id := r.Players[2].ID

		require.NoError(t, s.SetCard(ctx, r.ID, id, card(9), game.StatusWaiting))
		require.NoError(t, s.SetPattern(ctx, r.ID, game.NewCellSet(1, 2), game.StatusWaiting))

		got, err := s.Get(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, card(9), *got.PlayerByID(id).Card)
		assert.Equal(t, game.FreeBaseline, got.PlayerByID(id).Marked)
		assert.Equal(t, game.NewCellSet(1, 2), got.Pattern)

		require.NoError(t, s.SetStatus(ctx, r.ID, []game.Status{game.StatusWaiting}, game.StatusPlaying))
		assert.ErrorIs(t, s.SetCard(ctx, r.ID, id, card(1), game.StatusWaiting), store.ErrConflict)
		assert.ErrorIs(t, s.SetPattern(ctx, r.ID, game.NewCellSet(3), game.StatusWaiting), store.ErrConflict)
	})

	t.Run("AddWinnerRanks", func(t *testing.T) {
		r := seedRoom(t, s)
		_, _, _, err := s.AddWinner(ctx, r.ID, "Alice")
		assert.ErrorIs(t, err, store.ErrConflict)

		require.NoError(t, s.SetStatus(ctx, r.ID, []game.Status{game.StatusWaiting}, game.StatusPlaying))
		winners, rank, added, err := s.AddWinner(ctx, r.ID, "Bob")
		require.NoError(t, err)
		assert.Equal(t, []string{"Bob"}, winners)
		assert.Equal(t, 1, rank)
		assert.True(t, added)

		winners, rank, added, err = s.AddWinner(ctx, r.ID, "Alice")
		require.NoError(t, err)
		assert.Equal(t, []string{"Bob", "Alice"}, winners)
		assert.Equal(t, 2, rank)
		assert.True(t, added)

		winners, rank, added, err = s.AddWinner(ctx, r.ID, "Bob")
		require.NoError(t, err)
		assert.Equal(t, []string{"Bob", "Alice"}, winners)
		assert.Equal(t, 1, rank)
		assert.False(t, added)
	})

	t.Run("ResetRound", func(t *testing.T) {
		r := seedRoom(t, s)
		assert.ErrorIs(t, s.ResetRound(ctx, r.ID, nil), store.ErrConflict)

		require.NoError(t, s.SetStatus(ctx, r.ID, []game.Status{game.StatusWaiting}, game.StatusPlaying))
		_, err := s.AppendDraw(ctx, r.ID, 61)
		require.NoError(t, err)
		_, _, err = s.MarkCell(ctx, r.ID, r.Players[1].ID, 4, 61)
		require.NoError(t, err)
		_, _, _, err = s.AddWinner(ctx, r.ID, "Alice")
		require.NoError(t, err)

		cards := map[string]game.Card{r.Players[1].ID: card(5), r.Players[2].ID: card(6)}
		require.NoError(t, s.ResetRound(ctx, r.ID, cards))

		got, err := s.Get(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, game.StatusWaiting, got.Status)
		assert.Empty(t, got.NumbersDrawn)
		assert.Zero(t, got.CurrentNumber)
		assert.Empty(t, got.Winners)
		assert.Equal(t, card(5), *got.Players[1].Card)
		assert.Equal(t, card(6), *got.Players[2].Card)
		for _, p := range got.Players {
			assert.Equal(t, game.FreeBaseline, p.Marked, p.Name)
		}
		assert.Nil(t, got.Host().Card)
	})

	t.Run("RemoveAndDelete", func(t *testing.T) {
		r := seedRoom(t, s)
		require.NoError(t, s.RemovePlayer(ctx, r.ID, r.Players[1].ID))
		assert.ErrorIs(t, s.RemovePlayer(ctx, r.ID, r.Players[1].ID), game.ErrPlayerNotFound)

		got, err := s.Get(ctx, r.ID)
		require.NoError(t, err)
		assert.Len(t, got.Players, 2)

		require.NoError(t, s.Delete(ctx, r.ID))
		assert.ErrorIs(t, s.Delete(ctx, r.ID), game.ErrRoomNotFound)
		_, err = s.Get(ctx, r.ID)
		assert.ErrorIs(t, err, game.ErrRoomNotFound)
	})

	t.Run("PurgeExpired", func(t *testing.T) {
		old := seedRoom(t, s)
		fresh := game.NewRoom(newCode(), game.Player{ID: uuid.NewString(), Name: "Host"}, game.FreeBaseline,
			epoch.Add(48*time.Hour), 24*time.Hour)
		require.NoError(t, s.Create(ctx, fresh))

		purged, err := s.PurgeExpired(ctx, epoch.Add(30*time.Hour))
		require.NoError(t, err)
		assert.Contains(t, purged, old.ID)
		assert.NotContains(t, purged, fresh.ID)

		_, err = s.Get(ctx, old.ID)
		assert.ErrorIs(t, err, game.ErrRoomNotFound)
		_, err = s.Get(ctx, fresh.ID)
		assert.NoError(t, err)
	})

	t.Run("ConcurrentMarksAllPersist", func(t *testing.T) {
		r := seedRoom(t, s)
		require.NoError(t, s.SetStatus(ctx, r.ID, []game.Status{game.StatusWaiting}, game.StatusPlaying))

		cells := []int{0, 1, 2, 3, 4, 5, 6, 7}
		needed := make(map[int]bool)
		for _, p := range r.Players[1:] {
			for _, cell := range cells {
				needed[p.Card.At(cell)] = true
			}
		}
		for n := range needed {
			_, err := s.AppendDraw(ctx, r.ID, n)
			require.NoError(t, err)
		}

		var wg sync.WaitGroup
		errs := make(chan error, 2*len(cells))
		for _, p := range r.Players[1:] {
			for _, cell := range cells {
				wg.Add(1)
				go func(id string, cell, n int) {
					defer wg.Done()
					_, _, err := s.MarkCell(ctx, r.ID, id, cell, n)
					errs <- err
				}(p.ID, cell, p.Card.At(cell))
			}
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}

		got, err := s.Get(ctx, r.ID)
		require.NoError(t, err)
		want := game.NewCellSet(append(cells, game.FreeCell)...)
		for _, p := range got.Players[1:] {
			assert.Equal(t, want, p.Marked, p.Name)
		}
	})

	t.Run("ConcurrentWinnerAddedOnce", func(t *testing.T) {
		r := seedRoom(t, s)
		require.NoError(t, s.SetStatus(ctx, r.ID, []game.Status{game.StatusWaiting}, game.StatusPlaying))

		var (
			wg    sync.WaitGroup
			added atomic.Int32
		)
		errs := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, rank, ok, err := s.AddWinner(ctx, r.ID, "Alice")
				if err == nil && rank != 1 {
					err = fmt.Errorf("rank %d", rank)
				}
				if ok {
					added.Add(1)
				}
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}
		assert.EqualValues(t, 1, added.Load())

		got, err := s.Get(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"Alice"}, got.Winners)
	})

	t.Run("ConcurrentJoinsKeepEveryone", func(t *testing.T) {
		r := seedRoom(t, s)

		var (
			wg    sync.WaitGroup
			taken atomic.Int32
		)
		errs := make(chan error, 15)
		join := func(name string) {
			defer wg.Done()
			p := game.Player{ID: uuid.NewString(), Name: name, Marked: game.FreeBaseline}
			err := s.AddPlayer(ctx, r.ID, p, game.StatusWaiting)
			if errors.Is(err, game.ErrNameTaken) {
				taken.Add(1)
				return
			}
			errs <- err
		}
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go join(fmt.Sprintf("Guest %d", i))
		}
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go join("Dana")
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}
		assert.EqualValues(t, 4, taken.Load(), "only one Dana gets in")

		got, err := s.Get(ctx, r.ID)
		require.NoError(t, err)
		assert.Len(t, got.Players, 3+10+1)
	})
}
