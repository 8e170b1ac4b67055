// Package store persists rooms. Every mutation is a guarded, field-level
// update so concurrent events on the same room never overwrite each other
// with a stale snapshot.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/bellapacxx/live-bingo/game"
)

// ErrConflict means the room was not in the state an update required.
var ErrConflict = errors.New("room state changed")

// Store is the durable room registry.
type Store interface {
	// Create inserts a new room. Returns game.ErrRoomExists if the code is taken.
	Create(ctx context.Context, room *game.Room) error

	// Get returns a copy of the room or game.ErrRoomNotFound.
	Get(ctx context.Context, code string) (*game.Room, error)

	Delete(ctx context.Context, code string) error

	// AddPlayer appends p if the room is currently in status when. Names are
	// unique within a room ignoring case: game.ErrNameTaken otherwise.
	AddPlayer(ctx context.Context, code string, p game.Player, when game.Status) error

	RemovePlayer(ctx context.Context, code, playerID string) error

	// BindConnection points the player (and, for the host, the room's host
	// connection) at connID.
	BindConnection(ctx context.Context, code, playerID, connID string) error

	// SetStatus moves the room to `to` only if its status is one of from.
	SetStatus(ctx context.Context, code string, from []game.Status, to game.Status) error

	// AssignMissingCards deals cards[id] to every listed player still without a card.
	AssignMissingCards(ctx context.Context, code string, cards map[string]game.Card) error

	// AppendDraw records n as the next called number while the room is playing.
	// ErrConflict if n was already drawn or the game is not in progress.
	AppendDraw(ctx context.Context, code string, n int) ([]int, error)

	// MarkCell adds cell to the player's marks while the room is playing,
	// number has been drawn and sits on the player's card at cell. added is
	// false if the cell was already marked. ErrConflict if the room is not
	// playing.
	MarkCell(ctx context.Context, code, playerID string, cell, number int) (marked game.CellSet, added bool, err error)

	// SetCard replaces the player's card and resets marks to the free baseline,
	// provided the room is in status when.
	SetCard(ctx context.Context, code, playerID string, card game.Card, when game.Status) error

	SetPattern(ctx context.Context, code string, pattern game.CellSet, when game.Status) error

	// AddWinner appends name to the winners unless present. rank is the
	// 1-based position of name either way.
	AddWinner(ctx context.Context, code, name string) (winners []string, rank int, added bool, err error)

	// ResetRound returns a playing or ended room to waiting with new cards.
	ResetRound(ctx context.Context, code string, cards map[string]game.Card) error

	// PurgeExpired deletes rooms whose retention window ended before now.
	PurgeExpired(ctx context.Context, now time.Time) ([]string, error)
}

func statusIn(s game.Status, set []game.Status) bool {
	for _, want := range set {
		if s == want {
			return true
		}
	}
	return false
}

// checkMark validates a mark against the card the store currently holds.
func checkMark(card *game.Card, cell, number int, drawn bool) error {
	switch {
	case card == nil:
		return game.ErrHostHasNoCard
	case cell < 0 || cell >= game.CellCount:
		return game.ErrInvalidCell
	case !drawn:
		return game.ErrNotCalled
	case card.At(cell) != number:
		return game.ErrCardMismatch
	}
	return nil
}
