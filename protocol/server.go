package protocol

import (
	"encoding/json"

	"github.com/bellapacxx/live-bingo/game"
)

const (
	TypeRoomCreated          = "room_created"
	TypeRoomJoined           = "room_joined"
	TypeSpectatorJoined      = "spectator_joined"
	TypeUpdatePlayerList     = "update_player_list"
	TypeGameStarted          = "game_started"
	TypeNumberRolled         = "number_rolled"
	TypeUpdatePlayerProgress = "update_player_progress"
	TypePlayerWon            = "player_won"
	TypeFalseBingo           = "false_bingo"
	TypeMarkSuccess          = "mark_success"
	TypeCardShuffled         = "card_shuffled"
	TypePlayerLeft           = "player_left"
	TypeRoomDestroyed        = "room_destroyed"
	TypeGameReset            = "game_reset"
	TypeActionError          = "action_error"
	TypeSessionExpired       = "session_expired"
	TypePlayerKicked         = "player_kicked"
	TypePatternUpdated       = "pattern_updated"
	TypeGameOver             = "game_over"
	TypeError                = "error"
)

// ServerEvent is one outbound frame before encoding.
type ServerEvent struct {
	Type string
	Data any
}

// Encode renders the event as an envelope.
func (e ServerEvent) Encode() ([]byte, error) {
	return json.Marshal(Envelope[any]{V: Version, Type: e.Type, Data: e.Data})
}

// PlayerView is how a player appears in rosters sent to the whole room.
// It never carries a card.
type PlayerView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsHost    bool   `json:"isHost"`
	Remaining *int   `json:"remaining,omitempty"`
}

// Snapshot is the authoritative room state replayed on (re)join.
type Snapshot struct {
	Status         game.Status    `json:"status"`
	NumbersDrawn   []int          `json:"numbersDrawn"`
	CurrentNumber  *int           `json:"currentNumber"`
	WinningPattern game.CellSet   `json:"winningPattern"`
	Winners        []string       `json:"winners"`
	Progress       map[string]int `json:"progress,omitempty"`
}

// Roster lists the room's players without cards. Remaining counts are
// included once a game is under way.
func Roster(r *game.Room) []PlayerView {
	out := make([]PlayerView, 0, len(r.Players))
	for _, p := range r.Players {
		v := PlayerView{ID: p.ID, Name: p.Name, IsHost: p.IsHost}
		if !p.IsHost && r.Status != game.StatusWaiting {
			n := game.Remaining(p.Marked, r.Pattern)
			v.Remaining = &n
		}
		out = append(out, v)
	}
	return out
}

// SnapshotOf captures r. Per-player progress is only filled in for the host.
func SnapshotOf(r *game.Room, forHost bool) Snapshot {
	s := Snapshot{
		Status:         r.Status,
		NumbersDrawn:   append([]int{}, r.NumbersDrawn...),
		WinningPattern: r.Pattern,
		Winners:        append([]string{}, r.Winners...),
	}
	if r.CurrentNumber != 0 {
		n := r.CurrentNumber
		s.CurrentNumber = &n
	}
	if forHost {
		s.Progress = r.Progress()
	}
	return s
}

type RoomCreatedData struct {
	RoomID string      `json:"roomId"`
	Player game.Player `json:"player"`
}

type RoomJoinedData struct {
	RoomID  string       `json:"roomId"`
	Player  game.Player  `json:"player"`
	Players []PlayerView `json:"players"`
	State   Snapshot     `json:"state"`
}

type SpectatorJoinedData struct {
	RoomID  string       `json:"roomId"`
	Message string       `json:"message"`
	Players []PlayerView `json:"players"`
	State   Snapshot     `json:"state"`
}

type PlayerListData struct {
	Players []PlayerView `json:"players"`
}

type GameStartedData struct {
	Status         game.Status  `json:"status"`
	Winners        []string     `json:"winners"`
	WinningPattern game.CellSet `json:"winningPattern"`
}

type NumberRolledData struct {
	Number  int   `json:"number"`
	History []int `json:"history"`
}

type PlayerProgressData struct {
	PlayerID  string `json:"playerId"`
	Remaining int    `json:"remaining"`
}

type PlayerWonData struct {
	Winner  string   `json:"winner"`
	Winners []string `json:"winners"`
	Rank    int      `json:"rank"`
}

type FalseBingoData struct {
	Name string `json:"name"`
}

type MarkSuccessData struct {
	CellIndex int `json:"cellIndex"`
}

type CardShuffledData struct {
	Matrix game.Card `json:"matrix"`
}

type PlayerLeftData struct {
	PlayerID string `json:"playerId"`
	Message  string `json:"message"`
}

// GameResetData goes to each connection separately. Player is the
// receiver's own record with its new card; spectators get CanJoin instead.
type GameResetData struct {
	Message string       `json:"message"`
	Players []PlayerView `json:"players"`
	Player  *game.Player `json:"player,omitempty"`
	CanJoin bool         `json:"canJoin,omitempty"`
}

type PatternUpdatedData struct {
	Pattern game.CellSet `json:"pattern"`
}

type GameOverData struct {
	Winners []string `json:"winners"`
}

// MessageData carries the notice-style events (errors, teardown, kick).
type MessageData struct {
	Message string `json:"message"`
}

func Message(eventType, msg string) ServerEvent {
	return ServerEvent{Type: eventType, Data: MessageData{Message: msg}}
}
