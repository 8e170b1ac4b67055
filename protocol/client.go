// Package protocol defines the websocket wire format. Every frame is an
// envelope {"v":1,"type":"...","data":{...}}. Client frames decode into a
// closed set of event types; anything else is rejected here and never
// reaches the room logic.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bellapacxx/live-bingo/game"
)

// Version is the only envelope version this server speaks.
const Version = 1

var (
	ErrUnsupportedVersion = errors.New("unsupported protocol version")
	ErrUnknownEvent       = errors.New("unknown event type")
	ErrMalformed          = errors.New("malformed event")
)

// Envelope wraps every frame in both directions.
type Envelope[T any] struct {
	V    int    `json:"v"`
	Type string `json:"type"`
	Data T      `json:"data"`
}

// ClientEvent is implemented only by the event types in this file.
type ClientEvent interface {
	Type() string
	validate() error
}

const (
	TypeCreateRoom     = "create_room"
	TypeJoinRoom       = "join_room"
	TypeRejoinRoom     = "rejoin_room"
	TypeLeaveRoom      = "leave_room"
	TypeStartGame      = "start_game"
	TypeRollNumber     = "roll_number"
	TypeMarkNumber     = "mark_number"
	TypeRequestShuffle = "request_shuffle"
	TypeKickPlayer     = "kick_player"
	TypeUpdatePattern  = "update_pattern"
	TypeClaimBingo     = "claim_bingo"
	TypeRestartGame    = "restart_game"
	TypeEndGame        = "end_game"
)

type CreateRoom struct {
	HostName       string `json:"hostName"`
	WinningPattern []int  `json:"winningPattern"`
}

type JoinRoom struct {
	RoomID     string `json:"roomId"`
	PlayerName string `json:"playerName"`
	PlayerID   string `json:"playerId,omitempty"`
}

// Identity is what a client remembers about itself between connections.
type Identity struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type RejoinRoom struct {
	RoomID string   `json:"roomId"`
	Player Identity `json:"player"`
}

// RoomAction is the payload of events that carry nothing but the room code.
type RoomAction struct {
	RoomID string `json:"roomId"`
}

type LeaveRoom struct{ RoomAction }
type StartGame struct{ RoomAction }
type RollNumber struct{ RoomAction }
type RequestShuffle struct{ RoomAction }
type ClaimBingo struct{ RoomAction }
type RestartGame struct{ RoomAction }
type EndGame struct{ RoomAction }

type MarkNumber struct {
	RoomID    string `json:"roomId"`
	Number    int    `json:"number"`
	CellIndex *int   `json:"cellIndex"`
}

type KickPlayer struct {
	RoomID   string `json:"roomId"`
	TargetID string `json:"targetId"`
}

type UpdatePattern struct {
	RoomID  string `json:"roomId"`
	Pattern []int  `json:"pattern"`
}

func (CreateRoom) Type() string     { return TypeCreateRoom }
func (JoinRoom) Type() string       { return TypeJoinRoom }
func (RejoinRoom) Type() string     { return TypeRejoinRoom }
func (LeaveRoom) Type() string      { return TypeLeaveRoom }
func (StartGame) Type() string      { return TypeStartGame }
func (RollNumber) Type() string     { return TypeRollNumber }
func (MarkNumber) Type() string     { return TypeMarkNumber }
func (RequestShuffle) Type() string { return TypeRequestShuffle }
func (KickPlayer) Type() string     { return TypeKickPlayer }
func (UpdatePattern) Type() string  { return TypeUpdatePattern }
func (ClaimBingo) Type() string     { return TypeClaimBingo }
func (RestartGame) Type() string    { return TypeRestartGame }
func (EndGame) Type() string        { return TypeEndGame }

func (e CreateRoom) validate() error {
	if strings.TrimSpace(e.HostName) == "" {
		return fmt.Errorf("%w: hostName is required", ErrMalformed)
	}
	if len(e.WinningPattern) == 0 {
		return fmt.Errorf("%w: winningPattern is required", ErrMalformed)
	}
	return nil
}

func (e JoinRoom) validate() error {
	if e.RoomID == "" {
		return fmt.Errorf("%w: roomId is required", ErrMalformed)
	}
	if strings.TrimSpace(e.PlayerName) == "" {
		return fmt.Errorf("%w: playerName is required", ErrMalformed)
	}
	return nil
}

func (e RejoinRoom) validate() error {
	if e.RoomID == "" {
		return fmt.Errorf("%w: roomId is required", ErrMalformed)
	}
	if e.Player.ID == "" && e.Player.Name == "" {
		return fmt.Errorf("%w: player id or name is required", ErrMalformed)
	}
	return nil
}

func (RoomAction) validate() error { return nil }

func (e MarkNumber) validate() error {
	if e.Number < 1 || e.Number > game.MaxNumber {
		return fmt.Errorf("%w: number must be between 1 and %d", ErrMalformed, game.MaxNumber)
	}
	if e.CellIndex == nil || *e.CellIndex < 0 || *e.CellIndex >= game.CellCount {
		return fmt.Errorf("%w: cellIndex must be between 0 and %d", ErrMalformed, game.CellCount-1)
	}
	return nil
}

func (e KickPlayer) validate() error {
	if e.TargetID == "" {
		return fmt.Errorf("%w: targetId is required", ErrMalformed)
	}
	return nil
}

func (e UpdatePattern) validate() error {
	if len(e.Pattern) == 0 {
		return fmt.Errorf("%w: pattern is required", ErrMalformed)
	}
	return nil
}

// NormalizeRoomID turns user-typed codes into their stored form.
func NormalizeRoomID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// Decode parses and validates one client frame.
func Decode(frame []byte) (ClientEvent, error) {
	var env Envelope[json.RawMessage]
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.V != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, env.V)
	}

	var (
		ev  ClientEvent
		err error
	)
	switch env.Type {
	case TypeCreateRoom:
		ev, err = decodeAs[CreateRoom](env.Data)
	case TypeJoinRoom:
		ev, err = decodeAs[JoinRoom](env.Data)
	case TypeRejoinRoom:
		ev, err = decodeAs[RejoinRoom](env.Data)
	case TypeLeaveRoom:
		ev, err = decodeAs[LeaveRoom](env.Data)
	case TypeStartGame:
		ev, err = decodeAs[StartGame](env.Data)
	case TypeRollNumber:
		ev, err = decodeAs[RollNumber](env.Data)
	case TypeMarkNumber:
		ev, err = decodeAs[MarkNumber](env.Data)
	case TypeRequestShuffle:
		ev, err = decodeAs[RequestShuffle](env.Data)
	case TypeKickPlayer:
		ev, err = decodeAs[KickPlayer](env.Data)
	case TypeUpdatePattern:
		ev, err = decodeAs[UpdatePattern](env.Data)
	case TypeClaimBingo:
		ev, err = decodeAs[ClaimBingo](env.Data)
	case TypeRestartGame:
		ev, err = decodeAs[RestartGame](env.Data)
	case TypeEndGame:
		ev, err = decodeAs[EndGame](env.Data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}
	if err != nil {
		return nil, err
	}

	switch e := ev.(type) {
	case CreateRoom:
		e.HostName = strings.TrimSpace(e.HostName)
		ev = e
	case JoinRoom:
		e.RoomID = NormalizeRoomID(e.RoomID)
		e.PlayerName = strings.TrimSpace(e.PlayerName)
		ev = e
	case RejoinRoom:
		e.RoomID = NormalizeRoomID(e.RoomID)
		e.Player.Name = strings.TrimSpace(e.Player.Name)
		ev = e
	}

	if err := ev.validate(); err != nil {
		return nil, err
	}
	return ev, nil
}

// decodeAs unmarshals data into T. A missing or null payload decodes to the
// zero value so payload-less events need no "data" field.
func decodeAs[T ClientEvent](data json.RawMessage) (ClientEvent, error) {
	var v T
	if len(data) == 0 || string(data) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return v, nil
}
