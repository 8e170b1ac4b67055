package game

import "errors"

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomExists       = errors.New("room code already taken")
	ErrPlayerNotFound   = errors.New("player not found in room")
	ErrSessionExpired   = errors.New("player session not found in this room")
	ErrNotHost          = errors.New("only the host can do that")
	ErrNotMember        = errors.New("you are not a player in this room")
	ErrNotWaiting       = errors.New("game already started")
	ErrNotPlaying       = errors.New("game is not in progress")
	ErrCannotRestart    = errors.New("no game to restart")
	ErrTooFewPlayers    = errors.New("need at least one player to start")
	ErrEmptyPattern     = errors.New("winning pattern must include at least one cell besides FREE")
	ErrInvalidPattern   = errors.New("winning pattern has a cell outside the card")
	ErrInvalidCell      = errors.New("cell index out of range")
	ErrNotCalled        = errors.New("that number hasn't been called yet")
	ErrCardMismatch     = errors.New("number does not match your card")
	ErrHostHasNoCard    = errors.New("the host does not play a card")
	ErrCannotKickSelf   = errors.New("the host cannot kick themselves")
	ErrInvalidName      = errors.New("name is required")
	ErrNameTaken        = errors.New("that name is already taken in this room")
	ErrAllNumbersCalled = errors.New("all numbers called")
)

// Kind groups errors by how they propagate to clients.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindUnauthorized
	KindIllegalState
	KindValidation
	KindExhausted
	KindSessionExpired
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindIllegalState:
		return "illegal_state"
	case KindValidation:
		return "validation"
	case KindExhausted:
		return "exhausted"
	case KindSessionExpired:
		return "session_expired"
	default:
		return "internal"
	}
}

var kinds = map[error]Kind{
	ErrRoomNotFound:     KindNotFound,
	ErrSessionExpired:   KindSessionExpired,
	ErrNotHost:          KindUnauthorized,
	ErrNotMember:        KindUnauthorized,
	ErrHostHasNoCard:    KindUnauthorized,
	ErrCannotKickSelf:   KindUnauthorized,
	ErrNotWaiting:       KindIllegalState,
	ErrNotPlaying:       KindIllegalState,
	ErrCannotRestart:    KindIllegalState,
	ErrTooFewPlayers:    KindIllegalState,
	ErrEmptyPattern:     KindValidation,
	ErrInvalidPattern:   KindValidation,
	ErrInvalidCell:      KindValidation,
	ErrNotCalled:        KindValidation,
	ErrCardMismatch:     KindValidation,
	ErrInvalidName:      KindValidation,
	ErrNameTaken:        KindValidation,
	ErrPlayerNotFound:   KindValidation,
	ErrAllNumbersCalled: KindExhausted,
}

// KindOf classifies err, looking through wrapping.
func KindOf(err error) Kind {
	for target, kind := range kinds {
		if errors.Is(err, target) {
			return kind
		}
	}
	return KindInternal
}
