package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/bellapacxx/live-bingo/game"
	"github.com/bellapacxx/live-bingo/protocol"
	"github.com/bellapacxx/live-bingo/store"
	"github.com/bellapacxx/live-bingo/utils/logger"

	"github.com/google/uuid"
)

const (
	maxCodeAttempts = 5
	maxDrawAttempts = 5
)

// RoomOptions tunes a RoomService. Zero values fall back to defaults.
type RoomOptions struct {
	GracePeriod     time.Duration
	RoomTTL         time.Duration
	DrawRevealDelay time.Duration
	EndOnFirstWin   bool

	Now     func() time.Time
	Rand    *rand.Rand
	NewCode func() string
}

// NewRoomCode returns a six character uppercase room code.
func NewRoomCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
}

// RoomService runs the room state machine. Each method takes the id of the
// connection that sent the event and reports the outcome through the hub.
type RoomService struct {
	store    store.Store
	hub      Broadcaster
	sessions *Sessions
	opts     RoomOptions

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewRoomService(st store.Store, hub Broadcaster, opts RoomOptions) *RoomService {
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = 3 * time.Second
	}
	if opts.RoomTTL <= 0 {
		opts.RoomTTL = 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewCode == nil {
		opts.NewCode = NewRoomCode
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &RoomService{
		store:    st,
		hub:      hub,
		sessions: NewSessions(opts.GracePeriod),
		opts:     opts,
		rng:      rng,
	}
}

// Handle dispatches one decoded client event and reports any failure back
// to the sending connection only.
func (s *RoomService) Handle(ctx context.Context, connID string, ev protocol.ClientEvent) {
	var err error
	switch e := ev.(type) {
	case protocol.CreateRoom:
		err = s.CreateRoom(ctx, connID, e.HostName, e.WinningPattern)
	case protocol.JoinRoom:
		err = s.JoinRoom(ctx, connID, e.RoomID, e.PlayerName, e.PlayerID)
	case protocol.RejoinRoom:
		err = s.RejoinRoom(ctx, connID, e.RoomID, e.Player.ID, e.Player.Name)
	case protocol.LeaveRoom:
		err = s.LeaveRoom(ctx, connID)
	case protocol.StartGame:
		err = s.StartGame(ctx, connID)
	case protocol.RollNumber:
		err = s.RollNumber(ctx, connID)
	case protocol.MarkNumber:
		if e.CellIndex == nil {
			err = game.ErrInvalidCell
			break
		}
		err = s.MarkNumber(ctx, connID, e.Number, *e.CellIndex)
	case protocol.RequestShuffle:
		err = s.RequestShuffle(ctx, connID)
	case protocol.KickPlayer:
		err = s.KickPlayer(ctx, connID, e.TargetID)
	case protocol.UpdatePattern:
		err = s.UpdatePattern(ctx, connID, e.Pattern)
	case protocol.ClaimBingo:
		err = s.ClaimBingo(ctx, connID)
	case protocol.RestartGame:
		err = s.RestartGame(ctx, connID)
	case protocol.EndGame:
		err = s.EndGame(ctx, connID)
	default:
		err = fmt.Errorf("unhandled event %T", ev)
	}
	if err != nil {
		s.report(connID, ev.Type(), err)
	}
}

// report turns a failure into the event the client expects for its kind.
func (s *RoomService) report(connID, action string, err error) {
	switch game.KindOf(err) {
	case game.KindNotFound:
		s.hub.EmitTo(connID, protocol.Message(protocol.TypeError, err.Error()))
	case game.KindSessionExpired:
		s.hub.EmitTo(connID, protocol.Message(protocol.TypeSessionExpired, err.Error()))
	case game.KindInternal:
		logger.Errorf("[Client %s] %s failed: %v", connID, action, err)
		s.hub.EmitTo(connID, protocol.Message(protocol.TypeActionError, "Something went wrong, please try again"))
	default:
		logger.Debugf("[Client %s] %s rejected: %v", connID, action, err)
		s.hub.EmitTo(connID, protocol.Message(protocol.TypeActionError, err.Error()))
	}
}

// CreateRoom opens a waiting room hosted by the connection.
func (s *RoomService) CreateRoom(ctx context.Context, connID, hostName string, pattern []int) error {
	hostName = strings.TrimSpace(hostName)
	if hostName == "" {
		return game.ErrInvalidName
	}
	winning, err := game.ParsePattern(pattern)
	if err != nil {
		return err
	}
	s.dropBinding(ctx, connID)

	host := game.Player{ID: uuid.NewString(), Name: hostName, ConnectionID: connID}
	var room *game.Room
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		room = game.NewRoom(s.opts.NewCode(), host, winning, s.opts.Now(), s.opts.RoomTTL)
		err = s.store.Create(ctx, room)
		if !errors.Is(err, game.ErrRoomExists) {
			break
		}
		logger.Warnf("[Room %s] code collision, retrying", room.ID)
	}
	if err != nil {
		return fmt.Errorf("create room: %w", err)
	}

	s.hub.Bind(connID, Binding{RoomID: room.ID, PlayerID: host.ID})
	s.hub.EmitTo(connID, protocol.ServerEvent{
		Type: protocol.TypeRoomCreated,
		Data: protocol.RoomCreatedData{RoomID: room.ID, Player: *room.Host()},
	})
	logger.Infof("[Room %s] created by %s", room.ID, hostName)
	return nil
}

// JoinRoom adds a player while the room is waiting and a spectator
// otherwise. A playerID already on the roster, or a connection already
// seated in the room, is treated as a rejoin. Names are unique per room.
func (s *RoomService) JoinRoom(ctx context.Context, connID, roomID, name, playerID string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return game.ErrInvalidName
	}
	room, err := s.store.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if playerID != "" && room.PlayerByID(playerID) != nil {
		return s.RejoinRoom(ctx, connID, roomID, playerID, "")
	}
	if b, ok := s.hub.Binding(connID); ok {
		if b.RoomID == roomID && room.PlayerByID(b.PlayerID) != nil {
			// Already seated here: resend the state instead of reseating.
			return s.RejoinRoom(ctx, connID, roomID, b.PlayerID, "")
		}
		if b.RoomID != roomID || !b.Spectator() {
			s.dropBinding(ctx, connID)
		}
	}

	if room.Status != game.StatusWaiting {
		return s.spectate(connID, room)
	}
	if room.PlayerByName(name) != nil {
		return game.ErrNameTaken
	}

	card := s.newCard()
	p := game.Player{
		ID:           uuid.NewString(),
		Name:         name,
		ConnectionID: connID,
		Card:         &card,
		Marked:       game.FreeBaseline,
	}
	err = s.store.AddPlayer(ctx, roomID, p, game.StatusWaiting)
	if errors.Is(err, game.ErrNameTaken) {
		return game.ErrNameTaken
	}
	if errors.Is(err, store.ErrConflict) {
		// Started between our read and write.
		if room, err = s.store.Get(ctx, roomID); err != nil {
			return err
		}
		return s.spectate(connID, room)
	}
	if err != nil {
		return fmt.Errorf("join room %s: %w", roomID, err)
	}

	room, err = s.store.Get(ctx, roomID)
	if err != nil {
		return err
	}
	s.hub.Bind(connID, Binding{RoomID: roomID, PlayerID: p.ID})
	s.hub.EmitTo(connID, protocol.ServerEvent{
		Type: protocol.TypeRoomJoined,
		Data: protocol.RoomJoinedData{
			RoomID:  roomID,
			Player:  *room.PlayerByID(p.ID),
			Players: protocol.Roster(room),
			State:   protocol.SnapshotOf(room, false),
		},
	})
	s.broadcastRoster(room)
	logger.Infof("[Room %s] %s joined (players=%d)", roomID, name, room.Contestants())
	return nil
}

func (s *RoomService) spectate(connID string, room *game.Room) error {
	s.hub.Bind(connID, Binding{RoomID: room.ID})
	s.hub.EmitTo(connID, protocol.ServerEvent{
		Type: protocol.TypeSpectatorJoined,
		Data: protocol.SpectatorJoinedData{
			RoomID:  room.ID,
			Message: "Game already in progress. You are watching as a spectator.",
			Players: protocol.Roster(room),
			State:   protocol.SnapshotOf(room, false),
		},
	})
	logger.Infof("[Room %s] spectator %s joined", room.ID, connID)
	return nil
}

// RejoinRoom rebinds a known player to this connection and replays the
// room state to it.
func (s *RoomService) RejoinRoom(ctx context.Context, connID, roomID, playerID, name string) error {
	room, err := s.store.Get(ctx, roomID)
	if err != nil {
		return err
	}
	p := room.ResolveIdentity(playerID, strings.TrimSpace(name))
	if p == nil {
		return game.ErrSessionExpired
	}
	s.sessions.Cancel(p.ID)

	if err := s.store.BindConnection(ctx, roomID, p.ID, connID); err != nil {
		return fmt.Errorf("rejoin %s: %w", roomID, err)
	}
	if old := p.ConnectionID; old != "" && old != connID {
		s.hub.Unbind(old)
	}
	if b, ok := s.hub.Binding(connID); ok && (b.RoomID != roomID || b.PlayerID != p.ID) && !b.Spectator() {
		s.dropBinding(ctx, connID)
	}
	s.hub.Bind(connID, Binding{RoomID: roomID, PlayerID: p.ID})

	if room, err = s.store.Get(ctx, roomID); err != nil {
		return err
	}
	me := room.PlayerByID(p.ID)
	s.hub.EmitTo(connID, protocol.ServerEvent{
		Type: protocol.TypeRoomJoined,
		Data: protocol.RoomJoinedData{
			RoomID:  roomID,
			Player:  *me,
			Players: protocol.Roster(room),
			State:   protocol.SnapshotOf(room, me.IsHost),
		},
	})
	s.broadcastRoster(room)
	logger.Infof("[Room %s] %s rejoined on %s", roomID, me.Name, connID)
	return nil
}

// LeaveRoom handles an explicit leave. A host leaving closes the room.
func (s *RoomService) LeaveRoom(ctx context.Context, connID string) error {
	b, ok := s.hub.Binding(connID)
	if !ok {
		return game.ErrNotMember
	}
	if b.Spectator() {
		s.hub.Unbind(connID)
		return nil
	}
	return s.removePlayer(ctx, b.RoomID, b.PlayerID)
}

// Disconnect is called when the transport drops. The player keeps their
// seat for the grace period.
func (s *RoomService) Disconnect(connID string) {
	b, ok := s.hub.Binding(connID)
	if !ok || b.Spectator() {
		return
	}
	logger.Infof("[Room %s] player %s disconnected, holding seat for %s", b.RoomID, b.PlayerID, s.opts.GracePeriod)
	s.sessions.Schedule(b.RoomID, b.PlayerID, connID, func() {
		s.expire(b.RoomID, b.PlayerID, connID)
	})
}

func (s *RoomService) expire(roomID, playerID, connID string) {
	ctx := context.Background()
	room, err := s.store.Get(ctx, roomID)
	if err != nil {
		return
	}
	p := room.PlayerByID(playerID)
	if p == nil || p.ConnectionID != connID {
		return
	}
	logger.Infof("[Room %s] %s did not come back, evicting", roomID, p.Name)
	if err := s.removePlayer(ctx, roomID, playerID); err != nil && !errors.Is(err, game.ErrRoomNotFound) {
		logger.Errorf("[Room %s] evict %s: %v", roomID, playerID, err)
	}
}

// removePlayer takes a player out of the room, or tears the room down if
// they are the host.
func (s *RoomService) removePlayer(ctx context.Context, roomID, playerID string) error {
	room, err := s.store.Get(ctx, roomID)
	if err != nil {
		return err
	}
	p := room.PlayerByID(playerID)
	if p == nil {
		return game.ErrPlayerNotFound
	}
	if p.IsHost {
		return s.destroy(ctx, room.ID, "The host has left. This room is closed.")
	}

	if err := s.store.RemovePlayer(ctx, roomID, playerID); err != nil {
		return err
	}
	s.sessions.Cancel(playerID)
	s.hub.Unbind(p.ConnectionID)

	if room, err = s.store.Get(ctx, roomID); err != nil {
		return err
	}
	s.broadcastRoster(room)
	s.hub.EmitTo(room.HostConnectionID, protocol.ServerEvent{
		Type: protocol.TypePlayerLeft,
		Data: protocol.PlayerLeftData{PlayerID: playerID, Message: fmt.Sprintf("%s left the room", p.Name)},
	})
	if room.Status == game.StatusPlaying {
		s.sendProgress(room)
	}
	logger.Infof("[Room %s] %s left (players=%d)", roomID, p.Name, room.Contestants())
	return nil
}

func (s *RoomService) destroy(ctx context.Context, roomID, message string) error {
	s.hub.EmitToRoom(roomID, protocol.Message(protocol.TypeRoomDestroyed, message))
	s.sessions.CancelRoom(roomID)
	s.hub.EvictRoom(roomID)
	if err := s.store.Delete(ctx, roomID); err != nil && !errors.Is(err, game.ErrRoomNotFound) {
		return fmt.Errorf("delete room %s: %w", roomID, err)
	}
	logger.Infof("[Room %s] destroyed: %s", roomID, message)
	return nil
}

// StartGame moves a waiting room into play and deals any missing cards.
func (s *RoomService) StartGame(ctx context.Context, connID string) error {
	room, err := s.hostRoom(ctx, connID)
	if err != nil {
		return err
	}
	if room.Status != game.StatusWaiting {
		return game.ErrNotWaiting
	}
	if room.Contestants() == 0 {
		return game.ErrTooFewPlayers
	}
	err = s.store.SetStatus(ctx, room.ID, []game.Status{game.StatusWaiting}, game.StatusPlaying)
	if errors.Is(err, store.ErrConflict) {
		return game.ErrNotWaiting
	}
	if err != nil {
		return err
	}

	missing := make(map[string]game.Card)
	for _, p := range room.Players {
		if !p.IsHost && p.Card == nil {
			missing[p.ID] = s.newCard()
		}
	}
	if len(missing) > 0 {
		if err := s.store.AssignMissingCards(ctx, room.ID, missing); err != nil {
			return err
		}
	}

	s.hub.EmitToRoom(room.ID, protocol.ServerEvent{
		Type: protocol.TypeGameStarted,
		Data: protocol.GameStartedData{
			Status:         game.StatusPlaying,
			Winners:        []string{},
			WinningPattern: room.Pattern,
		},
	})
	logger.Infof("[Room %s] game started with %d players", room.ID, room.Contestants())
	return nil
}

// RollNumber draws the next ball.
func (s *RoomService) RollNumber(ctx context.Context, connID string) error {
	room, err := s.hostRoom(ctx, connID)
	if err != nil {
		return err
	}

	var (
		n       int
		history []int
	)
	for attempt := 0; ; attempt++ {
		if room.Status != game.StatusPlaying {
			return game.ErrNotPlaying
		}
		if n, err = s.drawNext(room.NumbersDrawn); err != nil {
			return err
		}
		history, err = s.store.AppendDraw(ctx, room.ID, n)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrConflict) || attempt+1 >= maxDrawAttempts {
			return fmt.Errorf("draw in %s: %w", room.ID, err)
		}
		if room, err = s.store.Get(ctx, room.ID); err != nil {
			return err
		}
	}

	if d := s.opts.DrawRevealDelay; d > 0 {
		t := time.NewTimer(d)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}

	s.hub.EmitToRoom(room.ID, protocol.ServerEvent{
		Type: protocol.TypeNumberRolled,
		Data: protocol.NumberRolledData{Number: n, History: history},
	})
	logger.Debugf("[Room %s] rolled %d (%d/%d)", room.ID, n, len(history), game.MaxNumber)
	return nil
}

// MarkNumber records a mark after checking the number was called and sits
// on the player's card at that cell.
func (s *RoomService) MarkNumber(ctx context.Context, connID string, number, cell int) error {
	room, p, err := s.playerRoom(ctx, connID)
	if err != nil {
		return err
	}
	if room.Status != game.StatusPlaying {
		return game.ErrNotPlaying
	}
	if cell < 0 || cell >= game.CellCount {
		return game.ErrInvalidCell
	}
	if !room.HasDrawn(number) {
		return game.ErrNotCalled
	}
	if p.Card.At(cell) != number {
		return game.ErrCardMismatch
	}

	marked, added, err := s.store.MarkCell(ctx, room.ID, p.ID, cell, number)
	if errors.Is(err, store.ErrConflict) {
		return game.ErrNotPlaying
	}
	if err != nil {
		return err
	}
	s.hub.EmitTo(connID, protocol.ServerEvent{
		Type: protocol.TypeMarkSuccess,
		Data: protocol.MarkSuccessData{CellIndex: cell},
	})
	if added {
		s.hub.EmitTo(room.HostConnectionID, protocol.ServerEvent{
			Type: protocol.TypeUpdatePlayerProgress,
			Data: protocol.PlayerProgressData{PlayerID: p.ID, Remaining: game.Remaining(marked, room.Pattern)},
		})
	}
	return nil
}

// RequestShuffle deals the player a new card before the game starts.
func (s *RoomService) RequestShuffle(ctx context.Context, connID string) error {
	room, p, err := s.playerRoom(ctx, connID)
	if err != nil {
		return err
	}
	if room.Status != game.StatusWaiting {
		return game.ErrNotWaiting
	}

	card := s.newCard()
	err = s.store.SetCard(ctx, room.ID, p.ID, card, game.StatusWaiting)
	if errors.Is(err, store.ErrConflict) {
		return game.ErrNotWaiting
	}
	if err != nil {
		return err
	}
	s.hub.EmitTo(connID, protocol.ServerEvent{
		Type: protocol.TypeCardShuffled,
		Data: protocol.CardShuffledData{Matrix: card},
	})
	return nil
}

// KickPlayer removes a player by id and closes their connection.
func (s *RoomService) KickPlayer(ctx context.Context, connID, targetID string) error {
	room, err := s.hostRoom(ctx, connID)
	if err != nil {
		return err
	}
	target := room.PlayerByID(targetID)
	if target == nil {
		return game.ErrPlayerNotFound
	}
	if target.IsHost {
		return game.ErrCannotKickSelf
	}

	if err := s.store.RemovePlayer(ctx, room.ID, target.ID); err != nil {
		return err
	}
	s.sessions.Cancel(target.ID)
	if c := target.ConnectionID; c != "" {
		s.hub.Unbind(c)
		s.hub.EmitTo(c, protocol.Message(protocol.TypePlayerKicked, "You were removed from the room by the host"))
		s.hub.Disconnect(c)
	}

	if room, err = s.store.Get(ctx, room.ID); err != nil {
		return err
	}
	s.broadcastRoster(room)
	logger.Infof("[Room %s] %s was kicked", room.ID, target.Name)
	return nil
}

// UpdatePattern replaces the winning pattern before the game starts.
func (s *RoomService) UpdatePattern(ctx context.Context, connID string, pattern []int) error {
	room, err := s.hostRoom(ctx, connID)
	if err != nil {
		return err
	}
	if room.Status != game.StatusWaiting {
		return game.ErrNotWaiting
	}
	winning, err := game.ParsePattern(pattern)
	if err != nil {
		return err
	}
	err = s.store.SetPattern(ctx, room.ID, winning, game.StatusWaiting)
	if errors.Is(err, store.ErrConflict) {
		return game.ErrNotWaiting
	}
	if err != nil {
		return err
	}
	s.hub.EmitTo(connID, protocol.ServerEvent{
		Type: protocol.TypePatternUpdated,
		Data: protocol.PatternUpdatedData{Pattern: winning},
	})
	return nil
}

// ClaimBingo checks the player's marks against the pattern. A false claim
// is announced to the whole room.
func (s *RoomService) ClaimBingo(ctx context.Context, connID string) error {
	room, p, err := s.playerRoom(ctx, connID)
	if err != nil {
		return err
	}
	if room.Status != game.StatusPlaying {
		return game.ErrNotPlaying
	}
	if room.Rank(p.Name) > 0 {
		return nil
	}

	if !game.Satisfies(p.Marked, room.Pattern) {
		s.hub.EmitToRoom(room.ID, protocol.ServerEvent{
			Type: protocol.TypeFalseBingo,
			Data: protocol.FalseBingoData{Name: p.Name},
		})
		logger.Infof("[Room %s] false bingo by %s", room.ID, p.Name)
		return nil
	}

	winners, rank, added, err := s.store.AddWinner(ctx, room.ID, p.Name)
	if errors.Is(err, store.ErrConflict) {
		return game.ErrNotPlaying
	}
	if err != nil {
		return err
	}
	if !added {
		return nil
	}
	s.hub.EmitToRoom(room.ID, protocol.ServerEvent{
		Type: protocol.TypePlayerWon,
		Data: protocol.PlayerWonData{Winner: p.Name, Winners: winners, Rank: rank},
	})
	logger.Infof("[Room %s] %s won (rank %d)", room.ID, p.Name, rank)

	if s.opts.EndOnFirstWin {
		if err := s.finish(ctx, room.ID); err != nil && !errors.Is(err, game.ErrNotPlaying) {
			return err
		}
	}
	return nil
}

// RestartGame returns the room to waiting with fresh cards for everyone.
func (s *RoomService) RestartGame(ctx context.Context, connID string) error {
	room, err := s.hostRoom(ctx, connID)
	if err != nil {
		return err
	}
	if room.Status == game.StatusWaiting {
		return game.ErrCannotRestart
	}

	cards := make(map[string]game.Card)
	for _, p := range room.Players {
		if !p.IsHost {
			cards[p.ID] = s.newCard()
		}
	}
	err = s.store.ResetRound(ctx, room.ID, cards)
	if errors.Is(err, store.ErrConflict) {
		return game.ErrCannotRestart
	}
	if err != nil {
		return err
	}

	if room, err = s.store.Get(ctx, room.ID); err != nil {
		return err
	}
	roster := protocol.Roster(room)
	const msg = "The host restarted the game"
	for _, c := range s.hub.Connections(room.ID) {
		b, ok := s.hub.Binding(c)
		if !ok {
			continue
		}
		data := protocol.GameResetData{Message: msg, Players: roster}
		if b.Spectator() {
			data.CanJoin = true
		} else if p := room.PlayerByID(b.PlayerID); p != nil {
			data.Player = p
		}
		s.hub.EmitTo(c, protocol.ServerEvent{Type: protocol.TypeGameReset, Data: data})
	}
	logger.Infof("[Room %s] game restarted", room.ID)
	return nil
}

// EndGame stops play without resetting, freezing the winners list.
func (s *RoomService) EndGame(ctx context.Context, connID string) error {
	room, err := s.hostRoom(ctx, connID)
	if err != nil {
		return err
	}
	if room.Status != game.StatusPlaying {
		return game.ErrNotPlaying
	}
	return s.finish(ctx, room.ID)
}

func (s *RoomService) finish(ctx context.Context, roomID string) error {
	err := s.store.SetStatus(ctx, roomID, []game.Status{game.StatusPlaying}, game.StatusEnded)
	if errors.Is(err, store.ErrConflict) {
		return game.ErrNotPlaying
	}
	if err != nil {
		return err
	}
	room, err := s.store.Get(ctx, roomID)
	if err != nil {
		return err
	}
	s.hub.EmitToRoom(roomID, protocol.ServerEvent{
		Type: protocol.TypeGameOver,
		Data: protocol.GameOverData{Winners: append([]string{}, room.Winners...)},
	})
	logger.Infof("[Room %s] game over, winners=%v", roomID, room.Winners)
	return nil
}

// PurgeExpired tears down rooms past their retention window.
func (s *RoomService) PurgeExpired(ctx context.Context) (int, error) {
	codes, err := s.store.PurgeExpired(ctx, s.opts.Now())
	if err != nil {
		return 0, err
	}
	for _, code := range codes {
		s.hub.EmitToRoom(code, protocol.Message(protocol.TypeRoomDestroyed, "This room has expired"))
		s.sessions.CancelRoom(code)
		s.hub.EvictRoom(code)
		logger.Infof("[Room %s] expired", code)
	}
	return len(codes), nil
}

// member resolves the connection to its room and, through the room's
// roster, to a player. p is nil for spectators.
func (s *RoomService) member(ctx context.Context, connID string) (*game.Room, *game.Player, error) {
	b, ok := s.hub.Binding(connID)
	if !ok {
		return nil, nil, game.ErrNotMember
	}
	room, err := s.store.Get(ctx, b.RoomID)
	if err != nil {
		return nil, nil, err
	}
	return room, room.PlayerByConnection(connID), nil
}

func (s *RoomService) hostRoom(ctx context.Context, connID string) (*game.Room, error) {
	room, _, err := s.member(ctx, connID)
	if err != nil {
		return nil, err
	}
	if !room.IsHostConnection(connID) {
		return nil, game.ErrNotHost
	}
	return room, nil
}

// playerRoom resolves a card-holding player.
func (s *RoomService) playerRoom(ctx context.Context, connID string) (*game.Room, *game.Player, error) {
	room, p, err := s.member(ctx, connID)
	if err != nil {
		return nil, nil, err
	}
	if p == nil {
		return nil, nil, game.ErrNotMember
	}
	if p.IsHost || p.Card == nil {
		return nil, nil, game.ErrHostHasNoCard
	}
	return room, p, nil
}

// dropBinding leaves whatever room the connection was in before it moves
// to another one.
func (s *RoomService) dropBinding(ctx context.Context, connID string) {
	b, ok := s.hub.Binding(connID)
	if !ok {
		return
	}
	if b.Spectator() {
		s.hub.Unbind(connID)
		return
	}
	if err := s.removePlayer(ctx, b.RoomID, b.PlayerID); err != nil {
		logger.Debugf("[Client %s] leave %s: %v", connID, b.RoomID, err)
	}
	s.hub.Unbind(connID)
}

func (s *RoomService) broadcastRoster(room *game.Room) {
	s.hub.EmitToRoom(room.ID, protocol.ServerEvent{
		Type: protocol.TypeUpdatePlayerList,
		Data: protocol.PlayerListData{Players: protocol.Roster(room)},
	})
}

// sendProgress gives the host a fresh remaining count for every player.
func (s *RoomService) sendProgress(room *game.Room) {
	for id, remaining := range room.Progress() {
		s.hub.EmitTo(room.HostConnectionID, protocol.ServerEvent{
			Type: protocol.TypeUpdatePlayerProgress,
			Data: protocol.PlayerProgressData{PlayerID: id, Remaining: remaining},
		})
	}
}

func (s *RoomService) newCard() game.Card {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return game.GenerateCard(s.rng)
}

func (s *RoomService) drawNext(drawn []int) (int, error) {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return game.DrawNext(s.rng, drawn)
}
