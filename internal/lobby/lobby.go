// internal/lobby/lobby.go
package lobby

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/shovegame/shove/internal/game"
	"github.com/shovegame/shove/internal/models"
	"github.com/shovegame/shove/internal/protocol"
)

// LobbyState tracks where a lobby is in its lifecycle.
type LobbyState int

const (
	StateEmpty LobbyState = iota + 1
	StateLobby
	StateGameRoundStart
	StateGameGetPlayerMoves
	StateGameWaitPlayerReady
	StateShutdown
)

func (s LobbyState) String() string {
	switch s {
	case StateEmpty:
		return "EMPTY"
	case StateLobby:
		return "LOBBY"
	case StateGameRoundStart:
		return "GAME_ROUND_START"
	case StateGameGetPlayerMoves:
		return "GAME_GET_PLAYER_MOVES"
	case StateGameWaitPlayerReady:
		return "GAME_WAIT_PLAYER_READY"
	case StateShutdown:
		return "SHUTDOWN"
	}
	return fmt.Sprintf("LobbyState(%d)", int(s))
}

// ErrNotJoinable rejects joins while a game is running or the lobby is gone.
var ErrNotJoinable = errors.New("lobby is not joinable")

// Timings holds the pacing knobs of a lobby.
type Timings struct {
	RoundDuration    time.Duration
	PreGameDuration  time.Duration
	PlayerReconnect  time.Duration
	DurationPerEvent time.Duration
	PiecesPerPlayer  int
}

func DefaultTimings() Timings {
	return Timings{
		RoundDuration:    10 * time.Second,
		PreGameDuration:  5 * time.Second,
		PlayerReconnect:  10 * time.Second,
		DurationPerEvent: 5 * time.Second,
		PiecesPerPlayer:  3,
	}
}

// grace is how long stragglers get beyond the round duration.
func (t Timings) grace() time.Duration { return t.RoundDuration / 5 }

// Lobby is one game room. A single mutex guards all mutable state; message
// handling and board resolution run under it, while broadcasts and timed
// waits run outside so a slow client never stalls the room.
type Lobby struct {
	ID        uuid.UUID
	JoinCode  string
	CreatedAt time.Time

	log     *logrus.Entry
	timings Timings

	mu           sync.Mutex
	state        LobbyState
	hostPlayerID uuid.UUID
	players      map[uuid.UUID]*Player
	rng          *rand.Rand

	board          *game.Board
	roundNumber    int
	gameCancel     context.CancelFunc
	movesCollector *Collector[[]models.TimelineEventAction]
	readyCollector *Collector[struct{}]
}

func NewLobby(joinCode string, logger *logrus.Logger, timings Timings) *Lobby {
	id := uuid.New()
	return &Lobby{
		ID:        id,
		JoinCode:  joinCode,
		CreatedAt: time.Now(),
		log:       logger.WithField("lobby_id", id),
		timings:   timings,
		state:     StateEmpty,
		players:   make(map[uuid.UUID]*Player),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// State returns the lobby's current lifecycle state.
func (l *Lobby) State() LobbyState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Joinable reports whether a new player may join right now.
func (l *Lobby) Joinable() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.joinableLocked()
}

func (l *Lobby) joinableLocked() bool {
	return l.state == StateEmpty || l.state == StateLobby
}

// PlayerCount returns the number of seated players.
func (l *Lobby) PlayerCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.players)
}

// PlayerInfos lists the seated players ordered by player number.
func (l *Lobby) PlayerInfos() []models.PlayerInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.playerInfosLocked(uuid.Nil)
}

// RoundNumber returns the current round counter.
func (l *Lobby) RoundNumber() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.roundNumber
}

// HasSession reports whether a seated player holds the given session.
func (l *Lobby) HasSession(sessionID uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range l.players {
		if p.SessionID == sessionID {
			return true
		}
	}
	return false
}

// Join seats a new player. The first player to ever join becomes the host,
// as does the first to join after the host seat went vacant. The returned
// channel closes when this connection's poll task exits, which is the
// handler's cue to release the socket.
func (l *Lobby) Join(ch Channel) (*Player, <-chan struct{}, error) {
	l.mu.Lock()
	if !l.joinableLocked() {
		l.mu.Unlock()
		return nil, nil, ErrNotJoinable
	}
	player := newPlayer(l.lowestFreeNumberLocked(), ch)
	if l.hostPlayerID == uuid.Nil {
		l.hostPlayerID = player.ID
		l.state = StateLobby
	}
	l.players[player.ID] = player
	isHost := l.hostPlayerID == player.ID
	others := l.playerInfosLocked(player.ID)
	recipients := l.recipientsLocked(player.ID)
	done := l.startPollLocked(player, ch)
	l.mu.Unlock()

	l.log.Infof("player %s joined as number %d", player.ID, player.Number)
	l.sendSilent(context.Background(), player, protocol.New(&protocol.ServerHello{
		SessionID:    player.SessionID,
		IsHost:       isHost,
		Player:       player.Info(),
		OtherPlayers: others,
	}))
	l.sendAll(recipients, protocol.New(&protocol.PlayerJoined{Player: player.Info()}))
	return player, done, nil
}

// Reconnect swaps a fresh connection onto the player holding sessionID. The
// replaced poll task exits silently. ok is false when no seated player holds
// the session.
func (l *Lobby) Reconnect(sessionID uuid.UUID, ch Channel) (*Player, <-chan struct{}, bool) {
	l.mu.Lock()
	var player *Player
	for _, p := range l.players {
		if p.SessionID == sessionID {
			player = p
			break
		}
	}
	if player == nil {
		l.mu.Unlock()
		return nil, nil, false
	}
	done := l.startPollLocked(player, ch)
	recipients := l.recipientsLocked(player.ID)
	l.mu.Unlock()

	l.log.Infof("player %s reconnected", player.ID)
	l.sendAll(recipients, protocol.New(&protocol.PlayerJoined{Player: player.Info(), Reconnect: true}))
	return player, done, true
}

// startPollLocked attaches the channel (cancelling any previous poll task)
// and spawns a poll task for it.
func (l *Lobby) startPollLocked(player *Player, ch Channel) <-chan struct{} {
	ctx, cancel := context.WithCancel(context.Background())
	player.attach(ch, cancel)
	done := make(chan struct{})
	go l.pollLoop(ctx, player, ch, done)
	return done
}

func (l *Lobby) lowestFreeNumberLocked() int {
	used := make(map[int]bool, len(l.players))
	for _, p := range l.players {
		used[p.Number] = true
	}
	for n := 1; ; n++ {
		if !used[n] {
			return n
		}
	}
}

func (l *Lobby) playerInfosLocked(exclude uuid.UUID) []models.PlayerInfo {
	infos := make([]models.PlayerInfo, 0, len(l.players))
	for _, p := range l.players {
		if p.ID == exclude {
			continue
		}
		infos = append(infos, p.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Number < infos[j].Number })
	return infos
}

func (l *Lobby) recipientsLocked(exclude uuid.UUID) []*Player {
	recipients := make([]*Player, 0, len(l.players))
	for _, p := range l.players {
		if p.ID == exclude {
			continue
		}
		recipients = append(recipients, p)
	}
	return recipients
}

func (l *Lobby) playerIDsLocked() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(l.players))
	for id := range l.players {
		ids = append(ids, id)
	}
	return ids
}

// pollLoop reads and dispatches messages for one connection until it dies.
// Cancellation means the connection was replaced or the lobby shut down; a
// read error means the player disconnected and gets a reconnect window.
func (l *Lobby) pollLoop(ctx context.Context, player *Player, ch Channel, done chan struct{}) {
	defer close(done)

	for {
		msg, err := ch.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			var decodeErr *protocol.DecodeError
			if errors.As(err, &decodeErr) {
				l.log.Warnf("player %s sent an invalid message: %v", player.ID, err)
				_ = ch.Close(protocol.StatusInvalidMessage, "invalid message")
			}
			break
		}
		l.dispatch(ctx, player, msg)
	}

	window := time.NewTimer(l.timings.PlayerReconnect)
	defer window.Stop()
	select {
	case <-ctx.Done():
		return
	case <-window.C:
	}
	l.handlePlayerGone(ctx, player)
}

// handlePlayerGone removes a player whose reconnect window expired.
func (l *Lobby) handlePlayerGone(ctx context.Context, player *Player) {
	l.mu.Lock()
	if ctx.Err() != nil {
		// A reconnect won the race against the expiring window.
		l.mu.Unlock()
		return
	}
	delete(l.players, player.ID)
	if l.hostPlayerID == player.ID {
		// The next joiner takes over hosting.
		l.hostPlayerID = uuid.Nil
	}
	if c := l.movesCollector; c != nil {
		c.RemovePlayer(player.ID)
	}
	if c := l.readyCollector; c != nil {
		c.RemovePlayer(player.ID)
	}
	recipients := l.recipientsLocked(uuid.Nil)
	l.mu.Unlock()

	l.log.Infof("player %s left", player.ID)
	l.sendAll(recipients, protocol.New(&protocol.PlayerLeft{Player: player.Info()}))
}

// dispatch routes one message. Replies are shielded from poll-task
// cancellation so a reconnect cannot swallow an in-flight error reply.
func (l *Lobby) dispatch(ctx context.Context, player *Player, msg *protocol.Message) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Errorf("panic handling %s from player %s: %v", msg.Type, player.ID, r)
		}
	}()

	var errPayload *protocol.ErrorPayload
	switch payload := msg.Payload.(type) {
	case *protocol.HostStartGame:
		errPayload = l.msgHostStartGame(player, payload)
	case *protocol.PlayerMoves:
		errPayload = l.msgPlayerMoves(player, payload)
	case *protocol.ReadyForNextRound:
		errPayload = l.msgReadyForNextRound(player)
	default:
		errPayload = protocol.UnhandledMessage()
	}

	if errPayload != nil {
		l.sendSilent(context.WithoutCancel(ctx), player, protocol.New(errPayload))
	}
}

func (l *Lobby) msgHostStartGame(player *Player, payload *protocol.HostStartGame) *protocol.ErrorPayload {
	l.mu.Lock()
	if player.ID != l.hostPlayerID {
		l.mu.Unlock()
		return protocol.MustBeHost()
	}
	if l.state != StateLobby {
		l.mu.Unlock()
		return protocol.InvalidLobbyState()
	}

	l.state = StateGameRoundStart
	l.roundNumber = 0
	l.board = game.NewBoard(game.NewClientDefinedPlatform(payload.Platform))

	players := l.playerInfosLocked(uuid.Nil)
	playerIDs := make([]uuid.UUID, 0, len(players))
	for _, info := range players {
		playerIDs = append(playerIDs, info.ID)
	}
	l.board.PlacePieces(l.rng, playerIDs, l.timings.PiecesPerPlayer)

	ctx, cancel := context.WithCancel(context.Background())
	l.gameCancel = cancel
	start := protocol.New(&protocol.ServerStartGame{
		Platform:     payload.Platform,
		Players:      players,
		Pieces:       l.board.Pieces(),
		RoundStartIn: l.timings.PreGameDuration.Seconds(),
	})
	recipients := l.recipientsLocked(uuid.Nil)
	l.mu.Unlock()

	l.log.Infof("host started a game with %d player(s)", len(players))
	go l.gameLoop(ctx, start, recipients)
	return nil
}

func (l *Lobby) msgPlayerMoves(player *Player, payload *protocol.PlayerMoves) *protocol.ErrorPayload {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateGameGetPlayerMoves || l.movesCollector == nil {
		return protocol.InvalidLobbyState()
	}

	validated, err := l.board.ValidateMoves(player.ID, payload.Moves)
	if err != nil {
		var illegal *game.IllegalMoveError
		if errors.As(err, &illegal) {
			return protocol.IllegalMove(illegal.PieceID, illegal.Reason)
		}
		return protocol.InvalidLobbyState()
	}
	l.movesCollector.Collect(player.ID, validated)
	return nil
}

func (l *Lobby) msgReadyForNextRound(player *Player) *protocol.ErrorPayload {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateGameWaitPlayerReady || l.readyCollector == nil {
		return protocol.InvalidLobbyState()
	}
	l.readyCollector.Collect(player.ID, struct{}{})
	return nil
}

// gameLoop announces the game, waits out the pre-game countdown, then runs
// rounds until the game is decided or the lobby goes away.
func (l *Lobby) gameLoop(ctx context.Context, start *protocol.Message, recipients []*Player) {
	l.sendAll(recipients, start)

	if sleepCtx(ctx, l.timings.PreGameDuration) {
		for ctx.Err() == nil {
			if gameOver := l.runRound(ctx); gameOver {
				break
			}
		}
	}
	l.endGame()
}

// runRound drives one round: open the submission window, resolve the moves,
// publish the result, wait out the animation. A panic aborts only this round.
func (l *Lobby) runRound(ctx context.Context) (gameOver bool) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Errorf("round %d panicked: %v", l.RoundNumber(), r)
		}
	}()

	moves, startMsg, recipients := l.beginRound()
	l.sendAll(recipients, startMsg)
	submissions := moves.WaitWithGrace(ctx, l.timings.RoundDuration, l.timings.grace())

	result, ready, laggards := l.resolveRound(submissions)
	for _, p := range laggards {
		l.log.Warnf("player %s submitted no moves, closing", p.ID)
		_ = p.Channel().Close(protocol.StatusNoMovesSubmitted, "no moves submitted")
	}
	l.sendAll(result.recipients, result.msg)

	animation := time.Duration(len(result.timeline)) * l.timings.DurationPerEvent
	ready.WaitUpTo(ctx, animation)

	l.mu.Lock()
	l.readyCollector = nil
	l.mu.Unlock()
	return result.gameOver != nil
}

// beginRound opens the move submission window.
func (l *Lobby) beginRound() (*Collector[[]models.TimelineEventAction], *protocol.Message, []*Player) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.roundNumber++
	l.state = StateGameGetPlayerMoves
	moves := NewCollector[[]models.TimelineEventAction](l.playerIDsLocked())
	l.movesCollector = moves

	msg := protocol.New(&protocol.RoundStart{
		RoundNumber:   l.roundNumber,
		RoundDuration: l.timings.RoundDuration.Seconds(),
		BoardState:    l.board.Pieces(),
	})
	return moves, msg, l.recipientsLocked(uuid.Nil)
}

type roundOutcome struct {
	msg        *protocol.Message
	timeline   []models.TimelineEvent
	gameOver   *models.GameOver
	recipients []*Player
}

// resolveRound runs the push resolution and flips the lobby into the
// wait-for-ready phase. Players who never submitted are handed back so the
// caller can close them out.
func (l *Lobby) resolveRound(submissions Result[[]models.TimelineEventAction]) (roundOutcome, *Collector[struct{}], []*Player) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.movesCollector = nil
	timeline := l.board.PerformAllMoves(submissions.Collected)
	status := l.board.GameOverStatus()

	l.state = StateGameWaitPlayerReady
	ready := NewCollector[struct{}](l.playerIDsLocked())
	l.readyCollector = ready

	var laggards []*Player
	for id := range submissions.Missing {
		if p, ok := l.players[id]; ok {
			laggards = append(laggards, p)
		}
	}

	outcome := roundOutcome{
		msg:        protocol.New(&protocol.RoundResult{Timeline: timeline, GameOver: status}),
		timeline:   timeline,
		gameOver:   status,
		recipients: l.recipientsLocked(uuid.Nil),
	}
	return outcome, ready, laggards
}

// endGame returns the lobby to the joinable state. Seated players keep their
// sessions; only the board goes away.
func (l *Lobby) endGame() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.board = nil
	l.movesCollector = nil
	l.readyCollector = nil
	l.gameCancel = nil
	if l.state != StateShutdown {
		l.state = StateLobby
	}
	l.log.Infof("game finished after %d round(s)", l.roundNumber)
}

// sendAll fans a message out to every recipient concurrently and waits for
// all sends. Failures are logged, never fatal; disconnect handling belongs
// to each player's poll task.
func (l *Lobby) sendAll(recipients []*Player, msg *protocol.Message) {
	if len(recipients) == 0 {
		return
	}
	l.log.Debugf("broadcasting %s to %d player(s)", msg.Type, len(recipients))
	var wg sync.WaitGroup
	for _, p := range recipients {
		wg.Add(1)
		go func(p *Player) {
			defer wg.Done()
			if err := p.send(context.Background(), msg); err != nil {
				l.log.Warnf("failed to send %s to player %s: %v", msg.Type, p.ID, err)
			}
		}(p)
	}
	wg.Wait()
}

func (l *Lobby) sendSilent(ctx context.Context, player *Player, msg *protocol.Message) {
	if err := player.send(ctx, msg); err != nil {
		l.log.Warnf("failed to send %s to player %s: %v", msg.Type, player.ID, err)
	}
}

// Shutdown tears the lobby down: the game loop and every poll task stop, all
// connections close with the shutdown code, all players are dropped.
func (l *Lobby) Shutdown() {
	l.mu.Lock()
	if l.state == StateShutdown {
		l.mu.Unlock()
		return
	}
	l.state = StateShutdown
	if l.gameCancel != nil {
		l.gameCancel()
		l.gameCancel = nil
	}
	players := make([]*Player, 0, len(l.players))
	for _, p := range l.players {
		players = append(players, p)
	}
	l.players = make(map[uuid.UUID]*Player)
	l.hostPlayerID = uuid.Nil
	for _, p := range players {
		p.stopPoll()
	}
	l.mu.Unlock()

	l.log.Info("lobby shutting down")
	for _, p := range players {
		_ = p.Channel().Close(protocol.StatusLobbyShutdown, "lobby shutting down")
	}
}

// sleepCtx sleeps for d unless ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
