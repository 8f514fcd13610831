// internal/lobby/lobby_test.go
package lobby

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shovegame/shove/internal/models"
	"github.com/shovegame/shove/internal/protocol"
)

// fakeFrame is one scripted read result.
type fakeFrame struct {
	msg *protocol.Message
	err error
}

// fakeChannel drives a lobby without a socket: tests push frames for the
// lobby to read and inspect everything the lobby sent back.
type fakeChannel struct {
	incoming chan fakeFrame

	mu          sync.Mutex
	sent        []*protocol.Message
	cursor      int
	closed      bool
	closeCode   websocket.StatusCode
	closeReason string
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{incoming: make(chan fakeFrame, 16)}
}

func (c *fakeChannel) Send(ctx context.Context, msg *protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeChannel) Receive(ctx context.Context) (*protocol.Message, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case frame, ok := <-c.incoming:
		if !ok {
			return nil, errors.New("connection lost")
		}
		return frame.msg, frame.err
	}
}

func (c *fakeChannel) Close(code websocket.StatusCode, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closeCode = code
	c.closeReason = reason
	return nil
}

// push hands the lobby a message as if the client sent it.
func (c *fakeChannel) push(payload protocol.Payload) {
	c.incoming <- fakeFrame{msg: protocol.New(payload)}
}

// pushErr makes the lobby's next read fail with err.
func (c *fakeChannel) pushErr(err error) {
	c.incoming <- fakeFrame{err: err}
}

// drop simulates the connection dying.
func (c *fakeChannel) drop() {
	close(c.incoming)
}

// waitFor blocks until the lobby has sent a message of the given type,
// consuming everything sent before it.
func (c *fakeChannel) waitFor(t *testing.T, msgType string) *protocol.Message {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		c.mu.Lock()
		for c.cursor < len(c.sent) {
			msg := c.sent[c.cursor]
			c.cursor++
			if msg.Type == msgType {
				c.mu.Unlock()
				return msg
			}
		}
		c.mu.Unlock()
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for a %s message", msgType)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// waitClosed blocks until the lobby closed the channel.
func (c *fakeChannel) waitClosed(t *testing.T) (websocket.StatusCode, string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		c.mu.Lock()
		if c.closed {
			code, reason := c.closeCode, c.closeReason
			c.mu.Unlock()
			return code, reason
		}
		c.mu.Unlock()
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the channel to close")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// sentTypes snapshots the type tags of everything sent so far.
func (c *fakeChannel) sentTypes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	types := make([]string, len(c.sent))
	for i, msg := range c.sent {
		types[i] = msg.Type
	}
	return types
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func testTimings() Timings {
	return Timings{
		RoundDuration:    60 * time.Millisecond,
		PreGameDuration:  10 * time.Millisecond,
		PlayerReconnect:  150 * time.Millisecond,
		DurationPerEvent: 5 * time.Millisecond,
		PiecesPerPlayer:  3,
	}
}

func testLobby(t *testing.T) *Lobby {
	t.Helper()
	l := NewLobby("TEST", testLogger(), testTimings())
	t.Cleanup(l.Shutdown)
	return l
}

// rowPlatform builds a one-tile-high floor strip of the given width.
func rowPlatform(width int) models.BoardPlatform {
	tiles := make([]models.Tile, 0, width)
	for x := 0; x < width; x++ {
		tiles = append(tiles, models.Tile{
			Position: models.Position{X: x, Y: 0},
			TileType: models.TileTypeFloor,
		})
	}
	return models.BoardPlatform{Tiles: tiles}
}

// piecesOf filters a board snapshot down to one player's pieces.
func piecesOf(pieces []models.PlayerPiecePosition, playerID uuid.UUID) []models.PlayerPiecePosition {
	var mine []models.PlayerPiecePosition
	for _, p := range pieces {
		if p.PlayerID == playerID {
			mine = append(mine, p)
		}
	}
	return mine
}

type gameFixture struct {
	host    *Player
	guest   *Player
	hostCh  *fakeChannel
	guestCh *fakeChannel
	start   *protocol.ServerStartGame
}

// startTwoPlayerGame seats a host and a guest and starts a game on platform.
func startTwoPlayerGame(t *testing.T, l *Lobby, platform models.BoardPlatform) *gameFixture {
	t.Helper()
	hostCh := newFakeChannel()
	host, _, err := l.Join(hostCh)
	require.NoError(t, err)
	guestCh := newFakeChannel()
	guest, _, err := l.Join(guestCh)
	require.NoError(t, err)

	hostCh.push(&protocol.HostStartGame{Platform: platform})
	start := hostCh.waitFor(t, protocol.TypeServerStartGame).Payload.(*protocol.ServerStartGame)
	guestCh.waitFor(t, protocol.TypeServerStartGame)
	return &gameFixture{host: host, guest: guest, hostCh: hostCh, guestCh: guestCh, start: start}
}

func TestJoinHelloAndNumbering(t *testing.T) {
	l := testLobby(t)

	ch1 := newFakeChannel()
	p1, _, err := l.Join(ch1)
	require.NoError(t, err)

	hello1 := ch1.waitFor(t, protocol.TypeServerHello).Payload.(*protocol.ServerHello)
	assert.True(t, hello1.IsHost)
	assert.Equal(t, p1.SessionID, hello1.SessionID)
	assert.Equal(t, models.PlayerInfo{ID: p1.ID, Number: 1}, hello1.Player)
	assert.Empty(t, hello1.OtherPlayers)

	ch2 := newFakeChannel()
	p2, _, err := l.Join(ch2)
	require.NoError(t, err)

	hello2 := ch2.waitFor(t, protocol.TypeServerHello).Payload.(*protocol.ServerHello)
	assert.False(t, hello2.IsHost)
	assert.Equal(t, 2, hello2.Player.Number)
	assert.Equal(t, []models.PlayerInfo{p1.Info()}, hello2.OtherPlayers)

	joined := ch1.waitFor(t, protocol.TypePlayerJoined).Payload.(*protocol.PlayerJoined)
	assert.Equal(t, p2.Info(), joined.Player)
	assert.False(t, joined.Reconnect)

	assert.Equal(t, StateLobby, l.State())
	assert.Equal(t, []models.PlayerInfo{p1.Info(), p2.Info()}, l.PlayerInfos())
}

func TestJoinNumbersFillGaps(t *testing.T) {
	l := testLobby(t)

	ch1 := newFakeChannel()
	_, _, err := l.Join(ch1)
	require.NoError(t, err)
	ch2 := newFakeChannel()
	_, _, err = l.Join(ch2)
	require.NoError(t, err)
	ch3 := newFakeChannel()
	p3, _, err := l.Join(ch3)
	require.NoError(t, err)
	assert.Equal(t, 3, p3.Number)

	ch2.drop()
	require.Eventually(t, func() bool { return l.PlayerCount() == 2 },
		2*time.Second, 5*time.Millisecond)

	ch4 := newFakeChannel()
	p4, _, err := l.Join(ch4)
	require.NoError(t, err)
	assert.Equal(t, 2, p4.Number)
}

func TestHostSeatPassesToTheNextJoiner(t *testing.T) {
	l := testLobby(t)

	ch1 := newFakeChannel()
	p1, _, err := l.Join(ch1)
	require.NoError(t, err)
	ch2 := newFakeChannel()
	_, _, err = l.Join(ch2)
	require.NoError(t, err)

	ch1.drop()
	left := ch2.waitFor(t, protocol.TypePlayerLeft).Payload.(*protocol.PlayerLeft)
	assert.Equal(t, p1.Info(), left.Player)

	// Seated players do not inherit the seat; the next joiner does, along
	// with the freed number.
	ch3 := newFakeChannel()
	p3, _, err := l.Join(ch3)
	require.NoError(t, err)
	hello := ch3.waitFor(t, protocol.TypeServerHello).Payload.(*protocol.ServerHello)
	assert.True(t, hello.IsHost)
	assert.Equal(t, 1, p3.Number)
}

func TestReconnectKeepsTheSeat(t *testing.T) {
	l := testLobby(t)

	ch1 := newFakeChannel()
	_, _, err := l.Join(ch1)
	require.NoError(t, err)
	ch2 := newFakeChannel()
	p2, _, err := l.Join(ch2)
	require.NoError(t, err)

	ch2.drop()
	replacement := newFakeChannel()
	reconnected, _, ok := l.Reconnect(p2.SessionID, replacement)
	require.True(t, ok)
	assert.Same(t, p2, reconnected)

	first := ch1.waitFor(t, protocol.TypePlayerJoined).Payload.(*protocol.PlayerJoined)
	assert.False(t, first.Reconnect)
	again := ch1.waitFor(t, protocol.TypePlayerJoined).Payload.(*protocol.PlayerJoined)
	assert.Equal(t, p2.Info(), again.Player)
	assert.True(t, again.Reconnect)

	// The seat survives past the reconnect window and nobody is announced
	// as having left.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 2, l.PlayerCount())
	assert.NotContains(t, ch1.sentTypes(), protocol.TypePlayerLeft)

	// The replacement channel is live: messages on it get dispatched.
	replacement.push(&protocol.ReadyForNextRound{})
	reply := replacement.waitFor(t, protocol.TypeError).Payload.(*protocol.ErrorPayload)
	assert.Equal(t, protocol.ErrFlow, reply.Type)
}

func TestReconnectUnknownSession(t *testing.T) {
	l := testLobby(t)
	_, _, ok := l.Reconnect(uuid.New(), newFakeChannel())
	assert.False(t, ok)
}

func TestInvalidFrameClosesTheConnection(t *testing.T) {
	l := testLobby(t)
	ch := newFakeChannel()
	_, _, err := l.Join(ch)
	require.NoError(t, err)

	ch.pushErr(&protocol.DecodeError{Cause: fmt.Errorf("gibberish")})

	code, reason := ch.waitClosed(t)
	assert.Equal(t, protocol.StatusInvalidMessage, code)
	assert.Equal(t, "invalid message", reason)
}

func TestOnlyTheHostMayStartTheGame(t *testing.T) {
	l := testLobby(t)
	ch1 := newFakeChannel()
	_, _, err := l.Join(ch1)
	require.NoError(t, err)
	ch2 := newFakeChannel()
	_, _, err = l.Join(ch2)
	require.NoError(t, err)

	ch2.push(&protocol.HostStartGame{Platform: rowPlatform(4)})

	reply := ch2.waitFor(t, protocol.TypeError).Payload.(*protocol.ErrorPayload)
	assert.Equal(t, protocol.ErrForbidden, reply.Type)
	assert.Equal(t, StateLobby, l.State())
}

func TestMovesOutsideARoundAreRejected(t *testing.T) {
	l := testLobby(t)
	ch := newFakeChannel()
	_, _, err := l.Join(ch)
	require.NoError(t, err)

	ch.push(&protocol.PlayerMoves{})
	reply := ch.waitFor(t, protocol.TypeError).Payload.(*protocol.ErrorPayload)
	assert.Equal(t, protocol.ErrFlow, reply.Type)

	ch.push(&protocol.ReadyForNextRound{})
	reply = ch.waitFor(t, protocol.TypeError).Payload.(*protocol.ErrorPayload)
	assert.Equal(t, protocol.ErrFlow, reply.Type)
}

func TestUnhandledMessageTypeIsAnswered(t *testing.T) {
	l := testLobby(t)
	ch := newFakeChannel()
	_, _, err := l.Join(ch)
	require.NoError(t, err)

	// Clients have no business sending server-to-client messages.
	ch.push(&protocol.PlayerLeft{})

	reply := ch.waitFor(t, protocol.TypeError).Payload.(*protocol.ErrorPayload)
	assert.Equal(t, protocol.ErrFlow, reply.Type)
	assert.Equal(t, "message type not handled", reply.Message)
}

func TestGameStartCapsPiecesToThePlatform(t *testing.T) {
	l := testLobby(t)
	fx := startTwoPlayerGame(t, l, rowPlatform(4))

	// Four cells cannot hold three pieces per player; everyone gets two.
	assert.Equal(t, rowPlatform(4), fx.start.Platform)
	assert.Equal(t, []models.PlayerInfo{fx.host.Info(), fx.guest.Info()}, fx.start.Players)
	require.Len(t, fx.start.Pieces, 4)
	assert.Len(t, piecesOf(fx.start.Pieces, fx.host.ID), 2)
	assert.Len(t, piecesOf(fx.start.Pieces, fx.guest.ID), 2)
	assert.InDelta(t, 0.01, fx.start.RoundStartIn, 1e-9)

	occupied := map[models.Position]int{}
	for _, p := range fx.start.Pieces {
		occupied[p.Position]++
	}
	assert.Equal(t, map[models.Position]int{
		{X: 0, Y: 0}: 1, {X: 1, Y: 0}: 1, {X: 2, Y: 0}: 1, {X: 3, Y: 0}: 1,
	}, occupied)

	// Mid-game the lobby is not joinable.
	_, _, err := l.Join(newFakeChannel())
	assert.ErrorIs(t, err, ErrNotJoinable)
}

func TestFullGameFlowDecidesAWinner(t *testing.T) {
	l := testLobby(t)
	fx := startTwoPlayerGame(t, l, rowPlatform(2))

	// Two cells, one piece per player.
	require.Len(t, fx.start.Pieces, 2)
	hostPiece := piecesOf(fx.start.Pieces, fx.host.ID)[0]
	guestPiece := piecesOf(fx.start.Pieces, fx.guest.ID)[0]

	roundStart := fx.hostCh.waitFor(t, protocol.TypeRoundStart).Payload.(*protocol.RoundStart)
	fx.guestCh.waitFor(t, protocol.TypeRoundStart)
	assert.Equal(t, 1, roundStart.RoundNumber)
	assert.InDelta(t, 0.06, roundStart.RoundDuration, 1e-9)
	assert.ElementsMatch(t, fx.start.Pieces, roundStart.BoardState)

	// The host shoves the guest off the edge; the guest stands still.
	action := models.ActionMoveRight
	if hostPiece.Position.X > guestPiece.Position.X {
		action = models.ActionMoveLeft
	}
	fx.hostCh.push(&protocol.PlayerMoves{Moves: []models.PlayerMove{
		{PieceID: hostPiece.PieceID, Action: action},
	}})
	fx.guestCh.push(&protocol.PlayerMoves{Moves: []models.PlayerMove{
		{PieceID: guestPiece.PieceID, Action: models.ActionNone},
	}})

	result := fx.hostCh.waitFor(t, protocol.TypeRoundResult).Payload.(*protocol.RoundResult)
	fx.guestCh.waitFor(t, protocol.TypeRoundResult)

	require.Len(t, result.Timeline, 1)
	require.Len(t, result.Timeline[0].Outcomes, 1)
	push := result.Timeline[0].Outcomes[0].Push
	require.NotNil(t, push)
	assert.Equal(t, hostPiece.PieceID, push.PusherPieceID)
	assert.Equal(t, []uuid.UUID{guestPiece.PieceID}, push.VictimPieceIDs)

	require.NotNil(t, result.GameOver)
	require.NotNil(t, result.GameOver.WinnerPlayerID)
	assert.Equal(t, fx.host.ID, *result.GameOver.WinnerPlayerID)

	// With the game decided the lobby opens up again.
	require.Eventually(t, func() bool { return l.State() == StateLobby },
		2*time.Second, 5*time.Millisecond)
	assert.True(t, l.Joinable())
	assert.Equal(t, 1, l.RoundNumber())

	assert.Equal(t, []string{
		protocol.TypeServerHello,
		protocol.TypePlayerJoined,
		protocol.TypeServerStartGame,
		protocol.TypeRoundStart,
		protocol.TypeRoundResult,
	}, fx.hostCh.sentTypes())
	assert.Equal(t, []string{
		protocol.TypeServerHello,
		protocol.TypeServerStartGame,
		protocol.TypeRoundStart,
		protocol.TypeRoundResult,
	}, fx.guestCh.sentTypes())
}

func TestNextRoundWaitsForReadyAcknowledgements(t *testing.T) {
	timings := testTimings()
	timings.DurationPerEvent = 10 * time.Second
	l := NewLobby("TEST", testLogger(), timings)
	t.Cleanup(l.Shutdown)
	fx := startTwoPlayerGame(t, l, rowPlatform(4))

	first := fx.hostCh.waitFor(t, protocol.TypeRoundStart).Payload.(*protocol.RoundStart)
	require.Equal(t, 1, first.RoundNumber)
	fx.guestCh.waitFor(t, protocol.TypeRoundStart)

	// Shoving the leftmost host piece rightward drops exactly one piece off
	// the far edge, so the timeline is never empty and the animation wait
	// (10s per event here) would stall the next round on its own.
	hostPieces := piecesOf(fx.start.Pieces, fx.host.ID)
	mover := hostPieces[0]
	for _, p := range hostPieces[1:] {
		if p.Position.X < mover.Position.X {
			mover = p
		}
	}
	fx.hostCh.push(&protocol.PlayerMoves{Moves: []models.PlayerMove{
		{PieceID: mover.PieceID, Action: models.ActionMoveRight},
	}})
	fx.guestCh.push(&protocol.PlayerMoves{})

	result := fx.hostCh.waitFor(t, protocol.TypeRoundResult).Payload.(*protocol.RoundResult)
	fx.guestCh.waitFor(t, protocol.TypeRoundResult)
	require.Len(t, result.Timeline, 1)
	require.Nil(t, result.GameOver)

	fx.hostCh.push(&protocol.ReadyForNextRound{})
	fx.guestCh.push(&protocol.ReadyForNextRound{})

	second := fx.hostCh.waitFor(t, protocol.TypeRoundStart).Payload.(*protocol.RoundStart)
	assert.Equal(t, 2, second.RoundNumber)
}

func TestSilentPlayerIsDisconnected(t *testing.T) {
	l := testLobby(t)
	fx := startTwoPlayerGame(t, l, rowPlatform(4))

	fx.hostCh.waitFor(t, protocol.TypeRoundStart)
	fx.hostCh.push(&protocol.PlayerMoves{})

	code, reason := fx.guestCh.waitClosed(t)
	assert.Equal(t, protocol.StatusNoMovesSubmitted, code)
	assert.Equal(t, "no moves submitted", reason)
}

func TestIllegalMoveIsRejected(t *testing.T) {
	l := testLobby(t)
	fx := startTwoPlayerGame(t, l, rowPlatform(4))

	fx.guestCh.waitFor(t, protocol.TypeRoundStart)
	hostPiece := piecesOf(fx.start.Pieces, fx.host.ID)[0]

	// Guests cannot move the host's pieces.
	fx.guestCh.push(&protocol.PlayerMoves{Moves: []models.PlayerMove{
		{PieceID: hostPiece.PieceID, Action: models.ActionMoveLeft},
	}})

	reply := fx.guestCh.waitFor(t, protocol.TypeError).Payload.(*protocol.ErrorPayload)
	assert.Equal(t, protocol.ErrIllegalMove, reply.Type)
	assert.Equal(t, hostPiece.PieceID.String(), reply.Extra["piece_id"])
}

func TestShutdownDisconnectsEveryone(t *testing.T) {
	l := NewLobby("TEST", testLogger(), testTimings())
	ch1 := newFakeChannel()
	_, done1, err := l.Join(ch1)
	require.NoError(t, err)
	ch2 := newFakeChannel()
	_, done2, err := l.Join(ch2)
	require.NoError(t, err)

	l.Shutdown()

	code, reason := ch1.waitClosed(t)
	assert.Equal(t, protocol.StatusLobbyShutdown, code)
	assert.Equal(t, "lobby shutting down", reason)
	ch2.waitClosed(t)

	select {
	case <-done1:
	case <-time.After(2 * time.Second):
		t.Fatal("poll task for player 1 never exited")
	}
	select {
	case <-done2:
	case <-time.After(2 * time.Second):
		t.Fatal("poll task for player 2 never exited")
	}

	assert.Equal(t, StateShutdown, l.State())
	assert.False(t, l.Joinable())
	assert.Equal(t, 0, l.PlayerCount())

	_, _, err = l.Join(newFakeChannel())
	assert.ErrorIs(t, err, ErrNotJoinable)

	l.Shutdown()
	assert.Equal(t, StateShutdown, l.State())
}
