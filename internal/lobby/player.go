// internal/lobby/player.go
package lobby

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/shovegame/shove/internal/models"
	"github.com/shovegame/shove/internal/protocol"
)

// writeTimeout bounds a single frame write so one stuck client cannot stall
// a broadcast.
const writeTimeout = 5 * time.Second

// Channel is a player's connection as the lobby sees it. The lobby only ever
// exchanges protocol messages and close codes; the WebSocket stays behind
// this seam so tests can drive a lobby without a real socket.
type Channel interface {
	Send(ctx context.Context, msg *protocol.Message) error
	Receive(ctx context.Context) (*protocol.Message, error)
	Close(code websocket.StatusCode, reason string) error
}

// WSChannel adapts a websocket connection to the Channel interface.
type WSChannel struct {
	conn *websocket.Conn
}

func NewWSChannel(conn *websocket.Conn) *WSChannel {
	return &WSChannel{conn: conn}
}

// Send marshals msg and writes it as one text frame.
func (c *WSChannel) Send(ctx context.Context, msg *protocol.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(writeCtx, websocket.MessageText, data)
}

// Receive reads one frame and decodes it. Anything that is not a text frame
// holding a protocol message comes back as a *protocol.DecodeError.
func (c *WSChannel) Receive(ctx context.Context) (*protocol.Message, error) {
	msgType, data, err := c.conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	if msgType != websocket.MessageText {
		return nil, &protocol.DecodeError{Cause: fmt.Errorf("unexpected %v frame", msgType)}
	}
	return protocol.Decode(data)
}

func (c *WSChannel) Close(code websocket.StatusCode, reason string) error {
	return c.conn.Close(code, reason)
}

// Player is one seat in a lobby. ID and Number are public identity;
// SessionID is the private reconnect secret and only ever travels in the
// owner's server_hello.
type Player struct {
	ID        uuid.UUID
	Number    int
	SessionID uuid.UUID

	mu         sync.Mutex
	channel    Channel
	cancelPoll context.CancelFunc
}

func newPlayer(number int, ch Channel) *Player {
	return &Player{
		ID:        uuid.New(),
		Number:    number,
		SessionID: uuid.New(),
		channel:   ch,
	}
}

func (p *Player) Info() models.PlayerInfo {
	return models.PlayerInfo{ID: p.ID, Number: p.Number}
}

// Channel returns the player's current connection.
func (p *Player) Channel() Channel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel
}

// attach installs a connection and its poll task's cancel handle, cancelling
// any previous poll task first (the replaced task exits silently).
func (p *Player) attach(ch Channel, cancel context.CancelFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelPoll != nil {
		p.cancelPoll()
	}
	p.channel = ch
	p.cancelPoll = cancel
}

// stopPoll cancels the player's poll task without touching the channel.
func (p *Player) stopPoll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelPoll != nil {
		p.cancelPoll()
		p.cancelPoll = nil
	}
}

func (p *Player) send(ctx context.Context, msg *protocol.Message) error {
	return p.Channel().Send(ctx, msg)
}
