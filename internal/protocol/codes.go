// internal/protocol/codes.go
package protocol

import "github.com/coder/websocket"

// Custom WebSocket close codes. The 40xx range rejects a connection attempt,
// the 41xx range ends an established session.
const (
	StatusLobbyNotJoinable websocket.StatusCode = 4001 // Lobby exists but a game is running.
	StatusLobbyNotFound    websocket.StatusCode = 4002 // No lobby with that id or join code.
	StatusSessionExpired   websocket.StatusCode = 4003 // session_id given but no player holds it.

	StatusLobbyShutdown    websocket.StatusCode = 4101 // Lobby was destroyed.
	StatusInvalidMessage   websocket.StatusCode = 4102 // Frame failed protocol decoding.
	StatusNoMovesSubmitted websocket.StatusCode = 4103 // Player never submitted moves for a round.
)
