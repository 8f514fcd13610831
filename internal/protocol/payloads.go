// internal/protocol/payloads.go
package protocol

import (
	"github.com/google/uuid"

	"github.com/shovegame/shove/internal/models"
)

// Type tags of every protocol message.
const (
	TypeServerHello       = "server_hello"
	TypePlayerJoined      = "player_joined"
	TypePlayerLeft        = "player_left"
	TypeServerStartGame   = "server_start_game"
	TypeRoundStart        = "round_start"
	TypeRoundResult       = "round_result"
	TypeHostStartGame     = "host_start_game"
	TypePlayerMoves       = "player_moves"
	TypeReadyForNextRound = "ready_for_next_round"
	TypeError             = "error"
)

// ServerHello is the first message a connection receives. session_id is the
// private reconnect secret; it is never sent to anyone else.
type ServerHello struct {
	SessionID    uuid.UUID           `json:"session_id"`
	IsHost       bool                `json:"is_host"`
	Player       models.PlayerInfo   `json:"player"`
	OtherPlayers []models.PlayerInfo `json:"other_players"`
}

func (*ServerHello) MessageType() string { return TypeServerHello }

// PlayerJoined announces a new or returning player to everyone else.
type PlayerJoined struct {
	Player    models.PlayerInfo `json:"player"`
	Reconnect bool              `json:"reconnect"`
}

func (*PlayerJoined) MessageType() string { return TypePlayerJoined }

// PlayerLeft announces that a player is gone for good (the reconnect window
// expired or the lobby shut down).
type PlayerLeft struct {
	Player models.PlayerInfo `json:"player"`
}

func (*PlayerLeft) MessageType() string { return TypePlayerLeft }

// ServerStartGame tells every player the game begins: the platform in play,
// the seating order, the starting pieces, and how long until the first round
// (seconds).
type ServerStartGame struct {
	Platform     models.BoardPlatform         `json:"platform"`
	Players      []models.PlayerInfo          `json:"players"`
	Pieces       []models.PlayerPiecePosition `json:"pieces"`
	RoundStartIn float64                      `json:"round_start_in"`
}

func (*ServerStartGame) MessageType() string { return TypeServerStartGame }

// RoundStart opens the move submission window. round_duration is in seconds.
type RoundStart struct {
	RoundNumber   int                          `json:"round_number"`
	RoundDuration float64                      `json:"round_duration"`
	BoardState    []models.PlayerPiecePosition `json:"board_state"`
}

func (*RoundStart) MessageType() string { return TypeRoundStart }

// RoundResult carries the resolved timeline. game_over stays null while the
// game continues.
type RoundResult struct {
	Timeline []models.TimelineEvent `json:"timeline"`
	GameOver *models.GameOver       `json:"game_over"`
}

func (*RoundResult) MessageType() string { return TypeRoundResult }

// HostStartGame is the host's request to start playing on the given platform.
type HostStartGame struct {
	Platform models.BoardPlatform `json:"platform"`
}

func (*HostStartGame) MessageType() string { return TypeHostStartGame }

// PlayerMoves submits one move per piece for the current round. Resubmitting
// replaces the earlier submission.
type PlayerMoves struct {
	Moves []models.PlayerMove `json:"moves"`
}

func (*PlayerMoves) MessageType() string { return TypePlayerMoves }

// ReadyForNextRound signals the client finished animating the round result.
type ReadyForNextRound struct{}

func (*ReadyForNextRound) MessageType() string { return TypeReadyForNextRound }

// Error payload type values.
const (
	ErrForbidden   = "protocol:forbidden"
	ErrFlow        = "protocol:flow"
	ErrIllegalMove = "game:illegal-move"
)

// ErrorPayload is sent as a reply when a message cannot be acted on. The
// connection stays open; fatal problems close the socket with a 4xxx code
// instead.
type ErrorPayload struct {
	Type    string                 `json:"type"`
	Message string                 `json:"message,omitempty"`
	Extra   map[string]interface{} `json:"extra,omitempty"`
}

func (*ErrorPayload) MessageType() string { return TypeError }

// MustBeHost rejects a host-only message from a non-host.
func MustBeHost() *ErrorPayload {
	return &ErrorPayload{Type: ErrForbidden, Message: "only the host can do this"}
}

// InvalidLobbyState rejects a message that is valid in some other lobby state.
func InvalidLobbyState() *ErrorPayload {
	return &ErrorPayload{Type: ErrFlow, Message: "message not valid in the current lobby state"}
}

// UnhandledMessage rejects a message the lobby never acts on.
func UnhandledMessage() *ErrorPayload {
	return &ErrorPayload{Type: ErrFlow, Message: "message type not handled"}
}

// IllegalMove rejects a whole player_moves submission, naming the offending
// piece.
func IllegalMove(pieceID uuid.UUID, message string) *ErrorPayload {
	return &ErrorPayload{
		Type:    ErrIllegalMove,
		Message: message,
		Extra:   map[string]interface{}{"piece_id": pieceID.String()},
	}
}
