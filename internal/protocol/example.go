// internal/protocol/example.go
package protocol

import (
	"math/rand"

	"github.com/google/uuid"

	"github.com/shovegame/shove/internal/models"
)

// Example builds a structurally valid message of the given type from a seeded
// generator. The result satisfies the wire schema but is not necessarily a
// state a real game could reach. ok is false for unknown types.
func Example(msgType string, seed int64) (msg *Message, ok bool) {
	rng := rand.New(rand.NewSource(seed))
	g := exampleGen{rng: rng}

	switch msgType {
	case TypeServerHello:
		return New(&ServerHello{
			SessionID:    g.uuid(),
			IsHost:       g.rng.Intn(2) == 0,
			Player:       g.playerInfo(1),
			OtherPlayers: []models.PlayerInfo{g.playerInfo(2), g.playerInfo(3)},
		}), true
	case TypePlayerJoined:
		return New(&PlayerJoined{Player: g.playerInfo(2), Reconnect: g.rng.Intn(2) == 0}), true
	case TypePlayerLeft:
		return New(&PlayerLeft{Player: g.playerInfo(2)}), true
	case TypeServerStartGame:
		return New(&ServerStartGame{
			Platform:     g.platform(),
			Players:      []models.PlayerInfo{g.playerInfo(1), g.playerInfo(2)},
			Pieces:       g.pieces(4),
			RoundStartIn: 5,
		}), true
	case TypeRoundStart:
		return New(&RoundStart{
			RoundNumber:   1 + g.rng.Intn(9),
			RoundDuration: 10,
			BoardState:    g.pieces(4),
		}), true
	case TypeRoundResult:
		return New(&RoundResult{Timeline: g.timeline(), GameOver: nil}), true
	case TypeHostStartGame:
		return New(&HostStartGame{Platform: g.platform()}), true
	case TypePlayerMoves:
		return New(&PlayerMoves{Moves: []models.PlayerMove{
			{PieceID: g.uuid(), Action: models.ActionMoveUp},
			{PieceID: g.uuid(), Action: models.ActionNone},
		}}), true
	case TypeReadyForNextRound:
		return New(&ReadyForNextRound{}), true
	case TypeError:
		return New(MustBeHost()), true
	}
	return nil, false
}

type exampleGen struct {
	rng *rand.Rand
}

func (g *exampleGen) uuid() uuid.UUID {
	var id uuid.UUID
	g.rng.Read(id[:])
	id[6] = (id[6] & 0x0f) | 0x40
	id[8] = (id[8] & 0x3f) | 0x80
	return id
}

func (g *exampleGen) position() models.Position {
	return models.Position{X: g.rng.Intn(8), Y: g.rng.Intn(8)}
}

func (g *exampleGen) playerInfo(number int) models.PlayerInfo {
	return models.PlayerInfo{ID: g.uuid(), Number: number}
}

func (g *exampleGen) platform() models.BoardPlatform {
	tiles := make([]models.Tile, 0, 9)
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			tileType := models.TileTypeFloor
			if g.rng.Intn(4) == 0 {
				tileType = models.TileTypeVoid
			}
			tiles = append(tiles, models.Tile{
				Position: models.Position{X: x, Y: y},
				TileType: tileType,
			})
		}
	}
	return models.BoardPlatform{Tiles: tiles}
}

func (g *exampleGen) pieces(n int) []models.PlayerPiecePosition {
	out := make([]models.PlayerPiecePosition, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.PlayerPiecePosition{
			PlayerID: g.uuid(),
			PieceID:  g.uuid(),
			Position: g.position(),
		})
	}
	return out
}

func (g *exampleGen) timeline() []models.TimelineEvent {
	pusher, victim, other := g.uuid(), g.uuid(), g.uuid()
	return []models.TimelineEvent{
		{
			Actions: []models.TimelineEventAction{
				{PlayerID: g.uuid(), PieceID: pusher, Action: models.ActionMoveRight},
			},
			Outcomes: []models.Outcome{
				{Push: &models.PushOutcome{
					PusherPieceID:  pusher,
					VictimPieceIDs: []uuid.UUID{victim},
					Direction:      models.DirectionRight,
				}},
			},
		},
		{
			Actions: []models.TimelineEventAction{
				{PlayerID: g.uuid(), PieceID: other, Action: models.ActionMoveUp},
			},
			Outcomes: []models.Outcome{
				{MoveConflict: &models.MoveConflictOutcome{
					PieceIDs:       []uuid.UUID{other, g.uuid()},
					CollisionPoint: g.position(),
				}},
			},
		},
	}
}
