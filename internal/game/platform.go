// internal/game/platform.go
package game

import (
	"math/rand"
	"sort"

	"github.com/shovegame/shove/internal/models"
)

// Platform decides which grid cells belong to the playable board. Pieces
// only rest on on-board cells; a push target beyond the platform deletes the
// pushed piece.
type Platform interface {
	// IsOnBoard reports whether a piece can rest at pos.
	IsOnBoard(pos models.Position) bool
	// OnBoardCount returns the number of on-board cells; ok is false when
	// the platform is unbounded.
	OnBoardCount() (n int, ok bool)
	// RandomPosition picks an on-board cell not in exclude using rng.
	// ok is false when no such cell exists.
	RandomPosition(rng *rand.Rand, exclude map[models.Position]bool) (pos models.Position, ok bool)
}

// placementWindow bounds random placement on an unbounded platform.
const placementWindow = 16

// InfinitePlatform treats every cell as on-board.
type InfinitePlatform struct{}

func (InfinitePlatform) IsOnBoard(models.Position) bool { return true }

func (InfinitePlatform) OnBoardCount() (int, bool) { return 0, false }

func (InfinitePlatform) RandomPosition(rng *rand.Rand, exclude map[models.Position]bool) (models.Position, bool) {
	span := 2 * placementWindow
	for i := 0; i < span*span; i++ {
		pos := models.Position{X: rng.Intn(span) - placementWindow, Y: rng.Intn(span) - placementWindow}
		if !exclude[pos] {
			return pos, true
		}
	}
	return models.Position{}, false
}

// RectanglePlatform is a solid axis-aligned floor with inclusive bounds.
type RectanglePlatform struct {
	TopLeft     models.Position
	BottomRight models.Position
}

func (p RectanglePlatform) width() int  { return p.BottomRight.X - p.TopLeft.X + 1 }
func (p RectanglePlatform) height() int { return p.BottomRight.Y - p.TopLeft.Y + 1 }

func (p RectanglePlatform) IsOnBoard(pos models.Position) bool {
	return pos.X >= p.TopLeft.X && pos.X <= p.BottomRight.X &&
		pos.Y >= p.TopLeft.Y && pos.Y <= p.BottomRight.Y
}

func (p RectanglePlatform) OnBoardCount() (int, bool) {
	return p.width() * p.height(), true
}

func (p RectanglePlatform) RandomPosition(rng *rand.Rand, exclude map[models.Position]bool) (models.Position, bool) {
	for i := 0; i < 32; i++ {
		pos := models.Position{
			X: p.TopLeft.X + rng.Intn(p.width()),
			Y: p.TopLeft.Y + rng.Intn(p.height()),
		}
		if !exclude[pos] {
			return pos, true
		}
	}
	// Crowded board: enumerate the free cells instead of sampling further.
	free := make([]models.Position, 0)
	for y := p.TopLeft.Y; y <= p.BottomRight.Y; y++ {
		for x := p.TopLeft.X; x <= p.BottomRight.X; x++ {
			if pos := (models.Position{X: x, Y: y}); !exclude[pos] {
				free = append(free, pos)
			}
		}
	}
	if len(free) == 0 {
		return models.Position{}, false
	}
	return free[rng.Intn(len(free))], true
}

// ClientDefinedPlatform is built from the tile list the host submits with
// host_start_game. Only floor tiles are on-board; void tiles and cells
// without a tile are not.
type ClientDefinedPlatform struct {
	tileAt map[models.Position]models.TileType
	floor  []models.Position // sorted for deterministic scans
}

func NewClientDefinedPlatform(model models.BoardPlatform) *ClientDefinedPlatform {
	p := &ClientDefinedPlatform{
		tileAt: make(map[models.Position]models.TileType, len(model.Tiles)),
	}
	for _, tile := range model.Tiles {
		p.tileAt[tile.Position] = tile.TileType
	}
	for pos, tileType := range p.tileAt {
		if !tileType.OffBoard() {
			p.floor = append(p.floor, pos)
		}
	}
	sort.Slice(p.floor, func(i, j int) bool {
		if p.floor[i].Y != p.floor[j].Y {
			return p.floor[i].Y < p.floor[j].Y
		}
		return p.floor[i].X < p.floor[j].X
	})
	return p
}

func (p *ClientDefinedPlatform) IsOnBoard(pos models.Position) bool {
	tileType, ok := p.tileAt[pos]
	return ok && !tileType.OffBoard()
}

func (p *ClientDefinedPlatform) OnBoardCount() (int, bool) {
	return len(p.floor), true
}

func (p *ClientDefinedPlatform) RandomPosition(rng *rand.Rand, exclude map[models.Position]bool) (models.Position, bool) {
	free := make([]models.Position, 0, len(p.floor))
	for _, pos := range p.floor {
		if !exclude[pos] {
			free = append(free, pos)
		}
	}
	if len(free) == 0 {
		return models.Position{}, false
	}
	return free[rng.Intn(len(free))], true
}
