// internal/models/board.go
package models

import (
	"encoding/json"
	"fmt"
)

// TileType distinguishes walkable floor from holes in the platform.
type TileType string

const (
	TileTypeVoid  TileType = "void"
	TileTypeFloor TileType = "floor"
)

// OffBoard reports whether a piece standing here would fall off.
func (t TileType) OffBoard() bool {
	return t != TileTypeFloor
}

// UnmarshalJSON rejects values outside the closed tile set.
func (t *TileType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch TileType(s) {
	case TileTypeVoid, TileTypeFloor:
		*t = TileType(s)
		return nil
	}
	return fmt.Errorf("invalid tile type %q", s)
}

// Tile is one cell of a client-defined platform.
type Tile struct {
	Position  Position `json:"position"`
	TextureID int      `json:"texture_id"`
	TileType  TileType `json:"tile_type"`
}

// BoardPlatform is the platform layout a host submits with host_start_game
// and the server echoes back in server_start_game.
type BoardPlatform struct {
	Tiles []Tile `json:"tiles"`
}
