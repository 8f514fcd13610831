// internal/models/general.go
package models

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Direction is a cardinal movement direction on the grid. The vertical axis
// is screen-oriented: up decreases y, down increases y.
type Direction string

const (
	DirectionUp    Direction = "up"
	DirectionDown  Direction = "down"
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
)

// Opposite returns the direction pointing the other way.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionUp:
		return DirectionDown
	case DirectionDown:
		return DirectionUp
	case DirectionLeft:
		return DirectionRight
	case DirectionRight:
		return DirectionLeft
	}
	return d
}

// UnmarshalJSON rejects values outside the closed direction set.
func (d *Direction) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch Direction(s) {
	case DirectionUp, DirectionDown, DirectionLeft, DirectionRight:
		*d = Direction(s)
		return nil
	}
	return fmt.Errorf("invalid direction %q", s)
}

// PieceAction is what a player asks a piece to do in one round.
type PieceAction string

const (
	ActionNone      PieceAction = "no_action"
	ActionMoveUp    PieceAction = "move_up"
	ActionMoveDown  PieceAction = "move_down"
	ActionMoveLeft  PieceAction = "move_left"
	ActionMoveRight PieceAction = "move_right"
)

// AsDirection maps a movement action to its direction. The second return is
// false only for ActionNone.
func (a PieceAction) AsDirection() (Direction, bool) {
	switch a {
	case ActionMoveUp:
		return DirectionUp, true
	case ActionMoveDown:
		return DirectionDown, true
	case ActionMoveLeft:
		return DirectionLeft, true
	case ActionMoveRight:
		return DirectionRight, true
	}
	return "", false
}

// UnmarshalJSON rejects values outside the closed action set.
func (a *PieceAction) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch PieceAction(s) {
	case ActionNone, ActionMoveUp, ActionMoveDown, ActionMoveLeft, ActionMoveRight:
		*a = PieceAction(s)
		return nil
	}
	return fmt.Errorf("invalid piece action %q", s)
}

// Position is a grid coordinate. Comparable, so it keys board maps directly.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Offset returns the position moved steps cells in the given direction.
func (p Position) Offset(d Direction, steps int) Position {
	switch d {
	case DirectionUp:
		return Position{p.X, p.Y - steps}
	case DirectionDown:
		return Position{p.X, p.Y + steps}
	case DirectionLeft:
		return Position{p.X - steps, p.Y}
	case DirectionRight:
		return Position{p.X + steps, p.Y}
	}
	return p
}

// PlayerPiecePosition is the wire snapshot of a single piece.
type PlayerPiecePosition struct {
	PlayerID uuid.UUID `json:"player_id"`
	PieceID  uuid.UUID `json:"piece_id"`
	Position Position  `json:"position"`
}

// PlayerMove is one entry of a player_moves submission.
type PlayerMove struct {
	PieceID uuid.UUID   `json:"piece_id"`
	Action  PieceAction `json:"action"`
}

// GameOver reports the end of a game. A nil winner means a draw: the last
// pieces eliminated each other.
type GameOver struct {
	WinnerPlayerID *uuid.UUID `json:"winner_player_id"`
}

// PlayerInfo is the public identity of a lobby member. The session secret is
// deliberately not part of it.
type PlayerInfo struct {
	ID     uuid.UUID `json:"id"`
	Number int       `json:"number"`
}
