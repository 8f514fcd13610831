// internal/models/timeline.go
package models

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

const (
	OutcomeTypePush         = "push"
	OutcomeTypeMoveConflict = "move_conflict"
	OutcomeTypePushConflict = "push_conflict"
)

// PushOutcome moves the pusher and every victim one cell in Direction.
type PushOutcome struct {
	PusherPieceID  uuid.UUID   `json:"pusher_piece_id"`
	VictimPieceIDs []uuid.UUID `json:"victim_piece_ids"`
	Direction      Direction   `json:"direction"`
}

// MoveConflictOutcome cancels the moves of pieces converging on one cell.
// Nothing moves.
type MoveConflictOutcome struct {
	PieceIDs       []uuid.UUID `json:"piece_ids"`
	CollisionPoint Position    `json:"collision_point"`
}

// PushConflictOutcome cancels the moves of pushers whose chains collided,
// either head-on or by pushing the same victim. Nothing moves.
type PushConflictOutcome struct {
	PieceIDs       []uuid.UUID `json:"piece_ids"`
	CollisionPoint *Position   `json:"collision_point"`
}

// Outcome is a closed tagged union; exactly one branch is non-nil. On the
// wire it is {"type": tag, "payload": {...}}.
type Outcome struct {
	Push         *PushOutcome
	MoveConflict *MoveConflictOutcome
	PushConflict *PushConflictOutcome
}

type outcomeEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	var (
		tag     string
		payload any
	)
	switch {
	case o.Push != nil:
		tag, payload = OutcomeTypePush, o.Push
	case o.MoveConflict != nil:
		tag, payload = OutcomeTypeMoveConflict, o.MoveConflict
	case o.PushConflict != nil:
		tag, payload = OutcomeTypePushConflict, o.PushConflict
	default:
		return nil, fmt.Errorf("timeline outcome has no payload")
	}
	return json.Marshal(struct {
		Type    string `json:"type"`
		Payload any    `json:"payload"`
	}{tag, payload})
}

func (o *Outcome) UnmarshalJSON(data []byte) error {
	var env outcomeEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	*o = Outcome{}
	switch env.Type {
	case OutcomeTypePush:
		o.Push = &PushOutcome{}
		return json.Unmarshal(env.Payload, o.Push)
	case OutcomeTypeMoveConflict:
		o.MoveConflict = &MoveConflictOutcome{}
		return json.Unmarshal(env.Payload, o.MoveConflict)
	case OutcomeTypePushConflict:
		o.PushConflict = &PushConflictOutcome{}
		return json.Unmarshal(env.Payload, o.PushConflict)
	}
	return fmt.Errorf("unknown timeline outcome type %q", env.Type)
}

// TimelineEventAction records the move that involved a piece in an event.
type TimelineEventAction struct {
	PlayerID uuid.UUID   `json:"player_id"`
	PieceID  uuid.UUID   `json:"piece_id"`
	Action   PieceAction `json:"action"`
}

// TimelineEvent is one step of a round resolution: the consumed actions and
// the outcomes they produced, in resolution order.
type TimelineEvent struct {
	Actions  []TimelineEventAction `json:"actions"`
	Outcomes []Outcome             `json:"outcomes"`
}
