// internal/models/timeline_test.go
package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimelineEventRoundTrip(t *testing.T) {
	pusher := uuid.New()
	victim := uuid.New()
	blockedA := uuid.New()
	blockedB := uuid.New()

	event := TimelineEvent{
		Actions: []TimelineEventAction{
			{PlayerID: uuid.New(), PieceID: pusher, Action: ActionMoveRight},
			{PlayerID: uuid.New(), PieceID: blockedA, Action: ActionMoveUp},
			{PlayerID: uuid.New(), PieceID: blockedB, Action: ActionMoveDown},
		},
		Outcomes: []Outcome{
			{PushConflict: &PushConflictOutcome{PieceIDs: []uuid.UUID{blockedA, blockedB}}},
			{MoveConflict: &MoveConflictOutcome{PieceIDs: []uuid.UUID{blockedA, blockedB}, CollisionPoint: Position{2, 1}}},
			{Push: &PushOutcome{PusherPieceID: pusher, VictimPieceIDs: []uuid.UUID{victim}, Direction: DirectionRight}},
		},
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded TimelineEvent
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, event, decoded)
}

func TestOutcomeWireShape(t *testing.T) {
	out := Outcome{PushConflict: &PushConflictOutcome{PieceIDs: []uuid.UUID{}}}

	data, err := json.Marshal(out)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.JSONEq(t, `"push_conflict"`, string(raw["type"]))

	var payload map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw["payload"], &payload))
	// Head-on conflicts carry no collision point; the field is still present.
	assert.JSONEq(t, `null`, string(payload["collision_point"]))
}

func TestOutcomeRejectsUnknownType(t *testing.T) {
	var out Outcome
	err := json.Unmarshal([]byte(`{"type":"teleport","payload":{}}`), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "teleport")
}

func TestOutcomeRejectsEmptyUnion(t *testing.T) {
	_, err := json.Marshal(Outcome{})
	require.Error(t, err)
}
