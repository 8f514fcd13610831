// internal/game/board.go
package game

import (
	"bytes"
	"fmt"
	"math/rand"
	"sort"

	"github.com/google/uuid"

	"github.com/shovegame/shove/internal/models"
)

// PieceInfo identifies a piece and its owner.
type PieceInfo struct {
	PlayerID uuid.UUID
	PieceID  uuid.UUID
}

// IllegalMoveError rejects a whole player_moves submission. It names the
// first offending piece.
type IllegalMoveError struct {
	PieceID uuid.UUID
	Reason  string
}

func (e *IllegalMoveError) Error() string {
	return fmt.Sprintf("illegal move for piece %s: %s", e.PieceID, e.Reason)
}

// Board holds the authoritative piece positions of one running game. It is
// not safe for concurrent use; the owning lobby serializes access.
type Board struct {
	platform Platform
	pieceAt  map[models.Position]PieceInfo
	posOf    map[uuid.UUID]models.Position
}

func NewBoard(platform Platform) *Board {
	return &Board{
		platform: platform,
		pieceAt:  make(map[models.Position]PieceInfo),
		posOf:    make(map[uuid.UUID]models.Position),
	}
}

// Platform returns the platform the board was built on.
func (b *Board) Platform() Platform { return b.platform }

// AddPiece creates a piece for playerID at pos. Off-board and taken cells
// are rejected.
func (b *Board) AddPiece(playerID uuid.UUID, pos models.Position) (uuid.UUID, error) {
	if !b.platform.IsOnBoard(pos) {
		return uuid.Nil, fmt.Errorf("position (%d,%d) is off the board", pos.X, pos.Y)
	}
	if _, taken := b.pieceAt[pos]; taken {
		return uuid.Nil, fmt.Errorf("position (%d,%d) is already taken", pos.X, pos.Y)
	}
	return b.createPiece(playerID, pos), nil
}

func (b *Board) createPiece(playerID uuid.UUID, pos models.Position) uuid.UUID {
	pieceID := uuid.New()
	b.pieceAt[pos] = PieceInfo{PlayerID: playerID, PieceID: pieceID}
	b.posOf[pieceID] = pos
	return pieceID
}

// PieceByID returns the piece snapshot for id.
func (b *Board) PieceByID(id uuid.UUID) (models.PlayerPiecePosition, bool) {
	pos, ok := b.posOf[id]
	if !ok {
		return models.PlayerPiecePosition{}, false
	}
	info := b.pieceAt[pos]
	return models.PlayerPiecePosition{PlayerID: info.PlayerID, PieceID: info.PieceID, Position: pos}, true
}

// PieceAt returns the piece resting at pos.
func (b *Board) PieceAt(pos models.Position) (models.PlayerPiecePosition, bool) {
	info, ok := b.pieceAt[pos]
	if !ok {
		return models.PlayerPiecePosition{}, false
	}
	return models.PlayerPiecePosition{PlayerID: info.PlayerID, PieceID: info.PieceID, Position: pos}, true
}

// Pieces lists every piece ordered by piece id, for stable wire output.
func (b *Board) Pieces() []models.PlayerPiecePosition {
	pieces := make([]models.PlayerPiecePosition, 0, len(b.pieceAt))
	for pos, info := range b.pieceAt {
		pieces = append(pieces, models.PlayerPiecePosition{PlayerID: info.PlayerID, PieceID: info.PieceID, Position: pos})
	}
	sort.Slice(pieces, func(i, j int) bool {
		return lessUUID(pieces[i].PieceID, pieces[j].PieceID)
	})
	return pieces
}

// ValidateMoves checks a submission against piece existence and ownership
// and converts it into action records. The whole submission is rejected with
// a *IllegalMoveError when any entry fails.
func (b *Board) ValidateMoves(playerID uuid.UUID, moves []models.PlayerMove) ([]models.TimelineEventAction, error) {
	actions := make([]models.TimelineEventAction, 0, len(moves))
	for _, move := range moves {
		piece, ok := b.PieceByID(move.PieceID)
		if !ok {
			return nil, &IllegalMoveError{PieceID: move.PieceID, Reason: "piece not found"}
		}
		if piece.PlayerID != playerID {
			return nil, &IllegalMoveError{PieceID: move.PieceID, Reason: "piece not owned by this player"}
		}
		actions = append(actions, models.TimelineEventAction{
			PlayerID: piece.PlayerID,
			PieceID:  move.PieceID,
			Action:   move.Action,
		})
	}
	return actions, nil
}

// PerformMoves resolves one wave of simultaneous moves into an ordered list
// of timeline events. Identical move sets yield identical timelines no
// matter the input order.
func (b *Board) PerformMoves(validated []models.TimelineEventAction) []models.TimelineEvent {
	actionByPiece := make(map[uuid.UUID]models.TimelineEventAction, len(validated))
	dirOf := make(map[uuid.UUID]models.Direction, len(validated))
	for _, action := range validated {
		dir, ok := action.Action.AsDirection()
		if !ok {
			continue
		}
		actionByPiece[action.PieceID] = action
		dirOf[action.PieceID] = dir
	}

	events := []models.TimelineEvent{}
	for len(dirOf) > 0 {
		event, ok := b.performMoveEvent(actionByPiece, dirOf)
		if !ok {
			break
		}
		events = append(events, event)
	}
	return events
}

// PerformAllMoves resolves every player's full submission. A piece may queue
// several moves; the n-th queued move of every piece runs as one wave.
func (b *Board) PerformAllMoves(movesByPlayer map[uuid.UUID][]models.TimelineEventAction) []models.TimelineEvent {
	movesByPiece := make(map[uuid.UUID][]models.TimelineEventAction)
	for _, playerID := range sortedIDs(movesByPlayer) {
		for _, move := range movesByPlayer[playerID] {
			movesByPiece[move.PieceID] = append(movesByPiece[move.PieceID], move)
		}
	}

	maxQueued := 0
	for _, queue := range movesByPiece {
		if len(queue) > maxQueued {
			maxQueued = len(queue)
		}
	}

	events := []models.TimelineEvent{}
	pieceIDs := sortedIDs(movesByPiece)
	for wave := 0; wave < maxQueued; wave++ {
		moves := make([]models.TimelineEventAction, 0, len(pieceIDs))
		for _, pieceID := range pieceIDs {
			if queue := movesByPiece[pieceID]; wave < len(queue) {
				moves = append(moves, queue[wave])
			}
		}
		events = append(events, b.PerformMoves(moves)...)
	}
	return events
}

// pushChains maps each pusher to its chain: the pusher itself followed by
// the pieces it would shove.
type pushChains map[uuid.UUID][]uuid.UUID

// performMoveEvent consumes at least one queued move from dirOf and reports
// what happened as a single timeline event. ok is false once no chain can
// complete anymore (all moving pieces vanished).
func (b *Board) performMoveEvent(actionByPiece map[uuid.UUID]models.TimelineEventAction, dirOf map[uuid.UUID]models.Direction) (models.TimelineEvent, bool) {
	victimChainLength, chains := b.isolateCompleteChains(dirOf)
	if len(chains) == 0 {
		return models.TimelineEvent{}, false
	}

	event := models.TimelineEvent{
		Actions:  []models.TimelineEventAction{},
		Outcomes: []models.Outcome{},
	}
	consume := func(pieceID uuid.UUID) {
		event.Actions = append(event.Actions, actionByPiece[pieceID])
		delete(dirOf, pieceID)
	}

	headOn, manyToOne := b.findPushConflicts(chains, dirOf, victimChainLength)
	if len(headOn) > 0 {
		// Head-on collisions preempt everything else in this event.
		for _, conflict := range headOn {
			for _, pieceID := range conflict.PieceIDs {
				consume(pieceID)
			}
			event.Outcomes = append(event.Outcomes, models.Outcome{PushConflict: conflict})
		}
		return event, true
	}
	for _, conflict := range manyToOne {
		for _, pieceID := range conflict.PieceIDs {
			consume(pieceID)
			delete(chains, pieceID)
		}
		event.Outcomes = append(event.Outcomes, models.Outcome{PushConflict: conflict})
	}

	// Chains converging on the same empty cell cancel each other out.
	pushersByTarget := make(map[models.Position][]uuid.UUID)
	var targetOrder []models.Position
	for _, pusherID := range sortedIDs(chains) {
		target := b.posOf[pusherID].Offset(dirOf[pusherID], len(chains[pusherID]))
		if _, seen := pushersByTarget[target]; !seen {
			targetOrder = append(targetOrder, target)
		}
		pushersByTarget[target] = append(pushersByTarget[target], pusherID)
	}
	for _, target := range targetOrder {
		pushers := pushersByTarget[target]
		if len(pushers) < 2 {
			continue
		}
		for _, pieceID := range pushers {
			consume(pieceID)
			delete(chains, pieceID)
		}
		event.Outcomes = append(event.Outcomes, models.Outcome{
			MoveConflict: &models.MoveConflictOutcome{PieceIDs: pushers, CollisionPoint: target},
		})
	}

	// Whatever survived pushes.
	var pushes []*models.PushOutcome
	for _, pusherID := range sortedIDs(chains) {
		chain := chains[pusherID]
		push := &models.PushOutcome{
			PusherPieceID:  pusherID,
			VictimPieceIDs: append([]uuid.UUID{}, chain[1:]...),
			Direction:      dirOf[pusherID],
		}
		consume(pusherID)
		pushes = append(pushes, push)
		event.Outcomes = append(event.Outcomes, models.Outcome{Push: push})
	}
	b.executePushes(pushes)

	return event, true
}

// isolateCompleteChains grows every pusher's chain in lockstep, one cell per
// round, until the first round in which at least one chain reaches an empty
// cell (on-board or not). That round index is the victim chain length.
// Pushers whose piece vanished in an earlier event drop out of dirOf.
func (b *Board) isolateCompleteChains(dirOf map[uuid.UUID]models.Direction) (int, pushChains) {
	incomplete := make(pushChains, len(dirOf))
	complete := make(pushChains)

	victimChainLength := -1
	for len(dirOf) > 0 {
		victimChainLength++
		finished := false
		for _, pusherID := range sortedIDs(dirOf) {
			pos, alive := b.posOf[pusherID]
			if !alive {
				delete(dirOf, pusherID)
				delete(incomplete, pusherID)
				continue
			}
			chain, started := incomplete[pusherID]
			if !started {
				chain = []uuid.UUID{pusherID}
				incomplete[pusherID] = chain
			}
			victimPos := pos.Offset(dirOf[pusherID], victimChainLength+1)
			if victim, occupied := b.pieceAt[victimPos]; occupied {
				incomplete[pusherID] = append(chain, victim.PieceID)
				continue
			}
			complete[pusherID] = chain
			finished = true
		}
		if finished {
			break
		}
	}
	return victimChainLength, complete
}

// pieceIDPair keeps the discovery orientation of a pusher pair; dedup uses
// the canonical ordering.
type pieceIDPair struct{ a, b uuid.UUID }

func (p pieceIDPair) canonical() pieceIDPair {
	if lessUUID(p.b, p.a) {
		return pieceIDPair{p.b, p.a}
	}
	return p
}

// findPushConflicts scans the completed chains for pushers that ran into
// each other. A chain hitting another completed pusher truncates there; when
// the two move in opposite directions that is a head-on collision at
// distance victimChainLength/2. Chains sharing a victim at the same minimal
// depth form a many-to-one conflict. Only conflicts at the smallest recorded
// distance are returned, and head-on pairs preempt many-to-one groups.
func (b *Board) findPushConflicts(chains pushChains, dirOf map[uuid.UUID]models.Direction, victimChainLength int) (headOn, manyToOne []*models.PushConflictOutcome) {
	if victimChainLength == 0 {
		return nil, nil
	}

	globalMin := -1
	observe := func(distance int) {
		if globalMin < 0 || distance < globalMin {
			globalMin = distance
		}
	}

	headOnDistance := make(map[pieceIDPair]int)
	var headOnOrder []pieceIDPair

	type victimGroup struct {
		distance int
		pushers  []uuid.UUID
	}
	victimGroups := make(map[uuid.UUID]*victimGroup)
	var victimOrder []uuid.UUID

	for _, pusherID := range sortedIDs(chains) {
		chain := chains[pusherID]
		for idx := 1; idx < len(chain); idx++ {
			pieceID := chain[idx]
			if _, isPusher := chains[pieceID]; isPusher {
				// The chain can reach at most the cells before the other
				// pusher.
				chains[pusherID] = chain[:idx]
				pair := pieceIDPair{pusherID, pieceID}
				if _, handled := headOnDistance[pair.canonical()]; handled {
					break
				}
				if dirOf[pusherID] != dirOf[pieceID].Opposite() {
					break
				}
				distance := victimChainLength / 2
				headOnDistance[pair.canonical()] = distance
				headOnOrder = append(headOnOrder, pair)
				observe(distance)
				break
			}

			group, tracked := victimGroups[pieceID]
			if !tracked {
				group = &victimGroup{distance: -1}
				victimGroups[pieceID] = group
				victimOrder = append(victimOrder, pieceID)
			}
			if group.distance < 0 || idx < group.distance {
				group.distance = idx
				group.pushers = []uuid.UUID{pusherID}
			} else if idx == group.distance {
				group.pushers = append(group.pushers, pusherID)
			}
			if len(group.pushers) >= 2 {
				observe(group.distance)
			}
		}
	}

	if globalMin < 0 {
		return nil, nil
	}
	for _, pair := range headOnOrder {
		if headOnDistance[pair.canonical()] != globalMin {
			continue
		}
		headOn = append(headOn, &models.PushConflictOutcome{
			PieceIDs: []uuid.UUID{pair.a, pair.b},
		})
	}
	if len(headOn) > 0 {
		return headOn, nil
	}
	for _, victimID := range victimOrder {
		group := victimGroups[victimID]
		if group.distance != globalMin || len(group.pushers) < 2 {
			continue
		}
		manyToOne = append(manyToOne, &models.PushConflictOutcome{PieceIDs: group.pushers})
	}
	return nil, manyToOne
}

// executePushes applies every push of an event atomically. All moves are
// staged and validated before the board is touched, so an invariant
// violation (a programmer bug) panics without corrupting state. Pieces whose
// new position is off the platform are deleted.
func (b *Board) executePushes(pushes []*models.PushOutcome) {
	if len(pushes) == 0 {
		return
	}

	staged := make(map[models.Position]PieceInfo)
	movedFrom := make(map[uuid.UUID]models.Position)
	for _, push := range pushes {
		ids := make([]uuid.UUID, 0, 1+len(push.VictimPieceIDs))
		ids = append(ids, push.PusherPieceID)
		ids = append(ids, push.VictimPieceIDs...)
		for _, pieceID := range ids {
			oldPos, alive := b.posOf[pieceID]
			if !alive {
				panic(fmt.Sprintf("push resolution: piece %s is not on the board", pieceID))
			}
			if _, dup := movedFrom[pieceID]; dup {
				panic(fmt.Sprintf("push resolution: piece %s moved twice in one event", pieceID))
			}
			movedFrom[pieceID] = oldPos
			newPos := oldPos.Offset(push.Direction, 1)
			if !b.platform.IsOnBoard(newPos) {
				continue // falls off
			}
			if _, taken := staged[newPos]; taken {
				panic(fmt.Sprintf("push resolution: two pieces pushed onto (%d,%d)", newPos.X, newPos.Y))
			}
			staged[newPos] = b.pieceAt[oldPos]
		}
	}
	for newPos := range staged {
		if info, taken := b.pieceAt[newPos]; taken {
			if _, moving := movedFrom[info.PieceID]; !moving {
				panic(fmt.Sprintf("push resolution: (%d,%d) is occupied by a resting piece", newPos.X, newPos.Y))
			}
		}
	}

	for pieceID, oldPos := range movedFrom {
		delete(b.pieceAt, oldPos)
		delete(b.posOf, pieceID)
	}
	for newPos, info := range staged {
		b.pieceAt[newPos] = info
		b.posOf[info.PieceID] = newPos
	}
}

// PlacePieces creates piecesPerPlayer pieces for every player at random free
// cells. When the platform is too small each player gets fewer pieces, and
// when not even one piece per player fits, a random subset of players gets
// one piece each.
func (b *Board) PlacePieces(rng *rand.Rand, playerIDs []uuid.UUID, piecesPerPlayer int) {
	if capacity, known := b.platform.OnBoardCount(); known && len(playerIDs) > 0 {
		if maxPerPlayer := capacity / len(playerIDs); piecesPerPlayer > maxPerPlayer {
			piecesPerPlayer = maxPerPlayer
		}
		if piecesPerPlayer == 0 {
			shuffled := append([]uuid.UUID{}, playerIDs...)
			rng.Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})
			playerIDs = shuffled[:capacity]
			piecesPerPlayer = 1
		}
	}

	exclude := make(map[models.Position]bool, len(b.pieceAt)+len(playerIDs)*piecesPerPlayer)
	for pos := range b.pieceAt {
		exclude[pos] = true
	}
	for _, playerID := range playerIDs {
		for i := 0; i < piecesPerPlayer; i++ {
			pos, ok := b.platform.RandomPosition(rng, exclude)
			if !ok {
				panic("piece placement ran out of free cells")
			}
			exclude[pos] = true
			b.createPiece(playerID, pos)
		}
	}
}

// GameOverStatus reports the game result: a winner once a single player owns
// all remaining pieces, a draw once none remain, nil while the game is on.
func (b *Board) GameOverStatus() *models.GameOver {
	owners := make(map[uuid.UUID]struct{})
	for _, info := range b.pieceAt {
		owners[info.PlayerID] = struct{}{}
	}
	switch len(owners) {
	case 0:
		return &models.GameOver{}
	case 1:
		for playerID := range owners {
			return &models.GameOver{WinnerPlayerID: &playerID}
		}
	}
	return nil
}

func lessUUID(a, b uuid.UUID) bool { return bytes.Compare(a[:], b[:]) < 0 }

// sortedIDs returns the map's keys in a stable order. Board resolution must
// not depend on Go's randomized map iteration.
func sortedIDs[V any](m map[uuid.UUID]V) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return lessUUID(ids[i], ids[j]) })
	return ids
}
