// internal/lobby/collector.go
package lobby

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Result is a snapshot of a collector: what every player handed in and who
// never did.
type Result[T any] struct {
	Collected map[uuid.UUID]T
	Missing   map[uuid.UUID]struct{}
}

// Collector gathers one item per expected player. Collecting again replaces
// the earlier item; removing a player satisfies the collector without an
// item. Waiters wake once nobody is outstanding.
type Collector[T any] struct {
	mu          sync.Mutex
	outstanding map[uuid.UUID]struct{}
	collected   map[uuid.UUID]T
	done        chan struct{}
	closed      bool
}

func NewCollector[T any](expected []uuid.UUID) *Collector[T] {
	c := &Collector[T]{
		outstanding: make(map[uuid.UUID]struct{}, len(expected)),
		collected:   make(map[uuid.UUID]T, len(expected)),
		done:        make(chan struct{}),
	}
	for _, id := range expected {
		c.outstanding[id] = struct{}{}
	}
	c.mu.Lock()
	c.checkDoneLocked()
	c.mu.Unlock()
	return c
}

func (c *Collector[T]) checkDoneLocked() {
	if len(c.outstanding) > 0 || c.closed {
		return
	}
	c.closed = true
	close(c.done)
}

// Collect stores the player's item and marks the player satisfied.
func (c *Collector[T]) Collect(playerID uuid.UUID, item T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.collected[playerID] = item
	delete(c.outstanding, playerID)
	c.checkDoneLocked()
}

// RemovePlayer marks the player satisfied without an item. Used when a
// player disconnects mid-collection.
func (c *Collector[T]) RemovePlayer(playerID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.outstanding, playerID)
	c.checkDoneLocked()
}

func (c *Collector[T]) snapshot() Result[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := Result[T]{
		Collected: make(map[uuid.UUID]T, len(c.collected)),
		Missing:   make(map[uuid.UUID]struct{}, len(c.outstanding)),
	}
	for id, item := range c.collected {
		result.Collected[id] = item
	}
	for id := range c.outstanding {
		result.Missing[id] = struct{}{}
	}
	return result
}

// WaitWithGrace waits the full delay even when everyone finishes early, so
// clients always get the whole submission window, and gives stragglers up to
// grace beyond it. Context cancellation returns an immediate snapshot.
func (c *Collector[T]) WaitWithGrace(ctx context.Context, delay, grace time.Duration) Result[T] {
	return c.wait(ctx, delay, delay+grace, true)
}

// WaitUpTo waits until everyone is satisfied or timeout elapses, whichever
// comes first.
func (c *Collector[T]) WaitUpTo(ctx context.Context, timeout time.Duration) Result[T] {
	return c.wait(ctx, 0, timeout, false)
}

func (c *Collector[T]) wait(ctx context.Context, minWait, maxWait time.Duration, enforceMin bool) Result[T] {
	start := time.Now()
	limit := time.NewTimer(maxWait)
	defer limit.Stop()

	select {
	case <-ctx.Done():
		return c.snapshot()
	case <-limit.C:
		return c.snapshot()
	case <-c.done:
	}

	if enforceMin {
		if remaining := minWait - time.Since(start); remaining > 0 {
			hold := time.NewTimer(remaining)
			defer hold.Stop()
			select {
			case <-ctx.Done():
			case <-hold.C:
			}
		}
	}
	return c.snapshot()
}
