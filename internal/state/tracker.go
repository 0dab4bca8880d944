package state

import (
	"context"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"
)

const stripeCount = 256

// Phase is the state of a window bucket.
type Phase int

const (
	// Accumulating buckets are collecting entries below their threshold.
	Accumulating Phase = iota
	// Triggered buckets crossed their threshold on the last observation and
	// have been reset, so the next observation starts Accumulating again.
	Triggered
)

func (p Phase) String() string {
	switch p {
	case Accumulating:
		return "accumulating"
	case Triggered:
		return "triggered"
	default:
		return "unknown"
	}
}

// Observation is the outcome of Tracker.Observe.
type Observation struct {
	Phase Phase
	// Window is the pruned window that was evaluated, including the new entry.
	Window []Entry
}

// Tracker serializes read-modify-write cycles on a WindowStore per key, so
// that two events for the same bucket can never both see the window just
// below threshold.
type Tracker struct {
	store   WindowStore
	stripes [stripeCount]sync.Mutex
}

func NewTracker(store WindowStore) *Tracker {
	return &Tracker{store: store}
}

// Observe appends e to the window for key and asks trigger whether the
// window crossed its threshold. A triggered bucket is always reset.
func (t *Tracker) Observe(ctx context.Context, key string, e Entry, span time.Duration, trigger func(window []Entry) bool) (Observation, error) {
	mu := t.stripe(key)
	mu.Lock()
	defer mu.Unlock()

	window, err := t.store.Append(ctx, key, e, span)
	if err != nil {
		return Observation{}, err
	}

	if !trigger(window) {
		return Observation{Phase: Accumulating, Window: window}, nil
	}

	if err := t.store.Reset(ctx, key); err != nil {
		return Observation{}, err
	}
	return Observation{Phase: Triggered, Window: window}, nil
}

// Reset drops a bucket under its stripe lock.
func (t *Tracker) Reset(ctx context.Context, key string) error {
	mu := t.stripe(key)
	mu.Lock()
	defer mu.Unlock()
	return t.store.Reset(ctx, key)
}

// Sweep evicts idle buckets from the underlying store.
func (t *Tracker) Sweep(ctx context.Context, now time.Time, idle time.Duration) (int, error) {
	return t.store.Sweep(ctx, now, idle)
}

func (t *Tracker) stripe(key string) *sync.Mutex {
	return &t.stripes[murmur3.Sum32([]byte(key))%stripeCount]
}
