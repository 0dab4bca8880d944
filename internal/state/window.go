package state

import (
	"context"
	"strings"
	"time"
)

// Entry is one observation in a sliding window. Tag is an opaque value the
// caller can compare on (the spam detector stores a content hash there).
type Entry struct {
	At  time.Time
	Tag uint64
}

// WindowStore keeps per-key sliding windows. Implementations prune entries
// older than span on every Append, so a returned window never holds entries
// outside its span.
type WindowStore interface {
	// Append adds e to the window for key and returns the pruned window,
	// oldest first, including e.
	Append(ctx context.Context, key string, e Entry, span time.Duration) ([]Entry, error)
	// Reset drops the window for key. Resetting an absent key is not an error.
	Reset(ctx context.Context, key string) error
	// Sweep evicts windows that are empty or have been idle for longer than
	// both idle and their own span, and returns how many were removed.
	Sweep(ctx context.Context, now time.Time, idle time.Duration) (int, error)
}

// Key joins key parts with ':'.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

func prune(entries []Entry, now time.Time, span time.Duration) []Entry {
	cutoff := now.Add(-span)
	kept := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.At.Before(cutoff) {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}
