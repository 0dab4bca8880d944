package state

import (
	"context"
	"slices"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

type memWindow struct {
	entries []Entry
	span    time.Duration
	touched time.Time
}

// MemWindowStore is the default, process-local WindowStore.
type MemWindowStore struct {
	windows *xsync.MapOf[string, memWindow]
}

func NewMemWindowStore() *MemWindowStore {
	return &MemWindowStore{
		windows: xsync.NewMapOf[string, memWindow](),
	}
}

func (s *MemWindowStore) Append(ctx context.Context, key string, e Entry, span time.Duration) ([]Entry, error) {
	var out []Entry
	s.windows.Compute(key, func(w memWindow, _ bool) (memWindow, bool) {
		w.entries = prune(append(slices.Clone(w.entries), e), e.At, span)
		slices.SortStableFunc(w.entries, func(a, b Entry) int { return a.At.Compare(b.At) })
		w.span = span
		w.touched = e.At
		out = slices.Clone(w.entries)
		return w, false
	})
	return out, nil
}

func (s *MemWindowStore) Reset(ctx context.Context, key string) error {
	s.windows.Delete(key)
	return nil
}

func (s *MemWindowStore) Sweep(ctx context.Context, now time.Time, idle time.Duration) (int, error) {
	var keys []string
	s.windows.Range(func(key string, _ memWindow) bool {
		keys = append(keys, key)
		return true
	})

	evicted := 0
	for _, key := range keys {
		s.windows.Compute(key, func(w memWindow, loaded bool) (memWindow, bool) {
			if !loaded {
				return w, true
			}
			w.entries = prune(w.entries, now, w.span)
			if len(w.entries) == 0 || now.Sub(w.touched) > max(idle, w.span) {
				evicted++
				return w, true
			}
			return w, false
		})
	}
	return evicted, nil
}

// Len returns the number of live windows.
func (s *MemWindowStore) Len() int {
	return s.windows.Size()
}
