package state

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemWindowPrunesOutsideSpan(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := NewMemWindowStore()

	base := time.Unix(1700000000, 0)
	span := 10 * time.Second

	w, err := s.Append(ctx, "k", Entry{At: base}, span)
	require.NoError(t, err)
	assert.Len(w, 1)

	w, err = s.Append(ctx, "k", Entry{At: base.Add(5 * time.Second)}, span)
	require.NoError(t, err)
	assert.Len(w, 2)

	w, err = s.Append(ctx, "k", Entry{At: base.Add(11 * time.Second), Tag: 7}, span)
	require.NoError(t, err)
	require.Len(t, w, 2)
	assert.Equal(base.Add(5*time.Second), w[0].At)
	assert.Equal(uint64(7), w[1].Tag)

	// other keys are independent
	w, err = s.Append(ctx, "other", Entry{At: base.Add(11 * time.Second)}, span)
	require.NoError(t, err)
	assert.Len(w, 1)

	require.NoError(t, s.Reset(ctx, "k"))
	require.NoError(t, s.Reset(ctx, "missing"))
	w, err = s.Append(ctx, "k", Entry{At: base.Add(12 * time.Second)}, span)
	require.NoError(t, err)
	assert.Len(w, 1)
}

func TestMemWindowSweep(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := NewMemWindowStore()

	base := time.Unix(1700000000, 0)
	_, err := s.Append(ctx, "stale", Entry{At: base}, 5*time.Second)
	require.NoError(t, err)
	_, err = s.Append(ctx, "fresh", Entry{At: base.Add(9 * time.Second)}, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(2, s.Len())

	n, err := s.Sweep(ctx, base.Add(10*time.Second), time.Minute)
	require.NoError(t, err)
	assert.Equal(1, n)
	assert.Equal(1, s.Len())

	// a span longer than idle keeps its live entries
	_, err = s.Append(ctx, "long", Entry{At: base}, time.Hour)
	require.NoError(t, err)
	n, err = s.Sweep(ctx, base.Add(30*time.Minute), 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(1, n)
	assert.Equal(1, s.Len())

	w, err := s.Append(ctx, "long", Entry{At: base.Add(31 * time.Minute)}, time.Hour)
	require.NoError(t, err)
	assert.Len(w, 2)

	n, err = s.Sweep(ctx, base.Add(2*time.Hour), 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(1, n)
	assert.Equal(0, s.Len())
}

func TestTrackerResetsOnTrigger(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	tr := NewTracker(NewMemWindowStore())

	base := time.Unix(1700000000, 0)
	atThree := func(w []Entry) bool { return len(w) >= 3 }

	var phases []Phase
	for i := 0; i < 7; i++ {
		obs, err := tr.Observe(ctx, "g:a:channel_delete", Entry{At: base.Add(time.Duration(i) * time.Second)}, time.Minute, atThree)
		require.NoError(t, err)
		phases = append(phases, obs.Phase)
	}
	assert.Equal([]Phase{
		Accumulating, Accumulating, Triggered,
		Accumulating, Accumulating, Triggered,
		Accumulating,
	}, phases)
}

func TestTrackerThresholdOne(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(NewMemWindowStore())

	obs, err := tr.Observe(ctx, "k", Entry{At: time.Now()}, time.Second, func(w []Entry) bool { return len(w) >= 1 })
	require.NoError(t, err)
	assert.Equal(t, Triggered, obs.Phase)
	assert.Len(t, obs.Window, 1)
}

func TestTrackerConcurrentSingleTrigger(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(NewMemWindowStore())

	const events = 50
	const threshold = 10
	now := time.Now()

	var mu sync.Mutex
	triggered := 0
	var wg sync.WaitGroup
	for i := 0; i < events; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			obs, err := tr.Observe(ctx, "k", Entry{At: now}, time.Hour, func(w []Entry) bool { return len(w) >= threshold })
			assert.NoError(t, err)
			if obs.Phase == Triggered {
				mu.Lock()
				triggered++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, events/threshold, triggered)
}

func TestParseMember(t *testing.T) {
	e, err := parseMember("1700000000123456789:42:5f1b0c7e-0000-0000-0000-000000000000")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000123456789), e.At.UnixNano())
	assert.Equal(t, uint64(42), e.Tag)

	_, err = parseMember("garbage")
	assert.Error(t, err)
}

func TestRedisWindowStore(t *testing.T) {
	redisURL := os.Getenv("MODGUARD_TEST_REDIS_URL")
	if redisURL == "" {
		t.Skip("MODGUARD_TEST_REDIS_URL not set")
	}
	assert := assert.New(t)
	ctx := context.Background()

	s, err := NewRedisWindowStore(redisURL)
	require.NoError(t, err)

	key := "test:" + time.Now().Format(time.RFC3339Nano)
	defer s.Reset(ctx, key)

	base := time.Now()
	for i := 0; i < 3; i++ {
		_, err := s.Append(ctx, key, Entry{At: base.Add(time.Duration(i) * time.Second), Tag: 1}, 10*time.Second)
		require.NoError(t, err)
	}
	w, err := s.Append(ctx, key, Entry{At: base.Add(12 * time.Second), Tag: 2}, 10*time.Second)
	require.NoError(t, err)
	assert.Len(w, 2)
	assert.Equal(uint64(2), w[1].Tag)
}
