package dispatcher

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go-modguard/internal/decision"
	"go-modguard/internal/models"

	"github.com/stretchr/testify/assert"
)

type slowRunner struct {
	delay   time.Duration
	running atomic.Int32
	peak    atomic.Int32
	mu      sync.Mutex
	seen    []string
}

func (r *slowRunner) Execute(ctx context.Context, cm *decision.Countermeasure) Result {
	n := r.running.Add(1)
	defer r.running.Add(-1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(r.delay)
	r.mu.Lock()
	r.seen = append(r.seen, cm.GuildID)
	r.mu.Unlock()
	return Result{Status: StatusCommitted}
}

func TestDispatcherDoesNotBlockAndBoundsConcurrency(t *testing.T) {
	assert := assert.New(t)
	runner := &slowRunner{delay: 50 * time.Millisecond}
	d := NewDispatcher(runner, 2, time.Minute, testLogger())

	var results atomic.Int32
	d.OnResult = func(cm *decision.Countermeasure, res Result) {
		results.Add(1)
	}

	start := time.Now()
	for _, g := range []string{"g1", "g2", "g3", "g4", "g5", "g6"} {
		d.Submit(context.Background(), decision.New(decision.DetectorAutomod, "t", g, "u", models.ActionWarn, time.Now()))
	}
	assert.Less(time.Since(start), 40*time.Millisecond)

	d.Wait()
	assert.Equal(int32(6), results.Load())
	assert.LessOrEqual(runner.peak.Load(), int32(2))
	assert.Len(runner.seen, 6)
}

func TestDispatcherDetachesCancellation(t *testing.T) {
	runner := &slowRunner{delay: 10 * time.Millisecond}
	d := NewDispatcher(runner, 1, time.Minute, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	d.Submit(ctx, decision.New(decision.DetectorAutomod, "t", "g1", "u", models.ActionWarn, time.Now()))
	cancel()
	d.Submit(ctx, nil)
	d.Wait()

	assert.Len(t, runner.seen, 1)
}
