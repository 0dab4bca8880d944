package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go-modguard/internal/decision"
	"go-modguard/internal/metrics"

	"golang.org/x/sync/semaphore"
)

// Runner executes a single countermeasure.
type Runner interface {
	Execute(ctx context.Context, cm *decision.Countermeasure) Result
}

// Dispatcher runs each countermeasure on its own goroutine so that a slow
// platform call for one guild never holds up ingestion for the others.
type Dispatcher struct {
	runner  Runner
	sem     *semaphore.Weighted
	timeout time.Duration
	logger  *slog.Logger

	wg sync.WaitGroup

	// OnResult, if set, is called after every execution.
	OnResult func(cm *decision.Countermeasure, res Result)
}

func NewDispatcher(runner Runner, maxInFlight int, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	return &Dispatcher{
		runner:  runner,
		sem:     semaphore.NewWeighted(int64(maxInFlight)),
		timeout: timeout,
		logger:  logger,
	}
}

// Submit schedules cm and returns immediately. The execution context keeps
// ctx's values but not its cancellation.
func (d *Dispatcher) Submit(ctx context.Context, cm *decision.Countermeasure) {
	if cm == nil {
		return
	}

	d.wg.Add(1)
	metrics.DispatchInFlight.Inc()
	go func() {
		defer d.wg.Done()
		defer metrics.DispatchInFlight.Dec()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("countermeasure execution exception", "err", fmt.Sprint(r),
					"incident", cm.IncidentID, "guild", cm.GuildID, "subject", cm.SubjectID)
			}
		}()

		runCtx := context.WithoutCancel(ctx)
		if d.timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(runCtx, d.timeout)
			defer cancel()
		}

		if err := d.sem.Acquire(runCtx, 1); err != nil {
			d.logger.Error("countermeasure dropped waiting for a slot", "err", err,
				"incident", cm.IncidentID, "guild", cm.GuildID, "subject", cm.SubjectID)
			return
		}
		defer d.sem.Release(1)

		res := d.runner.Execute(runCtx, cm)
		if d.OnResult != nil {
			d.OnResult(cm, res)
		}
	}()
}

// Wait blocks until every submitted countermeasure finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
