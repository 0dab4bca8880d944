package watchdog

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go-modguard/internal/metrics"
)

// Watchdog tracks heartbeats from long-running loops (the window sweeper,
// the gateway session) and flags components that stop reporting.
type Watchdog struct {
	mu            sync.RWMutex
	components    map[string]*ComponentHealth
	checkInterval time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

type ComponentHealth struct {
	Name          string
	LastHeartbeat atomic.Int64
	IsHealthy     atomic.Bool
	Threshold     time.Duration
}

func NewWatchdog(checkInterval time.Duration, logger *slog.Logger) *Watchdog {
	return &Watchdog{
		components:    make(map[string]*ComponentHealth),
		checkInterval: checkInterval,
		logger:        logger.With("component", "watchdog"),
		now:           time.Now,
	}
}

// RegisterComponent starts tracking name. A component that has never sent a
// heartbeat counts as healthy.
func (w *Watchdog) RegisterComponent(name string, threshold time.Duration) {
	comp := &ComponentHealth{Name: name, Threshold: threshold}
	comp.IsHealthy.Store(true)

	w.mu.Lock()
	w.components[name] = comp
	w.mu.Unlock()
	metrics.ComponentHealthy.WithLabelValues(name).Set(1)
}

func (w *Watchdog) Heartbeat(name string) {
	w.mu.RLock()
	comp, exists := w.components[name]
	w.mu.RUnlock()
	if !exists {
		return
	}

	comp.LastHeartbeat.Store(w.now().UnixNano())
	if !comp.IsHealthy.Swap(true) {
		w.logger.Info("component recovered", "name", name)
		metrics.ComponentHealthy.WithLabelValues(name).Set(1)
	}
}

// Run checks heartbeats every interval until ctx is done.
func (w *Watchdog) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.checkAllComponents()
		}
	}
}

func (w *Watchdog) checkAllComponents() {
	now := w.now().UnixNano()

	w.mu.RLock()
	defer w.mu.RUnlock()
	for name, comp := range w.components {
		lastBeat := comp.LastHeartbeat.Load()
		if lastBeat == 0 {
			continue
		}

		elapsed := time.Duration(now - lastBeat)
		if elapsed > comp.Threshold && comp.IsHealthy.Swap(false) {
			w.logger.Error("component unhealthy", "name", name, "since_heartbeat", elapsed)
			metrics.ComponentHealthy.WithLabelValues(name).Set(0)
		}
	}
}

func (w *Watchdog) IsHealthy(name string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if comp, exists := w.components[name]; exists {
		return comp.IsHealthy.Load()
	}
	return false
}

func (w *Watchdog) GetStatus() map[string]bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	status := make(map[string]bool, len(w.components))
	for name, comp := range w.components {
		status[name] = comp.IsHealthy.Load()
	}
	return status
}
