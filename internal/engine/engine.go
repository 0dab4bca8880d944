// Package engine is the detection context: it owns the detectors and the
// dispatcher and exposes the three ingest entry points the gateway calls.
package engine

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"go-modguard/internal/decision"
	"go-modguard/internal/detectors"
	"go-modguard/internal/metrics"
	"go-modguard/internal/models"
	"go-modguard/internal/state"
	"go-modguard/internal/watchdog"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/spaolacci/murmur3"
)

const SweeperComponent = "sweeper"

// Submitter schedules a countermeasure for execution.
type Submitter interface {
	Submit(ctx context.Context, cm *decision.Countermeasure)
}

type Config struct {
	SweepInterval time.Duration
	WindowIdle    time.Duration
	DedupeSize    int
	DedupeTTL     time.Duration
}

type Deps struct {
	AntiNuke  *detectors.AntiNuke
	Patterns  *detectors.PatternMatcher
	Spam      *detectors.SpamDetector
	Escalator *decision.Escalator
	Tracker   *state.Tracker
	Locks     *decision.SubjectLocks
	Dispatch  Submitter
	// Watchdog is optional.
	Watchdog *watchdog.Watchdog
	Logger   *slog.Logger
}

type Engine struct {
	antinuke  *detectors.AntiNuke
	patterns  *detectors.PatternMatcher
	spam      *detectors.SpamDetector
	escalator *decision.Escalator
	tracker   *state.Tracker
	locks     *decision.SubjectLocks
	dispatch  Submitter
	watchdog  *watchdog.Watchdog
	logger    *slog.Logger

	cfg Config

	seenMu sync.Mutex
	seen   *expirable.LRU[uint64, struct{}]

	now func() time.Time
}

func New(deps Deps, cfg Config) *Engine {
	if cfg.DedupeSize <= 0 {
		cfg.DedupeSize = 8192
	}
	if cfg.DedupeTTL <= 0 {
		cfg.DedupeTTL = 2 * time.Minute
	}
	return &Engine{
		antinuke:  deps.AntiNuke,
		patterns:  deps.Patterns,
		spam:      deps.Spam,
		escalator: deps.Escalator,
		tracker:   deps.Tracker,
		locks:     deps.Locks,
		dispatch:  deps.Dispatch,
		watchdog:  deps.Watchdog,
		logger:    deps.Logger.With("component", "engine"),
		cfg:       cfg,
		seen:      expirable.NewLRU[uint64, struct{}](cfg.DedupeSize, nil, cfg.DedupeTTL),
		now:       time.Now,
	}
}

// OnAdministrativeEvent feeds a destructive admin action into the anti-nuke
// windows.
func (e *Engine) OnAdministrativeEvent(ctx context.Context, ev models.AdminEvent) {
	logger := e.logger.With("guild", ev.GuildID, "actor", ev.ActorID, "kind", ev.Kind)
	e.guard(ctx, "admin", logger, func() error {
		if !ev.Timestamp.IsZero() && e.duplicate(adminKey(ev)) {
			metrics.EventDuplicates.WithLabelValues("admin").Inc()
			logger.Debug("dropping duplicate admin event")
			return nil
		}
		if ev.Timestamp.IsZero() {
			ev.Timestamp = e.now()
		}

		cm, err := e.antinuke.Observe(ctx, ev)
		if err != nil {
			return err
		}
		e.dispatch.Submit(ctx, cm)
		return nil
	})
}

// OnMessage runs the pattern rules and then, if none matched, the spam
// heuristics. Bot authors and direct messages are ignored.
func (e *Engine) OnMessage(ctx context.Context, msg models.Message) {
	if msg.AuthorBot || msg.GuildID == "" {
		return
	}
	logger := e.logger.With("guild", msg.GuildID, "actor", msg.AuthorID, "message", msg.ID)
	e.guard(ctx, "message", logger, func() error {
		if msg.ID != "" && e.duplicate(messageKey(msg.ID)) {
			metrics.EventDuplicates.WithLabelValues("message").Inc()
			logger.Debug("dropping duplicate message")
			return nil
		}
		if msg.Timestamp.IsZero() {
			msg.Timestamp = e.now()
		}

		var errs []error
		cm, err := e.patterns.Observe(ctx, msg)
		if err != nil {
			// a broken rule store must not disable spam detection
			errs = append(errs, fmt.Errorf("pattern rules: %w", err))
		}
		if cm != nil {
			e.dispatch.Submit(ctx, cm)
			return nil
		}

		cm, err = e.spam.Observe(ctx, msg)
		if err != nil {
			errs = append(errs, fmt.Errorf("spam heuristics: %w", err))
		}
		e.dispatch.Submit(ctx, cm)
		return errors.Join(errs...)
	})
}

// OnInfractionRecorded evaluates escalation rules for a subject whose
// infraction was recorded outside the automod path, such as a manual warn.
func (e *Engine) OnInfractionRecorded(ctx context.Context, guildID, subjectID string) {
	logger := e.logger.With("guild", guildID, "subject", subjectID)
	e.guard(ctx, "infraction", logger, func() error {
		cm, err := e.escalator.Evaluate(ctx, guildID, subjectID)
		if err != nil {
			return err
		}
		e.dispatch.Submit(ctx, cm)
		return nil
	})
}

// guard runs fn, recording metrics and keeping errors and panics from
// reaching the gateway event loop.
func (e *Engine) guard(ctx context.Context, kind string, logger *slog.Logger, fn func() error) {
	start := time.Now()
	metrics.EventsProcessed.WithLabelValues(kind).Inc()
	defer func() {
		if r := recover(); r != nil {
			metrics.EventErrors.WithLabelValues(kind).Inc()
			logger.ErrorContext(ctx, "event handler exception", "type", kind, "err", r, "stack", string(debug.Stack()))
		}
		metrics.EventDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	if err := fn(); err != nil {
		metrics.EventErrors.WithLabelValues(kind).Inc()
		logger.ErrorContext(ctx, "failed to process event", "type", kind, "err", err)
	}
}

// duplicate reports whether key was seen within the dedupe ttl, marking it
// as seen either way.
func (e *Engine) duplicate(key uint64) bool {
	e.seenMu.Lock()
	defer e.seenMu.Unlock()
	if e.seen.Contains(key) {
		return true
	}
	e.seen.Add(key, struct{}{})
	return false
}

func adminKey(ev models.AdminEvent) uint64 {
	h := murmur3.New64()
	h.Write([]byte("admin\x00" + ev.GuildID + "\x00" + ev.ActorID + "\x00" + string(ev.Kind) + "\x00"))
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(ev.Timestamp.UnixNano()))
	h.Write(ts[:])
	return h.Sum64()
}

func messageKey(id string) uint64 {
	return murmur3.Sum64([]byte("message\x00" + id))
}

// Run sweeps idle windows and expired subject locks until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	interval := e.cfg.SweepInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.Sweep(ctx)
		}
	}
}

// Sweep runs one eviction pass.
func (e *Engine) Sweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("sweeper exception", "err", r, "stack", string(debug.Stack()))
		}
	}()

	windows, err := e.tracker.Sweep(ctx, e.now(), e.cfg.WindowIdle)
	if err != nil {
		e.logger.Warn("window sweep failed", "err", err)
	}
	locks := e.locks.Sweep()

	metrics.WindowsEvicted.Add(float64(windows))
	metrics.LocksExpired.Add(float64(locks))
	if windows > 0 || locks > 0 {
		e.logger.Debug("sweep finished", "windows_evicted", windows, "locks_expired", locks)
	}
	if e.watchdog != nil {
		e.watchdog.Heartbeat(SweeperComponent)
	}
}
