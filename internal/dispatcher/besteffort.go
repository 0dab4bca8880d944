package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go-modguard/internal/metrics"
	"go-modguard/internal/platform"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// BestEffort runs side effects whose failure must never affect the
// countermeasure that triggered them. Each kind of side effect has its own
// per-guild rate limit, so chatty kinds cannot starve the others.
type BestEffort struct {
	logger *slog.Logger
	limit  rate.Limit
	burst  int

	mu       sync.Mutex
	limiters *expirable.LRU[string, *rate.Limiter]
}

// NewBestEffort allows perSecond side effects of each kind per guild with
// the given burst. A non-positive perSecond disables limiting.
func NewBestEffort(logger *slog.Logger, perSecond float64, burst int) *BestEffort {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	return &BestEffort{
		logger:   logger,
		limit:    limit,
		burst:    burst,
		limiters: expirable.NewLRU[string, *rate.Limiter](4096, nil, 10*time.Minute),
	}
}

// Do runs fn and reports whether it succeeded. Errors and panics are logged
// and counted, never returned. An empty guildID bypasses the limiter.
func (b *BestEffort) Do(ctx context.Context, kind, guildID string, fn func(ctx context.Context) error) (ok bool) {
	if guildID != "" && !b.limiter(guildID, kind).Allow() {
		b.logger.Warn("side effect dropped by rate limit", "kind", kind, "guild", guildID)
		metrics.Notifications.WithLabelValues(kind, "limited").Inc()
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("side effect panicked", "kind", kind, "guild", guildID, "err", fmt.Sprint(r))
			metrics.Notifications.WithLabelValues(kind, "failed").Inc()
			ok = false
		}
	}()

	if err := fn(ctx); err != nil {
		if platform.IsIgnorable(err) {
			b.logger.Debug("side effect not applicable", "kind", kind, "guild", guildID, "err", err)
			metrics.Notifications.WithLabelValues(kind, "ignored").Inc()
		} else {
			b.logger.Warn("side effect failed", "kind", kind, "guild", guildID, "err", err)
			metrics.Notifications.WithLabelValues(kind, "failed").Inc()
		}
		return false
	}

	metrics.Notifications.WithLabelValues(kind, "sent").Inc()
	return true
}

func (b *BestEffort) limiter(guildID, kind string) *rate.Limiter {
	key := guildID + ":" + kind

	b.mu.Lock()
	defer b.mu.Unlock()

	if l, ok := b.limiters.Get(key); ok {
		return l
	}
	l := rate.NewLimiter(b.limit, b.burst)
	b.limiters.Add(key, l)
	return l
}
