package detectors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go-modguard/internal/database"
	"go-modguard/internal/decision"
	"go-modguard/internal/models"
	"go-modguard/internal/state"
)

// DefaultAntiNukeTimeout is used when the punishment is a timeout.
const DefaultAntiNukeTimeout = 24 * time.Hour

type AntiNukeConfigStore interface {
	GetAntiNukeConfig(ctx context.Context, guildID string) (*models.AntiNukeConfig, error)
}

// GuildIdentity resolves the bot and guild owner ids.
type GuildIdentity interface {
	BotID() string
	GuildOwnerID(ctx context.Context, guildID string) (string, error)
}

// AntiNuke counts destructive administrative actions per (guild, actor,
// kind) and fires once each time a window reaches its threshold.
type AntiNuke struct {
	store    AntiNukeConfigStore
	identity GuildIdentity
	tracker  *state.Tracker
	logger   *slog.Logger

	Timeout time.Duration
}

func NewAntiNuke(store AntiNukeConfigStore, identity GuildIdentity, tracker *state.Tracker, logger *slog.Logger) *AntiNuke {
	return &AntiNuke{
		store:    store,
		identity: identity,
		tracker:  tracker,
		logger:   logger.With("detector", decision.DetectorAntiNuke),
		Timeout:  DefaultAntiNukeTimeout,
	}
}

// Observe records ev and returns a countermeasure if it completed a breach.
func (a *AntiNuke) Observe(ctx context.Context, ev models.AdminEvent) (*decision.Countermeasure, error) {
	cfg, err := a.store.GetAntiNukeConfig(ctx, ev.GuildID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading antinuke config: %w", err)
	}
	if !cfg.Enabled || ev.ActorID == "" || ev.ActorID == a.identity.BotID() || cfg.IsWhitelisted(ev.ActorID) {
		return nil, nil
	}

	threshold := cfg.Threshold(ev.Kind)
	if threshold == 0 || cfg.Window() <= 0 {
		return nil, nil
	}

	owner, err := a.identity.GuildOwnerID(ctx, ev.GuildID)
	if err != nil {
		a.logger.Warn("could not resolve guild owner", "guild", ev.GuildID, "err", err)
	} else if owner == ev.ActorID {
		return nil, nil
	}

	at := ev.Timestamp
	if at.IsZero() {
		at = time.Now()
	}

	key := state.Key("antinuke", ev.GuildID, ev.ActorID, string(ev.Kind))
	obs, err := a.tracker.Observe(ctx, key, state.Entry{At: at}, cfg.Window(), func(w []state.Entry) bool {
		return len(w) >= threshold
	})
	if err != nil {
		return nil, fmt.Errorf("tracking %s: %w", ev.Kind, err)
	}
	if obs.Phase != state.Triggered {
		return nil, nil
	}

	punishment := cfg.Punishment
	if !punishment.Mutates() {
		punishment = models.ActionStripRoles
	}

	cm := decision.New(decision.DetectorAntiNuke, string(ev.Kind), ev.GuildID, ev.ActorID, punishment, at)
	cm.Reason = fmt.Sprintf("Anti-nuke: %s (%d within %s)", ev.Kind.DisplayName(), len(obs.Window), cfg.Window())
	cm.Notify = decision.NotifyOwner
	cm.Count = len(obs.Window)
	cm.Window = cfg.Window()
	if punishment == models.ActionTimeout || punishment == models.ActionMute {
		cm.Duration = a.Timeout
	}

	a.logger.Info("anti-nuke threshold reached",
		"guild", ev.GuildID, "actor", ev.ActorID, "kind", ev.Kind, "count", cm.Count, "threshold", threshold)
	return cm, nil
}
