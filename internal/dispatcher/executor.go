package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go-modguard/internal/database"
	"go-modguard/internal/decision"
	"go-modguard/internal/metrics"
	"go-modguard/internal/models"
	"go-modguard/internal/notifier"
	"go-modguard/internal/platform"
)

// DefaultTimeout is used for mute/timeout countermeasures without a duration.
const DefaultTimeout = 10 * time.Minute

// Status is the outcome of one countermeasure.
type Status int

const (
	StatusSkipped Status = iota
	StatusFailed
	StatusCommitted
)

func (s Status) String() string {
	switch s {
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	case StatusCommitted:
		return "success"
	default:
		return "unknown"
	}
}

type Result struct {
	Status       Status
	Note         string
	InfractionID int64
	Err          error
	// FollowUp is the escalation triggered by the infraction this
	// countermeasure recorded, if any.
	FollowUp *Result
}

// Store is the slice of the database the executor writes to.
type Store interface {
	AddInfraction(ctx context.Context, inf *models.Infraction) error
	LogAudit(ctx context.Context, entry *models.AuditEntry) error
	GetGuildConfig(ctx context.Context, guildID string) (*models.GuildConfig, error)
}

// EscalateFunc evaluates escalation rules after an infraction is recorded.
type EscalateFunc func(ctx context.Context, guildID, subjectID string) (*decision.Countermeasure, error)

type ExecutorConfig struct {
	// WarningTTL is how long automod channel warnings stay up. Zero keeps them.
	WarningTTL time.Duration
	// NotifyPerSecond and NotifyBurst limit notifications per guild.
	NotifyPerSecond float64
	NotifyBurst     int
}

// Executor is the shared sink for every detector: it applies the primary
// action and then, only if that succeeded, runs the side effects.
type Executor struct {
	platform platform.Platform
	store    Store
	locks    *decision.SubjectLocks
	escalate EscalateFunc
	effects  *BestEffort
	logger   *slog.Logger

	warningTTL time.Duration
	now        func() time.Time
	afterFunc  func(d time.Duration, f func())
}

func NewExecutor(p platform.Platform, store Store, locks *decision.SubjectLocks, logger *slog.Logger, cfg ExecutorConfig) *Executor {
	return &Executor{
		platform:   p,
		store:      store,
		locks:      locks,
		effects:    NewBestEffort(logger, cfg.NotifyPerSecond, cfg.NotifyBurst),
		logger:     logger,
		warningTTL: cfg.WarningTTL,
		now:        time.Now,
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// SetEscalation installs the hook run after automod infractions. It must be
// called before the executor is used.
func (x *Executor) SetEscalation(fn EscalateFunc) {
	x.escalate = fn
}

// Execute runs cm under the subject's advisory lock. A subject that is
// already locked is skipped. The lock is kept until its ttl after a
// committed mutation, so a second detector firing right behind the first
// does not pile on.
func (x *Executor) Execute(ctx context.Context, cm *decision.Countermeasure) Result {
	start := time.Now()
	defer func() {
		metrics.CountermeasureDuration.WithLabelValues(string(cm.Detector)).Observe(time.Since(start).Seconds())
	}()

	if !x.locks.TryAcquire(cm.GuildID, cm.SubjectID) {
		x.logger.Info("countermeasure suppressed, subject already locked",
			"incident", cm.IncidentID, "detector", cm.Detector, "trigger", cm.Trigger,
			"guild", cm.GuildID, "subject", cm.SubjectID, "action", cm.Action)
		metrics.Countermeasures.WithLabelValues(string(cm.Detector), string(cm.Action), StatusSkipped.String()).Inc()
		return Result{Status: StatusSkipped, Note: "subject locked"}
	}

	res := x.run(ctx, cm)
	hold := res.Status == StatusCommitted && cm.Action.Mutates()

	if res.Status == StatusCommitted && cm.Escalate && res.InfractionID != 0 && x.escalate != nil {
		if follow := x.followUp(ctx, cm); follow != nil {
			res.FollowUp = follow
			hold = hold || follow.Status == StatusCommitted
		}
	}

	if !hold {
		x.locks.Release(cm.GuildID, cm.SubjectID)
	}
	return res
}

// followUp runs escalation inline, under the lock the caller already holds.
func (x *Executor) followUp(ctx context.Context, cm *decision.Countermeasure) *Result {
	next, err := x.escalate(ctx, cm.GuildID, cm.SubjectID)
	if err != nil {
		x.logger.Error("escalation evaluation failed", "guild", cm.GuildID, "subject", cm.SubjectID, "err", err)
		return nil
	}
	if next == nil {
		return nil
	}
	res := x.run(ctx, next)
	return &res
}

func (x *Executor) run(ctx context.Context, cm *decision.Countermeasure) Result {
	logger := x.logger.With(
		"incident", cm.IncidentID,
		"detector", cm.Detector,
		"trigger", cm.Trigger,
		"guild", cm.GuildID,
		"subject", cm.SubjectID,
		"action", cm.Action,
	)
	metrics.Detections.WithLabelValues(string(cm.Detector), cm.Trigger).Inc()

	if cm.RequireMember {
		if note, ok := x.precheck(ctx, cm); !ok {
			logger.Info("countermeasure skipped", "why", note)
			metrics.Countermeasures.WithLabelValues(string(cm.Detector), string(cm.Action), StatusSkipped.String()).Inc()
			return Result{Status: StatusSkipped, Note: note}
		}
	}

	if cm.DeleteMessage && cm.MessageID != "" {
		x.effects.Do(ctx, "delete_message", "", func(ctx context.Context) error {
			return x.platform.DeleteMessage(ctx, cm.ChannelID, cm.MessageID)
		})
	}

	if err := x.apply(ctx, cm); err != nil {
		logger.Error("countermeasure failed", "err", err)
		metrics.Countermeasures.WithLabelValues(string(cm.Detector), string(cm.Action), StatusFailed.String()).Inc()
		x.recordAudit(ctx, cm, false, 0, logger)
		return Result{Status: StatusFailed, Err: err}
	}

	var infractionID int64
	if cm.RecordInfraction {
		inf := &models.Infraction{
			GuildID:     cm.GuildID,
			SubjectID:   cm.SubjectID,
			ModeratorID: x.platform.BotID(),
			Type:        cm.Action,
			Reason:      cm.Reason,
			Duration:    cm.Duration,
			CreatedAt:   x.now(),
		}
		if err := x.store.AddInfraction(ctx, inf); err != nil {
			logger.Error("failed to record infraction", "err", err)
		} else {
			infractionID = inf.ID
		}
	}

	x.notify(ctx, cm)
	x.recordAudit(ctx, cm, true, infractionID, logger)

	logger.Info("countermeasure applied", "reason", cm.Reason, "duration", cm.Duration, "infraction", infractionID)
	metrics.Countermeasures.WithLabelValues(string(cm.Detector), string(cm.Action), StatusCommitted.String()).Inc()
	return Result{Status: StatusCommitted, InfractionID: infractionID}
}

func (x *Executor) precheck(ctx context.Context, cm *decision.Countermeasure) (string, bool) {
	member, err := x.platform.IsMember(ctx, cm.GuildID, cm.SubjectID)
	if err != nil {
		return fmt.Sprintf("membership check failed: %v", err), false
	}
	if !member {
		return "subject is no longer a member", false
	}
	ok, err := x.platform.CanModerate(ctx, cm.GuildID, cm.SubjectID)
	if err != nil {
		return fmt.Sprintf("hierarchy check failed: %v", err), false
	}
	if !ok {
		return "subject outranks the bot", false
	}
	return "", true
}

func (x *Executor) apply(ctx context.Context, cm *decision.Countermeasure) error {
	switch cm.Action {
	case models.ActionNone, models.ActionWarn, models.ActionDelete:
		return nil
	case models.ActionStripRoles:
		return x.platform.StripRoles(ctx, cm.GuildID, cm.SubjectID, cm.Reason)
	case models.ActionMute, models.ActionTimeout:
		d := cm.Duration
		if d <= 0 {
			d = DefaultTimeout
		}
		return x.platform.Timeout(ctx, cm.GuildID, cm.SubjectID, x.now().Add(d), cm.Reason)
	case models.ActionKick:
		return x.platform.Kick(ctx, cm.GuildID, cm.SubjectID, cm.Reason)
	case models.ActionBan:
		return x.platform.Ban(ctx, cm.GuildID, cm.SubjectID, cm.Reason)
	default:
		return fmt.Errorf("unsupported action %q", cm.Action)
	}
}

func (x *Executor) notify(ctx context.Context, cm *decision.Countermeasure) {
	if cm.Notify.Has(decision.NotifyOwner) {
		x.effects.Do(ctx, "owner_dm", cm.GuildID, func(ctx context.Context) error {
			owner, err := x.platform.GuildOwnerID(ctx, cm.GuildID)
			if err != nil {
				return err
			}
			return x.platform.SendDirectMessage(ctx, owner, notifier.OwnerAlert(cm))
		})
	}

	if cm.Notify.Has(decision.NotifyChannel) && cm.ChannelID != "" {
		var warningID string
		x.effects.Do(ctx, "channel_warning", cm.GuildID, func(ctx context.Context) error {
			id, err := x.platform.SendMessage(ctx, cm.ChannelID, notifier.ChannelWarning(cm))
			warningID = id
			return err
		})
		if warningID != "" && x.warningTTL > 0 {
			x.afterFunc(x.warningTTL, func() {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				x.effects.Do(ctx, "warning_cleanup", "", func(ctx context.Context) error {
					return x.platform.DeleteMessage(ctx, cm.ChannelID, warningID)
				})
			})
		}
	}

	if cm.Notify.Has(decision.NotifySubject) {
		x.effects.Do(ctx, "subject_dm", cm.GuildID, func(ctx context.Context) error {
			return x.platform.SendDirectMessage(ctx, cm.SubjectID, notifier.SubjectNotice(cm))
		})
	}
}

// recordAudit writes the audit row and, for committed actions, the log
// channel embed.
func (x *Executor) recordAudit(ctx context.Context, cm *decision.Countermeasure, success bool, infractionID int64, logger *slog.Logger) {
	entry := &models.AuditEntry{
		IncidentID:   cm.IncidentID,
		GuildID:      cm.GuildID,
		Detector:     string(cm.Detector),
		SubjectID:    cm.SubjectID,
		Action:       cm.Action,
		InfractionID: infractionID,
		Reason:       cm.Reason,
		Success:      success,
		CreatedAt:    x.now(),
	}
	if err := x.store.LogAudit(ctx, entry); err != nil {
		logger.Error("failed to write audit entry", "err", err)
	}

	if !success {
		return
	}

	cfg, err := x.store.GetGuildConfig(ctx, cm.GuildID)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			logger.Warn("failed to load log channel", "err", err)
		}
		return
	}
	if cfg.LogChannelID == "" {
		return
	}
	x.effects.Do(ctx, "audit_embed", cm.GuildID, func(ctx context.Context) error {
		return x.platform.SendEmbed(ctx, cfg.LogChannelID, notifier.AuditEmbed(cm, infractionID, entry.CreatedAt))
	})
}
