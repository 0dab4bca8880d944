package decision

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go-modguard/internal/models"
)

// DefaultEscalationMuteMinutes applies when a mute rule has no duration.
const DefaultEscalationMuteMinutes = 60

// InfractionStore is the slice of the database the escalator reads.
type InfractionStore interface {
	GetEscalationRules(ctx context.Context, guildID string) ([]*models.EscalationRule, error)
	CountInfractionsSince(ctx context.Context, guildID, subjectID string, since time.Time) (int, error)
}

// Escalator maps accumulated infractions to a single follow-up action.
type Escalator struct {
	store  InfractionStore
	logger *slog.Logger
	now    func() time.Time
}

func NewEscalator(store InfractionStore, logger *slog.Logger) *Escalator {
	return &Escalator{
		store:  store,
		logger: logger.With("component", "escalation"),
		now:    time.Now,
	}
}

// SetClock replaces the time source, for tests.
func (e *Escalator) SetClock(now func() time.Time) {
	e.now = now
}

// Evaluate returns the countermeasure for the most severe rule the subject
// currently meets, or nil. Rules are checked highest infraction count first
// and evaluation stops at the first match.
func (e *Escalator) Evaluate(ctx context.Context, guildID, subjectID string) (*Countermeasure, error) {
	rules, err := e.store.GetEscalationRules(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("loading escalation rules: %w", err)
	}
	if len(rules) == 0 {
		return nil, nil
	}

	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].InfractionCount > rules[j].InfractionCount
	})

	now := e.now()
	for _, rule := range rules {
		if rule.InfractionCount <= 0 || rule.TimePeriodHours <= 0 {
			e.logger.Warn("skipping malformed escalation rule", "guild", guildID, "rule", rule.ID)
			continue
		}

		count, err := e.store.CountInfractionsSince(ctx, guildID, subjectID, now.Add(-rule.Period()))
		if err != nil {
			return nil, fmt.Errorf("counting infractions: %w", err)
		}
		if count < rule.InfractionCount {
			continue
		}

		cm, err := e.countermeasure(rule, guildID, subjectID, count, now)
		if err != nil {
			e.logger.Warn("skipping malformed escalation rule", "guild", guildID, "rule", rule.ID, "err", err)
			continue
		}
		return cm, nil
	}

	return nil, nil
}

func (e *Escalator) countermeasure(rule *models.EscalationRule, guildID, subjectID string, count int, now time.Time) (*Countermeasure, error) {
	action := rule.Action
	var duration time.Duration
	switch action {
	case models.ActionMute, models.ActionTimeout:
		action = models.ActionMute
		minutes := rule.ActionDurationMinutes
		if minutes <= 0 {
			minutes = DefaultEscalationMuteMinutes
		}
		duration = time.Duration(minutes) * time.Minute
	case models.ActionKick, models.ActionBan:
	default:
		return nil, fmt.Errorf("unsupported escalation action %q", rule.Action)
	}

	cm := New(DetectorEscalation, fmt.Sprintf("%d_in_%dh", rule.InfractionCount, rule.TimePeriodHours), guildID, subjectID, action, now)
	cm.Duration = duration
	cm.Reason = fmt.Sprintf("Automatic escalation: %d infractions within %d hours", count, rule.TimePeriodHours)
	cm.RecordInfraction = true
	cm.RequireMember = true
	cm.Notify = NotifySubject
	cm.Count = count
	cm.Window = rule.Period()
	return cm, nil
}
