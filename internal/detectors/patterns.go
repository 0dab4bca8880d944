package detectors

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"go-modguard/internal/decision"
	"go-modguard/internal/models"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultMuteMinutes applies to automod mutes without a configured length.
const DefaultMuteMinutes = 10

type PatternRuleStore interface {
	GetEnabledPatternRules(ctx context.Context, guildID string) ([]*models.PatternRule, error)
}

type compiledRule struct {
	rule   *models.PatternRule
	re     *regexp.Regexp
	needle string
}

// PatternMatcher evaluates message content against a guild's automod rules,
// in stored order. Compiled rule sets are cached per guild.
type PatternMatcher struct {
	store  PatternRuleStore
	cache  *expirable.LRU[string, []compiledRule]
	logger *slog.Logger
}

func NewPatternMatcher(store PatternRuleStore, logger *slog.Logger, size int, ttl time.Duration) *PatternMatcher {
	return &PatternMatcher{
		store:  store,
		cache:  expirable.NewLRU[string, []compiledRule](size, nil, ttl),
		logger: logger.With("detector", decision.DetectorAutomod),
	}
}

// Invalidate drops the cached rule set for a guild. Must be called after
// any rule mutation.
func (m *PatternMatcher) Invalidate(guildID string) {
	m.cache.Remove(guildID)
}

// Match returns the first enabled rule matching content, or nil.
func (m *PatternMatcher) Match(ctx context.Context, guildID, content string) (*models.PatternRule, error) {
	rules, err := m.rules(ctx, guildID)
	if err != nil {
		return nil, err
	}

	lowered := strings.ToLower(content)
	for _, cr := range rules {
		if cr.matches(content, lowered) {
			return cr.rule, nil
		}
	}
	return nil, nil
}

// Observe returns the countermeasure for the first matching rule.
func (m *PatternMatcher) Observe(ctx context.Context, msg models.Message) (*decision.Countermeasure, error) {
	rule, err := m.Match(ctx, msg.GuildID, msg.Content)
	if err != nil || rule == nil {
		return nil, err
	}

	at := msg.Timestamp
	if at.IsZero() {
		at = time.Now()
	}

	action := rule.Action
	if action == models.ActionNone {
		action = models.ActionDelete
	}

	cm := decision.New(decision.DetectorAutomod, "pattern_"+string(rule.Type), msg.GuildID, msg.AuthorID, action, at)
	cm.ChannelID = msg.ChannelID
	cm.MessageID = msg.ID
	cm.DeleteMessage = true
	cm.RecordInfraction = true
	cm.Escalate = true
	cm.Notify = decision.NotifyChannel
	cm.Reason = rule.Reason
	if cm.Reason == "" {
		cm.Reason = fmt.Sprintf("Matched automod rule #%d", rule.ID)
	}
	if action == models.ActionMute || action == models.ActionTimeout {
		cm.Duration = DefaultMuteMinutes * time.Minute
	}

	m.logger.Info("automod rule matched", "guild", msg.GuildID, "actor", msg.AuthorID, "rule", rule.ID, "type", rule.Type)
	return cm, nil
}

func (m *PatternMatcher) rules(ctx context.Context, guildID string) ([]compiledRule, error) {
	if cached, ok := m.cache.Get(guildID); ok {
		return cached, nil
	}

	stored, err := m.store.GetEnabledPatternRules(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("loading pattern rules: %w", err)
	}

	compiled := make([]compiledRule, 0, len(stored))
	for _, rule := range stored {
		cr, err := compile(rule)
		if err != nil {
			m.logger.Warn("skipping malformed automod rule", "guild", guildID, "rule", rule.ID, "err", err)
			continue
		}
		compiled = append(compiled, cr)
	}

	m.cache.Add(guildID, compiled)
	return compiled, nil
}

func compile(rule *models.PatternRule) (compiledRule, error) {
	cr := compiledRule{rule: rule}
	switch rule.Type {
	case models.PatternRegex:
		re, err := regexp.Compile("(?i)" + rule.Pattern)
		if err != nil {
			return cr, err
		}
		cr.re = re
	case models.PatternContains, models.PatternExact, models.PatternDomain:
		if rule.Pattern == "" {
			return cr, fmt.Errorf("empty %s pattern", rule.Type)
		}
		cr.needle = strings.ToLower(rule.Pattern)
	default:
		return cr, fmt.Errorf("unknown pattern type %q", rule.Type)
	}
	return cr, nil
}

func (cr compiledRule) matches(content, lowered string) bool {
	switch cr.rule.Type {
	case models.PatternRegex:
		return cr.re.MatchString(content)
	case models.PatternContains:
		return strings.Contains(lowered, cr.needle)
	case models.PatternExact:
		return lowered == cr.needle
	case models.PatternDomain:
		// plain substring on each extracted URL, not a hostname comparison
		for _, u := range ExtractURLs(lowered) {
			if strings.Contains(u, cr.needle) {
				return true
			}
		}
	}
	return false
}
