package models

import "time"

// PatternType selects the matching semantics of a PatternRule.
type PatternType string

const (
	PatternRegex    PatternType = "regex"
	PatternContains PatternType = "contains"
	PatternExact    PatternType = "exact"
	PatternDomain   PatternType = "domain"
)

// PatternRule is a guild-configured automod content rule.
type PatternRule struct {
	ID       int64
	GuildID  string
	Type     PatternType
	Pattern  string
	Action   Action
	Reason   string
	Enabled  bool
	Position int
}

// SpamConfig holds the per-guild spam heuristics thresholds.
type SpamConfig struct {
	GuildID          string
	MaxMessages      int
	MaxMentions      int
	MaxEmojis        int
	MaxRepeatedChars int
	TimeWindow       int // seconds
	Action           Action
	MuteMinutes      int
	Enabled          bool
}

// Window returns the configured tracking span.
func (c *SpamConfig) Window() time.Duration {
	return time.Duration(c.TimeWindow) * time.Second
}

// EscalationRule maps "N infractions within T hours" to a follow-up action.
type EscalationRule struct {
	ID                    int64
	GuildID               string
	InfractionCount       int
	TimePeriodHours       int
	Action                Action
	ActionDurationMinutes int
}

// Period returns the rule's lookback span.
func (r *EscalationRule) Period() time.Duration {
	return time.Duration(r.TimePeriodHours) * time.Hour
}

// AntiNukeConfig represents the guild-level anti-nuke configuration
type AntiNukeConfig struct {
	GuildID           string
	Enabled           bool
	Thresholds        map[ActionKind]int
	TimeWindowSeconds int
	Punishment        Action
	Whitelist         []string
}

// Window returns the configured tracking span.
func (c *AntiNukeConfig) Window() time.Duration {
	return time.Duration(c.TimeWindowSeconds) * time.Second
}

// Threshold returns the threshold for kind; zero means the kind is not tracked.
func (c *AntiNukeConfig) Threshold(kind ActionKind) int {
	if c.Thresholds == nil {
		return 0
	}
	if n := c.Thresholds[kind]; n > 0 {
		return n
	}
	return 0
}

// IsWhitelisted checks the configured whitelist for an actor.
func (c *AntiNukeConfig) IsWhitelisted(actorID string) bool {
	for _, id := range c.Whitelist {
		if id == actorID {
			return true
		}
	}
	return false
}

// GuildConfig represents guild-specific configuration
type GuildConfig struct {
	GuildID      string
	LogChannelID string
	CreatedAt    int64
	UpdatedAt    int64
}
