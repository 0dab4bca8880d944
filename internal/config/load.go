package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go-modguard/internal/models"
)

type Config struct {
	Bot      BotConfig      `json:"bot"`
	Database DatabaseConfig `json:"database"`
	Log      LogConfig      `json:"log"`
	Metrics  MetricsConfig  `json:"metrics"`
	State    StateConfig    `json:"state"`
	AntiNuke AntiNukeConfig `json:"antinuke"`
	Spam     SpamConfig     `json:"spam"`
	Automod  AutomodConfig  `json:"automod"`
	Dispatch DispatchConfig `json:"dispatch"`
	Engine   EngineConfig   `json:"engine"`
}

type BotConfig struct {
	Token    string `json:"token"`
	ClientID string `json:"client_id"`
}

type DatabaseConfig struct {
	Path string `json:"path"`
}

type LogConfig struct {
	Level string `json:"level"`
	// File, if set, receives a copy of every log line.
	File string `json:"file"`
}

type MetricsConfig struct {
	Listen string `json:"listen"`
}

// StateConfig selects where sliding windows live.
type StateConfig struct {
	Backend  string `json:"backend"` // "memory" or "redis"
	RedisURL string `json:"redis_url"`
}

// AntiNukeConfig holds the defaults applied to guilds the first time the
// bot sees them. Per-guild values live in the database afterwards.
type AntiNukeConfig struct {
	TimeWindow Duration      `json:"time_window"`
	Punishment models.Action `json:"punishment"`
	Timeout    Duration      `json:"timeout"`
	// Limits overrides the size-based defaults for every guild.
	Limits map[models.ActionKind]int `json:"limits"`
}

type SpamConfig struct {
	MaxMessages      int           `json:"max_messages"`
	MaxMentions      int           `json:"max_mentions"`
	MaxEmojis        int           `json:"max_emojis"`
	MaxRepeatedChars int           `json:"max_repeated_chars"`
	TimeWindow       Duration      `json:"time_window"`
	Action           models.Action `json:"action"`
	MuteMinutes      int           `json:"mute_minutes"`
	CharRepeatMode   string        `json:"char_repeat_mode"`
}

type AutomodConfig struct {
	WarningTTL    Duration `json:"warning_ttl"`
	RuleCacheSize int      `json:"rule_cache_size"`
	RuleCacheTTL  Duration `json:"rule_cache_ttl"`
}

type DispatchConfig struct {
	MaxInFlight     int      `json:"max_inflight"`
	Timeout         Duration `json:"timeout"`
	SubjectLockTTL  Duration `json:"subject_lock_ttl"`
	NotifyPerSecond float64  `json:"notify_per_second"`
	NotifyBurst     int      `json:"notify_burst"`
}

type EngineConfig struct {
	SweepInterval Duration `json:"sweep_interval"`
	WindowIdle    Duration `json:"window_idle"`
	DedupeSize    int      `json:"dedupe_size"`
	DedupeTTL     Duration `json:"dedupe_ttl"`
	ActorCacheTTL Duration `json:"actor_cache_ttl"`
}

// Duration is a time.Duration that reads "5s"-style strings from JSON.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Load reads path over the defaults, then applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	// Override with environment variables if present
	if token := os.Getenv("DISCORD_TOKEN"); token != "" {
		cfg.Bot.Token = token
	}
	if clientID := os.Getenv("CLIENT_ID"); clientID != "" {
		cfg.Bot.ClientID = clientID
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.State.RedisURL = redisURL
		cfg.State.Backend = "redis"
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "modguard.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Listen: ":3989",
		},
		State: StateConfig{
			Backend: "memory",
		},
		AntiNuke: AntiNukeConfig{
			TimeWindow: Duration(10 * time.Second),
			Punishment: models.ActionStripRoles,
			Timeout:    Duration(24 * time.Hour),
		},
		Spam: SpamConfig{
			MaxMessages:      5,
			MaxMentions:      5,
			MaxEmojis:        10,
			MaxRepeatedChars: 15,
			TimeWindow:       Duration(5 * time.Second),
			Action:           models.ActionMute,
			MuteMinutes:      10,
			CharRepeatMode:   "total",
		},
		Automod: AutomodConfig{
			WarningTTL:    Duration(5 * time.Second),
			RuleCacheSize: 1024,
			RuleCacheTTL:  Duration(5 * time.Minute),
		},
		Dispatch: DispatchConfig{
			MaxInFlight:     64,
			Timeout:         Duration(30 * time.Second),
			SubjectLockTTL:  Duration(5 * time.Second),
			NotifyPerSecond: 2,
			NotifyBurst:     5,
		},
		Engine: EngineConfig{
			SweepInterval: Duration(30 * time.Second),
			WindowIdle:    Duration(10 * time.Minute),
			DedupeSize:    8192,
			DedupeTTL:     Duration(2 * time.Minute),
			ActorCacheTTL: Duration(10 * time.Second),
		},
	}
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error

	for kind, n := range c.AntiNuke.Limits {
		if n <= 0 {
			errs = append(errs, fmt.Errorf("antinuke.limits.%s must be positive, got %d", kind, n))
		}
	}
	switch c.AntiNuke.Punishment {
	case models.ActionStripRoles, models.ActionTimeout, models.ActionKick, models.ActionBan:
	default:
		errs = append(errs, fmt.Errorf("antinuke.punishment %q is not one of strip_roles, timeout, kick, ban", c.AntiNuke.Punishment))
	}

	positive := map[string]int{
		"spam.max_messages":       c.Spam.MaxMessages,
		"spam.max_mentions":       c.Spam.MaxMentions,
		"spam.max_emojis":         c.Spam.MaxEmojis,
		"spam.max_repeated_chars": c.Spam.MaxRepeatedChars,
		"spam.mute_minutes":       c.Spam.MuteMinutes,
		"automod.rule_cache_size": c.Automod.RuleCacheSize,
		"dispatch.max_inflight":   c.Dispatch.MaxInFlight,
		"engine.dedupe_size":      c.Engine.DedupeSize,
	}
	for name, v := range positive {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}

	durations := map[string]Duration{
		"antinuke.time_window":      c.AntiNuke.TimeWindow,
		"spam.time_window":          c.Spam.TimeWindow,
		"automod.rule_cache_ttl":    c.Automod.RuleCacheTTL,
		"dispatch.subject_lock_ttl": c.Dispatch.SubjectLockTTL,
		"engine.sweep_interval":     c.Engine.SweepInterval,
		"engine.window_idle":        c.Engine.WindowIdle,
		"engine.dedupe_ttl":         c.Engine.DedupeTTL,
	}
	for name, d := range durations {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d.Std()))
		}
	}

	switch c.Spam.Action {
	case models.ActionWarn, models.ActionMute, models.ActionKick:
	default:
		errs = append(errs, fmt.Errorf("spam.action %q is not one of warn, mute, kick", c.Spam.Action))
	}
	switch c.Spam.CharRepeatMode {
	case "total", "run":
	default:
		errs = append(errs, fmt.Errorf("spam.char_repeat_mode %q is not one of total, run", c.Spam.CharRepeatMode))
	}

	switch strings.ToLower(c.State.Backend) {
	case "memory":
	case "redis":
		if c.State.RedisURL == "" {
			errs = append(errs, errors.New("state.redis_url is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("state.backend %q is not one of memory, redis", c.State.Backend))
	}

	return errors.Join(errs...)
}
