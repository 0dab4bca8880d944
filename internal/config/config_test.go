package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go-modguard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMergesOverDefaults(t *testing.T) {
	assert := assert.New(t)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"bot": {"token": "from-file"},
		"spam": {"max_messages": 8, "time_window": "10s"},
		"antinuke": {"limits": {"channel_delete": 4}}
	}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal("from-file", cfg.Bot.Token)
	assert.Equal(8, cfg.Spam.MaxMessages)
	assert.Equal(10*time.Second, cfg.Spam.TimeWindow.Std())
	// untouched values keep their defaults
	assert.Equal(5, cfg.Spam.MaxMentions)
	assert.Equal(5*time.Second, cfg.Automod.WarningTTL.Std())
	assert.Equal(4, cfg.AntiNuke.Limits[models.KindChannelDelete])
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadEnvOverrides(t *testing.T) {
	assert := assert.New(t)
	t.Setenv("DISCORD_TOKEN", "from-env")
	t.Setenv("DATABASE_PATH", "/tmp/other.db")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal("from-env", cfg.Bot.Token)
	assert.Equal("/tmp/other.db", cfg.Database.Path)
	assert.Equal("redis", cfg.State.Backend)
}

func TestValidateRejectsBadValues(t *testing.T) {
	assert := assert.New(t)

	cfg := DefaultConfig()
	cfg.AntiNuke.Limits = map[models.ActionKind]int{models.KindRoleDelete: 0}
	cfg.Spam.MaxMessages = -1
	cfg.Spam.Action = models.ActionBan
	cfg.Spam.CharRepeatMode = "sometimes"
	cfg.Engine.SweepInterval = 0
	cfg.State.Backend = "redis"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"antinuke.limits.role_delete",
		"spam.max_messages",
		"spam.action",
		"spam.char_repeat_mode",
		"engine.sweep_interval",
		"state.redis_url",
	} {
		assert.Contains(err.Error(), want)
	}

	assert.NoError(DefaultConfig().Validate())
}

func TestBadDurationIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"spam": {"time_window": 5}}`), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestGuildDefaults(t *testing.T) {
	assert := assert.New(t)
	cfg := DefaultConfig()
	cfg.AntiNuke.Limits = map[models.ActionKind]int{models.KindChannelCreate: 6}

	d := cfg.GuildDefaults(50)
	assert.Equal(2, d.AntiNuke.Thresholds[models.KindChannelDelete])
	assert.Equal(6, d.AntiNuke.Thresholds[models.KindChannelCreate])
	assert.Equal(10, d.AntiNuke.TimeWindowSeconds)
	assert.Equal(models.ActionStripRoles, d.AntiNuke.Punishment)
	assert.Equal(5, d.Spam.TimeWindow)

	d = cfg.GuildDefaults(50000)
	assert.Equal(10, d.AntiNuke.Thresholds[models.KindChannelDelete])
	assert.Equal(SizeMedium, GetCategoryBySize(1000))
}
