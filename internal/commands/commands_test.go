package commands

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"go-modguard/internal/database"
	"go-modguard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type observed struct {
	guild, subject string
}

type fakeObserver struct {
	calls []observed
}

func (f *fakeObserver) OnInfractionRecorded(ctx context.Context, guildID, subjectID string) {
	f.calls = append(f.calls, observed{guildID, subjectID})
}

type fakeRules struct {
	invalidated []string
}

func (f *fakeRules) Invalidate(guildID string) {
	f.invalidated = append(f.invalidated, guildID)
}

func testHandler(t *testing.T) (*Handler, *database.Database, *fakeObserver, *fakeRules) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "modguard.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	obs := &fakeObserver{}
	rules := &fakeRules{}
	h := NewHandler(db, obs, rules, slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.now = func() time.Time { return time.Unix(1700000000, 0) }
	return h, db, obs, rules
}

func TestWarnRecordsAndEscalates(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	h, db, obs, _ := testHandler(t)

	embed, err := h.Warn(ctx, "g1", "mod", "u1", "  spamming links ")
	require.NoError(t, err)
	assert.Equal("Member Warned", embed.Title)

	infs, err := db.GetInfractions(ctx, "g1", "u1", 10)
	require.NoError(t, err)
	require.Len(t, infs, 1)
	assert.Equal("spamming links", infs[0].Reason)
	assert.Equal("mod", infs[0].ModeratorID)
	assert.Equal(models.ActionWarn, infs[0].Type)
	assert.Equal([]observed{{"g1", "u1"}}, obs.calls)

	_, err = h.Warn(ctx, "g1", "mod", "u1", "")
	assert.Error(err)
	_, err = h.Warn(ctx, "g1", "mod", "mod", "self")
	assert.Error(err)
	assert.Len(obs.calls, 1)
}

func TestAutomodRules(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	h, db, _, rules := testHandler(t)

	_, err := h.AddRule(ctx, "g1", models.PatternRegex, "([a-z", "delete", "")
	assert.Error(err)
	_, err = h.AddRule(ctx, "g1", "glob", "*", "delete", "")
	assert.Error(err)
	_, err = h.AddRule(ctx, "g1", models.PatternContains, "scam", "explode", "")
	assert.Error(err)
	assert.Empty(rules.invalidated)

	_, err = h.AddRule(ctx, "g1", models.PatternDomain, "evil.example", "ban", "phishing")
	require.NoError(t, err)
	_, err = h.AddRule(ctx, "g1", models.PatternContains, "scam", "delete", "")
	require.NoError(t, err)

	stored, err := db.GetPatternRules(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal("evil.example", stored[0].Pattern)
	assert.Equal(models.ActionBan, stored[0].Action)
	assert.Equal([]string{"g1", "g1"}, rules.invalidated)

	_, err = h.RemoveRule(ctx, "g1", stored[0].ID)
	require.NoError(t, err)
	_, err = h.RemoveRule(ctx, "g1", stored[0].ID)
	assert.ErrorContains(err, "does not exist")

	stored, err = db.GetPatternRules(ctx, "g1")
	require.NoError(t, err)
	assert.Len(stored, 1)
}

func TestAntiNukeCommands(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	h, db, _, _ := testHandler(t)

	_, err := h.ToggleAntiNuke(ctx, "g1", true)
	assert.ErrorIs(err, errNotConfigured)
	_, err = h.SetLimit(ctx, "g1", models.KindRoleDelete, 3)
	assert.ErrorIs(err, errNotConfigured)

	require.NoError(t, db.EnsureGuildConfigExists(ctx, "g1", database.Defaults{
		AntiNuke: models.AntiNukeConfig{
			TimeWindowSeconds: 10,
			Punishment:        models.ActionStripRoles,
			Thresholds:        map[models.ActionKind]int{models.KindChannelDelete: 3},
		},
		Spam: models.SpamConfig{MaxMessages: 5, TimeWindow: 5, Action: models.ActionMute},
	}))

	_, err = h.ToggleAntiNuke(ctx, "g1", true)
	require.NoError(t, err)
	_, err = h.SetLimit(ctx, "g1", models.KindRoleDelete, 4)
	require.NoError(t, err)
	_, err = h.SetLimit(ctx, "g1", models.KindChannelDelete, 0)
	require.NoError(t, err)
	_, err = h.SetLimit(ctx, "g1", "guild_delete", 1)
	assert.Error(err)

	_, err = h.WhitelistAdd(ctx, "g1", "trusted", "mod")
	require.NoError(t, err)

	cfg, err := db.GetAntiNukeConfig(ctx, "g1")
	require.NoError(t, err)
	assert.True(cfg.Enabled)
	assert.Equal(4, cfg.Threshold(models.KindRoleDelete))
	assert.Equal(0, cfg.Threshold(models.KindChannelDelete))
	assert.True(cfg.IsWhitelisted("trusted"))

	_, err = h.WhitelistRemove(ctx, "g1", "trusted")
	require.NoError(t, err)
	cfg, err = db.GetAntiNukeConfig(ctx, "g1")
	require.NoError(t, err)
	assert.False(cfg.IsWhitelisted("trusted"))
}

func TestEnableLogs(t *testing.T) {
	ctx := context.Background()
	h, db, _, _ := testHandler(t)

	embed, err := h.EnableLogs(ctx, nil, "g1", "logs")
	require.NoError(t, err)
	assert.Contains(t, embed.Description, "<#logs>")

	cfg, err := db.GetGuildConfig(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "logs", cfg.LogChannelID)
}

func TestCommandDefinitions(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range GetAllCommands() {
		names[cmd.Name] = true
		require.NotNil(t, cmd.DefaultMemberPermissions)
	}
	assert.Equal(t, map[string]bool{"warn": true, "automod": true, "antinuke": true, "logs": true}, names)
}
