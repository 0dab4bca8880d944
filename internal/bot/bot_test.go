package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"go-modguard/internal/database"
	"go-modguard/internal/models"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const discordEpochMs = 1420070400000

func snowflake(at time.Time) string {
	return strconv.FormatInt((at.UnixMilli()-discordEpochMs)<<22, 10)
}

func action(a discordgo.AuditLogAction) *discordgo.AuditLogAction {
	return &a
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fetcher struct {
	mu      sync.Mutex
	entries map[discordgo.AuditLogAction][]*discordgo.AuditLogEntry
	err     error
	calls   int
}

func (f *fetcher) fetch(ctx context.Context, guildID string, a discordgo.AuditLogAction) (*discordgo.GuildAuditLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &discordgo.GuildAuditLog{AuditLogEntries: f.entries[a]}, nil
}

type ingested struct {
	mu     sync.Mutex
	events []models.AdminEvent
	msgs   []models.Message
}

func (i *ingested) OnAdministrativeEvent(ctx context.Context, ev models.AdminEvent) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.events = append(i.events, ev)
}

func (i *ingested) OnMessage(ctx context.Context, msg models.Message) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.msgs = append(i.msgs, msg)
}

type syncer struct {
	seeded map[string]database.Defaults
}

func (s *syncer) EnsureGuildConfigExists(ctx context.Context, guildID string, defaults database.Defaults) error {
	s.seeded[guildID] = defaults
	return nil
}

func TestResolverUsesRememberedEntries(t *testing.T) {
	assert := assert.New(t)
	f := &fetcher{}
	r := NewActorResolver(f.fetch, time.Minute, testLogger())

	at := time.UnixMilli(1700000000000)
	r.Remember("g1", &discordgo.AuditLogEntry{
		ID:         snowflake(at),
		UserID:     "nuker",
		TargetID:   "chan1",
		ActionType: action(discordgo.AuditLogActionChannelDelete),
	})

	actor, err := r.Resolve(context.Background(), "g1", discordgo.AuditLogActionChannelDelete, "chan1")
	require.NoError(t, err)
	assert.Equal("nuker", actor.ID)
	assert.True(at.Equal(actor.At))
	assert.Equal(0, f.calls)
}

func TestResolverFallsBackToFetch(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := &fetcher{entries: map[discordgo.AuditLogAction][]*discordgo.AuditLogEntry{
		discordgo.AuditLogActionRoleDelete: {
			{ID: snowflake(time.Now()), UserID: "other", TargetID: "role2"},
			{ID: snowflake(time.Now()), UserID: "nuker", TargetID: "role1"},
		},
	}}
	r := NewActorResolver(f.fetch, time.Minute, testLogger())

	actor, err := r.Resolve(ctx, "g1", discordgo.AuditLogActionRoleDelete, "role1")
	require.NoError(t, err)
	assert.Equal("nuker", actor.ID)

	// second lookup is cached
	_, err = r.Resolve(ctx, "g1", discordgo.AuditLogActionRoleDelete, "role1")
	require.NoError(t, err)
	assert.Equal(1, f.calls)

	actor, err = r.Resolve(ctx, "g1", discordgo.AuditLogActionRoleDelete, "role9")
	require.NoError(t, err)
	assert.Empty(actor.ID)

	f.err = errors.New("rate limited")
	_, err = r.Resolve(ctx, "g1", discordgo.AuditLogActionChannelDelete, "c1")
	assert.Error(err)
}

func TestResolveLatestRespectsAge(t *testing.T) {
	assert := assert.New(t)
	now := time.UnixMilli(1700000000000)
	f := &fetcher{entries: map[discordgo.AuditLogAction][]*discordgo.AuditLogEntry{
		discordgo.AuditLogActionWebhookCreate: {
			{ID: snowflake(now.Add(-5 * time.Second)), UserID: "nuker", TargetID: "hook1"},
		},
	}}
	r := NewActorResolver(f.fetch, time.Minute, testLogger())

	actor, target, err := r.ResolveLatest(context.Background(), "g1", discordgo.AuditLogActionWebhookCreate, 15*time.Second, now)
	require.NoError(t, err)
	assert.Equal("nuker", actor.ID)
	assert.Equal("hook1", target)

	actor, _, err = r.ResolveLatest(context.Background(), "g1", discordgo.AuditLogActionWebhookCreate, 15*time.Second, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(actor.ID)
}

func TestAdminEventFromAudit(t *testing.T) {
	assert := assert.New(t)
	at := time.UnixMilli(1700000000000)

	ev, ok := adminEventFromAudit("g1", &discordgo.AuditLogEntry{
		ID: snowflake(at), UserID: "mod", TargetID: "victim", ActionType: action(discordgo.AuditLogActionMemberBanAdd),
	})
	require.True(t, ok)
	assert.Equal(models.KindMemberBan, ev.Kind)
	assert.Equal("mod", ev.ActorID)
	assert.True(at.Equal(ev.Timestamp))

	ev, ok = adminEventFromAudit("g1", &discordgo.AuditLogEntry{
		ID: snowflake(at), UserID: "mod", ActionType: action(discordgo.AuditLogActionMemberKick),
	})
	require.True(t, ok)
	assert.Equal(models.KindMemberKick, ev.Kind)

	// channel deletes come from the dedicated gateway event
	_, ok = adminEventFromAudit("g1", &discordgo.AuditLogEntry{
		ID: snowflake(at), UserID: "mod", ActionType: action(discordgo.AuditLogActionChannelDelete),
	})
	assert.False(ok)

	_, ok = adminEventFromAudit("g1", &discordgo.AuditLogEntry{ID: snowflake(at), UserID: "mod"})
	assert.False(ok)
}

func TestHandlersFeedEngine(t *testing.T) {
	assert := assert.New(t)
	at := time.UnixMilli(1700000000000)
	f := &fetcher{}
	in := &ingested{}
	guilds := &syncer{seeded: map[string]database.Defaults{}}
	h := NewHandlers(context.Background(), in, NewActorResolver(f.fetch, time.Minute, testLogger()), guilds,
		func(n int) database.Defaults { return database.Defaults{Spam: models.SpamConfig{MaxMessages: n}} }, testLogger())

	h.onGuildCreate(nil, &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: "g1", MemberCount: 42}})
	assert.Equal(42, guilds.seeded["g1"].Spam.MaxMessages)

	// the audit entry lands first and is reused by the channel event
	h.onAuditLogEntry(nil, &discordgo.GuildAuditLogEntryCreate{
		GuildID: "g1",
		AuditLogEntry: &discordgo.AuditLogEntry{
			ID: snowflake(at), UserID: "nuker", TargetID: "c1", ActionType: action(discordgo.AuditLogActionChannelDelete),
		},
	})
	h.onChannelDelete(nil, &discordgo.ChannelDelete{Channel: &discordgo.Channel{ID: "c1", GuildID: "g1"}})
	require.Len(t, in.events, 1)
	assert.Equal(models.KindChannelDelete, in.events[0].Kind)
	assert.Equal("nuker", in.events[0].ActorID)
	assert.True(at.Equal(in.events[0].Timestamp))
	assert.Equal(0, f.calls)

	h.onRoleCreate(nil, &discordgo.GuildRoleCreate{GuildRole: &discordgo.GuildRole{GuildID: "g1", Role: &discordgo.Role{ID: "r1", Managed: true}}})
	assert.Len(in.events, 1)

	h.onMessageCreate(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
		ID: "m1", GuildID: "g1", ChannelID: "general", Content: "hi", Author: &discordgo.User{ID: "u1", Bot: true}, Timestamp: at,
	}})
	require.Len(t, in.msgs, 1)
	assert.True(in.msgs[0].AuthorBot)
	assert.Equal("u1", in.msgs[0].AuthorID)
}
