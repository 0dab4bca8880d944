package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"go-modguard/internal/config"
	"go-modguard/internal/database"
	"go-modguard/internal/decision"
	"go-modguard/internal/models"
	"go-modguard/internal/platform"
	"go-modguard/internal/platform/platformtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu          sync.Mutex
	infractions []*models.Infraction
	audit       []*models.AuditEntry
	logChannel  string
}

func (s *memStore) AddInfraction(ctx context.Context, inf *models.Infraction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inf.ID = int64(len(s.infractions) + 1)
	s.infractions = append(s.infractions, inf)
	return nil
}

func (s *memStore) LogAudit(ctx context.Context, entry *models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = int64(len(s.audit) + 1)
	s.audit = append(s.audit, entry)
	return nil
}

func (s *memStore) GetGuildConfig(ctx context.Context, guildID string) (*models.GuildConfig, error) {
	if s.logChannel == "" {
		return nil, database.ErrNotFound
	}
	return &models.GuildConfig{GuildID: guildID, LogChannelID: s.logChannel}, nil
}

func (s *memStore) auditEntries() []*models.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.AuditEntry(nil), s.audit...)
}

func (s *memStore) infractionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.infractions)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	fake     *platformtest.Fake
	store    *memStore
	locks    *decision.SubjectLocks
	exec     *Executor
	now      time.Time
	deferred []func()
}

func newFixture(cfg ExecutorConfig) *fixture {
	f := &fixture{
		fake:  platformtest.New(),
		store: &memStore{logChannel: "logs"},
		locks: decision.NewSubjectLocks(5 * time.Second),
		now:   time.Unix(1700000000, 0),
	}
	f.fake.SetOwner("g1", "owner")
	f.fake.AddMember("g1", "u1", 10)
	f.exec = NewExecutor(f.fake, f.store, f.locks, testLogger(), cfg)
	f.exec.now = func() time.Time { return f.now }
	f.exec.afterFunc = func(d time.Duration, fn func()) {
		f.deferred = append(f.deferred, fn)
	}
	return f
}

func antiNukeCM() *decision.Countermeasure {
	cm := decision.New(decision.DetectorAntiNuke, "channel_delete", "g1", "nuker", models.ActionStripRoles, time.Now())
	cm.Reason = "Anti-nuke: Deleting Channels (3 within 10s)"
	cm.Notify = decision.NotifyOwner
	return cm
}

func spamCM() *decision.Countermeasure {
	cm := decision.New(decision.DetectorAutomod, "message_spam", "g1", "u1", models.ActionMute, time.Now())
	cm.ChannelID = "c1"
	cm.MessageID = "m5"
	cm.DeleteMessage = true
	cm.RecordInfraction = true
	cm.Escalate = true
	cm.Notify = decision.NotifyChannel
	cm.Duration = 10 * time.Minute
	cm.Reason = "Automod: sending messages too quickly"
	return cm
}

func TestExecuteAntiNuke(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(ExecutorConfig{})

	res := f.exec.Execute(context.Background(), antiNukeCM())
	assert.Equal(StatusCommitted, res.Status)
	assert.Zero(res.InfractionID)

	require.Len(t, f.fake.CallsTo("StripRoles"), 1)
	dms := f.fake.CallsTo("SendDirectMessage")
	require.Len(t, dms, 1)
	assert.Equal("owner", dms[0].UserID)
	assert.Contains(dms[0].Content, "<@nuker>")

	embeds := f.fake.CallsTo("SendEmbed")
	require.Len(t, embeds, 1)
	assert.Equal("logs", embeds[0].ChannelID)

	audit := f.store.auditEntries()
	require.Len(t, audit, 1)
	assert.True(audit[0].Success)
	assert.Equal("antinuke", audit[0].Detector)
	assert.Equal(0, f.store.infractionCount())
}

func TestPrimaryFailureSendsNothing(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(ExecutorConfig{})
	f.fake.FailWith("StripRoles", platform.ErrForbidden)

	res := f.exec.Execute(context.Background(), antiNukeCM())
	assert.Equal(StatusFailed, res.Status)
	assert.ErrorIs(res.Err, platform.ErrForbidden)

	assert.Empty(f.fake.CallsTo("SendDirectMessage"))
	assert.Empty(f.fake.CallsTo("SendEmbed"))
	audit := f.store.auditEntries()
	require.Len(t, audit, 1)
	assert.False(audit[0].Success)

	// the lock was released, so a retry can run
	f.fake.FailWith("StripRoles", nil)
	res = f.exec.Execute(context.Background(), antiNukeCM())
	assert.Equal(StatusCommitted, res.Status)
}

func TestNotificationFailureKeepsPrimary(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(ExecutorConfig{})
	f.fake.FailWith("SendDirectMessage", errors.New("dm closed"))
	f.fake.FailWith("SendEmbed", platform.ErrForbidden)

	res := f.exec.Execute(context.Background(), antiNukeCM())
	assert.Equal(StatusCommitted, res.Status)
	assert.Len(f.fake.CallsTo("StripRoles"), 1)
	audit := f.store.auditEntries()
	require.Len(t, audit, 1)
	assert.True(audit[0].Success)
}

func TestSubjectLockSuppressesSecondCountermeasure(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(ExecutorConfig{})

	first := f.exec.Execute(context.Background(), antiNukeCM())
	assert.Equal(StatusCommitted, first.Status)

	second := antiNukeCM()
	second.Trigger = "role_delete"
	res := f.exec.Execute(context.Background(), second)
	assert.Equal(StatusSkipped, res.Status)
	assert.Len(f.fake.CallsTo("StripRoles"), 1)

	// non-mutating countermeasures do not keep the lock
	warn := decision.New(decision.DetectorAutomod, "pattern_contains", "g1", "u2", models.ActionWarn, time.Now())
	assert.Equal(StatusCommitted, f.exec.Execute(context.Background(), warn).Status)
	assert.Equal(time.Duration(0), f.locks.Remaining("g1", "u2"))
}

func TestEscalationPrechecks(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(ExecutorConfig{})

	cm := decision.New(decision.DetectorEscalation, "5_in_24h", "g1", "gone", models.ActionKick, time.Now())
	cm.RequireMember = true
	cm.RecordInfraction = true
	cm.Notify = decision.NotifySubject
	res := f.exec.Execute(context.Background(), cm)
	assert.Equal(StatusSkipped, res.Status)
	assert.Equal("subject is no longer a member", res.Note)

	f.fake.AddMember("g1", "admin", 200)
	cm.SubjectID = "admin"
	res = f.exec.Execute(context.Background(), cm)
	assert.Equal(StatusSkipped, res.Status)
	assert.Equal("subject outranks the bot", res.Note)

	assert.Empty(f.fake.CallsTo("Kick"))
	assert.Empty(f.fake.CallsTo("SendDirectMessage"))
	assert.Equal(0, f.store.infractionCount())
	assert.Empty(f.store.auditEntries())
}

func TestExecuteSpamWithEscalation(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(ExecutorConfig{WarningTTL: 5 * time.Second})

	var escalated []string
	f.exec.SetEscalation(func(ctx context.Context, guildID, subjectID string) (*decision.Countermeasure, error) {
		escalated = append(escalated, subjectID)
		cm := decision.New(decision.DetectorEscalation, "3_in_24h", guildID, subjectID, models.ActionKick, f.now)
		cm.RequireMember = true
		cm.RecordInfraction = true
		cm.Notify = decision.NotifySubject
		cm.Reason = "Automatic escalation: 3 infractions within 24 hours"
		return cm, nil
	})

	res := f.exec.Execute(context.Background(), spamCM())
	assert.Equal(StatusCommitted, res.Status)
	assert.Equal(int64(1), res.InfractionID)

	deletes := f.fake.CallsTo("DeleteMessage")
	require.Len(t, deletes, 1)
	assert.Equal("m5", deletes[0].MessageID)

	timeouts := f.fake.CallsTo("Timeout")
	require.Len(t, timeouts, 1)
	assert.Equal(f.now.Add(10*time.Minute), timeouts[0].Until)

	warnings := f.fake.CallsTo("SendMessage")
	require.Len(t, warnings, 1)
	assert.Equal("c1", warnings[0].ChannelID)

	// the warning removes itself
	require.Len(t, f.deferred, 1)
	f.deferred[0]()
	deletes = f.fake.CallsTo("DeleteMessage")
	require.Len(t, deletes, 2)
	assert.Equal("sent-1", deletes[1].MessageID)

	// escalation ran inline under the same lock
	assert.Equal([]string{"u1"}, escalated)
	require.NotNil(t, res.FollowUp)
	assert.Equal(StatusCommitted, res.FollowUp.Status)
	assert.Len(f.fake.CallsTo("Kick"), 1)
	assert.Equal(2, f.store.infractionCount())
	assert.Len(f.store.auditEntries(), 2)
}

func TestEscalationInfractionDoesNotEscalate(t *testing.T) {
	f := newFixture(ExecutorConfig{})
	calls := 0
	f.exec.SetEscalation(func(ctx context.Context, guildID, subjectID string) (*decision.Countermeasure, error) {
		calls++
		return nil, nil
	})

	cm := decision.New(decision.DetectorEscalation, "3_in_24h", "g1", "u1", models.ActionMute, time.Now())
	cm.RequireMember = true
	cm.RecordInfraction = true
	res := f.exec.Execute(context.Background(), cm)
	assert.Equal(t, StatusCommitted, res.Status)
	assert.Equal(t, 0, calls)
}

func TestNotificationRateLimit(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(ExecutorConfig{NotifyPerSecond: 0.001, NotifyBurst: 1})

	for _, subject := range []string{"a", "b", "c"} {
		cm := decision.New(decision.DetectorAutomod, "pattern_contains", "g1", subject, models.ActionWarn, time.Now())
		cm.ChannelID = "c1"
		cm.Notify = decision.NotifyChannel
		assert.Equal(StatusCommitted, f.exec.Execute(context.Background(), cm).Status)
	}
	// one channel warning plus nothing else fits in the burst
	assert.Len(f.fake.CallsTo("SendMessage"), 1)
}

func TestOwnerAlertSurvivesAutomodBurst(t *testing.T) {
	assert := assert.New(t)
	dispatch := config.DefaultConfig().Dispatch
	f := newFixture(ExecutorConfig{NotifyPerSecond: dispatch.NotifyPerSecond, NotifyBurst: dispatch.NotifyBurst})

	for i := 0; i < 8; i++ {
		cm := spamCM()
		cm.SubjectID = fmt.Sprintf("spammer-%d", i)
		cm.Escalate = false
		assert.Equal(StatusCommitted, f.exec.Execute(context.Background(), cm).Status)
	}
	// channel warnings are throttled by now
	assert.Less(len(f.fake.CallsTo("SendMessage")), 8)

	res := f.exec.Execute(context.Background(), antiNukeCM())
	assert.Equal(StatusCommitted, res.Status)
	require.Len(t, f.fake.CallsTo("StripRoles"), 1)
	dms := f.fake.CallsTo("SendDirectMessage")
	require.Len(t, dms, 1)
	assert.Equal("owner", dms[0].UserID)
}
