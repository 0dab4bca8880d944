package decision

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"go-modguard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInfractions struct {
	rules []*models.EscalationRule
	times []time.Time
	err   error
}

func (f *fakeInfractions) GetEscalationRules(ctx context.Context, guildID string) ([]*models.EscalationRule, error) {
	return f.rules, f.err
}

func (f *fakeInfractions) CountInfractionsSince(ctx context.Context, guildID, subjectID string, since time.Time) (int, error) {
	n := 0
	for _, t := range f.times {
		if !t.Before(since) {
			n++
		}
	}
	return n, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func standardRules() []*models.EscalationRule {
	// deliberately stored out of order
	return []*models.EscalationRule{
		{ID: 1, InfractionCount: 3, TimePeriodHours: 24, Action: models.ActionMute, ActionDurationMinutes: 30},
		{ID: 2, InfractionCount: 5, TimePeriodHours: 24, Action: models.ActionKick},
		{ID: 3, InfractionCount: 10, TimePeriodHours: 24, Action: models.ActionBan},
	}
}

func infractionsAgo(now time.Time, n int, age time.Duration) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = now.Add(-age)
	}
	return out
}

func TestEscalatorPicksMostSevereMatch(t *testing.T) {
	assert := assert.New(t)
	now := time.Unix(1700000000, 0)

	store := &fakeInfractions{rules: standardRules(), times: infractionsAgo(now, 5, time.Hour)}
	esc := NewEscalator(store, testLogger())
	esc.SetClock(func() time.Time { return now })

	cm, err := esc.Evaluate(context.Background(), "g1", "u1")
	require.NoError(t, err)
	require.NotNil(t, cm)
	assert.Equal(models.ActionKick, cm.Action)
	assert.Equal(DetectorEscalation, cm.Detector)
	assert.True(cm.RecordInfraction)
	assert.False(cm.Escalate)
	assert.True(cm.RequireMember)
	assert.True(cm.Notify.Has(NotifySubject))
	assert.False(cm.Notify.Has(NotifyOwner))
	assert.Equal(5, cm.Count)
	assert.NotEmpty(cm.IncidentID)
}

func TestEscalatorMuteDuration(t *testing.T) {
	assert := assert.New(t)
	now := time.Unix(1700000000, 0)

	store := &fakeInfractions{rules: standardRules(), times: infractionsAgo(now, 3, time.Minute)}
	esc := NewEscalator(store, testLogger())
	esc.SetClock(func() time.Time { return now })

	cm, err := esc.Evaluate(context.Background(), "g1", "u1")
	require.NoError(t, err)
	require.NotNil(t, cm)
	assert.Equal(models.ActionMute, cm.Action)
	assert.Equal(30*time.Minute, cm.Duration)

	store.rules = []*models.EscalationRule{{InfractionCount: 3, TimePeriodHours: 1, Action: models.ActionMute}}
	cm, err = esc.Evaluate(context.Background(), "g1", "u1")
	require.NoError(t, err)
	require.NotNil(t, cm)
	assert.Equal(DefaultEscalationMuteMinutes*time.Minute, cm.Duration)
}

func TestEscalatorRespectsPeriod(t *testing.T) {
	now := time.Unix(1700000000, 0)

	store := &fakeInfractions{rules: standardRules(), times: infractionsAgo(now, 12, 25*time.Hour)}
	esc := NewEscalator(store, testLogger())
	esc.SetClock(func() time.Time { return now })

	cm, err := esc.Evaluate(context.Background(), "g1", "u1")
	require.NoError(t, err)
	assert.Nil(t, cm)
}

func TestEscalatorSkipsMalformedRules(t *testing.T) {
	assert := assert.New(t)
	now := time.Unix(1700000000, 0)

	store := &fakeInfractions{
		rules: []*models.EscalationRule{
			{ID: 9, InfractionCount: 4, TimePeriodHours: 24, Action: models.ActionStripRoles},
			{ID: 8, InfractionCount: 2, TimePeriodHours: 24, Action: models.ActionKick},
		},
		times: infractionsAgo(now, 4, time.Hour),
	}
	esc := NewEscalator(store, testLogger())
	esc.SetClock(func() time.Time { return now })

	cm, err := esc.Evaluate(context.Background(), "g1", "u1")
	require.NoError(t, err)
	require.NotNil(t, cm)
	assert.Equal(models.ActionKick, cm.Action)
}

func TestEscalatorNoRulesAndErrors(t *testing.T) {
	esc := NewEscalator(&fakeInfractions{}, testLogger())
	cm, err := esc.Evaluate(context.Background(), "g1", "u1")
	assert.NoError(t, err)
	assert.Nil(t, cm)

	boom := errors.New("boom")
	esc = NewEscalator(&fakeInfractions{err: boom}, testLogger())
	_, err = esc.Evaluate(context.Background(), "g1", "u1")
	assert.ErrorIs(t, err, boom)
}

func TestSubjectLocks(t *testing.T) {
	assert := assert.New(t)
	now := time.Unix(1700000000, 0)

	locks := NewSubjectLocks(5 * time.Second)
	locks.SetClock(func() time.Time { return now })

	assert.True(locks.TryAcquire("g1", "u1"))
	assert.False(locks.TryAcquire("g1", "u1"))
	assert.True(locks.TryAcquire("g1", "u2"))
	assert.True(locks.TryAcquire("g2", "u1"))
	assert.Equal(5*time.Second, locks.Remaining("g1", "u1"))

	locks.Release("g1", "u1")
	assert.Equal(time.Duration(0), locks.Remaining("g1", "u1"))
	assert.True(locks.TryAcquire("g1", "u1"))

	now = now.Add(5 * time.Second)
	assert.True(locks.TryAcquire("g1", "u1"))
	assert.Equal(2, locks.Sweep())
}
