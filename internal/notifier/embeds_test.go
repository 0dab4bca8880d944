package notifier

import (
	"testing"
	"time"

	"go-modguard/internal/decision"
	"go-modguard/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestChannelWarning(t *testing.T) {
	cm := decision.New(decision.DetectorAutomod, "message_spam", "g1", "u1", models.ActionMute, time.Now())
	cm.Reason = "Automod: sending messages too quickly"
	cm.Duration = 10 * time.Minute

	assert.Equal(t, "⚠️ <@u1>, your message was removed (sending messages too quickly). You have been timed out for 10 minutes.", ChannelWarning(cm))

	cm.Action = models.ActionWarn
	cm.Duration = 0
	assert.Equal(t, "⚠️ <@u1>, your message was removed (sending messages too quickly).", ChannelWarning(cm))
}

func TestSubjectNotice(t *testing.T) {
	cm := decision.New(decision.DetectorEscalation, "5_in_24h", "g1", "u1", models.ActionKick, time.Now())
	cm.Reason = "Automatic escalation: 5 infractions within 24 hours"
	assert.Equal(t, "You have been kicked.\nReason: Automatic escalation: 5 infractions within 24 hours", SubjectNotice(cm))
}

func TestAuditEmbed(t *testing.T) {
	assert := assert.New(t)
	at := time.Unix(1700000000, 0)
	cm := decision.New(decision.DetectorAntiNuke, "channel_delete", "g1", "nuker", models.ActionStripRoles, at)
	cm.Reason = "Anti-nuke"
	cm.Count = 3
	cm.Window = 10 * time.Second

	embed := AuditEmbed(cm, 0, at)
	assert.Equal("🛡️ Anti-Nuke Triggered", embed.Title)
	assert.Equal(colorRed, embed.Color)
	assert.Len(embed.Fields, 5)
	assert.Equal("**3** within 10 seconds", embed.Fields[3].Value)
	assert.Contains(embed.Footer.Text, cm.IncidentID)

	esc := decision.New(decision.DetectorEscalation, "3_in_24h", "g1", "u1", models.ActionMute, at)
	esc.Duration = time.Hour
	embed = AuditEmbed(esc, 42, at)
	assert.Equal(colorOrange, embed.Color)
	assert.Equal("mute (1 hour)", embed.Fields[1].Value)
	assert.Equal("#42", embed.Fields[3].Value)
}

func TestHumanDuration(t *testing.T) {
	assert.Equal(t, "2 days", humanDuration(48*time.Hour))
	assert.Equal(t, "90 minutes", humanDuration(90*time.Minute))
	assert.Equal(t, "1 second", humanDuration(time.Second))
	assert.Equal(t, "1.5s", humanDuration(1500*time.Millisecond))
}
