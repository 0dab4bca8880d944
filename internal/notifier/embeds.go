package notifier

import (
	"fmt"
	"strings"
	"time"

	"go-modguard/internal/decision"
	"go-modguard/internal/models"

	"github.com/bwmarrin/discordgo"
)

const (
	colorRed    = 0xED4245
	colorOrange = 0xFEE75C
)

// AuditEmbed is posted to the guild log channel after a countermeasure ran.
func AuditEmbed(cm *decision.Countermeasure, infractionID int64, at time.Time) *discordgo.MessageEmbed {
	emoji, title := heading(cm)

	fields := []*discordgo.MessageEmbedField{
		{
			Name:   "👤 Subject",
			Value:  fmt.Sprintf("<@%s> (`%s`)", cm.SubjectID, cm.SubjectID),
			Inline: true,
		},
		{
			Name:   "🔨 Action",
			Value:  actionLabel(cm),
			Inline: true,
		},
		{
			Name:   "🔎 Trigger",
			Value:  fmt.Sprintf("`%s`", cm.Trigger),
			Inline: true,
		},
	}
	if cm.Count > 0 && cm.Window > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   "📈 Rate",
			Value:  fmt.Sprintf("**%d** within %s", cm.Count, humanDuration(cm.Window)),
			Inline: true,
		})
	}
	if infractionID != 0 {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   "📄 Infraction",
			Value:  fmt.Sprintf("#%d", infractionID),
			Inline: true,
		})
	}
	fields = append(fields, &discordgo.MessageEmbedField{
		Name:   "🕐 Timestamp",
		Value:  fmt.Sprintf("<t:%d:F>", at.Unix()),
		Inline: false,
	})

	color := colorOrange
	if cm.Detector == decision.DetectorAntiNuke || cm.Action == models.ActionBan {
		color = colorRed
	}

	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s %s", emoji, title),
		Color:       color,
		Description: fmt.Sprintf("**Reason:** %s", cm.Reason),
		Fields:      fields,
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Incident " + cm.IncidentID,
		},
		Timestamp: at.Format(time.RFC3339),
	}
}

// OwnerAlert is DMed to the guild owner when anti-nuke fires.
func OwnerAlert(cm *decision.Countermeasure) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🚨 **Anti-nuke triggered** in your server.\n")
	fmt.Fprintf(&b, "<@%s> (`%s`) was %s.\n", cm.SubjectID, cm.SubjectID, cm.Action.PastTense())
	fmt.Fprintf(&b, "Reason: %s", cm.Reason)
	return b.String()
}

// ChannelWarning is posted where the offending message was sent.
func ChannelWarning(cm *decision.Countermeasure) string {
	msg := fmt.Sprintf("⚠️ <@%s>, your message was removed (%s).", cm.SubjectID, strings.TrimPrefix(cm.Reason, "Automod: "))
	if cm.Action.Mutates() {
		msg += fmt.Sprintf(" You have been %s", cm.Action.PastTense())
		if cm.Duration > 0 {
			msg += " for " + humanDuration(cm.Duration)
		}
		msg += "."
	}
	return msg
}

// SubjectNotice is DMed to the subject of an escalation.
func SubjectNotice(cm *decision.Countermeasure) string {
	msg := fmt.Sprintf("You have been %s", cm.Action.PastTense())
	if cm.Duration > 0 {
		msg += " for " + humanDuration(cm.Duration)
	}
	return msg + ".\nReason: " + cm.Reason
}

func heading(cm *decision.Countermeasure) (string, string) {
	switch cm.Detector {
	case decision.DetectorAntiNuke:
		return "🛡️", "Anti-Nuke Triggered"
	case decision.DetectorEscalation:
		return "📈", "Automatic Escalation"
	default:
		return "🤖", "Automod Action"
	}
}

func actionLabel(cm *decision.Countermeasure) string {
	label := string(cm.Action)
	if label == "" {
		label = "none"
	}
	if cm.Duration > 0 {
		label += " (" + humanDuration(cm.Duration) + ")"
	}
	return label
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= 24*time.Hour && d%(24*time.Hour) == 0:
		return pluralize(int(d/(24*time.Hour)), "day")
	case d >= time.Hour && d%time.Hour == 0:
		return pluralize(int(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return pluralize(int(d/time.Minute), "minute")
	case d >= time.Second && d%time.Second == 0:
		return pluralize(int(d/time.Second), "second")
	default:
		return d.String()
	}
}

func pluralize(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
