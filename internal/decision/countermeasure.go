package decision

import (
	"time"

	"go-modguard/internal/models"

	"github.com/google/uuid"
)

// Detector names the component that produced a countermeasure.
type Detector string

const (
	DetectorAntiNuke   Detector = "antinuke"
	DetectorAutomod    Detector = "automod"
	DetectorEscalation Detector = "escalation"
)

// Notify is a bitmask of the best-effort notifications sent after the
// primary action commits.
type Notify uint8

const (
	NotifyOwner Notify = 1 << iota
	NotifyChannel
	NotifySubject
)

// Has reports whether n includes flag.
func (n Notify) Has(flag Notify) bool {
	return n&flag != 0
}

// Countermeasure is a decided action, ready for the executor.
type Countermeasure struct {
	IncidentID string
	Detector   Detector
	// Trigger is the heuristic, rule or action kind that fired, used in logs
	// and metrics (e.g. "message_spam", "channel_delete", "pattern").
	Trigger string

	GuildID   string
	SubjectID string
	ChannelID string
	MessageID string

	Action   models.Action
	Duration time.Duration
	Reason   string

	// DeleteMessage removes MessageID before the primary action.
	DeleteMessage bool
	// RecordInfraction persists an infraction once the action committed.
	RecordInfraction bool
	// Escalate runs escalation evaluation after the infraction is recorded.
	// Infractions created by escalation itself never set this.
	Escalate bool
	// RequireMember skips the countermeasure when the subject has left or
	// outranks the bot.
	RequireMember bool

	Notify Notify

	// Count and Window describe the breach for notifications.
	Count  int
	Window time.Duration

	CreatedAt time.Time
}

// New returns a countermeasure with a fresh incident id.
func New(detector Detector, trigger, guildID, subjectID string, action models.Action, now time.Time) *Countermeasure {
	return &Countermeasure{
		IncidentID: uuid.NewString(),
		Detector:   detector,
		Trigger:    trigger,
		GuildID:    guildID,
		SubjectID:  subjectID,
		Action:     action,
		CreatedAt:  now,
	}
}
