package models

import "time"

// Infraction is a persisted record of any moderation action, manual or
// automatic.
type Infraction struct {
	ID          int64
	GuildID     string
	SubjectID   string
	ModeratorID string
	Type        Action
	Reason      string
	Duration    time.Duration
	CreatedAt   time.Time
	ExpiresAt   time.Time // zero when the infraction does not expire
}

// AuditEntry records one executed (or attempted) countermeasure.
type AuditEntry struct {
	ID           int64
	IncidentID   string
	GuildID      string
	Detector     string
	SubjectID    string
	Action       Action
	InfractionID int64
	Reason       string
	Success      bool
	CreatedAt    time.Time
}
