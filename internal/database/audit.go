package database

import (
	"context"
	"time"

	"go-modguard/internal/models"
)

// LogAudit records an executed (or failed) countermeasure
func (d *Database) LogAudit(ctx context.Context, entry *models.AuditEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	res, err := d.db.ExecContext(ctx,
		`INSERT INTO audit_log (incident_id, guild_id, detector, subject_id, action, infraction_id, reason, success, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.IncidentID, entry.GuildID, entry.Detector, entry.SubjectID, string(entry.Action), entry.InfractionID, entry.Reason, boolToInt(entry.Success), entry.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return err
	}

	entry.ID, err = res.LastInsertId()
	return err
}

// GetRecentAudit retrieves recent audit entries for a guild
func (d *Database) GetRecentAudit(ctx context.Context, guildID string, limit int) ([]*models.AuditEntry, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, incident_id, guild_id, detector, subject_id, action, infraction_id, reason, success, created_at
		 FROM audit_log WHERE guild_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		guildID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var action string
		var success int
		var createdMS int64
		if err := rows.Scan(&e.ID, &e.IncidentID, &e.GuildID, &e.Detector, &e.SubjectID, &action, &e.InfractionID, &e.Reason, &success, &createdMS); err != nil {
			return nil, err
		}
		e.Action = models.Action(action)
		e.Success = success != 0
		e.CreatedAt = time.UnixMilli(createdMS)
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}
