package database

import (
	"context"
	"time"

	"go-modguard/internal/models"
)

// ===== Infractions =====

// AddInfraction persists an infraction and fills in its id. CreatedAt
// defaults to now.
func (d *Database) AddInfraction(ctx context.Context, inf *models.Infraction) error {
	if inf.CreatedAt.IsZero() {
		inf.CreatedAt = time.Now()
	}
	if inf.Duration > 0 && inf.ExpiresAt.IsZero() {
		inf.ExpiresAt = inf.CreatedAt.Add(inf.Duration)
	}

	var expires int64
	if !inf.ExpiresAt.IsZero() {
		expires = inf.ExpiresAt.UnixMilli()
	}

	res, err := d.db.ExecContext(ctx,
		`INSERT INTO infractions (guild_id, subject_id, moderator_id, type, reason, duration_ms, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inf.GuildID, inf.SubjectID, inf.ModeratorID, string(inf.Type), inf.Reason, inf.Duration.Milliseconds(), inf.CreatedAt.UnixMilli(), expires,
	)
	if err != nil {
		return err
	}

	inf.ID, err = res.LastInsertId()
	return err
}

// CountInfractionsSince counts a subject's infractions created at or after since
func (d *Database) CountInfractionsSince(ctx context.Context, guildID, subjectID string, since time.Time) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM infractions WHERE guild_id = ? AND subject_id = ? AND created_at >= ?`,
		guildID, subjectID, since.UnixMilli(),
	).Scan(&count)
	return count, err
}

// GetInfractions retrieves a subject's infractions, newest first
func (d *Database) GetInfractions(ctx context.Context, guildID, subjectID string, limit int) ([]*models.Infraction, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, guild_id, subject_id, moderator_id, type, reason, duration_ms, created_at, expires_at
		 FROM infractions WHERE guild_id = ? AND subject_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		guildID, subjectID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Infraction
	for rows.Next() {
		var inf models.Infraction
		var itype string
		var durationMS, createdMS, expiresMS int64
		if err := rows.Scan(&inf.ID, &inf.GuildID, &inf.SubjectID, &inf.ModeratorID, &itype, &inf.Reason, &durationMS, &createdMS, &expiresMS); err != nil {
			return nil, err
		}
		inf.Type = models.Action(itype)
		inf.Duration = time.Duration(durationMS) * time.Millisecond
		inf.CreatedAt = time.UnixMilli(createdMS)
		if expiresMS > 0 {
			inf.ExpiresAt = time.UnixMilli(expiresMS)
		}
		out = append(out, &inf)
	}

	return out, rows.Err()
}

// ===== Escalation rules =====

// GetEscalationRules returns a guild's rules, most severe (highest count) first
func (d *Database) GetEscalationRules(ctx context.Context, guildID string) ([]*models.EscalationRule, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, guild_id, infraction_count, time_period_hours, action, action_duration_minutes
		 FROM escalation_rules WHERE guild_id = ? ORDER BY infraction_count DESC, id`,
		guildID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*models.EscalationRule
	for rows.Next() {
		var rule models.EscalationRule
		var action string
		if err := rows.Scan(&rule.ID, &rule.GuildID, &rule.InfractionCount, &rule.TimePeriodHours, &action, &rule.ActionDurationMinutes); err != nil {
			return nil, err
		}
		rule.Action = models.Action(action)
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// UpsertEscalationRule creates or replaces the rule for (count, period)
func (d *Database) UpsertEscalationRule(ctx context.Context, rule *models.EscalationRule) error {
	res, err := d.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO escalation_rules (guild_id, infraction_count, time_period_hours, action, action_duration_minutes)
		 VALUES (?, ?, ?, ?, ?)`,
		rule.GuildID, rule.InfractionCount, rule.TimePeriodHours, string(rule.Action), rule.ActionDurationMinutes,
	)
	if err != nil {
		return err
	}
	rule.ID, err = res.LastInsertId()
	return err
}
