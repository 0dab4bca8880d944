package database

import (
	"context"
	"database/sql"
	"time"

	"go-modguard/internal/models"
)

// ===== Pattern rules =====

// GetEnabledPatternRules returns a guild's enabled rules in evaluation order
func (d *Database) GetEnabledPatternRules(ctx context.Context, guildID string) ([]*models.PatternRule, error) {
	return d.queryPatternRules(ctx,
		`SELECT id, guild_id, pattern_type, pattern, action, reason, enabled, position
		 FROM pattern_rules WHERE guild_id = ? AND enabled = 1 ORDER BY position, id`,
		guildID,
	)
}

// GetPatternRules returns every rule for a guild, enabled or not
func (d *Database) GetPatternRules(ctx context.Context, guildID string) ([]*models.PatternRule, error) {
	return d.queryPatternRules(ctx,
		`SELECT id, guild_id, pattern_type, pattern, action, reason, enabled, position
		 FROM pattern_rules WHERE guild_id = ? ORDER BY position, id`,
		guildID,
	)
}

func (d *Database) queryPatternRules(ctx context.Context, query string, args ...any) ([]*models.PatternRule, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*models.PatternRule
	for rows.Next() {
		var rule models.PatternRule
		var ptype, action string
		var enabled int
		if err := rows.Scan(&rule.ID, &rule.GuildID, &ptype, &rule.Pattern, &action, &rule.Reason, &enabled, &rule.Position); err != nil {
			return nil, err
		}
		rule.Type = models.PatternType(ptype)
		rule.Action = models.Action(action)
		rule.Enabled = enabled != 0
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// AddPatternRule inserts a rule at the end of the guild's list and fills in its id.
func (d *Database) AddPatternRule(ctx context.Context, rule *models.PatternRule) error {
	if rule.Position == 0 {
		err := d.db.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(position), 0) + 1 FROM pattern_rules WHERE guild_id = ?`,
			rule.GuildID,
		).Scan(&rule.Position)
		if err != nil {
			return err
		}
	}

	res, err := d.db.ExecContext(ctx,
		`INSERT INTO pattern_rules (guild_id, pattern_type, pattern, action, reason, enabled, position, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.GuildID, string(rule.Type), rule.Pattern, string(rule.Action), rule.Reason, boolToInt(rule.Enabled), rule.Position, time.Now().Unix(),
	)
	if err != nil {
		return err
	}

	rule.ID, err = res.LastInsertId()
	return err
}

// RemovePatternRule deletes a rule, scoped to its guild
func (d *Database) RemovePatternRule(ctx context.Context, guildID string, id int64) error {
	res, err := d.db.ExecContext(ctx,
		`DELETE FROM pattern_rules WHERE guild_id = ? AND id = ?`,
		guildID, id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ===== Spam config =====

// GetSpamConfig retrieves the spam heuristics config; ErrNotFound if unset
func (d *Database) GetSpamConfig(ctx context.Context, guildID string) (*models.SpamConfig, error) {
	var cfg models.SpamConfig
	var action string
	var enabled int
	err := d.db.QueryRowContext(ctx,
		`SELECT guild_id, max_messages, max_mentions, max_emojis, max_repeated_chars, time_window, action, mute_minutes, enabled
		 FROM spam_config WHERE guild_id = ?`,
		guildID,
	).Scan(&cfg.GuildID, &cfg.MaxMessages, &cfg.MaxMentions, &cfg.MaxEmojis, &cfg.MaxRepeatedChars, &cfg.TimeWindow, &action, &cfg.MuteMinutes, &enabled)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	cfg.Action = models.Action(action)
	cfg.Enabled = enabled != 0
	return &cfg, nil
}

// UpsertSpamConfig creates or updates the spam heuristics config
func (d *Database) UpsertSpamConfig(ctx context.Context, cfg *models.SpamConfig) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO spam_config (guild_id, max_messages, max_mentions, max_emojis, max_repeated_chars, time_window, action, mute_minutes, enabled, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cfg.GuildID, cfg.MaxMessages, cfg.MaxMentions, cfg.MaxEmojis, cfg.MaxRepeatedChars, cfg.TimeWindow, string(cfg.Action), cfg.MuteMinutes, boolToInt(cfg.Enabled), time.Now().Unix(),
	)
	return err
}
