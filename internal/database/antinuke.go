package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go-modguard/internal/models"
)

// GetAntiNukeConfig loads the anti-nuke settings, per-kind limits and the
// whitelist for a guild. Returns ErrNotFound when the guild never configured
// anti-nuke.
func (d *Database) GetAntiNukeConfig(ctx context.Context, guildID string) (*models.AntiNukeConfig, error) {
	cfg := &models.AntiNukeConfig{
		GuildID:    guildID,
		Thresholds: make(map[models.ActionKind]int),
	}

	var enabled int
	var punishment string
	err := d.db.QueryRowContext(ctx,
		`SELECT enabled, time_window_seconds, punishment FROM antinuke_config WHERE guild_id = ?`,
		guildID,
	).Scan(&enabled, &cfg.TimeWindowSeconds, &punishment)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	cfg.Enabled = enabled != 0
	cfg.Punishment = models.Action(punishment)

	rows, err := d.db.QueryContext(ctx,
		`SELECT action_kind, max_actions FROM antinuke_limits WHERE guild_id = ?`,
		guildID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading antinuke limits: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind string
		var max int
		if err := rows.Scan(&kind, &max); err != nil {
			return nil, err
		}
		// non-positive thresholds mean the kind is not tracked
		if max > 0 {
			cfg.Thresholds[models.ActionKind(kind)] = max
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	cfg.Whitelist, err = d.GetWhitelist(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("loading whitelist: %w", err)
	}

	return cfg, nil
}

// UpsertAntiNukeConfig stores the guild settings and replaces its limits. The
// whitelist is managed separately through AddWhitelist/RemoveWhitelist.
func (d *Database) UpsertAntiNukeConfig(ctx context.Context, cfg *models.AntiNukeConfig) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO antinuke_config (guild_id, enabled, time_window_seconds, punishment, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		cfg.GuildID, boolToInt(cfg.Enabled), cfg.TimeWindowSeconds, string(cfg.Punishment), now,
	)
	if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM antinuke_limits WHERE guild_id = ?`, cfg.GuildID); err != nil {
		return err
	}
	for kind, max := range cfg.Thresholds {
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO antinuke_limits (guild_id, action_kind, max_actions, updated_at)
			 VALUES (?, ?, ?, ?)`,
			cfg.GuildID, string(kind), max, now,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SetAntiNukeEnabled toggles detection without touching limits.
func (d *Database) SetAntiNukeEnabled(ctx context.Context, guildID string, enabled bool) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE antinuke_config SET enabled = ?, updated_at = ? WHERE guild_id = ?`,
		boolToInt(enabled), time.Now().Unix(), guildID,
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
