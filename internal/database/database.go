package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go-modguard/internal/models"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a configuration row does not exist. Callers
// treat it as "feature disabled" rather than as a failure.
var ErrNotFound = errors.New("not found")

type Database struct {
	db *sql.DB
}

// Open creates and initializes the SQLite database at dbPath
func Open(dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	d := &Database{db: db}
	if err := d.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return d, nil
}

// Ping checks if the database connection is alive
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close closes the database connection
func (d *Database) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *Database) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS guild_config (
		guild_id TEXT PRIMARY KEY,
		log_channel_id TEXT DEFAULT '',
		created_at INTEGER DEFAULT 0,
		updated_at INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS antinuke_config (
		guild_id TEXT PRIMARY KEY,
		enabled INTEGER NOT NULL DEFAULT 0,
		time_window_seconds INTEGER NOT NULL DEFAULT 10,
		punishment TEXT NOT NULL DEFAULT 'strip_roles',
		updated_at INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS antinuke_limits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		guild_id TEXT NOT NULL,
		action_kind TEXT NOT NULL,
		max_actions INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE(guild_id, action_kind)
	);

	CREATE INDEX IF NOT EXISTS idx_antinuke_limits_guild ON antinuke_limits(guild_id);

	CREATE TABLE IF NOT EXISTS whitelist (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		guild_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		added_by TEXT DEFAULT '',
		created_at INTEGER NOT NULL,
		UNIQUE(guild_id, target_id)
	);

	CREATE INDEX IF NOT EXISTS idx_whitelist_guild ON whitelist(guild_id);

	CREATE TABLE IF NOT EXISTS pattern_rules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		guild_id TEXT NOT NULL,
		pattern_type TEXT NOT NULL,
		pattern TEXT NOT NULL,
		action TEXT NOT NULL DEFAULT 'delete',
		reason TEXT NOT NULL DEFAULT '',
		enabled INTEGER NOT NULL DEFAULT 1,
		position INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_pattern_rules_guild ON pattern_rules(guild_id, position, id);

	CREATE TABLE IF NOT EXISTS spam_config (
		guild_id TEXT PRIMARY KEY,
		max_messages INTEGER NOT NULL DEFAULT 5,
		max_mentions INTEGER NOT NULL DEFAULT 5,
		max_emojis INTEGER NOT NULL DEFAULT 10,
		max_repeated_chars INTEGER NOT NULL DEFAULT 15,
		time_window INTEGER NOT NULL DEFAULT 5,
		action TEXT NOT NULL DEFAULT 'mute',
		mute_minutes INTEGER NOT NULL DEFAULT 10,
		enabled INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS infractions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		guild_id TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		moderator_id TEXT NOT NULL,
		type TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_infractions_subject ON infractions(guild_id, subject_id, created_at);

	CREATE TABLE IF NOT EXISTS escalation_rules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		guild_id TEXT NOT NULL,
		infraction_count INTEGER NOT NULL,
		time_period_hours INTEGER NOT NULL,
		action TEXT NOT NULL,
		action_duration_minutes INTEGER NOT NULL DEFAULT 0,
		UNIQUE(guild_id, infraction_count, time_period_hours)
	);

	CREATE INDEX IF NOT EXISTS idx_escalation_rules_guild ON escalation_rules(guild_id);

	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		incident_id TEXT NOT NULL,
		guild_id TEXT NOT NULL,
		detector TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		action TEXT NOT NULL,
		infraction_id INTEGER NOT NULL DEFAULT 0,
		reason TEXT NOT NULL DEFAULT '',
		success INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_log_guild ON audit_log(guild_id, created_at);
	`

	_, err := d.db.Exec(schema)
	return err
}

// GetGuildConfig retrieves guild configuration
func (d *Database) GetGuildConfig(ctx context.Context, guildID string) (*models.GuildConfig, error) {
	var config models.GuildConfig
	err := d.db.QueryRowContext(ctx,
		`SELECT guild_id, log_channel_id, created_at, updated_at
		 FROM guild_config WHERE guild_id = ?`,
		guildID,
	).Scan(&config.GuildID, &config.LogChannelID, &config.CreatedAt, &config.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &config, nil
}

// UpsertGuildConfig creates or updates guild configuration
func (d *Database) UpsertGuildConfig(ctx context.Context, config *models.GuildConfig) error {
	config.UpdatedAt = time.Now().Unix()
	if config.CreatedAt == 0 {
		config.CreatedAt = config.UpdatedAt
	}

	_, err := d.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO guild_config (guild_id, log_channel_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?)`,
		config.GuildID, config.LogChannelID, config.CreatedAt, config.UpdatedAt,
	)

	return err
}

// ===== Whitelist =====

// AddWhitelist adds a user to the anti-nuke whitelist
func (d *Database) AddWhitelist(ctx context.Context, guildID, targetID, addedBy string) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO whitelist (guild_id, target_id, added_by, created_at)
		 VALUES (?, ?, ?, ?)`,
		guildID, targetID, addedBy, time.Now().Unix(),
	)
	return err
}

// RemoveWhitelist removes a user from the anti-nuke whitelist
func (d *Database) RemoveWhitelist(ctx context.Context, guildID, targetID string) error {
	_, err := d.db.ExecContext(ctx,
		`DELETE FROM whitelist WHERE guild_id = ? AND target_id = ?`,
		guildID, targetID,
	)
	return err
}

// GetWhitelist retrieves all whitelisted ids for a guild
func (d *Database) GetWhitelist(ctx context.Context, guildID string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT target_id FROM whitelist WHERE guild_id = ? ORDER BY id`,
		guildID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
