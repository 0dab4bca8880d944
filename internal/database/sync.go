package database

import (
	"context"
	"errors"
	"fmt"

	"go-modguard/internal/models"
)

// Defaults seeds a newly joined guild. Anti-nuke and spam detection are
// created disabled so that nothing fires before an administrator opts in.
type Defaults struct {
	AntiNuke models.AntiNukeConfig
	Spam     models.SpamConfig
}

// EnsureGuildConfigExists creates the config rows for a guild the first time
// the bot sees it. Existing rows are never overwritten.
func (d *Database) EnsureGuildConfigExists(ctx context.Context, guildID string, defaults Defaults) error {
	if _, err := d.GetGuildConfig(ctx, guildID); errors.Is(err, ErrNotFound) {
		if err := d.UpsertGuildConfig(ctx, &models.GuildConfig{GuildID: guildID}); err != nil {
			return fmt.Errorf("creating guild config: %w", err)
		}
	} else if err != nil {
		return err
	}

	if _, err := d.GetAntiNukeConfig(ctx, guildID); errors.Is(err, ErrNotFound) {
		cfg := defaults.AntiNuke
		cfg.GuildID = guildID
		cfg.Enabled = false
		if err := d.UpsertAntiNukeConfig(ctx, &cfg); err != nil {
			return fmt.Errorf("creating antinuke config: %w", err)
		}
	} else if err != nil {
		return err
	}

	if _, err := d.GetSpamConfig(ctx, guildID); errors.Is(err, ErrNotFound) {
		cfg := defaults.Spam
		cfg.GuildID = guildID
		cfg.Enabled = false
		if err := d.UpsertSpamConfig(ctx, &cfg); err != nil {
			return fmt.Errorf("creating spam config: %w", err)
		}
	} else if err != nil {
		return err
	}

	return nil
}
