package commands

import (
	"context"
	"errors"
	"fmt"

	"go-modguard/internal/database"
	"go-modguard/internal/models"

	"github.com/bwmarrin/discordgo"
)

var errNotConfigured = errors.New("anti-nuke is not configured for this server yet")

func (h *Handler) ToggleAntiNuke(ctx context.Context, guildID string, enabled bool) (*discordgo.MessageEmbed, error) {
	err := h.store.SetAntiNukeEnabled(ctx, guildID, enabled)
	if errors.Is(err, database.ErrNotFound) {
		return nil, errNotConfigured
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save configuration: %w", err)
	}

	if enabled {
		return h.embed("Anti-Nuke Enabled", "Destructive administrative actions are now being monitored."), nil
	}
	return h.embed("Anti-Nuke Disabled", "Anti-nuke protection is paused for this server."), nil
}

// SetLimit changes one action's threshold. A limit of zero stops tracking
// that action.
func (h *Handler) SetLimit(ctx context.Context, guildID string, kind models.ActionKind, limit int) (*discordgo.MessageEmbed, error) {
	if !knownKind(kind) {
		return nil, fmt.Errorf("unknown action %q", kind)
	}
	if limit < 0 {
		return nil, errors.New("limit must not be negative")
	}

	cfg, err := h.store.GetAntiNukeConfig(ctx, guildID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, errNotConfigured
	}
	if err != nil {
		return nil, err
	}

	if cfg.Thresholds == nil {
		cfg.Thresholds = make(map[models.ActionKind]int)
	}
	if limit == 0 {
		delete(cfg.Thresholds, kind)
	} else {
		cfg.Thresholds[kind] = limit
	}
	if err := h.store.UpsertAntiNukeConfig(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to save limit: %w", err)
	}

	value := fmt.Sprintf("`%d` actions", limit)
	if limit == 0 {
		value = "not tracked"
	}
	return h.embed("Configuration Updated",
		fmt.Sprintf("The limit for **%s** has been modified.", kind.DisplayName()),
		&discordgo.MessageEmbedField{Name: "Action Limit", Value: value, Inline: true},
		&discordgo.MessageEmbedField{Name: "Time Window", Value: fmt.Sprintf("`%d` seconds", cfg.TimeWindowSeconds), Inline: true},
		&discordgo.MessageEmbedField{Name: "Punishment Type", Value: fmt.Sprintf("`%s`", cfg.Punishment), Inline: true},
	), nil
}

func (h *Handler) WhitelistAdd(ctx context.Context, guildID, targetID, addedBy string) (*discordgo.MessageEmbed, error) {
	if targetID == "" {
		return nil, errors.New("no user specified")
	}
	if err := h.store.AddWhitelist(ctx, guildID, targetID, addedBy); err != nil {
		return nil, fmt.Errorf("failed to update whitelist: %w", err)
	}
	return h.embed("Whitelist Updated", fmt.Sprintf("<@%s> is now exempt from anti-nuke limits.", targetID)), nil
}

func (h *Handler) WhitelistRemove(ctx context.Context, guildID, targetID string) (*discordgo.MessageEmbed, error) {
	if targetID == "" {
		return nil, errors.New("no user specified")
	}
	if err := h.store.RemoveWhitelist(ctx, guildID, targetID); err != nil {
		return nil, fmt.Errorf("failed to update whitelist: %w", err)
	}
	return h.embed("Whitelist Cleared", fmt.Sprintf("<@%s> is subject to anti-nuke limits again.", targetID)), nil
}

func knownKind(kind models.ActionKind) bool {
	for _, k := range models.AllActionKinds() {
		if k == kind {
			return true
		}
	}
	return false
}
