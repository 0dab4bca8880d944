package commands

import (
	"context"
	"errors"
	"fmt"

	"go-modguard/internal/database"
	"go-modguard/internal/models"

	"github.com/bwmarrin/discordgo"
)

// EnableLogs points the audit embeds at channelID and posts a test message
// there when a session is available.
func (h *Handler) EnableLogs(ctx context.Context, s *discordgo.Session, guildID, channelID string) (*discordgo.MessageEmbed, error) {
	if channelID == "" {
		return nil, errors.New("no channel specified")
	}

	cfg, err := h.store.GetGuildConfig(ctx, guildID)
	if errors.Is(err, database.ErrNotFound) {
		cfg = &models.GuildConfig{GuildID: guildID}
	} else if err != nil {
		return nil, err
	}

	cfg.LogChannelID = channelID
	if err := h.store.UpsertGuildConfig(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to save configuration: %w", err)
	}

	if s != nil {
		test := h.embed("✅ Moderation Logging Enabled", "This channel will now receive automatic moderation logs.")
		if _, err := s.ChannelMessageSendEmbed(channelID, test, discordgo.WithContext(ctx)); err != nil {
			return nil, fmt.Errorf("failed to send test message (check bot permissions): %w", err)
		}
	}

	return h.embed("✅ Log Channel Configured", fmt.Sprintf("Moderation logs will be sent to <#%s>", channelID),
		&discordgo.MessageEmbedField{Name: "📌 Channel", Value: fmt.Sprintf("<#%s>", channelID)},
	), nil
}
