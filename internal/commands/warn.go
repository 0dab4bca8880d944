package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go-modguard/internal/models"

	"github.com/bwmarrin/discordgo"
)

// Warn records a manual warning and lets escalation rules react to it.
func (h *Handler) Warn(ctx context.Context, guildID, moderatorID, targetID, reason string) (*discordgo.MessageEmbed, error) {
	reason = strings.TrimSpace(reason)
	if targetID == "" || reason == "" {
		return nil, errors.New("a member and a reason are required")
	}
	if targetID == moderatorID {
		return nil, errors.New("you cannot warn yourself")
	}

	inf := &models.Infraction{
		GuildID:     guildID,
		SubjectID:   targetID,
		ModeratorID: moderatorID,
		Type:        models.ActionWarn,
		Reason:      reason,
		CreatedAt:   h.now(),
	}
	if err := h.store.AddInfraction(ctx, inf); err != nil {
		return nil, fmt.Errorf("failed to record warning: %w", err)
	}
	h.observer.OnInfractionRecorded(ctx, guildID, targetID)

	return h.embed("Member Warned", fmt.Sprintf("<@%s> has been warned.", targetID),
		&discordgo.MessageEmbedField{Name: "Reason", Value: reason},
		&discordgo.MessageEmbedField{Name: "Infraction", Value: fmt.Sprintf("#%d", inf.ID), Inline: true},
	), nil
}
