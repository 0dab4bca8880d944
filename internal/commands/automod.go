package commands

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go-modguard/internal/database"
	"go-modguard/internal/models"

	"github.com/bwmarrin/discordgo"
)

// AddRule appends a content rule to the end of the guild's rule list.
func (h *Handler) AddRule(ctx context.Context, guildID string, typ models.PatternType, pattern, action, reason string) (*discordgo.MessageEmbed, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil, errors.New("pattern must not be empty")
	}

	switch typ {
	case models.PatternRegex:
		if _, err := regexp.Compile("(?i)" + pattern); err != nil {
			return nil, fmt.Errorf("invalid regex: %w", err)
		}
	case models.PatternContains, models.PatternExact, models.PatternDomain:
	default:
		return nil, fmt.Errorf("unknown rule type %q", typ)
	}

	act, err := models.ParseAction(action)
	if err != nil {
		return nil, err
	}

	rule := &models.PatternRule{
		GuildID: guildID,
		Type:    typ,
		Pattern: pattern,
		Action:  act,
		Reason:  strings.TrimSpace(reason),
		Enabled: true,
	}
	if err := h.store.AddPatternRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to save rule: %w", err)
	}
	h.rules.Invalidate(guildID)

	return h.embed("Rule Added", fmt.Sprintf("Automod rule **#%d** is now active.", rule.ID),
		&discordgo.MessageEmbedField{Name: "Type", Value: string(rule.Type), Inline: true},
		&discordgo.MessageEmbedField{Name: "Action", Value: string(rule.Action), Inline: true},
		&discordgo.MessageEmbedField{Name: "Pattern", Value: "`" + rule.Pattern + "`"},
	), nil
}

func (h *Handler) RemoveRule(ctx context.Context, guildID string, id int64) (*discordgo.MessageEmbed, error) {
	err := h.store.RemovePatternRule(ctx, guildID, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("rule #%d does not exist", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to remove rule: %w", err)
	}
	h.rules.Invalidate(guildID)

	return h.embed("Rule Removed", fmt.Sprintf("Automod rule **#%d** has been deleted.", id)), nil
}
