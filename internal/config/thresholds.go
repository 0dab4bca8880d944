package config

import (
	"time"

	"go-modguard/internal/database"
	"go-modguard/internal/models"
)

type GuildSizeCategory uint8

const (
	SizeTiny GuildSizeCategory = iota
	SizeSmall
	SizeMedium
	SizeLarge
	SizeHuge
)

// DefaultThresholdMatrix holds the anti-nuke limits a guild starts with,
// by size. Larger guilds have more moderators doing legitimate bulk work.
var DefaultThresholdMatrix = map[GuildSizeCategory]map[models.ActionKind]int{
	SizeTiny: {
		models.KindMemberBan:     3,
		models.KindMemberKick:    5,
		models.KindChannelDelete: 2,
		models.KindRoleDelete:    2,
		models.KindWebhookCreate: 5,
	},
	SizeSmall: {
		models.KindMemberBan:     5,
		models.KindMemberKick:    8,
		models.KindChannelDelete: 3,
		models.KindRoleDelete:    3,
		models.KindWebhookCreate: 8,
	},
	SizeMedium: {
		models.KindMemberBan:     7,
		models.KindMemberKick:    12,
		models.KindChannelDelete: 5,
		models.KindRoleDelete:    5,
		models.KindWebhookCreate: 10,
	},
	SizeLarge: {
		models.KindMemberBan:     10,
		models.KindMemberKick:    15,
		models.KindChannelDelete: 7,
		models.KindRoleDelete:    7,
		models.KindWebhookCreate: 15,
	},
	SizeHuge: {
		models.KindMemberBan:     15,
		models.KindMemberKick:    20,
		models.KindChannelDelete: 10,
		models.KindRoleDelete:    10,
		models.KindWebhookCreate: 20,
	},
}

func GetCategoryBySize(memberCount int) GuildSizeCategory {
	switch {
	case memberCount < 100:
		return SizeTiny
	case memberCount < 1000:
		return SizeSmall
	case memberCount < 5000:
		return SizeMedium
	case memberCount < 20000:
		return SizeLarge
	default:
		return SizeHuge
	}
}

// GuildDefaults builds the rows seeded for a newly joined guild.
// Configured limits win over the size-based matrix.
func (c *Config) GuildDefaults(memberCount int) database.Defaults {
	limits := make(map[models.ActionKind]int)
	for kind, n := range DefaultThresholdMatrix[GetCategoryBySize(memberCount)] {
		limits[kind] = n
	}
	for kind, n := range c.AntiNuke.Limits {
		limits[kind] = n
	}

	return database.Defaults{
		AntiNuke: models.AntiNukeConfig{
			TimeWindowSeconds: int(c.AntiNuke.TimeWindow.Std() / time.Second),
			Punishment:        c.AntiNuke.Punishment,
			Thresholds:        limits,
		},
		Spam: models.SpamConfig{
			MaxMessages:      c.Spam.MaxMessages,
			MaxMentions:      c.Spam.MaxMentions,
			MaxEmojis:        c.Spam.MaxEmojis,
			MaxRepeatedChars: c.Spam.MaxRepeatedChars,
			TimeWindow:       int(c.Spam.TimeWindow.Std() / time.Second),
			Action:           c.Spam.Action,
			MuteMinutes:      c.Spam.MuteMinutes,
		},
	}
}
