package commands

import (
	"go-modguard/internal/models"

	"github.com/bwmarrin/discordgo"
)

var adminOnly = int64(discordgo.PermissionAdministrator)

func actionChoices(actions ...models.Action) []*discordgo.ApplicationCommandOptionChoice {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(actions))
	for _, a := range actions {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: string(a), Value: string(a)})
	}
	return choices
}

func kindChoices() []*discordgo.ApplicationCommandOptionChoice {
	var choices []*discordgo.ApplicationCommandOptionChoice
	for _, k := range models.AllActionKinds() {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: k.DisplayName(), Value: string(k)})
	}
	return choices
}

// GetAllCommands returns all application commands
func GetAllCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:                     "warn",
			Description:              "Warn a member and record an infraction",
			DefaultMemberPermissions: &adminOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "user",
					Description: "Member to warn",
					Type:        discordgo.ApplicationCommandOptionUser,
					Required:    true,
				},
				{
					Name:        "reason",
					Description: "Why the member is being warned",
					Type:        discordgo.ApplicationCommandOptionString,
					Required:    true,
				},
			},
		},
		{
			Name:                     "automod",
			Description:              "Manage automod content rules",
			DefaultMemberPermissions: &adminOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "add",
					Description: "Add a content rule",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{
							Name:        "type",
							Description: "How the pattern is matched",
							Type:        discordgo.ApplicationCommandOptionString,
							Required:    true,
							Choices: []*discordgo.ApplicationCommandOptionChoice{
								{Name: "regex", Value: string(models.PatternRegex)},
								{Name: "contains", Value: string(models.PatternContains)},
								{Name: "exact", Value: string(models.PatternExact)},
								{Name: "domain", Value: string(models.PatternDomain)},
							},
						},
						{
							Name:        "pattern",
							Description: "Pattern to match",
							Type:        discordgo.ApplicationCommandOptionString,
							Required:    true,
						},
						{
							Name:        "action",
							Description: "What to do with the author",
							Type:        discordgo.ApplicationCommandOptionString,
							Required:    true,
							Choices:     actionChoices(models.ActionDelete, models.ActionWarn, models.ActionMute, models.ActionKick, models.ActionBan),
						},
						{
							Name:        "reason",
							Description: "Reason shown to the member",
							Type:        discordgo.ApplicationCommandOptionString,
						},
					},
				},
				{
					Name:        "remove",
					Description: "Remove a content rule",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{
							Name:        "id",
							Description: "Rule id",
							Type:        discordgo.ApplicationCommandOptionInteger,
							Required:    true,
						},
					},
				},
			},
		},
		{
			Name:                     "antinuke",
			Description:              "Manage anti-nuke system",
			DefaultMemberPermissions: &adminOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "toggle",
					Description: "Enable or disable anti-nuke protection",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{
							Name:        "enabled",
							Description: "Whether protection is on",
							Type:        discordgo.ApplicationCommandOptionBoolean,
							Required:    true,
						},
					},
				},
				{
					Name:        "limit",
					Description: "Set the limit for an action",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{
							Name:        "action",
							Description: "The action to configure",
							Type:        discordgo.ApplicationCommandOptionString,
							Required:    true,
							Choices:     kindChoices(),
						},
						{
							Name:        "limit",
							Description: "Max actions allowed in the window (0 stops tracking)",
							Type:        discordgo.ApplicationCommandOptionInteger,
							Required:    true,
						},
					},
				},
				{
					Name:        "whitelist",
					Description: "Manage whitelist",
					Type:        discordgo.ApplicationCommandOptionSubCommandGroup,
					Options: []*discordgo.ApplicationCommandOption{
						{
							Name:        "add",
							Description: "Add user to whitelist",
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Options: []*discordgo.ApplicationCommandOption{
								{
									Name:        "user",
									Description: "User to whitelist",
									Type:        discordgo.ApplicationCommandOptionUser,
									Required:    true,
								},
							},
						},
						{
							Name:        "remove",
							Description: "Remove user from whitelist",
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Options: []*discordgo.ApplicationCommandOption{
								{
									Name:        "user",
									Description: "User to remove from whitelist",
									Type:        discordgo.ApplicationCommandOptionUser,
									Required:    true,
								},
							},
						},
					},
				},
			},
		},
		{
			Name:                     "logs",
			Description:              "Configure logging",
			DefaultMemberPermissions: &adminOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "enable",
					Description: "Set log channel",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{
							Name:        "channel",
							Description: "Channel to send logs to",
							Type:        discordgo.ApplicationCommandOptionChannel,
							Required:    true,
						},
					},
				},
			},
		},
	}
}
