package commands

import (
	"time"

	"github.com/bwmarrin/discordgo"
)

// isAdministrator reports whether the invoking member is the guild owner or
// holds the Administrator permission.
func isAdministrator(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	if i.Member.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}

	guild, err := s.State.Guild(i.GuildID)
	if err != nil {
		guild, err = s.Guild(i.GuildID)
		if err != nil {
			return false
		}
	}
	return i.Member.User.ID == guild.OwnerID
}

// respondPermissionError sends a permission denied error response
func respondPermissionError(s *discordgo.Session, i *discordgo.InteractionCreate, message string) {
	embed := &discordgo.MessageEmbed{
		Title:       "Access Denied",
		Description: message,
		Color:       embedColor,
		Footer: &discordgo.MessageEmbedFooter{
			Text: "modguard",
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}

	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
}
