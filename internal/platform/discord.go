package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Discord implements Platform on a discordgo session.
type Discord struct {
	session *discordgo.Session
}

func NewDiscord(session *discordgo.Session) *Discord {
	return &Discord{session: session}
}

func (d *Discord) BotID() string {
	if d.session.State == nil || d.session.State.User == nil {
		return ""
	}
	return d.session.State.User.ID
}

func (d *Discord) GuildOwnerID(ctx context.Context, guildID string) (string, error) {
	guild, err := d.guild(ctx, guildID)
	if err != nil {
		return "", classify("get guild", err)
	}
	return guild.OwnerID, nil
}

func (d *Discord) IsMember(ctx context.Context, guildID, userID string) (bool, error) {
	_, err := d.member(ctx, guildID, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (d *Discord) CanModerate(ctx context.Context, guildID, userID string) (bool, error) {
	guild, err := d.guild(ctx, guildID)
	if err != nil {
		return false, classify("get guild", err)
	}
	if guild.OwnerID == userID {
		return false, nil
	}

	roles := guild.Roles
	if len(roles) == 0 {
		roles, err = d.session.GuildRoles(guildID, discordgo.WithContext(ctx))
		if err != nil {
			return false, classify("get roles", err)
		}
	}
	positions := make(map[string]int, len(roles))
	for _, r := range roles {
		positions[r.ID] = r.Position
	}

	subject, err := d.member(ctx, guildID, userID)
	if err != nil {
		return false, err
	}
	bot, err := d.member(ctx, guildID, d.BotID())
	if err != nil {
		return false, err
	}

	return highestPosition(bot.Roles, positions) > highestPosition(subject.Roles, positions), nil
}

func (d *Discord) StripRoles(ctx context.Context, guildID, userID, reason string) error {
	_, err := d.session.GuildMemberEdit(guildID, userID,
		&discordgo.GuildMemberParams{Roles: &[]string{}},
		discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason),
	)
	return classify("strip roles", err)
}

func (d *Discord) Timeout(ctx context.Context, guildID, userID string, until time.Time, reason string) error {
	err := d.session.GuildMemberTimeout(guildID, userID, &until,
		discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason),
	)
	return classify("timeout", err)
}

func (d *Discord) Kick(ctx context.Context, guildID, userID, reason string) error {
	err := d.session.GuildMemberDeleteWithReason(guildID, userID, reason, discordgo.WithContext(ctx))
	return classify("kick", err)
}

func (d *Discord) Ban(ctx context.Context, guildID, userID, reason string) error {
	err := d.session.GuildBanCreateWithReason(guildID, userID, reason, 0, discordgo.WithContext(ctx))
	return classify("ban", err)
}

func (d *Discord) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	err := d.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
	return classify("delete message", err)
}

func (d *Discord) SendMessage(ctx context.Context, channelID, content string) (string, error) {
	msg, err := d.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	if err != nil {
		return "", classify("send message", err)
	}
	return msg.ID, nil
}

func (d *Discord) SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error {
	_, err := d.session.ChannelMessageSendEmbed(channelID, embed, discordgo.WithContext(ctx))
	return classify("send embed", err)
}

func (d *Discord) SendDirectMessage(ctx context.Context, userID, content string) error {
	ch, err := d.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return classify("open dm", err)
	}
	_, err = d.session.ChannelMessageSend(ch.ID, content, discordgo.WithContext(ctx))
	return classify("send dm", err)
}

func (d *Discord) guild(ctx context.Context, guildID string) (*discordgo.Guild, error) {
	if d.session.State != nil {
		if g, err := d.session.State.Guild(guildID); err == nil {
			return g, nil
		}
	}
	return d.session.Guild(guildID, discordgo.WithContext(ctx))
}

func (d *Discord) member(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	if d.session.State != nil {
		if m, err := d.session.State.Member(guildID, userID); err == nil {
			return m, nil
		}
	}
	m, err := d.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify("get member", err)
	}
	return m, nil
}

func highestPosition(roleIDs []string, positions map[string]int) int {
	highest := 0
	for _, id := range roleIDs {
		if p := positions[id]; p > highest {
			highest = p
		}
	}
	return highest
}

// classify maps discordgo REST failures onto ErrNotFound / ErrForbidden.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		if restErr.Message != nil {
			switch restErr.Message.Code {
			case discordgo.ErrCodeUnknownMember,
				discordgo.ErrCodeUnknownMessage,
				discordgo.ErrCodeUnknownChannel,
				discordgo.ErrCodeUnknownUser,
				discordgo.ErrCodeUnknownGuild:
				return &Error{Op: op, Kind: ErrNotFound, Err: err}
			case discordgo.ErrCodeMissingAccess,
				discordgo.ErrCodeMissingPermissions,
				discordgo.ErrCodeCannotSendMessagesToThisUser:
				return &Error{Op: op, Kind: ErrForbidden, Err: err}
			}
		}
		if restErr.Response != nil {
			switch restErr.Response.StatusCode {
			case http.StatusNotFound:
				return &Error{Op: op, Kind: ErrNotFound, Err: err}
			case http.StatusForbidden:
				return &Error{Op: op, Kind: ErrForbidden, Err: err}
			}
		}
	}

	if errors.Is(err, discordgo.ErrStateNotFound) {
		return &Error{Op: op, Kind: ErrNotFound, Err: err}
	}

	return &Error{Op: op, Err: fmt.Errorf("discord: %w", err)}
}
