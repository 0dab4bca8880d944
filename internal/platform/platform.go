// Package platform is the engine's only way to mutate or message the chat
// platform. Everything the detectors decide goes through a Platform.
package platform

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/discordgo"
)

var (
	// ErrNotFound means the member, message or channel no longer exists.
	ErrNotFound = errors.New("platform: not found")
	// ErrForbidden means the bot lacks permission or is outranked.
	ErrForbidden = errors.New("platform: forbidden")
)

type Platform interface {
	BotID() string
	GuildOwnerID(ctx context.Context, guildID string) (string, error)
	IsMember(ctx context.Context, guildID, userID string) (bool, error)
	// CanModerate reports whether the bot's highest role is above the
	// member's. The guild owner can never be moderated.
	CanModerate(ctx context.Context, guildID, userID string) (bool, error)

	StripRoles(ctx context.Context, guildID, userID, reason string) error
	Timeout(ctx context.Context, guildID, userID string, until time.Time, reason string) error
	Kick(ctx context.Context, guildID, userID, reason string) error
	Ban(ctx context.Context, guildID, userID, reason string) error

	DeleteMessage(ctx context.Context, channelID, messageID string) error
	// SendMessage returns the id of the posted message.
	SendMessage(ctx context.Context, channelID, content string) (string, error)
	SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error
	SendDirectMessage(ctx context.Context, userID, content string) error
}

// Error wraps a platform failure with the operation that caused it. It
// matches ErrNotFound or ErrForbidden via errors.Is when classified.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error {
	if e.Kind == nil {
		return []error{e.Err}
	}
	return []error{e.Kind, e.Err}
}

// IsIgnorable reports errors that best-effort callers drop silently.
func IsIgnorable(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden)
}
