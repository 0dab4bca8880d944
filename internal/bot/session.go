package bot

import (
	"context"
	"fmt"
	"log/slog"

	"go-modguard/internal/database"

	"github.com/bwmarrin/discordgo"
)

type Session struct {
	discord *discordgo.Session
	logger  *slog.Logger
}

// New creates the Discord session. The connection is opened by Connect.
func New(token string, logger *slog.Logger) (*Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildBans |
		discordgo.IntentsGuildWebhooks |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent

	return &Session{
		discord: dg,
		logger:  logger.With("component", "gateway"),
	}, nil
}

// Discord returns the underlying discordgo session
func (s *Session) Discord() *discordgo.Session {
	return s.discord
}

// Connect opens the Discord websocket connection
func (s *Session) Connect() error {
	if err := s.discord.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	if s.discord.State.User != nil {
		s.logger.Info("discord bot connected", "bot", s.discord.State.User.ID, "username", s.discord.State.User.Username)
	}
	return nil
}

// Close closes the Discord connection
func (s *Session) Close() error {
	if s.discord != nil {
		return s.discord.Close()
	}
	return nil
}

// AddHandler adds an event handler to the Discord session
func (s *Session) AddHandler(handler interface{}) func() {
	return s.discord.AddHandler(handler)
}

// GuildSyncer seeds configuration rows for guilds the bot is in.
type GuildSyncer interface {
	EnsureGuildConfigExists(ctx context.Context, guildID string, defaults database.Defaults) error
}

// SyncGuilds makes sure every guild in the session state has config rows.
// Existing rows are never overwritten.
func (s *Session) SyncGuilds(ctx context.Context, db GuildSyncer, defaults func(memberCount int) database.Defaults) {
	s.discord.State.RLock()
	guilds := make([]*discordgo.Guild, len(s.discord.State.Guilds))
	copy(guilds, s.discord.State.Guilds)
	s.discord.State.RUnlock()

	for _, guild := range guilds {
		if err := db.EnsureGuildConfigExists(ctx, guild.ID, defaults(guild.MemberCount)); err != nil {
			s.logger.Warn("failed to ensure guild config", "guild", guild.ID, "err", err)
		}
	}
	s.logger.Info("guild sync completed", "guilds", len(guilds))
}
