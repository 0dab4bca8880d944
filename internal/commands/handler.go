package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"go-modguard/internal/models"

	"github.com/bwmarrin/discordgo"
)

const embedColor = 0x2B2D31

var errUsage = errors.New("invalid command usage")

// Store is the slice of the database the commands write to.
type Store interface {
	AddInfraction(ctx context.Context, inf *models.Infraction) error
	AddPatternRule(ctx context.Context, rule *models.PatternRule) error
	RemovePatternRule(ctx context.Context, guildID string, id int64) error
	AddWhitelist(ctx context.Context, guildID, targetID, addedBy string) error
	RemoveWhitelist(ctx context.Context, guildID, targetID string) error
	GetAntiNukeConfig(ctx context.Context, guildID string) (*models.AntiNukeConfig, error)
	UpsertAntiNukeConfig(ctx context.Context, cfg *models.AntiNukeConfig) error
	SetAntiNukeEnabled(ctx context.Context, guildID string, enabled bool) error
	GetGuildConfig(ctx context.Context, guildID string) (*models.GuildConfig, error)
	UpsertGuildConfig(ctx context.Context, cfg *models.GuildConfig) error
}

// InfractionObserver is told about manually recorded infractions so that
// escalation rules apply to them too.
type InfractionObserver interface {
	OnInfractionRecorded(ctx context.Context, guildID, subjectID string)
}

// RuleCache drops compiled pattern rules after an edit.
type RuleCache interface {
	Invalidate(guildID string)
}

// Handler manages all command interactions
type Handler struct {
	store    Store
	observer InfractionObserver
	rules    RuleCache
	logger   *slog.Logger
	timeout  time.Duration
	now      func() time.Time
}

func NewHandler(store Store, observer InfractionObserver, rules RuleCache, logger *slog.Logger) *Handler {
	return &Handler{
		store:    store,
		observer: observer,
		rules:    rules,
		logger:   logger.With("component", "commands"),
		timeout:  10 * time.Second,
		now:      time.Now,
	}
}

// Register installs the interaction handler and creates the global
// application commands.
func (h *Handler) Register(s *discordgo.Session, appID string) error {
	s.AddHandler(h.handleInteraction)

	commands := GetAllCommands()
	for _, cmd := range commands {
		if _, err := s.ApplicationCommandCreate(appID, "", cmd); err != nil {
			return fmt.Errorf("failed to register command %s: %w", cmd.Name, err)
		}
	}
	h.logger.Info("registered slash commands", "count", len(commands))
	return nil
}

func (h *Handler) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	logger := h.logger.With("command", data.Name, "guild", i.GuildID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("command exception", "err", r, "stack", string(debug.Stack()))
		}
	}()

	if i.GuildID == "" || i.Member == nil || i.Member.User == nil {
		respondError(s, i, "Commands can only be used inside a server.")
		return
	}
	if !isAdministrator(s, i) {
		respondPermissionError(s, i, "You need the Administrator permission to use this command.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	embed, err := h.route(ctx, s, i, data)
	if err != nil {
		logger.Warn("command failed", "user", i.Member.User.ID, "err", err)
		respondError(s, i, err.Error())
		return
	}

	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		logger.Warn("failed to respond to interaction", "err", err)
	}
}

func (h *Handler) route(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) (*discordgo.MessageEmbed, error) {
	moderator := i.Member.User.ID

	switch data.Name {
	case "warn":
		opts := optionMap(data.Options)
		return h.Warn(ctx, i.GuildID, moderator, userOption(s, opts["user"]), stringOption(opts["reason"]))

	case "automod":
		sub := subcommand(data.Options)
		if sub == nil {
			return nil, errUsage
		}
		opts := optionMap(sub.Options)
		switch sub.Name {
		case "add":
			return h.AddRule(ctx, i.GuildID, models.PatternType(stringOption(opts["type"])),
				stringOption(opts["pattern"]), stringOption(opts["action"]), stringOption(opts["reason"]))
		case "remove":
			return h.RemoveRule(ctx, i.GuildID, intOption(opts["id"]))
		}

	case "antinuke":
		sub := subcommand(data.Options)
		if sub == nil {
			return nil, errUsage
		}
		switch sub.Name {
		case "toggle":
			opts := optionMap(sub.Options)
			return h.ToggleAntiNuke(ctx, i.GuildID, boolOption(opts["enabled"]))
		case "limit":
			opts := optionMap(sub.Options)
			return h.SetLimit(ctx, i.GuildID, models.ActionKind(stringOption(opts["action"])), int(intOption(opts["limit"])))
		case "whitelist":
			leaf := subcommand(sub.Options)
			if leaf == nil {
				return nil, errUsage
			}
			target := userOption(s, optionMap(leaf.Options)["user"])
			switch leaf.Name {
			case "add":
				return h.WhitelistAdd(ctx, i.GuildID, target, moderator)
			case "remove":
				return h.WhitelistRemove(ctx, i.GuildID, target)
			}
		}

	case "logs":
		sub := subcommand(data.Options)
		if sub == nil || sub.Name != "enable" {
			return nil, errUsage
		}
		opts := optionMap(sub.Options)
		return h.EnableLogs(ctx, s, i.GuildID, channelOption(s, opts["channel"]))
	}

	return nil, fmt.Errorf("unknown command: %s", data.Name)
}

func subcommand(opts []*discordgo.ApplicationCommandInteractionDataOption) *discordgo.ApplicationCommandInteractionDataOption {
	if len(opts) == 0 {
		return nil
	}
	return opts[0]
}

func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, opt := range opts {
		m[opt.Name] = opt
	}
	return m
}

func stringOption(opt *discordgo.ApplicationCommandInteractionDataOption) string {
	if opt == nil {
		return ""
	}
	return opt.StringValue()
}

func intOption(opt *discordgo.ApplicationCommandInteractionDataOption) int64 {
	if opt == nil {
		return 0
	}
	return opt.IntValue()
}

func boolOption(opt *discordgo.ApplicationCommandInteractionDataOption) bool {
	if opt == nil {
		return false
	}
	return opt.BoolValue()
}

func userOption(s *discordgo.Session, opt *discordgo.ApplicationCommandInteractionDataOption) string {
	if opt == nil {
		return ""
	}
	return opt.UserValue(s).ID
}

func channelOption(s *discordgo.Session, opt *discordgo.ApplicationCommandInteractionDataOption) string {
	if opt == nil {
		return ""
	}
	return opt.ChannelValue(s).ID
}

func (h *Handler) embed(title, description string, fields ...*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       embedColor,
		Fields:      fields,
		Footer: &discordgo.MessageEmbedFooter{
			Text: "modguard",
		},
		Timestamp: h.now().Format(time.RFC3339),
	}
}

// respondError sends an ephemeral error message
func respondError(s *discordgo.Session, i *discordgo.InteractionCreate, message string) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: fmt.Sprintf("❌ Error: %s", message),
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}
