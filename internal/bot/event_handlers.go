package bot

import (
	"context"
	"log/slog"
	"time"

	"go-modguard/internal/database"
	"go-modguard/internal/models"

	"github.com/bwmarrin/discordgo"
)

// webhookMaxAge bounds how old a WEBHOOK_CREATE entry may be when a
// WebhooksUpdate event is matched against it.
const webhookMaxAge = 15 * time.Second

// Ingest is the engine surface the gateway feeds.
type Ingest interface {
	OnAdministrativeEvent(ctx context.Context, ev models.AdminEvent)
	OnMessage(ctx context.Context, msg models.Message)
}

type Handlers struct {
	ctx      context.Context
	ingest   Ingest
	actors   *ActorResolver
	guilds   GuildSyncer
	defaults func(memberCount int) database.Defaults
	logger   *slog.Logger
}

func NewHandlers(ctx context.Context, ingest Ingest, actors *ActorResolver, guilds GuildSyncer, defaults func(memberCount int) database.Defaults, logger *slog.Logger) *Handlers {
	return &Handlers{
		ctx:      ctx,
		ingest:   ingest,
		actors:   actors,
		guilds:   guilds,
		defaults: defaults,
		logger:   logger.With("component", "gateway"),
	}
}

// Register configures Discord event handlers to feed the engine
func (h *Handlers) Register(s *Session) {
	s.AddHandler(h.onGuildCreate)
	s.AddHandler(h.onAuditLogEntry)
	s.AddHandler(h.onChannelCreate)
	s.AddHandler(h.onChannelDelete)
	s.AddHandler(h.onRoleCreate)
	s.AddHandler(h.onRoleDelete)
	s.AddHandler(h.onWebhooksUpdate)
	s.AddHandler(h.onMessageCreate)
	h.logger.Info("discord event handlers configured")
}

func (h *Handlers) onGuildCreate(_ *discordgo.Session, g *discordgo.GuildCreate) {
	if err := h.guilds.EnsureGuildConfigExists(h.ctx, g.ID, h.defaults(g.MemberCount)); err != nil {
		h.logger.Warn("failed to ensure guild config", "guild", g.ID, "err", err)
		return
	}
	h.logger.Info("bot joined/loaded guild", "guild", g.ID, "name", g.Name, "members", g.MemberCount)
}

// onAuditLogEntry caches every entry for actor resolution and feeds the
// kinds that have no dedicated gateway event.
func (h *Handlers) onAuditLogEntry(_ *discordgo.Session, e *discordgo.GuildAuditLogEntryCreate) {
	if e.GuildID == "" || e.AuditLogEntry == nil {
		return
	}
	h.actors.Remember(e.GuildID, e.AuditLogEntry)

	if ev, ok := adminEventFromAudit(e.GuildID, e.AuditLogEntry); ok {
		h.ingest.OnAdministrativeEvent(h.ctx, ev)
	}
}

func (h *Handlers) onChannelCreate(_ *discordgo.Session, c *discordgo.ChannelCreate) {
	if c.GuildID == "" {
		return
	}
	h.resolveAndIngest(c.GuildID, discordgo.AuditLogActionChannelCreate, c.ID, models.KindChannelCreate)
}

func (h *Handlers) onChannelDelete(_ *discordgo.Session, c *discordgo.ChannelDelete) {
	if c.GuildID == "" {
		return
	}
	h.resolveAndIngest(c.GuildID, discordgo.AuditLogActionChannelDelete, c.ID, models.KindChannelDelete)
}

func (h *Handlers) onRoleCreate(_ *discordgo.Session, r *discordgo.GuildRoleCreate) {
	if r.GuildID == "" || r.Role == nil {
		return
	}
	// managed roles are created by Discord for bots and integrations
	if r.Role.Managed {
		return
	}
	h.resolveAndIngest(r.GuildID, discordgo.AuditLogActionRoleCreate, r.Role.ID, models.KindRoleCreate)
}

func (h *Handlers) onRoleDelete(_ *discordgo.Session, r *discordgo.GuildRoleDelete) {
	if r.GuildID == "" {
		return
	}
	h.resolveAndIngest(r.GuildID, discordgo.AuditLogActionRoleDelete, r.RoleID, models.KindRoleDelete)
}

// onWebhooksUpdate fires for create, update and delete alike, so it is
// matched against the newest WEBHOOK_CREATE entry. The entry time is the
// event timestamp, which lets the engine drop the copy that also arrives
// through onAuditLogEntry.
func (h *Handlers) onWebhooksUpdate(_ *discordgo.Session, w *discordgo.WebhooksUpdate) {
	if w.GuildID == "" {
		return
	}
	actor, _, err := h.actors.ResolveLatest(h.ctx, w.GuildID, discordgo.AuditLogActionWebhookCreate, webhookMaxAge, time.Now())
	if err != nil {
		h.logger.Warn("failed to resolve webhook actor", "guild", w.GuildID, "err", err)
		return
	}
	if actor.ID == "" {
		return
	}
	h.ingest.OnAdministrativeEvent(h.ctx, models.AdminEvent{
		GuildID:   w.GuildID,
		ActorID:   actor.ID,
		Kind:      models.KindWebhookCreate,
		Timestamp: actor.At,
	})
}

func (h *Handlers) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Message == nil || m.GuildID == "" || m.Author == nil {
		return
	}
	h.ingest.OnMessage(h.ctx, messageFromCreate(m))
}

func (h *Handlers) resolveAndIngest(guildID string, action discordgo.AuditLogAction, targetID string, kind models.ActionKind) {
	actor, err := h.actors.Resolve(h.ctx, guildID, action, targetID)
	if err != nil {
		h.logger.Warn("failed to resolve actor", "guild", guildID, "kind", kind, "target", targetID, "err", err)
		return
	}
	if actor.ID == "" {
		h.logger.Debug("no audit log entry for event", "guild", guildID, "kind", kind, "target", targetID)
		return
	}

	at := actor.At
	if at.IsZero() {
		at = time.Now()
	}
	h.ingest.OnAdministrativeEvent(h.ctx, models.AdminEvent{
		GuildID:   guildID,
		ActorID:   actor.ID,
		Kind:      kind,
		Timestamp: at,
	})
}

// adminEventFromAudit maps the audit entries that are the only signal for
// their kind: kicks and bans (a member leaving looks the same either way)
// and webhook creation.
func adminEventFromAudit(guildID string, entry *discordgo.AuditLogEntry) (models.AdminEvent, bool) {
	if entry.ActionType == nil || entry.UserID == "" {
		return models.AdminEvent{}, false
	}

	var kind models.ActionKind
	switch *entry.ActionType {
	case discordgo.AuditLogActionMemberKick:
		kind = models.KindMemberKick
	case discordgo.AuditLogActionMemberBanAdd:
		kind = models.KindMemberBan
	case discordgo.AuditLogActionWebhookCreate:
		kind = models.KindWebhookCreate
	default:
		return models.AdminEvent{}, false
	}

	at := entryTime(entry)
	if at.IsZero() {
		at = time.Now()
	}
	return models.AdminEvent{GuildID: guildID, ActorID: entry.UserID, Kind: kind, Timestamp: at}, true
}

func messageFromCreate(m *discordgo.MessageCreate) models.Message {
	msg := models.Message{
		ID:        m.ID,
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
		msg.AuthorBot = m.Author.Bot
	}
	return msg
}
