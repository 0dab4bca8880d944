package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// AuditLogFetcher returns the most recent audit log entries of one type.
type AuditLogFetcher func(ctx context.Context, guildID string, action discordgo.AuditLogAction) (*discordgo.GuildAuditLog, error)

// SessionAuditLog fetches audit log entries over REST.
func SessionAuditLog(s *discordgo.Session) AuditLogFetcher {
	return func(ctx context.Context, guildID string, action discordgo.AuditLogAction) (*discordgo.GuildAuditLog, error) {
		return s.GuildAuditLog(guildID, "", "", int(action), 5, discordgo.WithContext(ctx))
	}
}

// Actor is who performed an audited action, and when.
type Actor struct {
	ID string
	At time.Time
}

// ActorResolver maps a gateway event (which carries no actor) onto the
// audit log entry that caused it. Entries pushed through Remember are served
// from cache; misses fall back to a REST fetch.
type ActorResolver struct {
	fetch  AuditLogFetcher
	cache  *expirable.LRU[string, Actor]
	logger *slog.Logger
}

func NewActorResolver(fetch AuditLogFetcher, ttl time.Duration, logger *slog.Logger) *ActorResolver {
	return &ActorResolver{
		fetch:  fetch,
		cache:  expirable.NewLRU[string, Actor](4096, nil, ttl),
		logger: logger,
	}
}

func actorKey(guildID string, action discordgo.AuditLogAction, targetID string) string {
	return guildID + ":" + strconv.Itoa(int(action)) + ":" + targetID
}

// Remember caches an audit log entry seen on the gateway.
func (r *ActorResolver) Remember(guildID string, entry *discordgo.AuditLogEntry) {
	if entry == nil || entry.ActionType == nil || entry.UserID == "" {
		return
	}
	r.cache.Add(actorKey(guildID, *entry.ActionType, entry.TargetID), Actor{ID: entry.UserID, At: entryTime(entry)})
}

// Resolve returns who performed action on targetID. A zero Actor means the
// audit log had no matching entry.
func (r *ActorResolver) Resolve(ctx context.Context, guildID string, action discordgo.AuditLogAction, targetID string) (Actor, error) {
	key := actorKey(guildID, action, targetID)
	if actor, ok := r.cache.Get(key); ok {
		return actor, nil
	}

	audit, err := r.fetch(ctx, guildID, action)
	if err != nil {
		return Actor{}, fmt.Errorf("fetching audit log: %w", err)
	}

	for _, entry := range audit.AuditLogEntries {
		if entry.TargetID != targetID || entry.UserID == "" {
			continue
		}
		actor := Actor{ID: entry.UserID, At: entryTime(entry)}
		r.cache.Add(key, actor)
		return actor, nil
	}
	return Actor{}, nil
}

// ResolveLatest returns the actor of the newest entry of action, if it is
// younger than maxAge. Used when the gateway event does not name a target.
func (r *ActorResolver) ResolveLatest(ctx context.Context, guildID string, action discordgo.AuditLogAction, maxAge time.Duration, now time.Time) (Actor, string, error) {
	audit, err := r.fetch(ctx, guildID, action)
	if err != nil {
		return Actor{}, "", fmt.Errorf("fetching audit log: %w", err)
	}
	if len(audit.AuditLogEntries) == 0 {
		return Actor{}, "", nil
	}

	entry := audit.AuditLogEntries[0]
	at := entryTime(entry)
	if entry.UserID == "" || now.Sub(at) > maxAge {
		return Actor{}, "", nil
	}
	return Actor{ID: entry.UserID, At: at}, entry.TargetID, nil
}

// entryTime reads the creation time out of the entry's snowflake id.
func entryTime(entry *discordgo.AuditLogEntry) time.Time {
	at, err := discordgo.SnowflakeTimestamp(entry.ID)
	if err != nil {
		return time.Time{}
	}
	return at
}
