package models

import "time"

// ActionKind identifies a destructive administrative action tracked by the
// anti-nuke windows.
type ActionKind string

const (
	KindChannelDelete ActionKind = "channel_delete"
	KindRoleDelete    ActionKind = "role_delete"
	KindMemberKick    ActionKind = "member_kick"
	KindMemberBan     ActionKind = "member_ban"
	KindChannelCreate ActionKind = "channel_create"
	KindRoleCreate    ActionKind = "role_create"
	KindWebhookCreate ActionKind = "webhook_create"
)

// AllActionKinds returns every kind the tracker knows about, in display order.
func AllActionKinds() []ActionKind {
	return []ActionKind{
		KindChannelDelete,
		KindRoleDelete,
		KindMemberKick,
		KindMemberBan,
		KindChannelCreate,
		KindRoleCreate,
		KindWebhookCreate,
	}
}

// DisplayName returns a human-readable label for an action kind
func (k ActionKind) DisplayName() string {
	switch k {
	case KindChannelDelete:
		return "Deleting Channels"
	case KindRoleDelete:
		return "Deleting Roles"
	case KindMemberKick:
		return "Kicking Members"
	case KindMemberBan:
		return "Banning Members"
	case KindChannelCreate:
		return "Creating Channels"
	case KindRoleCreate:
		return "Creating Roles"
	case KindWebhookCreate:
		return "Creating Webhooks"
	default:
		return string(k)
	}
}

// IsDestructive reports whether the kind is one of the four destructive
// actions that are tracked by default.
func (k ActionKind) IsDestructive() bool {
	return k == KindChannelDelete ||
		k == KindRoleDelete ||
		k == KindMemberKick ||
		k == KindMemberBan
}

// AdminEvent is a single administrative action observed on the gateway.
type AdminEvent struct {
	GuildID   string
	ActorID   string
	Kind      ActionKind
	Timestamp time.Time
}

// Message is a guild message as seen by the automod path.
type Message struct {
	ID        string
	GuildID   string
	ChannelID string
	AuthorID  string
	AuthorBot bool
	Content   string
	Timestamp time.Time
}
