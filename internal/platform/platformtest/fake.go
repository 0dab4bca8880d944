// Package platformtest provides an in-memory Platform for tests.
package platformtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go-modguard/internal/platform"

	"github.com/bwmarrin/discordgo"
)

// Call records one Platform method invocation.
type Call struct {
	Method    string
	GuildID   string
	ChannelID string
	UserID    string
	MessageID string
	Content   string
	Reason    string
	Until     time.Time
	Embed     *discordgo.MessageEmbed
}

// Fake is a thread-safe Platform that records calls. Members are tracked
// per guild with the position of their highest role.
type Fake struct {
	mu sync.Mutex

	Bot         string
	BotPosition int

	owners  map[string]string
	members map[string]map[string]int
	errs    map[string]error
	calls   []Call
	nextID  int
}

var _ platform.Platform = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		Bot:         "bot",
		BotPosition: 100,
		owners:      make(map[string]string),
		members:     make(map[string]map[string]int),
		errs:        make(map[string]error),
	}
}

func (f *Fake) SetOwner(guildID, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.owners[guildID] = userID
}

// AddMember adds userID to guildID with the given top role position.
func (f *Fake) AddMember(guildID, userID string, position int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.members[guildID] == nil {
		f.members[guildID] = make(map[string]int)
	}
	f.members[guildID][userID] = position
}

// FailWith makes every later call to method return err. A nil err clears it.
func (f *Fake) FailWith(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, method)
		return
	}
	f.errs[method] = err
}

// Calls returns a copy of every recorded call.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsTo returns the recorded calls for one method.
func (f *Fake) CallsTo(method string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *Fake) record(c Call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.errs[c.Method]
}

func (f *Fake) BotID() string {
	return f.Bot
}

func (f *Fake) GuildOwnerID(ctx context.Context, guildID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["GuildOwnerID"]; err != nil {
		return "", err
	}
	owner, ok := f.owners[guildID]
	if !ok {
		return "", platform.ErrNotFound
	}
	return owner, nil
}

func (f *Fake) IsMember(ctx context.Context, guildID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["IsMember"]; err != nil {
		return false, err
	}
	_, ok := f.members[guildID][userID]
	return ok, nil
}

func (f *Fake) CanModerate(ctx context.Context, guildID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["CanModerate"]; err != nil {
		return false, err
	}
	if f.owners[guildID] == userID {
		return false, nil
	}
	pos, ok := f.members[guildID][userID]
	if !ok {
		return false, platform.ErrNotFound
	}
	return f.BotPosition > pos, nil
}

func (f *Fake) StripRoles(ctx context.Context, guildID, userID, reason string) error {
	return f.record(Call{Method: "StripRoles", GuildID: guildID, UserID: userID, Reason: reason})
}

func (f *Fake) Timeout(ctx context.Context, guildID, userID string, until time.Time, reason string) error {
	return f.record(Call{Method: "Timeout", GuildID: guildID, UserID: userID, Until: until, Reason: reason})
}

func (f *Fake) Kick(ctx context.Context, guildID, userID, reason string) error {
	if err := f.record(Call{Method: "Kick", GuildID: guildID, UserID: userID, Reason: reason}); err != nil {
		return err
	}
	f.removeMember(guildID, userID)
	return nil
}

func (f *Fake) Ban(ctx context.Context, guildID, userID, reason string) error {
	if err := f.record(Call{Method: "Ban", GuildID: guildID, UserID: userID, Reason: reason}); err != nil {
		return err
	}
	f.removeMember(guildID, userID)
	return nil
}

func (f *Fake) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return f.record(Call{Method: "DeleteMessage", ChannelID: channelID, MessageID: messageID})
}

func (f *Fake) SendMessage(ctx context.Context, channelID, content string) (string, error) {
	if err := f.record(Call{Method: "SendMessage", ChannelID: channelID, Content: content}); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return fmt.Sprintf("sent-%d", f.nextID), nil
}

func (f *Fake) SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error {
	return f.record(Call{Method: "SendEmbed", ChannelID: channelID, Embed: embed})
}

func (f *Fake) SendDirectMessage(ctx context.Context, userID, content string) error {
	return f.record(Call{Method: "SendDirectMessage", UserID: userID, Content: content})
}

func (f *Fake) removeMember(guildID, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.members[guildID], userID)
}
