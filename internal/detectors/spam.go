package detectors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go-modguard/internal/database"
	"go-modguard/internal/decision"
	"go-modguard/internal/models"
	"go-modguard/internal/state"
)

// DuplicateThreshold is the number of identical messages (the new one
// included) inside the window that may be exceeded before it counts as
// duplicate spam.
const DuplicateThreshold = 3

// Heuristic names the spam check that fired.
type Heuristic string

const (
	HeuristicNone      Heuristic = ""
	HeuristicFlood     Heuristic = "message_spam"
	HeuristicDuplicate Heuristic = "duplicate_spam"
	HeuristicMention   Heuristic = "mention_spam"
	HeuristicEmoji     Heuristic = "emoji_spam"
	HeuristicCharacter Heuristic = "character_spam"
)

// CharRepeatMode selects how character_spam counts repeats.
type CharRepeatMode string

const (
	// CharRepeatTotal counts every occurrence of a character in the message.
	CharRepeatTotal CharRepeatMode = "total"
	// CharRepeatRun counts only the longest consecutive run.
	CharRepeatRun CharRepeatMode = "run"
)

type SpamConfigStore interface {
	GetSpamConfig(ctx context.Context, guildID string) (*models.SpamConfig, error)
}

// SpamDetector runs the spam heuristics over a per (guild, author) window.
type SpamDetector struct {
	store   SpamConfigStore
	tracker *state.Tracker
	logger  *slog.Logger

	CharRepeatMode CharRepeatMode
}

func NewSpamDetector(store SpamConfigStore, tracker *state.Tracker, logger *slog.Logger) *SpamDetector {
	return &SpamDetector{
		store:          store,
		tracker:        tracker,
		logger:         logger.With("detector", decision.DetectorAutomod),
		CharRepeatMode: CharRepeatTotal,
	}
}

// Evaluate appends msg to its author's window and runs the heuristics in
// fixed order: flood, duplicate, mention, emoji, character repeat. The
// first one that fires wins. Only flood and duplicate reset the window.
func (d *SpamDetector) Evaluate(ctx context.Context, msg models.Message, cfg *models.SpamConfig) (Heuristic, error) {
	at := msg.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	tag := ContentTag(msg.Content)

	fired := HeuristicNone
	key := state.Key("spam", msg.GuildID, msg.AuthorID)
	_, err := d.tracker.Observe(ctx, key, state.Entry{At: at, Tag: tag}, cfg.Window(), func(w []state.Entry) bool {
		if cfg.MaxMessages > 0 && len(w) >= cfg.MaxMessages {
			fired = HeuristicFlood
			return true
		}
		dupes := 0
		for _, e := range w {
			if e.Tag == tag {
				dupes++
			}
		}
		if dupes > DuplicateThreshold {
			fired = HeuristicDuplicate
			return true
		}
		return false
	})
	if err != nil {
		return HeuristicNone, fmt.Errorf("tracking messages: %w", err)
	}
	if fired != HeuristicNone {
		return fired, nil
	}

	if cfg.MaxMentions > 0 && CountMentions(msg.Content) > cfg.MaxMentions {
		return HeuristicMention, nil
	}
	if cfg.MaxEmojis > 0 && CountEmojis(msg.Content) > cfg.MaxEmojis {
		return HeuristicEmoji, nil
	}
	if cfg.MaxRepeatedChars > 0 && d.repeats(msg.Content) > cfg.MaxRepeatedChars {
		return HeuristicCharacter, nil
	}
	return HeuristicNone, nil
}

func (d *SpamDetector) repeats(content string) int {
	if d.CharRepeatMode == CharRepeatRun {
		return MaxCharRun(content)
	}
	return MaxCharCount(content)
}

// Observe loads the guild's spam config and returns a countermeasure if a
// heuristic fired.
func (d *SpamDetector) Observe(ctx context.Context, msg models.Message) (*decision.Countermeasure, error) {
	cfg, err := d.store.GetSpamConfig(ctx, msg.GuildID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading spam config: %w", err)
	}
	if !cfg.Enabled || cfg.Window() <= 0 {
		return nil, nil
	}

	h, err := d.Evaluate(ctx, msg, cfg)
	if err != nil || h == HeuristicNone {
		return nil, err
	}

	at := msg.Timestamp
	if at.IsZero() {
		at = time.Now()
	}

	action := cfg.Action
	switch action {
	case models.ActionWarn, models.ActionMute, models.ActionKick:
	case models.ActionTimeout:
		action = models.ActionMute
	default:
		d.logger.Warn("unsupported spam action, falling back to warn", "guild", msg.GuildID, "action", cfg.Action)
		action = models.ActionWarn
	}

	cm := decision.New(decision.DetectorAutomod, string(h), msg.GuildID, msg.AuthorID, action, at)
	cm.ChannelID = msg.ChannelID
	cm.MessageID = msg.ID
	cm.DeleteMessage = true
	cm.RecordInfraction = true
	cm.Escalate = true
	cm.Notify = decision.NotifyChannel
	cm.Reason = "Automod: " + h.Description()
	if action == models.ActionMute {
		minutes := cfg.MuteMinutes
		if minutes <= 0 {
			minutes = DefaultMuteMinutes
		}
		cm.Duration = time.Duration(minutes) * time.Minute
	}

	d.logger.Info("spam heuristic fired", "guild", msg.GuildID, "actor", msg.AuthorID, "heuristic", string(h))
	return cm, nil
}

// Description is the human-readable reason shown to members.
func (h Heuristic) Description() string {
	switch h {
	case HeuristicFlood:
		return "sending messages too quickly"
	case HeuristicDuplicate:
		return "repeating the same message"
	case HeuristicMention:
		return "too many mentions"
	case HeuristicEmoji:
		return "too many emojis"
	case HeuristicCharacter:
		return "too many repeated characters"
	default:
		return string(h)
	}
}
