package models

import "fmt"

// Action is the countermeasure applied to a subject.
type Action string

const (
	ActionNone       Action = ""
	ActionWarn       Action = "warn"
	ActionDelete     Action = "delete"
	ActionMute       Action = "mute"
	ActionTimeout    Action = "timeout"
	ActionKick       Action = "kick"
	ActionBan        Action = "ban"
	ActionStripRoles Action = "strip_roles"
)

// ParseAction validates a stored or user-supplied action string.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionWarn, ActionDelete, ActionMute, ActionTimeout, ActionKick, ActionBan, ActionStripRoles:
		return a, nil
	default:
		return ActionNone, fmt.Errorf("unknown action %q", s)
	}
}

// Severity orders actions from least to most disruptive.
func (a Action) Severity() int {
	switch a {
	case ActionDelete:
		return 1
	case ActionWarn:
		return 2
	case ActionMute, ActionTimeout:
		return 3
	case ActionStripRoles:
		return 4
	case ActionKick:
		return 5
	case ActionBan:
		return 6
	default:
		return 0
	}
}

// Mutates reports whether the action changes the subject's membership state
// on the platform (as opposed to only warning or deleting content).
func (a Action) Mutates() bool {
	switch a {
	case ActionMute, ActionTimeout, ActionKick, ActionBan, ActionStripRoles:
		return true
	}
	return false
}

// PastTense is used in notifications and audit entries.
func (a Action) PastTense() string {
	switch a {
	case ActionWarn:
		return "warned"
	case ActionDelete:
		return "had a message removed"
	case ActionMute, ActionTimeout:
		return "timed out"
	case ActionKick:
		return "kicked"
	case ActionBan:
		return "banned"
	case ActionStripRoles:
		return "stripped of all roles"
	default:
		return string(a)
	}
}
