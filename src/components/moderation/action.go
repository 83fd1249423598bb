package moderation

import (
	"fmt"
	"strings"
)

// ActionType enumerates the moderator controls attached to a review message.
type ActionType string

const (
	ActionApprove ActionType = "approve"
	ActionReject  ActionType = "reject"
	ActionEdit    ActionType = "edit"
	ActionBan     ActionType = "ban"
)

const actionPrefix = "mod"

// Action is a decoded button payload. Key holds the submission key for
// approve/reject/edit and the submitter ID for ban (banning must keep working
// after the submission itself has been decided and dropped from the store).
type Action struct {
	Type ActionType
	Key  string
}

// CustomID encodes the action into a component custom ID, e.g.
// "mod:approve:7_42".
func (a Action) CustomID() string {
	return fmt.Sprintf("%s:%s:%s", actionPrefix, a.Type, a.Key)
}

// ParseAction decodes a component custom ID. Payloads are decoded exactly once
// at the transport boundary; anything malformed is an error, not a silent
// no-match.
func ParseAction(customID string) (Action, error) {
	parts := strings.SplitN(customID, ":", 3)
	if len(parts) != 3 || parts[0] != actionPrefix {
		return Action{}, fmt.Errorf("not a moderation action: %q", customID)
	}

	typ := ActionType(parts[1])
	switch typ {
	case ActionApprove, ActionReject, ActionEdit, ActionBan:
	default:
		return Action{}, fmt.Errorf("unknown moderation action %q", parts[1])
	}

	if parts[2] == "" {
		return Action{}, fmt.Errorf("moderation action %q has empty key", parts[1])
	}
	return Action{Type: typ, Key: parts[2]}, nil
}
