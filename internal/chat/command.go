package chat

import (
	"encoding/json"

	"github.com/sirupsen/logrus"
)

// Manager command actions.
const (
	ActionApprove  = "approve"
	ActionRedirect = "redirect"
)

// Command is the decoded JSON envelope the bot manager attaches to its
// own messages.
type Command struct {
	// Action is "approve", "redirect", or empty. Unknown actions are
	// reported by the actor and otherwise ignored.
	Action string
	// Bots lists redirect targets, by name or participant id.
	Bots []string
	// Overrides are per-delivery field overrides applied only to the
	// copies sent to redirect targets.
	Overrides map[string]any
	// SelfApprove marks the manager's own outgoing message approved at
	// creation.
	SelfApprove bool
	// SelfRedirect redirects the manager's own message, after it has
	// been committed, to the bots listed in Bots.
	SelfRedirect bool
	// OnBehalfOf reassigns the effective sender of the manager's
	// outgoing message to another participant of the conversation.
	OnBehalfOf string
}

// ParseCommand decodes a manager command envelope. Parsing never fails:
// malformed JSON, a non-object payload, or wrongly typed fields degrade
// to the zero command (or zero field) with a warning. Callers can rely on
// this being locally absorbed.
func ParseCommand(raw string, log *logrus.Entry) Command {
	var cmd Command
	if raw == "" {
		return cmd
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil || fields == nil {
		log.WithField("command", raw).Warn("ignoring malformed command from manager bot")
		return cmd
	}
	if v, ok := fields["action"].(string); ok {
		cmd.Action = v
	}
	if v, ok := fields["self_approve"].(bool); ok {
		cmd.SelfApprove = v
	}
	if v, ok := fields["self_redirect"].(bool); ok {
		cmd.SelfRedirect = v
	}
	if v, ok := fields["on_behalf_of"].(string); ok {
		cmd.OnBehalfOf = v
	}
	if v, ok := fields["overrides"].(map[string]any); ok {
		cmd.Overrides = v
	}
	if list, ok := fields["bots"].([]any); ok {
		for _, item := range list {
			if s, ok := item.(string); ok {
				cmd.Bots = append(cmd.Bots, s)
			}
		}
	}
	return cmd
}
