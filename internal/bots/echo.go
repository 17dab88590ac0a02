package bots

import (
	"strings"

	"github.com/C4AI/blab-controller/internal/types"
)

// UpperCaseEchoBot echoes text messages back in upper-case letters.
type UpperCaseEchoBot struct {
	info ConversationInfo
}

// NewUpperCaseEchoBot is the registry factory for the echo bot.
func NewUpperCaseEchoBot(info ConversationInfo) Bot {
	return &UpperCaseEchoBot{info: info}
}

// ReceiveMessage replies to human text messages with their upper-case
// form, quoting the original. Messages from bots are ignored.
func (b *UpperCaseEchoBot) ReceiveMessage(msg *types.Message) {
	if !msg.SentByHuman() {
		return
	}
	result := "?"
	if msg.Type == types.MessageText {
		result = strings.ToUpper(msg.Text)
	}
	_, _ = b.info.Send(&types.MessageData{
		Type:            types.MessageText,
		Text:            result,
		QuotedMessageID: msg.ID.String(),
	})
}

// UpdateStatus is a no-op; the echo bot does not track participants.
func (b *UpperCaseEchoBot) UpdateStatus(status *types.StateUpdate) {}
