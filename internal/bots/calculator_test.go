package bots

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/C4AI/blab-controller/internal/types"
)

func TestEvaluate(t *testing.T) {
	cases := map[string]string{
		"2+2":            "4",
		"1 + 2 * 3":      "7",
		"(1 + 2) * 3":    "9",
		"-4":             "-4",
		"+4":             "4",
		"10 / 4":         "2.5",
		"7 % 3":          "1",
		"1.5 + 1.5":      "3",
		"2 - 10":         "-8",
		"1/0":            "?",
		"5 % 0":          "?",
		"2 ** 3":         "?",
		"x + 1":          "?",
		"len(\"abc\")":   "?",
		"1 << 3":         "?",
		"":               "?",
		"hello":          "?",
		"1e308 * 1e308":  "?",
	}
	for expr, want := range cases {
		assert.Equal(t, want, Evaluate(expr), "expression %q", expr)
	}
}

// sendRecorder captures what a bot sends back.
type sendRecorder struct {
	sent []*types.MessageData
}

func (r *sendRecorder) info() ConversationInfo {
	return ConversationInfo{
		ConversationID:   uuid.New(),
		BotParticipantID: uuid.New(),
		Send: func(data *types.MessageData) (*types.Message, error) {
			r.sent = append(r.sent, data)
			return &types.Message{}, nil
		},
	}
}

func humanText(text string) *types.Message {
	sender := uuid.New()
	return &types.Message{
		ID:         uuid.New(),
		Type:       types.MessageText,
		Text:       text,
		SenderID:   &sender,
		SenderKind: types.KindHuman,
	}
}

func TestCalculatorBotRepliesWithResult(t *testing.T) {
	rec := &sendRecorder{}
	bot := NewCalculatorBot(rec.info())

	original := humanText("6 * 7")
	bot.ReceiveMessage(original)

	require.Len(t, rec.sent, 1)
	assert.Equal(t, "42", rec.sent[0].Text)
	assert.Equal(t, original.ID.String(), rec.sent[0].QuotedMessageID)
}

func TestCalculatorBotIgnoresBots(t *testing.T) {
	rec := &sendRecorder{}
	bot := NewCalculatorBot(rec.info())

	msg := humanText("2+2")
	msg.SenderKind = types.KindBot
	bot.ReceiveMessage(msg)

	assert.Empty(t, rec.sent)
}

func TestCalculatorBotNonTextMessage(t *testing.T) {
	rec := &sendRecorder{}
	bot := NewCalculatorBot(rec.info())

	msg := humanText("2+2")
	msg.Type = types.MessageAttachment
	bot.ReceiveMessage(msg)

	require.Len(t, rec.sent, 1)
	assert.Equal(t, "?", rec.sent[0].Text)
}
