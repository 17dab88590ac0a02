package bots

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/C4AI/blab-controller/internal/types"
)

func TestEchoBotUpperCases(t *testing.T) {
	rec := &sendRecorder{}
	bot := NewUpperCaseEchoBot(rec.info())

	original := humanText("hello, world")
	bot.ReceiveMessage(original)

	require.Len(t, rec.sent, 1)
	assert.Equal(t, "HELLO, WORLD", rec.sent[0].Text)
	assert.Equal(t, types.MessageText, rec.sent[0].Type)
	assert.Equal(t, original.ID.String(), rec.sent[0].QuotedMessageID)
}

func TestEchoBotIgnoresBots(t *testing.T) {
	rec := &sendRecorder{}
	bot := NewUpperCaseEchoBot(rec.info())

	msg := humanText("hello")
	msg.SenderKind = types.KindBot
	bot.ReceiveMessage(msg)

	assert.Empty(t, rec.sent)
}

func TestEchoBotNonTextMessage(t *testing.T) {
	rec := &sendRecorder{}
	bot := NewUpperCaseEchoBot(rec.info())

	msg := humanText("hello")
	msg.Type = types.MessageVoice
	bot.ReceiveMessage(msg)

	require.Len(t, rec.sent, 1)
	assert.Equal(t, "?", rec.sent[0].Text)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("ECHO", false, NewUpperCaseEchoBot)
	r.Register("Calculator", true, NewCalculatorBot)

	spec, ok := r.Spec("Calculator")
	require.True(t, ok)
	assert.True(t, spec.Required)
	assert.NotNil(t, spec.Factory)

	_, ok = r.Spec("nope")
	assert.False(t, ok)

	assert.ElementsMatch(t, []string{"ECHO", "Calculator"}, r.Names())
}
