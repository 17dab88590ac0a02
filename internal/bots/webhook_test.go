package bots

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/C4AI/blab-controller/internal/types"
)

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestWebhookBotPostsMessage(t *testing.T) {
	received := make(chan webhookPayload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload webhookPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		received <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rec := &sendRecorder{}
	info := rec.info()
	bot := NewWebhookFactory(srv.URL, discardLogger())(info)

	msg := humanText("ping")
	bot.ReceiveMessage(msg)

	payload := <-received
	assert.Equal(t, info.ConversationID.String(), payload.ConversationID)
	assert.Equal(t, info.BotParticipantID.String(), payload.ParticipantID)
	require.NotNil(t, payload.Message)
	assert.Equal(t, "ping", payload.Message.Text)
	assert.Nil(t, payload.State)
}

func TestWebhookBotPostsState(t *testing.T) {
	received := make(chan webhookPayload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload webhookPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		received <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rec := &sendRecorder{}
	bot := NewWebhookFactory(srv.URL, discardLogger())(rec.info())

	bot.UpdateStatus(&types.StateUpdate{
		Participants: []types.Participant{{Name: "alice", Kind: types.KindHuman}},
	})

	payload := <-received
	require.NotNil(t, payload.State)
	require.Len(t, payload.State.Participants, 1)
	assert.Equal(t, "alice", payload.State.Participants[0].Name)
}

func TestWebhookBotIgnoresOwnMessages(t *testing.T) {
	var posts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rec := &sendRecorder{}
	info := rec.info()
	bot := NewWebhookFactory(srv.URL, discardLogger())(info)

	own := humanText("from myself")
	own.SenderID = &info.BotParticipantID
	bot.ReceiveMessage(own)

	assert.Zero(t, posts)
}

func TestWebhookBotAbsorbsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	srv.Close() // connection refused from here on

	rec := &sendRecorder{}
	bot := NewWebhookFactory(srv.URL, discardLogger())(rec.info())

	// Must not panic or propagate.
	bot.ReceiveMessage(humanText("ping"))
}
