package bots

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/C4AI/blab-controller/internal/types"
)

// WebhookBot forwards messages and status updates to an external service
// over HTTP. It is the in-process handle for bots that live outside the
// controller but do not hold a websocket connection.
type WebhookBot struct {
	info       ConversationInfo
	url        string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewWebhookFactory returns a registry factory producing webhook bots
// bound to the given URL.
func NewWebhookFactory(url string, logger *logrus.Logger) Factory {
	return func(info ConversationInfo) Bot {
		return &WebhookBot{
			info: info,
			url:  url,
			httpClient: &http.Client{
				Timeout: 30 * time.Second,
			},
			logger: logger,
		}
	}
}

type webhookPayload struct {
	ConversationID string             `json:"conversation_id"`
	ParticipantID  string             `json:"participant_id"`
	Message        *types.Message     `json:"message,omitempty"`
	State          *types.StateUpdate `json:"state,omitempty"`
}

// ReceiveMessage posts the message envelope to the webhook URL. Messages
// sent by the bot itself are ignored.
func (b *WebhookBot) ReceiveMessage(msg *types.Message) {
	if msg.SenderID != nil && *msg.SenderID == b.info.BotParticipantID {
		return
	}
	b.post(&webhookPayload{
		ConversationID: b.info.ConversationID.String(),
		ParticipantID:  b.info.BotParticipantID.String(),
		Message:        msg,
	})
}

// UpdateStatus posts the state envelope to the webhook URL.
func (b *WebhookBot) UpdateStatus(status *types.StateUpdate) {
	b.post(&webhookPayload{
		ConversationID: b.info.ConversationID.String(),
		ParticipantID:  b.info.BotParticipantID.String(),
		State:          status,
	})
}

// post delivers one payload. Failures are logged, never propagated: a
// broken webhook must not corrupt the triggering operation.
func (b *WebhookBot) post(payload *webhookPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		b.logger.WithError(err).Warn("webhook bot: marshal payload")
		return
	}
	resp, err := b.httpClient.Post(b.url, "application/json", bytes.NewReader(body))
	if err != nil {
		b.logger.WithError(err).WithField("url", b.url).Warn("webhook bot: post failed")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		b.logger.WithFields(logrus.Fields{
			"url":    b.url,
			"status": resp.StatusCode,
		}).Warn("webhook bot: unexpected status")
	}
}
