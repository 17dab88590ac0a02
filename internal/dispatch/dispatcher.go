// Package dispatch resolves bot participants to receivers and invokes
// them, either synchronously in-process or through the Kafka task queue.
package dispatch

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/C4AI/blab-controller/internal/chat"
	"github.com/C4AI/blab-controller/internal/metrics"
	"github.com/C4AI/blab-controller/internal/types"
)

// ChatProvider resolves conversation actors. Implemented by
// chat.Registry.
type ChatProvider interface {
	GetChat(ctx context.Context, conversationID uuid.UUID) (*chat.Chat, error)
}

// Dispatcher delivers messages and status updates to bots. With a queue
// configured, deliveries are enqueued and executed by a Worker,
// decoupled from the triggering operation; without one, they run inline
// and block the caller (explicitly opt-in).
type Dispatcher struct {
	chats  ChatProvider
	store  chat.Store
	queue  *Queue
	logger *logrus.Logger
}

// NewDispatcher creates a dispatcher. queue may be nil for synchronous
// delivery.
func NewDispatcher(chats ChatProvider, store chat.Store, queue *Queue, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{chats: chats, store: store, queue: queue, logger: logger}
}

// DispatchMessage delivers one persisted message to one bot participant.
// Failures are logged, never propagated: a broken bot must not corrupt
// the sender's operation.
func (d *Dispatcher) DispatchMessage(ctx context.Context, bot *types.Participant, messageInternalID int64, overrides map[string]any) {
	if d.queue != nil {
		metrics.BotDispatches.WithLabelValues("queue").Inc()
		if err := d.queue.EnqueueMessage(ctx, bot.ID, messageInternalID, overrides); err != nil {
			d.logger.WithError(err).WithField("bot_participant_id", bot.ID).
				Error("enqueue bot delivery")
		}
		return
	}
	metrics.BotDispatches.WithLabelValues("sync").Inc()
	d.deliverMessage(ctx, bot.ID, messageInternalID, overrides)
}

// DispatchStatus delivers a participant-list update to one bot.
func (d *Dispatcher) DispatchStatus(ctx context.Context, bot *types.Participant, state *types.StateUpdate) {
	if d.queue != nil {
		metrics.BotDispatches.WithLabelValues("queue").Inc()
		if err := d.queue.EnqueueStatus(ctx, bot.ID, state); err != nil {
			d.logger.WithError(err).WithField("bot_participant_id", bot.ID).
				Error("enqueue bot status delivery")
		}
		return
	}
	metrics.BotDispatches.WithLabelValues("sync").Inc()
	d.deliverStatus(ctx, bot.ID, state)
}

func (d *Dispatcher) deliverMessage(ctx context.Context, botParticipantID uuid.UUID, messageInternalID int64, overrides map[string]any) {
	log := d.logger.WithFields(logrus.Fields{
		"bot_participant_id": botParticipantID,
		"message_id":         messageInternalID,
	})
	msg, err := d.store.GetMessageByInternalID(ctx, messageInternalID)
	if err != nil {
		log.WithError(err).Error("load message for bot delivery")
		return
	}
	bot, err := d.store.GetParticipant(ctx, botParticipantID)
	if err != nil {
		log.WithError(err).Error("load bot participant for delivery")
		return
	}
	c, err := d.chats.GetChat(ctx, msg.ConversationID)
	if err != nil {
		log.WithError(err).Error("resolve chat for bot delivery")
		return
	}
	if err := c.DeliverMessageToBot(ctx, msg, bot, overrides); err != nil {
		log.WithError(err).Error("deliver message to bot")
	}
}

func (d *Dispatcher) deliverStatus(ctx context.Context, botParticipantID uuid.UUID, state *types.StateUpdate) {
	log := d.logger.WithField("bot_participant_id", botParticipantID)
	bot, err := d.store.GetParticipant(ctx, botParticipantID)
	if err != nil {
		log.WithError(err).Error("load bot participant for status delivery")
		return
	}
	c, err := d.chats.GetChat(ctx, bot.ConversationID)
	if err != nil {
		log.WithError(err).Error("resolve chat for status delivery")
		return
	}
	if err := c.DeliverStatusToBot(ctx, state, bot); err != nil {
		log.WithError(err).Error("deliver status to bot")
	}
}
