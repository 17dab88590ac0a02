package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/C4AI/blab-controller/internal/types"
)

const (
	taskKindMessage = "message"
	taskKindStatus  = "status"
)

// task is the queued bot-delivery payload. Messages are referenced by
// internal id and reloaded by the worker, so the queued copy can never go
// stale.
type task struct {
	Kind              string             `json:"kind"`
	BotParticipantID  uuid.UUID          `json:"bot_participant_id"`
	MessageInternalID int64              `json:"message_internal_id,omitempty"`
	Overrides         map[string]any     `json:"overrides,omitempty"`
	State             *types.StateUpdate `json:"state,omitempty"`
}

// Queue produces bot-delivery tasks onto a Kafka topic. Keying by bot
// participant id keeps per-bot delivery order.
type Queue struct {
	writer *kafka.Writer
}

// NewQueue creates a producer for the given brokers and topic.
func NewQueue(brokers []string, topic string) *Queue {
	return &Queue{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// EnqueueMessage queues a message delivery to one bot.
func (q *Queue) EnqueueMessage(ctx context.Context, botParticipantID uuid.UUID, messageInternalID int64, overrides map[string]any) error {
	return q.enqueue(ctx, &task{
		Kind:              taskKindMessage,
		BotParticipantID:  botParticipantID,
		MessageInternalID: messageInternalID,
		Overrides:         overrides,
	})
}

// EnqueueStatus queues a status delivery to one bot.
func (q *Queue) EnqueueStatus(ctx context.Context, botParticipantID uuid.UUID, state *types.StateUpdate) error {
	return q.enqueue(ctx, &task{
		Kind:             taskKindStatus,
		BotParticipantID: botParticipantID,
		State:            state,
	})
}

func (q *Queue) enqueue(ctx context.Context, t *task) error {
	value, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	return q.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(t.BotParticipantID.String()),
		Value: value,
		Time:  time.Now(),
	})
}

// Close flushes and closes the producer.
func (q *Queue) Close() error {
	return q.writer.Close()
}

// Worker consumes bot-delivery tasks and executes them through the
// dispatcher's synchronous path. Redelivery of failed tasks is left to
// the queue layer's own policy.
type Worker struct {
	reader     *kafka.Reader
	dispatcher *Dispatcher
	logger     *logrus.Logger
}

// NewWorker creates a consumer in the given group.
func NewWorker(brokers []string, topic, groupID string, dispatcher *Dispatcher, logger *logrus.Logger) *Worker {
	return &Worker{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		}),
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Run consumes tasks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		m, err := w.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.WithError(err).Error("read bot-delivery task")
			time.Sleep(time.Second)
			continue
		}
		var t task
		if err := json.Unmarshal(m.Value, &t); err != nil {
			w.logger.WithError(err).Warn("skip malformed bot-delivery task")
			continue
		}
		switch t.Kind {
		case taskKindMessage:
			w.dispatcher.deliverMessage(ctx, t.BotParticipantID, t.MessageInternalID, t.Overrides)
		case taskKindStatus:
			w.dispatcher.deliverStatus(ctx, t.BotParticipantID, t.State)
		default:
			w.logger.WithField("kind", t.Kind).Warn("skip bot-delivery task of unknown kind")
		}
	}
}

// Close closes the consumer.
func (w *Worker) Close() error {
	return w.reader.Close()
}
