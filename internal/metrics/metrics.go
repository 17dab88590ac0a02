// Package metrics exposes the controller's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesSaved counts persisted messages by type.
	MessagesSaved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_messages_saved_total",
		Help: "Number of messages persisted, by message type.",
	}, []string{"type"})

	// DuplicateMessages counts idempotent no-op inserts.
	DuplicateMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_duplicate_messages_total",
		Help: "Number of message saves absorbed as local_id duplicates.",
	})

	// FanOuts counts message fan-out runs.
	FanOuts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_message_fanouts_total",
		Help: "Number of post-commit message fan-outs.",
	})

	// BotDispatches counts deliveries handed to bots, by mode.
	BotDispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_bot_dispatches_total",
		Help: "Number of bot deliveries, by dispatch mode (sync or queue).",
	}, []string{"mode"})

	// DroppedClientSends counts frames dropped on full client buffers.
	DroppedClientSends = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_dropped_client_sends_total",
		Help: "Number of frames dropped because a client send buffer was full.",
	})
)
