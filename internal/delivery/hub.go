package delivery

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/C4AI/blab-controller/internal/metrics"
	"github.com/C4AI/blab-controller/internal/types"
)

const clientSendBuffer = 64

// Client is one live websocket connection of a participant.
type Client struct {
	Participant types.Participant

	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

// NewClient wraps an upgraded websocket connection.
func NewClient(p types.Participant, conn *websocket.Conn) *Client {
	return &Client{
		Participant: p,
		conn:        conn,
		send:        make(chan []byte, clientSendBuffer),
	}
}

// Queue enqueues a frame for the writer goroutine. Frames are dropped
// when the buffer is full; a slow client must not stall the hub.
func (c *Client) Queue(frame []byte) {
	select {
	case c.send <- frame:
	default:
		metrics.DroppedClientSends.Inc()
	}
}

// WritePump writes queued frames to the connection until Close.
func (c *Client) WritePump() {
	for frame := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}
}

// Close stops the writer. Safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() { close(c.send) })
}

// Hub tracks the live connections of this process, grouped by audience.
type Hub struct {
	logger *logrus.Logger

	mu     sync.RWMutex
	groups map[string]map[*Client]struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		logger: logger,
		groups: make(map[string]map[*Client]struct{}),
	}
}

// Attach registers a client in the given groups.
func (h *Hub) Attach(client *Client, groups []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, g := range groups {
		members, ok := h.groups[g]
		if !ok {
			members = make(map[*Client]struct{})
			h.groups[g] = members
		}
		members[client] = struct{}{}
	}
}

// Detach removes a client from every group.
func (h *Hub) Detach(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for g, members := range h.groups {
		delete(members, client)
		if len(members) == 0 {
			delete(h.groups, g)
		}
	}
}

// Publish sends a frame to every local member of a group.
func (h *Hub) Publish(_ context.Context, group string, frame []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.groups[group] {
		client.Queue(frame)
	}
	return nil
}
