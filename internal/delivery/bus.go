// Package delivery implements the group-based delivery bus: local
// websocket fan-out per conversation audience, optionally bridged across
// processes through Redis pub/sub.
package delivery

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/C4AI/blab-controller/internal/types"
)

// Audience group names, scoped per conversation.
func groupAll(conversationID uuid.UUID) string {
	return fmt.Sprintf("chat.%s.all", conversationID)
}

func groupHumans(conversationID uuid.UUID) string {
	return fmt.Sprintf("chat.%s.humans", conversationID)
}

func groupParticipant(conversationID, participantID uuid.UUID) string {
	return fmt.Sprintf("chat.%s.part.%s", conversationID, participantID)
}

func groupManager(conversationID uuid.UUID) string {
	return fmt.Sprintf("chat.%s.manager", conversationID)
}

// GroupsFor returns the audience groups a participant's live connection
// belongs to: ALL, HUMANS_ONLY for humans, its own SINGLE group, and the
// manager group when it is the conversation's bot manager.
func GroupsFor(p *types.Participant, managerName string) []string {
	groups := []string{
		groupAll(p.ConversationID),
		groupParticipant(p.ConversationID, p.ID),
	}
	if p.Kind == types.KindHuman {
		groups = append(groups, groupHumans(p.ConversationID))
	} else if managerName != "" && p.Name == managerName {
		groups = append(groups, groupManager(p.ConversationID))
	}
	return groups
}

// Publisher sends one frame to every live member of a group. The local
// Hub is a Publisher; the Redis bridge is another that crosses process
// boundaries.
type Publisher interface {
	Publish(ctx context.Context, group string, frame []byte) error
}

// Bus maps the conversation audiences onto group publishes. Delivery is
// best-effort to connected clients only: nothing is queued or redelivered
// for disconnected participants.
type Bus struct {
	pub Publisher
}

// NewBus creates a Bus on top of a publisher.
func NewBus(pub Publisher) *Bus {
	return &Bus{pub: pub}
}

// BroadcastMessage fans a message out to the conversation, excluding bot
// connections when humansOnly is set.
func (b *Bus) BroadcastMessage(ctx context.Context, msg *types.Message, humansOnly bool) error {
	frame, err := json.Marshal(types.MessageEnvelope{Message: msg})
	if err != nil {
		return fmt.Errorf("marshal message envelope: %w", err)
	}
	group := groupAll(msg.ConversationID)
	if humansOnly {
		group = groupHumans(msg.ConversationID)
	}
	return b.pub.Publish(ctx, group, frame)
}

// BroadcastState pushes a participant-list update to every connection of
// the conversation.
func (b *Bus) BroadcastState(ctx context.Context, conversationID uuid.UUID, state *types.StateUpdate) error {
	frame, err := json.Marshal(types.StateEnvelope{State: state})
	if err != nil {
		return fmt.Errorf("marshal state envelope: %w", err)
	}
	return b.pub.Publish(ctx, groupAll(conversationID), frame)
}

// DeliverMessageToBot targets exactly one participant's connection.
func (b *Bus) DeliverMessageToBot(ctx context.Context, msg *types.Message, botParticipantID uuid.UUID) error {
	frame, err := json.Marshal(types.MessageEnvelope{Message: msg})
	if err != nil {
		return fmt.Errorf("marshal message envelope: %w", err)
	}
	return b.pub.Publish(ctx, groupParticipant(msg.ConversationID, botParticipantID), frame)
}

// DeliverMessageToBotManager targets the conversation's manager bot
// connection, if any.
func (b *Bus) DeliverMessageToBotManager(ctx context.Context, msg *types.Message) error {
	frame, err := json.Marshal(types.MessageEnvelope{Message: msg})
	if err != nil {
		return fmt.Errorf("marshal message envelope: %w", err)
	}
	return b.pub.Publish(ctx, groupManager(msg.ConversationID), frame)
}
