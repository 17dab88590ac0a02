package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/C4AI/blab-controller/internal/types"
)

type publishedFrame struct {
	group string
	frame []byte
}

type recordingPublisher struct {
	published []publishedFrame
}

func (p *recordingPublisher) Publish(_ context.Context, group string, frame []byte) error {
	p.published = append(p.published, publishedFrame{group: group, frame: frame})
	return nil
}

func TestGroupsForHuman(t *testing.T) {
	convID := uuid.New()
	p := &types.Participant{ID: uuid.New(), ConversationID: convID, Kind: types.KindHuman}

	groups := GroupsFor(p, "MGR")
	assert.Equal(t, []string{
		fmt.Sprintf("chat.%s.all", convID),
		fmt.Sprintf("chat.%s.part.%s", convID, p.ID),
		fmt.Sprintf("chat.%s.humans", convID),
	}, groups)
}

func TestGroupsForManagerBot(t *testing.T) {
	convID := uuid.New()
	p := &types.Participant{ID: uuid.New(), ConversationID: convID, Kind: types.KindBot, Name: "MGR"}

	groups := GroupsFor(p, "MGR")
	assert.Contains(t, groups, fmt.Sprintf("chat.%s.manager", convID))
	assert.NotContains(t, groups, fmt.Sprintf("chat.%s.humans", convID))
}

func TestGroupsForPlainBot(t *testing.T) {
	convID := uuid.New()
	p := &types.Participant{ID: uuid.New(), ConversationID: convID, Kind: types.KindBot, Name: "ECHO"}

	groups := GroupsFor(p, "MGR")
	assert.Equal(t, []string{
		fmt.Sprintf("chat.%s.all", convID),
		fmt.Sprintf("chat.%s.part.%s", convID, p.ID),
	}, groups)
}

func TestBroadcastMessageGroups(t *testing.T) {
	pub := &recordingPublisher{}
	bus := NewBus(pub)
	ctx := context.Background()
	msg := &types.Message{ID: uuid.New(), ConversationID: uuid.New(), Type: types.MessageText, Text: "hi"}

	require.NoError(t, bus.BroadcastMessage(ctx, msg, false))
	require.NoError(t, bus.BroadcastMessage(ctx, msg, true))
	require.Len(t, pub.published, 2)
	assert.Equal(t, fmt.Sprintf("chat.%s.all", msg.ConversationID), pub.published[0].group)
	assert.Equal(t, fmt.Sprintf("chat.%s.humans", msg.ConversationID), pub.published[1].group)

	var envelope types.MessageEnvelope
	require.NoError(t, json.Unmarshal(pub.published[0].frame, &envelope))
	require.NotNil(t, envelope.Message)
	assert.Equal(t, msg.ID, envelope.Message.ID)
	assert.Equal(t, "hi", envelope.Message.Text)
}

func TestDeliverMessageToBotGroup(t *testing.T) {
	pub := &recordingPublisher{}
	bus := NewBus(pub)
	msg := &types.Message{ID: uuid.New(), ConversationID: uuid.New(), Type: types.MessageText}
	botID := uuid.New()

	require.NoError(t, bus.DeliverMessageToBot(context.Background(), msg, botID))
	require.Len(t, pub.published, 1)
	assert.Equal(t, fmt.Sprintf("chat.%s.part.%s", msg.ConversationID, botID), pub.published[0].group)
}

func TestDeliverMessageToBotManagerGroup(t *testing.T) {
	pub := &recordingPublisher{}
	bus := NewBus(pub)
	msg := &types.Message{ID: uuid.New(), ConversationID: uuid.New(), Type: types.MessageText}

	require.NoError(t, bus.DeliverMessageToBotManager(context.Background(), msg))
	require.Len(t, pub.published, 1)
	assert.Equal(t, fmt.Sprintf("chat.%s.manager", msg.ConversationID), pub.published[0].group)
}

func TestBroadcastStateGroup(t *testing.T) {
	pub := &recordingPublisher{}
	bus := NewBus(pub)
	convID := uuid.New()
	state := &types.StateUpdate{Participants: []types.Participant{{Name: "alice"}}}

	require.NoError(t, bus.BroadcastState(context.Background(), convID, state))
	require.Len(t, pub.published, 1)
	assert.Equal(t, fmt.Sprintf("chat.%s.all", convID), pub.published[0].group)

	var envelope types.StateEnvelope
	require.NoError(t, json.Unmarshal(pub.published[0].frame, &envelope))
	require.NotNil(t, envelope.State)
	assert.Equal(t, "alice", envelope.State.Participants[0].Name)
}
