package chat

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetChatReturnsRegisteredActor(t *testing.T) {
	env := newTestEnv("")
	ctx := context.Background()

	actor, _, err := env.registry.OnCreateConversation(ctx, "room", "alice", nil)
	require.NoError(t, err)

	got, err := env.registry.GetChat(ctx, actor.Conversation().ID)
	require.NoError(t, err)
	assert.Same(t, actor, got)
}

func TestGetChatLoadsFromStore(t *testing.T) {
	env := newTestEnv("")
	ctx := context.Background()

	actor, _, err := env.registry.OnCreateConversation(ctx, "room", "alice", nil)
	require.NoError(t, err)
	convID := actor.Conversation().ID

	// A second registry simulates another process finding the
	// conversation in durable storage.
	other := NewRegistry(env.registry.deps)
	loaded, err := other.GetChat(ctx, convID)
	require.NoError(t, err)
	assert.Equal(t, convID, loaded.Conversation().ID)

	again, err := other.GetChat(ctx, convID)
	require.NoError(t, err)
	assert.Same(t, loaded, again)
}

func TestGetChatUnknownConversation(t *testing.T) {
	env := newTestEnv("")
	_, err := env.registry.GetChat(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegisterDuplicateActor(t *testing.T) {
	env := newTestEnv("")
	ctx := context.Background()

	actor, _, err := env.registry.OnCreateConversation(ctx, "room", "alice", nil)
	require.NoError(t, err)

	_, err = env.registry.register(actor.Conversation())
	assert.ErrorIs(t, err, ErrChatExists)
}
