package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/C4AI/blab-controller/internal/bots"
	"github.com/C4AI/blab-controller/internal/config"
	"github.com/C4AI/blab-controller/internal/types"
)

// Deps are the collaborators shared by every chat actor.
type Deps struct {
	Store      Store
	Bus        Bus
	Dispatcher BotDispatcher
	Bots       *bots.Registry
	ManagerBot string
	Limits     config.ChatLimits
	Logger     *logrus.Logger
}

// Registry owns the live chat actors of this process, at most one per
// conversation id. Actors are only constructed through it.
type Registry struct {
	deps Deps

	mu    sync.Mutex
	chats map[uuid.UUID]*Chat
}

// NewRegistry creates an empty actor registry.
func NewRegistry(deps Deps) *Registry {
	return &Registry{
		deps:  deps,
		chats: make(map[uuid.UUID]*Chat),
	}
}

// SetDispatcher installs the bot dispatcher after construction. The
// dispatcher resolves actors through the registry, so the two cannot be
// built in one step; this must run before the first actor is created.
func (r *Registry) SetDispatcher(d BotDispatcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deps.Dispatcher = d
}

func (r *Registry) newChat(conv *types.Conversation) *Chat {
	return &Chat{
		conversation: conv,
		store:        r.deps.Store,
		bus:          r.deps.Bus,
		dispatcher:   r.deps.Dispatcher,
		bots:         r.deps.Bots,
		managerName:  r.deps.ManagerBot,
		limits:       r.deps.Limits,
		log:          r.deps.Logger.WithField("conversation_id", conv.ID),
	}
}

// register inserts an actor for a conversation id, failing when one
// already exists.
func (r *Registry) register(conv *types.Conversation) (*Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.chats[conv.ID]; ok {
		return nil, ErrChatExists
	}
	c := r.newChat(conv)
	r.chats[conv.ID] = c
	return c, nil
}

// OnCreateConversation persists a new conversation, constructs its actor
// and runs the creation sequence (system messages plus participants; the
// human creator is first in the result). Bot names are checked up front
// so a rejected request leaves no stored conversation or actor behind.
func (r *Registry) OnCreateConversation(ctx context.Context, name, nickname string, botNames []string) (*Chat, []types.Participant, error) {
	for _, botName := range botNames {
		if _, ok := r.deps.Bots.Spec(botName); !ok {
			return nil, nil, validationf("unknown bot %q", botName)
		}
	}
	conv := &types.Conversation{ID: uuid.New()}
	if name != "" {
		conv.Name = &name
	}
	if err := r.deps.Store.CreateConversation(ctx, conv); err != nil {
		return nil, nil, fmt.Errorf("create conversation: %w", err)
	}
	c, err := r.register(conv)
	if err != nil {
		return nil, nil, err
	}
	participants, err := c.onCreate(ctx, nickname, botNames)
	if err != nil {
		return nil, nil, err
	}
	return c, participants, nil
}

// GetChat returns the registered actor for a conversation, constructing
// and registering one from durable storage when absent. A lookup for a
// conversation that does not exist returns ErrNotFound.
func (r *Registry) GetChat(ctx context.Context, conversationID uuid.UUID) (*Chat, error) {
	r.mu.Lock()
	if c, ok := r.chats[conversationID]; ok {
		r.mu.Unlock()
		return c, nil
	}
	r.mu.Unlock()

	conv, err := r.deps.Store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.chats[conversationID]; ok {
		// Lost the race against a concurrent lookup; reuse the winner.
		return c, nil
	}
	c := r.newChat(conv)
	r.chats[conversationID] = c
	return c, nil
}
