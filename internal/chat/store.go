package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/C4AI/blab-controller/internal/types"
)

// ErrNotFound is returned when a stored entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrChatExists is returned when an actor is constructed twice for the
// same conversation. Guarding against duplicate initialization; lookups
// go through Registry.GetChat instead.
var ErrChatExists = errors.New("chat actor already created for this conversation")

// Invariant violations. These indicate a caller bug, not bad external
// input, and are never absorbed.
var (
	ErrWrongConversation = errors.New("participant belongs to another conversation")
	ErrMessageNotInChat  = errors.New("message is not in the conversation")
	ErrNotBot            = errors.New("participant is not a bot")
)

// ValidationError rejects bad external input synchronously to the caller.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

func validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Store is the durable entity store the chat core runs against. Each call
// is an independently committed write or a read; the actor sequences its
// fan-out callbacks after the relevant call returns, so a failed write
// never has visible delivery side effects.
type Store interface {
	CreateConversation(ctx context.Context, conv *types.Conversation) error
	GetConversation(ctx context.Context, id uuid.UUID) (*types.Conversation, error)
	ListConversations(ctx context.Context) ([]types.Conversation, error)

	CreateParticipant(ctx context.Context, p *types.Participant) error
	GetParticipant(ctx context.Context, id uuid.UUID) (*types.Participant, error)
	ListParticipants(ctx context.Context, conversationID uuid.UUID) ([]types.Participant, error)
	// FindBotParticipant resolves a bot reference (name or participant
	// id) within one conversation. Returns ErrNotFound when no bot
	// participant matches.
	FindBotParticipant(ctx context.Context, conversationID uuid.UUID, ref string) (*types.Participant, error)

	// CreateMessage persists a message, filling InternalID and Time.
	// It reports created=false, with no error, when the
	// (conversation, sender, local_id) uniqueness constraint rejects a
	// duplicate.
	CreateMessage(ctx context.Context, msg *types.Message) (created bool, err error)
	// GetMessage looks a message up by its external id within one
	// conversation.
	GetMessage(ctx context.Context, conversationID, id uuid.UUID) (*types.Message, error)
	GetMessageByInternalID(ctx context.Context, internalID int64) (*types.Message, error)
	SetApprovalStatus(ctx context.Context, internalID int64, status types.ApprovalStatus) error
}
