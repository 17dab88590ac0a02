package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/C4AI/blab-controller/internal/chat"
	"github.com/C4AI/blab-controller/internal/types"
)

// CreateConversation creates a new conversation.
func (s *Store) CreateConversation(ctx context.Context, conv *types.Conversation) error {
	var createdAt pgtype.Timestamptz
	err := s.pool.QueryRow(ctx,
		`INSERT INTO conversations (id, name)
		 VALUES ($1, $2)
		 RETURNING created_at`,
		uuidToPgtype(conv.ID),
		stringPtrToPgtext(conv.Name),
	).Scan(&createdAt)
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}

	conv.CreatedAt = pgtimestamptzToTime(createdAt)
	return nil
}

// GetConversation returns a conversation by id.
func (s *Store) GetConversation(ctx context.Context, id uuid.UUID) (*types.Conversation, error) {
	var (
		conv      types.Conversation
		convID    pgtype.UUID
		name      pgtype.Text
		createdAt pgtype.Timestamptz
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, created_at FROM conversations WHERE id = $1`,
		uuidToPgtype(id),
	).Scan(&convID, &name, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, chat.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	conv.ID = pgtypeToUUID(convID)
	conv.Name = pgtextToStringPtr(name)
	conv.CreatedAt = pgtimestamptzToTime(createdAt)
	return &conv, nil
}

// ListConversations returns all conversations, newest first.
func (s *Store) ListConversations(ctx context.Context) ([]types.Conversation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, created_at FROM conversations ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var convs []types.Conversation
	for rows.Next() {
		var (
			convID    pgtype.UUID
			name      pgtype.Text
			createdAt pgtype.Timestamptz
		)
		if err := rows.Scan(&convID, &name, &createdAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		convs = append(convs, types.Conversation{
			ID:        pgtypeToUUID(convID),
			Name:      pgtextToStringPtr(name),
			CreatedAt: pgtimestamptzToTime(createdAt),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}
