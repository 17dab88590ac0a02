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

// CreateParticipant creates a new participant.
func (s *Store) CreateParticipant(ctx context.Context, p *types.Participant) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO participants (id, conversation_id, name, kind, required)
		 VALUES ($1, $2, $3, $4, $5)`,
		uuidToPgtype(p.ID),
		uuidToPgtype(p.ConversationID),
		p.Name,
		string(p.Kind),
		p.Required,
	)
	if err != nil {
		return fmt.Errorf("create participant: %w", err)
	}
	return nil
}

// GetParticipant returns a participant by id.
func (s *Store) GetParticipant(ctx context.Context, id uuid.UUID) (*types.Participant, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, conversation_id, name, kind, required
		 FROM participants WHERE id = $1`,
		uuidToPgtype(id),
	)
	p, err := scanParticipant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, chat.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get participant: %w", err)
	}
	return p, nil
}

// ListParticipants returns the participants of a conversation in insertion
// order.
func (s *Store) ListParticipants(ctx context.Context, conversationID uuid.UUID) ([]types.Participant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, name, kind, required
		 FROM participants WHERE conversation_id = $1
		 ORDER BY seq`,
		uuidToPgtype(conversationID),
	)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var parts []types.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		parts = append(parts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return parts, nil
}

// FindBotParticipant resolves a bot reference, either a participant id or a
// bot name, within one conversation.
func (s *Store) FindBotParticipant(ctx context.Context, conversationID uuid.UUID, ref string) (*types.Participant, error) {
	var row pgx.Row
	if id, err := uuid.Parse(ref); err == nil {
		row = s.pool.QueryRow(ctx,
			`SELECT id, conversation_id, name, kind, required
			 FROM participants
			 WHERE conversation_id = $1 AND id = $2 AND kind = $3`,
			uuidToPgtype(conversationID),
			uuidToPgtype(id),
			string(types.KindBot),
		)
	} else {
		row = s.pool.QueryRow(ctx,
			`SELECT id, conversation_id, name, kind, required
			 FROM participants
			 WHERE conversation_id = $1 AND name = $2 AND kind = $3
			 LIMIT 1`,
			uuidToPgtype(conversationID),
			ref,
			string(types.KindBot),
		)
	}
	p, err := scanParticipant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, chat.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find bot participant: %w", err)
	}
	return p, nil
}

func scanParticipant(row pgx.Row) (*types.Participant, error) {
	var (
		p      types.Participant
		id     pgtype.UUID
		convID pgtype.UUID
		kind   string
	)
	if err := row.Scan(&id, &convID, &p.Name, &kind, &p.Required); err != nil {
		return nil, err
	}
	p.ID = pgtypeToUUID(id)
	p.ConversationID = pgtypeToUUID(convID)
	p.Kind = types.ParticipantKind(kind)
	return &p, nil
}
