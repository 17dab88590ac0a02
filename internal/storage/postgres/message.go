package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/C4AI/blab-controller/internal/chat"
	"github.com/C4AI/blab-controller/internal/types"
)

// CreateMessage persists a message, filling InternalID and Time. When the
// sender already used the same local id in the conversation, the insert is
// skipped and created=false is reported without an error.
func (s *Store) CreateMessage(ctx context.Context, msg *types.Message) (bool, error) {
	metadata, err := metadataToDB(msg.Metadata)
	if err != nil {
		return false, fmt.Errorf("encode message metadata: %w", err)
	}

	var (
		internalID int64
		sentAt     pgtype.Timestamptz
	)
	err = s.pool.QueryRow(ctx,
		`INSERT INTO messages (
		     m_id, conversation_id, type, sender_id, quoted_message_id,
		     text, additional_metadata, original_file_name, mime_type,
		     local_id, approval_status, sent_by_manager
		 )
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (conversation_id, sender_id, local_id)
		     WHERE local_id IS NOT NULL DO NOTHING
		 RETURNING id, time`,
		uuidToPgtype(msg.ID),
		uuidToPgtype(msg.ConversationID),
		string(msg.Type),
		uuidPtrToPgtype(msg.SenderID),
		uuidPtrToPgtype(msg.QuotedMessageID),
		msg.Text,
		metadata,
		stringPtrToPgtext(msg.FileName),
		stringPtrToPgtext(msg.MimeType),
		stringPtrToPgtext(msg.LocalID),
		string(msg.ApprovalStatus),
		msg.SentByManager,
	).Scan(&internalID, &sentAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create message: %w", err)
	}

	msg.InternalID = internalID
	msg.Time = pgtimestamptzToTime(sentAt)
	return true, nil
}

// GetMessage returns a message by its external id within one conversation.
func (s *Store) GetMessage(ctx context.Context, conversationID, id uuid.UUID) (*types.Message, error) {
	row := s.pool.QueryRow(ctx,
		selectMessage+` WHERE conversation_id = $1 AND m_id = $2`,
		uuidToPgtype(conversationID),
		uuidToPgtype(id),
	)
	msg, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, chat.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return msg, nil
}

// GetMessageByInternalID returns a message by its storage primary key.
func (s *Store) GetMessageByInternalID(ctx context.Context, internalID int64) (*types.Message, error) {
	row := s.pool.QueryRow(ctx, selectMessage+` WHERE id = $1`, internalID)
	msg, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, chat.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message by internal id: %w", err)
	}
	return msg, nil
}

// SetApprovalStatus updates the approval status of a message.
func (s *Store) SetApprovalStatus(ctx context.Context, internalID int64, status types.ApprovalStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE messages SET approval_status = $2 WHERE id = $1`,
		internalID,
		string(status),
	)
	if err != nil {
		return fmt.Errorf("set approval status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return chat.ErrNotFound
	}
	return nil
}

const selectMessage = `SELECT
    id, m_id, conversation_id, type, time, sender_id, quoted_message_id,
    text, additional_metadata, original_file_name, mime_type, local_id,
    approval_status, sent_by_manager
FROM messages`

func scanMessage(row pgx.Row) (*types.Message, error) {
	var (
		msg       types.Message
		id        pgtype.UUID
		convID    pgtype.UUID
		msgType   string
		sentAt    pgtype.Timestamptz
		senderID  pgtype.UUID
		quotedID  pgtype.UUID
		metadata  []byte
		fileName  pgtype.Text
		mimeType  pgtype.Text
		localID   pgtype.Text
		status    string
		byManager bool
	)
	err := row.Scan(
		&msg.InternalID, &id, &convID, &msgType, &sentAt, &senderID,
		&quotedID, &msg.Text, &metadata, &fileName, &mimeType, &localID,
		&status, &byManager,
	)
	if err != nil {
		return nil, err
	}

	msg.ID = pgtypeToUUID(id)
	msg.ConversationID = pgtypeToUUID(convID)
	msg.Type = types.MessageType(msgType)
	msg.Time = pgtimestamptzToTime(sentAt)
	msg.SenderID = pgtypeToUUIDPtr(senderID)
	msg.QuotedMessageID = pgtypeToUUIDPtr(quotedID)
	msg.FileName = pgtextToStringPtr(fileName)
	msg.MimeType = pgtextToStringPtr(mimeType)
	msg.LocalID = pgtextToStringPtr(localID)
	msg.ApprovalStatus = types.ApprovalStatus(status)
	msg.SentByManager = byManager

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &msg.Metadata); err != nil {
			return nil, fmt.Errorf("decode message metadata: %w", err)
		}
	}
	return &msg, nil
}

func metadataToDB(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		return nil, nil
	}
	return json.Marshal(metadata)
}
