package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ParticipantKind distinguishes human participants from bots.
type ParticipantKind string

const (
	KindHuman ParticipantKind = "human"
	KindBot   ParticipantKind = "bot"
)

// MessageType represents the kind of content a message carries.
type MessageType string

const (
	MessageSystem     MessageType = "system"
	MessageText       MessageType = "text"
	MessageVoice      MessageType = "voice"
	MessageAudio      MessageType = "audio"
	MessageVideo      MessageType = "video"
	MessageImage      MessageType = "image"
	MessageMedia      MessageType = "media"
	MessageAttachment MessageType = "attachment"
)

// ApprovalStatus gates whether a message is visible to the general audience.
type ApprovalStatus string

const (
	NotApproved           ApprovalStatus = "not_approved"
	AutomaticallyApproved ApprovalStatus = "automatically_approved"
	ApprovedByManager     ApprovalStatus = "approved_by_manager"
)

// Approved reports whether the message may be broadcast to humans.
func (s ApprovalStatus) Approved() bool {
	return s == AutomaticallyApproved || s == ApprovedByManager
}

// System event names stored in the text field of system messages.
const (
	EventConversationCreated = "conversation-created"
	EventParticipantJoined   = "participant-joined"
	EventParticipantLeft     = "participant-left"
	EventConversationEnded   = "conversation-ended"
)

// Conversation represents a chat conversation.
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	Name      *string   `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Participant represents a member of exactly one conversation.
// Participants are never moved between conversations or deleted.
type Participant struct {
	ID             uuid.UUID       `json:"id"`
	ConversationID uuid.UUID       `json:"-"`
	Name           string          `json:"name"`
	Kind           ParticipantKind `json:"type"`
	// Required marks bots that are permanently invited to every
	// conversation, as opposed to optional ones.
	Required bool `json:"-"`
}

// Message represents a message in a conversation.
//
// InternalID is the storage primary key and is never exposed; ID is the
// externally visible message identifier.
type Message struct {
	InternalID     int64           `json:"-"`
	ID             uuid.UUID       `json:"id"`
	ConversationID uuid.UUID       `json:"conversation_id"`
	Type           MessageType     `json:"type"`
	Time           time.Time       `json:"time"`
	// SenderID is nil if and only if the message is a system message.
	SenderID *uuid.UUID `json:"sender_id,omitempty"`
	// SenderKind is part of the wire representation only; it is filled
	// in at delivery time, not persisted.
	SenderKind      ParticipantKind `json:"sender_type,omitempty"`
	QuotedMessageID *uuid.UUID     `json:"quoted_message_id,omitempty"`
	Text            string         `json:"text"`
	Metadata        map[string]any `json:"additional_metadata,omitempty"`
	FileName        *string        `json:"original_file_name,omitempty"`
	MimeType        *string        `json:"mime_type,omitempty"`
	LocalID         *string        `json:"local_id,omitempty"`
	ApprovalStatus  ApprovalStatus `json:"approval_status"`
	SentByManager   bool           `json:"sent_by_manager,omitempty"`
}

// WireCopy returns a deep copy of the message with the given per-delivery
// field overrides applied. Overrides affect only the copy handed to the
// recipient; they are never persisted. Unknown fields are ignored.
func (m *Message) WireCopy(overrides map[string]any) (*Message, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	if len(overrides) == 0 {
		var out Message
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
		return &out, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	for k, v := range overrides {
		enc, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		fields[k] = enc
	}
	merged, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	var out Message
	if err := json.Unmarshal(merged, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SentByHuman reports whether the message was sent by a human participant.
// Only meaningful on delivery copies, where the sender kind is resolved;
// system messages have no sender.
func (m *Message) SentByHuman() bool {
	return m.SenderID != nil && m.SenderKind == KindHuman
}

// StateUpdate is the non-message status payload delivered to participants
// and bots on participant-list changes.
type StateUpdate struct {
	Participants []Participant `json:"participants"`
}

// MessageEnvelope is the delivery-layer frame for a message.
type MessageEnvelope struct {
	Message *Message `json:"message"`
}

// StateEnvelope is the delivery-layer frame for a state update.
type StateEnvelope struct {
	State *StateUpdate `json:"state"`
}
