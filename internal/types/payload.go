package types

// MessageData is the payload a client or bot supplies when sending a
// message. The controller fills in conversation, sender and approval
// before persisting.
type MessageData struct {
	Type            MessageType    `json:"type"`
	Text            string         `json:"text"`
	LocalID         string         `json:"local_id,omitempty"`
	QuotedMessageID string         `json:"quoted_message_id,omitempty"`
	Metadata        map[string]any `json:"additional_metadata,omitempty"`
	FileName        string         `json:"original_file_name,omitempty"`
	MimeType        string         `json:"mime_type,omitempty"`
	// FileSize is the declared size in bytes of an attached file,
	// checked against the configured limits.
	FileSize int64 `json:"file_size,omitempty"`
	// Command is the side-channel JSON envelope interpreted only when
	// the sender is the bot manager; stripped for everyone else.
	Command string `json:"command,omitempty"`
}
