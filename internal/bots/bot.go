// Package bots contains the bot capability contract, the static bot
// registry, and the bot implementations shipped with the controller.
package bots

import (
	"github.com/google/uuid"

	"github.com/C4AI/blab-controller/internal/types"
)

// SendFunc persists a reply on behalf of the bot's participant. It routes
// back through the conversation's chat actor.
type SendFunc func(data *types.MessageData) (*types.Message, error)

// ConversationInfo is the conversation context handed to a bot instance.
type ConversationInfo struct {
	ConversationID   uuid.UUID
	BotParticipantID uuid.UUID
	Send             SendFunc
}

// Bot is the capability set every bot implements.
//
// ReceiveMessage is called for every message the bot is entitled to see.
// Implementations must ignore messages sent by themselves (and usually by
// other bots) to avoid bot-to-bot loops.
type Bot interface {
	ReceiveMessage(msg *types.Message)
	UpdateStatus(status *types.StateUpdate)
}
