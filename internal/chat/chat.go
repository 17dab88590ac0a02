// Package chat implements the conversation core: the per-conversation
// actor, its registry, the approval gate and the bot manager command
// codec. The Conversation type represents a stored entity, whereas Chat
// manages the events that occur in a conversation.
package chat

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/C4AI/blab-controller/internal/bots"
	"github.com/C4AI/blab-controller/internal/config"
	"github.com/C4AI/blab-controller/internal/metrics"
	"github.com/C4AI/blab-controller/internal/types"
)

// Bus is the group delivery layer. Delivery is best-effort to connected
// clients; implementations report transport errors, which the actor logs
// and otherwise ignores.
type Bus interface {
	BroadcastMessage(ctx context.Context, msg *types.Message, humansOnly bool) error
	BroadcastState(ctx context.Context, conversationID uuid.UUID, state *types.StateUpdate) error
	DeliverMessageToBot(ctx context.Context, msg *types.Message, botParticipantID uuid.UUID) error
	DeliverMessageToBotManager(ctx context.Context, msg *types.Message) error
}

// BotDispatcher hands deliveries to in-process or queued bots. Dispatch
// is fire-and-forget from the actor's point of view.
type BotDispatcher interface {
	DispatchMessage(ctx context.Context, bot *types.Participant, messageInternalID int64, overrides map[string]any)
	DispatchStatus(ctx context.Context, bot *types.Participant, state *types.StateUpdate)
}

// Chat orchestrates one conversation: participant creation, message
// persistence, approval, manager commands and redirection. All mutating
// operations are serialized through a per-conversation mutex; fan-out
// callbacks collected during an operation run after its persistence calls
// have returned, so a failed write is never delivered.
type Chat struct {
	conversation *types.Conversation
	store        Store
	bus          Bus
	dispatcher   BotDispatcher
	bots         *bots.Registry
	managerName  string
	limits       config.ChatLimits
	log          *logrus.Entry

	mu sync.Mutex
}

// Conversation returns the conversation entity this actor manages.
func (c *Chat) Conversation() *types.Conversation {
	return c.conversation
}

func (c *Chat) hasManager() bool {
	return c.managerName != ""
}

// onCreate runs when a conversation is started: it persists the
// "conversation created" system message, creates the human creator, the
// requested bots and the configured manager bot, and persists one
// "participant joined" system message per bot. The human participant is
// the first entry of the result.
func (c *Chat) onCreate(ctx context.Context, nickname string, botNames []string) ([]types.Participant, error) {
	participants, hooks, err := c.onCreateLocked(ctx, nickname, botNames)
	if err != nil {
		return nil, err
	}
	drain(hooks)
	return participants, nil
}

func (c *Chat) onCreateLocked(ctx context.Context, nickname string, botNames []string) ([]types.Participant, []func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var hooks []func()

	include := make([]string, 0, len(botNames)+1)
	for _, name := range botNames {
		if _, ok := c.bots.Spec(name); !ok {
			return nil, nil, validationf("unknown bot %q", name)
		}
		include = append(include, name)
	}
	if c.hasManager() {
		include = append(include, c.managerName)
	}

	c.log.Debug("generating 'conversation created' system message")
	created, err := c.createSystemMessage(ctx, types.EventConversationCreated, nil)
	if err != nil {
		return nil, nil, err
	}
	hooks = append(hooks, func() { c.fanOut(ctx, created) })
	c.log.Info("conversation created")

	human, err := c.createHumanParticipant(ctx, nickname)
	if err != nil {
		return nil, nil, err
	}
	participants := []types.Participant{*human}
	log := c.log.WithField("participant_name", human.Name)

	for _, name := range include {
		log.WithField("bot_name", name).Debug("creating participant for bot")
		required := true
		if spec, ok := c.bots.Spec(name); ok {
			required = spec.Required
		}
		bot := &types.Participant{
			ID:             uuid.New(),
			ConversationID: c.conversation.ID,
			Name:           name,
			Kind:           types.KindBot,
			Required:       required,
		}
		if err := c.store.CreateParticipant(ctx, bot); err != nil {
			return nil, nil, err
		}
		log.WithField("bot_participant_id", bot.ID).Info("bot joined conversation")
		participants = append(participants, *bot)

		joined, err := c.createSystemMessage(ctx, types.EventParticipantJoined, map[string]any{
			"participant_id": bot.ID.String(),
		})
		if err != nil {
			return nil, nil, err
		}
		msg := joined
		hooks = append(hooks, func() { c.fanOut(ctx, msg) })
	}

	hooks = append(hooks, func() { c.broadcastParticipants(ctx) })
	return participants, hooks, nil
}

// Join adds a human participant to an existing conversation. It does not
// emit the "participant joined" system message; that happens through
// AnnounceJoined once the participant's live connection is established.
func (c *Chat) Join(ctx context.Context, nickname string) (*types.Participant, error) {
	participant, err := func() (*types.Participant, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.log.WithField("nickname", nickname).Debug("creating participant for user")
		return c.createHumanParticipant(ctx, nickname)
	}()
	if err != nil {
		return nil, err
	}
	c.broadcastParticipants(ctx)
	return participant, nil
}

func (c *Chat) createHumanParticipant(ctx context.Context, nickname string) (*types.Participant, error) {
	p := &types.Participant{
		ID:             uuid.New(),
		ConversationID: c.conversation.ID,
		Name:           nickname,
		Kind:           types.KindHuman,
	}
	if p.Name == "" { // fix anonymous nickname
		p.Name = "ANON_" + p.ID.String()
	}
	if err := c.store.CreateParticipant(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// AnnounceJoined persists the "participant joined" system message for a
// participant whose live connection has just been established, and fans
// out the message and the refreshed participant list.
func (c *Chat) AnnounceJoined(ctx context.Context, participantID uuid.UUID) (*types.Message, error) {
	return c.announce(ctx, types.EventParticipantJoined, participantID)
}

// AnnounceLeft is the counterpart of AnnounceJoined for disconnection.
func (c *Chat) AnnounceLeft(ctx context.Context, participantID uuid.UUID) (*types.Message, error) {
	return c.announce(ctx, types.EventParticipantLeft, participantID)
}

func (c *Chat) announce(ctx context.Context, event string, participantID uuid.UUID) (*types.Message, error) {
	msg, err := func() (*types.Message, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.createSystemMessage(ctx, event, map[string]any{
			"participant_id": participantID.String(),
		})
	}()
	if err != nil {
		return nil, err
	}
	c.fanOut(ctx, msg)
	c.broadcastParticipants(ctx)
	return msg, nil
}

func (c *Chat) createSystemMessage(ctx context.Context, event string, metadata map[string]any) (*types.Message, error) {
	msg := &types.Message{
		ID:             uuid.New(),
		ConversationID: c.conversation.ID,
		Type:           types.MessageSystem,
		Text:           event,
		Metadata:       metadata,
		ApprovalStatus: types.AutomaticallyApproved,
	}
	if _, err := c.store.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	metrics.MessagesSaved.WithLabelValues(string(types.MessageSystem)).Inc()
	return msg, nil
}

// SaveMessage stores a message sent by a human or bot, runs the approval
// gate, interprets manager commands, and fans the committed message out.
// It returns (nil, nil) when the (conversation, sender, local_id)
// uniqueness constraint absorbs a duplicate.
func (c *Chat) SaveMessage(ctx context.Context, participant *types.Participant, data *types.MessageData) (*types.Message, error) {
	msg, hooks, err := c.saveMessageLocked(ctx, participant, data)
	drain(hooks)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (c *Chat) saveMessageLocked(ctx context.Context, participant *types.Participant, data *types.MessageData) (*types.Message, []func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if participant.ConversationID != c.conversation.ID {
		return nil, nil, ErrWrongConversation
	}
	if err := c.validateMessageData(data); err != nil {
		return nil, nil, err
	}

	approval := ApprovalStatusFor(participant.Kind, c.hasManager())
	senderID := participant.ID
	fromManager := participant.Kind == types.KindBot && participant.Name == c.managerName

	var hooks []func()
	var cmd Command
	if fromManager {
		cmd = ParseCommand(data.Command, c.log)
		if cmd.SelfApprove {
			approval = types.ApprovedByManager
			c.log.WithField("local_id", data.LocalID).Info("manager bot self-approved message")
		}
		if cmd.OnBehalfOf != "" {
			senderID = c.effectiveSender(ctx, participant, cmd.OnBehalfOf)
		}
		hooks = c.runCommandAction(ctx, cmd, data.QuotedMessageID)
	} else {
		data.Command = ""
	}

	msg := &types.Message{
		ID:              uuid.New(),
		ConversationID:  c.conversation.ID,
		Type:            data.Type,
		SenderID:        &senderID,
		QuotedMessageID: c.resolveQuoted(ctx, data.QuotedMessageID),
		Text:            data.Text,
		Metadata:        data.Metadata,
		ApprovalStatus:  approval,
		SentByManager:   fromManager,
	}
	if data.LocalID != "" {
		localID := data.LocalID
		msg.LocalID = &localID
	}
	if data.FileName != "" {
		name := data.FileName
		msg.FileName = &name
	}
	if data.MimeType != "" {
		mime := data.MimeType
		msg.MimeType = &mime
	}

	created, err := c.store.CreateMessage(ctx, msg)
	if err != nil {
		return nil, hooks, err
	}
	if !created {
		// Duplicate local_id: an idempotent no-op, not an error.
		metrics.DuplicateMessages.Inc()
		c.log.WithField("local_id", data.LocalID).Debug("ignoring duplicate message")
		return nil, hooks, nil
	}
	metrics.MessagesSaved.WithLabelValues(string(msg.Type)).Inc()

	hooks = append(hooks, func() { c.fanOut(ctx, msg) })
	if fromManager && cmd.SelfRedirect {
		c.log.WithFields(logrus.Fields{
			"redirected_message_id": msg.ID,
			"bots":                  cmd.Bots,
		}).Info("manager bot self-redirected message")
		hooks = append(hooks, func() { c.redirectMessage(ctx, msg, cmd.Bots, cmd.Overrides) })
	}
	return msg, hooks, nil
}

// runCommandAction executes the approve/redirect effect of a manager
// command against already-persisted state. The returned hooks fan the
// affected quoted message out once the command's own persistence is done.
func (c *Chat) runCommandAction(ctx context.Context, cmd Command, quotedID string) []func() {
	if cmd.Action == "" {
		return nil
	}
	quoted := c.lookupQuoted(ctx, quotedID)
	switch cmd.Action {
	case ActionApprove:
		if quoted == nil {
			c.log.WithField("approved_message_id", quotedID).
				Warn("manager bot tried to approve a non-existent message")
			return nil
		}
		if err := c.store.SetApprovalStatus(ctx, quoted.InternalID, types.ApprovedByManager); err != nil {
			c.log.WithError(err).Error("approve message")
			return nil
		}
		quoted.ApprovalStatus = types.ApprovedByManager
		c.log.WithField("approved_message_id", quotedID).Info("manager bot approved message")
		return []func(){func() { c.fanOut(ctx, quoted) }}
	case ActionRedirect:
		if quoted == nil {
			c.log.WithField("redirected_message_id", quotedID).
				Warn("manager bot tried to redirect a non-existent message")
			return nil
		}
		c.log.WithFields(logrus.Fields{
			"redirected_message_id": quotedID,
			"bots":                  cmd.Bots,
		}).Info("manager bot redirected message")
		return []func(){func() { c.redirectMessage(ctx, quoted, cmd.Bots, cmd.Overrides) }}
	default:
		c.log.WithField("action", cmd.Action).Warn("ignoring unknown action from manager bot")
		return nil
	}
}

// effectiveSender resolves an on_behalf_of impersonation. Failure keeps
// the manager as sender; the attempt is only logged.
func (c *Chat) effectiveSender(ctx context.Context, manager *types.Participant, onBehalfOf string) uuid.UUID {
	id, err := uuid.Parse(onBehalfOf)
	if err == nil {
		principal, err := c.store.GetParticipant(ctx, id)
		if err == nil && principal.ConversationID == c.conversation.ID {
			return principal.ID
		}
	}
	c.log.WithField("on_behalf_of", onBehalfOf).
		Warn("ignoring message that the manager bot tried to send by proxy on behalf of another participant")
	return manager.ID
}

// lookupQuoted fetches a quoted message by external id, restricted to
// this conversation. Missing or cross-conversation references yield nil.
func (c *Chat) lookupQuoted(ctx context.Context, quotedID string) *types.Message {
	if quotedID == "" {
		return nil
	}
	id, err := uuid.Parse(quotedID)
	if err != nil {
		return nil
	}
	quoted, err := c.store.GetMessage(ctx, c.conversation.ID, id)
	if err != nil {
		return nil
	}
	return quoted
}

// resolveQuoted validates a quoted-message reference for persistence;
// references outside the conversation are dropped.
func (c *Chat) resolveQuoted(ctx context.Context, quotedID string) *uuid.UUID {
	quoted := c.lookupQuoted(ctx, quotedID)
	if quoted == nil {
		return nil
	}
	id := quoted.ID
	return &id
}

func (c *Chat) validateMessageData(data *types.MessageData) error {
	switch data.Type {
	case types.MessageSystem:
		return validationf("system message must not have a sender")
	case types.MessageText, types.MessageVoice, types.MessageAudio,
		types.MessageVideo, types.MessageImage, types.MessageMedia,
		types.MessageAttachment:
	default:
		return validationf("unknown message type %q", data.Type)
	}
	if limit := c.limits.ForType(string(data.Type)); limit > 0 && data.FileSize > limit {
		return validationf("file size %d exceeds limit %d for %s messages", data.FileSize, limit, data.Type)
	}
	return nil
}

// fanOut delivers a committed message per the visibility rules: the
// manager sees every non-system message first; only approved messages
// reach humans; with a manager configured, non-manager bots get nothing
// from fan-out and must be targeted via redirect.
func (c *Chat) fanOut(ctx context.Context, msg *types.Message) {
	metrics.FanOuts.Inc()
	wire := c.wireMessage(ctx, msg)

	avoidNonManagerBots := c.hasManager() && msg.Type != types.MessageSystem
	if avoidNonManagerBots {
		if err := c.bus.DeliverMessageToBotManager(ctx, wire); err != nil {
			c.log.WithError(err).Warn("deliver message to bot manager")
		}
	}
	if msg.ApprovalStatus.Approved() {
		if err := c.bus.BroadcastMessage(ctx, wire, avoidNonManagerBots); err != nil {
			c.log.WithError(err).Warn("broadcast message")
		}
	}

	participants, err := c.store.ListParticipants(ctx, c.conversation.ID)
	if err != nil {
		c.log.WithError(err).Error("list participants for fan-out")
		return
	}
	for i := range participants {
		p := &participants[i]
		if p.Kind != types.KindBot {
			continue
		}
		if avoidNonManagerBots && p.Name != c.managerName {
			continue
		}
		c.dispatcher.DispatchMessage(ctx, p, msg.InternalID, nil)
	}
}

// redirectMessage delivers an already-persisted message individually to
// each target bot, both over the bus (websocket-attached bots) and
// through the dispatcher (in-process or queued bots). Unresolvable
// targets are skipped with a warning.
func (c *Chat) redirectMessage(ctx context.Context, msg *types.Message, targets []string, overrides map[string]any) {
	for _, ref := range targets {
		bot, err := c.store.FindBotParticipant(ctx, c.conversation.ID, ref)
		if err != nil {
			c.log.WithField("bot", ref).Warn("redirect target not found")
			continue
		}
		wire, err := c.wireMessage(ctx, msg).WireCopy(overrides)
		if err != nil {
			c.log.WithError(err).Warn("apply redirect overrides")
			continue
		}
		if err := c.bus.DeliverMessageToBot(ctx, wire, bot.ID); err != nil {
			c.log.WithError(err).Warn("deliver redirected message")
		}
		c.dispatcher.DispatchMessage(ctx, bot, msg.InternalID, overrides)
	}
}

// broadcastParticipants pushes the refreshed participant list to every
// live connection and to every bot.
func (c *Chat) broadcastParticipants(ctx context.Context) {
	participants, err := c.store.ListParticipants(ctx, c.conversation.ID)
	if err != nil {
		c.log.WithError(err).Error("list participants for state broadcast")
		return
	}
	state := &types.StateUpdate{Participants: participants}
	if err := c.bus.BroadcastState(ctx, c.conversation.ID, state); err != nil {
		c.log.WithError(err).Warn("broadcast state")
	}
	for i := range participants {
		p := &participants[i]
		if p.Kind == types.KindBot {
			c.dispatcher.DispatchStatus(ctx, p, state)
		}
	}
}

// DeliverMessageToBot hands a message directly to one in-process bot,
// bypassing broadcast groups. Cross-conversation deliveries and non-bot
// targets are caller bugs and rejected hard; a bot name with no
// registered implementation is skipped quietly (it may be an external
// bot reachable only over the bus).
func (c *Chat) DeliverMessageToBot(ctx context.Context, msg *types.Message, bot *types.Participant, overrides map[string]any) error {
	if bot.ConversationID != c.conversation.ID {
		return ErrWrongConversation
	}
	if msg.ConversationID != c.conversation.ID {
		return ErrMessageNotInChat
	}
	if bot.Kind != types.KindBot {
		return ErrNotBot
	}
	spec, ok := c.bots.Spec(bot.Name)
	if !ok {
		c.log.WithField("bot_name", bot.Name).Debug("no installed bot for participant")
		return nil
	}
	wire, err := c.wireMessage(ctx, msg).WireCopy(overrides)
	if err != nil {
		return err
	}
	instance := spec.Factory(c.conversationInfo(ctx, bot))
	instance.ReceiveMessage(wire)
	return nil
}

// DeliverStatusToBot hands a participant-list update to one in-process
// bot.
func (c *Chat) DeliverStatusToBot(ctx context.Context, status *types.StateUpdate, bot *types.Participant) error {
	if bot.ConversationID != c.conversation.ID {
		return ErrWrongConversation
	}
	if bot.Kind != types.KindBot {
		return ErrNotBot
	}
	spec, ok := c.bots.Spec(bot.Name)
	if !ok {
		c.log.WithField("bot_name", bot.Name).Debug("no installed bot for participant")
		return nil
	}
	instance := spec.Factory(c.conversationInfo(ctx, bot))
	instance.UpdateStatus(status)
	return nil
}

func (c *Chat) conversationInfo(ctx context.Context, bot *types.Participant) bots.ConversationInfo {
	botCopy := *bot
	return bots.ConversationInfo{
		ConversationID:   c.conversation.ID,
		BotParticipantID: bot.ID,
		Send: func(data *types.MessageData) (*types.Message, error) {
			return c.SaveMessage(ctx, &botCopy, data)
		},
	}
}

// wireMessage returns the delivery representation of a message, with the
// sender kind resolved for recipients that filter on it.
func (c *Chat) wireMessage(ctx context.Context, msg *types.Message) *types.Message {
	wire := *msg
	if wire.SenderID != nil {
		if sender, err := c.store.GetParticipant(ctx, *wire.SenderID); err == nil {
			wire.SenderKind = sender.Kind
		}
	}
	return &wire
}

func drain(hooks []func()) {
	for _, h := range hooks {
		h()
	}
}
