package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/C4AI/blab-controller/internal/chat"
	"github.com/C4AI/blab-controller/internal/types"
)

// CreateConversationRequest is the request body for creating a conversation.
type CreateConversationRequest struct {
	Nickname string   `json:"nickname"`
	Name     string   `json:"conversation_name"`
	Bots     []string `json:"bots"`
}

// ConversationResponse is the response for creating or joining a
// conversation. MyParticipantID identifies the caller in Participants and
// Token authenticates its websocket connection.
type ConversationResponse struct {
	Conversation    *types.Conversation `json:"conversation"`
	Participants    []types.Participant `json:"participants"`
	MyParticipantID uuid.UUID           `json:"my_participant_id"`
	Token           string              `json:"token"`
}

// JoinConversationRequest is the request body for joining a conversation.
type JoinConversationRequest struct {
	Nickname string `json:"nickname"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []types.Conversation `json:"conversations"`
}

// GetConversationResponse is the response for getting a conversation.
type GetConversationResponse struct {
	Conversation *types.Conversation `json:"conversation"`
	Participants []types.Participant `json:"participants"`
}

// ListBotsResponse is the response for listing the installed bots.
type ListBotsResponse struct {
	Bots []string `json:"bots"`
}

// CreateConversation creates a conversation with its creator and the
// requested bots, and returns a session token for the creator.
func (s *Server) CreateConversation(c echo.Context) error {
	var req CreateConversationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	actor, participants, err := s.chats.OnCreateConversation(c.Request().Context(), req.Name, req.Nickname, req.Bots)
	if err != nil {
		var verr *chat.ValidationError
		if errors.As(err, &verr) {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: verr.Reason})
		}
		s.logger.WithError(err).Error("failed to create conversation")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to create conversation"})
	}

	me := participants[0]
	token, err := s.authService.IssueToken(actor.Conversation().ID, me.ID)
	if err != nil {
		s.logger.WithError(err).Error("failed to issue session token")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to create conversation"})
	}

	return c.JSON(http.StatusCreated, ConversationResponse{
		Conversation:    actor.Conversation(),
		Participants:    participants,
		MyParticipantID: me.ID,
		Token:           token,
	})
}

// JoinConversation adds the caller to an existing conversation and returns
// a session token.
func (s *Server) JoinConversation(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid conversation id"})
	}

	var req JoinConversationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	actor, err := s.chats.GetChat(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			return c.JSON(http.StatusNotFound, ErrorResponse{Error: "conversation not found"})
		}
		s.logger.WithError(err).Error("failed to load conversation")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to join conversation"})
	}

	participant, err := actor.Join(c.Request().Context(), req.Nickname)
	if err != nil {
		s.logger.WithError(err).Error("failed to join conversation")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to join conversation"})
	}

	token, err := s.authService.IssueToken(id, participant.ID)
	if err != nil {
		s.logger.WithError(err).Error("failed to issue session token")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to join conversation"})
	}

	participants, err := s.store.ListParticipants(c.Request().Context(), id)
	if err != nil {
		s.logger.WithError(err).Error("failed to list participants")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to join conversation"})
	}

	return c.JSON(http.StatusOK, ConversationResponse{
		Conversation:    actor.Conversation(),
		Participants:    participants,
		MyParticipantID: participant.ID,
		Token:           token,
	})
}

// ListConversations returns all conversations.
func (s *Server) ListConversations(c echo.Context) error {
	conversations, err := s.store.ListConversations(c.Request().Context())
	if err != nil {
		s.logger.WithError(err).Error("failed to list conversations")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to list conversations"})
	}
	if conversations == nil {
		conversations = []types.Conversation{}
	}
	return c.JSON(http.StatusOK, ListConversationsResponse{Conversations: conversations})
}

// GetConversation returns a conversation with its participants. The caller
// must hold a session token for it.
func (s *Server) GetConversation(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid conversation id"})
	}
	if GetConversationID(c) != id {
		return c.JSON(http.StatusForbidden, ErrorResponse{Error: "token is for another conversation"})
	}

	conv, err := s.store.GetConversation(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			return c.JSON(http.StatusNotFound, ErrorResponse{Error: "conversation not found"})
		}
		s.logger.WithError(err).Error("failed to get conversation")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to get conversation"})
	}

	participants, err := s.store.ListParticipants(c.Request().Context(), id)
	if err != nil {
		s.logger.WithError(err).Error("failed to list participants")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to get conversation"})
	}

	return c.JSON(http.StatusOK, GetConversationResponse{
		Conversation: conv,
		Participants: participants,
	})
}

// ListBots returns the names of the installed bots that can be requested
// at conversation creation.
func (s *Server) ListBots(c echo.Context) error {
	return c.JSON(http.StatusOK, ListBotsResponse{Bots: s.bots.Names()})
}
