package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/C4AI/blab-controller/internal/chat"
	"github.com/C4AI/blab-controller/internal/delivery"
	"github.com/C4AI/blab-controller/internal/types"
)

const (
	maxInboundFrameSize = 1 << 20

	// Inbound messages per connection are throttled; frames over the
	// sustained rate wait, they are not dropped.
	inboundRate  = rate.Limit(10)
	inboundBurst = 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// errorFrame is pushed to the sender when an inbound frame is rejected.
type errorFrame struct {
	Error string `json:"error"`
}

// ChatWebSocket upgrades the connection of an authenticated participant,
// attaches it to the conversation's delivery groups, and feeds inbound
// frames into the conversation actor. The joined/left system messages
// follow the connection lifecycle.
func (s *Server) ChatWebSocket(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid conversation id"})
	}
	if GetConversationID(c) != id {
		return c.JSON(http.StatusForbidden, ErrorResponse{Error: "token is for another conversation"})
	}

	ctx := c.Request().Context()
	participant, err := s.store.GetParticipant(ctx, GetParticipantID(c))
	if err != nil || participant.ConversationID != id {
		return c.JSON(http.StatusForbidden, ErrorResponse{Error: "unknown participant"})
	}

	actor, err := s.chats.GetChat(ctx, id)
	if err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			return c.JSON(http.StatusNotFound, ErrorResponse{Error: "conversation not found"})
		}
		s.logger.WithError(err).Error("failed to load conversation")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to load conversation"})
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	log := s.logger.WithFields(logrus.Fields{
		"conversation_id": id,
		"participant_id":  participant.ID,
	})
	log.Info("participant connected")

	client := delivery.NewClient(*participant, conn)
	s.hub.Attach(client, delivery.GroupsFor(participant, s.managerName))
	go client.WritePump()

	// The request context dies with the connection; announcements and
	// inbound messages must outlive it.
	opCtx := context.Background()
	if _, err := actor.AnnounceJoined(opCtx, participant.ID); err != nil {
		log.WithError(err).Error("announce participant joined")
	}

	s.readLoop(opCtx, actor, participant, client, conn, log)

	s.hub.Detach(client)
	client.Close()
	conn.Close()
	if _, err := actor.AnnounceLeft(opCtx, participant.ID); err != nil {
		log.WithError(err).Error("announce participant left")
	}
	log.Info("participant disconnected")
	return nil
}

func (s *Server) readLoop(ctx context.Context, actor *chat.Chat, participant *types.Participant, client *delivery.Client, conn *websocket.Conn, log *logrus.Entry) {
	conn.SetReadLimit(maxInboundFrameSize)
	limiter := rate.NewLimiter(inboundRate, inboundBurst)

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Debug("websocket read failed")
			}
			return
		}
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		var data types.MessageData
		if err := json.Unmarshal(frame, &data); err != nil {
			sendError(client, "malformed message")
			continue
		}
		if _, err := actor.SaveMessage(ctx, participant, &data); err != nil {
			var verr *chat.ValidationError
			if errors.As(err, &verr) {
				sendError(client, verr.Reason)
				continue
			}
			log.WithError(err).Error("save message")
			sendError(client, "failed to save message")
		}
	}
}

// sendError pushes a rejection to the sender through its write queue; the
// writer goroutine is the connection's only writer.
func sendError(client *delivery.Client, reason string) {
	frame, err := json.Marshal(errorFrame{Error: reason})
	if err != nil {
		return
	}
	client.Queue(frame)
}
