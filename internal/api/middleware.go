package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// AuthMiddleware validates participant session tokens and stores the
// conversation and participant ids in the request context.
func (s *Server) AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := GetSessionToken(c)
		if token == "" {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing session token"})
		}

		conversationID, participantID, err := s.authService.ValidateToken(token)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
		}

		c.Set("conversation_id", conversationID)
		c.Set("participant_id", participantID)
		return next(c)
	}
}

// GetSessionToken extracts the raw session token from the Authorization
// header, falling back to the access_token query parameter so websocket
// clients that cannot set headers can still authenticate.
func GetSessionToken(c echo.Context) string {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if auth != "" {
		parts := strings.Fields(auth)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
		return ""
	}
	return c.QueryParam("access_token")
}

// GetConversationID extracts the authenticated conversation id from the
// echo context.
func GetConversationID(c echo.Context) uuid.UUID {
	id, _ := c.Get("conversation_id").(uuid.UUID)
	return id
}

// GetParticipantID extracts the authenticated participant id from the
// echo context.
func GetParticipantID(c echo.Context) uuid.UUID {
	id, _ := c.Get("participant_id").(uuid.UUID)
	return id
}
