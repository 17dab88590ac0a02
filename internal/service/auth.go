package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenTypeSession is the expected token type for participant session tokens.
const TokenTypeSession = "session"

// Claims represents the JWT claims of a participant session token. A token
// binds one participant to one conversation.
type Claims struct {
	jwt.RegisteredClaims
	ConversationID string `json:"conversation_id"`
	ParticipantID  string `json:"participant_id"`
	TokenType      string `json:"token_type"`
}

// AuthService issues and validates participant session tokens.
type AuthService struct {
	jwtSecret []byte
}

// NewAuthService creates a new AuthService with the given JWT secret.
func NewAuthService(secret string) *AuthService {
	return &AuthService{jwtSecret: []byte(secret)}
}

// IssueToken creates a session token for a participant of a conversation.
func (a *AuthService) IssueToken(conversationID, participantID uuid.UUID) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
			Subject:  participantID.String(),
		},
		ConversationID: conversationID.String(),
		ParticipantID:  participantID.String(),
		TokenType:      TokenTypeSession,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

// ValidateToken validates a session token and returns the conversation and
// participant it is bound to.
func (a *AuthService) ValidateToken(tokenStr string) (conversationID, participantID uuid.UUID, err error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if !token.Valid {
		return uuid.Nil, uuid.Nil, errors.New("invalid or expired token")
	}
	if claims.TokenType != TokenTypeSession {
		return uuid.Nil, uuid.Nil, errors.New("session token required")
	}
	conversationID, err = uuid.Parse(claims.ConversationID)
	if err != nil {
		return uuid.Nil, uuid.Nil, errors.New("token missing conversation")
	}
	participantID, err = uuid.Parse(claims.ParticipantID)
	if err != nil {
		return uuid.Nil, uuid.Nil, errors.New("token missing participant")
	}
	return conversationID, participantID, nil
}
