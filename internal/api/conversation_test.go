package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/C4AI/blab-controller/internal/bots"
	"github.com/C4AI/blab-controller/internal/chat"
	"github.com/C4AI/blab-controller/internal/config"
	"github.com/C4AI/blab-controller/internal/delivery"
	"github.com/C4AI/blab-controller/internal/service"
	"github.com/C4AI/blab-controller/internal/types"
)

// stubStore is a minimal in-memory chat.Store for handler tests.
type stubStore struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]*types.Conversation
	participants  map[uuid.UUID]*types.Participant
	order         []uuid.UUID
	messages      []*types.Message
}

func newStubStore() *stubStore {
	return &stubStore{
		conversations: make(map[uuid.UUID]*types.Conversation),
		participants:  make(map[uuid.UUID]*types.Participant),
	}
}

func (s *stubStore) CreateConversation(_ context.Context, conv *types.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv.CreatedAt = time.Now()
	cp := *conv
	s.conversations[conv.ID] = &cp
	return nil
}

func (s *stubStore) GetConversation(_ context.Context, id uuid.UUID) (*types.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, chat.ErrNotFound
	}
	cp := *conv
	return &cp, nil
}

func (s *stubStore) ListConversations(context.Context) ([]types.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Conversation
	for _, conv := range s.conversations {
		out = append(out, *conv)
	}
	return out, nil
}

func (s *stubStore) CreateParticipant(_ context.Context, p *types.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.participants[p.ID] = &cp
	s.order = append(s.order, p.ID)
	return nil
}

func (s *stubStore) GetParticipant(_ context.Context, id uuid.UUID) (*types.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[id]
	if !ok {
		return nil, chat.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *stubStore) ListParticipants(_ context.Context, conversationID uuid.UUID) ([]types.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Participant
	for _, id := range s.order {
		if p := s.participants[id]; p.ConversationID == conversationID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *stubStore) FindBotParticipant(_ context.Context, conversationID uuid.UUID, ref string) (*types.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order {
		p := s.participants[id]
		if p.ConversationID == conversationID && p.Kind == types.KindBot && p.Name == ref {
			cp := *p
			return &cp, nil
		}
	}
	return nil, chat.ErrNotFound
}

func (s *stubStore) CreateMessage(_ context.Context, msg *types.Message) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.InternalID = int64(len(s.messages) + 1)
	msg.Time = time.Now()
	cp := *msg
	s.messages = append(s.messages, &cp)
	return true, nil
}

func (s *stubStore) GetMessage(_ context.Context, conversationID, id uuid.UUID) (*types.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ConversationID == conversationID && m.ID == id {
			cp := *m
			return &cp, nil
		}
	}
	return nil, chat.ErrNotFound
}

func (s *stubStore) GetMessageByInternalID(_ context.Context, internalID int64) (*types.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.InternalID == internalID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, chat.ErrNotFound
}

func (s *stubStore) SetApprovalStatus(_ context.Context, internalID int64, status types.ApprovalStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.InternalID == internalID {
			m.ApprovalStatus = status
			return nil
		}
	}
	return chat.ErrNotFound
}

type nopDispatcher struct{}

func (nopDispatcher) DispatchMessage(context.Context, *types.Participant, int64, map[string]any) {}
func (nopDispatcher) DispatchStatus(context.Context, *types.Participant, *types.StateUpdate)    {}

func newTestServer(t *testing.T) (*Server, *echo.Echo) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	botRegistry := bots.NewRegistry()
	botRegistry.Register("ECHO", false, bots.NewUpperCaseEchoBot)

	store := newStubStore()
	hub := delivery.NewHub(logger)
	chats := chat.NewRegistry(chat.Deps{
		Store:      store,
		Bus:        delivery.NewBus(hub),
		Dispatcher: nopDispatcher{},
		Bots:       botRegistry,
		Limits:     config.ChatLimits{},
		Logger:     logger,
	})
	auth := service.NewAuthService("test-secret")
	server := NewServer(auth, chats, store, hub, botRegistry, "", logger)

	e := echo.New()
	e.GET("/chat/bots", server.ListBots)
	e.GET("/chat/conversations", server.ListConversations)
	e.POST("/chat/conversations", server.CreateConversation)
	e.POST("/chat/conversations/:id/join", server.JoinConversation)
	e.GET("/chat/conversations/:id", server.GetConversation, server.AuthMiddleware)
	return server, e
}

func doJSON(e *echo.Echo, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCreateConversationEndpoint(t *testing.T) {
	_, e := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/chat/conversations",
		`{"nickname": "alice", "conversation_name": "room", "bots": ["ECHO"]}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp ConversationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Conversation)
	require.NotNil(t, resp.Conversation.Name)
	assert.Equal(t, "room", *resp.Conversation.Name)
	require.Len(t, resp.Participants, 2)
	assert.Equal(t, "alice", resp.Participants[0].Name)
	assert.Equal(t, resp.Participants[0].ID, resp.MyParticipantID)
	assert.NotEmpty(t, resp.Token)
}

func TestCreateConversationUnknownBotEndpoint(t *testing.T) {
	_, e := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/chat/conversations",
		`{"nickname": "alice", "bots": ["NOPE"]}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "NOPE")
}

func TestJoinConversationEndpoint(t *testing.T) {
	_, e := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/chat/conversations", `{"nickname": "alice"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var created ConversationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(e, http.MethodPost, "/chat/conversations/"+created.Conversation.ID.String()+"/join",
		`{"nickname": "bob"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var joined ConversationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &joined))
	assert.Len(t, joined.Participants, 2)
	assert.NotEmpty(t, joined.Token)
	assert.NotEqual(t, created.MyParticipantID, joined.MyParticipantID)
}

func TestJoinUnknownConversation(t *testing.T) {
	_, e := newTestServer(t)
	rec := doJSON(e, http.MethodPost, "/chat/conversations/"+uuid.NewString()+"/join",
		`{"nickname": "bob"}`, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetConversationRequiresToken(t *testing.T) {
	_, e := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/chat/conversations", `{"nickname": "alice"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var created ConversationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	convPath := "/chat/conversations/" + created.Conversation.ID.String()

	rec = doJSON(e, http.MethodGet, convPath, "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(e, http.MethodGet, convPath, "", "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(e, http.MethodGet, convPath, "", created.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	var got GetConversationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, created.Conversation.ID, got.Conversation.ID)
	assert.Len(t, got.Participants, 1)
}

func TestGetConversationTokenForAnotherConversation(t *testing.T) {
	_, e := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/chat/conversations", `{"nickname": "alice"}`, "")
	var first ConversationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))

	rec = doJSON(e, http.MethodPost, "/chat/conversations", `{"nickname": "bob"}`, "")
	var second ConversationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))

	rec = doJSON(e, http.MethodGet, "/chat/conversations/"+first.Conversation.ID.String(), "", second.Token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListBotsEndpoint(t *testing.T) {
	_, e := newTestServer(t)

	rec := doJSON(e, http.MethodGet, "/chat/bots", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListBotsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"ECHO"}, resp.Bots)
}
