package api

import (
	"github.com/sirupsen/logrus"

	"github.com/C4AI/blab-controller/internal/bots"
	"github.com/C4AI/blab-controller/internal/chat"
	"github.com/C4AI/blab-controller/internal/delivery"
	"github.com/C4AI/blab-controller/internal/service"
)

// Server holds API dependencies.
type Server struct {
	authService *service.AuthService
	chats       *chat.Registry
	store       chat.Store
	hub         *delivery.Hub
	bots        *bots.Registry
	managerName string
	logger      *logrus.Logger
}

// NewServer creates a new API server.
func NewServer(authService *service.AuthService, chats *chat.Registry, store chat.Store, hub *delivery.Hub, botRegistry *bots.Registry, managerName string, logger *logrus.Logger) *Server {
	return &Server{
		authService: authService,
		chats:       chats,
		store:       store,
		hub:         hub,
		bots:        botRegistry,
		managerName: managerName,
		logger:      logger,
	}
}
