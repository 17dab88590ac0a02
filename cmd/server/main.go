package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/C4AI/blab-controller/internal/api"
	"github.com/C4AI/blab-controller/internal/bots"
	"github.com/C4AI/blab-controller/internal/chat"
	"github.com/C4AI/blab-controller/internal/config"
	"github.com/C4AI/blab-controller/internal/delivery"
	"github.com/C4AI/blab-controller/internal/dispatch"
	"github.com/C4AI/blab-controller/internal/service"
	"github.com/C4AI/blab-controller/internal/storage/postgres"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("failed to load configuration")
	}

	// Configure log format
	if cfg.LogFormat == "text" {
		logger.SetFormatter(&logrus.TextFormatter{})
	}

	logger.Info("starting chat controller server")

	// Connect to database
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	db, err := postgres.New(ctx, cfg.Database.DSN)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()
	store := postgres.NewStore(db.Pool())

	// Initialize the delivery bus: local websocket hub bridged across
	// processes through Redis pub/sub
	hub := delivery.NewHub(logger)
	bridge, err := delivery.NewRedisBridge(cfg.Redis.URI, hub, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to redis")
	}
	defer bridge.Close()
	go bridge.Run(ctx)
	bus := delivery.NewBus(bridge)

	// Register the installed bots
	botRegistry := bots.NewRegistry()
	botRegistry.Register("ECHO", false, bots.NewUpperCaseEchoBot)
	botRegistry.Register("Calculator", false, bots.NewCalculatorBot)
	for name, url := range cfg.Chat.WebhookBots {
		botRegistry.Register(name, false, bots.NewWebhookFactory(url, logger))
	}

	// Initialize services
	authService := service.NewAuthService(cfg.Server.JWTSecret)

	// Initialize the bot dispatcher, queued through Kafka when enabled
	var queue *dispatch.Queue
	if cfg.Chat.EnableQueue {
		queue = dispatch.NewQueue(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer queue.Close()
	}
	chats := chat.NewRegistry(chat.Deps{
		Store:      store,
		Bus:        bus,
		Bots:       botRegistry,
		ManagerBot: cfg.Chat.ManagerBot,
		Limits:     cfg.Chat.Limits,
		Logger:     logger,
	})
	dispatcher := dispatch.NewDispatcher(chats, store, queue, logger)
	chats.SetDispatcher(dispatcher)

	if cfg.Chat.EnableQueue {
		worker := dispatch.NewWorker(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, dispatcher, logger)
		defer worker.Close()
		go worker.Run(ctx)
	}

	// Initialize API server
	server := api.NewServer(authService, chats, store, hub, botRegistry, cfg.Chat.ManagerBot, logger)

	// Create Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Add middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.WithFields(logrus.Fields{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
			}).Info("request")
			return nil
		},
	}))

	// Health check and metrics endpoints (public)
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "ok",
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Chat routes
	g := e.Group("/chat")
	g.GET("/bots", server.ListBots)
	g.GET("/conversations", server.ListConversations)
	g.POST("/conversations", server.CreateConversation)
	g.POST("/conversations/:id/join", server.JoinConversation)
	g.GET("/conversations/:id", server.GetConversation, server.AuthMiddleware)
	g.GET("/conversations/:id/ws", server.ChatWebSocket, server.AuthMiddleware)

	// Start server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	go func() {
		logger.WithField("addr", addr).Info("server listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server shutdown error")
	}

	logger.Info("server stopped")
}
