package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"boardcast/internal/auth"
	"boardcast/internal/config"
	"boardcast/internal/eventbus"
	"boardcast/internal/logging"
	"boardcast/pkg/hub"
	wstransport "boardcast/pkg/transport/websocket"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	configPath := flag.String("config", "", "path to config file (yaml or json)")
	flag.Parse()

	cfg, err := config.Load(config.LoadOptions{Path: *configPath})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := eventbus.NewInMemoryBus(1024)
	bus.Start(ctx)
	defer bus.Stop()

	for _, eventType := range []eventbus.EventType{
		eventbus.EventConnectionOpened,
		eventbus.EventConnectionClosed,
		eventbus.EventBoardJoined,
		eventbus.EventBoardLeft,
	} {
		bus.Subscribe(eventType, func(event *eventbus.Event) {
			logger.Debug("lifecycle event",
				"event_type", event.Type,
				"connection_id", event.ConnectionID,
				"user_id", event.UserID,
				"board_id", event.BoardID,
			)
		})
	}

	h := hub.New(logger, hub.Options{
		TypingTTL:   cfg.Hub.TypingTTL,
		SendTimeout: cfg.Hub.SendTimeout,
		EventBus:    bus,
	})
	if err := h.Start(ctx); err != nil {
		logger.Error("failed to start hub", "error", err)
		os.Exit(1)
	}
	defer h.Stop()

	authenticator := auth.NewStaticTokenAuthenticator(cfg.Auth.Tokens)
	router := hub.NewRouter(h, logger)

	wsOptions := wstransport.DefaultServerOptions()
	wsOptions.Connection = wstransport.ConnectionOptions{
		WriteTimeout:   cfg.Websocket.WriteTimeout,
		ReadTimeout:    cfg.Websocket.ReadTimeout,
		PingInterval:   cfg.Websocket.PingInterval,
		MaxMessageSize: cfg.Websocket.MaxMessageSize,
		SendQueueSize:  cfg.Websocket.SendQueueSize,
	}
	wsServer := wstransport.NewServer(h, router, authenticator, logger, wsOptions)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	r.Handle("/hubs/board", wsServer)
	r.Route("/internal/boards/{boardID}/events", newTriggerRoutes(h, logger))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(h.GetStats())
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown error", "error", err)
	}
}
