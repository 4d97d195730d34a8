// Package server exposes the pseudonymization engine to the host
// application over HTTP: anonymize a record, deanonymize model output, and
// drop a session's mapping on logout.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/carenotes/veil/internal/anonymizer"
	"github.com/carenotes/veil/internal/audit"
	"github.com/carenotes/veil/internal/config"
	"github.com/carenotes/veil/internal/logger"
	"github.com/carenotes/veil/internal/session"
	"github.com/carenotes/veil/internal/websocket"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Server is the HTTP gateway around the engine.
type Server struct {
	config   *config.Config
	logger   *logger.Logger
	engine   *anonymizer.Engine
	sessions session.Store
	auditor  audit.Recorder
	wsHub    *websocket.Hub
	router   *mux.Router
	server   *http.Server
	limiter  *rateLimiter
}

// New wires the gateway together.
func New(cfg *config.Config, log *logger.Logger, engine *anonymizer.Engine, sessions session.Store, auditor audit.Recorder) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("server: nil engine")
	}
	if sessions == nil {
		return nil, fmt.Errorf("server: nil session store")
	}

	wsHub := websocket.NewHub(cfg.WebSocket, log.WithComponent("websocket").Logger)

	server := &Server{
		config:   cfg,
		logger:   log.WithComponent("server"),
		engine:   engine,
		sessions: sessions,
		auditor:  auditor,
		wsHub:    wsHub,
		router:   mux.NewRouter(),
		limiter:  newRateLimiter(cfg.Server.RateLimit.RequestsPerSecond, cfg.Server.RateLimit.Burst),
	}

	server.setupRoutes()

	server.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return server, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Info endpoint
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	// WebSocket endpoint for the ops event feed
	if s.config.WebSocket.Enabled {
		s.router.HandleFunc(s.config.WebSocket.Path, s.handleWebSocket).Methods("GET")
	}

	// Session-scoped engine operations
	api := s.router.PathPrefix("/v1/sessions/{id}").Subrouter()
	api.Use(s.loggingMiddleware)
	if s.config.Server.RateLimit.Enabled {
		api.Use(s.rateLimitMiddleware)
	}
	api.HandleFunc("/anonymize", s.handleAnonymize).Methods("POST")
	api.HandleFunc("/deanonymize", s.handleDeanonymize).Methods("POST")
	api.HandleFunc("", s.handleClearSession).Methods("DELETE")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting veil gateway",
		zap.Int("port", s.config.Server.Port),
		zap.String("session_backend", s.config.Session.Backend),
		zap.Bool("audit", s.config.Audit.Enabled),
	)

	go s.wsHub.Run()
	s.wsHub.BroadcastSystem(websocket.SystemEvent{Status: "up", Message: "gateway started"})

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping veil gateway")
	s.wsHub.BroadcastSystem(websocket.SystemEvent{Status: "down", Message: "gateway stopping"})
	return s.server.Shutdown(ctx)
}

// Hub returns the WebSocket hub for broadcasting events.
func (s *Server) Hub() *websocket.Hub {
	return s.wsHub
}
