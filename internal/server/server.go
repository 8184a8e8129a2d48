// Package server exposes the HTTP API and the WebSocket endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/lpdesk/lpdesk/internal/domain"
	"github.com/lpdesk/lpdesk/internal/server/handler"
	"github.com/lpdesk/lpdesk/internal/server/middleware"
	"github.com/lpdesk/lpdesk/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
	// RateLimit is the number of requests per RateWindow allowed per client
	// IP. Zero disables rate limiting.
	RateLimit  int
	RateWindow time.Duration
	// TrustedProxies may set the client address through forwarding headers.
	TrustedProxies []netip.Prefix
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health    *handler.HealthHandler
	Status    *handler.StatusHandler
	Positions *handler.PositionHandler
	Pairs     *handler.PairHandler
	Locks     *handler.LockHandler
	Farms     *handler.FarmHandler
	Indexer   *handler.IndexerHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered. limiter may be
// nil, which disables rate limiting.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      Routes(cfg, handlers, wsHub, limiter, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return &Server{httpServer: srv, logger: logger}
}

// Routes builds the routed, middleware-wrapped handler. Handlers left nil
// are not registered.
func Routes(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	if handlers.Health != nil {
		mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	}
	if handlers.Status != nil {
		mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)
	}

	if h := handlers.Positions; h != nil {
		mux.HandleFunc("GET /api/positions", h.GetView)
		mux.HandleFunc("DELETE /api/positions/session/{id}", h.DropSession)
	}

	if h := handlers.Pairs; h != nil {
		mux.HandleFunc("GET /api/analytics/{version}/pair/{id}", h.GetSummary)
		mux.HandleFunc("GET /api/analytics/{version}/pair/{id}/transactions", h.ListTransactions)
		mux.HandleFunc("GET /api/analytics/{version}/pair/{id}/archive", h.ListArchive)
		mux.HandleFunc("GET /api/analytics/{version}/pair/{id}/archive/{day}", h.GetArchivedDay)
	}

	if h := handlers.Locks; h != nil {
		mux.HandleFunc("GET /api/locks/history", h.ListHistory)
		mux.HandleFunc("GET /api/locks/activity", h.ListActivity)
		mux.HandleFunc("GET /api/locks/{version}", h.ListLocks)
		mux.HandleFunc("PUT /api/locks/{contract}/{deposit}", h.RefreshLock)
	}

	if h := handlers.Farms; h != nil {
		mux.HandleFunc("GET /api/farms/pairs", h.ListPairs)
		mux.HandleFunc("GET /api/farms/{category}", h.ListCategory)
	}

	if handlers.Indexer != nil {
		mux.HandleFunc("POST /api/indexer/trigger", handlers.Indexer.Trigger)
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, middleware.RateLimitOptions{
			Limit:          cfg.RateLimit,
			Window:         cfg.RateWindow,
			Exempt:         []string{"/api/health"},
			TrustedProxies: cfg.TrustedProxies,
		}, logger)(h)
	}
	h = middleware.Auth(cfg.APIKey, "/api/health")(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
