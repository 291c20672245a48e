package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/custodia-labs/finplan-core/internal/core/ports/driven"
	"github.com/custodia-labs/finplan-core/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	handler    http.Handler
	version    string
	logger     *slog.Logger

	collections   driving.CollectionService
	notifications driven.NotificationLog // optional
	limiter       *EditRateLimiter

	// Infrastructure
	db          Pinger // PostgreSQL health check (optional)
	redisClient Pinger // Redis health check (optional)
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string
	Logger  *slog.Logger

	// EditRateLimit is the sustained edits per second allowed per subject; 0 disables limiting
	EditRateLimit float64
	EditRateBurst int

	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:          "0.0.0.0",
		Port:          8080,
		Version:       "dev",
		EditRateLimit: 20,
		EditRateBurst: 40,
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	collections driving.CollectionService,
	notifications driven.NotificationLog, // can be nil
	db Pinger, // can be nil
	redisClient Pinger, // can be nil
) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:        http.NewServeMux(),
		version:       cfg.Version,
		logger:        logger,
		collections:   collections,
		notifications: notifications,
		limiter:       NewEditRateLimiter(cfg.EditRateLimit, cfg.EditRateBurst),
		db:            db,
		redisClient:   redisClient,
	}

	s.setupRoutes()
	s.handler = NewRecoveryMiddleware(logger).Handler(
		NewLoggingMiddleware(logger).Handler(
			NewCORSMiddleware(cfg.AllowedOrigins).Handler(s.router)))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the router wrapped in the middleware chain
func (s *Server) Handler() http.Handler {
	return s.handler
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	edit := func(h http.HandlerFunc) http.Handler {
		return s.limiter.Handler(h)
	}

	// Health endpoints
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Form schema
	s.router.HandleFunc("GET /api/v1/form", s.handleGetForm)

	// Collection sessions
	s.router.HandleFunc("POST /api/v1/collections/{subject}/open", s.handleOpen)
	s.router.HandleFunc("GET /api/v1/collections/{subject}", s.handleView)
	s.router.HandleFunc("POST /api/v1/collections/{subject}/save", s.handleSaveDraft)
	s.router.HandleFunc("POST /api/v1/collections/{subject}/finalize", s.handleFinalize)
	s.router.HandleFunc("POST /api/v1/collections/{subject}/close", s.handleClose)
	s.router.HandleFunc("GET /api/v1/collections/{subject}/notifications", s.handleNotifications)

	// Edits (rate limited per subject)
	s.router.Handle("PATCH /api/v1/collections/{subject}/fields/{key}", edit(s.handleSetField))
	s.router.Handle("PATCH /api/v1/collections/{subject}/data", edit(s.handleEdit))
	s.router.Handle("POST /api/v1/collections/{subject}/lists/{key}/items", edit(s.handleAppendItem))
	s.router.Handle("DELETE /api/v1/collections/{subject}/lists/{key}/items/{index}", edit(s.handleRemoveItem))
	s.router.Handle("PATCH /api/v1/collections/{subject}/lists/{key}/items/{index}", edit(s.handleSetItemField))
	s.router.Handle("POST /api/v1/collections/{subject}/options/{key}", edit(s.handleAddOption))
	s.router.Handle("DELETE /api/v1/collections/{subject}/options/{key}", edit(s.handleRemoveOption))
}

// Start serves until SIGINT/SIGTERM or ctx is done, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
