package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/finplan-core/internal/core/ports/driving"
)

// SessionReaper periodically closes idle collection sessions and keeps the
// editor leases of the remaining ones alive.
type SessionReaper struct {
	collections driving.CollectionService
	logger      *slog.Logger
	interval    time.Duration
	idleTimeout time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// SessionReaperConfig holds configuration for the session reaper.
type SessionReaperConfig struct {
	Collections driving.CollectionService
	Logger      *slog.Logger
	Interval    time.Duration // How often to sweep (default: 30s)
	IdleTimeout time.Duration // Sessions untouched this long are closed (default: 30m)
}

// NewSessionReaper creates a new session reaper.
func NewSessionReaper(cfg SessionReaperConfig) *SessionReaper {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.Interval
	if interval == 0 {
		interval = 30 * time.Second
	}

	idleTimeout := cfg.IdleTimeout
	if idleTimeout == 0 {
		idleTimeout = 30 * time.Minute
	}

	return &SessionReaper{
		collections: cfg.Collections,
		logger:      logger,
		interval:    interval,
		idleTimeout: idleTimeout,
	}
}

// Start begins the sweep loop.
// It runs until Stop is called or context is cancelled.
func (r *SessionReaper) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.mu.Unlock()

	r.logger.Info("session reaper starting", "interval", r.interval, "idle_timeout", r.idleTimeout)

	go r.run(ctx)
}

// Stop stops the loop and waits for the current sweep to finish.
func (r *SessionReaper) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	close(r.stopCh)
	r.mu.Unlock()

	<-r.doneCh

	r.mu.Lock()
	r.running = false
	r.mu.Unlock()

	r.logger.Info("session reaper stopped")
}

func (r *SessionReaper) run(ctx context.Context) {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep closes idle sessions and refreshes the leases of the others
func (r *SessionReaper) Sweep(ctx context.Context) {
	if closed := r.collections.CloseIdle(ctx, r.idleTimeout); closed > 0 {
		r.logger.Info("closed idle collection sessions", "count", closed)
	}
	r.collections.RefreshLeases(ctx)
}
