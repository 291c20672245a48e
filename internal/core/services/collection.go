package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/finplan-core/internal/core/domain"
	"github.com/custodia-labs/finplan-core/internal/core/ports/driven"
	"github.com/custodia-labs/finplan-core/internal/core/ports/driving"
	"github.com/custodia-labs/finplan-core/internal/fields"
)

var _ driving.CollectionService = (*collectionService)(nil)

// DefaultEditorLockTTL is how long an editor lease lasts without a save or refresh
const DefaultEditorLockTTL = 2 * time.Minute

// CollectionServiceConfig holds configuration for the collection service
type CollectionServiceConfig struct {
	Store         driven.CollectionStore
	Forms         driven.FormSource
	Lock          driven.DistributedLock // Optional: single-editor lease across instances
	Notifier      driven.Notifier        // Optional
	Renderer      *fields.Renderer       // Optional: defaults to fields.NewRenderer()
	Clock         Clock                  // Optional: defaults to the wall clock
	AutosaveDelay time.Duration          // Default: 10s
	LockTTL       time.Duration          // Default: 2m
	Logger        *slog.Logger
}

// collectionService implements the CollectionService interface
type collectionService struct {
	store         driven.CollectionStore
	forms         driven.FormSource
	lock          driven.DistributedLock
	notifier      driven.Notifier
	renderer      *fields.Renderer
	clock         Clock
	autosaveDelay time.Duration
	lockTTL       time.Duration
	logger        *slog.Logger

	subjects subjectLocks

	mu       sync.Mutex
	sessions map[string]*Session
}

// subjectLocks serializes open and close per subject. Holding one subject's
// lock never blocks edits or opens of another subject.
type subjectLocks struct {
	mu    sync.Mutex
	locks map[string]*subjectLock
}

type subjectLock struct {
	mu   sync.Mutex
	refs int
}

func (l *subjectLocks) lock(subjectID string) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*subjectLock)
	}
	sl, ok := l.locks[subjectID]
	if !ok {
		sl = &subjectLock{}
		l.locks[subjectID] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()
	return func() {
		sl.mu.Unlock()
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, subjectID)
		}
		l.mu.Unlock()
	}
}

// NewCollectionService creates a new collection service
func NewCollectionService(cfg CollectionServiceConfig) driving.CollectionService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	renderer := cfg.Renderer
	if renderer == nil {
		renderer = fields.NewRenderer()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	lockTTL := cfg.LockTTL
	if lockTTL == 0 {
		lockTTL = DefaultEditorLockTTL
	}

	return &collectionService{
		store:         cfg.Store,
		forms:         cfg.Forms,
		lock:          cfg.Lock,
		notifier:      cfg.Notifier,
		renderer:      renderer,
		clock:         clock,
		autosaveDelay: cfg.AutosaveDelay,
		lockTTL:       lockTTL,
		logger:        logger,
		sessions:      make(map[string]*Session),
	}
}

func lockName(subjectID string) string {
	return "collection:" + subjectID
}

// Form returns the schema new sessions are opened with
func (s *collectionService) Form(ctx context.Context) (*domain.FormSchema, error) {
	form, err := s.forms.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load form schema: %w", domain.ErrServiceUnavailable, err)
	}
	return form, nil
}

// Open starts an editing session for the subject
func (s *collectionService) Open(ctx context.Context, subjectID string) (domain.SessionSnapshot, error) {
	if subjectID == "" {
		return domain.SessionSnapshot{}, fmt.Errorf("%w: subject id is required", domain.ErrInvalidInput)
	}

	unlock := s.subjects.lock(subjectID)
	defer unlock()

	if session, err := s.session(subjectID); err == nil {
		return session.Snapshot(), nil
	}

	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, lockName(subjectID), s.lockTTL)
		if err != nil {
			return domain.SessionSnapshot{}, fmt.Errorf("%w: acquire editor lease: %w", domain.ErrServiceUnavailable, err)
		}
		if !acquired {
			return domain.SessionSnapshot{}, domain.ErrSessionLocked
		}
	}

	session, err := s.openLocked(ctx, subjectID)
	if err != nil {
		s.releaseLease(ctx, subjectID)
		return domain.SessionSnapshot{}, err
	}

	s.mu.Lock()
	s.sessions[subjectID] = session
	s.mu.Unlock()

	s.logger.Info("collection session opened", "subject_id", subjectID)
	return session.Snapshot(), nil
}

func (s *collectionService) openLocked(ctx context.Context, subjectID string) (*Session, error) {
	form, err := s.Form(ctx)
	if err != nil {
		return nil, err
	}

	session := NewSession(SessionConfig{
		SubjectID:     subjectID,
		Form:          form,
		Renderer:      s.renderer,
		Store:         s.store,
		Notifier:      s.notifier,
		Clock:         s.clock,
		AutosaveDelay: s.autosaveDelay,
		Logger:        s.logger,
		OnSaved: func(ctx context.Context) {
			s.extendLease(ctx, subjectID)
		},
	})
	if err := session.Load(ctx); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *collectionService) extendLease(ctx context.Context, subjectID string) {
	if s.lock == nil {
		return
	}
	if err := s.lock.Extend(ctx, lockName(subjectID), s.lockTTL); err != nil {
		s.logger.Warn("failed to extend editor lease", "subject_id", subjectID, "error", err)
	}
}

func (s *collectionService) releaseLease(ctx context.Context, subjectID string) {
	if s.lock == nil {
		return
	}
	if err := s.lock.Release(ctx, lockName(subjectID)); err != nil {
		s.logger.Warn("failed to release editor lease", "subject_id", subjectID, "error", err)
	}
}

func (s *collectionService) session(subjectID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[subjectID]
	if !ok || session.Closed() {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Get returns the state of an open session
func (s *collectionService) Get(ctx context.Context, subjectID string) (domain.SessionSnapshot, error) {
	session, err := s.session(subjectID)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	return session.Snapshot(), nil
}

// View evaluates the form for an open session
func (s *collectionService) View(ctx context.Context, subjectID string) (*driving.CollectionView, error) {
	session, err := s.session(subjectID)
	if err != nil {
		return nil, err
	}
	form, snapshot, err := session.View()
	if err != nil {
		return nil, err
	}
	return &driving.CollectionView{Session: snapshot, Form: form}, nil
}

func (s *collectionService) SetField(ctx context.Context, subjectID, key string, value any) error {
	session, err := s.session(subjectID)
	if err != nil {
		return err
	}
	return session.SetField(key, value)
}

func (s *collectionService) Edit(ctx context.Context, subjectID, path string, value any) error {
	if path == "" {
		return fmt.Errorf("%w: path is required", domain.ErrInvalidInput)
	}
	session, err := s.session(subjectID)
	if err != nil {
		return err
	}
	return session.Edit(path, value)
}

func (s *collectionService) AppendItem(ctx context.Context, subjectID, key string) error {
	session, err := s.session(subjectID)
	if err != nil {
		return err
	}
	return session.AppendItem(key)
}

func (s *collectionService) RemoveItem(ctx context.Context, subjectID, key string, index int) error {
	session, err := s.session(subjectID)
	if err != nil {
		return err
	}
	return session.RemoveItem(key, index)
}

func (s *collectionService) SetItemField(ctx context.Context, subjectID, key string, index int, itemKey string, value any) error {
	session, err := s.session(subjectID)
	if err != nil {
		return err
	}
	return session.SetItemField(key, index, itemKey, value)
}

func (s *collectionService) AddOption(ctx context.Context, subjectID, key, item string) error {
	session, err := s.session(subjectID)
	if err != nil {
		return err
	}
	return session.AddOption(key, item)
}

func (s *collectionService) RemoveOption(ctx context.Context, subjectID, key, item string) error {
	session, err := s.session(subjectID)
	if err != nil {
		return err
	}
	return session.RemoveOption(key, item)
}

func (s *collectionService) SaveDraft(ctx context.Context, subjectID string) error {
	session, err := s.session(subjectID)
	if err != nil {
		return err
	}
	return session.SaveDraft(ctx)
}

func (s *collectionService) Finalize(ctx context.Context, subjectID string) (domain.FinalizeResult, error) {
	session, err := s.session(subjectID)
	if err != nil {
		return domain.FinalizeResult{}, err
	}
	return session.Finalize(ctx)
}

// Close flushes and ends the session, then releases the editor lease.
// When the flush fails the session stays open with its lease so a later
// save or close can retry.
func (s *collectionService) Close(ctx context.Context, subjectID string) error {
	unlock := s.subjects.lock(subjectID)
	defer unlock()

	s.mu.Lock()
	session, ok := s.sessions[subjectID]
	s.mu.Unlock()
	if !ok {
		return domain.ErrSessionNotFound
	}

	if err := session.Close(ctx); err != nil {
		return err
	}
	s.forget(ctx, subjectID)
	s.logger.Info("collection session closed", "subject_id", subjectID)
	return nil
}

// forget drops the session from the map and releases its lease
func (s *collectionService) forget(ctx context.Context, subjectID string) {
	s.mu.Lock()
	delete(s.sessions, subjectID)
	s.mu.Unlock()
	s.releaseLease(ctx, subjectID)
}

// CloseIdle closes sessions untouched for longer than maxIdle. Sessions whose
// flush fails stay open and are retried on the next call.
func (s *collectionService) CloseIdle(ctx context.Context, maxIdle time.Duration) int {
	now := s.clock.Now()

	s.mu.Lock()
	var idle []string
	for subjectID, session := range s.sessions {
		if now.Sub(session.IdleSince()) > maxIdle {
			idle = append(idle, subjectID)
		}
	}
	s.mu.Unlock()

	closed := 0
	for _, subjectID := range idle {
		err := s.Close(ctx, subjectID)
		if errors.Is(err, domain.ErrSessionNotFound) {
			continue
		}
		if err != nil {
			s.logger.Warn("idle session kept open with unsaved changes", "subject_id", subjectID, "error", err)
			continue
		}
		closed++
	}
	return closed
}

// RefreshLeases extends the editor lease of every open session
func (s *collectionService) RefreshLeases(ctx context.Context) {
	if s.lock == nil {
		return
	}
	s.mu.Lock()
	subjects := make([]string, 0, len(s.sessions))
	for subjectID := range s.sessions {
		subjects = append(subjects, subjectID)
	}
	s.mu.Unlock()

	for _, subjectID := range subjects {
		s.extendLease(ctx, subjectID)
	}
}

// CloseAll closes every open session on shutdown. A session that cannot be
// flushed is discarded and its subject logged; the flush errors are returned.
func (s *collectionService) CloseAll(ctx context.Context) error {
	s.mu.Lock()
	subjects := make([]string, 0, len(s.sessions))
	for subjectID := range s.sessions {
		subjects = append(subjects, subjectID)
	}
	s.mu.Unlock()

	var errs []error
	for _, subjectID := range subjects {
		err := s.Close(ctx, subjectID)
		if err == nil || errors.Is(err, domain.ErrSessionNotFound) {
			continue
		}
		errs = append(errs, fmt.Errorf("%s: %w", subjectID, err))
		s.discard(ctx, subjectID, err)
	}
	return errors.Join(errs...)
}

func (s *collectionService) discard(ctx context.Context, subjectID string, cause error) {
	unlock := s.subjects.lock(subjectID)
	defer unlock()

	s.mu.Lock()
	session, ok := s.sessions[subjectID]
	s.mu.Unlock()
	if !ok {
		return
	}
	if session.Discard() {
		s.logger.Error("unsaved changes lost at shutdown", "subject_id", subjectID, "error", cause)
	}
	s.forget(ctx, subjectID)
}
