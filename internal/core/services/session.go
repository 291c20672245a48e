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
	"github.com/custodia-labs/finplan-core/internal/docpath"
	"github.com/custodia-labs/finplan-core/internal/fields"
)

// DefaultAutosaveDelay is the quiet period before an edit is persisted
const DefaultAutosaveDelay = 10 * time.Second

// SessionConfig holds the collaborators of one collection session
type SessionConfig struct {
	SubjectID     string
	Form          *domain.FormSchema
	Renderer      *fields.Renderer // Optional: defaults to fields.NewRenderer()
	Store         driven.CollectionStore
	Notifier      driven.Notifier // Optional: notifications are dropped when nil
	Clock         Clock           // Optional: defaults to the wall clock
	AutosaveDelay time.Duration   // Default: 10s
	Logger        *slog.Logger

	// OnSaved is called after every successful write, outside the session lock
	OnSaved func(ctx context.Context)
}

// Session is the editing session of one subject's collection.
//
// All mutations are serialized by mu. Writes to the store are serialized by
// saveMu and always carry the document current when the write starts, so a
// later write never persists an older document than an earlier one.
type Session struct {
	subjectID string
	form      *domain.FormSchema
	renderer  *fields.Renderer
	store     driven.CollectionStore
	notifier  driven.Notifier
	clock     Clock
	logger    *slog.Logger
	onSaved   func(ctx context.Context)
	autosave  *Debouncer

	saveMu sync.Mutex

	mu          sync.Mutex
	state       domain.SessionState
	closed      bool
	finalizing  bool
	collection  domain.Collection
	data        map[string]any
	dirty       bool
	version     uint64
	lastSavedAt time.Time
	lastEditAt  time.Time
	touchedAt   time.Time
}

// NewSession creates an uninitialized session. Call Load before editing.
func NewSession(cfg SessionConfig) *Session {
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
	delay := cfg.AutosaveDelay
	if delay == 0 {
		delay = DefaultAutosaveDelay
	}

	s := &Session{
		subjectID: cfg.SubjectID,
		form:      cfg.Form,
		renderer:  renderer,
		store:     cfg.Store,
		notifier:  cfg.Notifier,
		clock:     clock,
		logger:    logger.With("subject_id", cfg.SubjectID),
		onSaved:   cfg.OnSaved,
		state:     domain.SessionStateUninitialized,
		touchedAt: clock.Now(),
	}
	s.autosave = NewDebouncer(clock, delay, s.runAutosave)
	return s
}

// SubjectID returns the subject this session edits
func (s *Session) SubjectID() string {
	return s.subjectID
}

// Load fetches the subject's collection, creating an empty draft when none
// exists, then backfills list defaults. On failure the session stays
// uninitialized and Load may be called again.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSessionClosed
	}
	if s.state == domain.SessionStateLoading {
		s.mu.Unlock()
		return domain.ErrSessionNotReady
	}
	if s.dirty {
		s.mu.Unlock()
		return fmt.Errorf("%w: unsaved changes", domain.ErrInvalidInput)
	}
	s.state = domain.SessionStateLoading
	s.mu.Unlock()

	collection, err := s.fetchOrCreate(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = domain.SessionStateUninitialized
		s.logger.Error("failed to load collection", "error", err)
		return fmt.Errorf("%w: load collection: %w", domain.ErrServiceUnavailable, err)
	}

	s.collection = *collection
	s.data = s.backfill(collection.Data)
	s.state = domain.SessionStateReady
	s.touchedAt = s.clock.Now()
	if !collection.UpdatedAt.IsZero() {
		s.lastSavedAt = collection.UpdatedAt
	}
	s.logger.Debug("collection loaded", "collection_id", collection.ID, "status", collection.Status)
	return nil
}

func (s *Session) fetchOrCreate(ctx context.Context) (*domain.Collection, error) {
	collection, err := s.store.GetBySubject(ctx, s.subjectID)
	if err == nil {
		return collection, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	collection, err = s.store.Create(ctx, s.subjectID)
	if errors.Is(err, domain.ErrAlreadyExists) {
		// created concurrently by another instance
		return s.store.GetBySubject(ctx, s.subjectID)
	}
	return collection, err
}

// backfill writes configured defaults into list fields that are absent, null
// or empty. It does not mark the session dirty.
func (s *Session) backfill(data map[string]any) map[string]any {
	if data == nil {
		data = map[string]any{}
	}
	for _, field := range s.form.ListFieldsWithDefaults() {
		current, found := docpath.Lookup(data, field.DataPath)
		if found && current != nil {
			if items, ok := current.([]any); !ok || len(items) > 0 {
				continue
			}
		}
		data = docpath.Set(data, field.DataPath, docpath.CloneValue(field.DefaultValue))
	}
	return data
}

// editable reports why the session cannot take an edit; s.mu must be held
func (s *Session) editable() error {
	switch {
	case s.closed:
		return domain.ErrSessionClosed
	case s.state != domain.SessionStateReady:
		return domain.ErrSessionNotReady
	case s.collection.IsCompleted():
		return domain.ErrCollectionCompleted
	case s.finalizing:
		return domain.ErrSessionNotReady
	}
	return nil
}

// mutate applies fn to the document, marks the session dirty and restarts the
// autosave timer
func (s *Session) mutate(fn func(doc map[string]any) (map[string]any, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editable(); err != nil {
		return err
	}
	updated, err := fn(s.data)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	s.data = updated
	s.dirty = true
	s.version++
	s.lastEditAt = now
	s.touchedAt = now
	s.autosave.Schedule()
	return nil
}

// field looks up a field of the form by key
func (s *Session) field(key string) (*domain.FieldSchema, error) {
	field, ok := s.form.Field(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownField, key)
	}
	return field, nil
}

// Edit writes value at path without coercion. The data path of a computed
// field is read-only.
func (s *Session) Edit(path string, value any) error {
	for _, field := range s.form.AllFields() {
		if field.Type == domain.FieldTypeComputed && field.DataPath == path {
			return fmt.Errorf("%w: %q is computed", domain.ErrReadOnlyField, field.Key)
		}
	}
	return s.mutate(func(doc map[string]any) (map[string]any, error) {
		return docpath.Set(doc, path, value), nil
	})
}

// SetField coerces value for the field with key and writes it at its data path
func (s *Session) SetField(key string, value any) error {
	field, err := s.field(key)
	if err != nil {
		return err
	}
	return s.mutate(func(doc map[string]any) (map[string]any, error) {
		return s.renderer.Apply(field, doc, value)
	})
}

// AppendItem adds an empty item to a list field
func (s *Session) AppendItem(key string) error {
	field, err := s.field(key)
	if err != nil {
		return err
	}
	return s.mutate(func(doc map[string]any) (map[string]any, error) {
		return s.renderer.AppendItem(field, doc)
	})
}

// RemoveItem deletes one item of a list field
func (s *Session) RemoveItem(key string, index int) error {
	field, err := s.field(key)
	if err != nil {
		return err
	}
	return s.mutate(func(doc map[string]any) (map[string]any, error) {
		return s.renderer.RemoveItem(field, doc, index)
	})
}

// SetItemField edits one key of one item of a list field
func (s *Session) SetItemField(key string, index int, itemKey string, value any) error {
	field, err := s.field(key)
	if err != nil {
		return err
	}
	return s.mutate(func(doc map[string]any) (map[string]any, error) {
		return s.renderer.SetItemField(field, doc, index, itemKey, value)
	})
}

// AddOption selects item in a multi-select field
func (s *Session) AddOption(key, item string) error {
	field, err := s.field(key)
	if err != nil {
		return err
	}
	return s.mutate(func(doc map[string]any) (map[string]any, error) {
		return s.renderer.AddOption(field, doc, item)
	})
}

// RemoveOption deselects item in a multi-select field
func (s *Session) RemoveOption(key, item string) error {
	field, err := s.field(key)
	if err != nil {
		return err
	}
	return s.mutate(func(doc map[string]any) (map[string]any, error) {
		return s.renderer.RemoveOption(field, doc, item)
	})
}

// write persists c and, on success, records the save. Dirty is cleared only if
// no edit arrived after version was taken. s.saveMu must be held.
func (s *Session) write(ctx context.Context, c domain.Collection, version uint64) error {
	if err := s.store.Update(ctx, &c); err != nil {
		return err
	}

	s.mu.Lock()
	now := s.clock.Now()
	s.collection.Status = c.Status
	s.collection.UpdatedAt = now
	if c.IsCompleted() && s.collection.CompletedAt == nil {
		s.collection.CompletedAt = &now
	}
	s.lastSavedAt = now
	if s.version == version {
		s.dirty = false
	}
	s.mu.Unlock()

	if s.onSaved != nil {
		s.onSaved(ctx)
	}
	return nil
}

// snapshotForWrite returns the collection to persist; s.mu must be held
func (s *Session) snapshotForWrite() (domain.Collection, uint64) {
	c := s.collection
	c.Data = s.data
	return c, s.version
}

func (s *Session) runAutosave() {
	if err := s.saveIfDirty(context.Background()); err != nil {
		s.logger.Warn("autosave failed", "error", err)
		s.notify(context.Background(), domain.NotificationError, "Autosave failed; your changes are kept and will be retried")
	}
}

// saveIfDirty persists the current document when it has unsaved changes
func (s *Session) saveIfDirty(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if !s.dirty || s.state != domain.SessionStateReady || s.collection.IsCompleted() {
		s.mu.Unlock()
		return nil
	}
	c, version := s.snapshotForWrite()
	s.mu.Unlock()

	return s.write(ctx, c, version)
}

// SaveDraft persists the document immediately, cancelling any pending autosave.
// Status is left unchanged.
func (s *Session) SaveDraft(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if err := s.editable(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.autosave.Cancel()
	c, version := s.snapshotForWrite()
	s.touchedAt = s.clock.Now()
	s.mu.Unlock()

	if err := s.write(ctx, c, version); err != nil {
		s.logger.Error("failed to save draft", "error", err)
		s.notify(ctx, domain.NotificationError, "Could not save draft")
		return fmt.Errorf("save draft: %w", err)
	}
	s.logger.Info("draft saved", "collection_id", c.ID)
	s.notify(ctx, domain.NotificationSuccess, "Draft saved")
	return nil
}

// Finalize validates every field of the form and, when all required fields are
// filled, persists the document with status completed. A refused finalize
// changes nothing and writes nothing. Finalizing a completed collection
// reports success without writing.
func (s *Session) Finalize(ctx context.Context) (domain.FinalizeResult, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if !s.closed && s.state == domain.SessionStateReady && s.collection.IsCompleted() {
		result := domain.FinalizeResult{Finalized: true, Validation: fields.Validate(s.data, s.form.AllFields())}
		s.mu.Unlock()
		return result, nil
	}
	if err := s.editable(); err != nil {
		s.mu.Unlock()
		return domain.FinalizeResult{}, err
	}
	s.touchedAt = s.clock.Now()
	result := domain.FinalizeResult{Validation: fields.Validate(s.data, s.form.AllFields())}
	if !result.Validation.IsValid {
		s.mu.Unlock()
		s.logger.Info("finalize refused", "missing", len(result.Validation.MissingFields))
		return result, nil
	}
	s.autosave.Cancel()
	s.finalizing = true
	c, version := s.snapshotForWrite()
	c.Status = domain.CollectionStatusCompleted
	s.mu.Unlock()

	err := s.write(ctx, c, version)

	s.mu.Lock()
	s.finalizing = false
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("failed to finalize collection", "error", err)
		s.notify(ctx, domain.NotificationError, "Could not complete the collection")
		return domain.FinalizeResult{Validation: result.Validation}, fmt.Errorf("finalize: %w", err)
	}
	result.Finalized = true
	s.logger.Info("collection completed", "collection_id", c.ID)
	s.notify(ctx, domain.NotificationSuccess, "Collection completed")
	return result, nil
}

// Validate runs validation over every field of the form
func (s *Session) Validate() (domain.ValidationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.SessionStateReady {
		return domain.ValidationResult{}, domain.ErrSessionNotReady
	}
	return fields.Validate(s.data, s.form.AllFields()), nil
}

// Close persists any unsaved changes and marks the session closed. When the
// flush fails the session stays open and dirty with autosave rescheduled, so
// the document is never dropped while the store is down.
func (s *Session) Close(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.autosave.Cancel()
	flush := s.dirty && s.state == domain.SessionStateReady && !s.collection.IsCompleted()
	c, version := s.snapshotForWrite()
	s.mu.Unlock()

	if !flush {
		return nil
	}
	if err := s.write(ctx, c, version); err != nil {
		s.mu.Lock()
		s.closed = false
		s.autosave.Schedule()
		s.mu.Unlock()

		s.logger.Error("failed to flush collection on close, keeping session open", "error", err)
		s.notify(ctx, domain.NotificationError, "Unsaved changes could not be saved; they are kept and will be retried")
		return fmt.Errorf("%w: flush on close: %w", domain.ErrServiceUnavailable, err)
	}
	return nil
}

// Discard closes the session without saving and reports whether unsaved
// changes were dropped
func (s *Session) Discard() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.autosave.Cancel()
	return s.dirty
}

// Closed reports whether Close was called
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Snapshot returns a copy of the session state
func (s *Session) Snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() domain.SessionSnapshot {
	snap := domain.SessionSnapshot{
		SubjectID:    s.subjectID,
		CollectionID: s.collection.ID,
		State:        s.state,
		Status:       s.collection.Status,
		Data:         docpath.Clone(s.data),
		Dirty:        s.dirty,
	}
	if !s.lastSavedAt.IsZero() {
		t := s.lastSavedAt
		snap.LastSavedAt = &t
	}
	if !s.lastEditAt.IsZero() {
		t := s.lastEditAt
		snap.LastEditAt = &t
	}
	return snap
}

// View evaluates the form against the current document
func (s *Session) View() (fields.FormView, domain.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fields.FormView{}, domain.SessionSnapshot{}, domain.ErrSessionClosed
	}
	if s.state != domain.SessionStateReady {
		return fields.FormView{}, domain.SessionSnapshot{}, domain.ErrSessionNotReady
	}
	s.touchedAt = s.clock.Now()
	return s.renderer.EvaluateForm(s.form, s.data), s.snapshotLocked(), nil
}

// IdleSince returns the time of the last operation on the session
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touchedAt
}

// AutosavePending reports whether an autosave is scheduled
func (s *Session) AutosavePending() bool {
	return s.autosave.Pending()
}

func (s *Session) notify(ctx context.Context, kind domain.NotificationKind, message string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, domain.NewNotification(kind, s.subjectID, message))
}
