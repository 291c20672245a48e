// Package formfile serves the form schema from a YAML file and reloads it when
// the file changes on disk.
package formfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/finplan-core/internal/core/domain"
	"github.com/custodia-labs/finplan-core/internal/core/ports/driven"
	"github.com/custodia-labs/finplan-core/internal/formlint"
)

// Verify interface compliance
var _ driven.FormSource = (*Source)(nil)

// Parse decodes a YAML form schema. Unknown keys are rejected.
func Parse(data []byte) (*domain.FormSchema, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var form domain.FormSchema
	if err := dec.Decode(&form); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: form schema is empty", domain.ErrInvalidInput)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return &form, nil
}

// ReadFile reads, parses and lints the schema at path
func ReadFile(path string) (*domain.FormSchema, *formlint.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read form schema: %w", err)
	}
	form, err := Parse(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	result := formlint.Run(form)
	return form, result, nil
}

// Source implements FormSource over a YAML file.
// A schema that fails to parse or lint never replaces the last good one.
type Source struct {
	path     string
	logger   *slog.Logger
	debounce time.Duration

	mu       sync.RWMutex
	form     *domain.FormSchema
	loadedAt time.Time

	watchMu sync.Mutex
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// SourceConfig holds configuration for a file-backed form source
type SourceConfig struct {
	Path     string
	Logger   *slog.Logger
	Debounce time.Duration // Quiet period before a change is reloaded (default: 250ms)
}

// NewSource creates a Source. The file is read on the first Load.
func NewSource(cfg SourceConfig) *Source {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := cfg.Debounce
	if debounce == 0 {
		debounce = 250 * time.Millisecond
	}
	return &Source{path: cfg.Path, logger: logger, debounce: debounce}
}

// Load returns the current schema, reading the file if nothing is loaded yet
func (s *Source) Load(ctx context.Context) (*domain.FormSchema, error) {
	s.mu.RLock()
	form := s.form
	s.mu.RUnlock()
	if form != nil {
		return form, nil
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.form, nil
}

// Reload reads the file again. On failure the previous schema stays in place.
func (s *Source) Reload() error {
	form, result, err := ReadFile(s.path)
	if err != nil {
		return err
	}
	for _, issue := range result.Issues {
		if issue.Severity == formlint.SeverityWarning {
			s.logger.Warn("form schema warning", "path", s.path, "issue", issue.String())
		}
	}
	if err := result.Err(); err != nil {
		return fmt.Errorf("%s: %w", s.path, err)
	}

	s.mu.Lock()
	s.form = form
	s.loadedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("form schema loaded", "path", s.path, "version", form.Version, "sections", len(form.Sections))
	return nil
}

// LoadedAt returns when the current schema was read
func (s *Source) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// Watch reloads the schema whenever the file changes.
// The directory is watched so editors that replace the file by rename are seen.
func (s *Source) Watch(ctx context.Context) error {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch form schema: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch form schema: %w", err)
	}

	s.watcher = watcher
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.run(ctx, watcher, s.stopCh, s.doneCh)

	s.logger.Info("watching form schema", "path", s.path)
	return nil
}

// Stop ends Watch and waits for the loop to exit
func (s *Source) Stop() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watcher == nil {
		return
	}

	close(s.stopCh)
	<-s.doneCh
	if err := s.watcher.Close(); err != nil {
		s.logger.Error("failed to close form schema watcher", "error", err)
	}
	s.watcher = nil
}

func (s *Source) run(ctx context.Context, watcher *fsnotify.Watcher, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	target := filepath.Clean(s.path)
	timer := time.NewTimer(s.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(s.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error("form schema watcher error", "error", err)

		case <-timer.C:
			if err := s.Reload(); err != nil {
				s.logger.Error("form schema reload failed, keeping previous schema", "path", s.path, "error", err)
			}
		}
	}
}
