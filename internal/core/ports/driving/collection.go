package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/finplan-core/internal/core/domain"
	"github.com/custodia-labs/finplan-core/internal/fields"
)

// CollectionView is the evaluated form of an open collection together with its session state
type CollectionView struct {
	Session domain.SessionSnapshot `json:"session"`
	Form    fields.FormView        `json:"form"`
}

// CollectionService manages the editing sessions of subject collections.
// One session per subject may be open across all instances.
type CollectionService interface {
	FormService

	// Open loads (or creates) the subject's collection and starts an editing session.
	// Opening a subject already open on this instance returns the existing session.
	// Returns domain.ErrSessionLocked if another instance holds the subject.
	Open(ctx context.Context, subjectID string) (domain.SessionSnapshot, error)

	// Get returns the state of an open session
	Get(ctx context.Context, subjectID string) (domain.SessionSnapshot, error)

	// View evaluates the form against the session's document
	View(ctx context.Context, subjectID string) (*CollectionView, error)

	// SetField coerces and writes one field by key
	SetField(ctx context.Context, subjectID, key string, value any) error

	// Edit writes a raw value at a data path
	Edit(ctx context.Context, subjectID, path string, value any) error

	// AppendItem adds an empty item to a list field
	AppendItem(ctx context.Context, subjectID, key string) error

	// RemoveItem deletes one item of a list field
	RemoveItem(ctx context.Context, subjectID, key string, index int) error

	// SetItemField edits one key of one item of a list field
	SetItemField(ctx context.Context, subjectID, key string, index int, itemKey string, value any) error

	// AddOption selects an item of a multi-select field
	AddOption(ctx context.Context, subjectID, key, item string) error

	// RemoveOption deselects an item of a multi-select field
	RemoveOption(ctx context.Context, subjectID, key, item string) error

	// SaveDraft persists the document immediately
	SaveDraft(ctx context.Context, subjectID string) error

	// Finalize completes the collection when every required field is filled.
	// A refusal is reported through the result, not as an error.
	Finalize(ctx context.Context, subjectID string) (domain.FinalizeResult, error)

	// Close flushes unsaved changes and ends the session. If the flush fails the
	// session stays open and keeps its editor lease.
	Close(ctx context.Context, subjectID string) error

	// CloseIdle closes sessions untouched for longer than maxIdle and returns how many were closed
	CloseIdle(ctx context.Context, maxIdle time.Duration) int

	// RefreshLeases extends the editor lease of every open session
	RefreshLeases(ctx context.Context)

	// CloseAll closes every open session, discarding those that cannot be flushed
	CloseAll(ctx context.Context) error
}

// FormService exposes the active form schema
type FormService interface {
	// Form returns the schema new sessions are opened with
	Form(ctx context.Context) (*domain.FormSchema, error)
}
