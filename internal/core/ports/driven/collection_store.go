package driven

import (
	"context"

	"github.com/custodia-labs/finplan-core/internal/core/domain"
)

// CollectionStore handles collection persistence (PostgreSQL)
type CollectionStore interface {
	// GetBySubject retrieves the collection of a subject.
	// Returns domain.ErrNotFound when the subject has none yet.
	GetBySubject(ctx context.Context, subjectID string) (*domain.Collection, error)

	// Create creates an empty draft collection for a subject.
	// Returns domain.ErrAlreadyExists if the subject already has one.
	Create(ctx context.Context, subjectID string) (*domain.Collection, error)

	// Update overwrites data and status of an existing collection.
	// UpdatedAt and CompletedAt are set by the store.
	Update(ctx context.Context, collection *domain.Collection) error
}
