package driven

import (
	"context"

	"github.com/custodia-labs/finplan-core/internal/core/domain"
)

// FormSource provides the form schema (YAML file, PostgreSQL, or a cache in front of either)
type FormSource interface {
	// Load returns the current form schema
	Load(ctx context.Context) (*domain.FormSchema, error)
}
