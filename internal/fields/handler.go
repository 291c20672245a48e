// Package fields evaluates form fields against a collection document.
//
// Every field type has a Handler that knows how to read the current value
// from the document and how to coerce an edit into the stored representation.
// The Renderer combines handlers with visibility rules, list layouts and
// computed sums to produce FieldViews and to write edits back through docpath.
package fields

import (
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/finplan-core/internal/core/domain"
)

// Handler implements the behaviour of one field type
type Handler interface {
	// Type returns the field type handled
	Type() domain.FieldType

	// Read returns the current value of field in doc, normalised for display.
	// Missing or mistyped values degrade to the type's empty value.
	Read(field *domain.FieldSchema, doc map[string]any) any

	// Coerce converts an edit into the value stored in the document
	Coerce(field *domain.FieldSchema, input any) (any, error)
}

// Registry maps field types to handlers
type Registry struct {
	mu       sync.RWMutex
	handlers map[domain.FieldType]Handler
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[domain.FieldType]Handler),
	}
}

// Register adds or replaces the handler for its type
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[h.Type()] = h
}

// Get returns the handler for a field type, or nil if none is registered
func (r *Registry) Get(t domain.FieldType) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.handlers[t]
}

// Types returns the registered field types, sorted
func (r *Registry) Types() []domain.FieldType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]domain.FieldType, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// DefaultRegistry returns a registry with a handler for every field type
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&textHandler{fieldType: domain.FieldTypeText})
	r.Register(&textHandler{fieldType: domain.FieldTypeTextarea})
	r.Register(&textHandler{fieldType: domain.FieldTypeDate})
	r.Register(&numberHandler{fieldType: domain.FieldTypeNumber})
	r.Register(&numberHandler{fieldType: domain.FieldTypeCurrency})
	r.Register(&booleanHandler{})
	r.Register(&selectHandler{})
	r.Register(&searchableSelectHandler{})
	r.Register(&multiSelectHandler{})
	r.Register(&listHandler{})
	r.Register(&computedHandler{})
	return r
}

func invalid(field *domain.FieldSchema, format string, args ...any) error {
	return fmt.Errorf("%w: field %q: %s", domain.ErrInvalidInput, field.Key, fmt.Sprintf(format, args...))
}
