package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/finplan-core/internal/core/domain"
)

// MockFormSource serves a fixed form schema
type MockFormSource struct {
	mu    sync.Mutex
	form  *domain.FormSchema
	loads int

	// LoadFn overrides Load when set
	LoadFn func() (*domain.FormSchema, error)
}

// NewMockFormSource creates a MockFormSource returning form
func NewMockFormSource(form *domain.FormSchema) *MockFormSource {
	return &MockFormSource{form: form}
}

func (m *MockFormSource) Load(ctx context.Context) (*domain.FormSchema, error) {
	m.mu.Lock()
	m.loads++
	form := m.form
	m.mu.Unlock()

	if m.LoadFn != nil {
		return m.LoadFn()
	}
	if form == nil {
		return nil, domain.ErrNotFound
	}
	return form, nil
}

// SetForm replaces the served schema
func (m *MockFormSource) SetForm(form *domain.FormSchema) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.form = form
}

// Loads returns how many times Load was called
func (m *MockFormSource) Loads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}
