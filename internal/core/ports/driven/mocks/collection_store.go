package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/finplan-core/internal/core/domain"
	"github.com/custodia-labs/finplan-core/internal/docpath"
)

// MockCollectionStore is an in-memory CollectionStore for testing.
// Stored collections are deep copies, so later edits by the caller never leak in.
type MockCollectionStore struct {
	mu          sync.Mutex
	collections map[string]*domain.Collection
	updates     []*domain.Collection

	// Custom behavior hooks (optional)
	GetFn    func(subjectID string) (*domain.Collection, error)
	CreateFn func(subjectID string) (*domain.Collection, error)
	UpdateFn func(c *domain.Collection) error
}

// NewMockCollectionStore creates a new MockCollectionStore
func NewMockCollectionStore() *MockCollectionStore {
	return &MockCollectionStore{
		collections: make(map[string]*domain.Collection),
	}
}

func (m *MockCollectionStore) GetBySubject(ctx context.Context, subjectID string) (*domain.Collection, error) {
	if m.GetFn != nil {
		return m.GetFn(subjectID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[subjectID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyCollection(c), nil
}

func (m *MockCollectionStore) Create(ctx context.Context, subjectID string) (*domain.Collection, error) {
	if m.CreateFn != nil {
		return m.CreateFn(subjectID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[subjectID]; ok {
		return nil, domain.ErrAlreadyExists
	}
	c := domain.NewCollection(subjectID)
	m.collections[subjectID] = c
	return copyCollection(c), nil
}

func (m *MockCollectionStore) Update(ctx context.Context, c *domain.Collection) error {
	if m.UpdateFn != nil {
		if err := m.UpdateFn(c); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.collections[c.SubjectID]
	if !ok {
		return domain.ErrNotFound
	}
	stored := copyCollection(c)
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = time.Now()
	if stored.Status == domain.CollectionStatusCompleted && stored.CompletedAt == nil {
		now := stored.UpdatedAt
		stored.CompletedAt = &now
	}
	m.collections[c.SubjectID] = stored
	m.updates = append(m.updates, copyCollection(stored))
	return nil
}

// Put seeds a collection (for test setup)
func (m *MockCollectionStore) Put(c *domain.Collection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[c.SubjectID] = copyCollection(c)
}

// Updates returns every successful Update in order (for test assertions)
func (m *MockCollectionStore) Updates() []*domain.Collection {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Collection, len(m.updates))
	copy(out, m.updates)
	return out
}

// UpdateCount returns the number of successful updates
func (m *MockCollectionStore) UpdateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.updates)
}

func copyCollection(c *domain.Collection) *domain.Collection {
	out := *c
	out.Data = docpath.Clone(c.Data)
	if c.CompletedAt != nil {
		t := *c.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}
