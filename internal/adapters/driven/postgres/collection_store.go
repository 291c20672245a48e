package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/custodia-labs/finplan-core/internal/core/domain"
	"github.com/custodia-labs/finplan-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.CollectionStore = (*CollectionStore)(nil)

// uniqueViolation is the PostgreSQL error code for unique_violation
const uniqueViolation = "23505"

// CollectionStore implements driven.CollectionStore using PostgreSQL.
// The document is stored as JSONB and overwritten in full on every update.
type CollectionStore struct {
	db *DB
}

// NewCollectionStore creates a new CollectionStore
func NewCollectionStore(db *DB) *CollectionStore {
	return &CollectionStore{db: db}
}

// GetBySubject retrieves the collection of a subject
func (s *CollectionStore) GetBySubject(ctx context.Context, subjectID string) (*domain.Collection, error) {
	query := `
		SELECT id, subject_id, status, data, created_at, updated_at, completed_at
		FROM collections
		WHERE subject_id = $1
	`

	var c domain.Collection
	var data []byte
	var completedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, query, subjectID).Scan(
		&c.ID,
		&c.SubjectID,
		&c.Status,
		&data,
		&c.CreatedAt,
		&c.UpdatedAt,
		&completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	c.Data, err = decodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("collection %s: %w", c.ID, err)
	}
	c.CompletedAt = TimePtr(completedAt)
	return &c, nil
}

// Create inserts an empty draft for a subject
func (s *CollectionStore) Create(ctx context.Context, subjectID string) (*domain.Collection, error) {
	c := domain.NewCollection(subjectID)

	query := `
		INSERT INTO collections (id, subject_id, status, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		c.ID,
		c.SubjectID,
		string(c.Status),
		[]byte("{}"),
		c.CreatedAt,
		c.UpdatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return nil, domain.ErrAlreadyExists
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Update overwrites data and status. completed_at is set once, on the first
// write with status completed.
func (s *CollectionStore) Update(ctx context.Context, c *domain.Collection) error {
	data, err := json.Marshal(nonNilDocument(c.Data))
	if err != nil {
		return fmt.Errorf("%w: encode document: %v", domain.ErrInvalidInput, err)
	}

	now := time.Now()
	query := `
		UPDATE collections
		SET data = $2,
		    status = $3,
		    updated_at = $4,
		    completed_at = CASE
		        WHEN $3 = 'completed' THEN COALESCE(completed_at, $4)
		        ELSE completed_at
		    END
		WHERE subject_id = $1
	`
	result, err := s.db.ExecContext(ctx, query, c.SubjectID, data, string(c.Status), now)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func decodeDocument(data []byte) (map[string]any, error) {
	doc := map[string]any{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

func nonNilDocument(doc map[string]any) map[string]any {
	if doc == nil {
		return map[string]any{}
	}
	return doc
}
