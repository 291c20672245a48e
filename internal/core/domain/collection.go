package domain

import (
	"time"

	"github.com/google/uuid"
)

// CollectionStatus is the lifecycle status of a persisted collection document
type CollectionStatus string

const (
	CollectionStatusDraft     CollectionStatus = "draft"
	CollectionStatusCompleted CollectionStatus = "completed"
)

// Collection is the financial-intake document of one subject (usually a contact).
// Data is a semi-structured tree addressed by dot-delimited data paths.
type Collection struct {
	ID          string           `json:"id"`
	SubjectID   string           `json:"subject_id"`
	Status      CollectionStatus `json:"status"`
	Data        map[string]any   `json:"data"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// NewCollection creates an empty draft bound to subjectID
func NewCollection(subjectID string) *Collection {
	now := time.Now()
	return &Collection{
		ID:        uuid.NewString(),
		SubjectID: subjectID,
		Status:    CollectionStatusDraft,
		Data:      map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsCompleted reports whether the collection was finalized
func (c *Collection) IsCompleted() bool {
	return c.Status == CollectionStatusCompleted
}

// SessionState is the loading state of a collection session
type SessionState string

const (
	SessionStateUninitialized SessionState = "uninitialized"
	SessionStateLoading       SessionState = "loading"
	SessionStateReady         SessionState = "ready"
)

// SessionSnapshot is a point-in-time copy of a collection session
type SessionSnapshot struct {
	SubjectID    string           `json:"subject_id"`
	CollectionID string           `json:"collection_id"`
	State        SessionState     `json:"state"`
	Status       CollectionStatus `json:"status"`
	Data         map[string]any   `json:"data"`
	Dirty        bool             `json:"dirty"`
	LastSavedAt  *time.Time       `json:"last_saved_at,omitempty"`
	LastEditAt   *time.Time       `json:"last_edit_at,omitempty"`
}

// ValidationResult reports how many required fields are filled
type ValidationResult struct {
	IsValid                 bool     `json:"is_valid"`
	TotalRequiredFields     int      `json:"total_required_fields"`
	CompletedRequiredFields int      `json:"completed_required_fields"`
	MissingFields           []string `json:"missing_fields,omitempty"`
}

// CompletionRatio returns completed/total, or 1 when nothing is required
func (r ValidationResult) CompletionRatio() float64 {
	if r.TotalRequiredFields == 0 {
		return 1
	}
	return float64(r.CompletedRequiredFields) / float64(r.TotalRequiredFields)
}

// FinalizeResult is the outcome of a finalize attempt.
// A refused finalize is not an error: Finalized is false and Validation explains why.
type FinalizeResult struct {
	Finalized  bool             `json:"finalized"`
	Validation ValidationResult `json:"validation"`
}
