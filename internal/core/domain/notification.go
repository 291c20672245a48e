package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationKind is the severity of a user-facing notification
type NotificationKind string

const (
	NotificationSuccess NotificationKind = "success"
	NotificationError   NotificationKind = "error"
)

// Notification is a transient toast shown to the editor of a collection
type Notification struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"kind"`
	SubjectID string           `json:"subject_id"`
	Message   string           `json:"message"`
	CreatedAt time.Time        `json:"created_at"`
}

// NewNotification creates a notification stamped with the current time
func NewNotification(kind NotificationKind, subjectID, message string) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		SubjectID: subjectID,
		Message:   message,
		CreatedAt: time.Now(),
	}
}
