// Package uploadlogs records one audit row per filing attempt.
package uploadlogs

import (
	"context"
	"time"
)

// Status of one attempt.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Log is the audit row of one processing attempt for one document.
// Classification fields are nil when the classifier produced nothing.
type Log struct {
	ID            string
	DocumentID    string
	FileName      string
	UserID        string
	AccountID     string
	SuggestedPath *string
	Category      *string
	Confidence    *float64
	Reasoning     *string
	Status        Status
	ErrorMessage  *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Repo persists upload logs. Rows are never deleted.
type Repo interface {
	Create(ctx context.Context, log Log) (Log, error)
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, reason string) error
	// AbandonPending fails every pending log of documentID with reason.
	AbandonPending(ctx context.Context, documentID, reason string) (int64, error)
	ListByDocument(ctx context.Context, documentID string) ([]Log, error)
}
