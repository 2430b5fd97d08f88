package documents

import (
	"context"
	"time"
)

// DocumentsRepo defines persistence operations for documents.
type DocumentsRepo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, userID, documentID string) (Document, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Document, error)
	SetEnabled(ctx context.Context, userID, documentID string, enabled bool) (Document, error)
	// Retry moves a failed document back to pending.
	Retry(ctx context.Context, userID, documentID string) (Document, error)

	// ClaimPending marks up to limit claimable documents as processing and
	// returns them oldest first. Processing rows claimed before staleBefore
	// are claimable again.
	ClaimPending(ctx context.Context, limit int, staleBefore time.Time) ([]Claim, error)
	// Release hands a claimed document back to pending without a verdict.
	Release(ctx context.Context, documentID string) error
	MarkCompleted(ctx context.Context, documentID string, metadata Metadata) error
	MarkFailed(ctx context.Context, documentID string) error
}
