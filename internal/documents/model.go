package documents

import "time"

// Status is a document's position in the filing lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Document is an uploaded file waiting to be, or already, filed.
type Document struct {
	ID          string
	UserID      string
	FileName    string
	FileURL     string
	ContentType string
	SizeBytes   int64
	Metadata    *Metadata // nil when the row carries no metadata
	Status      Status
	Enabled     bool
	ClaimedAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// Claim is a document taken for processing. Reclaimed is set when the row was
// already processing under a stale claim. MetadataErr is set, and Metadata
// left nil, when the stored metadata object could not be decoded.
type Claim struct {
	Document
	Reclaimed   bool
	MetadataErr error
}
