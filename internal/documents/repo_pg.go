package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"
)

// PGRepo implements DocumentsRepo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const documentColumns = `id, user_id, file_name, file_url, content_type, size_bytes, metadata, upload_status, enabled, claimed_at, created_at, updated_at, deleted_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner, extra ...any) (Document, error) {
	doc, metadata, err := scanDocumentRaw(row, extra...)
	if err != nil {
		return Document{}, err
	}
	meta, err := decodeMetadata(metadata)
	if err != nil {
		return Document{}, fmt.Errorf("document %s: %w", doc.ID, err)
	}
	doc.Metadata = meta
	return doc, nil
}

// scanDocumentRaw scans a row and returns the metadata column undecoded.
func scanDocumentRaw(row rowScanner, extra ...any) (Document, []byte, error) {
	var doc Document
	var contentType sql.NullString
	var metadata []byte
	var status string
	var claimedAt sql.NullTime
	var deletedAt sql.NullTime

	dest := []any{
		&doc.ID,
		&doc.UserID,
		&doc.FileName,
		&doc.FileURL,
		&contentType,
		&doc.SizeBytes,
		&metadata,
		&status,
		&doc.Enabled,
		&claimedAt,
		&doc.CreatedAt,
		&doc.UpdatedAt,
		&deletedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return Document{}, nil, err
	}

	if contentType.Valid {
		doc.ContentType = contentType.String
	}
	doc.Status = Status(status)
	if claimedAt.Valid {
		t := claimedAt.Time
		doc.ClaimedAt = &t
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		doc.DeletedAt = &t
	}
	return doc, metadata, nil
}

// Create inserts a new document.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (
    id,
    user_id,
    file_name,
    file_url,
    content_type,
    size_bytes,
    metadata,
    upload_status,
    enabled,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`

	metadata, err := encodeMetadata(doc.Metadata)
	if err != nil {
		return err
	}
	status := doc.Status
	if status == "" {
		status = StatusPending
	}
	var contentType sql.NullString
	if doc.ContentType != "" {
		contentType = sql.NullString{String: doc.ContentType, Valid: true}
	}

	_, err = r.DB.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.UserID,
		doc.FileName,
		doc.FileURL,
		contentType,
		doc.SizeBytes,
		metadata,
		string(status),
		doc.Enabled,
		doc.CreatedAt,
	)
	return err
}

// GetByID returns a document owned by userID.
func (r *PGRepo) GetByID(ctx context.Context, userID, documentID string) (Document, error) {
	query := `
SELECT ` + documentColumns + `
FROM documents
WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, documentID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

// ListByUser returns a user's documents, newest first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Document, error) {
	query := `
SELECT ` + documentColumns + `
FROM documents
WHERE user_id = $1 AND deleted_at IS NULL
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// SetEnabled toggles whether the pipeline may pick the document up.
func (r *PGRepo) SetEnabled(ctx context.Context, userID, documentID string, enabled bool) (Document, error) {
	query := `
UPDATE documents
SET enabled = $3, updated_at = now()
WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
RETURNING ` + documentColumns
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, documentID, userID, enabled))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

// Retry moves a failed document back to pending.
func (r *PGRepo) Retry(ctx context.Context, userID, documentID string) (Document, error) {
	query := `
UPDATE documents
SET upload_status = 'pending', claimed_at = NULL, updated_at = now()
WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL AND upload_status = 'failed'
RETURNING ` + documentColumns
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, documentID, userID))
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Document{}, err
	}
	if _, getErr := r.GetByID(ctx, userID, documentID); getErr != nil {
		return Document{}, getErr
	}
	return Document{}, ErrConflict
}

// ClaimPending implements DocumentsRepo. Rows locked by a concurrent claim
// are skipped rather than waited on. Rows queue by their last attempt, or by
// creation when never attempted, so released documents go behind newer work.
// A row whose metadata does not decode is still claimed, with MetadataErr set.
func (r *PGRepo) ClaimPending(ctx context.Context, limit int, staleBefore time.Time) ([]Claim, error) {
	if limit <= 0 {
		return nil, nil
	}
	const query = `
WITH candidates AS (
    SELECT id, upload_status AS previous_status, COALESCE(last_attempt_at, created_at) AS queued_at
    FROM documents
    WHERE enabled = TRUE
      AND deleted_at IS NULL
      AND jsonb_typeof(metadata) = 'object'
      AND (upload_status = 'pending' OR (upload_status = 'processing' AND claimed_at < $2))
    ORDER BY queued_at ASC, id ASC
    LIMIT $1
    FOR UPDATE SKIP LOCKED
)
UPDATE documents d
SET upload_status = 'processing', claimed_at = now(), last_attempt_at = now(), updated_at = now()
FROM candidates c
WHERE d.id = c.id
RETURNING d.id, d.user_id, d.file_name, d.file_url, d.content_type, d.size_bytes, d.metadata, d.upload_status, d.enabled, d.claimed_at, d.created_at, d.updated_at, d.deleted_at, c.previous_status, c.queued_at`

	rows, err := r.DB.QueryContext(ctx, query, limit, staleBefore)
	if err != nil {
		return nil, fmt.Errorf("claim pending documents: %w", err)
	}
	defer rows.Close()

	type queuedClaim struct {
		claim    Claim
		queuedAt time.Time
	}
	var queued []queuedClaim
	for rows.Next() {
		var previous string
		var queuedAt time.Time
		doc, metadata, err := scanDocumentRaw(rows, &previous, &queuedAt)
		if err != nil {
			return nil, fmt.Errorf("claim pending documents: %w", err)
		}
		claim := Claim{Document: doc, Reclaimed: Status(previous) == StatusProcessing}
		if meta, err := decodeMetadata(metadata); err != nil {
			claim.MetadataErr = fmt.Errorf("decode metadata: %w", err)
		} else {
			claim.Metadata = meta
		}
		queued = append(queued, queuedClaim{claim: claim, queuedAt: queuedAt})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim pending documents: %w", err)
	}
	// UPDATE ... RETURNING does not keep the CTE order.
	sort.SliceStable(queued, func(i, j int) bool {
		if queued[i].queuedAt.Equal(queued[j].queuedAt) {
			return queued[i].claim.ID < queued[j].claim.ID
		}
		return queued[i].queuedAt.Before(queued[j].queuedAt)
	})
	out := make([]Claim, 0, len(queued))
	for _, q := range queued {
		out = append(out, q.claim)
	}
	return out, nil
}

// Release implements DocumentsRepo.
func (r *PGRepo) Release(ctx context.Context, documentID string) error {
	const query = `
UPDATE documents
SET upload_status = 'pending', claimed_at = NULL, updated_at = now()
WHERE id = $1 AND upload_status = 'processing'`
	return r.execOne(ctx, query, documentID)
}

// MarkCompleted stores the merged metadata and completes the document.
func (r *PGRepo) MarkCompleted(ctx context.Context, documentID string, metadata Metadata) error {
	raw, err := encodeMetadata(&metadata)
	if err != nil {
		return err
	}
	const query = `
UPDATE documents
SET upload_status = 'completed', metadata = $2, claimed_at = NULL, updated_at = now()
WHERE id = $1`
	return r.execOne(ctx, query, documentID, raw)
}

// MarkFailed fails the document.
func (r *PGRepo) MarkFailed(ctx context.Context, documentID string) error {
	const query = `
UPDATE documents
SET upload_status = 'failed', claimed_at = NULL, updated_at = now()
WHERE id = $1`
	return r.execOne(ctx, query, documentID)
}

func (r *PGRepo) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

var _ DocumentsRepo = (*PGRepo)(nil)
