package uploadlogs

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts log, assigning an id and timestamps when missing.
func (r *PGRepo) Create(ctx context.Context, log Log) (Log, error) {
	log = withDefaults(log, time.Now().UTC())

	const query = `
INSERT INTO upload_logs (
    id,
    document_id,
    filename,
    user_id,
    account_id,
    suggested_path,
    category,
    confidence,
    reasoning,
    status,
    error_message,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)`

	_, err := r.DB.ExecContext(
		ctx,
		query,
		log.ID,
		log.DocumentID,
		log.FileName,
		nullString(log.UserID),
		nullString(log.AccountID),
		log.SuggestedPath,
		log.Category,
		log.Confidence,
		log.Reasoning,
		string(log.Status),
		log.ErrorMessage,
		log.CreatedAt,
	)
	if err != nil {
		return Log{}, fmt.Errorf("insert upload log: %w", err)
	}
	return log, nil
}

// MarkCompleted implements Repo.
func (r *PGRepo) MarkCompleted(ctx context.Context, id string) error {
	const query = `
UPDATE upload_logs
SET status = 'completed', error_message = NULL, updated_at = now()
WHERE id = $1`
	return r.execOne(ctx, query, id)
}

// MarkFailed implements Repo.
func (r *PGRepo) MarkFailed(ctx context.Context, id, reason string) error {
	const query = `
UPDATE upload_logs
SET status = 'failed', error_message = $2, updated_at = now()
WHERE id = $1`
	return r.execOne(ctx, query, id, reason)
}

// AbandonPending implements Repo.
func (r *PGRepo) AbandonPending(ctx context.Context, documentID, reason string) (int64, error) {
	const query = `
UPDATE upload_logs
SET status = 'failed', error_message = $2, updated_at = now()
WHERE document_id = $1 AND status = 'pending'`
	res, err := r.DB.ExecContext(ctx, query, documentID, reason)
	if err != nil {
		return 0, fmt.Errorf("abandon pending upload logs: %w", err)
	}
	return res.RowsAffected()
}

// ListByDocument returns a document's attempts, newest first.
func (r *PGRepo) ListByDocument(ctx context.Context, documentID string) ([]Log, error) {
	const query = `
SELECT id, document_id, filename, user_id, account_id, suggested_path, category, confidence, reasoning, status, error_message, created_at, updated_at
FROM upload_logs
WHERE document_id = $1
ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Log
	for rows.Next() {
		var l Log
		var userID, accountID, path, category, reasoning, errMsg sql.NullString
		var confidence sql.NullFloat64
		var status string
		if err := rows.Scan(
			&l.ID,
			&l.DocumentID,
			&l.FileName,
			&userID,
			&accountID,
			&path,
			&category,
			&confidence,
			&reasoning,
			&status,
			&errMsg,
			&l.CreatedAt,
			&l.UpdatedAt,
		); err != nil {
			return nil, err
		}
		l.UserID = userID.String
		l.AccountID = accountID.String
		l.SuggestedPath = stringPtr(path)
		l.Category = stringPtr(category)
		l.Reasoning = stringPtr(reasoning)
		l.ErrorMessage = stringPtr(errMsg)
		if confidence.Valid {
			v := confidence.Float64
			l.Confidence = &v
		}
		l.Status = Status(status)
		out = append(out, l)
	}
	return out, rows.Err()
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

func withDefaults(log Log, now time.Time) Log {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.Status == "" {
		log.Status = StatusPending
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = now
	}
	log.UpdatedAt = log.CreatedAt
	return log
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

var _ Repo = (*PGRepo)(nil)
