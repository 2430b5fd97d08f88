package uploadlogs

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMock(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGCreateWithEmptyClassification(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO upload_logs")).
		WithArgs(sqlmock.AnyArg(), "doc-1", "a.pdf", "user-1", "acc-1", nil, nil, nil, nil, "pending", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	log, err := repo.Create(context.Background(), Log{DocumentID: "doc-1", FileName: "a.pdf", UserID: "user-1", AccountID: "acc-1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if log.ID == "" || log.Status != StatusPending || log.CreatedAt.IsZero() {
		t.Fatalf("expected defaults to be filled, got %+v", log)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGCreateFailedWithReason(t *testing.T) {
	repo, mock := newMock(t)
	reason := "object not found"
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO upload_logs")).
		WithArgs("log-1", "doc-1", "a.pdf", nil, nil, nil, nil, nil, nil, "failed", reason, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if _, err := repo.Create(context.Background(), Log{ID: "log-1", DocumentID: "doc-1", FileName: "a.pdf", Status: StatusFailed, ErrorMessage: &reason}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGMarkFailedNotFound(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE upload_logs")).
		WithArgs("missing", "No matching folder found").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.MarkFailed(context.Background(), "missing", "No matching folder found"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGMarkCompleted(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("SET status = 'completed'")).
		WithArgs("log-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.MarkCompleted(context.Background(), "log-1"); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
}

func TestPGAbandonPending(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("WHERE document_id = $1 AND status = 'pending'")).
		WithArgs("doc-1", "attempt abandoned").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.AbandonPending(context.Background(), "doc-1", "attempt abandoned")
	if err != nil || n != 2 {
		t.Fatalf("expected 2 abandoned, got %d %v", n, err)
	}
}

func TestPGListByDocument(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "document_id", "filename", "user_id", "account_id", "suggested_path", "category", "confidence", "reasoning", "status", "error_message", "created_at", "updated_at"}).
		AddRow("log-2", "doc-1", "a.pdf", "u", "acc", "2024/05 - Payroll/941s", "payroll", 0.9, "Form 941", "completed", nil, now, now).
		AddRow("log-1", "doc-1", "a.pdf", "u", "acc", nil, nil, nil, nil, "failed", "No matching folder found", now.Add(-time.Hour), now.Add(-time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta("FROM upload_logs")).WithArgs("doc-1").WillReturnRows(rows)

	logs, err := repo.ListByDocument(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("ListByDocument: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 logs, got %d", len(logs))
	}
	if logs[0].SuggestedPath == nil || *logs[0].SuggestedPath != "2024/05 - Payroll/941s" || logs[0].Confidence == nil || *logs[0].Confidence != 0.9 {
		t.Fatalf("unexpected first log %+v", logs[0])
	}
	if logs[1].SuggestedPath != nil || logs[1].ErrorMessage == nil || *logs[1].ErrorMessage != "No matching folder found" {
		t.Fatalf("unexpected second log %+v", logs[1])
	}
}
