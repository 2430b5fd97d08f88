package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestInTxCommitsOnSuccess(t *testing.T) {
	database, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer database.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE documents").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = InTx(context.Background(), database, nil, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(context.Background(), "UPDATE documents SET enabled = TRUE")
		return err
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	database, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer database.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = InTx(context.Background(), database, nil, func(tx *sql.Tx) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestHealthyNilDatabase(t *testing.T) {
	if err := Healthy(context.Background(), nil); err != nil {
		t.Fatalf("expected nil database to be healthy, got %v", err)
	}
}
