package ratelimit

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func expectLockedBucket(mock sqlmock.Sqlmock, identifier string, now time.Time, count int) {
	mock.ExpectBegin()
	mock.ExpectExec(`(?s)INSERT IGNORE INTO rate_limit_buckets`).
		WithArgs(identifier).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`(?s)SELECT identifier FROM rate_limit_buckets WHERE identifier = \? FOR UPDATE`).
		WithArgs(identifier).
		WillReturnRows(sqlmock.NewRows([]string{"identifier"}).AddRow(identifier))
	mock.ExpectExec(`(?s)DELETE FROM rate_limit_hits WHERE identifier = \? AND hit_at < \?`).
		WithArgs(identifier, now.Add(-time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`(?s)SELECT COUNT\(\*\) FROM rate_limit_hits`).
		WithArgs(identifier).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(count))
}

func TestSQLStoreHitAllowed(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewSQLStore(db)
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	expectLockedBucket(mock, "42", now, 3)
	mock.ExpectExec(`(?s)INSERT INTO rate_limit_hits`).
		WithArgs("42", now).
		WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectCommit()

	count, allowed, err := store.Hit(context.Background(), "42", 60, time.Hour, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed || count != 4 {
		t.Fatalf("expected allowed with count 4, got allowed=%v count=%d", allowed, count)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLStoreHitAtLimitRejects(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewSQLStore(db)
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	expectLockedBucket(mock, "42", now, 60)
	mock.ExpectCommit()

	count, allowed, err := store.Hit(context.Background(), "42", 60, time.Hour, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed || count != 60 {
		t.Fatalf("expected rejection at limit, got allowed=%v count=%d", allowed, count)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLStoreHitRollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewSQLStore(db)
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)INSERT IGNORE INTO rate_limit_buckets`).
		WithArgs("42").
		WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	if _, _, err := store.Hit(context.Background(), "42", 60, time.Hour, now); err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLStoreSweep(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewSQLStore(db)
	before := time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC)

	mock.ExpectExec(`(?s)DELETE FROM rate_limit_hits WHERE hit_at < \?`).
		WithArgs(before).
		WillReturnResult(sqlmock.NewResult(0, 12))
	mock.ExpectExec(`(?s)DELETE FROM rate_limit_buckets.*NOT EXISTS`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	removed, err := store.Sweep(context.Background(), before)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 buckets removed, got %d", removed)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLStoreReset(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewSQLStore(db)

	mock.ExpectExec(`(?s)DELETE FROM rate_limit_hits WHERE identifier = \?`).
		WithArgs("42").
		WillReturnResult(sqlmock.NewResult(0, 5))

	if err := store.Reset(context.Background(), "42"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
