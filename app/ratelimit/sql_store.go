package ratelimit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLStore keeps the sliding window in MySQL so every gateway instance
// shares one window per identifier. Hits for an identifier are serialised
// by locking its rate_limit_buckets row for the duration of the check.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Hit(ctx context.Context, identifier string, limit int, window time.Duration, now time.Time) (count int, allowed bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("begin rate limit tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT IGNORE INTO rate_limit_buckets (identifier) VALUES (?)`, identifier); err != nil {
		return 0, false, fmt.Errorf("ensure rate limit bucket: %w", err)
	}

	var locked string
	if err = tx.QueryRowContext(ctx,
		`SELECT identifier FROM rate_limit_buckets WHERE identifier = ? FOR UPDATE`, identifier).Scan(&locked); err != nil {
		return 0, false, fmt.Errorf("lock rate limit bucket: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM rate_limit_hits WHERE identifier = ? AND hit_at < ?`, identifier, now.Add(-window).UTC()); err != nil {
		return 0, false, fmt.Errorf("prune rate limit hits: %w", err)
	}

	if err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rate_limit_hits WHERE identifier = ?`, identifier).Scan(&count); err != nil {
		return 0, false, fmt.Errorf("count rate limit hits: %w", err)
	}

	if count < limit {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO rate_limit_hits (identifier, hit_at) VALUES (?, ?)`, identifier, now.UTC()); err != nil {
			return 0, false, fmt.Errorf("record rate limit hit: %w", err)
		}
		count++
		allowed = true
	}

	if err = tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("commit rate limit tx: %w", err)
	}
	return count, allowed, nil
}

func (s *SQLStore) Reset(ctx context.Context, identifier string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM rate_limit_hits WHERE identifier = ?`, identifier)
	return err
}

// Sweep deletes expired hits and the buckets left without any hit.
func (s *SQLStore) Sweep(ctx context.Context, before time.Time) (int, error) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM rate_limit_hits WHERE hit_at < ?`, before.UTC()); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM rate_limit_buckets
		WHERE NOT EXISTS (
			SELECT 1 FROM rate_limit_hits h WHERE h.identifier = rate_limit_buckets.identifier
		)`)
	if err != nil {
		return 0, err
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(removed), nil
}

// Close is a no-op: the *sql.DB belongs to the caller.
func (s *SQLStore) Close() error {
	return nil
}
