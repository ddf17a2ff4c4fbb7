package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/vibast-solutions/ms-go-skywatch/app/entity"
)

const apiKeyColumns = `id, user_id, key_hash, key_prefix, name, tier, quota_limit, quota_used,
		       quota_reset_date, is_active, created_at, last_used`

type APIKeyRepository struct {
	db DBTX
}

func NewAPIKeyRepository(db DBTX) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

func (r *APIKeyRepository) Create(ctx context.Context, key *entity.APIKey) error {
	query := `
		INSERT INTO api_keys (
			user_id, key_hash, key_prefix, name, tier, quota_limit, quota_used, quota_reset_date, is_active, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		key.UserID,
		key.KeyHash,
		key.KeyPrefix,
		key.Name,
		key.Tier,
		key.QuotaLimit,
		key.QuotaUsed,
		key.QuotaResetDate,
		key.IsActive,
		key.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	key.ID = uint64(id)
	return nil
}

// FindByPrefix returns every key sharing the non-secret prefix, inactive ones
// included, active keys first.
func (r *APIKeyRepository) FindByPrefix(ctx context.Context, prefix string) ([]*entity.APIKey, error) {
	query := `
		SELECT ` + apiKeyColumns + `
		FROM api_keys
		WHERE key_prefix = ?
		ORDER BY is_active DESC, id DESC
	`
	return r.findMany(ctx, query, prefix)
}

func (r *APIKeyRepository) FindByID(ctx context.Context, id uint64) (*entity.APIKey, error) {
	query := `
		SELECT ` + apiKeyColumns + `
		FROM api_keys
		WHERE id = ?
	`
	return r.findOne(ctx, query, id)
}

func (r *APIKeyRepository) FindActiveByIDForUser(ctx context.Context, id, userID uint64) (*entity.APIKey, error) {
	query := `
		SELECT ` + apiKeyColumns + `
		FROM api_keys
		WHERE id = ? AND user_id = ? AND is_active = 1
	`
	return r.findOne(ctx, query, id, userID)
}

func (r *APIKeyRepository) ListActiveByUser(ctx context.Context, userID uint64) ([]*entity.APIKey, error) {
	query := `
		SELECT ` + apiKeyColumns + `
		FROM api_keys
		WHERE user_id = ? AND is_active = 1
		ORDER BY created_at DESC, id DESC
	`
	return r.findMany(ctx, query, userID)
}

func (r *APIKeyRepository) ListByUser(ctx context.Context, userID uint64) ([]*entity.APIKey, error) {
	query := `
		SELECT ` + apiKeyColumns + `
		FROM api_keys
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`
	return r.findMany(ctx, query, userID)
}

func (r *APIKeyRepository) CountActiveByUser(ctx context.Context, userID uint64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM api_keys WHERE user_id = ? AND is_active = 1`, userID).Scan(&count)
	return count, err
}

// UpdateSecret swaps the stored hash for a regenerated key and clears last_used.
func (r *APIKeyRepository) UpdateSecret(ctx context.Context, id uint64, keyHash, keyPrefix string) error {
	query := `
		UPDATE api_keys SET
			key_hash = ?,
			key_prefix = ?,
			last_used = NULL
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query, keyHash, keyPrefix, id)
	return err
}

func (r *APIKeyRepository) Deactivate(ctx context.Context, id uint64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `UPDATE api_keys SET is_active = 0 WHERE id = ? AND is_active = 1`, id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *APIKeyRepository) UpdateTier(ctx context.Context, id uint64, tier string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE api_keys SET tier = ? WHERE id = ?`, tier, id)
	return err
}

func (r *APIKeyRepository) UpdateTierAndQuota(ctx context.Context, id uint64, tier string, quotaLimit int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE api_keys SET tier = ?, quota_limit = ? WHERE id = ?`, tier, quotaLimit, id)
	return err
}

// ResetQuota starts a new quota period if the stored boundary has passed.
// It reports false when another request already reset the period.
func (r *APIKeyRepository) ResetQuota(ctx context.Context, id uint64, nextReset, now time.Time) (bool, error) {
	query := `
		UPDATE api_keys SET
			quota_used = 0,
			quota_reset_date = ?
		WHERE id = ? AND quota_reset_date <= ?
	`
	result, err := r.db.ExecContext(ctx, query, nextReset, id, now)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *APIKeyRepository) IncrementQuota(ctx context.Context, id uint64, usedAt time.Time) error {
	query := `
		UPDATE api_keys SET
			quota_used = quota_used + 1,
			last_used = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query, usedAt, id)
	return err
}

func (r *APIKeyRepository) findOne(ctx context.Context, query string, args ...interface{}) (*entity.APIKey, error) {
	row := r.db.QueryRowContext(ctx, query, args...)
	key, err := scanAPIKey(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return key, nil
}

func (r *APIKeyRepository) findMany(ctx context.Context, query string, args ...interface{}) ([]*entity.APIKey, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make([]*entity.APIKey, 0)
	for rows.Next() {
		key, err := scanAPIKey(rows.Scan)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return keys, nil
}

func scanAPIKey(scan rowScanner) (*entity.APIKey, error) {
	key := &entity.APIKey{}
	if err := scan(
		&key.ID,
		&key.UserID,
		&key.KeyHash,
		&key.KeyPrefix,
		&key.Name,
		&key.Tier,
		&key.QuotaLimit,
		&key.QuotaUsed,
		&key.QuotaResetDate,
		&key.IsActive,
		&key.CreatedAt,
		&key.LastUsed,
	); err != nil {
		return nil, err
	}
	return key, nil
}
