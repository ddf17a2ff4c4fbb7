package repository

import (
	"context"
	"time"

	"github.com/vibast-solutions/ms-go-skywatch/app/entity"
)

type UsageRepository struct {
	db DBTX
}

func NewUsageRepository(db DBTX) *UsageRepository {
	return &UsageRepository{db: db}
}

func (r *UsageRepository) Create(ctx context.Context, usage *entity.Usage) error {
	query := `
		INSERT INTO usage_records (
			api_key_id, endpoint, method, response_status, response_time_ms, user_agent, ip_address, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		usage.APIKeyID,
		usage.Endpoint,
		usage.Method,
		usage.ResponseStatus,
		usage.ResponseTimeMS,
		usage.UserAgent,
		usage.IPAddress,
		usage.Timestamp,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	usage.ID = uint64(id)
	return nil
}

func (r *UsageRepository) CountByAPIKey(ctx context.Context, apiKeyID uint64) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM usage_records WHERE api_key_id = ?`, apiKeyID).Scan(&count)
	return count, err
}

func (r *UsageRepository) CountByAPIKeySince(ctx context.Context, apiKeyID uint64, since time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM usage_records WHERE api_key_id = ? AND timestamp >= ?`, apiKeyID, since).Scan(&count)
	return count, err
}

func (r *UsageRepository) TopEndpoints(ctx context.Context, apiKeyID uint64, limit int) ([]entity.EndpointCount, error) {
	query := `
		SELECT endpoint, COUNT(*) AS hits
		FROM usage_records
		WHERE api_key_id = ?
		GROUP BY endpoint
		ORDER BY hits DESC, endpoint ASC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, apiKeyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make([]entity.EndpointCount, 0)
	for rows.Next() {
		var c entity.EndpointCount
		if err := rows.Scan(&c.Endpoint, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}

func (r *UsageRepository) ListRecent(ctx context.Context, apiKeyID uint64, limit int) ([]*entity.Usage, error) {
	query := `
		SELECT id, api_key_id, endpoint, method, response_status, response_time_ms, user_agent, ip_address, timestamp
		FROM usage_records
		WHERE api_key_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, apiKeyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*entity.Usage, 0)
	for rows.Next() {
		u := &entity.Usage{}
		if err := rows.Scan(
			&u.ID,
			&u.APIKeyID,
			&u.Endpoint,
			&u.Method,
			&u.ResponseStatus,
			&u.ResponseTimeMS,
			&u.UserAgent,
			&u.IPAddress,
			&u.Timestamp,
		); err != nil {
			return nil, err
		}
		records = append(records, u)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}
