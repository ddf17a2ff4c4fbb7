// Package migrations holds the MySQL schema used by the service and
// applies it idempotently.
package migrations

import (
	"context"
	"fmt"

	"github.com/vibast-solutions/ms-go-skywatch/app/repository"

	"github.com/sirupsen/logrus"
)

const createUsersSQL = `
CREATE TABLE IF NOT EXISTS users (
    id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
    email VARCHAR(255) NOT NULL,
    name VARCHAR(100) NOT NULL,
    password_hash VARCHAR(255) NOT NULL,
    is_active TINYINT(1) NOT NULL DEFAULT 1,
    created_at DATETIME NOT NULL,
    PRIMARY KEY (id),
    UNIQUE KEY uq_users_email (email)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

const createAPIKeysSQL = `
CREATE TABLE IF NOT EXISTS api_keys (
    id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
    user_id BIGINT UNSIGNED NOT NULL,
    key_hash VARCHAR(255) NOT NULL,
    key_prefix VARCHAR(16) NOT NULL,
    name VARCHAR(100) NOT NULL,
    tier VARCHAR(20) NOT NULL DEFAULT 'free',
    quota_limit BIGINT NOT NULL,
    quota_used BIGINT NOT NULL DEFAULT 0,
    quota_reset_date DATETIME NOT NULL,
    is_active TINYINT(1) NOT NULL DEFAULT 1,
    created_at DATETIME NOT NULL,
    last_used DATETIME NULL,
    PRIMARY KEY (id),
    UNIQUE KEY uq_api_keys_key_hash (key_hash),
    KEY idx_api_keys_key_prefix (key_prefix),
    KEY idx_api_keys_user_active (user_id, is_active),
    CONSTRAINT fk_api_keys_user FOREIGN KEY (user_id) REFERENCES users (id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

const createUsageRecordsSQL = `
CREATE TABLE IF NOT EXISTS usage_records (
    id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
    api_key_id BIGINT UNSIGNED NOT NULL,
    endpoint VARCHAR(255) NOT NULL,
    method VARCHAR(10) NOT NULL,
    response_status INT NOT NULL,
    response_time_ms BIGINT NOT NULL,
    user_agent VARCHAR(500) NULL,
    ip_address VARCHAR(45) NULL,
    timestamp DATETIME(6) NOT NULL,
    PRIMARY KEY (id),
    KEY idx_usage_records_key_time (api_key_id, timestamp),
    CONSTRAINT fk_usage_records_api_key FOREIGN KEY (api_key_id) REFERENCES api_keys (id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

const createSightingsSQL = `
CREATE TABLE IF NOT EXISTS sightings (
    id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
    date_time DATETIME NOT NULL,
    city VARCHAR(255) NOT NULL,
    state VARCHAR(2) NULL,
    shape VARCHAR(50) NOT NULL,
    duration VARCHAR(100) NOT NULL,
    summary TEXT NOT NULL,
    text TEXT NOT NULL,
    posted DATETIME NOT NULL,
    latitude DOUBLE NULL,
    longitude DOUBLE NULL,
    source VARCHAR(50) NOT NULL DEFAULT 'NUFORC',
    external_id VARCHAR(100) NULL,
    source_url VARCHAR(500) NULL,
    PRIMARY KEY (id),
    KEY idx_sightings_date_time (date_time),
    KEY idx_sightings_state_city (state, city),
    KEY idx_sightings_shape (shape)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

const createRateLimitBucketsSQL = `
CREATE TABLE IF NOT EXISTS rate_limit_buckets (
    identifier VARCHAR(64) NOT NULL,
    PRIMARY KEY (identifier)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

const createRateLimitHitsSQL = `
CREATE TABLE IF NOT EXISTS rate_limit_hits (
    id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
    identifier VARCHAR(64) NOT NULL,
    hit_at DATETIME(6) NOT NULL,
    PRIMARY KEY (id),
    KEY idx_rate_limit_hits_identifier_time (identifier, hit_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// Step is one named schema statement.
type Step struct {
	Name string
	SQL  string
}

// Steps are applied in order; foreign keys require users before api_keys
// before usage_records.
var Steps = []Step{
	{Name: "users", SQL: createUsersSQL},
	{Name: "api_keys", SQL: createAPIKeysSQL},
	{Name: "usage_records", SQL: createUsageRecordsSQL},
	{Name: "sightings", SQL: createSightingsSQL},
	{Name: "rate_limit_buckets", SQL: createRateLimitBucketsSQL},
	{Name: "rate_limit_hits", SQL: createRateLimitHitsSQL},
}

// Apply creates any missing table. Every statement is IF NOT EXISTS so
// running it against an up-to-date database is a no-op.
func Apply(ctx context.Context, db repository.DBTX) error {
	for _, step := range Steps {
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			return fmt.Errorf("create %s: %w", step.Name, err)
		}
		logrus.WithField("table", step.Name).Debug("Schema step applied")
	}
	return nil
}
