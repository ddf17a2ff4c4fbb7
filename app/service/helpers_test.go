package service_test

import (
	"database/sql"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-skywatch/config"

	"github.com/DATA-DOG/go-sqlmock"
)

var (
	userColumns = []string{
		"id",
		"email",
		"name",
		"password_hash",
		"is_active",
		"created_at",
	}
	apiKeyColumns = []string{
		"id",
		"user_id",
		"key_hash",
		"key_prefix",
		"name",
		"tier",
		"quota_limit",
		"quota_used",
		"quota_reset_date",
		"is_active",
		"created_at",
		"last_used",
	}
)

const (
	findKeysByPrefixQuery = `(?s)SELECT id, user_id, .* FROM api_keys\s+WHERE key_prefix = \?`
	findKeyByIDQuery      = `(?s)SELECT id, user_id, .* FROM api_keys\s+WHERE id = \?$`
	findActiveKeyForUser  = `(?s)SELECT id, user_id, .* FROM api_keys\s+WHERE id = \? AND user_id = \? AND is_active = 1`
	countActiveKeysQuery  = `(?s)SELECT COUNT\(\*\) FROM api_keys WHERE user_id = \? AND is_active = 1`
	insertAPIKeyQuery     = `(?s)INSERT INTO api_keys`
	updateSecretQuery     = `(?s)UPDATE api_keys SET\s+key_hash = \?,\s+key_prefix = \?,\s+last_used = NULL`
	deactivateKeyQuery    = `(?s)UPDATE api_keys SET is_active = 0 WHERE id = \?`
	updateTierQuery       = `(?s)UPDATE api_keys SET tier = \? WHERE id = \?`
	updateTierQuotaQuery  = `(?s)UPDATE api_keys SET tier = \?, quota_limit = \? WHERE id = \?`
	resetQuotaQuery       = `(?s)UPDATE api_keys SET\s+quota_used = 0,\s+quota_reset_date = \?\s+WHERE id = \? AND quota_reset_date <= \?`
	incrementQuotaQuery   = `(?s)UPDATE api_keys SET\s+quota_used = quota_used \+ 1`
	findUserByEmailQuery  = `(?s)SELECT id, email, name, password_hash, is_active, created_at\s+FROM users WHERE email = \?`
	insertUserQuery       = `(?s)INSERT INTO users \(email, name, password_hash, is_active, created_at\)`
	countUsageQuery       = `(?s)SELECT COUNT\(\*\) FROM usage_records WHERE api_key_id = \?$`
	countUsageSinceQuery  = `(?s)SELECT COUNT\(\*\) FROM usage_records WHERE api_key_id = \? AND timestamp >= \?`
	topEndpointsQuery     = `(?s)SELECT endpoint, COUNT\(\*\) AS hits`
	listRecentUsageQuery  = `(?s)SELECT id, api_key_id, endpoint, .*LIMIT \?`
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return db, mock, func() { _ = db.Close() }
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:            "test-secret",
		JWTAccessTokenTTL:    30 * time.Minute,
		APIKeyBcryptCost:     4,
		MaxActiveKeysPerUser: 10,
		PasswordPolicy:       config.PasswordPolicy{MinLength: 8},
	}
}
