package controller_test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-skywatch/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
)

const (
	findUserByEmailQuery  = `(?s)SELECT id, email, name, password_hash, is_active, created_at\s+FROM users WHERE email = \?`
	findUserByIDQuery     = `(?s)SELECT id, email, name, password_hash, is_active, created_at\s+FROM users WHERE id = \?`
	insertUserQuery       = `(?s)INSERT INTO users \(email, name, password_hash, is_active, created_at\)\s+VALUES \(\?, \?, \?, \?, \?\)`
	countActiveKeysQuery  = `(?s)SELECT COUNT\(\*\) FROM api_keys WHERE user_id = \? AND is_active = 1`
	insertAPIKeyQuery     = `(?s)INSERT INTO api_keys`
	listActiveKeysQuery   = `(?s)SELECT id, user_id, .* FROM api_keys\s+WHERE user_id = \? AND is_active = 1\s+ORDER BY created_at DESC`
	findActiveKeyForUser  = `(?s)SELECT id, user_id, .* FROM api_keys\s+WHERE id = \? AND user_id = \? AND is_active = 1`
	deactivateKeyQuery    = `(?s)UPDATE api_keys SET is_active = 0 WHERE id = \?`
	countUsageQuery       = `(?s)SELECT COUNT\(\*\) FROM usage_records WHERE api_key_id = \?$`
	countUsageSinceQuery  = `(?s)SELECT COUNT\(\*\) FROM usage_records WHERE api_key_id = \? AND timestamp >= \?`
	topEndpointsQuery     = `(?s)SELECT endpoint, COUNT\(\*\) AS hits`
	listRecentUsageQuery  = `(?s)SELECT id, api_key_id, endpoint, .*LIMIT \?`
	countSightingsQuery   = `(?s)SELECT COUNT\(\*\) FROM sightings`
	listSightingsQuery    = `(?s)SELECT id, date_time, city, .*FROM sightings.*LIMIT \? OFFSET \?`
	findSightingByIDQuery = `(?s)SELECT id, date_time, city, .*FROM sightings WHERE id = \?`
	shapeCountsQuery      = `(?s)SELECT shape, COUNT\(\*\) AS total`
)

var (
	userColumns = []string{"id", "email", "name", "password_hash", "is_active", "created_at"}

	apiKeyColumns = []string{
		"id", "user_id", "key_hash", "key_prefix", "name", "tier", "quota_limit", "quota_used",
		"quota_reset_date", "is_active", "created_at", "last_used",
	}

	usageColumns = []string{
		"id", "api_key_id", "endpoint", "method", "response_status", "response_time_ms",
		"user_agent", "ip_address", "timestamp",
	}

	sightingColumns = []string{
		"id", "date_time", "city", "state", "shape", "duration", "summary", "text", "posted",
		"latitude", "longitude", "source", "external_id", "source_url",
	}
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

func newJSONRequest(t *testing.T, method, path string, body any) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req, httptest.NewRecorder()
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response json %q: %v", rec.Body.String(), err)
	}
	return body
}

func expectMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
