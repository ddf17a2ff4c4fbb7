package middleware_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-skywatch/app/apierror"
	"github.com/vibast-solutions/ms-go-skywatch/app/entity"
	"github.com/vibast-solutions/ms-go-skywatch/app/middleware"
	"github.com/vibast-solutions/ms-go-skywatch/app/service"
	"github.com/vibast-solutions/ms-go-skywatch/app/service/servicetest"
	"github.com/vibast-solutions/ms-go-skywatch/app/tier"

	"github.com/labstack/echo/v4"
)

func nextMonth() time.Time {
	return service.NextQuotaResetDate(time.Now())
}

func newGatewayServer(store *servicetest.Store) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = apierror.HTTPErrorHandler(false)

	gateway := middleware.NewAPIKeyMiddleware(servicetest.NewGateway(store))
	e.Use(gateway.Gateway)

	ok := func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
	e.GET("/health", ok)
	e.GET("/v1/auth/keys", ok)
	e.GET("/v1/sightings", ok)
	e.GET("/v1/sightings/stats", ok, middleware.RequireTier(tier.Basic))
	e.GET("/v1/unavailable", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "upstream down")
	})
	e.GET("/v1/broken", func(c echo.Context) error {
		return errors.New("boom")
	})
	e.GET("/v1/whoami", func(c echo.Context) error {
		key, ok := service.APIKeyFromContext(c.Request().Context())
		if !ok {
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.JSON(http.StatusOK, map[string]uint64{"id": key.ID})
	})
	return e
}

func doRequest(e *echo.Echo, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apierror.Body {
	t.Helper()
	var body apierror.Body
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode error body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestIsPublicPath(t *testing.T) {
	cases := map[string]bool{
		"/":                   true,
		"/health":             true,
		"/health/ready":       true,
		"/docs":               true,
		"/static/app.css":     true,
		"/v1/map/data":        true,
		"/v1/auth/keys/3":     true,
		"/v1/auth/register":   true,
		"/v1/research/ask":    true,
		"/v1/sightings":       false,
		"/v1/auth/usage":      false,
		"/v1/sightings/stats": false,
		"/index.html":         false,
	}
	for path, want := range cases {
		if got := middleware.IsPublicPath(path); got != want {
			t.Fatalf("IsPublicPath(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestExtractAPIKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := middleware.ExtractAPIKey(req); got != "" {
		t.Fatalf("expected empty key, got %q", got)
	}

	req.Header.Set(echo.HeaderAuthorization, "Bearer sk_live_bearer")
	if got := middleware.ExtractAPIKey(req); got != "sk_live_bearer" {
		t.Fatalf("expected bearer key, got %q", got)
	}

	req.Header.Set(middleware.HeaderAPIKey, " sk_live_header ")
	if got := middleware.ExtractAPIKey(req); got != "sk_live_header" {
		t.Fatalf("expected header key to win, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Basic dXNlcjpwYXNz")
	if got := middleware.ExtractAPIKey(req); got != "" {
		t.Fatalf("expected non-bearer authorization to be ignored, got %q", got)
	}
}

func TestGateway_PublicPathSkipsPipeline(t *testing.T) {
	store := servicetest.NewStore()
	e := newGatewayServer(store)

	rec := doRequest(e, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	rec = doRequest(e, http.MethodGet, "/v1/auth/keys", map[string]string{middleware.HeaderAPIKey: "garbage"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 for key management path, got %d", rec.Code)
	}

	if store.Lookups() != 0 {
		t.Fatalf("expected no key lookups, got %d", store.Lookups())
	}
	if len(store.Usage()) != 0 {
		t.Fatalf("expected no usage records, got %d", len(store.Usage()))
	}
}

func TestGateway_MissingKey(t *testing.T) {
	store := servicetest.NewStore()
	e := newGatewayServer(store)

	rec := doRequest(e, http.MethodGet, "/v1/sightings", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}

	body := decodeError(t, rec)
	if body.Error != apierror.CodeAuthentication {
		t.Fatalf("expected authentication_error, got %s", body.Error)
	}
	if body.Message != "API key required. Include 'X-API-Key' header or 'Authorization: Bearer <key>' header." {
		t.Fatalf("unexpected message: %s", body.Message)
	}
	if body.Path != "/v1/sightings" || body.Method != http.MethodGet {
		t.Fatalf("unexpected path/method: %s %s", body.Method, body.Path)
	}
	if body.RequestID == "" || body.Timestamp == "" {
		t.Fatalf("expected request id and timestamp, got %+v", body)
	}
	if len(store.Usage()) != 0 {
		t.Fatalf("expected no usage records")
	}
}

func TestGateway_InvalidKey(t *testing.T) {
	store := servicetest.NewStore()
	raw, _ := store.AddKey(tier.Free, nextMonth())
	e := newGatewayServer(store)

	wrong := raw[:len(raw)-1] + "0"
	if wrong == raw {
		wrong = raw[:len(raw)-1] + "1"
	}

	rec := doRequest(e, http.MethodGet, "/v1/sightings", map[string]string{middleware.HeaderAPIKey: wrong})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Message != "The provided API key is invalid or has been revoked." {
		t.Fatalf("unexpected message: %s", body.Message)
	}
}

func TestGateway_DisabledKey(t *testing.T) {
	store := servicetest.NewStore()
	raw, id := store.AddKey(tier.Free, nextMonth())
	store.Update(id, func(key *entity.APIKey) { key.IsActive = false })
	e := newGatewayServer(store)

	rec := doRequest(e, http.MethodGet, "/v1/sightings", map[string]string{middleware.HeaderAPIKey: raw})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Message != "This API key has been disabled." {
		t.Fatalf("unexpected message: %s", body.Message)
	}
	if got := store.Key(id).QuotaUsed; got != 0 {
		t.Fatalf("expected no quota charge, got %d", got)
	}
}

func TestGateway_LookupFailureFailsClosed(t *testing.T) {
	store := servicetest.NewStore()
	raw, _ := store.AddKey(tier.Free, nextMonth())
	store.FailLookup = true
	e := newGatewayServer(store)

	rec := doRequest(e, http.MethodGet, "/v1/sightings", map[string]string{middleware.HeaderAPIKey: raw})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Message != "Unable to validate API key at this time." {
		t.Fatalf("unexpected message: %s", body.Message)
	}
}

func TestGateway_BearerHeaderAttachesKey(t *testing.T) {
	store := servicetest.NewStore()
	raw, id := store.AddKey(tier.Free, nextMonth())
	e := newGatewayServer(store)

	rec := doRequest(e, http.MethodGet, "/v1/whoami", map[string]string{
		echo.HeaderAuthorization: "Bearer " + raw,
		"User-Agent":             "skywatch-test",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body map[string]uint64
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body["id"] != id {
		t.Fatalf("expected key %d in context, got %d", id, body["id"])
	}

	usage := store.Usage()
	if len(usage) != 1 {
		t.Fatalf("expected one usage record, got %d", len(usage))
	}
	record := usage[0]
	if record.APIKeyID != id || record.Endpoint != "/v1/whoami" || record.Method != http.MethodGet {
		t.Fatalf("unexpected usage record: %+v", record)
	}
	if record.ResponseStatus != http.StatusOK {
		t.Fatalf("expected status 200 recorded, got %d", record.ResponseStatus)
	}
	if record.UserAgent.String != "skywatch-test" || !record.IPAddress.Valid {
		t.Fatalf("expected user agent and ip recorded, got %+v", record)
	}
}

// Scenario A: a free key gets 60 requests per hour.
func TestGateway_RateLimitScenario(t *testing.T) {
	store := servicetest.NewStore()
	raw, id := store.AddKey(tier.Free, nextMonth())
	e := newGatewayServer(store)
	headers := map[string]string{middleware.HeaderAPIKey: raw}

	for i := 0; i < 60; i++ {
		rec := doRequest(e, http.MethodGet, "/v1/sightings", headers)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected status 200, got %d", i+1, rec.Code)
		}
	}

	rec := doRequest(e, http.MethodGet, "/v1/sightings", headers)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", rec.Code)
	}
	body := decodeError(t, rec)
	if body.Error != apierror.CodeRateLimited {
		t.Fatalf("expected rate_limit_exceeded, got %s", body.Error)
	}
	if body.Details["retry_after"] != float64(3600) {
		t.Fatalf("expected retry_after 3600, got %v", body.Details["retry_after"])
	}
	if rec.Header().Get("Retry-After") != "3600" {
		t.Fatalf("expected Retry-After 3600, got %q", rec.Header().Get("Retry-After"))
	}

	if got := len(store.Usage()); got != 60 {
		t.Fatalf("expected 60 usage records, got %d", got)
	}
	if got := store.Key(id).QuotaUsed; got != 60 {
		t.Fatalf("expected quota_used 60, got %d", got)
	}
}

// Scenario B: the last unit of quota is granted, the next request is refused.
func TestGateway_QuotaScenario(t *testing.T) {
	store := servicetest.NewStore()
	raw, id := store.AddKey(tier.Free, nextMonth())
	store.Update(id, func(key *entity.APIKey) { key.QuotaUsed = 999 })
	e := newGatewayServer(store)
	headers := map[string]string{middleware.HeaderAPIKey: raw}

	rec := doRequest(e, http.MethodGet, "/v1/sightings", headers)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if got := store.Key(id).QuotaUsed; got != 1000 {
		t.Fatalf("expected quota_used 1000, got %d", got)
	}

	rec = doRequest(e, http.MethodGet, "/v1/sightings", headers)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", rec.Code)
	}
	body := decodeError(t, rec)
	if body.Error != apierror.CodeQuotaExceeded {
		t.Fatalf("expected quota_exceeded, got %s", body.Error)
	}
	if body.Details["quota_used"] != float64(1000) || body.Details["quota_limit"] != float64(1000) {
		t.Fatalf("unexpected quota details: %v", body.Details)
	}
	if _, ok := body.Details["quota_reset_date"]; !ok {
		t.Fatalf("expected quota_reset_date in details")
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header on quota rejection")
	}
	if got := len(store.Usage()); got != 1 {
		t.Fatalf("expected one usage record, got %d", got)
	}
}

// Scenario C: an expired period resets on first use.
func TestGateway_QuotaResetScenario(t *testing.T) {
	store := servicetest.NewStore()
	raw, id := store.AddKey(tier.Free, time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC))
	store.Update(id, func(key *entity.APIKey) { key.QuotaUsed = 1000 })
	e := newGatewayServer(store)

	before := time.Now().UTC()
	rec := doRequest(e, http.MethodGet, "/v1/sightings", map[string]string{middleware.HeaderAPIKey: raw})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	key := store.Key(id)
	if key.QuotaUsed != 1 {
		t.Fatalf("expected quota_used 1, got %d", key.QuotaUsed)
	}
	if !key.QuotaResetDate.After(before) || key.QuotaResetDate.Day() != 1 {
		t.Fatalf("expected reset date on the first of next month, got %v", key.QuotaResetDate)
	}
	if !key.QuotaResetDate.Equal(service.NextQuotaResetDate(before)) && !key.QuotaResetDate.Equal(service.NextQuotaResetDate(time.Now())) {
		t.Fatalf("unexpected reset date %v", key.QuotaResetDate)
	}
}

func TestGateway_HandlerErrorsAreStillCharged(t *testing.T) {
	store := servicetest.NewStore()
	raw, id := store.AddKey(tier.Free, nextMonth())
	e := newGatewayServer(store)
	headers := map[string]string{middleware.HeaderAPIKey: raw}

	rec := doRequest(e, http.MethodGet, "/v1/unavailable", headers)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
	rec = doRequest(e, http.MethodGet, "/v1/broken", headers)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}

	usage := store.Usage()
	if len(usage) != 2 {
		t.Fatalf("expected two usage records, got %d", len(usage))
	}
	if usage[0].ResponseStatus != http.StatusServiceUnavailable || usage[1].ResponseStatus != http.StatusInternalServerError {
		t.Fatalf("unexpected recorded statuses: %d %d", usage[0].ResponseStatus, usage[1].ResponseStatus)
	}
	if got := store.Key(id).QuotaUsed; got != 2 {
		t.Fatalf("expected quota_used 2, got %d", got)
	}
}

func TestGateway_BookkeepingFailureDoesNotFailResponse(t *testing.T) {
	store := servicetest.NewStore()
	raw, id := store.AddKey(tier.Free, nextMonth())
	store.FailUsage = true
	e := newGatewayServer(store)

	rec := doRequest(e, http.MethodGet, "/v1/sightings", map[string]string{middleware.HeaderAPIKey: raw})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if got := store.Key(id).QuotaUsed; got != 1 {
		t.Fatalf("expected quota still charged, got %d", got)
	}
}

func TestGateway_ConcurrentRequestsPairWrites(t *testing.T) {
	store := servicetest.NewStore()
	raw, id := store.AddKey(tier.Basic, nextMonth())
	e := newGatewayServer(store)
	headers := map[string]string{middleware.HeaderAPIKey: raw}

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doRequest(e, http.MethodGet, "/v1/sightings", headers)
		}()
	}
	wg.Wait()

	if got := len(store.Usage()); got != workers {
		t.Fatalf("expected %d usage records, got %d", workers, got)
	}
	if got := store.Key(id).QuotaUsed; got != workers {
		t.Fatalf("expected quota_used %d, got %d", workers, got)
	}
}

func TestRequireTier(t *testing.T) {
	store := servicetest.NewStore()
	freeKey, _ := store.AddKey(tier.Free, nextMonth())
	proKey, _ := store.AddKey(tier.Pro, nextMonth())
	e := newGatewayServer(store)

	rec := doRequest(e, http.MethodGet, "/v1/sightings/stats", map[string]string{middleware.HeaderAPIKey: freeKey})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rec.Code)
	}
	body := decodeError(t, rec)
	if body.Error != apierror.CodeAuthorization {
		t.Fatalf("expected authorization_error, got %s", body.Error)
	}
	if body.Message != "This endpoint requires basic tier or higher. Current tier: free" {
		t.Fatalf("unexpected message: %s", body.Message)
	}

	rec = doRequest(e, http.MethodGet, "/v1/sightings/stats", map[string]string{middleware.HeaderAPIKey: proKey})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 for pro tier, got %d", rec.Code)
	}

	if got := len(store.Usage()); got != 2 {
		t.Fatalf("expected the forbidden request to be recorded too, got %d records", got)
	}
}

func TestRequireTier_WithoutGateway(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	handler := middleware.RequireTier(tier.Free)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	if err := handler(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}
