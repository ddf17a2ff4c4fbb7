package types

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queryContext(target string) echo.Context {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return echo.New().NewContext(req, httptest.NewRecorder())
}

func TestListSightingsRequestDefaults(t *testing.T) {
	req, err := NewListSightingsRequestFromContext(queryContext("/v1/sightings"))
	require.NoError(t, err)
	require.NoError(t, req.Validate())

	assert.Equal(t, 1, req.Page)
	assert.Equal(t, 25, req.PerPage)

	filter := req.Filter()
	assert.Nil(t, filter.DateFrom)
	assert.Nil(t, filter.DateTo)
}

func TestListSightingsRequestParsesDates(t *testing.T) {
	req, err := NewListSightingsRequestFromContext(queryContext(
		"/v1/sightings?state=AZ&city=%20Phoenix%20&date_from=2021-01-01&date_to=2021-06-30T12:00:00Z",
	))
	require.NoError(t, err)
	require.NoError(t, req.Validate())

	filter := req.Filter()
	assert.Equal(t, "AZ", filter.State)
	assert.Equal(t, "Phoenix", filter.City)
	require.NotNil(t, filter.DateFrom)
	require.NotNil(t, filter.DateTo)
	assert.True(t, filter.DateFrom.Equal(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, filter.DateTo.Equal(time.Date(2021, 6, 30, 12, 0, 0, 0, time.UTC)))
}

func TestListSightingsRequestValidation(t *testing.T) {
	cases := map[string]string{
		"zero page":         "/v1/sightings?page=0",
		"per_page too high": "/v1/sightings?per_page=101",
		"per_page zero":     "/v1/sightings?per_page=0",
		"long state":        "/v1/sightings?state=ARIZONA",
		"bad date":          "/v1/sightings?date_to=soon",
		"reversed range":    "/v1/sightings?date_from=2022-01-01&date_to=2021-01-01",
	}
	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			req, err := NewListSightingsRequestFromContext(queryContext(target))
			require.NoError(t, err)
			assert.Error(t, req.Validate())
		})
	}
}

func TestListSightingsRequestBindError(t *testing.T) {
	_, err := NewListSightingsRequestFromContext(queryContext("/v1/sightings?page=abc"))
	assert.Error(t, err)
}

func TestCreateAPIKeyRequestValidate(t *testing.T) {
	req := &CreateAPIKeyRequest{Name: "dashboard"}
	require.NoError(t, req.Validate())
	assert.Equal(t, "free", req.Tier)

	req = &CreateAPIKeyRequest{Name: "batch", Tier: " PRO "}
	require.NoError(t, req.Validate())
	assert.Equal(t, "pro", req.Tier)

	assert.Error(t, (&CreateAPIKeyRequest{Name: "x", Tier: "platinum"}).Validate())
	assert.Error(t, (&CreateAPIKeyRequest{Name: "   "}).Validate())
	assert.Error(t, (&CreateAPIKeyRequest{Name: strings.Repeat("n", 101)}).Validate())
}

func TestRegisterRequestValidate(t *testing.T) {
	valid := &RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "secure_password_123"}
	assert.NoError(t, valid.Validate())

	assert.Error(t, (&RegisterRequest{Name: "", Email: "ada@example.com", Password: "pw"}).Validate())
	assert.Error(t, (&RegisterRequest{Name: "Ada", Email: "not-an-email", Password: "pw"}).Validate())
	assert.Error(t, (&RegisterRequest{Name: "Ada", Email: "Ada <ada@example.com>", Password: "pw"}).Validate())
	assert.Error(t, (&RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: " "}).Validate())
	assert.Error(t, (&RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: strings.Repeat("p", 101)}).Validate())
}

func TestUsageHistoryRequest(t *testing.T) {
	req, err := NewUsageHistoryRequestFromContext(queryContext("/v1/auth/usage/history"))
	require.NoError(t, err)
	require.NoError(t, req.Validate())
	assert.Equal(t, 100, req.Limit)

	req, err = NewUsageHistoryRequestFromContext(queryContext("/v1/auth/usage/history?limit=0"))
	require.NoError(t, err)
	assert.Error(t, req.Validate())
}
