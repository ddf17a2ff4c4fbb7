package middleware

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-skywatch/app/apierror"
	"github.com/vibast-solutions/ms-go-skywatch/app/entity"
	"github.com/vibast-solutions/ms-go-skywatch/app/service"
	"github.com/vibast-solutions/ms-go-skywatch/app/tier"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const (
	HeaderAPIKey     = "X-API-Key"
	ContextKeyAPIKey = "api_key"
)

// PublicPaths bypass the gateway entirely. "/" matches only itself, every
// other entry matches as a prefix.
var PublicPaths = []string{
	"/health",
	"/metrics",
	"/docs",
	"/redoc",
	"/openapi.json",
	"/swagger",
	"/static",
	"/map",
	"/v1/map",
	"/v1/auth/register",
	"/v1/auth/login",
	"/v1/auth/me",
	"/v1/auth/keys",
	"/v1/research",
}

func IsPublicPath(path string) bool {
	if path == "/" {
		return true
	}
	for _, prefix := range PublicPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// ExtractAPIKey reads the X-API-Key header, falling back to an
// "Authorization: Bearer <key>" header.
func ExtractAPIKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(HeaderAPIKey)); key != "" {
		return key
	}

	parts := strings.Fields(r.Header.Get(echo.HeaderAuthorization))
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}

type APIKeyMiddleware struct {
	gateway *service.Gateway
}

func NewAPIKeyMiddleware(gateway *service.Gateway) *APIKeyMiddleware {
	return &APIKeyMiddleware{gateway: gateway}
}

// Gateway admits requests to non-public paths, then records usage and
// charges quota once the downstream handler has produced a status.
func (m *APIKeyMiddleware) Gateway(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()

		// Let CORS preflight pass.
		if req.Method == http.MethodOptions || IsPublicPath(req.URL.Path) {
			return next(c)
		}

		key, err := m.gateway.Admit(req.Context(), ExtractAPIKey(req))
		if err != nil {
			return apierror.Write(c, rejection(err))
		}

		c.Set(ContextKeyAPIKey, key)
		c.SetRequest(req.WithContext(service.WithAPIKey(req.Context(), key)))

		start := time.Now()
		err = next(c)
		if err != nil {
			c.Error(err)
		}
		latency := time.Since(start)

		m.gateway.Complete(c.Request().Context(), key, &entity.Usage{
			Endpoint:       req.URL.Path,
			Method:         req.Method,
			ResponseStatus: c.Response().Status,
			ResponseTimeMS: latency.Milliseconds(),
			UserAgent:      nullString(req.UserAgent()),
			IPAddress:      nullString(c.RealIP()),
			Timestamp:      time.Now().UTC(),
		})

		return err
	}
}

// RequireTier rejects keys whose tier ranks below required. It must run
// behind the gateway.
func RequireTier(required string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key, ok := APIKeyFromContext(c)
			if !ok {
				return apierror.Write(c, apierror.Authentication(missingKeyMessage))
			}

			if !tier.Satisfies(key.Tier, required) {
				logrus.WithFields(logrus.Fields{
					"api_key_id": key.ID,
					"tier":       key.Tier,
					"required":   required,
				}).Debug("Tier too low")
				return apierror.Write(c, apierror.Authorization(fmt.Sprintf(
					"This endpoint requires %s tier or higher. Current tier: %s", required, key.Tier,
				)))
			}

			return next(c)
		}
	}
}

// APIKeyFromContext returns the key the gateway resolved for this request.
func APIKeyFromContext(c echo.Context) (*entity.APIKey, bool) {
	if key, ok := c.Get(ContextKeyAPIKey).(*entity.APIKey); ok && key != nil {
		return key, true
	}
	return service.APIKeyFromContext(c.Request().Context())
}

const missingKeyMessage = "API key required. Include 'X-API-Key' header or 'Authorization: Bearer <key>' header."

func rejection(err error) *apierror.Error {
	var quotaErr *service.QuotaExceededError
	var rateErr *service.RateLimitExceededError

	switch {
	case errors.Is(err, service.ErrMissingAPIKey):
		logrus.Debug("Missing API key")
		return apierror.Authentication(missingKeyMessage)
	case errors.Is(err, service.ErrAPIKeyDisabled):
		logrus.Debug("Disabled API key")
		return apierror.Authentication("This API key has been disabled.")
	case errors.Is(err, service.ErrInvalidAPIKey):
		logrus.Debug("Invalid API key")
		return apierror.Authentication("The provided API key is invalid or has been revoked.")
	case errors.As(err, &quotaErr):
		logrus.Debug("Quota exceeded")
		return apierror.QuotaExceeded(quotaErr.Limit, quotaErr.Used, quotaErr.ResetDate, time.Now())
	case errors.As(err, &rateErr):
		logrus.Debug("Rate limit exceeded")
		return apierror.RateLimitExceeded(rateErr.Limit, rateErr.RetryAfter)
	default:
		logrus.WithError(err).Error("API key validation failed")
		return apierror.Authentication("Unable to validate API key at this time.").WithCause(err)
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
