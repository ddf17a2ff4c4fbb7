package middleware

import (
	"strings"

	"github.com/vibast-solutions/ms-go-skywatch/app/apierror"
	"github.com/vibast-solutions/ms-go-skywatch/app/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const (
	ContextKeyUserID    = "user_id"
	ContextKeyUserEmail = "user_email"
)

type accessTokenValidator interface {
	ValidateAccessToken(tokenString string) (*service.Claims, error)
}

// AuthMiddleware guards the account and key management routes with the
// web UI's JWT access tokens.
type AuthMiddleware struct {
	authService accessTokenValidator
}

func NewAuthMiddleware(authService accessTokenValidator) *AuthMiddleware {
	return &AuthMiddleware{authService: authService}
}

func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" {
			logrus.Debug("Missing authorization header")
			return writeUnauthorized(c, "Not authenticated")
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			logrus.Debug("Invalid authorization header format")
			return writeUnauthorized(c, "Invalid authorization header format")
		}

		claims, err := m.authService.ValidateAccessToken(parts[1])
		if err != nil {
			logrus.Debug("Invalid or expired access token")
			return writeUnauthorized(c, "Could not validate credentials")
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyUserEmail, claims.Email)

		return next(c)
	}
}

func UserIDFromContext(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ContextKeyUserID).(uint64)
	return id, ok && id != 0
}

func writeUnauthorized(c echo.Context, message string) error {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	return apierror.Write(c, apierror.Authentication(message))
}
