// Package apierror renders every HTTP failure in one JSON shape:
//
//	{"error": "...", "message": "...", "details": {...}, "request_id": "...",
//	 "timestamp": "...", "path": "...", "method": "..."}
package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const (
	CodeBadRequest       = "bad_request"
	CodeAuthentication   = "authentication_error"
	CodeAuthorization    = "authorization_error"
	CodeNotFound         = "not_found"
	CodeMethodNotAllowed = "method_not_allowed"
	CodeValidation       = "validation_error"
	CodeQuotaExceeded    = "quota_exceeded"
	CodeRateLimited      = "rate_limit_exceeded"
	CodeInternal         = "internal_server_error"
	CodeUnavailable      = "service_unavailable"
	CodeHTTP             = "http_error"
)

type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]interface{}
	// RetryAfter is sent as the Retry-After header when positive.
	RetryAfter time.Duration
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

func New(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, CodeBadRequest, message)
}

func Authentication(message string) *Error {
	return New(http.StatusUnauthorized, CodeAuthentication, message)
}

func Authorization(message string) *Error {
	return New(http.StatusForbidden, CodeAuthorization, message)
}

func NotFound(resource string, identifier interface{}) *Error {
	return New(http.StatusNotFound, CodeNotFound, resource+" not found").WithDetails(map[string]interface{}{
		"resource":   resource,
		"identifier": fmt.Sprint(identifier),
	})
}

func Validation(message string) *Error {
	return New(http.StatusUnprocessableEntity, CodeValidation, message)
}

func QuotaExceeded(limit, used int64, resetDate time.Time, now time.Time) *Error {
	e := New(http.StatusTooManyRequests, CodeQuotaExceeded,
		fmt.Sprintf("Monthly quota of %d requests exceeded.", limit))
	e.Details = map[string]interface{}{
		"quota_limit":      limit,
		"quota_used":       used,
		"quota_reset_date": resetDate.UTC().Format(time.RFC3339),
	}
	if wait := resetDate.Sub(now); wait > 0 {
		e.RetryAfter = wait
	}
	return e
}

func RateLimitExceeded(limit int, retryAfter time.Duration) *Error {
	e := New(http.StatusTooManyRequests, CodeRateLimited,
		fmt.Sprintf("Rate limit of %d requests per hour exceeded.", limit))
	e.Details = map[string]interface{}{
		"rate_limit":  limit,
		"retry_after": int64(retryAfter.Seconds()),
	}
	e.RetryAfter = retryAfter
	return e
}

func Internal(err error) *Error {
	return New(http.StatusInternalServerError, CodeInternal, "An unexpected error occurred").WithCause(err)
}

type Body struct {
	Error     string                 `json:"error"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id"`
	Timestamp string                 `json:"timestamp"`
	Path      string                 `json:"path,omitempty"`
	Method    string                 `json:"method,omitempty"`
}

// RequestID returns the id assigned by echo's RequestID middleware, the
// caller supplied one, or a fresh uuid.
func RequestID(c echo.Context) string {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	if id := c.Request().Header.Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return uuid.NewString()
}

func Write(c echo.Context, e *Error) error {
	if e.RetryAfter > 0 {
		seconds := int64((e.RetryAfter + time.Second - 1) / time.Second)
		c.Response().Header().Set("Retry-After", strconv.FormatInt(seconds, 10))
	}

	body := Body{
		Error:     e.Code,
		Message:   e.Message,
		Details:   e.Details,
		RequestID: RequestID(c),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Path:      c.Request().URL.Path,
		Method:    c.Request().Method,
	}

	if c.Request().Method == http.MethodHead {
		return c.NoContent(e.Status)
	}
	return c.JSON(e.Status, body)
}

// HTTPErrorHandler is installed as echo's error handler. With debug off,
// internal errors carry no detail beyond their code and message.
func HTTPErrorHandler(debug bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		if writeErr := Write(c, FromError(err, debug)); writeErr != nil {
			logrus.WithError(writeErr).Error("failed to write error response")
		}
	}
}

// FromError converts any handler error to an *Error.
func FromError(err error, debug bool) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		if apiErr.Status >= http.StatusInternalServerError {
			logrus.WithError(err).Error("request failed")
		}
		return apiErr
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		message := http.StatusText(httpErr.Code)
		if httpErr.Message != nil {
			message = fmt.Sprint(httpErr.Message)
		}
		if httpErr.Code >= http.StatusInternalServerError {
			logrus.WithError(err).Error("request failed")
		}
		return New(httpErr.Code, codeForStatus(httpErr.Code), message).WithDetails(map[string]interface{}{
			"status_code": httpErr.Code,
		})
	}

	logrus.WithError(err).Error("unhandled error")
	internal := Internal(err)
	if debug {
		internal.Details = map[string]interface{}{"type": fmt.Sprintf("%T", err)}
	}
	return internal
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeBadRequest
	case http.StatusUnauthorized:
		return CodeAuthentication
	case http.StatusForbidden:
		return CodeAuthorization
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusMethodNotAllowed:
		return CodeMethodNotAllowed
	case http.StatusUnprocessableEntity:
		return CodeValidation
	case http.StatusTooManyRequests:
		return CodeRateLimited
	case http.StatusInternalServerError:
		return CodeInternal
	case http.StatusServiceUnavailable:
		return CodeUnavailable
	default:
		return CodeHTTP
	}
}
