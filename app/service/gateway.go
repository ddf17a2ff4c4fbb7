package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/vibast-solutions/ms-go-skywatch/app/entity"
	"github.com/vibast-solutions/ms-go-skywatch/app/ratelimit"
	"github.com/vibast-solutions/ms-go-skywatch/app/tier"

	"github.com/sirupsen/logrus"
)

// Rejection reasons reported to the GatewayObserver.
const (
	RejectMissingKey  = "missing_key"
	RejectInvalidKey  = "invalid_key"
	RejectDisabledKey = "disabled_key"
	RejectUnavailable = "unavailable"
	RejectQuota       = "quota_exceeded"
	RejectRateLimit   = "rate_limit_exceeded"
)

type RateLimitExceededError struct {
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rate limit of %d requests per hour exceeded", e.Limit)
}

// GatewayObserver receives gateway decisions, typically to export metrics.
type GatewayObserver interface {
	Admitted(tierName string)
	Rejected(reason string)
	Completed(tierName string, status int, latency time.Duration)
	BookkeepingFailed(operation string)
}

type noopObserver struct{}

func (noopObserver) Admitted(string)                      {}
func (noopObserver) Rejected(string)                      {}
func (noopObserver) Completed(string, int, time.Duration) {}
func (noopObserver) BookkeepingFailed(string)             {}

type GatewayOption func(*Gateway)

func WithGatewayObserver(observer GatewayObserver) GatewayOption {
	return func(g *Gateway) {
		if observer != nil {
			g.observer = observer
		}
	}
}

// Gateway runs the admission checks for a presented key (authenticate,
// quota, hourly rate) and the bookkeeping once a request has been served.
// It is transport agnostic; the echo middleware and the gRPC interceptor
// both drive it.
type Gateway struct {
	keys     *KeyStore
	quota    *QuotaTracker
	limiter  ratelimit.Limiter
	ledger   *UsageLedger
	observer GatewayObserver
}

func NewGateway(keys *KeyStore, quota *QuotaTracker, limiter ratelimit.Limiter, ledger *UsageLedger, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		keys:     keys,
		quota:    quota,
		limiter:  limiter,
		ledger:   ledger,
		observer: noopObserver{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Admit resolves rawKey and checks quota then rate limit, stopping at the
// first failure. Nothing is written for a rejected request.
func (g *Gateway) Admit(ctx context.Context, rawKey string) (*entity.APIKey, error) {
	key, err := g.keys.Authenticate(ctx, rawKey)
	if err != nil {
		g.observer.Rejected(rejectionReason(err))
		return nil, err
	}

	if err = g.quota.Check(ctx, key); err != nil {
		var quotaErr *QuotaExceededError
		if errors.As(err, &quotaErr) {
			g.observer.Rejected(RejectQuota)
			return nil, err
		}
		g.observer.Rejected(RejectUnavailable)
		return nil, fmt.Errorf("%w: %v", ErrKeyValidationUnavailable, err)
	}

	limit := tier.HourlyRateLimit(key.Tier)
	result, err := g.limiter.Allow(ctx, strconv.FormatUint(key.ID, 10), limit)
	if err != nil {
		g.observer.Rejected(RejectUnavailable)
		return nil, fmt.Errorf("%w: %v", ErrKeyValidationUnavailable, err)
	}
	if !result.Allowed {
		g.observer.Rejected(RejectRateLimit)
		return nil, &RateLimitExceededError{Limit: limit, RetryAfter: result.RetryAfter}
	}

	g.observer.Admitted(key.Tier)
	return key, nil
}

// Complete appends the usage record and charges one unit of quota. Both
// writes always run, detached from ctx cancellation; failures are logged
// and never surface to the caller.
func (g *Gateway) Complete(ctx context.Context, key *entity.APIKey, usage *entity.Usage) {
	ctx = context.WithoutCancel(ctx)
	usage.APIKeyID = key.ID

	g.observer.Completed(key.Tier, usage.ResponseStatus, time.Duration(usage.ResponseTimeMS)*time.Millisecond)

	if err := g.ledger.Record(ctx, usage); err != nil {
		g.observer.BookkeepingFailed("usage_record")
		logrus.WithError(err).WithField("api_key_id", key.ID).Error("failed to record usage")
	}

	if err := g.quota.Charge(ctx, key); err != nil {
		g.observer.BookkeepingFailed("quota_increment")
		logrus.WithError(err).WithField("api_key_id", key.ID).Error("failed to increment quota")
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingAPIKey):
		return RejectMissingKey
	case errors.Is(err, ErrAPIKeyDisabled):
		return RejectDisabledKey
	case errors.Is(err, ErrInvalidAPIKey):
		return RejectInvalidKey
	default:
		return RejectUnavailable
	}
}
