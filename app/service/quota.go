package service

import (
	"context"
	"fmt"
	"time"

	"github.com/vibast-solutions/ms-go-skywatch/app/entity"

	"github.com/sirupsen/logrus"
)

type QuotaExceededError struct {
	Limit     int64
	Used      int64
	ResetDate time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("monthly quota of %d requests exceeded", e.Limit)
}

type quotaRepository interface {
	ResetQuota(ctx context.Context, id uint64, nextReset, now time.Time) (bool, error)
	IncrementQuota(ctx context.Context, id uint64, usedAt time.Time) error
}

type QuotaTracker struct {
	repo quotaRepository
	now  func() time.Time
}

type QuotaTrackerOption func(*QuotaTracker)

func WithQuotaClock(now func() time.Time) QuotaTrackerOption {
	return func(t *QuotaTracker) {
		if now != nil {
			t.now = now
		}
	}
}

func NewQuotaTracker(repo quotaRepository, opts ...QuotaTrackerOption) *QuotaTracker {
	t := &QuotaTracker{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Check starts a new period when the key's reset date has passed and then
// compares the used count with the limit. key is updated in place.
func (t *QuotaTracker) Check(ctx context.Context, key *entity.APIKey) error {
	now := t.now().UTC()

	if !now.Before(key.QuotaResetDate) {
		next := NextQuotaResetDate(now)
		reset, err := t.repo.ResetQuota(ctx, key.ID, next, now)
		if err != nil {
			return err
		}
		if !reset {
			logrus.WithField("api_key_id", key.ID).Debug("quota period already reset by a concurrent request")
		}
		key.QuotaUsed = 0
		key.QuotaResetDate = next
	}

	if key.QuotaUsed >= key.QuotaLimit {
		return &QuotaExceededError{
			Limit:     key.QuotaLimit,
			Used:      key.QuotaUsed,
			ResetDate: key.QuotaResetDate,
		}
	}
	return nil
}

// Charge counts one request against the key's quota and stamps last_used.
func (t *QuotaTracker) Charge(ctx context.Context, key *entity.APIKey) error {
	return t.repo.IncrementQuota(ctx, key.ID, t.now().UTC())
}

// NextQuotaResetDate is midnight UTC on the first day of the month after now.
func NextQuotaResetDate(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

func StartOfMonth(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}
