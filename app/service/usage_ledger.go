package service

import (
	"context"
	"time"

	"github.com/vibast-solutions/ms-go-skywatch/app/entity"
)

type usageWriter interface {
	Create(ctx context.Context, usage *entity.Usage) error
}

// UsageLedger appends one record per request that went through the gateway.
type UsageLedger struct {
	repo usageWriter
}

func NewUsageLedger(repo usageWriter) *UsageLedger {
	return &UsageLedger{repo: repo}
}

func (l *UsageLedger) Record(ctx context.Context, usage *entity.Usage) error {
	if usage.Timestamp.IsZero() {
		usage.Timestamp = time.Now().UTC()
	}
	return l.repo.Create(ctx, usage)
}
