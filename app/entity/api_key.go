package entity

import (
	"database/sql"
	"time"
)

// APIKey is the persisted record behind a secret key. The plaintext key is
// never stored; KeyHash is a salted bcrypt hash and KeyPrefix is the
// non-secret leading part of the key used to narrow lookups.
type APIKey struct {
	ID             uint64
	UserID         uint64
	KeyHash        string
	KeyPrefix      string
	Name           string
	Tier           string
	QuotaLimit     int64
	QuotaUsed      int64
	QuotaResetDate time.Time
	IsActive       bool
	CreatedAt      time.Time
	LastUsed       sql.NullTime
}

func (k *APIKey) QuotaRemaining() int64 {
	if remaining := k.QuotaLimit - k.QuotaUsed; remaining > 0 {
		return remaining
	}
	return 0
}
