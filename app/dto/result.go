package dto

import (
	"time"

	"github.com/vibast-solutions/ms-go-skywatch/app/entity"
)

// IssuedAPIKey carries the plaintext secret of a freshly created or
// regenerated key. It is the only place the secret exists after hashing.
type IssuedAPIKey struct {
	Key      *entity.APIKey
	PlainKey string
}

type LoginResult struct {
	AccessToken string
	ExpiresIn   int64
}

type UsageStats struct {
	TotalRequests     int64
	RequestsThisMonth int64
	QuotaLimit        int64
	QuotaUsed         int64
	QuotaRemaining    int64
	QuotaResetDate    time.Time
	MostUsedEndpoints []entity.EndpointCount
}

type SightingPage struct {
	Sightings []*entity.Sighting
	Total     int64
	Page      int
	PerPage   int
	Pages     int
}
