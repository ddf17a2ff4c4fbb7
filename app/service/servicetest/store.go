// Package servicetest provides an in-memory backend for the gateway so
// transport tests can run the real admission pipeline without MySQL.
package servicetest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vibast-solutions/ms-go-skywatch/app/entity"
	"github.com/vibast-solutions/ms-go-skywatch/app/ratelimit"
	"github.com/vibast-solutions/ms-go-skywatch/app/service"
	"github.com/vibast-solutions/ms-go-skywatch/app/tier"

	"golang.org/x/crypto/bcrypt"
)

var ErrStoreDown = errors.New("store unavailable")

// Store implements the key, quota and usage persistence used by
// service.Gateway. All methods are safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	nextID uint64
	keys   map[uint64]*entity.APIKey
	usage  []entity.Usage

	lookups int

	FailLookup    bool
	FailUsage     bool
	FailIncrement bool
}

func NewStore() *Store {
	return &Store{keys: make(map[uint64]*entity.APIKey)}
}

// AddKey stores a new active key and returns its plaintext secret and id.
// The hash uses the minimum bcrypt cost to keep tests fast.
func (s *Store) AddKey(tierName string, resetDate time.Time) (string, uint64) {
	rawKey, err := service.GenerateAPIKey()
	if err != nil {
		panic(err)
	}
	hash, err := service.HashAPIKey(rawKey, bcrypt.MinCost)
	if err != nil {
		panic(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.keys[s.nextID] = &entity.APIKey{
		ID:             s.nextID,
		UserID:         1,
		KeyHash:        hash,
		KeyPrefix:      service.KeyPrefix(rawKey),
		Name:           "test",
		Tier:           tierName,
		QuotaLimit:     tier.QuotaLimit(tierName),
		QuotaResetDate: resetDate,
		IsActive:       true,
		CreatedAt:      time.Now().UTC(),
	}
	return rawKey, s.nextID
}

// Update applies fn to the stored key.
func (s *Store) Update(id uint64, fn func(key *entity.APIKey)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key, ok := s.keys[id]; ok {
		fn(key)
	}
}

// Key returns a copy of the stored key.
func (s *Store) Key(id uint64) entity.APIKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.keys[id]
}

func (s *Store) Usage() []entity.Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.Usage, len(s.usage))
	copy(out, s.usage)
	return out
}

// Lookups counts FindByPrefix calls.
func (s *Store) Lookups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookups
}

func (s *Store) FindByPrefix(_ context.Context, prefix string) ([]*entity.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lookups++
	if s.FailLookup {
		return nil, ErrStoreDown
	}

	var keys []*entity.APIKey
	for _, key := range s.keys {
		if key.KeyPrefix == prefix {
			k := *key
			keys = append(keys, &k)
		}
	}
	return keys, nil
}

func (s *Store) ResetQuota(_ context.Context, id uint64, nextReset, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[id]
	if !ok || key.QuotaResetDate.After(now) {
		return false, nil
	}
	key.QuotaUsed = 0
	key.QuotaResetDate = nextReset
	return true, nil
}

func (s *Store) IncrementQuota(_ context.Context, id uint64, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailIncrement {
		return ErrStoreDown
	}
	if key, ok := s.keys[id]; ok {
		key.QuotaUsed++
		key.LastUsed.Time = usedAt
		key.LastUsed.Valid = true
	}
	return nil
}

func (s *Store) Create(_ context.Context, usage *entity.Usage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailUsage {
		return ErrStoreDown
	}
	usage.ID = uint64(len(s.usage) + 1)
	s.usage = append(s.usage, *usage)
	return nil
}

// NewGateway wires a gateway over store with an in-memory rate limiter.
func NewGateway(store *Store, opts ...service.GatewayOption) *service.Gateway {
	return service.NewGateway(
		service.NewKeyStore(store),
		service.NewQuotaTracker(store),
		ratelimit.NewSlidingWindowLimiter(ratelimit.NewMemoryStore()),
		service.NewUsageLedger(store),
		opts...,
	)
}
