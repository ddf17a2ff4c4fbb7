package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-skywatch/app/dto"
	"github.com/vibast-solutions/ms-go-skywatch/app/entity"
	"github.com/vibast-solutions/ms-go-skywatch/app/tier"
	"github.com/vibast-solutions/ms-go-skywatch/config"
)

const (
	topEndpointsLimit   = 5
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
)

var (
	ErrAPIKeyNotFound  = errors.New("api key not found")
	ErrInvalidTier     = errors.New("invalid tier")
	ErrAPIKeyNameEmpty = errors.New("api key name is required")
)

type KeyLimitError struct {
	Max int
}

func (e *KeyLimitError) Error() string {
	return fmt.Sprintf("maximum number of api keys reached (%d)", e.Max)
}

type apiKeyRepository interface {
	Create(ctx context.Context, key *entity.APIKey) error
	FindByID(ctx context.Context, id uint64) (*entity.APIKey, error)
	FindActiveByIDForUser(ctx context.Context, id, userID uint64) (*entity.APIKey, error)
	ListActiveByUser(ctx context.Context, userID uint64) ([]*entity.APIKey, error)
	ListByUser(ctx context.Context, userID uint64) ([]*entity.APIKey, error)
	CountActiveByUser(ctx context.Context, userID uint64) (int, error)
	UpdateSecret(ctx context.Context, id uint64, keyHash, keyPrefix string) error
	Deactivate(ctx context.Context, id uint64) (bool, error)
	UpdateTier(ctx context.Context, id uint64, tierName string) error
	UpdateTierAndQuota(ctx context.Context, id uint64, tierName string, quotaLimit int64) error
}

type usageReader interface {
	CountByAPIKey(ctx context.Context, apiKeyID uint64) (int64, error)
	CountByAPIKeySince(ctx context.Context, apiKeyID uint64, since time.Time) (int64, error)
	TopEndpoints(ctx context.Context, apiKeyID uint64, limit int) ([]entity.EndpointCount, error)
	ListRecent(ctx context.Context, apiKeyID uint64, limit int) ([]*entity.Usage, error)
}

type APIKeyService interface {
	Create(ctx context.Context, userID uint64, name, tierName string) (*dto.IssuedAPIKey, error)
	List(ctx context.Context, userID uint64, includeInactive bool) ([]*entity.APIKey, error)
	Regenerate(ctx context.Context, userID, keyID uint64) (*dto.IssuedAPIKey, error)
	Deactivate(ctx context.Context, userID, keyID uint64) error
	SetTier(ctx context.Context, keyID uint64, tierName string, syncQuota bool) (*entity.APIKey, error)
	UsageStats(ctx context.Context, key *entity.APIKey) (*dto.UsageStats, error)
	UsageHistory(ctx context.Context, key *entity.APIKey, limit int) ([]*entity.Usage, error)
}

type apiKeyService struct {
	keyRepo   apiKeyRepository
	usageRepo usageReader
	cfg       *config.Config
	now       func() time.Time
}

func NewAPIKeyService(keyRepo apiKeyRepository, usageRepo usageReader, cfg *config.Config) APIKeyService {
	return &apiKeyService{
		keyRepo:   keyRepo,
		usageRepo: usageRepo,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *apiKeyService) Create(ctx context.Context, userID uint64, name, tierName string) (*dto.IssuedAPIKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrAPIKeyNameEmpty
	}
	if tierName == "" {
		tierName = tier.Free
	}
	if err := tier.Validate(tierName); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTier, err.Error())
	}

	active, err := s.keyRepo.CountActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.cfg.MaxActiveKeysPerUser > 0 && active >= s.cfg.MaxActiveKeysPerUser {
		return nil, &KeyLimitError{Max: s.cfg.MaxActiveKeysPerUser}
	}

	rawKey, keyHash, err := s.newSecret()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	key := &entity.APIKey{
		UserID:         userID,
		KeyHash:        keyHash,
		KeyPrefix:      KeyPrefix(rawKey),
		Name:           name,
		Tier:           tierName,
		QuotaLimit:     tier.QuotaLimit(tierName),
		QuotaUsed:      0,
		QuotaResetDate: NextQuotaResetDate(now),
		IsActive:       true,
		CreatedAt:      now,
	}
	if err = s.keyRepo.Create(ctx, key); err != nil {
		return nil, err
	}

	return &dto.IssuedAPIKey{Key: key, PlainKey: rawKey}, nil
}

func (s *apiKeyService) List(ctx context.Context, userID uint64, includeInactive bool) ([]*entity.APIKey, error) {
	if includeInactive {
		return s.keyRepo.ListByUser(ctx, userID)
	}
	return s.keyRepo.ListActiveByUser(ctx, userID)
}

func (s *apiKeyService) Regenerate(ctx context.Context, userID, keyID uint64) (*dto.IssuedAPIKey, error) {
	key, err := s.keyRepo.FindActiveByIDForUser(ctx, keyID, userID)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, ErrAPIKeyNotFound
	}

	rawKey, keyHash, err := s.newSecret()
	if err != nil {
		return nil, err
	}

	prefix := KeyPrefix(rawKey)
	if err = s.keyRepo.UpdateSecret(ctx, key.ID, keyHash, prefix); err != nil {
		return nil, err
	}

	key.KeyHash = keyHash
	key.KeyPrefix = prefix
	key.LastUsed.Valid = false
	return &dto.IssuedAPIKey{Key: key, PlainKey: rawKey}, nil
}

func (s *apiKeyService) Deactivate(ctx context.Context, userID, keyID uint64) error {
	key, err := s.keyRepo.FindActiveByIDForUser(ctx, keyID, userID)
	if err != nil {
		return err
	}
	if key == nil {
		return ErrAPIKeyNotFound
	}

	_, err = s.keyRepo.Deactivate(ctx, key.ID)
	return err
}

// SetTier changes the tier of a key. The hourly rate limit follows the tier
// on the next request; the monthly quota limit only changes with syncQuota.
func (s *apiKeyService) SetTier(ctx context.Context, keyID uint64, tierName string, syncQuota bool) (*entity.APIKey, error) {
	if err := tier.Validate(tierName); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTier, err.Error())
	}

	key, err := s.keyRepo.FindByID(ctx, keyID)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, ErrAPIKeyNotFound
	}

	if syncQuota {
		limit := tier.QuotaLimit(tierName)
		if err = s.keyRepo.UpdateTierAndQuota(ctx, key.ID, tierName, limit); err != nil {
			return nil, err
		}
		key.QuotaLimit = limit
	} else if err = s.keyRepo.UpdateTier(ctx, key.ID, tierName); err != nil {
		return nil, err
	}

	key.Tier = tierName
	return key, nil
}

func (s *apiKeyService) UsageStats(ctx context.Context, key *entity.APIKey) (*dto.UsageStats, error) {
	total, err := s.usageRepo.CountByAPIKey(ctx, key.ID)
	if err != nil {
		return nil, err
	}

	thisMonth, err := s.usageRepo.CountByAPIKeySince(ctx, key.ID, StartOfMonth(s.now()))
	if err != nil {
		return nil, err
	}

	top, err := s.usageRepo.TopEndpoints(ctx, key.ID, topEndpointsLimit)
	if err != nil {
		return nil, err
	}

	return &dto.UsageStats{
		TotalRequests:     total,
		RequestsThisMonth: thisMonth,
		QuotaLimit:        key.QuotaLimit,
		QuotaUsed:         key.QuotaUsed,
		QuotaRemaining:    key.QuotaRemaining(),
		QuotaResetDate:    key.QuotaResetDate,
		MostUsedEndpoints: top,
	}, nil
}

func (s *apiKeyService) UsageHistory(ctx context.Context, key *entity.APIKey, limit int) ([]*entity.Usage, error) {
	return s.usageRepo.ListRecent(ctx, key.ID, ClampHistoryLimit(limit))
}

func (s *apiKeyService) newSecret() (string, string, error) {
	rawKey, err := GenerateAPIKey()
	if err != nil {
		return "", "", err
	}

	keyHash, err := HashAPIKey(rawKey, s.cfg.APIKeyBcryptCost)
	if err != nil {
		return "", "", err
	}
	return rawKey, keyHash, nil
}

func ClampHistoryLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}
