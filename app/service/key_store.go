package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vibast-solutions/ms-go-skywatch/app/entity"
)

var (
	ErrMissingAPIKey  = errors.New("api key required")
	ErrInvalidAPIKey  = errors.New("invalid or revoked api key")
	ErrAPIKeyDisabled = errors.New("api key disabled")

	// ErrKeyValidationUnavailable wraps any internal failure while resolving
	// or checking a key. Callers must deny the request.
	ErrKeyValidationUnavailable = errors.New("unable to validate api key")
)

type apiKeyFinder interface {
	FindByPrefix(ctx context.Context, prefix string) ([]*entity.APIKey, error)
}

// KeyStore resolves presented secrets to key records. The stored prefix
// narrows the candidates; a bcrypt comparison against each candidate's hash
// makes the decision.
type KeyStore struct {
	repo apiKeyFinder
}

func NewKeyStore(repo apiKeyFinder) *KeyStore {
	return &KeyStore{repo: repo}
}

func (s *KeyStore) Authenticate(ctx context.Context, rawKey string) (*entity.APIKey, error) {
	rawKey = strings.TrimSpace(rawKey)
	if rawKey == "" {
		return nil, ErrMissingAPIKey
	}

	prefix := KeyPrefix(rawKey)
	if prefix == "" {
		return nil, ErrInvalidAPIKey
	}

	candidates, err := s.repo.FindByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyValidationUnavailable, err)
	}

	for _, key := range candidates {
		if !VerifyAPIKey(rawKey, key.KeyHash) {
			continue
		}
		if !key.IsActive {
			return nil, ErrAPIKeyDisabled
		}
		return key, nil
	}

	return nil, ErrInvalidAPIKey
}
