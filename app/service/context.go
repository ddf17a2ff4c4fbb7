package service

import (
	"context"

	"github.com/vibast-solutions/ms-go-skywatch/app/entity"
)

type apiKeyContextKey struct{}

// WithAPIKey attaches the key resolved by the gateway to ctx.
func WithAPIKey(ctx context.Context, key *entity.APIKey) context.Context {
	return context.WithValue(ctx, apiKeyContextKey{}, key)
}

func APIKeyFromContext(ctx context.Context) (*entity.APIKey, bool) {
	key, ok := ctx.Value(apiKeyContextKey{}).(*entity.APIKey)
	return key, ok && key != nil
}
