package service

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	APIKeyPrefix = "sk_live_"
	// KeyPrefixLength is how much of a key is stored in clear for lookup
	// narrowing and display: the literal prefix plus 8 hex characters.
	KeyPrefixLength = 16
	// APIKeyLength is len(APIKeyPrefix) plus the hex encoded secret. It is
	// also the bcrypt input limit; longer input is truncated by bcrypt.
	APIKeyLength = 72

	apiKeySecretBytes = 32
)

// GenerateAPIKey returns a new plaintext key: sk_live_ followed by 64 hex
// characters.
func GenerateAPIKey() (string, error) {
	secret := make([]byte, apiKeySecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", err
	}
	return APIKeyPrefix + hex.EncodeToString(secret), nil
}

func HashAPIKey(rawKey string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyAPIKey reports whether rawKey matches hash. A malformed hash is a
// mismatch.
func VerifyAPIKey(rawKey, hash string) bool {
	if len(rawKey) > APIKeyLength {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(rawKey)) == nil
}

// KeyPrefix returns the stored lookup prefix of rawKey, or "" when rawKey
// cannot be one of ours.
func KeyPrefix(rawKey string) string {
	if !strings.HasPrefix(rawKey, APIKeyPrefix) || len(rawKey) != APIKeyLength {
		return ""
	}
	return rawKey[:KeyPrefixLength]
}
