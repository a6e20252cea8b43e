package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when no active API key matches a hash.
var ErrNotFound = errors.New("api key not found")

// Scopes granted to API keys.
const (
	ScopeBookingsWrite = "bookings:write"
)

// APIKey holds the identity and permission data for a stored API key.
type APIKey struct {
	ID      string
	KeyHash string
	Name    string
	// CustomerID is the customer bookings made with this key are billed to.
	CustomerID string
	Scopes     []string
}

// HasScope reports whether the key grants scope.
func (k APIKey) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKey, error)
}

// Hash returns the raw and hex-encoded HMAC-SHA256 of key under pepper.
// Only hashes are stored.
func Hash(pepper []byte, key string) ([]byte, string) {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	sum := mac.Sum(nil)
	return sum, hex.EncodeToString(sum)
}
