package handler

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/arena-booking/internal/domain/auth"
	"github.com/xenking/arena-booking/pkg/httpmiddleware"
)

// APIKeyHeader carries the caller's API key.
const APIKeyHeader = "api_key"

type apiKeyCtx struct{}

// KeyFromContext returns the API key authenticated by Security.Require.
func KeyFromContext(ctx context.Context) (*auth.APIKey, bool) {
	k, ok := ctx.Value(apiKeyCtx{}).(*auth.APIKey)
	return k, ok
}

// Security authenticates requests via HMAC-SHA256 hashed API keys.
type Security struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurity creates a Security with the given API key repository and HMAC
// pepper.
func NewSecurity(apikeys auth.Repository, pepper []byte) *Security {
	return &Security{apikeys: apikeys, pepper: pepper}
}

// Authenticate resolves the API key sent by the caller.
func (s *Security) Authenticate(ctx context.Context, key string) (*auth.APIKey, error) {
	if key == "" {
		return nil, errors.New("missing api key")
	}
	sum, hexHash := auth.Hash(s.pepper, key)

	info, err := s.apikeys.FindByHash(ctx, hexHash)
	if err != nil {
		return nil, errors.Wrap(err, "find api key")
	}

	// The stored hash is compared in constant time even though the lookup
	// matched on it.
	stored, err := hex.DecodeString(info.KeyHash)
	if err != nil {
		return nil, errors.Wrap(err, "decode stored hash")
	}
	if subtle.ConstantTimeCompare(sum, stored) != 1 {
		return nil, errors.New("api key hash mismatch")
	}
	return info, nil
}

// Require rejects requests without a valid API key carrying scope.
func (s *Security) Require(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key, err := s.Authenticate(ctx, r.Header.Get(APIKeyHeader))
			if err != nil {
				if !errors.Is(err, auth.ErrNotFound) {
					zctx.From(ctx).Debug("Authentication failed", zap.Error(err))
				}
				writeUnauthorized(w)
				return
			}
			if !key.HasScope(scope) {
				httpmiddleware.WriteError(w, http.StatusForbidden, "api key lacks scope "+scope)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, apiKeyCtx{}, key)))
		})
	}
}
