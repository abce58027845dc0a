package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stocktally/stocktally/internal/shared"
)

// TokenStore keeps issued bearer tokens in Redis with a TTL. Tokens are
// opaque UUIDs; expiry is enforced by Redis key expiration.
type TokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTokenStore constructs a TokenStore.
func NewTokenStore(client *redis.Client, ttl time.Duration) *TokenStore {
	return &TokenStore{client: client, ttl: ttl}
}

// Issue mints and stores a fresh token.
func (s *TokenStore) Issue(ctx context.Context) (string, error) {
	if s == nil {
		return "", errors.New("token store not initialised")
	}
	token := uuid.NewString()
	if err := s.client.Set(ctx, s.redisKey(token), "1", s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Verify checks a presented token. Unknown or expired tokens report
// shared.ErrTokenInvalid.
func (s *TokenStore) Verify(ctx context.Context, token string) error {
	if s == nil {
		return errors.New("token store not initialised")
	}
	if token == "" {
		return shared.ErrTokenInvalid
	}
	if err := s.client.Get(ctx, s.redisKey(token)).Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return shared.ErrTokenInvalid
		}
		return err
	}
	return nil
}

// Revoke deletes a token ahead of its natural expiry.
func (s *TokenStore) Revoke(ctx context.Context, token string) error {
	if s == nil {
		return nil
	}
	return s.client.Del(ctx, s.redisKey(token)).Err()
}

// TTL exposes the configured token lifetime.
func (s *TokenStore) TTL() time.Duration {
	return s.ttl
}

func (s *TokenStore) redisKey(token string) string {
	return "token:" + token
}
