package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/auctionhouse/go/internal/models"
)

const tokenKeyPrefix = "auction:token:"

// CachedResolver keeps resolved tokens in Redis for a short TTL so every bid does
// not hit the database. Invalid tokens are never cached. Redis failures fall
// through to the wrapped resolver.
type CachedResolver struct {
	next   Resolver
	client redis.Cmdable
	ttl    time.Duration
}

func NewCachedResolver(next Resolver, client redis.Cmdable, ttl time.Duration) *CachedResolver {
	return &CachedResolver{next: next, client: client, ttl: ttl}
}

func (c *CachedResolver) Resolve(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	key := tokenKey(token)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var user models.User
		if err := json.Unmarshal(raw, &user); err == nil {
			return &user, nil
		}
		log.Warn().Str("key", key).Msg("discarding unreadable cached identity")
	case !errors.Is(err, redis.Nil):
		log.Warn().Err(err).Msg("token cache read failed")
	}

	user, err := c.next.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(user); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			log.Warn().Err(err).Msg("token cache write failed")
		}
	}
	return user, nil
}

// Tokens are hashed so raw credentials never reach Redis.
func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return tokenKeyPrefix + hex.EncodeToString(sum[:])
}
