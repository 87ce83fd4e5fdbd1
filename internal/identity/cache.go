package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// TokenCache stores verified identities keyed by a token digest.
type TokenCache interface {
	// Get returns the cached identity; ok is false on a miss.
	Get(ctx context.Context, key string) (id Identity, ok bool, err error)
	// Set stores id for ttl.
	Set(ctx context.Context, key string, id Identity, ttl time.Duration) error
}

// CachingVerifier memoizes successful verifications of Next in Cache.
// Entries live for TTL, or until the token expires if that is sooner.
// Cache errors are logged and never fail a request.
type CachingVerifier struct {
	Next  Verifier
	Cache TokenCache
	TTL   time.Duration
	Now   func() time.Time
}

// NewCachingVerifier wraps next with cache.
func NewCachingVerifier(next Verifier, cache TokenCache, ttl time.Duration) *CachingVerifier {
	return &CachingVerifier{Next: next, Cache: cache, TTL: ttl, Now: time.Now}
}

// Verify implements Verifier.
func (v *CachingVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	now := time.Now()
	if v.Now != nil {
		now = v.Now()
	}
	key := TokenKey(token)

	id, ok, err := v.Cache.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Msg("token cache get failed")
	}
	if ok && id.ExpiresAt.After(now) {
		return id, nil
	}

	id, err = v.Next.Verify(ctx, token)
	if err != nil {
		return Identity{}, err
	}

	ttl := v.TTL
	if remaining := id.ExpiresAt.Sub(now); remaining < ttl {
		ttl = remaining
	}
	if ttl > 0 {
		if err := v.Cache.Set(ctx, key, id, ttl); err != nil {
			log.Warn().Err(err).Msg("token cache set failed")
		}
	}
	return id, nil
}

// TokenKey returns the hex SHA-256 of token. Raw tokens are never stored.
func TokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// tokenKeyPrefix namespaces cache entries in a shared Redis.
const tokenKeyPrefix = "authtoken:"

// RedisTokenCache is a TokenCache backed by Redis hashes.
type RedisTokenCache struct {
	client *redis.Client
}

// NewRedisTokenCache connects to redisURL and verifies the connection.
func NewRedisTokenCache(ctx context.Context, redisURL string) (*RedisTokenCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Connection pool settings
	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return &RedisTokenCache{client: client}, nil
}

// Get implements TokenCache.
func (c *RedisTokenCache) Get(ctx context.Context, key string) (Identity, bool, error) {
	fields, err := c.client.HGetAll(ctx, tokenKeyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Identity{}, false, nil
		}
		return Identity{}, false, fmt.Errorf("redis hgetall failed: %w", err)
	}
	if len(fields) == 0 || fields["user_id"] == "" {
		return Identity{}, false, nil
	}
	exp, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return Identity{}, false, nil
	}
	return Identity{
		UserID:    fields["user_id"],
		Email:     fields["email"],
		ExpiresAt: time.Unix(exp, 0),
	}, true, nil
}

// Set implements TokenCache.
func (c *RedisTokenCache) Set(ctx context.Context, key string, id Identity, ttl time.Duration) error {
	k := tokenKeyPrefix + key
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, k, map[string]any{
			"user_id":    id.UserID,
			"email":      id.Email,
			"expires_at": strconv.FormatInt(id.ExpiresAt.Unix(), 10),
		})
		pipe.Expire(ctx, k, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set token failed: %w", err)
	}
	return nil
}

// Ping checks Redis connectivity.
func (c *RedisTokenCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *RedisTokenCache) Close() error {
	return c.client.Close()
}
