// internal/pkg/session/redis_cache.go
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "authsession-service/internal/domain/session"
	"authsession-service/internal/pkg/logger"
	"authsession-service/internal/pkg/metrics"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultCacheOpTimeout = 500 * time.Millisecond

// RedisCache implements Cache on top of Redis. Every connectivity failure is
// logged and reported as OutcomeUnavailable.
type RedisCache struct {
	client    redis.UniversalClient
	logger    *zap.Logger
	opTimeout time.Duration
}

func NewRedisCache(client redis.UniversalClient, log *zap.Logger) *RedisCache {
	return &RedisCache{
		client:    client,
		logger:    logger.OrNop(log),
		opTimeout: defaultCacheOpTimeout,
	}
}

// WithTimeout bounds every cache call so an unreachable Redis returns quickly.
func (c *RedisCache) WithTimeout(d time.Duration) *RedisCache {
	if d > 0 {
		c.opTimeout = d
	}
	return c
}

func (c *RedisCache) Put(ctx context.Context, s *domain.Session, ttl time.Duration) Outcome {
	if s == nil || ttl <= 0 {
		return c.record("put", OutcomeSkipped)
	}

	data, err := json.Marshal(s)
	if err != nil {
		c.logger.Error("failed to marshal session", zap.String("session_id", s.ID), zap.Error(err))
		return c.record("put", OutcomeSkipped)
	}

	ctx, cancel := c.bound(ctx)
	defer cancel()

	if err := c.client.Set(ctx, sessionKey(s.ID), data, ttl).Err(); err != nil {
		return c.unavailable("put", err)
	}
	return c.record("put", OutcomeOK)
}

func (c *RedisCache) Get(ctx context.Context, id string) (*domain.Session, Outcome) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	data, err := c.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, c.record("get", OutcomeMiss)
	}
	if err != nil {
		return nil, c.unavailable("get", err)
	}

	var s domain.Session
	if err := json.Unmarshal(data, &s); err != nil {
		c.logger.Warn("corrupted session in cache, evicting",
			zap.String("session_id", id),
			zap.Error(err),
		)
		c.client.Del(ctx, sessionKey(id))
		return nil, c.record("get", OutcomeMiss)
	}
	return &s, c.record("get", OutcomeOK)
}

func (c *RedisCache) Evict(ctx context.Context, id string) Outcome {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	if err := c.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return c.unavailable("evict", err)
	}
	return c.record("evict", OutcomeOK)
}

func (c *RedisCache) EvictAllForAccount(ctx context.Context, accountID int64) Outcome {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	ids, err := c.client.SMembers(ctx, accountIndexKey(accountID)).Result()
	if err != nil {
		return c.unavailable("evict_all", err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKey(id))
	}
	keys = append(keys, accountIndexKey(accountID))

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return c.unavailable("evict_all", err)
	}
	return c.record("evict_all", OutcomeOK)
}

func (c *RedisCache) IndexAdd(ctx context.Context, accountID int64, id string, ttl time.Duration) Outcome {
	if ttl <= 0 {
		return c.record("index_add", OutcomeSkipped)
	}

	ctx, cancel := c.bound(ctx)
	defer cancel()

	key := accountIndexKey(accountID)
	pipe := c.client.Pipeline()
	pipe.SAdd(ctx, key, id)
	current := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return c.unavailable("index_add", err)
	}

	// the index lives as long as its longest-lived member
	if current.Val() < ttl {
		if err := c.client.Expire(ctx, key, ttl).Err(); err != nil {
			return c.unavailable("index_add", err)
		}
	}
	return c.record("index_add", OutcomeOK)
}

func (c *RedisCache) IndexRemove(ctx context.Context, accountID int64, id string) Outcome {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	if err := c.client.SRem(ctx, accountIndexKey(accountID), id).Err(); err != nil {
		return c.unavailable("index_remove", err)
	}
	return c.record("index_remove", OutcomeOK)
}

func (c *RedisCache) IndexMembers(ctx context.Context, accountID int64) ([]string, Outcome) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	ids, err := c.client.SMembers(ctx, accountIndexKey(accountID)).Result()
	if err != nil {
		return nil, c.unavailable("index_members", err)
	}
	if len(ids) == 0 {
		return nil, c.record("index_members", OutcomeMiss)
	}
	return ids, c.record("index_members", OutcomeOK)
}

func (c *RedisCache) Blacklist(ctx context.Context, tokenID string, ttl time.Duration) Outcome {
	if tokenID == "" || ttl <= 0 {
		return c.record("blacklist", OutcomeSkipped)
	}

	ctx, cancel := c.bound(ctx)
	defer cancel()

	if err := c.client.Set(ctx, blacklistKey(tokenID), "1", ttl).Err(); err != nil {
		return c.unavailable("blacklist", err)
	}
	return c.record("blacklist", OutcomeOK)
}

// IsBlacklisted reports false when Redis is unreachable.
func (c *RedisCache) IsBlacklisted(ctx context.Context, tokenID string) (bool, Outcome) {
	if tokenID == "" {
		return false, c.record("is_blacklisted", OutcomeSkipped)
	}

	ctx, cancel := c.bound(ctx)
	defer cancel()

	n, err := c.client.Exists(ctx, blacklistKey(tokenID)).Result()
	if err != nil {
		return false, c.unavailable("is_blacklisted", err)
	}
	if n == 0 {
		return false, c.record("is_blacklisted", OutcomeMiss)
	}
	return true, c.record("is_blacklisted", OutcomeOK)
}

func (c *RedisCache) IsAvailable(ctx context.Context) bool {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	return c.client.Ping(ctx).Err() == nil
}

func (c *RedisCache) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.opTimeout)
}

func (c *RedisCache) unavailable(op string, err error) Outcome {
	c.logger.Warn("session cache unavailable",
		zap.String("op", op),
		zap.Error(err),
	)
	return c.record(op, OutcomeUnavailable)
}

func (c *RedisCache) record(op string, o Outcome) Outcome {
	metrics.CacheOperations.WithLabelValues(op, o.String()).Inc()
	return o
}

// Helper functions

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}

func accountIndexKey(accountID int64) string {
	return fmt.Sprintf("session:user:%d", accountID)
}

func blacklistKey(tokenID string) string {
	return fmt.Sprintf("token:blacklist:%s", tokenID)
}
