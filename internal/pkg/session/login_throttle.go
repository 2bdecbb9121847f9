// internal/pkg/session/login_throttle.go
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"authsession-service/internal/pkg/logger"
	"authsession-service/internal/pkg/metrics"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DefaultMaxLoginFailures = 5
	DefaultLockDuration     = 1800 * time.Second
)

// LoginThrottle counts failed logins per identifier. The window starts at the
// first failure and is never extended. Redis failures count as zero failures.
type LoginThrottle struct {
	client       redis.UniversalClient
	logger       *zap.Logger
	maxFailures  int64
	lockDuration time.Duration
	opTimeout    time.Duration
}

func NewLoginThrottle(client redis.UniversalClient, log *zap.Logger, maxFailures int64, lockDuration time.Duration) *LoginThrottle {
	if maxFailures <= 0 {
		maxFailures = DefaultMaxLoginFailures
	}
	if lockDuration <= 0 {
		lockDuration = DefaultLockDuration
	}
	return &LoginThrottle{
		client:       client,
		logger:       logger.OrNop(log),
		maxFailures:  maxFailures,
		lockDuration: lockDuration,
		opTimeout:    defaultCacheOpTimeout,
	}
}

// WithTimeout bounds every Redis call made by the throttle.
func (t *LoginThrottle) WithTimeout(d time.Duration) *LoginThrottle {
	if d > 0 {
		t.opTimeout = d
	}
	return t
}

func (t *LoginThrottle) MaxFailures() int64 {
	return t.maxFailures
}

// RecordFailure increments the counter and returns the new count. INCR and
// EXPIRE NX run in one transaction: the window is set by the first failure and
// never extended, and a counter left without a TTL gets one on the next failure.
func (t *LoginThrottle) RecordFailure(ctx context.Context, identifier string) int64 {
	key := loginFailureKey(identifier)
	ctx, cancel := t.opContext(ctx)
	defer cancel()

	var incr *redis.IntCmd
	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, t.lockDuration)
		return nil
	})
	if err != nil {
		t.logger.Warn("failed to record login failure", zap.String("identifier", identifier), zap.Error(err))
		return 0
	}

	metrics.LoginFailures.Inc()
	return incr.Val()
}

func (t *LoginThrottle) FailureCount(ctx context.Context, identifier string) int64 {
	ctx, cancel := t.opContext(ctx)
	defer cancel()

	count, err := t.client.Get(ctx, loginFailureKey(identifier)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0
	}
	if err != nil {
		t.logger.Warn("failed to read login failures", zap.String("identifier", identifier), zap.Error(err))
		return 0
	}
	return count
}

// RemainingAttempts returns how many failures are left before lockout.
func (t *LoginThrottle) RemainingAttempts(ctx context.Context, identifier string) int64 {
	remaining := t.maxFailures - t.FailureCount(ctx, identifier)
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

func (t *LoginThrottle) Reset(ctx context.Context, identifier string) {
	ctx, cancel := t.opContext(ctx)
	defer cancel()

	if err := t.client.Del(ctx, loginFailureKey(identifier)).Err(); err != nil {
		t.logger.Warn("failed to reset login failures", zap.String("identifier", identifier), zap.Error(err))
	}
}

func (t *LoginThrottle) IsLocked(ctx context.Context, identifier string) bool {
	return t.FailureCount(ctx, identifier) >= t.maxFailures
}

// RemainingLockSeconds returns 0 when not locked. If the window cannot be read
// the full lock duration is assumed.
func (t *LoginThrottle) RemainingLockSeconds(ctx context.Context, identifier string) int64 {
	if !t.IsLocked(ctx, identifier) {
		return 0
	}

	ctx, cancel := t.opContext(ctx)
	defer cancel()

	ttl, err := t.client.TTL(ctx, loginFailureKey(identifier)).Result()
	if err != nil {
		t.logger.Warn("failed to read login lock ttl", zap.String("identifier", identifier), zap.Error(err))
		return int64(t.lockDuration.Seconds())
	}

	switch {
	case ttl == -2:
		// key expired between the two reads
		return 0
	case ttl < 0:
		return int64(t.lockDuration.Seconds())
	default:
		return int64(ttl.Seconds())
	}
}

// Unlock clears a lockout ahead of its window.
func (t *LoginThrottle) Unlock(ctx context.Context, identifier string) {
	t.Reset(ctx, identifier)
	t.logger.Info("login lock cleared", zap.String("identifier", identifier))
}

func (t *LoginThrottle) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, t.opTimeout)
}

func loginFailureKey(identifier string) string {
	return fmt.Sprintf("login:fail:%s", strings.ToLower(strings.TrimSpace(identifier)))
}
