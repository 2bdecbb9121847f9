// internal/pkg/session/types.go
package session

import (
	"context"
	"time"

	domain "authsession-service/internal/domain/session"
)

// Outcome is the result of a cache operation. Cache failures never surface
// as errors; they are reported as OutcomeUnavailable and the caller moves on.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeMiss
	OutcomeSkipped
	OutcomeUnavailable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeMiss:
		return "miss"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Degraded reports whether the cache could not be reached.
func (o Outcome) Degraded() bool {
	return o == OutcomeUnavailable
}

// Cache is the volatile projection of the session store.
type Cache interface {
	// Put caches s for ttl. A non-positive ttl is skipped.
	Put(ctx context.Context, s *domain.Session, ttl time.Duration) Outcome
	Get(ctx context.Context, id string) (*domain.Session, Outcome)
	Evict(ctx context.Context, id string) Outcome
	EvictAllForAccount(ctx context.Context, accountID int64) Outcome

	// IndexAdd records id under the account and keeps the index alive for at least ttl.
	IndexAdd(ctx context.Context, accountID int64, id string, ttl time.Duration) Outcome
	IndexRemove(ctx context.Context, accountID int64, id string) Outcome
	IndexMembers(ctx context.Context, accountID int64) ([]string, Outcome)

	Blacklist(ctx context.Context, tokenID string, ttl time.Duration) Outcome
	IsBlacklisted(ctx context.Context, tokenID string) (bool, Outcome)

	IsAvailable(ctx context.Context) bool
}

// Reason describes why a session left the active state.
type Reason string

const (
	ReasonLogout      Reason = "logout"
	ReasonExpired     Reason = "expired"
	ReasonIdleTimeout Reason = "idle_timeout"
	ReasonEvicted     Reason = "evicted"
	ReasonTerminated  Reason = "terminated"
	ReasonRevoked     Reason = "revoked"
)

// Listener is notified after a session has been removed from the durable store.
type Listener interface {
	SessionDestroyed(accountID int64, sessionID string, reason Reason)
}
