// internal/domain/session/repository.go
package session

import (
	"context"
	"time"
)

// Store is the durable system of record for sessions.
// Failures are fatal and must be returned to the caller.
type Store interface {
	// Save inserts or replaces the session keyed by ID.
	Save(ctx context.Context, s *Session) (*Session, error)
	// FindByID returns nil, nil when the session does not exist.
	FindByID(ctx context.Context, id string) (*Session, error)
	FindAllByAccount(ctx context.Context, accountID int64) ([]*Session, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	CountByAccount(ctx context.Context, accountID int64) (int, error)
}
