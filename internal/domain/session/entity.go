// internal/domain/session/entity.go
package session

import (
	"time"
)

const (
	DefaultAbsoluteTimeout = 28800 // 8h
	DefaultIdleTimeout     = 1800  // 30m
	DefaultMaxSessions     = 5

	// AboutToExpireThreshold is the remaining lifetime under which clients get a warning.
	AboutToExpireThreshold = 5 * time.Minute
)

// Session is one authenticated client context owned by an account.
type Session struct {
	ID              string     `json:"id" db:"id"`
	AccountID       int64      `json:"account_id" db:"account_id"`
	Device          DeviceInfo `json:"device_info" db:"device_info"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	LastActivityAt  time.Time  `json:"last_activity_at" db:"last_activity_at"`
	ExpiresAt       time.Time  `json:"expires_at" db:"expires_at"`
	AbsoluteTimeout int        `json:"absolute_timeout" db:"absolute_timeout"`
	IdleTimeout     int        `json:"idle_timeout" db:"idle_timeout"`
	RememberMe      bool       `json:"remember_me" db:"remember_me"`
}

// IsExpired reports whether the absolute lifetime has passed.
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// IsIdleTimedOut reports whether the idle window has passed. Remember-me sessions never idle out.
func (s *Session) IsIdleTimedOut(now time.Time) bool {
	if s.RememberMe {
		return false
	}
	return now.After(s.LastActivityAt.Add(seconds(s.IdleTimeout)))
}

func (s *Session) IsValid(now time.Time) bool {
	return !s.IsExpired(now) && !s.IsIdleTimedOut(now)
}

// RemainingTTL is the time left until absolute expiry, never negative.
func (s *Session) RemainingTTL(now time.Time) time.Duration {
	d := s.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// IdleRemaining is the time left in the idle window. Remember-me sessions report the absolute remainder.
func (s *Session) IdleRemaining(now time.Time) time.Duration {
	if s.RememberMe {
		return s.RemainingTTL(now)
	}
	d := s.LastActivityAt.Add(seconds(s.IdleTimeout)).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

func (s *Session) AboutToExpire(now time.Time) bool {
	return s.RemainingTTL(now) < AboutToExpireThreshold
}

// Touch records activity at now. lastActivityAt never precedes createdAt.
func (s *Session) Touch(now time.Time) {
	if now.Before(s.CreatedAt) {
		now = s.CreatedAt
	}
	s.LastActivityAt = now
}

// Clone returns a copy safe to mutate independently.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
