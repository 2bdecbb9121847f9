// internal/pkg/session/manager.go
package session

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	domain "authsession-service/internal/domain/session"
	xerrors "authsession-service/internal/pkg/errors"
	"authsession-service/internal/pkg/logger"
	"authsession-service/internal/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager orchestrates the durable store and the cache. Writes and deletes
// always hit the store first; the cache is updated best-effort afterwards.
type Manager struct {
	store       domain.Store
	cache       Cache
	logger      *zap.Logger
	maxSessions int
	listeners   []Listener
	now         func() time.Time
	newID       func() string
}

type ManagerOption func(*Manager)

func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

func WithMaxSessions(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.maxSessions = n
		}
	}
}

func WithIDGenerator(gen func() string) ManagerOption {
	return func(m *Manager) { m.newID = gen }
}

func WithListener(l Listener) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.listeners = append(m.listeners, l)
		}
	}
}

func NewManager(store domain.Store, cache Cache, log *zap.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:       store,
		cache:       cache,
		logger:      logger.OrNop(log),
		maxSessions: domain.DefaultMaxSessions,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) MaxSessions() int {
	return m.maxSessions
}

// CreateSession persists a new session for accountID, evicting the oldest
// sessions first when the account is at its cap. Zero timeouts use the defaults.
func (m *Manager) CreateSession(ctx context.Context, accountID int64, device *domain.DeviceInfo, absoluteTimeout, idleTimeout int, rememberMe bool) (*domain.Session, error) {
	if accountID <= 0 {
		return nil, fmt.Errorf("%w: account id is required", xerrors.ErrInvalidArgument)
	}
	if device == nil {
		return nil, fmt.Errorf("%w: device info is required", xerrors.ErrInvalidArgument)
	}
	if absoluteTimeout < 0 || idleTimeout < 0 {
		return nil, fmt.Errorf("%w: timeouts must not be negative", xerrors.ErrInvalidArgument)
	}
	if absoluteTimeout == 0 {
		absoluteTimeout = domain.DefaultAbsoluteTimeout
	}
	if idleTimeout == 0 {
		idleTimeout = domain.DefaultIdleTimeout
	}

	if _, err := m.EnforceSessionLimit(ctx, accountID, m.maxSessions); err != nil {
		return nil, err
	}

	now := m.now()
	s := &domain.Session{
		ID:              m.newID(),
		AccountID:       accountID,
		Device:          *device,
		CreatedAt:       now,
		LastActivityAt:  now,
		ExpiresAt:       now.Add(time.Duration(absoluteTimeout) * time.Second),
		AbsoluteTimeout: absoluteTimeout,
		IdleTimeout:     idleTimeout,
		RememberMe:      rememberMe,
	}

	saved, err := m.store.Save(ctx, s)
	if err != nil {
		return nil, err
	}

	m.cacheSession(ctx, saved, now)
	metrics.SessionsCreated.Inc()

	m.logger.Info("session created",
		zap.String("session_id", saved.ID),
		zap.Int64("account_id", accountID),
		zap.String("device", string(saved.Device.DeviceType)),
		zap.Bool("remember_me", rememberMe),
	)
	return saved, nil
}

// ValidateAndRefreshSession resolves id, destroys it when it has expired or
// idled out, and otherwise records activity.
func (m *Manager) ValidateAndRefreshSession(ctx context.Context, id string) (*domain.Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: session id is required", xerrors.ErrInvalidArgument)
	}

	s, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}

	now := m.now()
	if s.IsExpired(now) {
		return nil, m.terminate(ctx, s, ReasonExpired, xerrors.ErrSessionExpired)
	}
	if s.IsIdleTimedOut(now) {
		return nil, m.terminate(ctx, s, ReasonIdleTimeout, xerrors.ErrSessionIdleTimeout)
	}

	s.Touch(now)
	if _, err := m.store.Save(ctx, s); err != nil {
		m.logger.Warn("failed to persist session activity",
			zap.String("session_id", s.ID),
			zap.Error(err),
		)
	}
	m.cache.Put(ctx, s, s.RemainingTTL(now))

	return s, nil
}

// DestroySession removes id from both stores. Unknown ids are not an error.
func (m *Manager) DestroySession(ctx context.Context, id string) error {
	return m.DestroySessionWithReason(ctx, id, ReasonLogout)
}

func (m *Manager) DestroySessionWithReason(ctx context.Context, id string, reason Reason) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: session id is required", xerrors.ErrInvalidArgument)
	}

	var accountID int64
	existing, err := m.store.FindByID(ctx, id)
	if err != nil {
		m.logger.Warn("failed to look up session owner before destroy",
			zap.String("session_id", id),
			zap.Error(err),
		)
	}
	if existing != nil {
		accountID = existing.AccountID
	} else if cached, _ := m.cache.Get(ctx, id); cached != nil {
		accountID = cached.AccountID
	}

	return m.destroy(ctx, id, accountID, reason)
}

// FindUserSessions returns the account's sessions from the durable store, newest first.
func (m *Manager) FindUserSessions(ctx context.Context, accountID int64) ([]*domain.Session, error) {
	if accountID <= 0 {
		return nil, fmt.Errorf("%w: account id is required", xerrors.ErrInvalidArgument)
	}

	sessions, err := m.store.FindAllByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// EnforceSessionLimit destroys the oldest sessions so that one more fits under
// maxSessions. It returns how many were evicted.
func (m *Manager) EnforceSessionLimit(ctx context.Context, accountID int64, maxSessions int) (int, error) {
	if maxSessions <= 0 {
		return 0, fmt.Errorf("%w: max sessions must be positive", xerrors.ErrInvalidArgument)
	}

	sessions, err := m.store.FindAllByAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}

	excess := len(sessions) - maxSessions + 1
	if excess <= 0 {
		return 0, nil
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})

	evicted := 0
	for _, s := range sessions[:excess] {
		if err := m.destroy(ctx, s.ID, s.AccountID, ReasonEvicted); err != nil {
			m.logger.Error("failed to evict session",
				zap.String("session_id", s.ID),
				zap.Int64("account_id", accountID),
				zap.Error(err),
			)
			continue
		}
		evicted++
	}

	if evicted > 0 {
		m.logger.Info("session limit enforced",
			zap.Int64("account_id", accountID),
			zap.Int("evicted", evicted),
			zap.Int("max_sessions", maxSessions),
		)
	}
	return evicted, nil
}

// CheckIPChange reports whether currentIP differs from the IP recorded at
// creation. It never invalidates the session.
func (m *Manager) CheckIPChange(s *domain.Session, currentIP string) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("%w: session is required", xerrors.ErrInvalidArgument)
	}
	currentIP = strings.TrimSpace(currentIP)
	if currentIP == "" {
		return false, fmt.Errorf("%w: current ip is required", xerrors.ErrInvalidArgument)
	}
	if s.Device.IPAddress == "" {
		return false, nil
	}

	changed := s.Device.IPAddress != currentIP
	if changed {
		m.logger.Warn("session ip changed",
			zap.String("session_id", s.ID),
			zap.Int64("account_id", s.AccountID),
			zap.String("original_ip", s.Device.IPAddress),
			zap.String("current_ip", currentIP),
		)
	}
	return changed, nil
}

// TerminateOtherSessions destroys every session of accountID except currentID.
func (m *Manager) TerminateOtherSessions(ctx context.Context, currentID string, accountID int64) (int, error) {
	if accountID <= 0 || strings.TrimSpace(currentID) == "" {
		return 0, fmt.Errorf("%w: session id and account id are required", xerrors.ErrInvalidArgument)
	}

	sessions, err := m.store.FindAllByAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}

	terminated := 0
	for _, s := range sessions {
		if s.ID == currentID {
			continue
		}
		if err := m.destroy(ctx, s.ID, accountID, ReasonTerminated); err != nil {
			m.logger.Error("failed to terminate session",
				zap.String("session_id", s.ID),
				zap.Error(err),
			)
			continue
		}
		terminated++
	}
	return terminated, nil
}

// Sweep deletes durable rows whose absolute expiry has passed. Cache entries expire on their own.
func (m *Manager) Sweep(ctx context.Context) (int64, error) {
	n, err := m.store.DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, err
	}
	metrics.SessionsSwept.Add(float64(n))
	return n, nil
}

// Status reports remaining lifetime for s at the manager's current time.
func (m *Manager) Status(s *domain.Session) domain.Status {
	return domain.NewStatus(s, m.now())
}

// BlacklistToken revokes a token id until its own expiry.
func (m *Manager) BlacklistToken(ctx context.Context, tokenID string, ttl time.Duration) Outcome {
	return m.cache.Blacklist(ctx, tokenID, ttl)
}

// IsTokenBlacklisted reports false when the cache is unreachable.
func (m *Manager) IsTokenBlacklisted(ctx context.Context, tokenID string) bool {
	blacklisted, _ := m.cache.IsBlacklisted(ctx, tokenID)
	return blacklisted
}

func (m *Manager) load(ctx context.Context, id string) (*domain.Session, error) {
	if s, _ := m.cache.Get(ctx, id); s != nil {
		return s, nil
	}

	s, err := m.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, xerrors.ErrSessionNotFound
	}

	m.cacheSession(ctx, s, m.now())
	return s, nil
}

func (m *Manager) terminate(ctx context.Context, s *domain.Session, reason Reason, cause error) error {
	if err := m.destroy(ctx, s.ID, s.AccountID, reason); err != nil {
		return fmt.Errorf("%w: %w", cause, err)
	}
	return cause
}

// destroy deletes from the durable store first; a failure there aborts before the cache is touched.
func (m *Manager) destroy(ctx context.Context, id string, accountID int64, reason Reason) error {
	if err := m.store.DeleteByID(ctx, id); err != nil {
		return err
	}

	m.cache.Evict(ctx, id)
	if accountID > 0 {
		m.cache.IndexRemove(ctx, accountID, id)
	}

	metrics.SessionsDestroyed.WithLabelValues(string(reason)).Inc()
	m.logger.Info("session destroyed",
		zap.String("session_id", id),
		zap.Int64("account_id", accountID),
		zap.String("reason", string(reason)),
	)

	for _, l := range m.listeners {
		l.SessionDestroyed(accountID, id, reason)
	}
	return nil
}

func (m *Manager) cacheSession(ctx context.Context, s *domain.Session, now time.Time) {
	ttl := s.RemainingTTL(now)
	if ttl <= 0 {
		return
	}
	m.cache.Put(ctx, s, ttl)
	m.cache.IndexAdd(ctx, s.AccountID, s.ID, ttl)
}
