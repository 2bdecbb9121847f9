package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	domain "authsession-service/internal/domain/session"
	xerrors "authsession-service/internal/pkg/errors"
)

var errStoreDown = errors.New("connection refused")

// memStore is an in-memory domain.Store with failure injection.
type memStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session

	failSave   bool
	failFind   bool
	failDelete map[string]bool
	saves      int
}

func newMemStore() *memStore {
	return &memStore{
		sessions:   make(map[string]*domain.Session),
		failDelete: make(map[string]bool),
	}
}

func (s *memStore) Save(_ context.Context, sess *domain.Session) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave {
		return nil, fmt.Errorf("save session: %w: %w", xerrors.ErrStoreUnavailable, errStoreDown)
	}
	s.saves++
	s.sessions[sess.ID] = sess.Clone()
	return sess.Clone(), nil
}

func (s *memStore) FindByID(_ context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFind {
		return nil, fmt.Errorf("find session: %w: %w", xerrors.ErrStoreUnavailable, errStoreDown)
	}
	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	return sess.Clone(), nil
}

func (s *memStore) FindAllByAccount(_ context.Context, accountID int64) ([]*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFind {
		return nil, fmt.Errorf("list sessions: %w: %w", xerrors.ErrStoreUnavailable, errStoreDown)
	}
	var out []*domain.Session
	for _, sess := range s.sessions {
		if sess.AccountID == accountID {
			out = append(out, sess.Clone())
		}
	}
	return out, nil
}

func (s *memStore) DeleteByID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDelete[id] || s.failDelete["*"] {
		return fmt.Errorf("delete session: %w: %w", xerrors.ErrStoreUnavailable, errStoreDown)
	}
	delete(s.sessions, id)
	return nil
}

func (s *memStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, sess := range s.sessions {
		if sess.IsExpired(now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

func (s *memStore) CountByAccount(ctx context.Context, accountID int64) (int, error) {
	all, err := s.FindAllByAccount(ctx, accountID)
	return len(all), err
}

func (s *memStore) has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	return ok
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingListener struct {
	mu     sync.Mutex
	events []Reason
}

func (l *recordingListener) SessionDestroyed(_ int64, _ string, reason Reason) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, reason)
}
