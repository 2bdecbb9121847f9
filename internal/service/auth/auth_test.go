package auth

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"authsession-service/internal/domain/auth"
	domain "authsession-service/internal/domain/session"
	xerrors "authsession-service/internal/pkg/errors"
	"authsession-service/internal/pkg/jwt"
	"authsession-service/internal/pkg/session"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"
)

type mockAccounts struct {
	mock.Mock
}

func (m *mockAccounts) FindByIdentifier(ctx context.Context, identifier string) (*auth.Account, error) {
	args := m.Called(ctx, identifier)
	a, _ := args.Get(0).(*auth.Account)
	return a, args.Error(1)
}

func (m *mockAccounts) FindByID(ctx context.Context, id int64) (*auth.Account, error) {
	args := m.Called(ctx, id)
	a, _ := args.Get(0).(*auth.Account)
	return a, args.Error(1)
}

func (m *mockAccounts) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

type memStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

func (s *memStore) Save(_ context.Context, sess *domain.Session) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess.Clone()
	return sess.Clone(), nil
}

func (s *memStore) FindByID(_ context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess.Clone(), nil
	}
	return nil, nil
}

func (s *memStore) FindAllByAccount(_ context.Context, accountID int64) ([]*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
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
	delete(s.sessions, id)
	return nil
}

func (s *memStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	return 0, nil
}

func (s *memStore) CountByAccount(ctx context.Context, accountID int64) (int, error) {
	all, _ := s.FindAllByAccount(ctx, accountID)
	return len(all), nil
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	svc      *AuthService
	accounts *mockAccounts
	store    *memStore
	mr       *miniredis.Miniredis
	clock    *clock
	alice    *auth.Account
	logs     *observer.ObservedLogs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clk := &clock{t: time.Now().UTC().Truncate(time.Second)}
	obsCore, logs := observer.New(zap.WarnLevel)
	log := zap.New(zapcore.NewTee(zaptest.NewLogger(t).Core(), obsCore))

	jwtManager, err := jwt.LoadAndBuild(jwt.Config{
		Secret:   "0123456789abcdef0123456789abcdef",
		Issuer:   "authsession-service",
		Audience: "authsession-clients",
	}, jwt.WithClock(clk.Now))
	require.NoError(t, err)

	store := &memStore{sessions: make(map[string]*domain.Session)}
	cache := session.NewRedisCache(client, log)
	mgr := session.NewManager(store, cache, log, session.WithClock(clk.Now))
	throttle := session.NewLoginThrottle(client, log, 5, 30*time.Minute)

	verifier := NewBcryptVerifier(bcrypt.MinCost)
	hash, err := verifier.Hash("correct horse")
	require.NoError(t, err)

	alice := &auth.Account{
		ID:           42,
		Username:     "alice",
		Email:        sql.NullString{String: "alice@example.com", Valid: true},
		PasswordHash: hash,
		Role:         "user",
		Status:       auth.AccountStatusActive,
	}

	accounts := &mockAccounts{}
	accounts.On("FindByIdentifier", mock.Anything, "alice").Return(alice, nil).Maybe()
	accounts.On("FindByIdentifier", mock.Anything, "nobody").Return(nil, xerrors.ErrNotFound).Maybe()
	accounts.On("FindByID", mock.Anything, int64(42)).Return(alice, nil).Maybe()
	accounts.On("UpdateLastLogin", mock.Anything, int64(42), mock.Anything).Return(nil).Maybe()

	policy := SessionPolicy{AbsoluteTimeout: 28800, IdleTimeout: 1800, RememberMeTimeout: 2592000}
	svc := NewAuthService(accounts, verifier, jwtManager, mgr, throttle, policy, log).WithClock(clk.Now)

	return &fixture{svc: svc, accounts: accounts, store: store, mr: mr, clock: clk, alice: alice, logs: logs}
}

func (f *fixture) login(t *testing.T, rememberMe bool) *auth.LoginResponse {
	t.Helper()
	resp, err := f.svc.Login(context.Background(), &auth.LoginRequest{
		Identifier: "alice",
		Password:   "correct horse",
		RememberMe: rememberMe,
		IPAddress:  "203.0.113.7",
		UserAgent:  "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)",
	})
	require.NoError(t, err)
	return resp
}

func TestLogin_Success(t *testing.T) {
	f := newFixture(t)

	resp := f.login(t, false)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(42), resp.User.AccountID)
	assert.Equal(t, "alice@example.com", resp.User.Email)
	assert.Equal(t, int((2 * time.Hour).Seconds()), resp.ExpiresIn)

	sess, err := f.store.FindByID(context.Background(), resp.SessionID)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "203.0.113.7", sess.Device.IPAddress)
	assert.Equal(t, 28800, sess.AbsoluteTimeout)
	f.accounts.AssertCalled(t, "UpdateLastLogin", mock.Anything, int64(42), mock.Anything)
}

func TestLogin_RememberMeUsesLongTimeout(t *testing.T) {
	f := newFixture(t)

	resp := f.login(t, true)
	sess, _ := f.store.FindByID(context.Background(), resp.SessionID)
	require.NotNil(t, sess)
	assert.True(t, sess.RememberMe)
	assert.Equal(t, 2592000, sess.AbsoluteTimeout)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Login(ctx, &auth.LoginRequest{Identifier: "alice", Password: "wrong"})
	assert.ErrorIs(t, err, xerrors.ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, &auth.LoginRequest{Identifier: "nobody", Password: "x"})
	assert.ErrorIs(t, err, xerrors.ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, &auth.LoginRequest{Identifier: " ", Password: "x"})
	assert.ErrorIs(t, err, xerrors.ErrInvalidArgument)
}

func TestLogin_LocksAfterRepeatedFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bad := &auth.LoginRequest{Identifier: "alice", Password: "wrong"}

	for i := 0; i < 4; i++ {
		_, err := f.svc.Login(ctx, bad)
		var creds *xerrors.CredentialsError
		require.ErrorAs(t, err, &creds)
		require.ErrorIs(t, err, xerrors.ErrInvalidCredentials)
		assert.Equal(t, int64(4-i), creds.RemainingAttempts)
	}

	_, err := f.svc.Login(ctx, bad)
	var locked *xerrors.LockedError
	require.ErrorAs(t, err, &locked)
	assert.InDelta(t, (30 * time.Minute).Seconds(), locked.RetryAfter.Seconds(), 1)

	// correct password is still rejected while locked
	_, err = f.svc.Login(ctx, &auth.LoginRequest{Identifier: "alice", Password: "correct horse"})
	assert.ErrorIs(t, err, xerrors.ErrLoginLocked)

	require.NoError(t, f.svc.UnlockAccount(ctx, "alice"))
	f.login(t, false)
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resp := f.login(t, false)

	f.clock.Advance(time.Minute)
	p, err := f.svc.Authenticate(ctx, resp.AccessToken, "203.0.113.7")
	require.NoError(t, err)
	assert.Equal(t, int64(42), p.AccountID)
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, resp.SessionID, p.SessionID)
	assert.False(t, p.IPChanged)
	assert.False(t, p.AboutToExpire)

	p, err = f.svc.Authenticate(ctx, resp.AccessToken, "198.51.100.1")
	require.NoError(t, err)
	assert.True(t, p.IPChanged)

	_, err = f.svc.Authenticate(ctx, resp.RefreshToken, "")
	assert.ErrorIs(t, err, xerrors.ErrTokenMalformed)

	_, err = f.svc.Authenticate(ctx, "", "")
	assert.ErrorIs(t, err, xerrors.ErrTokenEmpty)
}

func TestAuthenticate_IdleTimeout(t *testing.T) {
	f := newFixture(t)
	resp := f.login(t, false)

	f.clock.Advance(1801 * time.Second)
	_, err := f.svc.Authenticate(context.Background(), resp.AccessToken, "")
	assert.ErrorIs(t, err, xerrors.ErrSessionIdleTimeout)
	assert.True(t, xerrors.IsReauthRequired(err))
}

func TestLogout_RevokesToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resp := f.login(t, false)

	p, err := f.svc.Authenticate(ctx, resp.AccessToken, "")
	require.NoError(t, err)
	require.NoError(t, f.svc.Logout(ctx, p))

	_, err = f.svc.Authenticate(ctx, resp.AccessToken, "")
	assert.ErrorIs(t, err, xerrors.ErrTokenBlacklisted)

	s, _ := f.store.FindByID(ctx, resp.SessionID)
	assert.Nil(t, s)
}

func TestRefresh_RotatesPair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.login(t, false)

	f.clock.Advance(time.Minute)
	second, err := f.svc.Refresh(ctx, &auth.RefreshRequest{RefreshToken: first.RefreshToken})
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = f.svc.Refresh(ctx, &auth.RefreshRequest{RefreshToken: first.RefreshToken})
	assert.ErrorIs(t, err, xerrors.ErrTokenBlacklisted)

	_, err = f.svc.Refresh(ctx, &auth.RefreshRequest{RefreshToken: second.AccessToken})
	assert.ErrorIs(t, err, xerrors.ErrTokenMalformed)
}

func TestRefresh_ReportsIPChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.login(t, false)

	same, err := f.svc.Refresh(ctx, &auth.RefreshRequest{RefreshToken: first.RefreshToken, IPAddress: "203.0.113.7"})
	require.NoError(t, err)
	assert.False(t, same.IPChanged)
	assert.Zero(t, f.logs.FilterMessage("session refreshed from a new IP").Len())

	moved, err := f.svc.Refresh(ctx, &auth.RefreshRequest{RefreshToken: same.RefreshToken, IPAddress: "198.51.100.1"})
	require.NoError(t, err)
	assert.True(t, moved.IPChanged)

	entries := f.logs.FilterMessage("session refreshed from a new IP").All()
	require.Len(t, entries, 1)
	assert.Equal(t, first.SessionID, entries[0].ContextMap()["session_id"])
}

func TestSessionManagement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.login(t, false)
	f.clock.Advance(time.Second)
	b := f.login(t, false)
	f.clock.Advance(time.Second)
	c := f.login(t, false)

	p, err := f.svc.Authenticate(ctx, c.AccessToken, "")
	require.NoError(t, err)

	list, err := f.svc.ListSessions(ctx, p)
	require.NoError(t, err)
	require.Equal(t, 3, list.Total)
	assert.Equal(t, c.SessionID, list.Sessions[0].ID)
	assert.True(t, list.Sessions[0].Current)

	require.NoError(t, f.svc.RevokeSession(ctx, p, a.SessionID))
	assert.ErrorIs(t, f.svc.RevokeSession(ctx, p, "someone-elses"), xerrors.ErrForbidden)

	out, err := f.svc.TerminateOthers(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Terminated)

	_, err = f.svc.Authenticate(ctx, b.AccessToken, "")
	assert.ErrorIs(t, err, xerrors.ErrSessionNotFound)
}

func TestBcryptVerifier(t *testing.T) {
	v := NewBcryptVerifier(bcrypt.MinCost)
	hash, err := v.Hash("secret")
	require.NoError(t, err)

	assert.True(t, v.Verify("secret", hash))
	assert.False(t, v.Verify("Secret", hash))
	assert.False(t, v.Verify("secret", ""))
	assert.False(t, v.Verify("secret", "not-a-hash"))
}
