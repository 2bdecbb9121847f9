package session

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	domain "authsession-service/internal/domain/session"
	xerrors "authsession-service/internal/pkg/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type managerFixture struct {
	mgr      *Manager
	store    *memStore
	mr       *miniredis.Miniredis
	clock    *testClock
	listener *recordingListener
}

func newManagerFixture(t *testing.T, opts ...ManagerOption) *managerFixture {
	t.Helper()
	mr, client := setupMiniredis(t)
	store := newMemStore()
	clock := newTestClock()
	listener := &recordingListener{}

	var seq int64
	base := []ManagerOption{
		WithClock(clock.Now),
		WithListener(listener),
		WithIDGenerator(func() string {
			return fmt.Sprintf("sess-%02d", atomic.AddInt64(&seq, 1))
		}),
	}
	cache := NewRedisCache(client, zaptest.NewLogger(t)).WithTimeout(100 * time.Millisecond)
	mgr := NewManager(store, cache, zaptest.NewLogger(t), append(base, opts...)...)

	return &managerFixture{mgr: mgr, store: store, mr: mr, clock: clock, listener: listener}
}

func device() *domain.DeviceInfo {
	return &domain.DeviceInfo{IPAddress: "203.0.113.7", UserAgent: "test", DeviceType: domain.DeviceDesktop}
}

func TestManager_CreateSession(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	now := f.clock.Now()

	s, err := f.mgr.CreateSession(ctx, 42, device(), 28800, 1800, false)
	require.NoError(t, err)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, int64(42), s.AccountID)
	assert.Equal(t, now, s.CreatedAt)
	assert.Equal(t, now, s.LastActivityAt)
	assert.Equal(t, now.Add(28800*time.Second), s.ExpiresAt)
	assert.True(t, f.store.has(s.ID))

	assert.True(t, f.mr.Exists("session:"+s.ID))
	assert.Equal(t, 28800*time.Second, f.mr.TTL("session:"+s.ID))
	members, err := f.mr.Members("session:user:42")
	require.NoError(t, err)
	assert.Equal(t, []string{s.ID}, members)
}

func TestManager_CreateSession_InvalidArguments(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	_, err := f.mgr.CreateSession(ctx, 0, device(), 0, 0, false)
	assert.ErrorIs(t, err, xerrors.ErrInvalidArgument)

	_, err = f.mgr.CreateSession(ctx, 42, nil, 0, 0, false)
	assert.ErrorIs(t, err, xerrors.ErrInvalidArgument)

	_, err = f.mgr.CreateSession(ctx, 42, device(), -1, 0, false)
	assert.ErrorIs(t, err, xerrors.ErrInvalidArgument)
}

func TestManager_CreateSession_DefaultTimeouts(t *testing.T) {
	f := newManagerFixture(t)

	s, err := f.mgr.CreateSession(context.Background(), 42, device(), 0, 0, false)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultAbsoluteTimeout, s.AbsoluteTimeout)
	assert.Equal(t, domain.DefaultIdleTimeout, s.IdleTimeout)
}

func TestManager_CreateSession_StoreFailurePropagates(t *testing.T) {
	f := newManagerFixture(t)
	f.store.failSave = true

	_, err := f.mgr.CreateSession(context.Background(), 42, device(), 0, 0, false)
	assert.ErrorIs(t, err, xerrors.ErrStoreUnavailable)
	assert.Empty(t, f.mr.Keys())
}

func TestManager_CapEvictsOldest(t *testing.T) {
	f := newManagerFixture(t, WithMaxSessions(5))
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		s, err := f.mgr.CreateSession(ctx, 42, device(), 0, 0, false)
		require.NoError(t, err)
		ids = append(ids, s.ID)
		f.clock.Advance(time.Minute)
	}

	sixth, err := f.mgr.CreateSession(ctx, 42, device(), 0, 0, false)
	require.NoError(t, err)

	sessions, err := f.mgr.FindUserSessions(ctx, 42)
	require.NoError(t, err)
	require.Len(t, sessions, 5)

	var got []string
	for _, s := range sessions {
		got = append(got, s.ID)
	}
	assert.ElementsMatch(t, append(ids[1:], sixth.ID), got)
	assert.False(t, f.mr.Exists("session:"+ids[0]))
	assert.Equal(t, []Reason{ReasonEvicted}, f.listener.events)

	// newest first
	assert.Equal(t, sixth.ID, sessions[0].ID)
	assert.Equal(t, ids[1], sessions[4].ID)
}

func TestManager_EnforceSessionLimit(t *testing.T) {
	f := newManagerFixture(t, WithMaxSessions(10))
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := f.mgr.CreateSession(ctx, 42, device(), 0, 0, false)
		require.NoError(t, err)
		f.clock.Advance(time.Second)
	}

	n, err := f.mgr.EnforceSessionLimit(ctx, 42, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = f.mgr.EnforceSessionLimit(ctx, 42, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	count, _ := f.store.CountByAccount(ctx, 42)
	assert.Equal(t, 1, count)

	_, err = f.mgr.EnforceSessionLimit(ctx, 42, 0)
	assert.ErrorIs(t, err, xerrors.ErrInvalidArgument)
}

func TestManager_EnforceSessionLimit_ContinuesPastFailures(t *testing.T) {
	f := newManagerFixture(t, WithMaxSessions(10))
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		s, err := f.mgr.CreateSession(ctx, 42, device(), 0, 0, false)
		require.NoError(t, err)
		ids = append(ids, s.ID)
		f.clock.Advance(time.Second)
	}
	f.store.failDelete[ids[0]] = true

	n, err := f.mgr.EnforceSessionLimit(ctx, 42, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, f.store.has(ids[0]))
	assert.True(t, f.mr.Exists("session:"+ids[0]))
}

func TestManager_ValidateAndRefresh(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	s, err := f.mgr.CreateSession(ctx, 42, device(), 28800, 1800, false)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)
	got, err := f.mgr.ValidateAndRefreshSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now(), got.LastActivityAt)
	assert.Equal(t, s.ExpiresAt, got.ExpiresAt)
	assert.Equal(t, s.CreatedAt.Add(28800*time.Second), got.ExpiresAt)

	stored, err := f.store.FindByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now(), stored.LastActivityAt)
}

func TestManager_IdleTimeoutScenario(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	s, err := f.mgr.CreateSession(ctx, 42, device(), 28800, 1800, false)
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().Add(28800*time.Second), s.ExpiresAt)

	_, err = f.mgr.ValidateAndRefreshSession(ctx, s.ID)
	require.NoError(t, err)

	f.clock.Advance(1801 * time.Second)
	_, err = f.mgr.ValidateAndRefreshSession(ctx, s.ID)
	assert.ErrorIs(t, err, xerrors.ErrSessionIdleTimeout)

	stored, err := f.store.FindByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
	assert.False(t, f.mr.Exists("session:"+s.ID))
	assert.Equal(t, []Reason{ReasonIdleTimeout}, f.listener.events)

	_, err = f.mgr.ValidateAndRefreshSession(ctx, s.ID)
	assert.ErrorIs(t, err, xerrors.ErrSessionNotFound)
}

func TestManager_RememberMeSkipsIdleCheck(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	s, err := f.mgr.CreateSession(ctx, 42, device(), 28800, 1800, true)
	require.NoError(t, err)

	f.clock.Advance(1801 * time.Second)
	got, err := f.mgr.ValidateAndRefreshSession(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.RememberMe)
}

func TestManager_AbsoluteExpiry(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	s, err := f.mgr.CreateSession(ctx, 42, device(), 3600, 1800, true)
	require.NoError(t, err)

	f.clock.Advance(3601 * time.Second)
	_, err = f.mgr.ValidateAndRefreshSession(ctx, s.ID)
	assert.ErrorIs(t, err, xerrors.ErrSessionExpired)
	assert.False(t, f.store.has(s.ID))
}

func TestManager_ExpiryDestroyFailureIsReported(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	s, err := f.mgr.CreateSession(ctx, 42, device(), 3600, 1800, true)
	require.NoError(t, err)
	f.store.failDelete[s.ID] = true

	f.clock.Advance(3601 * time.Second)
	_, err = f.mgr.ValidateAndRefreshSession(ctx, s.ID)
	assert.ErrorIs(t, err, xerrors.ErrSessionExpired)
	assert.ErrorIs(t, err, xerrors.ErrStoreUnavailable)
}

func TestManager_ValidateFallsBackToStoreAndRepopulates(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	s, err := f.mgr.CreateSession(ctx, 42, device(), 28800, 1800, false)
	require.NoError(t, err)
	f.mr.Del("session:" + s.ID)

	f.clock.Advance(20 * time.Minute)
	_, err = f.mgr.ValidateAndRefreshSession(ctx, s.ID)
	require.NoError(t, err)

	assert.True(t, f.mr.Exists("session:"+s.ID))
	assert.Equal(t, 28800*time.Second-20*time.Minute, f.mr.TTL("session:"+s.ID))
}

func TestManager_ValidateKeepsGoingWhenActivityWriteFails(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	s, err := f.mgr.CreateSession(ctx, 42, device(), 0, 0, false)
	require.NoError(t, err)

	f.store.failSave = true
	f.clock.Advance(time.Minute)
	got, err := f.mgr.ValidateAndRefreshSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now(), got.LastActivityAt)
}

func TestManager_CacheOutageInvariance(t *testing.T) {
	healthy := newManagerFixture(t)
	broken := newManagerFixture(t)
	broken.mr.SetError("ERR simulated outage")
	ctx := context.Background()

	for _, f := range []*managerFixture{healthy, broken} {
		s, err := f.mgr.CreateSession(ctx, 42, device(), 28800, 1800, false)
		require.NoError(t, err)

		f.clock.Advance(5 * time.Minute)
		got, err := f.mgr.ValidateAndRefreshSession(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, f.clock.Now(), got.LastActivityAt)

		require.NoError(t, f.mgr.DestroySession(ctx, s.ID))
		assert.False(t, f.store.has(s.ID))
	}

	hs, _ := healthy.store.FindAllByAccount(ctx, 42)
	bs, _ := broken.store.FindAllByAccount(ctx, 42)
	assert.Equal(t, len(hs), len(bs))
	assert.Equal(t, healthy.listener.events, broken.listener.events)
}

func TestManager_CacheOutageResultsMatch(t *testing.T) {
	healthy := newManagerFixture(t)
	broken := newManagerFixture(t)
	broken.mr.SetError("ERR simulated outage")
	ctx := context.Background()

	a, err := healthy.mgr.CreateSession(ctx, 42, device(), 28800, 1800, false)
	require.NoError(t, err)
	b, err := broken.mgr.CreateSession(ctx, 42, device(), 28800, 1800, false)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	healthy.clock.Advance(time.Minute)
	broken.clock.Advance(time.Minute)
	va, err := healthy.mgr.ValidateAndRefreshSession(ctx, a.ID)
	require.NoError(t, err)
	vb, err := broken.mgr.ValidateAndRefreshSession(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, va.ID, vb.ID)
	assert.True(t, va.LastActivityAt.Equal(vb.LastActivityAt))
	assert.True(t, va.ExpiresAt.Equal(vb.ExpiresAt))
}

func TestManager_DestroyIsIdempotent(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	s, err := f.mgr.CreateSession(ctx, 42, device(), 0, 0, false)
	require.NoError(t, err)

	require.NoError(t, f.mgr.DestroySession(ctx, s.ID))
	require.NoError(t, f.mgr.DestroySession(ctx, s.ID))
	require.NoError(t, f.mgr.DestroySession(ctx, "never-existed"))

	assert.False(t, f.mr.Exists("session:"+s.ID))
	members, _ := f.mr.Members("session:user:42")
	assert.NotContains(t, members, s.ID)

	assert.ErrorIs(t, f.mgr.DestroySession(ctx, ""), xerrors.ErrInvalidArgument)
}

func TestManager_DestroyStoreFailureKeepsCache(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	s, err := f.mgr.CreateSession(ctx, 42, device(), 0, 0, false)
	require.NoError(t, err)
	f.store.failDelete[s.ID] = true

	err = f.mgr.DestroySession(ctx, s.ID)
	assert.ErrorIs(t, err, xerrors.ErrStoreUnavailable)
	assert.True(t, f.mr.Exists("session:"+s.ID))
}

func TestManager_TerminateOtherSessions(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 4; i++ {
		s, err := f.mgr.CreateSession(ctx, 42, device(), 0, 0, false)
		require.NoError(t, err)
		ids = append(ids, s.ID)
	}
	other, err := f.mgr.CreateSession(ctx, 7, device(), 0, 0, false)
	require.NoError(t, err)
	f.store.failDelete[ids[1]] = true

	n, err := f.mgr.TerminateOtherSessions(ctx, ids[0], 42)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, f.store.has(ids[0]))
	assert.True(t, f.store.has(ids[1]))
	assert.False(t, f.store.has(ids[2]))
	assert.True(t, f.store.has(other.ID))
}

func TestManager_CheckIPChange(t *testing.T) {
	f := newManagerFixture(t)
	s := &domain.Session{ID: "s", Device: domain.DeviceInfo{IPAddress: "203.0.113.7"}}

	changed, err := f.mgr.CheckIPChange(s, "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = f.mgr.CheckIPChange(s, "198.51.100.1")
	require.NoError(t, err)
	assert.True(t, changed)

	_, err = f.mgr.CheckIPChange(s, " ")
	assert.ErrorIs(t, err, xerrors.ErrInvalidArgument)

	changed, err = f.mgr.CheckIPChange(&domain.Session{ID: "s"}, "198.51.100.1")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestManager_Sweep(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	short, err := f.mgr.CreateSession(ctx, 42, device(), 60, 30, false)
	require.NoError(t, err)
	long, err := f.mgr.CreateSession(ctx, 42, device(), 7200, 1800, false)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)
	n, err := f.mgr.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.False(t, f.store.has(short.ID))
	assert.True(t, f.store.has(long.ID))
}

func TestManager_Blacklist(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	assert.False(t, f.mgr.IsTokenBlacklisted(ctx, "jti"))
	assert.Equal(t, OutcomeOK, f.mgr.BlacklistToken(ctx, "jti", time.Minute))
	assert.True(t, f.mgr.IsTokenBlacklisted(ctx, "jti"))
}

func TestManager_InvariantsHoldAcrossRefreshes(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	s, err := f.mgr.CreateSession(ctx, 42, device(), 28800, 1800, false)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		f.clock.Advance(15 * time.Minute)
		got, err := f.mgr.ValidateAndRefreshSession(ctx, s.ID)
		require.NoError(t, err)
		assert.False(t, got.LastActivityAt.Before(got.CreatedAt))
		assert.Equal(t, got.CreatedAt.Add(time.Duration(got.AbsoluteTimeout)*time.Second), got.ExpiresAt)
	}
}
