package session_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/takeoff-app/takeoff/backend"
	"github.com/takeoff-app/takeoff/config"
	mw "github.com/takeoff-app/takeoff/middleware"
	"github.com/takeoff-app/takeoff/model"
	"github.com/takeoff-app/takeoff/scheduler"
	"github.com/takeoff-app/takeoff/session"
	"github.com/takeoff-app/takeoff/store"
	"github.com/takeoff-app/takeoff/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const secret = "session-test-secret"

type fixture struct {
	mgr   *session.Manager
	db    *gorm.DB
	fb    *testutil.FakeBackend
	sched *scheduler.Scheduler
	uid   string
}

func newFixture(t *testing.T, ttl time.Duration) *fixture {
	fb := testutil.NewFakeBackend(t)
	uid := fb.AddUser("upstream-token", "a@example.com", "Ada")
	db := testutil.SetupTestDB(t)
	c, _ := testutil.SetupTestCache(t)
	api := backend.New(config.BackendConfig{BaseURL: fb.URL, Timeout: 2 * time.Second}, zap.NewNop())
	st := store.New(api, c, time.Minute, zap.NewNop())
	sched := scheduler.New(zap.NewNop())
	t.Cleanup(sched.Stop)

	mgr, err := session.NewManager(db, c, st, sched,
		config.SecurityConfig{JWTSecret: secret},
		config.SessionConfig{TTL: ttl}, zap.NewNop())
	require.NoError(t, err)
	return &fixture{mgr: mgr, db: db, fb: fb, sched: sched, uid: uid}
}

func TestInit_HydratesAndSealsToken(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()

	sess, token, err := f.mgr.Init(ctx, "upstream-token")
	require.NoError(t, err)
	assert.Equal(t, f.uid, sess.UserID)
	assert.NotContains(t, string(sess.SealedToken), "upstream-token")

	claims, err := mw.ParseToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, claims.SessionID)

	bearer, err := f.mgr.Bearer(sess)
	require.NoError(t, err)
	assert.Equal(t, "upstream-token", bearer)

	u, err := f.mgr.Profile(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", u.FullName)
}

func TestInit_UnknownTokenFails(t *testing.T) {
	f := newFixture(t, time.Hour)

	_, _, err := f.mgr.Init(context.Background(), "nope")
	require.Error(t, err)
	_, _, err = f.mgr.Init(context.Background(), "")
	assert.ErrorIs(t, err, session.ErrNotFound)

	var n int64
	f.db.Model(&model.Session{}).Count(&n)
	assert.Zero(t, n)
}

func TestResolve_FallsBackToDatabase(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	sess, _, err := f.mgr.Init(ctx, "upstream-token")
	require.NoError(t, err)

	got, err := f.mgr.Resolve(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.UserID, got.UserID)

	// A second manager shares the database but not the cache.
	c2, _ := testutil.SetupTestCache(t)
	api := backend.New(config.BackendConfig{BaseURL: f.fb.URL}, zap.NewNop())
	mgr2, err := session.NewManager(f.db, c2, store.New(api, c2, time.Minute, zap.NewNop()), f.sched,
		config.SecurityConfig{JWTSecret: secret}, config.SessionConfig{TTL: time.Hour}, zap.NewNop())
	require.NoError(t, err)
	got, err = mgr2.Resolve(ctx, sess.ID)
	require.NoError(t, err)
	bearer, err := mgr2.Bearer(got)
	require.NoError(t, err)
	assert.Equal(t, "upstream-token", bearer)

	_, err = f.mgr.Resolve(ctx, "missing")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestResolve_Expired(t *testing.T) {
	f := newFixture(t, 30*time.Millisecond)
	ctx := context.Background()
	sess, _, err := f.mgr.Init(ctx, "upstream-token")
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	_, err = f.mgr.Resolve(ctx, sess.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)

	n, err := f.mgr.Sweep(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	count, err := f.mgr.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestTeardown_CancelsSessionTimersAndHooks(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	sess, _, err := f.mgr.Init(ctx, "upstream-token")
	require.NoError(t, err)
	other, _, err := f.mgr.Init(ctx, "upstream-token")
	require.NoError(t, err)

	var fired int32
	f.sched.AddDelay(sess.ID+":banner:calendar", time.Hour, func() { atomic.AddInt32(&fired, 1) })
	f.sched.AddDelay(other.ID+":banner:calendar", time.Hour, func() {})

	var hooked []string
	f.mgr.OnTeardown(func(sid string) { hooked = append(hooked, sid) })

	require.NoError(t, f.mgr.Teardown(ctx, sess.ID))
	assert.Equal(t, []string{sess.ID}, hooked)
	assert.False(t, f.sched.Has(sess.ID+":banner:calendar"))
	assert.True(t, f.sched.Has(other.ID+":banner:calendar"))

	_, err = f.mgr.Resolve(ctx, sess.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.ErrorIs(t, f.mgr.Teardown(ctx, sess.ID), session.ErrNotFound)
}

func TestJustOnboarded_ConsumedOnce(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	sess, _, err := f.mgr.Init(ctx, "upstream-token")
	require.NoError(t, err)

	first, err := f.mgr.ConsumeJustOnboarded(ctx, sess.ID)
	require.NoError(t, err)
	assert.False(t, first)

	require.NoError(t, f.mgr.MarkJustOnboarded(ctx, sess.ID))

	var trues int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := f.mgr.ConsumeJustOnboarded(ctx, sess.ID); err == nil && ok {
				atomic.AddInt32(&trues, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), trues)

	assert.ErrorIs(t, f.mgr.MarkJustOnboarded(ctx, "missing"), session.ErrNotFound)
}
