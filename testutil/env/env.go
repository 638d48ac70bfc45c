// Package env assembles the widget services over a fake backend for
// package tests.
package env

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/takeoff-app/takeoff/activity"
	"github.com/takeoff-app/takeoff/backend"
	"github.com/takeoff-app/takeoff/banner"
	"github.com/takeoff-app/takeoff/cache"
	"github.com/takeoff-app/takeoff/config"
	"github.com/takeoff-app/takeoff/model"
	"github.com/takeoff-app/takeoff/push"
	"github.com/takeoff-app/takeoff/reward"
	"github.com/takeoff-app/takeoff/scheduler"
	"github.com/takeoff-app/takeoff/store"
	"github.com/takeoff-app/takeoff/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Env is one signed-in user wired to every shared component.
type Env struct {
	FB       *testutil.FakeBackend
	DB       *gorm.DB
	Cache    cache.Cache
	API      *backend.Client
	Store    *store.Store
	Guard    *store.Guard
	Sched    *scheduler.Scheduler
	Push     *testutil.PushRecorder
	Pub      *push.Publisher
	Banners  *banner.Board
	Rewards  *reward.Player
	Activity *activity.Service

	Token   string
	UID     string
	Session *model.Session
}

// New starts a fake backend with one user and builds the components.
func New(t *testing.T) *Env {
	t.Helper()
	fb := testutil.NewFakeBackend(t)
	token := "tok-" + uuid.NewString()
	uid := fb.AddUser(token, "ada@example.com", "Ada")

	db := testutil.SetupTestDB(t)
	c, _ := testutil.SetupTestCache(t)
	logger := zap.NewNop()
	api := backend.New(config.BackendConfig{BaseURL: fb.URL, Timeout: 2 * time.Second}, logger)
	sched := scheduler.New(logger)
	t.Cleanup(sched.Stop)
	rec := testutil.NewPushRecorder()
	pub := push.NewPublisher(rec, logger)
	acts := activity.New(db, config.ActivityConfig{FlushInterval: 20 * time.Millisecond}, logger)
	t.Cleanup(func() { acts.Stop(context.Background()) })

	return &Env{
		FB:       fb,
		DB:       db,
		Cache:    c,
		API:      api,
		Store:    store.New(api, c, time.Minute, logger),
		Guard:    store.NewGuard(c, 5*time.Second),
		Sched:    sched,
		Push:     rec,
		Pub:      pub,
		Banners:  banner.New(config.BannerConfig{}, sched, pub),
		Rewards:  reward.NewPlayer(reward.DefaultTimings(), sched, pub, logger),
		Activity: acts,
		Token:    token,
		UID:      uid,
		Session:  &model.Session{ID: uuid.NewString(), UserID: uid},
	}
}

// Ctx returns a context carrying the user's upstream token.
func (e *Env) Ctx() context.Context {
	return backend.WithToken(context.Background(), e.Token)
}

// Activities returns the flushed activity rows of the user.
func (e *Env) Activities(t *testing.T) []model.ActivityLog {
	t.Helper()
	e.Activity.Stop(context.Background())
	var logs []model.ActivityLog
	e.DB.Where("user_id = ?", e.UID).Order("id").Find(&logs)
	return logs
}
