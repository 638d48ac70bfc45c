package dashboard_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/takeoff-app/takeoff/backend"
	"github.com/takeoff-app/takeoff/config"
	"github.com/takeoff-app/takeoff/dashboard"
	"github.com/takeoff-app/takeoff/model"
	"github.com/takeoff-app/takeoff/pillar"
	"github.com/takeoff-app/takeoff/session"
	"github.com/takeoff-app/takeoff/testutil/env"
	"go.uber.org/zap"
)

func newService(t *testing.T) (*dashboard.Service, *session.Manager, *model.Session, *env.Env) {
	e := env.New(t)
	mgr, err := session.NewManager(e.DB, e.Cache, e.Store, e.Sched,
		config.SecurityConfig{JWTSecret: "dashboard-secret"}, config.SessionConfig{TTL: time.Hour}, zap.NewNop())
	require.NoError(t, err)
	sess, _, err := mgr.Init(e.Ctx(), e.Token)
	require.NoError(t, err)
	return dashboard.NewService(e.Store, mgr, zap.NewNop()), mgr, sess, e
}

func TestStats(t *testing.T) {
	u := &backend.User{
		TotalXP:          map[string]int{"health": 250, "career": 40},
		LifePillarLevels: map[string]int{"health": 3, "career": 1, "relationships": 2},
	}
	total, avg, ps := dashboard.Stats(u)
	assert.Equal(t, 290, total)
	// 3+1+2 plus three pillars derived from zero XP at level 1: 9/6 rounds to 2.
	assert.Equal(t, 2, avg)
	require.Len(t, ps, 6)
	assert.Equal(t, pillar.Health, ps[0].Pillar)
	assert.Equal(t, 50, ps[0].Progress)
	assert.Equal(t, "💪", ps[0].Icon)
	assert.Equal(t, pillar.Recreation, ps[5].Pillar)
}

func TestSummary_JustOnboardedOnce(t *testing.T) {
	svc, mgr, sess, e := newService(t)
	ctx := e.Ctx()
	require.NoError(t, mgr.MarkJustOnboarded(ctx, sess.ID))

	first, err := svc.Summary(ctx, sess)
	require.NoError(t, err)
	assert.True(t, first.JustOnboarded)
	assert.Equal(t, "Ada", first.User.FullName)
	assert.Equal(t, 1, first.AverageLevel)
	assert.Zero(t, first.TotalXP)

	second, err := svc.Summary(ctx, sess)
	require.NoError(t, err)
	assert.False(t, second.JustOnboarded)
}

func TestDailyFocus_CapsAndSums(t *testing.T) {
	svc, _, sess, e := newService(t)
	ctx := e.Ctx()
	for i := 0; i < 7; i++ {
		_, err := e.API.CreateTask(ctx, backend.TaskCreate{
			UserID:            e.UID,
			Title:             fmt.Sprintf("task %d", i),
			LifePillar:        "health",
			Priority:          "medium",
			EstimatedDuration: 30,
			XPReward:          pillar.TaskXP(30),
		})
		require.NoError(t, err)
	}
	for i := 0; i < 4; i++ {
		e.FB.SeedQuest(e.UID, backend.Quest{Title: fmt.Sprintf("quest %d", i), LifePillar: "career", XPReward: 50})
	}
	e.FB.SeedQuest(e.UID, backend.Quest{Title: "done", XPReward: 999, IsCompleted: true})

	f, err := svc.DailyFocus(ctx, sess)
	require.NoError(t, err)
	assert.Len(t, f.Tasks, dashboard.FocusTasks)
	assert.Len(t, f.Quests, dashboard.FocusQuests)
	assert.Equal(t, 5*20+3*50, f.TotalXPAvailable)
	for _, q := range f.Quests {
		assert.False(t, q.IsCompleted)
	}
}

func TestDailyFocus_Empty(t *testing.T) {
	svc, _, sess, e := newService(t)
	f, err := svc.DailyFocus(e.Ctx(), sess)
	require.NoError(t, err)
	assert.NotNil(t, f.Tasks)
	assert.NotNil(t, f.Quests)
	assert.Zero(t, f.TotalXPAvailable)
}
