package store_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/takeoff-app/takeoff/backend"
	"github.com/takeoff-app/takeoff/config"
	"github.com/takeoff-app/takeoff/store"
	"github.com/takeoff-app/takeoff/testutil"
	"go.uber.org/zap"
)

const tasksRoute = "/tasks/user/:uid"

func newStore(t *testing.T) (*store.Store, *testutil.FakeBackend, string) {
	fb := testutil.NewFakeBackend(t)
	uid := fb.AddUser("tok", "a@example.com", "Ada")
	c, _ := testutil.SetupTestCache(t)
	api := backend.New(config.BackendConfig{BaseURL: fb.URL, Timeout: 2 * time.Second}, zap.NewNop())
	return store.New(api, c, time.Minute, zap.NewNop()), fb, uid
}

func TestTasks_CachedUntilInvalidated(t *testing.T) {
	s, fb, uid := newStore(t)
	ctx := context.Background()

	_, err := s.Tasks(ctx, uid)
	require.NoError(t, err)
	_, err = s.Tasks(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, 1, fb.Hits(http.MethodGet, tasksRoute))

	_, err = s.API().CreateTask(ctx, backend.TaskCreate{UserID: uid, Title: "Read", LifePillar: "personal_growth", Priority: "medium", EstimatedDuration: 30, XPReward: 20})
	require.NoError(t, err)
	require.NoError(t, s.Invalidate(ctx, uid, store.EntityTasks))

	tasks, err := s.Tasks(ctx, uid)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
	assert.Equal(t, 2, fb.Hits(http.MethodGet, tasksRoute))
}

func TestConcurrentMissesShareOneFetch(t *testing.T) {
	s, fb, uid := newStore(t)
	release := fb.HoldRoute(http.MethodGet, tasksRoute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Tasks(context.Background(), uid)
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	release()
	wg.Wait()

	assert.Equal(t, 1, fb.Hits(http.MethodGet, tasksRoute))
}

func TestSupersededFetchDoesNotWriteBack(t *testing.T) {
	s, fb, uid := newStore(t)
	ctx := context.Background()
	release := fb.HoldRoute(http.MethodGet, tasksRoute)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Tasks(ctx, uid)
	}()
	time.Sleep(30 * time.Millisecond)

	// Invalidate while the first fetch is still waiting on the backend.
	require.NoError(t, s.Invalidate(ctx, uid, store.EntityTasks))
	release()
	<-done

	// The old result was not cached, so the next read fetches again.
	_, err := s.Tasks(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, 2, fb.Hits(http.MethodGet, tasksRoute))
}

func TestQuestVariantsAreSeparateAndInvalidatedTogether(t *testing.T) {
	s, fb, uid := newStore(t)
	ctx := context.Background()
	fb.SeedQuest(uid, backend.Quest{Title: "Run", LifePillar: "health", Difficulty: "easy"})
	fb.SeedQuest(uid, backend.Quest{Title: "Save", LifePillar: "finance", Difficulty: "hard", IsCompleted: true})

	active := false
	health, err := s.Quests(ctx, uid, backend.QuestFilter{Completed: &active, Pillar: "health"})
	require.NoError(t, err)
	assert.Len(t, health, 1)

	all, err := s.Quests(ctx, uid, backend.QuestFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, 2, fb.Hits(http.MethodGet, "/quests/user/:uid"))

	require.NoError(t, s.Invalidate(ctx, uid, store.EntityQuests))
	_, err = s.Quests(ctx, uid, backend.QuestFilter{Completed: &active, Pillar: "health"})
	require.NoError(t, err)
	_, err = s.Quests(ctx, uid, backend.QuestFilter{})
	require.NoError(t, err)
	assert.Equal(t, 4, fb.Hits(http.MethodGet, "/quests/user/:uid"))
}

func TestFetchFailureServesStaleCopy(t *testing.T) {
	s, fb, uid := newStore(t)
	ctx := context.Background()

	_, err := s.Goals(ctx, uid)
	require.NoError(t, err)
	require.NoError(t, s.Invalidate(ctx, uid, store.EntityGoals))

	fb.FailRoute(http.MethodGet, "/goals/user/:uid", http.StatusInternalServerError)
	goals, err := s.Goals(ctx, uid)
	assert.True(t, store.IsStale(err))
	assert.NotNil(t, goals)

	fb.FailRoute(http.MethodGet, "/ultimate-goals/user/:uid", http.StatusBadGateway)
	_, err = s.UltimateGoals(ctx, uid)
	require.Error(t, err)
	assert.False(t, store.IsStale(err))
	apiErr, ok := backend.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
}

func TestUserViewAndEventsWindow(t *testing.T) {
	s, fb, uid := newStore(t)
	ctx := context.Background()

	u, err := s.User(ctx, uid, "tok")
	require.NoError(t, err)
	assert.Equal(t, "Ada", u.FullName)

	_, err = s.Events(ctx, uid, 90)
	require.NoError(t, err)
	_, err = s.Events(ctx, uid, 90)
	require.NoError(t, err)
	assert.Equal(t, 1, fb.Hits(http.MethodGet, "/calendar/events/:uid"))

	require.NoError(t, s.Invalidate(ctx, uid))
	_, err = s.Events(ctx, uid, 90)
	require.NoError(t, err)
	assert.Equal(t, 2, fb.Hits(http.MethodGet, "/calendar/events/:uid"))
}
