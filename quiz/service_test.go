package quiz_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/takeoff-app/takeoff/activity"
	"github.com/takeoff-app/takeoff/apperr"
	"github.com/takeoff-app/takeoff/config"
	"github.com/takeoff-app/takeoff/push"
	"github.com/takeoff-app/takeoff/quiz"
	"github.com/takeoff-app/takeoff/testutil/env"
	"go.uber.org/zap"
)

type marker struct {
	mu   sync.Mutex
	sids []string
}

func (m *marker) MarkJustOnboarded(_ context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sids = append(m.sids, sid)
	return nil
}

func newService(t *testing.T, delay time.Duration) (*quiz.Service, *env.Env, *marker) {
	e := env.New(t)
	b, err := quiz.DefaultBank()
	require.NoError(t, err)
	m := &marker{}
	svc := quiz.NewService(b, e.Store, m, e.Sched, e.Pub, e.Activity, config.QuizConfig{AdvanceDelay: delay}, zap.NewNop())
	return svc, e, m
}

func TestAnswer_AutoAdvances(t *testing.T) {
	svc, e, _ := newService(t, 20*time.Millisecond)
	sid := e.Session.ID
	_, err := svc.SetName(sid, "Ada")
	require.NoError(t, err)

	v, err := svc.Answer(sid, 4)
	require.NoError(t, err)
	assert.Equal(t, 0, v.Index)

	evs := e.Push.WaitFor(sid, push.EventQuizAdvance, 1, time.Second)
	require.Len(t, evs, 1)
	assert.Equal(t, 1, svc.State(sid).Index)
}

func TestNavigate_CancelsAutoAdvance(t *testing.T) {
	svc, e, _ := newService(t, 50*time.Millisecond)
	sid := e.Session.ID
	_, err := svc.SetName(sid, "Ada")
	require.NoError(t, err)

	_, err = svc.Answer(sid, 4)
	require.NoError(t, err)
	v, err := svc.Next(sid)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Index)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, svc.State(sid).Index)
	assert.Empty(t, e.Push.Events(sid, push.EventQuizAdvance))
}

func TestSubmit_RefusedUntilComplete(t *testing.T) {
	svc, e, m := newService(t, time.Hour)
	_, err := svc.Submit(e.Ctx(), e.Session)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	assert.Zero(t, e.FB.Hits(http.MethodPost, "/assessments/"))
	assert.Empty(t, m.sids)
}

func complete(t *testing.T, svc *quiz.Service, sid string) {
	t.Helper()
	_, err := svc.SetName(sid, "  Ada Lovelace ")
	require.NoError(t, err)
	for {
		v, err := svc.Answer(sid, 2)
		require.NoError(t, err)
		if v.IsLast {
			return
		}
		_, err = svc.Next(sid)
		require.NoError(t, err)
	}
}

func TestSubmit_SendsAssessmentThenOnboarding(t *testing.T) {
	svc, e, m := newService(t, time.Hour)
	complete(t, svc, e.Session.ID)

	res, err := svc.Submit(e.Ctx(), e.Session)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", res.DisplayName)
	assert.Len(t, res.Scores, 9)
	assert.Len(t, res.PillarScores, 6)
	assert.Equal(t, 4, res.Scores["depression"])

	as := e.FB.Assessments()
	require.Len(t, as, 1)
	assert.Equal(t, e.UID, as[0].UserID)
	assert.Equal(t, 4, as[0].ADHDScore)
	assert.Contains(t, as[0].Responses, "pillar_scores")
	assert.Contains(t, as[0].Responses, "dep2")

	ob, ok := e.FB.Onboarding(e.UID)
	require.True(t, ok)
	assert.Equal(t, "Ada Lovelace", ob.DisplayName)
	assert.Equal(t, res.PillarScores, ob.PillarScores)
	assert.Equal(t, []string{e.Session.ID}, m.sids)

	// The quiz is discarded; a fresh one starts at the name step.
	assert.Equal(t, quiz.StepName, svc.State(e.Session.ID).Step)

	logs := e.Activities(t)
	require.Len(t, logs, 1)
	assert.Equal(t, activity.OnboardingSubmit, logs[0].Action)
}

func TestSubmit_AssessmentFailureStopsBeforeOnboarding(t *testing.T) {
	svc, e, m := newService(t, time.Hour)
	complete(t, svc, e.Session.ID)
	e.FB.FailRoute(http.MethodPost, "/assessments/", http.StatusInternalServerError)

	_, err := svc.Submit(e.Ctx(), e.Session)
	require.Error(t, err)
	assert.Zero(t, e.FB.Hits(http.MethodPost, "/assessments/complete-onboarding/:uid"))
	assert.Empty(t, m.sids)
	assert.True(t, svc.State(e.Session.ID).Complete, "answers survive a failed submit")
}

func TestDrop(t *testing.T) {
	svc, e, _ := newService(t, time.Hour)
	sid := e.Session.ID
	_, err := svc.SetName(sid, "Ada")
	require.NoError(t, err)
	_, err = svc.Answer(sid, 1)
	require.NoError(t, err)
	require.True(t, e.Sched.Has(sid+":quiz:advance"))

	svc.Drop(sid)
	assert.False(t, e.Sched.Has(sid+":quiz:advance"))
	assert.Equal(t, quiz.StepName, svc.State(sid).Step)
}
