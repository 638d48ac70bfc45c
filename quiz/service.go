package quiz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/takeoff-app/takeoff/activity"
	"github.com/takeoff-app/takeoff/apperr"
	"github.com/takeoff-app/takeoff/backend"
	"github.com/takeoff-app/takeoff/config"
	"github.com/takeoff-app/takeoff/model"
	"github.com/takeoff-app/takeoff/push"
	"github.com/takeoff-app/takeoff/scheduler"
	"github.com/takeoff-app/takeoff/store"
	"go.uber.org/zap"
)

// Onboarder flags a session as freshly onboarded.
type Onboarder interface {
	MarkJustOnboarded(ctx context.Context, sid string) error
}

// Service holds the in-progress quiz of each session.
type Service struct {
	bank   *Bank
	st     *store.Store
	marker Onboarder
	sched  *scheduler.Scheduler
	pub    *push.Publisher
	acts   *activity.Service
	delay  time.Duration
	logger *zap.Logger

	mu      sync.Mutex
	quizzes map[string]*Quiz
}

func NewService(bank *Bank, st *store.Store, marker Onboarder, sched *scheduler.Scheduler, pub *push.Publisher,
	acts *activity.Service, cfg config.QuizConfig, logger *zap.Logger) *Service {
	delay := cfg.AdvanceDelay
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}
	return &Service{
		bank:    bank,
		st:      st,
		marker:  marker,
		sched:   sched,
		pub:     pub,
		acts:    acts,
		delay:   delay,
		logger:  logger,
		quizzes: make(map[string]*Quiz),
	}
}

func advanceTimer(sid string) string { return sid + ":quiz:advance" }

func (s *Service) quizLocked(sid string) *Quiz {
	q, ok := s.quizzes[sid]
	if !ok {
		q = New(s.bank)
		s.quizzes[sid] = q
	}
	return q
}

// State returns the session's quiz, starting one if needed.
func (s *Service) State(sid string) View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quizLocked(sid).View()
}

func (s *Service) SetName(sid, name string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.quizLocked(sid)
	if err := q.SetName(name); err != nil {
		return q.View(), err
	}
	return q.View(), nil
}

// Answer records value and, unless this was the last question, moves to
// the next one after the advance delay. The move is pushed as quiz_advance.
func (s *Service) Answer(sid string, value int) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.quizLocked(sid)
	advance, err := q.Answer(value)
	if err != nil {
		return q.View(), err
	}
	if advance {
		idx := q.Current
		s.sched.AddDelay(advanceTimer(sid), s.delay, func() { s.autoAdvance(sid, idx) })
	}
	return q.View(), nil
}

func (s *Service) autoAdvance(sid string, from int) {
	s.mu.Lock()
	q, ok := s.quizzes[sid]
	if !ok || q.Current != from {
		s.mu.Unlock()
		return
	}
	if err := q.Next(); err != nil {
		s.mu.Unlock()
		return
	}
	v := q.View()
	s.mu.Unlock()
	s.pub.Send(sid, push.EventQuizAdvance, v)
}

// Next and Prev cancel a pending auto-advance.
func (s *Service) Next(sid string) (View, error) {
	return s.navigate(sid, (*Quiz).Next)
}

func (s *Service) Prev(sid string) (View, error) {
	return s.navigate(sid, (*Quiz).Prev)
}

func (s *Service) navigate(sid string, move func(*Quiz) error) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sched.Remove(advanceTimer(sid))
	q := s.quizLocked(sid)
	err := move(q)
	return q.View(), err
}

// Result is what Submit sent upstream.
type Result struct {
	DisplayName  string         `json:"display_name"`
	Scores       map[string]int `json:"scores"`
	PillarScores map[string]int `json:"pillar_scores"`
}

// Submit sends the assessment, then the onboarding completion, then marks
// the session as just onboarded and discards the quiz.
func (s *Service) Submit(ctx context.Context, sess *model.Session) (*Result, error) {
	s.mu.Lock()
	q, ok := s.quizzes[sess.ID]
	if !ok || !q.Complete() {
		s.mu.Unlock()
		return nil, apperr.Invalid("answer every question before submitting")
	}
	res := &Result{DisplayName: q.Name, Scores: q.Scores(), PillarScores: q.PillarScores()}
	responses := make(map[string]any, len(q.Answers)+1)
	for k, v := range q.Answers {
		responses[k] = v
	}
	s.mu.Unlock()
	responses["pillar_scores"] = res.Scores

	api := s.st.API()
	err := api.SubmitAssessment(ctx, backend.AssessmentCreate{
		UserID:          sess.UserID,
		ADHDScore:       res.Scores["adhd"],
		AnxietyScore:    res.Scores["anxiety"],
		DepressionScore: res.Scores["depression"],
		Responses:       responses,
	})
	if err != nil {
		return nil, s.fail(ctx, sess, fmt.Errorf("submit assessment: %w", err))
	}
	err = api.CompleteOnboarding(ctx, sess.UserID, backend.OnboardingComplete{
		DisplayName:  res.DisplayName,
		PillarScores: res.PillarScores,
	})
	if err != nil {
		return nil, s.fail(ctx, sess, fmt.Errorf("complete onboarding: %w", err))
	}
	if err := s.marker.MarkJustOnboarded(ctx, sess.ID); err != nil {
		s.logger.Warn("mark just onboarded failed", zap.String("session_id", sess.ID), zap.Error(err))
	}
	_ = s.st.Invalidate(ctx, sess.UserID, store.EntityUser)
	s.Drop(sess.ID)

	s.acts.Log(activity.Entry{
		TraceID:   backend.TraceID(ctx),
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Action:    activity.OnboardingSubmit,
		Payload:   res.Scores,
	})
	s.logger.Info("onboarding submitted", zap.String("user_id", sess.UserID))
	return res, nil
}

func (s *Service) fail(ctx context.Context, sess *model.Session, err error) error {
	s.logger.Warn("onboarding submit failed", zap.String("user_id", sess.UserID), zap.Error(err))
	s.acts.Log(activity.Entry{
		TraceID:   backend.TraceID(ctx),
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Action:    activity.OnboardingSubmit,
		Error:     err.Error(),
	})
	return err
}

// Drop discards the session's quiz and any pending advance.
func (s *Service) Drop(sid string) {
	s.mu.Lock()
	delete(s.quizzes, sid)
	s.mu.Unlock()
	s.sched.Remove(advanceTimer(sid))
}
