package goals

import (
	"context"
	"strings"

	"github.com/takeoff-app/takeoff/activity"
	"github.com/takeoff-app/takeoff/apperr"
	"github.com/takeoff-app/takeoff/backend"
	"github.com/takeoff-app/takeoff/banner"
	"github.com/takeoff-app/takeoff/model"
	"github.com/takeoff-app/takeoff/pillar"
	"github.com/takeoff-app/takeoff/reward"
	"github.com/takeoff-app/takeoff/store"
	"go.uber.org/zap"
)

// GoalView is a long-term goal with derived milestone states.
type GoalView struct {
	backend.Goal
	Milestones []MilestoneView `json:"milestones"`
}

func viewGoal(g backend.Goal) GoalView {
	return GoalView{Goal: g, Milestones: View(g.Milestones, g.CurrentMilestoneIndex, g.IsCompleted)}
}

// Deps bundles what both goal services need.
type Deps struct {
	Store    *store.Store
	Guard    *store.Guard
	Banners  *banner.Board
	Rewards  *reward.Player
	Activity *activity.Service
	Logger   *zap.Logger
}

type LongTerm struct {
	Deps
}

func NewLongTerm(d Deps) *LongTerm { return &LongTerm{Deps: d} }

func (s *LongTerm) List(ctx context.Context, sess *model.Session) ([]GoalView, error) {
	gs, err := s.Store.Goals(ctx, sess.UserID)
	if err != nil && !store.IsStale(err) {
		return nil, err
	}
	out := make([]GoalView, 0, len(gs))
	for _, g := range gs {
		out = append(out, viewGoal(g))
	}
	return out, err
}

// Create asks the backend to plan a roadmap for description.
func (s *LongTerm) Create(ctx context.Context, sess *model.Session, description, pillarName string) (*backend.GoalCreated, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, apperr.Invalid("goal description is required")
	}
	if pillarName == "" {
		pillarName = string(pillar.Finance)
	}
	if !pillar.Valid(pillarName) {
		return nil, apperr.Invalid("unknown life pillar %q", pillarName)
	}
	res, err := s.Store.API().CreateGoal(ctx, sess.UserID, backend.GoalCreate{GoalDescription: description, LifePillar: pillarName})
	if err != nil {
		s.Logger.Warn("goal create failed", zap.String("user_id", sess.UserID), zap.Error(err))
		s.Banners.Show(sess.ID, banner.ChannelGoals, banner.Error, "Failed to create goal")
		return nil, err
	}
	_ = s.Store.Invalidate(ctx, sess.UserID, store.EntityGoals)
	return res, nil
}

func (s *LongTerm) find(ctx context.Context, uid, gid string) (GoalView, error) {
	gs, err := s.Store.Goals(ctx, uid)
	if err != nil && !store.IsStale(err) {
		return GoalView{}, err
	}
	for _, g := range gs {
		if g.ID == gid {
			return viewGoal(g), nil
		}
	}
	return GoalView{}, apperr.NotFound("goal", gid)
}

// checked finds gid and checks that mid is its actionable milestone. A
// refusal from the cached view is confirmed against a fresh fetch.
func (s *LongTerm) checked(ctx context.Context, uid, gid, mid string) (GoalView, error) {
	g, err := s.find(ctx, uid, gid)
	if err == nil {
		if _, err = check(g.Milestones, mid); err == nil {
			return g, nil
		}
	}
	_ = s.Store.Invalidate(ctx, uid, store.EntityGoals)
	if g, err = s.find(ctx, uid, gid); err != nil {
		return g, err
	}
	_, err = check(g.Milestones, mid)
	return g, err
}

// CompleteMilestone completes mid of goal gid. Only the actionable
// milestone is sent upstream.
func (s *LongTerm) CompleteMilestone(ctx context.Context, sess *model.Session, gid, mid string) (*backend.MilestoneCompletion, error) {
	release, err := s.Guard.Acquire(ctx, "goal", gid)
	if err != nil {
		return nil, err
	}
	defer release()

	g, err := s.checked(ctx, sess.UserID, gid, mid)
	if err != nil {
		return nil, err
	}

	res, err := s.Store.API().CompleteGoalMilestone(ctx, gid, mid)
	if err != nil {
		s.Logger.Warn("milestone complete failed",
			zap.String("goal_id", gid), zap.String("milestone_id", mid), zap.Error(err))
		_ = s.Store.Invalidate(ctx, sess.UserID, store.EntityGoals)
		if mapped := upstreamMilestoneError(err); mapped != err {
			return nil, mapped
		}
		s.Banners.Show(sess.ID, banner.ChannelGoals, banner.Error, "Failed to complete milestone")
		return nil, err
	}
	_ = s.Store.Invalidate(ctx, sess.UserID, store.EntityGoals, store.EntityUser)

	p := pillar.Pillar(res.Pillar)
	if p == "" {
		p = pillar.Pillar(g.LifePillar)
	}
	if res.XPEarned > 0 {
		s.Rewards.Play(sess.ID, reward.Celebration{
			Title:      res.Title(),
			Pillar:     p,
			XP:         res.XPEarned,
			Difficulty: celebrationDifficulty(res.GoalCompleted),
		}, nil)
	}
	s.Activity.Log(activity.Entry{
		TraceID:   backend.TraceID(ctx),
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Action:    activity.MilestoneComplete,
		Pillar:    string(p),
		XP:        res.XPEarned,
		Payload:   map[string]any{"goal_id": gid, "milestone_id": mid, "goal_completed": res.GoalCompleted},
	})
	return res, nil
}

// Abandon deletes goal gid without confirmation.
func (s *LongTerm) Abandon(ctx context.Context, sess *model.Session, gid string) error {
	if err := s.Store.API().DeleteGoal(ctx, gid); err != nil {
		s.Logger.Warn("goal abandon failed", zap.String("goal_id", gid), zap.Error(err))
		s.Banners.Show(sess.ID, banner.ChannelGoals, banner.Error, "Failed to abandon goal")
		return err
	}
	_ = s.Store.Invalidate(ctx, sess.UserID, store.EntityGoals)
	return nil
}
