package goals

import (
	"context"
	"sort"
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

// DefaultIcon is used for custom goals created without one.
const DefaultIcon = "🎯"

type UltimateView struct {
	backend.UltimateGoal
	Milestones []MilestoneView `json:"milestones"`
}

// Board is the ultimate goal list in display order, split by origin.
type Board struct {
	Seeded []UltimateView `json:"seeded"`
	Custom []UltimateView `json:"custom"`
}

func viewUltimate(g backend.UltimateGoal) UltimateView {
	return UltimateView{UltimateGoal: g, Milestones: View(g.Milestones, g.CurrentMilestoneIndex, g.IsCompleted)}
}

// SortUltimate orders goals by pillar display rank, keeping backend order
// within a pillar.
func SortUltimate(gs []backend.UltimateGoal) []backend.UltimateGoal {
	out := append([]backend.UltimateGoal(nil), gs...)
	sort.SliceStable(out, func(i, j int) bool {
		return pillar.Rank(pillar.Pillar(out[i].Pillar)) < pillar.Rank(pillar.Pillar(out[j].Pillar))
	})
	return out
}

type Ultimate struct {
	Deps
}

func NewUltimate(d Deps) *Ultimate { return &Ultimate{Deps: d} }

func (s *Ultimate) List(ctx context.Context, sess *model.Session) (*Board, error) {
	gs, err := s.Store.UltimateGoals(ctx, sess.UserID)
	if err != nil && !store.IsStale(err) {
		return nil, err
	}
	b := &Board{Seeded: []UltimateView{}, Custom: []UltimateView{}}
	for _, g := range SortUltimate(gs) {
		if g.IsCustom {
			b.Custom = append(b.Custom, viewUltimate(g))
		} else {
			b.Seeded = append(b.Seeded, viewUltimate(g))
		}
	}
	return b, err
}

// CustomDraft is the input of a custom ultimate goal.
type CustomDraft struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Pillar      string `json:"pillar"`
	Icon        string `json:"icon"`
}

func (d *CustomDraft) Validate() error {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	if d.Title == "" {
		return apperr.Invalid("title is required")
	}
	if d.Description == "" {
		return apperr.Invalid("description is required")
	}
	if !pillar.Valid(d.Pillar) {
		return apperr.Invalid("unknown life pillar %q", d.Pillar)
	}
	if strings.TrimSpace(d.Icon) == "" {
		d.Icon = DefaultIcon
	}
	return nil
}

func (s *Ultimate) CreateCustom(ctx context.Context, sess *model.Session, d CustomDraft) (*backend.CustomGoalCreated, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	res, err := s.Store.API().CreateCustomUltimateGoal(ctx, sess.UserID, backend.CustomGoalCreate{
		Title:       d.Title,
		Description: d.Description,
		Pillar:      d.Pillar,
		Icon:        d.Icon,
	})
	if err != nil {
		s.Logger.Warn("custom goal create failed", zap.String("user_id", sess.UserID), zap.Error(err))
		s.Banners.Show(sess.ID, banner.ChannelUltimate, banner.Error, "Failed to create goal")
		return nil, err
	}
	_ = s.Store.Invalidate(ctx, sess.UserID, store.EntityUltimateGoals)
	return res, nil
}

func (s *Ultimate) find(ctx context.Context, uid, gid string) (UltimateView, error) {
	gs, err := s.Store.UltimateGoals(ctx, uid)
	if err != nil && !store.IsStale(err) {
		return UltimateView{}, err
	}
	for _, g := range gs {
		if g.ID == gid {
			return viewUltimate(g), nil
		}
	}
	return UltimateView{}, apperr.NotFound("ultimate goal", gid)
}

// checked finds gid and checks that mid is its actionable milestone. A
// refusal from the cached view is confirmed against a fresh fetch.
func (s *Ultimate) checked(ctx context.Context, uid, gid, mid string) (UltimateView, error) {
	g, err := s.find(ctx, uid, gid)
	if err == nil {
		if _, err = check(g.Milestones, mid); err == nil {
			return g, nil
		}
	}
	_ = s.Store.Invalidate(ctx, uid, store.EntityUltimateGoals)
	if g, err = s.find(ctx, uid, gid); err != nil {
		return g, err
	}
	_, err = check(g.Milestones, mid)
	return g, err
}

func (s *Ultimate) CompleteMilestone(ctx context.Context, sess *model.Session, gid, mid string) (*backend.MilestoneCompletion, error) {
	release, err := s.Guard.Acquire(ctx, "ultimate", gid)
	if err != nil {
		return nil, err
	}
	defer release()

	g, err := s.checked(ctx, sess.UserID, gid, mid)
	if err != nil {
		return nil, err
	}

	res, err := s.Store.API().CompleteUltimateMilestone(ctx, gid, mid)
	if err != nil {
		s.Logger.Warn("ultimate milestone complete failed",
			zap.String("goal_id", gid), zap.String("milestone_id", mid), zap.Error(err))
		_ = s.Store.Invalidate(ctx, sess.UserID, store.EntityUltimateGoals)
		if mapped := upstreamMilestoneError(err); mapped != err {
			return nil, mapped
		}
		s.Banners.Show(sess.ID, banner.ChannelUltimate, banner.Error, "Failed to complete milestone")
		return nil, err
	}
	_ = s.Store.Invalidate(ctx, sess.UserID, store.EntityUltimateGoals, store.EntityUser)

	p := pillar.Pillar(res.Pillar)
	if p == "" {
		p = pillar.Pillar(g.Pillar)
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
		Action:    activity.UltimateMilestoneComplete,
		Pillar:    string(p),
		XP:        res.XPEarned,
		Payload:   map[string]any{"goal_id": gid, "milestone_id": mid, "goal_completed": res.GoalCompleted},
	})
	return res, nil
}

// Delete removes a custom goal. Seeded goals are refused locally and by
// the backend.
func (s *Ultimate) Delete(ctx context.Context, sess *model.Session, gid string) error {
	g, err := s.find(ctx, sess.UserID, gid)
	if err != nil {
		return err
	}
	if !g.IsCustom {
		return ErrPredefinedGoal
	}
	if err := s.Store.API().DeleteUltimateGoal(ctx, gid); err != nil {
		if mapped := upstreamMilestoneError(err); mapped != err {
			return mapped
		}
		s.Logger.Warn("ultimate goal delete failed", zap.String("goal_id", gid), zap.Error(err))
		s.Banners.Show(sess.ID, banner.ChannelUltimate, banner.Error, "Failed to delete goal")
		return err
	}
	_ = s.Store.Invalidate(ctx, sess.UserID, store.EntityUltimateGoals)
	return nil
}
