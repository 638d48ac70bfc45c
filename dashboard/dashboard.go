// Package dashboard assembles the dashboard header and the daily focus
// panel from the per-entity stores.
package dashboard

import (
	"context"
	"math"

	"github.com/takeoff-app/takeoff/backend"
	"github.com/takeoff-app/takeoff/model"
	"github.com/takeoff-app/takeoff/pillar"
	"github.com/takeoff-app/takeoff/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	FocusTasks  = 5
	FocusQuests = 3
)

// Sessions is the part of the session manager the dashboard reads.
type Sessions interface {
	Bearer(sess *model.Session) (string, error)
	ConsumeJustOnboarded(ctx context.Context, sid string) (bool, error)
}

// PillarStat is one pillar card.
type PillarStat struct {
	Pillar   pillar.Pillar `json:"pillar"`
	Label    string        `json:"label"`
	Icon     string        `json:"icon"`
	Level    int           `json:"level"`
	XP       int           `json:"xp"`
	Progress int           `json:"progress"`
}

type Summary struct {
	User          *backend.User `json:"user"`
	TotalXP       int           `json:"total_xp"`
	AverageLevel  int           `json:"average_level"`
	Pillars       []PillarStat  `json:"pillars"`
	JustOnboarded bool          `json:"just_onboarded"`
}

type Focus struct {
	Tasks            []backend.Task  `json:"tasks"`
	Quests           []backend.Quest `json:"quests"`
	TotalXPAvailable int             `json:"total_xp_available"`
}

type Service struct {
	st       *store.Store
	sessions Sessions
	logger   *zap.Logger
}

func NewService(st *store.Store, sessions Sessions, logger *zap.Logger) *Service {
	return &Service{st: st, sessions: sessions, logger: logger}
}

// Stats derives the header numbers from a profile.
func Stats(u *backend.User) (total, avgLevel int, pillars []PillarStat) {
	levels := 0
	pillars = make([]PillarStat, 0, len(pillar.All))
	for _, p := range pillar.All {
		xp, lvl := u.PillarXP(p), u.PillarLevel(p)
		total += xp
		levels += lvl
		pillars = append(pillars, PillarStat{
			Pillar:   p,
			Label:    pillar.Label(p),
			Icon:     pillar.Icon(p),
			Level:    lvl,
			XP:       xp,
			Progress: xp % 100,
		})
	}
	avgLevel = int(math.Round(float64(levels) / float64(len(pillar.All))))
	return total, avgLevel, pillars
}

// Summary returns the header of sess and consumes its just-onboarded flag.
func (s *Service) Summary(ctx context.Context, sess *model.Session) (*Summary, error) {
	token, err := s.sessions.Bearer(sess)
	if err != nil {
		return nil, err
	}
	u, err := s.st.User(ctx, sess.UserID, token)
	if err != nil && !store.IsStale(err) {
		return nil, err
	}
	stale := err

	out := &Summary{User: u}
	out.TotalXP, out.AverageLevel, out.Pillars = Stats(u)
	out.JustOnboarded, err = s.sessions.ConsumeJustOnboarded(ctx, sess.ID)
	if err != nil {
		s.logger.Warn("consume just onboarded failed", zap.String("session_id", sess.ID), zap.Error(err))
	}
	return out, stale
}

// DailyFocus loads tasks and active quests concurrently and keeps the
// first few of each.
func (s *Service) DailyFocus(ctx context.Context, sess *model.Session) (*Focus, error) {
	var (
		tasks          []backend.Task
		quests         []backend.Quest
		taskErr, qsErr error
	)
	active := false
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tasks, taskErr = s.st.Tasks(gctx, sess.UserID)
		if taskErr != nil && !store.IsStale(taskErr) {
			return taskErr
		}
		return nil
	})
	g.Go(func() error {
		quests, qsErr = s.st.Quests(gctx, sess.UserID, backend.QuestFilter{Completed: &active})
		if qsErr != nil && !store.IsStale(qsErr) {
			return qsErr
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	f := &Focus{Tasks: []backend.Task{}, Quests: []backend.Quest{}}
	for _, t := range tasks {
		if len(f.Tasks) == FocusTasks {
			break
		}
		if !t.Completed {
			f.Tasks = append(f.Tasks, t)
			f.TotalXPAvailable += t.XPReward
		}
	}
	for _, q := range quests {
		if len(f.Quests) == FocusQuests {
			break
		}
		f.Quests = append(f.Quests, q)
		f.TotalXPAvailable += q.XPReward
	}
	if taskErr != nil {
		return f, taskErr
	}
	return f, qsErr
}
