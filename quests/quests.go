// Package quests implements the quest board: filtered lists, generation,
// progress updates and the celebration that follows a completed quest.
package quests

import (
	"context"
	"math"

	"github.com/takeoff-app/takeoff/activity"
	"github.com/takeoff-app/takeoff/apperr"
	"github.com/takeoff-app/takeoff/backend"
	"github.com/takeoff-app/takeoff/model"
	"github.com/takeoff-app/takeoff/pillar"
	"github.com/takeoff-app/takeoff/reward"
	"github.com/takeoff-app/takeoff/store"
	"go.uber.org/zap"
)

// ProgressResult is a progress update plus whether it started a
// celebration.
type ProgressResult struct {
	backend.QuestProgress
	Celebrated bool `json:"celebrated"`
}

// CompleteResult is a completion plus whether it was a repeat.
type CompleteResult struct {
	backend.QuestCompletion
	AlreadyCompleted bool `json:"already_completed,omitempty"`
}

type Service struct {
	st      *store.Store
	guard   *store.Guard
	rewards *reward.Player
	acts    *activity.Service
	logger  *zap.Logger
}

func NewService(st *store.Store, guard *store.Guard, rewards *reward.Player, acts *activity.Service, logger *zap.Logger) *Service {
	return &Service{st: st, guard: guard, rewards: rewards, acts: acts, logger: logger}
}

// List returns the quests matching f. Each filter is its own cached view.
func (s *Service) List(ctx context.Context, sess *model.Session, f backend.QuestFilter) ([]backend.Quest, error) {
	if f.Pillar != "" && !pillar.Valid(f.Pillar) {
		return nil, apperr.Invalid("unknown life pillar %q", f.Pillar)
	}
	qs, err := s.st.Quests(ctx, sess.UserID, f)
	if qs == nil && (err == nil || store.IsStale(err)) {
		qs = []backend.Quest{}
	}
	return qs, err
}

// Generate asks the backend for new quests, optionally for one pillar.
// Only one generation per user runs at a time.
func (s *Service) Generate(ctx context.Context, sess *model.Session, pillarName string) (*backend.GenerateResult, error) {
	if pillarName != "" && !pillar.Valid(pillarName) {
		return nil, apperr.Invalid("unknown life pillar %q", pillarName)
	}
	release, err := s.guard.Acquire(ctx, "generate", sess.UserID)
	if err != nil {
		return nil, err
	}
	defer release()

	res, err := s.st.API().GenerateQuests(ctx, sess.UserID, pillarName)
	if err != nil {
		s.logger.Warn("quest generation failed", zap.String("user_id", sess.UserID), zap.Error(err))
		return nil, err
	}
	_ = s.st.Invalidate(ctx, sess.UserID, store.EntityQuests)
	return res, nil
}

// findFresh is find after dropping the cached quest views, so the result
// reflects completions made elsewhere. A stale copy does not count.
func (s *Service) findFresh(ctx context.Context, uid, id string) (backend.Quest, bool) {
	_ = s.st.Invalidate(ctx, uid, store.EntityQuests)
	qs, err := s.st.Quests(ctx, uid, backend.QuestFilter{})
	if err != nil {
		return backend.Quest{}, false
	}
	for _, q := range qs {
		if q.ID == id {
			return q, true
		}
	}
	return backend.Quest{}, false
}

// find looks id up in the user's unfiltered quest view.
func (s *Service) find(ctx context.Context, uid, id string) (backend.Quest, bool) {
	qs, err := s.st.Quests(ctx, uid, backend.QuestFilter{})
	if err != nil && !store.IsStale(err) {
		return backend.Quest{}, false
	}
	for _, q := range qs {
		if q.ID == id {
			return q, true
		}
	}
	return backend.Quest{}, false
}

// UpdateProgress sets the absolute progress value of a quest. The
// celebration plays only for the update that moves a quest known to be
// open to completed. It shares the quest guard with Complete.
func (s *Service) UpdateProgress(ctx context.Context, sess *model.Session, id string, value float64) (*ProgressResult, error) {
	if value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, apperr.Invalid("progress value must be a non-negative number")
	}
	release, err := s.guard.Acquire(ctx, "quest", id)
	if err != nil {
		return nil, err
	}
	defer release()

	before, known := s.findFresh(ctx, sess.UserID, id)

	res, err := s.st.API().UpdateQuestProgress(ctx, id, value)
	if err != nil {
		s.logger.Warn("quest progress failed", zap.String("quest_id", id), zap.Error(err))
		return nil, err
	}
	_ = s.st.Invalidate(ctx, sess.UserID, store.EntityQuests, store.EntityUser)

	out := &ProgressResult{QuestProgress: *res}
	if known && !before.IsCompleted && res.IsCompleted && res.XPEarned > 0 {
		s.celebrate(sess, reward.Celebration{
			Title:      before.Title,
			Pillar:     pillar.Pillar(before.LifePillar),
			XP:         res.XPEarned,
			Difficulty: before.Difficulty,
		})
		out.Celebrated = true
	} else if res.IsCompleted && !known {
		s.logger.Debug("quest prior state unknown, not celebrating", zap.String("quest_id", id))
	}
	xp := 0
	if out.Celebrated {
		xp = res.XPEarned
	}
	s.acts.Log(activity.Entry{
		TraceID:   backend.TraceID(ctx),
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Action:    activity.QuestProgress,
		Pillar:    before.LifePillar,
		XP:        xp,
		Payload:   map[string]any{"quest_id": id, "value": value, "completed": res.IsCompleted},
	})
	return out, nil
}

// Complete finishes a quest outright.
func (s *Service) Complete(ctx context.Context, sess *model.Session, id string) (*CompleteResult, error) {
	release, err := s.guard.Acquire(ctx, "quest", id)
	if err != nil {
		return nil, err
	}
	defer release()

	before, known := s.find(ctx, sess.UserID, id)
	res, err := s.st.API().CompleteQuest(ctx, id)
	if apiErr, ok := backend.AsAPIError(err); ok && apiErr.AlreadyCompleted() {
		_ = s.st.Invalidate(ctx, sess.UserID, store.EntityQuests)
		return &CompleteResult{AlreadyCompleted: true}, nil
	}
	if err != nil {
		s.logger.Warn("quest complete failed", zap.String("quest_id", id), zap.Error(err))
		return nil, err
	}
	_ = s.st.Invalidate(ctx, sess.UserID, store.EntityQuests, store.EntityUser)

	if res.XPEarned > 0 {
		c := reward.Celebration{Title: "Quest complete", Pillar: pillar.Pillar(res.Pillar), XP: res.XPEarned, Difficulty: "medium"}
		if known {
			c.Title, c.Difficulty = before.Title, before.Difficulty
			if c.Pillar == "" {
				c.Pillar = pillar.Pillar(before.LifePillar)
			}
		}
		s.celebrate(sess, c)
	}
	s.acts.Log(activity.Entry{
		TraceID:   backend.TraceID(ctx),
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Action:    activity.QuestComplete,
		Pillar:    res.Pillar,
		XP:        res.XPEarned,
		Payload:   map[string]any{"quest_id": id, "leveled_up": res.LeveledUp},
	})
	return &CompleteResult{QuestCompletion: *res}, nil
}

func (s *Service) celebrate(sess *model.Session, c reward.Celebration) {
	s.rewards.Play(sess.ID, c, func(amount int, p pillar.Pillar, title string) {
		s.logger.Debug("quest celebration finished",
			zap.String("session_id", sess.ID),
			zap.String("pillar", string(p)),
			zap.Int("xp", amount))
	})
}

// Abandon deletes a quest without confirmation.
func (s *Service) Abandon(ctx context.Context, sess *model.Session, id string) error {
	if err := s.st.API().DeleteQuest(ctx, id); err != nil {
		s.logger.Warn("quest abandon failed", zap.String("quest_id", id), zap.Error(err))
		return err
	}
	_ = s.st.Invalidate(ctx, sess.UserID, store.EntityQuests)
	return nil
}
