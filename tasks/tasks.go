// Package tasks implements the task list widget: grouping, validated
// creation and guarded completion.
package tasks

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/takeoff-app/takeoff/activity"
	"github.com/takeoff-app/takeoff/apperr"
	"github.com/takeoff-app/takeoff/backend"
	"github.com/takeoff-app/takeoff/model"
	"github.com/takeoff-app/takeoff/pillar"
	"github.com/takeoff-app/takeoff/reward"
	"github.com/takeoff-app/takeoff/store"
	"go.uber.org/zap"
)

// CompletedPreview caps the completed section of the board.
const CompletedPreview = 5

const (
	DefaultPriority = "medium"
	DefaultDuration = 30
	MaxDuration     = 480
)

var priorities = map[string]bool{"low": true, "medium": true, "high": true, "urgent": true}

// ErrTaskCompleted is returned when deleting a task that is already done.
var ErrTaskCompleted = errors.New("tasks: task already completed")

// Board is the grouped task list.
type Board struct {
	Active         []backend.Task `json:"active"`
	Completed      []backend.Task `json:"completed"`
	CompletedCount int            `json:"completed_count"`
}

// Draft is the user's input for a new task.
type Draft struct {
	Title             string `json:"title"`
	Description       string `json:"description"`
	LifePillar        string `json:"life_pillar"`
	Priority          string `json:"priority"`
	EstimatedDuration int    `json:"estimated_duration"`
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

// Group splits tasks into the active list, in backend order, and a
// preview of the completed ones.
func Group(all []backend.Task) *Board {
	b := &Board{Active: []backend.Task{}, Completed: []backend.Task{}}
	for _, t := range all {
		if !t.Completed {
			b.Active = append(b.Active, t)
			continue
		}
		b.CompletedCount++
		if len(b.Completed) < CompletedPreview {
			b.Completed = append(b.Completed, t)
		}
	}
	return b
}

// Board returns the grouped tasks of sess. A stale error is returned
// together with the board built from the stale copy.
func (s *Service) Board(ctx context.Context, sess *model.Session) (*Board, error) {
	all, err := s.st.Tasks(ctx, sess.UserID)
	if err != nil && !store.IsStale(err) {
		return nil, err
	}
	return Group(all), err
}

// Validate normalises d in place.
func (d *Draft) Validate() error {
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		return apperr.Invalid("title is required")
	}
	if utf8.RuneCountInString(d.Title) > 200 {
		return apperr.Invalid("title is too long")
	}
	if !pillar.Valid(d.LifePillar) {
		return apperr.Invalid("unknown life pillar %q", d.LifePillar)
	}
	if d.Priority == "" {
		d.Priority = DefaultPriority
	}
	if !priorities[d.Priority] {
		return apperr.Invalid("unknown priority %q", d.Priority)
	}
	if d.EstimatedDuration == 0 {
		d.EstimatedDuration = DefaultDuration
	}
	if d.EstimatedDuration < 1 || d.EstimatedDuration > MaxDuration {
		return apperr.Invalid("estimated duration must be between 1 and %d minutes", MaxDuration)
	}
	return nil
}

// Create validates d and posts it with its computed XP reward.
func (s *Service) Create(ctx context.Context, sess *model.Session, d Draft) (*backend.Task, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	t, err := s.st.API().CreateTask(ctx, backend.TaskCreate{
		UserID:            sess.UserID,
		Title:             d.Title,
		Description:       d.Description,
		LifePillar:        d.LifePillar,
		Priority:          d.Priority,
		EstimatedDuration: d.EstimatedDuration,
		XPReward:          pillar.TaskXP(d.EstimatedDuration),
	})
	if err != nil {
		s.logger.Warn("task create failed", zap.String("user_id", sess.UserID), zap.Error(err))
		return nil, err
	}
	_ = s.st.Invalidate(ctx, sess.UserID, store.EntityTasks)
	return t, nil
}

// Complete marks id done. A repeated completion yields a zero-XP result
// flagged AlreadyCompleted instead of an error, and concurrent attempts
// on the same task get store.ErrInFlight.
func (s *Service) Complete(ctx context.Context, sess *model.Session, id string) (*backend.TaskCompletion, error) {
	release, err := s.guard.Acquire(ctx, "task", id)
	if err != nil {
		return nil, err
	}
	defer release()

	res, err := s.st.API().CompleteTask(ctx, id)
	if apiErr, ok := backend.AsAPIError(err); ok && apiErr.AlreadyCompleted() {
		s.logger.Info("task already completed", zap.String("task_id", id), zap.String("user_id", sess.UserID))
		_ = s.st.Invalidate(ctx, sess.UserID, store.EntityTasks)
		return &backend.TaskCompletion{TaskID: id, Completed: true, AlreadyCompleted: true}, nil
	}
	if err != nil {
		s.logger.Warn("task complete failed", zap.String("task_id", id), zap.Error(err))
		return nil, err
	}

	_ = s.st.Invalidate(ctx, sess.UserID, store.EntityTasks, store.EntityUser)
	if res.XPEarned > 0 {
		s.rewards.Toast(sess.ID, pillar.Pillar(res.LifePillar), res.XPEarned)
	}
	s.acts.Log(activity.Entry{
		TraceID:   backend.TraceID(ctx),
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Action:    activity.TaskComplete,
		Pillar:    res.LifePillar,
		XP:        res.XPEarned,
		Payload:   map[string]string{"task_id": id},
	})
	return res, nil
}

// Delete removes an incomplete task. The check runs against the cached
// board; the backend still has the final word.
func (s *Service) Delete(ctx context.Context, sess *model.Session, id string) error {
	all, err := s.st.Tasks(ctx, sess.UserID)
	if err == nil || store.IsStale(err) {
		for _, t := range all {
			if t.ID == id && t.Completed {
				return ErrTaskCompleted
			}
		}
	}
	if err := s.st.API().DeleteTask(ctx, id); err != nil {
		s.logger.Warn("task delete failed", zap.String("task_id", id), zap.Error(err))
		return err
	}
	_ = s.st.Invalidate(ctx, sess.UserID, store.EntityTasks)
	return nil
}
