// Package store is the data-access layer between the widgets and the
// Takeoff backend. Each entity type has its own read path over a shared
// cache, and every mutation is followed by an explicit Invalidate.
package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/takeoff-app/takeoff/backend"
	"github.com/takeoff-app/takeoff/cache"
	"go.uber.org/zap"
)

// Entity names a cached view family.
type Entity string

const (
	EntityUser          Entity = "user"
	EntityTasks         Entity = "tasks"
	EntityQuests        Entity = "quests"
	EntityGoals         Entity = "goals"
	EntityUltimateGoals Entity = "ultimate_goals"
	EntityEvents        Entity = "events"
)

// AllEntities is every entity the store caches.
var AllEntities = []Entity{EntityUser, EntityTasks, EntityQuests, EntityGoals, EntityUltimateGoals, EntityEvents}

// Store caches backend reads per user.
type Store struct {
	api    *backend.Client
	loader *loader
	logger *zap.Logger
}

// New creates a Store whose views live for ttl.
func New(api *backend.Client, c cache.Cache, ttl time.Duration, logger *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Store{api: api, loader: newLoader(c, ttl, logger), logger: logger}
}

// API exposes the upstream client for mutations.
func (s *Store) API() *backend.Client { return s.api }

// User returns the profile behind token. The view is keyed by uid.
func (s *Store) User(ctx context.Context, uid, token string) (*backend.User, error) {
	return load(ctx, s.loader, EntityUser, uid, "", func(ctx context.Context) (*backend.User, error) {
		return s.api.Me(ctx, token)
	})
}

func (s *Store) Tasks(ctx context.Context, uid string) ([]backend.Task, error) {
	return load(ctx, s.loader, EntityTasks, uid, "", func(ctx context.Context) ([]backend.Task, error) {
		return s.api.ListTasks(ctx, uid)
	})
}

// Quests returns one filtered variant. Each filter is fetched on its own;
// a superset is never filtered locally.
func (s *Store) Quests(ctx context.Context, uid string, f backend.QuestFilter) ([]backend.Quest, error) {
	return load(ctx, s.loader, EntityQuests, uid, f.Key(), func(ctx context.Context) ([]backend.Quest, error) {
		return s.api.ListQuests(ctx, uid, f)
	})
}

func (s *Store) Goals(ctx context.Context, uid string) ([]backend.Goal, error) {
	return load(ctx, s.loader, EntityGoals, uid, "", func(ctx context.Context) ([]backend.Goal, error) {
		return s.api.ListGoals(ctx, uid)
	})
}

func (s *Store) UltimateGoals(ctx context.Context, uid string) ([]backend.UltimateGoal, error) {
	return load(ctx, s.loader, EntityUltimateGoals, uid, "", func(ctx context.Context) ([]backend.UltimateGoal, error) {
		return s.api.ListUltimateGoals(ctx, uid)
	})
}

// Events returns the calendar window of daysAhead days.
func (s *Store) Events(ctx context.Context, uid string, daysAhead int) ([]backend.CalendarEvent, error) {
	variant := "d" + strconv.Itoa(daysAhead)
	return load(ctx, s.loader, EntityEvents, uid, variant, func(ctx context.Context) ([]backend.CalendarEvent, error) {
		return s.api.ListEvents(ctx, uid, daysAhead)
	})
}

// Invalidate drops the named entities for uid. With no entities it drops
// all of them.
func (s *Store) Invalidate(ctx context.Context, uid string, entities ...Entity) error {
	if len(entities) == 0 {
		entities = AllEntities
	}
	var errs []error
	for _, e := range entities {
		if err := s.loader.invalidate(ctx, e, uid); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		s.logger.Warn("store: invalidate", zap.String("user_id", uid), zap.Error(err))
		return err
	}
	return nil
}
