// Package server wires the BFF: infrastructure in, a gin engine out.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/takeoff-app/takeoff/activity"
	"github.com/takeoff-app/takeoff/backend"
	"github.com/takeoff-app/takeoff/banner"
	"github.com/takeoff-app/takeoff/cache"
	"github.com/takeoff-app/takeoff/calendar"
	"github.com/takeoff-app/takeoff/chat"
	"github.com/takeoff-app/takeoff/config"
	"github.com/takeoff-app/takeoff/dashboard"
	"github.com/takeoff-app/takeoff/goals"
	"github.com/takeoff-app/takeoff/jobs"
	"github.com/takeoff-app/takeoff/push"
	"github.com/takeoff-app/takeoff/quests"
	"github.com/takeoff-app/takeoff/quiz"
	"github.com/takeoff-app/takeoff/reward"
	"github.com/takeoff-app/takeoff/scheduler"
	"github.com/takeoff-app/takeoff/session"
	"github.com/takeoff-app/takeoff/store"
	"github.com/takeoff-app/takeoff/tasks"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Server holds every long-lived component of one BFF process.
type Server struct {
	Config   *config.Config
	DB       *gorm.DB
	Cache    cache.Cache
	PubSub   cache.PubSub
	Sched    *scheduler.Scheduler
	API      *backend.Client
	Store    *store.Store
	Guard    *store.Guard
	Sessions *session.Manager
	Activity *activity.Service
	Banners  *banner.Board
	Rewards  *reward.Player
	Jobs     *jobs.Runner

	Tasks     *tasks.Service
	Quests    *quests.Service
	LongTerm  *goals.LongTerm
	Ultimate  *goals.Ultimate
	Calendar  *calendar.Service
	Chat      *chat.Service
	Quiz      *quiz.Service
	Dashboard *dashboard.Service

	Engine *gin.Engine

	logger *zap.Logger
	cancel context.CancelFunc
}

// New assembles the services over an opened database and cache. The
// caller owns db and c; Close releases everything New started.
func New(cfg *config.Config, db *gorm.DB, c cache.Cache, ps cache.PubSub, logger *zap.Logger) (*Server, error) {
	s := &Server{Config: cfg, DB: db, Cache: c, PubSub: ps, logger: logger}

	s.Sched = scheduler.New(logger)
	s.API = backend.New(cfg.Backend, logger)
	s.Store = store.New(s.API, c, cfg.Views.CacheTTL, logger)
	s.Guard = store.NewGuard(c, cfg.Views.InFlightTTL)
	s.Activity = activity.New(db, cfg.Activity, logger)

	pub := push.NewPublisher(ps, logger)
	s.Banners = banner.New(cfg.Banner, s.Sched, pub)
	s.Rewards = reward.NewPlayer(reward.TimingsFrom(cfg.Reward), s.Sched, pub, logger)

	mgr, err := session.NewManager(db, c, s.Store, s.Sched, cfg.Security, cfg.Session, logger)
	if err != nil {
		s.stopWorkers()
		return nil, fmt.Errorf("server: sessions: %w", err)
	}
	s.Sessions = mgr

	bank, err := quiz.DefaultBank()
	if err != nil {
		s.stopWorkers()
		return nil, fmt.Errorf("server: question bank: %w", err)
	}
	s.Quiz = quiz.NewService(bank, s.Store, mgr, s.Sched, pub, s.Activity, cfg.Quiz, logger)

	s.Calendar, err = calendar.NewService(s.Store, s.Banners, s.Activity, cfg.Views, logger)
	if err != nil {
		s.stopWorkers()
		return nil, fmt.Errorf("server: calendar: %w", err)
	}

	s.Tasks = tasks.NewService(s.Store, s.Guard, s.Rewards, s.Activity, logger)
	s.Quests = quests.NewService(s.Store, s.Guard, s.Rewards, s.Activity, logger)
	deps := goals.Deps{
		Store:    s.Store,
		Guard:    s.Guard,
		Banners:  s.Banners,
		Rewards:  s.Rewards,
		Activity: s.Activity,
		Logger:   logger,
	}
	s.LongTerm = goals.NewLongTerm(deps)
	s.Ultimate = goals.NewUltimate(deps)
	s.Chat = chat.NewService(s.Store, logger)
	s.Dashboard = dashboard.NewService(s.Store, mgr, logger)

	// Per-session UI state dies with the session.
	mgr.OnTeardown(s.Banners.Drop)
	mgr.OnTeardown(s.Rewards.Drop)
	mgr.OnTeardown(s.Quiz.Drop)

	s.Jobs, err = jobs.New(cfg.Session, cfg.Activity, mgr, s.Activity, logger)
	if err != nil {
		s.stopWorkers()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.Engine = s.routes(ctx)
	return s, nil
}

// Start launches the cron jobs.
func (s *Server) Start() {
	s.Jobs.Start()
	s.logger.Info("jobs started", zap.Int("count", s.Jobs.Len()))
}

func (s *Server) stopWorkers() {
	s.Sched.Stop()
	s.Activity.Stop(context.Background())
}

// Close stops the jobs, the timers and the activity writer, flushing
// queued entries for up to five seconds.
func (s *Server) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.cancel != nil {
		s.cancel()
	}
	s.Jobs.Stop(ctx)
	s.Sched.Stop()
	s.Activity.Stop(ctx)
}
