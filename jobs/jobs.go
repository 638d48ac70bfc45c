// Package jobs runs the periodic maintenance of the BFF: expired session
// sweeping and activity log pruning.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/takeoff-app/takeoff/config"
	"go.uber.org/zap"
)

// SessionSweeper deletes sessions that expired before now.
type SessionSweeper interface {
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// ActivityPruner deletes activity older than its retention window.
type ActivityPruner interface {
	Prune(ctx context.Context, now time.Time) (int64, error)
}

// Runner owns the cron scheduler.
type Runner struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct{ s *zap.SugaredLogger }

func (l cronLogger) Info(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.s.Errorw(msg, append(kv, "error", err)...)
}

// New registers the sweep and prune jobs. An empty schedule disables a job.
func New(sess config.SessionConfig, act config.ActivityConfig, sweeper SessionSweeper, pruner ActivityPruner, logger *zap.Logger) (*Runner, error) {
	cl := cronLogger{s: logger.Sugar()}
	r := &Runner{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
	}

	if sess.SweepCron != "" {
		if _, err := r.cron.AddFunc(sess.SweepCron, func() { r.sweep(sweeper) }); err != nil {
			return nil, fmt.Errorf("jobs: session sweep %q: %w", sess.SweepCron, err)
		}
	}
	if act.PruneCron != "" {
		if _, err := r.cron.AddFunc(act.PruneCron, func() { r.prune(pruner) }); err != nil {
			return nil, fmt.Errorf("jobs: activity prune %q: %w", act.PruneCron, err)
		}
	}
	return r, nil
}

func (r *Runner) sweep(s SessionSweeper) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := s.Sweep(ctx, time.Now())
	if err != nil {
		r.logger.Error("session sweep failed", zap.Error(err))
		return
	}
	r.logger.Debug("session sweep done", zap.Int("count", n))
}

func (r *Runner) prune(p ActivityPruner) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := p.Prune(ctx, time.Now()); err != nil {
		r.logger.Error("activity prune failed", zap.Error(err))
	}
}

// Len returns the number of registered jobs.
func (r *Runner) Len() int { return len(r.cron.Entries()) }

// Start runs the scheduler in the background.
func (r *Runner) Start() { r.cron.Start() }

// Stop stops scheduling and waits for running jobs or ctx.
func (r *Runner) Stop(ctx context.Context) {
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
	}
}
