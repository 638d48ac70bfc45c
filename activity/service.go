// Package activity records XP-relevant actions taken through the BFF.
// Writes are batched off the request path.
package activity

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/takeoff-app/takeoff/config"
	"github.com/takeoff-app/takeoff/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Actions written to the log.
const (
	SessionInit               = "session_init"
	SessionTeardown           = "session_teardown"
	TaskComplete              = "task_complete"
	QuestComplete             = "quest_complete"
	QuestProgress             = "quest_progress"
	MilestoneComplete         = "milestone_complete"
	UltimateMilestoneComplete = "ultimate_milestone_complete"
	CalendarSync              = "calendar_sync"
	OnboardingSubmit          = "onboarding_submit"
)

// Entry holds one action to be logged.
type Entry struct {
	TraceID   string
	SessionID string
	UserID    string
	Action    string
	Pillar    string
	XP        int
	Payload   interface{}
	Error     string
}

// Service logs entries asynchronously in batches.
type Service struct {
	db        *gorm.DB
	ch        chan *model.ActivityLog
	stopCh    chan struct{}
	wg        sync.WaitGroup
	batchSize int
	interval  time.Duration
	retention time.Duration
	logger    *zap.Logger
}

// New creates a Service and starts its background worker.
func New(db *gorm.DB, cfg config.ActivityConfig, logger *zap.Logger) *Service {
	svc := &Service{
		db:        db,
		ch:        make(chan *model.ActivityLog, 1024),
		stopCh:    make(chan struct{}),
		batchSize: cfg.BatchSize,
		interval:  cfg.FlushInterval,
		retention: cfg.Retention,
		logger:    logger,
	}
	if svc.batchSize <= 0 {
		svc.batchSize = 100
	}
	if svc.interval <= 0 {
		svc.interval = 2 * time.Second
	}
	if svc.retention <= 0 {
		svc.retention = 30 * 24 * time.Hour
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Log enqueues an entry for async DB write.
func (svc *Service) Log(entry Entry) {
	record := &model.ActivityLog{
		TraceID:   entry.TraceID,
		SessionID: entry.SessionID,
		UserID:    entry.UserID,
		Action:    entry.Action,
		Pillar:    entry.Pillar,
		XP:        entry.XP,
		Error:     entry.Error,
	}
	if entry.Payload != nil {
		if raw, err := json.Marshal(entry.Payload); err == nil {
			record.Payload = datatypes.JSON(raw)
		}
	}
	select {
	case svc.ch <- record:
	default:
		svc.logger.Warn("activity channel full, dropping entry",
			zap.String("action", entry.Action),
			zap.String("user_id", entry.UserID))
	}
}

// Recent returns the latest entries of uid, newest first.
func (svc *Service) Recent(ctx context.Context, uid string, limit int) ([]model.ActivityLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var logs []model.ActivityLog
	err := svc.db.WithContext(ctx).
		Where("user_id = ?", uid).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// Prune deletes entries older than the retention window measured from now.
func (svc *Service) Prune(ctx context.Context, now time.Time) (int64, error) {
	res := svc.db.WithContext(ctx).
		Where("created_at < ?", now.Add(-svc.retention)).
		Delete(&model.ActivityLog{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		svc.logger.Info("activity log pruned", zap.Int64("count", res.RowsAffected))
	}
	return res.RowsAffected, nil
}

// Stop flushes remaining entries and shuts down the worker.
// It blocks until the worker goroutine has finished.
func (svc *Service) Stop(_ context.Context) {
	select {
	case <-svc.stopCh:
	default:
		close(svc.stopCh)
	}
	svc.wg.Wait()
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(svc.interval)
	defer ticker.Stop()

	batch := make([]*model.ActivityLog, 0, svc.batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := svc.db.Create(&batch).Error; err != nil {
			svc.logger.Error("activity batch write failed", zap.Int("size", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-svc.ch:
			batch = append(batch, entry)
			if len(batch) >= svc.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.stopCh:
			// Drain remaining entries.
			for {
				select {
				case entry := <-svc.ch:
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}
