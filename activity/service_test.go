package activity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/takeoff-app/takeoff/config"
	"github.com/takeoff-app/takeoff/model"
	"github.com/takeoff-app/takeoff/testutil"
	"go.uber.org/zap"
)

func newService(t *testing.T) (*Service, func() []model.ActivityLog) {
	db := testutil.SetupTestDB(t)
	svc := New(db, config.ActivityConfig{Retention: time.Hour}, zap.NewNop())
	return svc, func() []model.ActivityLog {
		var logs []model.ActivityLog
		require.NoError(t, db.Order("id").Find(&logs).Error)
		return logs
	}
}

func TestNew_StartsWorker(t *testing.T) {
	svc, _ := newService(t)
	require.NotNil(t, svc)
	assert.Equal(t, 100, svc.batchSize)
	svc.Stop(context.Background())
}

func TestLog_EnqueuedAndFlushed(t *testing.T) {
	svc, all := newService(t)

	svc.Log(Entry{
		TraceID:   "trace-123",
		SessionID: "s1",
		UserID:    "u1",
		Action:    TaskComplete,
		Pillar:    "health",
		XP:        20,
		Payload:   map[string]string{"task_id": "t1"},
	})
	svc.Stop(context.Background())

	logs := all()
	require.Len(t, logs, 1)
	assert.Equal(t, "trace-123", logs[0].TraceID)
	assert.Equal(t, TaskComplete, logs[0].Action)
	assert.Equal(t, 20, logs[0].XP)
	assert.JSONEq(t, `{"task_id":"t1"}`, string(logs[0].Payload))
}

func TestLog_BatchFlush(t *testing.T) {
	svc, all := newService(t)
	for i := 0; i < 100; i++ {
		svc.Log(Entry{UserID: "u1", Action: QuestProgress})
	}
	svc.Stop(context.Background())
	assert.Len(t, all(), 100)
}

func TestLog_ErrorWithoutPayload(t *testing.T) {
	svc, all := newService(t)
	svc.Log(Entry{UserID: "u1", Action: CalendarSync, Error: "upstream 502"})
	svc.Stop(context.Background())

	logs := all()
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].Payload)
	assert.Equal(t, "upstream 502", logs[0].Error)
}

func TestRecent_NewestFirstPerUser(t *testing.T) {
	svc, _ := newService(t)
	svc.Log(Entry{UserID: "u1", Action: SessionInit})
	svc.Log(Entry{UserID: "u2", Action: SessionInit})
	svc.Log(Entry{UserID: "u1", Action: TaskComplete})
	svc.Stop(context.Background())

	logs, err := svc.Recent(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, TaskComplete, logs[0].Action)
	assert.Equal(t, SessionInit, logs[1].Action)

	logs, err = svc.Recent(context.Background(), "u1", 1)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestPrune_RemovesOlderThanRetention(t *testing.T) {
	svc, all := newService(t)
	svc.Log(Entry{UserID: "u1", Action: SessionInit})
	svc.Stop(context.Background())

	n, err := svc.Prune(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = svc.Prune(context.Background(), time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Empty(t, all())
}

func TestStop_Idempotent(t *testing.T) {
	svc, _ := newService(t)
	svc.Stop(context.Background())
	svc.Stop(context.Background())
}

func TestLog_DropsWhenFull(t *testing.T) {
	svc, _ := newService(t)
	for i := 0; i < 1030; i++ {
		svc.Log(Entry{Action: "flood"})
	}
	svc.Stop(context.Background())
}
