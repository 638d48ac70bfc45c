package banner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/takeoff-app/takeoff/config"
	"github.com/takeoff-app/takeoff/push"
	"github.com/takeoff-app/takeoff/scheduler"
	"github.com/takeoff-app/takeoff/testutil"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newBoard(t *testing.T, cfg config.BannerConfig) (*Board, *scheduler.Scheduler, *testutil.PushRecorder) {
	sched := scheduler.New(zap.NewNop())
	t.Cleanup(sched.Stop)
	rec := testutil.NewPushRecorder()
	return New(cfg, sched, push.NewPublisher(rec, zap.NewNop())), sched, rec
}

func TestNew_DefaultDurations(t *testing.T) {
	b, _, _ := newBoard(t, config.BannerConfig{})
	assert.Equal(t, 3*time.Second, b.durations[Success])
	assert.Equal(t, 5*time.Second, b.durations[Info])
	assert.Equal(t, 8*time.Second, b.durations[Error])
}

func TestShow_PublishesAndExpires(t *testing.T) {
	b, sched, rec := newBoard(t, config.BannerConfig{Success: 30 * time.Millisecond})

	bn := b.Show("s1", ChannelCalendar, Success, "Event created and synced to Google Calendar!")
	assert.Equal(t, Success, bn.Kind)
	assert.True(t, sched.Has("s1:banner:calendar"))

	cur, ok := b.Current("s1", ChannelCalendar)
	require.True(t, ok)
	assert.Equal(t, "Event created and synced to Google Calendar!", cur.Message)
	require.Len(t, rec.Events("s1", push.EventBanner), 1)

	dismissed := rec.WaitFor("s1", push.EventBannerDismissed, 1, time.Second)
	require.Len(t, dismissed, 1)
	assert.JSONEq(t, `{"channel":"calendar"}`, string(dismissed[0].Data))
	_, ok = b.Current("s1", ChannelCalendar)
	assert.False(t, ok)
}

func TestShow_ReplacesAndRestartsTimer(t *testing.T) {
	b, _, rec := newBoard(t, config.BannerConfig{Info: 60 * time.Millisecond, Error: time.Hour})

	b.Show("s1", ChannelCalendar, Info, "first")
	b.Show("s1", ChannelCalendar, Error, "second")

	time.Sleep(120 * time.Millisecond)
	cur, ok := b.Current("s1", ChannelCalendar)
	require.True(t, ok, "replacement must not be dismissed by the old timer")
	assert.Equal(t, "second", cur.Message)
	assert.Empty(t, rec.Events("s1", push.EventBannerDismissed))
}

func TestChannelsAreIndependent(t *testing.T) {
	b, _, _ := newBoard(t, config.BannerConfig{})

	b.Show("s1", ChannelCalendar, Info, "cal")
	b.Show("s1", ChannelGoals, Error, "goal")
	b.Show("s2", ChannelCalendar, Success, "other session")

	cal, _ := b.Current("s1", ChannelCalendar)
	goal, _ := b.Current("s1", ChannelGoals)
	other, _ := b.Current("s2", ChannelCalendar)
	assert.Equal(t, "cal", cal.Message)
	assert.Equal(t, "goal", goal.Message)
	assert.Equal(t, "other session", other.Message)
}

func TestDismissAndDrop(t *testing.T) {
	b, sched, rec := newBoard(t, config.BannerConfig{})

	b.Show("s1", ChannelCalendar, Info, "x")
	b.Dismiss("s1", ChannelCalendar)
	assert.False(t, sched.Has("s1:banner:calendar"))
	assert.Len(t, rec.Events("s1", push.EventBannerDismissed), 1)

	b.Show("s1", ChannelGoals, Info, "y")
	b.Drop("s1")
	_, ok := b.Current("s1", ChannelGoals)
	assert.False(t, ok)
}
