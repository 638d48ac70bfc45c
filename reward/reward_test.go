package reward

import (
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/takeoff-app/takeoff/config"
	"github.com/takeoff-app/takeoff/pillar"
	"github.com/takeoff-app/takeoff/push"
	"github.com/takeoff-app/takeoff/scheduler"
	"github.com/takeoff-app/takeoff/testutil"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func fast() Timings {
	return Timings{
		Reveal:        10 * time.Millisecond,
		Count:         20 * time.Millisecond,
		Fade:          90 * time.Millisecond,
		Done:          110 * time.Millisecond,
		CountDuration: 50 * time.Millisecond,
		Tick:          10 * time.Millisecond,
		Toast:         30 * time.Millisecond,
	}
}

func newPlayer(t *testing.T, tm Timings) (*Player, *scheduler.Scheduler, *testutil.PushRecorder) {
	sched := scheduler.New(zap.NewNop())
	t.Cleanup(sched.Stop)
	rec := testutil.NewPushRecorder()
	return NewPlayer(tm, sched, push.NewPublisher(rec, zap.NewNop()), zap.NewNop()), sched, rec
}

func phases(t *testing.T, evs []push.Envelope) []Phase {
	var out []Phase
	for _, e := range evs {
		var pe PhaseEvent
		require.NoError(t, json.Unmarshal(e.Data, &pe))
		out = append(out, pe.Phase)
	}
	return out
}

func TestParticles(t *testing.T) {
	assert.Equal(t, 150, Particles("legendary"))
	assert.Equal(t, 100, Particles("hard"))
	assert.Equal(t, 60, Particles("medium"))
	assert.Equal(t, 60, Particles(""))
}

func TestEased(t *testing.T) {
	assert.Equal(t, 0, Eased(100, 0))
	assert.Equal(t, 87, Eased(100, 0.5)) // 1 - 0.125
	assert.Equal(t, 100, Eased(100, 1))
	assert.Equal(t, 100, Eased(100, 3))
	assert.Equal(t, 0, Eased(100, -1))
}

func TestTimingsFrom(t *testing.T) {
	tm := TimingsFrom(config.RewardConfig{Reveal: time.Second})
	assert.Equal(t, time.Second, tm.Reveal)
	assert.Equal(t, 4500*time.Millisecond, tm.Done)
	assert.Equal(t, 2*time.Second, tm.Toast)
}

func TestPlay_RunsAllPhasesAndCallsDoneOnce(t *testing.T) {
	p, sched, rec := newPlayer(t, fast())

	done := make(chan Celebration, 2)
	p.Play("s1", Celebration{Title: "Run 5k", Pillar: pillar.Health, XP: 40, Difficulty: "hard"},
		func(amount int, pl pillar.Pillar, title string) {
			done <- Celebration{Title: title, Pillar: pl, XP: amount}
		})

	assert.Equal(t, Bursting, p.State("s1").Phase)
	evs := rec.WaitFor("s1", push.EventRewardPhase, 5, time.Second)
	require.Equal(t, []Phase{Bursting, Revealed, Counting, Fading, Done}, phases(t, evs))

	var burst PhaseEvent
	require.NoError(t, json.Unmarshal(evs[0].Data, &burst))
	assert.Equal(t, 100, burst.Particles)
	assert.Equal(t, GoldenParticles, burst.Golden)

	counts := rec.Events("s1", push.EventRewardCount)
	require.NotEmpty(t, counts)
	var last CountEvent
	require.NoError(t, json.Unmarshal(counts[len(counts)-1].Data, &last))
	assert.Equal(t, 40, last.Value)

	select {
	case got := <-done:
		assert.Equal(t, Celebration{Title: "Run 5k", Pillar: pillar.Health, XP: 40}, got)
	case <-time.After(time.Second):
		t.Fatal("onDone not called")
	}
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, done, 0, "onDone must run once")
	assert.Equal(t, Done, p.State("s1").Phase)
	assert.Empty(t, sched.ListTickers())
}

func TestPlay_ReplacesRunningSequence(t *testing.T) {
	p, _, rec := newPlayer(t, fast())

	var first, second int32
	p.Play("s1", Celebration{XP: 10}, func(int, pillar.Pillar, string) { atomic.AddInt32(&first, 1) })
	p.Play("s1", Celebration{XP: 20}, func(int, pillar.Pillar, string) { atomic.AddInt32(&second, 1) })

	rec.WaitFor("s1", push.EventRewardPhase, 6, time.Second)
	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, atomic.LoadInt32(&first))
	assert.Equal(t, int32(1), atomic.LoadInt32(&second))
}

func TestCancel_StopsWithoutDone(t *testing.T) {
	p, sched, rec := newPlayer(t, fast())

	var calls int32
	p.Play("s1", Celebration{XP: 10}, func(int, pillar.Pillar, string) { atomic.AddInt32(&calls, 1) })
	p.Cancel("s1")

	assert.Empty(t, sched.Pending())
	time.Sleep(150 * time.Millisecond)
	assert.Zero(t, atomic.LoadInt32(&calls))
	assert.Equal(t, Idle, p.State("s1").Phase)
	assert.Equal(t, []Phase{Bursting, Idle}, phases(t, rec.Events("s1", push.EventRewardPhase)))
}

func TestToast_ClearsItself(t *testing.T) {
	p, _, rec := newPlayer(t, fast())

	p.Toast("s1", pillar.Career, 20)
	st := p.State("s1")
	require.NotNil(t, st.Toast)
	assert.Equal(t, "🎯", st.Toast.Icon)

	evs := rec.WaitFor("s1", push.EventXPToast, 2, time.Second)
	require.Len(t, evs, 2)
	var cleared Toast
	require.NoError(t, json.Unmarshal(evs[1].Data, &cleared))
	assert.False(t, cleared.Visible)
	assert.Nil(t, p.State("s1").Toast)
}
