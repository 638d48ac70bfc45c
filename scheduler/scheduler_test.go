package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newNop() *zap.Logger { return zap.NewNop() }

func TestAddTicker_Fires(t *testing.T) {
	s := New(newNop())
	defer s.Stop()

	var count int32
	s.AddTicker("tick", 20*time.Millisecond, func() {
		atomic.AddInt32(&count, 1)
	})

	time.Sleep(120 * time.Millisecond)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&count), int32(3))
	assert.Equal(t, []string{"tick"}, s.ListTickers())
}

func TestAddTicker_Replaces(t *testing.T) {
	s := New(newNop())
	defer s.Stop()

	var count1, count2 int32
	s.AddTicker("task", 20*time.Millisecond, func() { atomic.AddInt32(&count1, 1) })
	time.Sleep(30 * time.Millisecond)
	s.AddTicker("task", 20*time.Millisecond, func() { atomic.AddInt32(&count2, 1) })
	time.Sleep(80 * time.Millisecond)

	snap1 := atomic.LoadInt32(&count1)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, snap1, atomic.LoadInt32(&count1), "old ticker must stop after replacement")
	assert.Positive(t, atomic.LoadInt32(&count2))
}

func TestAddTicker_RecoversPanic(t *testing.T) {
	s := New(newNop())
	defer s.Stop()

	var count int32
	s.AddTicker("boom", 10*time.Millisecond, func() {
		atomic.AddInt32(&count, 1)
		panic("boom")
	})
	time.Sleep(60 * time.Millisecond)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&count), int32(2), "ticker must survive a panicking run")
}

func TestAddDelay_FiresOnce(t *testing.T) {
	s := New(newNop())
	defer s.Stop()

	var count int32
	s.AddDelay("once", 30*time.Millisecond, func() {
		atomic.AddInt32(&count, 1)
	})
	assert.True(t, s.Has("once"))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&count))
	assert.False(t, s.Has("once"))
	assert.Empty(t, s.Pending())
}

func TestAddDelay_ReplacesCancelsOld(t *testing.T) {
	s := New(newNop())
	defer s.Stop()

	var count int32
	s.AddDelay("d", 500*time.Millisecond, func() { atomic.AddInt32(&count, 1) })
	s.AddDelay("d", 30*time.Millisecond, func() { atomic.AddInt32(&count, 10) })
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(10), atomic.LoadInt32(&count))
}

func TestAddDelay_ChainFromCallback(t *testing.T) {
	s := New(newNop())
	defer s.Stop()

	var order []string
	done := make(chan struct{})
	s.AddDelay("s1:reward:reveal", 10*time.Millisecond, func() {
		order = append(order, "reveal")
		s.AddDelay("s1:reward:count", 10*time.Millisecond, func() {
			order = append(order, "count")
			close(done)
		})
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("chained delay never fired")
	}
	assert.Equal(t, []string{"reveal", "count"}, order)
}

func TestRemove_Delay(t *testing.T) {
	s := New(newNop())
	defer s.Stop()

	var count int32
	s.AddDelay("d", 30*time.Millisecond, func() { atomic.AddInt32(&count, 1) })
	s.Remove("d")
	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, atomic.LoadInt32(&count))
}

func TestRemove_Ticker(t *testing.T) {
	s := New(newNop())
	defer s.Stop()

	var count int32
	s.AddTicker("task", 20*time.Millisecond, func() { atomic.AddInt32(&count, 1) })
	time.Sleep(50 * time.Millisecond)
	s.Remove("task")
	snap := atomic.LoadInt32(&count)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, snap, atomic.LoadInt32(&count))
}

func TestRemovePrefix(t *testing.T) {
	s := New(newNop())
	defer s.Stop()

	var fired int32
	inc := func() { atomic.AddInt32(&fired, 1) }
	s.AddDelay("sess-a:banner:calendar", 40*time.Millisecond, inc)
	s.AddDelay("sess-a:reward:done", 40*time.Millisecond, inc)
	s.AddTicker("sess-a:reward:tick", 10*time.Millisecond, inc)
	s.AddDelay("sess-b:banner:calendar", 40*time.Millisecond, inc)

	assert.Equal(t, 3, s.RemovePrefix("sess-a:"))
	assert.Equal(t, []string{"sess-b:banner:calendar"}, s.Pending())

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired))
}

func TestStop_Idempotent(t *testing.T) {
	s := New(newNop())
	s.AddTicker("t", 10*time.Millisecond, func() {})
	s.AddDelay("d", time.Hour, func() {})
	s.Stop()
	assert.NotPanics(t, s.Stop)
	assert.Empty(t, s.ListTickers())
	assert.Empty(t, s.Pending())

	s.AddDelay("late", time.Millisecond, func() { t.Error("must not run after Stop") })
	time.Sleep(10 * time.Millisecond)
}
