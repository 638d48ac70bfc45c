// Package banner keeps the transient status banner of each widget and
// dismisses it on a timer.
package banner

import (
	"sync"
	"time"

	"github.com/takeoff-app/takeoff/config"
	"github.com/takeoff-app/takeoff/push"
	"github.com/takeoff-app/takeoff/scheduler"
)

type Kind string

const (
	Success Kind = "success"
	Info    Kind = "info"
	Error   Kind = "error"
)

// Widget channels that own a banner.
const (
	ChannelCalendar = "calendar"
	ChannelGoals    = "goals"
	ChannelUltimate = "ultimate_goals"
)

// Banner is the message currently shown on one widget channel.
type Banner struct {
	Channel   string    `json:"channel"`
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	ShownAt   time.Time `json:"shown_at"`
	ExpiresAt time.Time `json:"expires_at"`

	seq uint64
}

type key struct{ sid, channel string }

// Board holds at most one banner per session and channel.
type Board struct {
	mu     sync.Mutex
	active map[key]Banner
	seq    uint64

	sched     *scheduler.Scheduler
	pub       *push.Publisher
	durations map[Kind]time.Duration
}

func New(cfg config.BannerConfig, sched *scheduler.Scheduler, pub *push.Publisher) *Board {
	d := map[Kind]time.Duration{Success: 3 * time.Second, Info: 5 * time.Second, Error: 8 * time.Second}
	for k, v := range map[Kind]time.Duration{Success: cfg.Success, Info: cfg.Info, Error: cfg.Error} {
		if v > 0 {
			d[k] = v
		}
	}
	return &Board{
		active:    make(map[key]Banner),
		sched:     sched,
		pub:       pub,
		durations: d,
	}
}

func timerName(sid, channel string) string { return sid + ":banner:" + channel }

// Show replaces the banner on channel and restarts its dismissal timer.
func (b *Board) Show(sid, channel string, kind Kind, msg string) Banner {
	now := time.Now()
	ttl := b.durations[kind]

	b.mu.Lock()
	b.seq++
	bn := Banner{Channel: channel, Kind: kind, Message: msg, ShownAt: now, ExpiresAt: now.Add(ttl), seq: b.seq}
	b.active[key{sid, channel}] = bn
	b.mu.Unlock()

	b.pub.Send(sid, push.EventBanner, bn)
	seq := bn.seq
	b.sched.AddDelay(timerName(sid, channel), ttl, func() { b.expire(sid, channel, seq) })
	return bn
}

func (b *Board) expire(sid, channel string, seq uint64) {
	b.mu.Lock()
	cur, ok := b.active[key{sid, channel}]
	if !ok || cur.seq != seq {
		b.mu.Unlock()
		return
	}
	delete(b.active, key{sid, channel})
	b.mu.Unlock()
	b.pub.Send(sid, push.EventBannerDismissed, map[string]string{"channel": channel})
}

// Current returns the banner shown on channel, if any.
func (b *Board) Current(sid, channel string) (Banner, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bn, ok := b.active[key{sid, channel}]
	return bn, ok
}

// Dismiss removes the banner on channel before its timer runs out.
func (b *Board) Dismiss(sid, channel string) {
	b.sched.Remove(timerName(sid, channel))
	b.mu.Lock()
	_, ok := b.active[key{sid, channel}]
	delete(b.active, key{sid, channel})
	b.mu.Unlock()
	if ok {
		b.pub.Send(sid, push.EventBannerDismissed, map[string]string{"channel": channel})
	}
}

// Drop forgets every banner of sid. Timers are cancelled by the session
// teardown that calls it.
func (b *Board) Drop(sid string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k := range b.active {
		if k.sid == sid {
			delete(b.active, k)
		}
	}
}
