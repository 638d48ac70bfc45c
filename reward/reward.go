// Package reward runs the celebration shown after XP is earned: a timed
// sequence of phases pushed to the session's event stream.
package reward

import (
	"math"
	"sync"
	"time"

	"github.com/takeoff-app/takeoff/config"
	"github.com/takeoff-app/takeoff/pillar"
	"github.com/takeoff-app/takeoff/push"
	"github.com/takeoff-app/takeoff/scheduler"
	"go.uber.org/zap"
)

type Phase string

const (
	Idle     Phase = "idle"
	Bursting Phase = "bursting"
	Revealed Phase = "revealed"
	Counting Phase = "counting"
	Fading   Phase = "fading"
	Done     Phase = "done"
)

// GoldenParticles is added to every burst regardless of difficulty.
const GoldenParticles = 30

// Celebration describes what was earned.
type Celebration struct {
	Title      string        `json:"title"`
	Pillar     pillar.Pillar `json:"pillar"`
	XP         int           `json:"xp"`
	Difficulty string        `json:"difficulty"`
}

// OnDone is called once when a sequence reaches Done.
type OnDone func(amount int, p pillar.Pillar, title string)

// Timings are offsets from the start of a sequence.
type Timings struct {
	Reveal        time.Duration
	Count         time.Duration
	Fade          time.Duration
	Done          time.Duration
	CountDuration time.Duration
	Tick          time.Duration
	Toast         time.Duration
}

// DefaultTimings returns the stock celebration pacing.
func DefaultTimings() Timings {
	return Timings{
		Reveal:        300 * time.Millisecond,
		Count:         800 * time.Millisecond,
		Fade:          3500 * time.Millisecond,
		Done:          4500 * time.Millisecond,
		CountDuration: 1500 * time.Millisecond,
		Tick:          100 * time.Millisecond,
		Toast:         2 * time.Second,
	}
}

// TimingsFrom fills unset values of cfg from DefaultTimings.
func TimingsFrom(cfg config.RewardConfig) Timings {
	t := DefaultTimings()
	set := func(dst *time.Duration, v time.Duration) {
		if v > 0 {
			*dst = v
		}
	}
	set(&t.Reveal, cfg.Reveal)
	set(&t.Count, cfg.Count)
	set(&t.Fade, cfg.Fade)
	set(&t.Done, cfg.Done)
	set(&t.CountDuration, cfg.CountDuration)
	set(&t.Tick, cfg.Tick)
	set(&t.Toast, cfg.Toast)
	return t
}

// Particles returns the burst size for a difficulty, golden particles
// not included.
func Particles(difficulty string) int {
	switch difficulty {
	case "legendary":
		return 150
	case "hard":
		return 100
	default:
		return 60
	}
}

// Eased is the counter value at progress p in [0,1] using an ease-out
// cubic curve.
func Eased(xp int, p float64) int {
	p = math.Max(0, math.Min(1, p))
	return int(math.Floor((1 - math.Pow(1-p, 3)) * float64(xp)))
}

// PhaseEvent is the payload of a reward_phase event.
type PhaseEvent struct {
	Phase       Phase        `json:"phase"`
	Celebration *Celebration `json:"celebration,omitempty"`
	Particles   int          `json:"particles,omitempty"`
	Golden      int          `json:"golden,omitempty"`
	Cancelled   bool         `json:"cancelled,omitempty"`
}

// CountEvent is the payload of a reward_count event.
type CountEvent struct {
	Value int `json:"value"`
	XP    int `json:"xp"`
}

// Toast is the small XP notice shown on a completed task.
type Toast struct {
	Pillar  pillar.Pillar `json:"pillar"`
	Icon    string        `json:"icon"`
	XP      int           `json:"xp"`
	Visible bool          `json:"visible"`
}

// State is a snapshot of a session's reward display.
type State struct {
	Phase       Phase        `json:"phase"`
	Celebration *Celebration `json:"celebration,omitempty"`
	Toast       *Toast       `json:"toast,omitempty"`
}

type run struct {
	c          Celebration
	phase      Phase
	onDone     OnDone
	countStart time.Time
	finish     sync.Once
}

// Player drives one celebration per session on the shared scheduler.
type Player struct {
	mu     sync.Mutex
	runs   map[string]*run
	toasts map[string]*Toast

	sched  *scheduler.Scheduler
	pub    *push.Publisher
	t      Timings
	logger *zap.Logger
}

func NewPlayer(t Timings, sched *scheduler.Scheduler, pub *push.Publisher, logger *zap.Logger) *Player {
	return &Player{
		runs:   make(map[string]*run),
		toasts: make(map[string]*Toast),
		sched:  sched,
		pub:    pub,
		t:      t,
		logger: logger,
	}
}

func prefix(sid string) string { return sid + ":reward:" }

// Play starts a celebration for sid, replacing any running one. The
// replaced sequence never calls its onDone.
func (p *Player) Play(sid string, c Celebration, onDone OnDone) {
	r := &run{c: c, phase: Bursting, onDone: onDone}

	p.mu.Lock()
	p.sched.RemovePrefix(prefix(sid))
	p.runs[sid] = r
	p.mu.Unlock()

	p.logger.Debug("reward started",
		zap.String("session_id", sid),
		zap.String("pillar", string(c.Pillar)),
		zap.Int("xp", c.XP))
	p.pub.Send(sid, push.EventRewardPhase, PhaseEvent{
		Phase:       Bursting,
		Celebration: &c,
		Particles:   Particles(c.Difficulty),
		Golden:      GoldenParticles,
	})

	pre := prefix(sid)
	p.sched.AddDelay(pre+"reveal", p.t.Reveal, func() { p.enter(sid, r, Revealed) })
	p.sched.AddDelay(pre+"count", p.t.Count, func() {
		if !p.enter(sid, r, Counting) {
			return
		}
		p.sched.AddTicker(pre+"tick", p.t.Tick, func() { p.tick(sid, r) })
	})
	p.sched.AddDelay(pre+"fade", p.t.Fade, func() {
		p.sched.Remove(pre + "tick")
		if p.current(sid, r) {
			p.pub.Send(sid, push.EventRewardCount, CountEvent{Value: c.XP, XP: c.XP})
		}
		p.enter(sid, r, Fading)
	})
	p.sched.AddDelay(pre+"done", p.t.Done, func() { p.complete(sid, r) })
}

func (p *Player) current(sid string, r *run) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runs[sid] == r
}

// enter moves r to phase if it is still the session's sequence.
func (p *Player) enter(sid string, r *run, phase Phase) bool {
	p.mu.Lock()
	if p.runs[sid] != r {
		p.mu.Unlock()
		return false
	}
	r.phase = phase
	if phase == Counting {
		r.countStart = time.Now()
	}
	p.mu.Unlock()
	p.pub.Send(sid, push.EventRewardPhase, PhaseEvent{Phase: phase})
	return true
}

func (p *Player) tick(sid string, r *run) {
	p.mu.Lock()
	if p.runs[sid] != r || r.phase != Counting {
		p.mu.Unlock()
		return
	}
	progress := float64(time.Since(r.countStart)) / float64(p.t.CountDuration)
	p.mu.Unlock()

	p.pub.Send(sid, push.EventRewardCount, CountEvent{Value: Eased(r.c.XP, progress), XP: r.c.XP})
	if progress >= 1 {
		p.sched.Remove(prefix(sid) + "tick")
	}
}

func (p *Player) complete(sid string, r *run) {
	if !p.enter(sid, r, Done) {
		return
	}
	p.sched.Remove(prefix(sid) + "tick")
	r.finish.Do(func() {
		if r.onDone != nil {
			r.onDone(r.c.XP, r.c.Pillar, r.c.Title)
		}
	})
}

// Cancel stops the running sequence of sid without calling its onDone.
func (p *Player) Cancel(sid string) {
	p.mu.Lock()
	r, ok := p.runs[sid]
	if !ok || r.phase == Done {
		p.mu.Unlock()
		return
	}
	delete(p.runs, sid)
	p.sched.RemovePrefix(prefix(sid))
	p.mu.Unlock()
	p.pub.Send(sid, push.EventRewardPhase, PhaseEvent{Phase: Idle, Cancelled: true})
}

// Toast shows a short XP notice that clears itself.
func (p *Player) Toast(sid string, pl pillar.Pillar, xp int) {
	t := &Toast{Pillar: pl, Icon: pillar.Icon(pl), XP: xp, Visible: true}
	p.mu.Lock()
	p.toasts[sid] = t
	p.mu.Unlock()
	p.pub.Send(sid, push.EventXPToast, *t)

	p.sched.AddDelay(sid+":toast", p.t.Toast, func() {
		p.mu.Lock()
		if p.toasts[sid] != t {
			p.mu.Unlock()
			return
		}
		delete(p.toasts, sid)
		p.mu.Unlock()
		cleared := *t
		cleared.Visible = false
		p.pub.Send(sid, push.EventXPToast, cleared)
	})
}

// State returns the reward display of sid.
func (p *Player) State(sid string) State {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := State{Phase: Idle}
	if r, ok := p.runs[sid]; ok {
		c := r.c
		s.Phase = r.phase
		s.Celebration = &c
	}
	if t, ok := p.toasts[sid]; ok {
		cp := *t
		s.Toast = &cp
	}
	return s
}

// Drop forgets all reward state of sid.
func (p *Player) Drop(sid string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.runs, sid)
	delete(p.toasts, sid)
}
