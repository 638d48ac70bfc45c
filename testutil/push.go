package testutil

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/takeoff-app/takeoff/cache"
	"github.com/takeoff-app/takeoff/push"
)

// PushRecorder is a publish-only cache.PubSub that keeps every session
// event it receives. It starts no goroutines, so leak checks stay clean.
type PushRecorder struct {
	mu   sync.Mutex
	msgs map[string][]push.Envelope
}

func NewPushRecorder() *PushRecorder {
	return &PushRecorder{msgs: make(map[string][]push.Envelope)}
}

func (r *PushRecorder) Publish(_ context.Context, channel, message string) error {
	env, err := push.Decode(message)
	if err != nil {
		return err
	}
	sid := strings.TrimPrefix(channel, "session:")
	r.mu.Lock()
	r.msgs[sid] = append(r.msgs[sid], env)
	r.mu.Unlock()
	return nil
}

func (r *PushRecorder) Subscribe(context.Context, ...string) (<-chan *cache.Message, func(), error) {
	return nil, nil, errors.New("push recorder: subscribe not supported")
}

// Events returns the events published to sid, optionally only those
// named event.
func (r *PushRecorder) Events(sid string, event ...string) []push.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []push.Envelope
	for _, e := range r.msgs[sid] {
		if len(event) == 0 || e.Event == event[0] {
			out = append(out, e)
		}
	}
	return out
}

// WaitFor polls until at least n events named event reached sid or the
// timeout passes, and returns what arrived.
func (r *PushRecorder) WaitFor(sid, event string, n int, timeout time.Duration) []push.Envelope {
	deadline := time.Now().Add(timeout)
	for {
		got := r.Events(sid, event)
		if len(got) >= n || time.Now().After(deadline) {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
}
