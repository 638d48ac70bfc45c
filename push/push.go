// Package push delivers per-session UI events over pub/sub so that any
// instance holding the session's event stream can forward them.
package push

import (
	"context"
	"encoding/json"
	"time"

	"github.com/takeoff-app/takeoff/cache"
	"go.uber.org/zap"
)

// Event names carried on a session channel.
const (
	EventBanner          = "banner"
	EventBannerDismissed = "banner_dismissed"
	EventRewardPhase     = "reward_phase"
	EventRewardCount     = "reward_count"
	EventXPToast         = "xp_toast"
	EventQuizAdvance     = "quiz_advance"
)

// Envelope is the wire form of one pushed event.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Channel returns the pub/sub channel of session sid.
func Channel(sid string) string { return "session:" + sid }

// Publisher encodes events and publishes them on session channels.
type Publisher struct {
	ps     cache.PubSub
	logger *zap.Logger
}

func NewPublisher(ps cache.PubSub, logger *zap.Logger) *Publisher {
	return &Publisher{ps: ps, logger: logger}
}

// Send publishes event with data to sid. Delivery is best effort: timers
// fire without a request context, so failures are logged, not returned.
func (p *Publisher) Send(sid, event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		p.logger.Error("push encode failed", zap.String("event", event), zap.Error(err))
		return
	}
	msg, _ := json.Marshal(Envelope{Event: event, Data: raw})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.ps.Publish(ctx, Channel(sid), string(msg)); err != nil {
		p.logger.Warn("push publish failed",
			zap.String("session_id", sid),
			zap.String("event", event),
			zap.Error(err))
	}
}

// Decode parses a payload received from a session channel.
func Decode(payload string) (Envelope, error) {
	var e Envelope
	err := json.Unmarshal([]byte(payload), &e)
	return e, err
}
