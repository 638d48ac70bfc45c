package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/takeoff-app/takeoff/cache"
)

// ErrInFlight is returned when the same mutation is already running.
var ErrInFlight = errors.New("store: mutation already in flight")

// Guard serialises mutations per entity id across requests and instances.
type Guard struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewGuard creates a Guard. The ttl bounds how long a crashed holder can
// block the id.
func NewGuard(c cache.Cache, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Guard{cache: c, ttl: ttl}
}

func guardKey(kind, id string) string { return "inflight:" + kind + ":" + id }

// Acquire claims kind/id. The returned release must be called when the
// mutation finishes; it only removes the claim it made.
func (g *Guard) Acquire(ctx context.Context, kind, id string) (release func(), err error) {
	key := guardKey(kind, id)
	token := uuid.NewString()
	ok, err := g.cache.SetNX(ctx, key, token, g.ttl)
	if err != nil {
		return nil, fmt.Errorf("store: guard %s: %w", key, err)
	}
	if !ok {
		return nil, ErrInFlight
	}
	return func() {
		// Detached: release runs after the request context may be done.
		bg := context.WithoutCancel(ctx)
		if cur, err := g.cache.Get(bg, key); err == nil && cur == token {
			_ = g.cache.Del(bg, key)
		}
	}, nil
}

// Held reports whether kind/id is currently claimed.
func (g *Guard) Held(ctx context.Context, kind, id string) bool {
	ok, _ := g.cache.Exists(ctx, guardKey(kind, id))
	return ok
}
