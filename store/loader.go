package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/takeoff-app/takeoff/cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// StaleError accompanies a value served from the stale copy after the
// upstream fetch failed.
type StaleError struct {
	Err error
}

func (e *StaleError) Error() string { return "store: serving stale view: " + e.Err.Error() }
func (e *StaleError) Unwrap() error { return e.Err }

// IsStale reports whether err marks a stale-but-usable value.
func IsStale(err error) bool {
	var s *StaleError
	return errors.As(err, &s)
}

// staleFactor scales the view TTL into the lifetime of the fallback copy.
const staleFactor = 30

func viewKey(entity Entity, uid, variant string) string {
	k := "view:" + string(entity) + ":" + uid
	if variant != "" {
		k += ":" + variant
	}
	return k
}

func indexKey(entity Entity, uid string) string { return "idx:" + string(entity) + ":" + uid }
func staleKey(key string) string                { return "stale:" + key }

// scopeState tracks one user's entity while fetches for it are pending.
type scopeState struct {
	gen     uint64
	pending int
}

// loader is the shared read path of every entity store.
type loader struct {
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
	group  singleflight.Group

	mu     sync.Mutex
	scopes map[string]*scopeState
}

func newLoader(c cache.Cache, ttl time.Duration, logger *zap.Logger) *loader {
	return &loader{cache: c, ttl: ttl, logger: logger, scopes: make(map[string]*scopeState)}
}

// begin registers a pending fetch of scope and returns its generation.
// Entries only live while a fetch is pending.
func (l *loader) begin(scope string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.scopes[scope]
	if !ok {
		st = &scopeState{}
		l.scopes[scope] = st
	}
	st.pending++
	return st.gen
}

func (l *loader) end(scope string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if st, ok := l.scopes[scope]; ok {
		st.pending--
		if st.pending <= 0 {
			delete(l.scopes, scope)
		}
	}
}

// current reports whether gen is still the generation of scope.
func (l *loader) current(scope string, gen uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.scopes[scope]
	return ok && st.gen == gen
}

// bump supersedes the pending fetches of scope. With none pending there
// is nothing to supersede.
func (l *loader) bump(scope string) {
	l.mu.Lock()
	if st, ok := l.scopes[scope]; ok {
		st.gen++
	}
	l.mu.Unlock()
}

// tracked is the number of scopes with pending fetches.
func (l *loader) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.scopes)
}

// load returns the cached view or fetches it. Concurrent misses for the
// same key and generation share one fetch. A fetch that began before an
// invalidation of its scope never leaves its result in the cache.
func load[T any](ctx context.Context, l *loader, entity Entity, uid, variant string, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	key := viewKey(entity, uid, variant)

	if raw, err := l.cache.Get(ctx, key); err == nil {
		var v T
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			return v, nil
		}
		l.logger.Warn("store: corrupt cache entry", zap.String("key", key))
	} else if !cache.IsNotFound(err) {
		l.logger.Warn("store: cache get failed", zap.String("key", key), zap.Error(err))
	}

	scope := indexKey(entity, uid)
	gen := l.begin(scope)
	defer l.end(scope)
	res, err, _ := l.group.Do(key+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
		// Shared by every waiter, so one caller going away must not
		// cancel the others.
		bg := context.WithoutCancel(ctx)
		v, err := fetch(bg)
		if err != nil {
			return nil, err
		}
		if !l.current(scope, gen) {
			l.logger.Debug("store: dropping superseded fetch", zap.String("key", key))
			return v, nil
		}
		l.write(bg, scope, key, v)
		// An invalidation may have landed between the check and the write.
		if !l.current(scope, gen) {
			_ = l.cache.Del(bg, key)
		}
		return v, nil
	})
	if err != nil {
		if v, ok := readStale[T](ctx, l, key); ok {
			return v, &StaleError{Err: err}
		}
		return zero, err
	}
	return res.(T), nil
}

func (l *loader) write(ctx context.Context, scope, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		l.logger.Warn("store: encode view", zap.String("key", key), zap.Error(err))
		return
	}
	if err := l.cache.Set(ctx, key, string(b), l.ttl); err != nil {
		l.logger.Warn("store: cache set failed", zap.String("key", key), zap.Error(err))
		return
	}
	_ = l.cache.Set(ctx, staleKey(key), string(b), l.ttl*staleFactor)
	if err := l.cache.SAdd(ctx, scope, key); err != nil {
		l.logger.Warn("store: index add failed", zap.String("key", key), zap.Error(err))
	}
}

func readStale[T any](ctx context.Context, l *loader, key string) (T, bool) {
	var v T
	raw, err := l.cache.Get(ctx, staleKey(key))
	if err != nil {
		return v, false
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return v, false
	}
	return v, true
}

// invalidate drops every cached variant of entity for uid and supersedes
// fetches already in flight.
func (l *loader) invalidate(ctx context.Context, entity Entity, uid string) error {
	scope := indexKey(entity, uid)
	l.bump(scope)

	keys, err := l.cache.SMembers(ctx, scope)
	if err != nil && !cache.IsNotFound(err) {
		return fmt.Errorf("store: read index %s: %w", scope, err)
	}
	keys = append(keys, viewKey(entity, uid, ""), scope)
	if err := l.cache.Del(ctx, keys...); err != nil {
		return fmt.Errorf("store: invalidate %s: %w", scope, err)
	}
	return nil
}
