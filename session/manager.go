// Package session owns the signed-in state: a bearer token present means
// a hydrated user, teardown clears everything tied to the session.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/takeoff-app/takeoff/backend"
	"github.com/takeoff-app/takeoff/cache"
	"github.com/takeoff-app/takeoff/config"
	mw "github.com/takeoff-app/takeoff/middleware"
	"github.com/takeoff-app/takeoff/model"
	"github.com/takeoff-app/takeoff/scheduler"
	"github.com/takeoff-app/takeoff/store"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session: not found")

// Manager is the process-wide session registry, injected into every
// handler that needs the signed-in user.
type Manager struct {
	db     *gorm.DB
	cache  cache.Cache
	store  *store.Store
	sched  *scheduler.Scheduler
	sealer *sealer
	secret string
	ttl    time.Duration
	logger *zap.Logger

	hookMu   sync.Mutex
	teardown []func(sid string)
}

// cachedSession is the cache copy of a session row.
type cachedSession struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Sealed    []byte    `json:"sealed"`
	ExpiresAt time.Time `json:"expires_at"`
}

func cacheKey(sid string) string { return "session:" + sid }

// NewManager creates a Manager. The session TTL also bounds the BFF JWT.
func NewManager(db *gorm.DB, c cache.Cache, st *store.Store, sched *scheduler.Scheduler,
	sec config.SecurityConfig, cfg config.SessionConfig, logger *zap.Logger) (*Manager, error) {
	s, err := newSealer(sec.JWTSecret)
	if err != nil {
		return nil, err
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = sec.JWTTTLH
	}
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &Manager{
		db:     db,
		cache:  c,
		store:  st,
		sched:  sched,
		sealer: s,
		secret: sec.JWTSecret,
		ttl:    ttl,
		logger: logger,
	}, nil
}

// OnTeardown registers fn to run with the session id whenever a session
// is torn down or swept.
func (m *Manager) OnTeardown(fn func(sid string)) {
	m.hookMu.Lock()
	m.teardown = append(m.teardown, fn)
	m.hookMu.Unlock()
}

// Init hydrates the user behind bearer and opens a session for it.
// It returns the stored session and the signed BFF token.
func (m *Manager) Init(ctx context.Context, bearer string) (*model.Session, string, error) {
	if bearer == "" {
		return nil, "", ErrNotFound
	}
	user, err := m.store.API().Me(ctx, bearer)
	if err != nil {
		return nil, "", fmt.Errorf("session init: %w", err)
	}
	sealed, err := m.sealer.seal(bearer)
	if err != nil {
		return nil, "", err
	}
	profile, err := json.Marshal(user)
	if err != nil {
		return nil, "", fmt.Errorf("session init: encode profile: %w", err)
	}

	sess := &model.Session{
		ID:          uuid.NewString(),
		UserID:      user.UserID,
		SealedToken: sealed,
		Profile:     datatypes.JSON(profile),
		ExpiresAt:   time.Now().Add(m.ttl),
	}
	if err := m.db.WithContext(ctx).Create(sess).Error; err != nil {
		return nil, "", fmt.Errorf("session init: store: %w", err)
	}
	m.remember(ctx, sess)
	// A fresh login must not see a profile cached by an older session.
	_ = m.store.Invalidate(ctx, user.UserID, store.EntityUser)

	token, err := mw.GenerateToken(sess.ID, m.secret, m.ttl)
	if err != nil {
		return nil, "", fmt.Errorf("session init: sign: %w", err)
	}
	m.logger.Info("session opened", zap.String("session_id", sess.ID), zap.String("user_id", sess.UserID))
	return sess, token, nil
}

func (m *Manager) remember(ctx context.Context, sess *model.Session) {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return
	}
	b, _ := json.Marshal(cachedSession{ID: sess.ID, UserID: sess.UserID, Sealed: sess.SealedToken, ExpiresAt: sess.ExpiresAt})
	if err := m.cache.Set(ctx, cacheKey(sess.ID), string(b), ttl); err != nil {
		m.logger.Warn("session cache set failed", zap.String("session_id", sess.ID), zap.Error(err))
	}
}

// Resolve returns the live session sid, cache first then database.
func (m *Manager) Resolve(ctx context.Context, sid string) (*model.Session, error) {
	if raw, err := m.cache.Get(ctx, cacheKey(sid)); err == nil {
		var cs cachedSession
		if json.Unmarshal([]byte(raw), &cs) == nil && time.Now().Before(cs.ExpiresAt) {
			return &model.Session{ID: cs.ID, UserID: cs.UserID, SealedToken: cs.Sealed, ExpiresAt: cs.ExpiresAt}, nil
		}
	}

	var sess model.Session
	err := m.db.WithContext(ctx).Where("id = ?", sid).First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session resolve: %w", err)
	}
	if !time.Now().Before(sess.ExpiresAt) {
		return nil, ErrNotFound
	}
	m.remember(ctx, &sess)
	return &sess, nil
}

// Bearer unseals the upstream token of sess.
func (m *Manager) Bearer(sess *model.Session) (string, error) {
	return m.sealer.open(sess.SealedToken)
}

// Context returns ctx carrying the upstream token of sess, ready for
// backend calls.
func (m *Manager) Context(ctx context.Context, sess *model.Session) (context.Context, error) {
	tok, err := m.Bearer(sess)
	if err != nil {
		return nil, err
	}
	return backend.WithToken(ctx, tok), nil
}

// Profile decodes the /auth/me snapshot taken at Init.
func (m *Manager) Profile(ctx context.Context, sid string) (*backend.User, error) {
	var sess model.Session
	if err := m.db.WithContext(ctx).Select("profile").Where("id = ?", sid).First(&sess).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var u backend.User
	if err := json.Unmarshal(sess.Profile, &u); err != nil {
		return nil, fmt.Errorf("session profile: %w", err)
	}
	return &u, nil
}

// Teardown ends sid: the row, its cache entry, every timer named after it
// and the user's cached views all go.
func (m *Manager) Teardown(ctx context.Context, sid string) error {
	var sess model.Session
	err := m.db.WithContext(ctx).Where("id = ?", sid).First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("session teardown: %w", err)
	}
	if err := m.db.WithContext(ctx).Delete(&model.Session{}, "id = ?", sid).Error; err != nil {
		return fmt.Errorf("session teardown: %w", err)
	}
	m.release(ctx, sid)
	_ = m.store.Invalidate(ctx, sess.UserID)
	m.logger.Info("session closed", zap.String("session_id", sid), zap.String("user_id", sess.UserID))
	return nil
}

func (m *Manager) release(ctx context.Context, sid string) {
	_ = m.cache.Del(ctx, cacheKey(sid))
	if n := m.sched.RemovePrefix(sid + ":"); n > 0 {
		m.logger.Debug("session timers cancelled", zap.String("session_id", sid), zap.Int("count", n))
	}
	m.hookMu.Lock()
	hooks := append([]func(string){}, m.teardown...)
	m.hookMu.Unlock()
	for _, fn := range hooks {
		fn(sid)
	}
}

// MarkJustOnboarded sets the one-shot flag read by the next dashboard load.
func (m *Manager) MarkJustOnboarded(ctx context.Context, sid string) error {
	res := m.db.WithContext(ctx).Model(&model.Session{}).Where("id = ?", sid).Update("just_onboarded", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ConsumeJustOnboarded clears the flag and reports whether it was set.
// Concurrent callers see true at most once.
func (m *Manager) ConsumeJustOnboarded(ctx context.Context, sid string) (bool, error) {
	res := m.db.WithContext(ctx).Model(&model.Session{}).
		Where("id = ? AND just_onboarded = ?", sid, true).
		Update("just_onboarded", false)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Sweep removes sessions that expired before now and returns how many.
func (m *Manager) Sweep(ctx context.Context, now time.Time) (int, error) {
	var ids []string
	if err := m.db.WithContext(ctx).Model(&model.Session{}).
		Where("expires_at <= ?", now).Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("session sweep: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := m.db.WithContext(ctx).Where("id IN ?", ids).Delete(&model.Session{}).Error; err != nil {
		return 0, fmt.Errorf("session sweep: %w", err)
	}
	for _, sid := range ids {
		m.release(ctx, sid)
	}
	m.logger.Info("expired sessions swept", zap.Int("count", len(ids)))
	return len(ids), nil
}

// Count returns the number of stored sessions.
func (m *Manager) Count(ctx context.Context) (int64, error) {
	var n int64
	err := m.db.WithContext(ctx).Model(&model.Session{}).Count(&n).Error
	return n, err
}
