// Package app starts a fully wired BFF over a fake backend, mirroring the
// wiring of the serve command.
package app

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/takeoff-app/takeoff/config"
	"github.com/takeoff-app/takeoff/server"
	"github.com/takeoff-app/takeoff/testutil"
	"go.uber.org/zap"
)

const (
	JWTSecret = "app-test-secret"
	AdminKey  = "app-test-admin"
)

// App is a running BFF with one registered backend user.
type App struct {
	*server.Server
	FB    *testutil.FakeBackend
	HTTP  *httptest.Server
	URL   string
	Token string // upstream bearer of the user
	UID   string
}

// Config returns the configuration used by New before opts apply.
func Config(backendURL string) *config.Config {
	cfg := config.Default()
	cfg.Backend.BaseURL = backendURL
	cfg.Backend.Timeout = 2 * time.Second
	cfg.Security.JWTSecret = JWTSecret
	cfg.Security.RateLimitRPS = 1000
	cfg.Security.RateLimitBurst = 2000
	cfg.Server.AdminKey = AdminKey
	cfg.Views.Timezone = "UTC"
	cfg.Activity.FlushInterval = 20 * time.Millisecond
	cfg.Reward = config.RewardConfig{
		Reveal:        5 * time.Millisecond,
		Count:         10 * time.Millisecond,
		Fade:          40 * time.Millisecond,
		Done:          60 * time.Millisecond,
		CountDuration: 20 * time.Millisecond,
		Tick:          5 * time.Millisecond,
		Toast:         30 * time.Millisecond,
	}
	cfg.Quiz.AdvanceDelay = 10 * time.Millisecond
	return cfg
}

// New starts the fake backend, the BFF and an HTTP listener for it.
func New(t testing.TB, opts ...func(*config.Config)) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fb := testutil.NewFakeBackend(t)
	token := "tok-" + uuid.NewString()
	uid := fb.AddUser(token, "ada@example.com", "Ada")

	cfg := Config(fb.URL)
	for _, o := range opts {
		o(cfg)
	}
	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)

	srv, err := server.New(cfg, db, c, ps, zap.NewNop())
	require.NoError(t, err)
	hs := httptest.NewServer(srv.Engine)
	t.Cleanup(func() {
		hs.Close()
		srv.Close()
	})
	return &App{Server: srv, FB: fb, HTTP: hs, URL: hs.URL, Token: token, UID: uid}
}

// Do serves one request in process. A non-empty jwt is sent as Bearer.
func (a *App) Do(method, path, jwt string, body any, headers ...string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if jwt != "" {
		req.Header.Set("Authorization", "Bearer "+jwt)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.Engine.ServeHTTP(w, req)
	return w
}

// Login opens a session for the user and returns the BFF token.
func (a *App) Login(t testing.TB) string {
	t.Helper()
	w := a.Do(http.MethodPost, "/api/auth/session", "", map[string]string{"token": a.Token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

// Decode unmarshals the recorded body into v.
func Decode(t testing.TB, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}
