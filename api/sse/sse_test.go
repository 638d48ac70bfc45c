package sse_test

import (
	"bufio"
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/takeoff-app/takeoff/config"
	"github.com/takeoff-app/takeoff/testutil/app"
)

// nextEvent reads lines until a complete event arrives and returns its
// name and data.
func nextEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var name, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && name != "":
			return name, data
		}
	}
}

func TestStreamForwardsSessionEvents(t *testing.T) {
	a := app.New(t)
	jwt := a.Login(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL+"/sse?token="+jwt, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	name, _ := nextEvent(t, r)
	require.Equal(t, "connected", name)

	// No linked Google account, so the sync raises an error banner.
	w := a.Do(http.MethodPost, "/api/calendar/sync", jwt, nil)
	require.Equal(t, http.StatusOK, w.Code)

	name, data := nextEvent(t, r)
	assert.Equal(t, "banner", name)
	assert.Contains(t, data, `"channel":"calendar"`)
	assert.Contains(t, data, `"kind":"error"`)
}

func TestStreamRejectsForeignOrigin(t *testing.T) {
	a := app.New(t, func(cfg *config.Config) {
		cfg.Security.AllowedOrigins = []string{"https://app.takeoff.test"}
	})
	jwt := a.Login(t)

	w := a.Do(http.MethodGet, "/sse?token="+jwt, "", nil, "Origin", "https://evil.test")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestStreamNeedsSession(t *testing.T) {
	a := app.New(t)
	w := a.Do(http.MethodGet, "/sse?token=bogus", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
