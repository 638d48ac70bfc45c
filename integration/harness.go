// Package integration drives a running BFF over real HTTP the way the
// browser does: REST calls plus the session's event stream.
package integration

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/takeoff-app/takeoff/testutil/app"
)

// Client is one signed-in browser tab.
type Client struct {
	t   *testing.T
	app *app.App
	JWT string
}

// SignIn starts an app and opens a session for its user.
func SignIn(t *testing.T) (*app.App, *Client) {
	t.Helper()
	a := app.New(t)
	return a, &Client{t: t, app: a, JWT: a.Login(t)}
}

// Call sends a JSON request and returns the response. Callers close it.
func (c *Client) Call(method, path string, body any) *http.Response {
	c.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.app.URL+path, r)
	require.NoError(c.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.JWT != "" {
		req.Header.Set("Authorization", "Bearer "+c.JWT)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	return resp
}

// JSON sends a request, requires status want and decodes the body into out
// when out is not nil.
func (c *Client) JSON(method, path string, body any, want int, out any) {
	c.t.Helper()
	resp := c.Call(method, path, body)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	require.Equal(c.t, want, resp.StatusCode, "%s %s: %s", method, path, raw)
	if out != nil {
		require.NoError(c.t, json.Unmarshal(raw, out), string(raw))
	}
}

// Event is one server-sent event.
type Event struct {
	Name string
	Data string
}

// Stream is an open /sse connection.
type Stream struct {
	t      *testing.T
	events chan Event
	cancel context.CancelFunc
}

// Stream opens the event stream and waits for the connected event.
func (c *Client) Stream() *Stream {
	c.t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.app.URL+"/sse?token="+c.JWT, nil)
	require.NoError(c.t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	require.Equal(c.t, http.StatusOK, resp.StatusCode)

	s := &Stream{t: c.t, events: make(chan Event, 256), cancel: cancel}
	go func() {
		defer resp.Body.Close()
		defer close(s.events)
		sc := bufio.NewScanner(resp.Body)
		var ev Event
		for sc.Scan() {
			line := sc.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.Name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				ev.Data = strings.TrimPrefix(line, "data: ")
			case line == "" && ev.Name != "":
				s.events <- ev
				ev = Event{}
			}
		}
	}()
	c.t.Cleanup(s.Close)
	require.Equal(c.t, "connected", s.Next(2*time.Second).Name)
	return s
}

// Next returns the next event or fails after timeout.
func (s *Stream) Next(timeout time.Duration) Event {
	s.t.Helper()
	select {
	case ev, ok := <-s.events:
		require.True(s.t, ok, "event stream closed")
		return ev
	case <-time.After(timeout):
		s.t.Fatalf("no event within %s", timeout)
		return Event{}
	}
}

// WaitFor skips events until one named name arrives.
func (s *Stream) WaitFor(name string, timeout time.Duration) Event {
	s.t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		left := time.Until(deadline)
		if left <= 0 {
			s.t.Fatalf("no %s event within %s", name, timeout)
		}
		if ev := s.Next(left); ev.Name == name {
			return ev
		}
	}
}

func (s *Stream) Close() { s.cancel() }
