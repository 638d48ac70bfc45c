package calendar_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/takeoff-app/takeoff/activity"
	"github.com/takeoff-app/takeoff/apperr"
	"github.com/takeoff-app/takeoff/backend"
	"github.com/takeoff-app/takeoff/banner"
	"github.com/takeoff-app/takeoff/calendar"
	"github.com/takeoff-app/takeoff/config"
	"github.com/takeoff-app/takeoff/push"
	"github.com/takeoff-app/takeoff/testutil/env"
	"go.uber.org/zap"
)

func newService(t *testing.T) (*calendar.Service, *env.Env) {
	e := env.New(t)
	svc, err := calendar.NewService(e.Store, e.Banners, e.Activity, config.ViewsConfig{Timezone: "UTC"}, zap.NewNop())
	require.NoError(t, err)
	return svc, e
}

func TestNewService_BadTimezone(t *testing.T) {
	e := env.New(t)
	_, err := calendar.NewService(e.Store, e.Banners, e.Activity, config.ViewsConfig{Timezone: "Mars/Olympus"}, zap.NewNop())
	assert.Error(t, err)
}

func TestView_MonthCellsCapAtThree(t *testing.T) {
	svc, e := newService(t)
	focus := time.Date(2026, time.August, 12, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s := focus.Add(time.Duration(8+i) * time.Hour)
		e.FB.SeedEvent(e.UID, backend.CalendarEvent{
			Title:      "Block",
			StartTime:  backend.NewTimestamp(s),
			EndTime:    backend.NewTimestamp(s.Add(30 * time.Minute)),
			LifePillar: "health",
		})
	}

	vm, err := svc.View(e.Ctx(), e.Session, calendar.MonthView, focus)
	require.NoError(t, err)
	assert.Equal(t, "August 2026", vm.Header)
	require.Len(t, vm.Rows, 6)
	assert.True(t, vm.Rows[0][0].Blank)

	var cell calendar.Cell
	for _, row := range vm.Rows {
		for _, c := range row {
			if c.Date == "2026-08-12" {
				cell = c
			}
		}
	}
	assert.Len(t, cell.Events, calendar.MonthPreview)
	assert.Equal(t, 2, cell.More)
	assert.Equal(t, "health", cell.Events[0].Pillar)
	assert.Equal(t, calendar.Style{Top: 480, Height: 30}, cell.Events[0].Style)
}

func TestView_WeekHasHours(t *testing.T) {
	svc, e := newService(t)
	focus := time.Date(2026, time.January, 7, 0, 0, 0, 0, time.UTC)
	s := focus.Add(14 * time.Hour)
	e.FB.SeedEvent(e.UID, backend.CalendarEvent{
		Title:          "Standup",
		StartTime:      backend.NewTimestamp(s),
		EndTime:        backend.NewTimestamp(s.Add(45 * time.Minute)),
		LifePillarTags: []string{"career"},
	})

	vm, err := svc.View(e.Ctx(), e.Session, calendar.WeekView, focus)
	require.NoError(t, err)
	assert.Len(t, vm.Hours, 24)
	require.Len(t, vm.Days, 7)
	assert.Equal(t, "2026-01-04", vm.Days[0].Date)
	wed := vm.Days[3]
	require.Len(t, wed.Events, 1)
	assert.Equal(t, "career", wed.Events[0].Pillar)
	assert.Equal(t, calendar.Style{Top: 840, Height: 45}, wed.Events[0].Style)
	assert.Zero(t, wed.More)
}

func TestParseDate(t *testing.T) {
	svc, _ := newService(t)
	d, err := svc.ParseDate("2026-02-03")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.February, 3, 0, 0, 0, 0, time.UTC), d)
	_, err = svc.ParseDate("03/02/2026")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func draft() calendar.Draft {
	d := calendar.DraftFromSlot(time.Now().UTC().Add(24*time.Hour), 10)
	d.Title = "Dentist"
	d.LifePillar = "health"
	return d
}

func TestCreate_BannerReflectsGoogleSync(t *testing.T) {
	svc, e := newService(t)
	ctx := e.Ctx()

	res, bn, err := svc.Create(ctx, e.Session, draft())
	require.NoError(t, err)
	assert.False(t, res.SyncedToGoogle)
	assert.Equal(t, banner.Info, bn.Kind)
	assert.Equal(t, "Event created locally (Google sync unavailable)", bn.Message)

	e.FB.LinkGoogle(e.UID, true)
	res, bn, err = svc.Create(ctx, e.Session, draft())
	require.NoError(t, err)
	assert.True(t, res.SyncedToGoogle)
	assert.Equal(t, banner.Success, bn.Kind)
	assert.Equal(t, "Event created and synced to Google Calendar!", bn.Message)

	events, err := svc.Window(ctx, e.Session)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestCreate_Validation(t *testing.T) {
	svc, e := newService(t)
	d := draft()
	d.Title = "  "
	_, _, err := svc.Create(e.Ctx(), e.Session, d)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	d = draft()
	d.EndTime = d.StartTime.Add(-time.Minute)
	_, _, err = svc.Create(e.Ctx(), e.Session, d)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	assert.Zero(t, e.FB.Hits(http.MethodPost, "/calendar/create/:uid"))
}

func TestCreate_FailureShowsErrorBanner(t *testing.T) {
	svc, e := newService(t)
	e.FB.FailRoute(http.MethodPost, "/calendar/create/:uid", http.StatusInternalServerError)

	_, bn, err := svc.Create(e.Ctx(), e.Session, draft())
	require.Error(t, err)
	assert.Equal(t, banner.Error, bn.Kind)
	assert.Equal(t, "Failed to create event", bn.Message)
}

func TestSync_WithoutCredentialSkipsSync(t *testing.T) {
	svc, e := newService(t)

	out, err := svc.Sync(e.Ctx(), e.Session)
	assert.ErrorIs(t, err, calendar.ErrNoCalendarCredential)
	assert.Equal(t, banner.Error, out.Banner.Kind)
	assert.Equal(t, "No Google account linked. Please log out and sign in again with Google.", out.Banner.Message)
	assert.Equal(t, 1, e.FB.Hits(http.MethodGet, "/calendar/debug/:uid"))
	assert.Zero(t, e.FB.Hits(http.MethodPost, "/calendar/sync/:uid"))
}

func TestSync_ImportsAndSummarises(t *testing.T) {
	svc, e := newService(t)
	ctx := e.Ctx()
	e.FB.LinkGoogle(e.UID, true, "Gym", "Lunch", "Review", "Call mom")

	// Prime the view cache so the sync has something to invalidate.
	before, err := svc.Window(ctx, e.Session)
	require.NoError(t, err)
	assert.Empty(t, before)

	out, err := svc.Sync(ctx, e.Session)
	require.NoError(t, err)
	assert.Equal(t, 4, out.Synced)
	assert.Equal(t, banner.Success, out.Banner.Kind)
	assert.Equal(t, "Synced 4 events: Gym, Lunch, Review...", out.Banner.Message)
	assert.False(t, out.SyncedAt.IsZero())

	after, err := svc.Window(ctx, e.Session)
	require.NoError(t, err)
	assert.Len(t, after, 4)
	require.Len(t, e.Push.Events(e.Session.ID, push.EventBanner), 1)

	logs := e.Activities(t)
	require.Len(t, logs, 1)
	assert.Equal(t, activity.CalendarSync, logs[0].Action)
}

func TestSync_NothingToImport(t *testing.T) {
	svc, e := newService(t)
	e.FB.LinkGoogle(e.UID, true)

	out, err := svc.Sync(e.Ctx(), e.Session)
	require.NoError(t, err)
	assert.Equal(t, banner.Info, out.Banner.Kind)
	assert.Equal(t, "No upcoming events found in Google Calendar", out.Banner.Message)
}

func TestSync_UpstreamFailure(t *testing.T) {
	svc, e := newService(t)
	e.FB.LinkGoogle(e.UID, true, "Gym")
	e.FB.FailRoute(http.MethodPost, "/calendar/sync/:uid", http.StatusBadGateway)

	out, err := svc.Sync(e.Ctx(), e.Session)
	require.Error(t, err)
	assert.Equal(t, banner.Error, out.Banner.Kind)
	assert.Equal(t, "injected failure", out.Banner.Message)
}

func TestSync_FailureWithoutDetail(t *testing.T) {
	svc, e := newService(t)
	e.FB.LinkGoogle(e.UID, true, "Gym")
	release := e.FB.HoldRoute(http.MethodPost, "/calendar/sync/:uid")
	defer release()

	ctx, cancel := context.WithTimeout(e.Ctx(), 200*time.Millisecond)
	defer cancel()
	out, err := svc.Sync(ctx, e.Session)
	require.Error(t, err)
	_, isAPI := backend.AsAPIError(err)
	assert.False(t, isAPI)
	assert.Equal(t, banner.Error, out.Banner.Kind)
	assert.Equal(t, "Failed to sync with Google Calendar", out.Banner.Message)
}

func TestDelete(t *testing.T) {
	svc, e := newService(t)
	ctx := e.Ctx()
	s := time.Now().UTC().Add(48 * time.Hour)
	id := e.FB.SeedEvent(e.UID, backend.CalendarEvent{Title: "x", StartTime: backend.NewTimestamp(s), EndTime: backend.NewTimestamp(s.Add(time.Hour))})

	_, err := svc.Window(ctx, e.Session)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, e.Session, id))
	events, err := svc.Window(ctx, e.Session)
	require.NoError(t, err)
	assert.Empty(t, events)

	err = svc.Delete(ctx, e.Session, "missing")
	require.Error(t, err)
	bn, ok := e.Banners.Current(e.Session.ID, banner.ChannelCalendar)
	require.True(t, ok)
	assert.Equal(t, "Failed to delete event", bn.Message)
}
