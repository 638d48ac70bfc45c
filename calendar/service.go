package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/takeoff-app/takeoff/activity"
	"github.com/takeoff-app/takeoff/apperr"
	"github.com/takeoff-app/takeoff/backend"
	"github.com/takeoff-app/takeoff/banner"
	"github.com/takeoff-app/takeoff/config"
	"github.com/takeoff-app/takeoff/model"
	"github.com/takeoff-app/takeoff/pillar"
	"github.com/takeoff-app/takeoff/store"
	"go.uber.org/zap"
)

// ErrNoCalendarCredential is returned by Sync when the user has no Google
// tokens on file. No sync request is sent in that case.
var ErrNoCalendarCredential = errors.New("calendar: no google account linked")

const (
	msgCreatedSynced = "Event created and synced to Google Calendar!"
	msgCreatedLocal  = "Event created locally (Google sync unavailable)"
	msgCreateFailed  = "Failed to create event"
	msgDeleteFailed  = "Failed to delete event"
	msgNoCredential  = "No Google account linked. Please log out and sign in again with Google."
	msgNoEvents      = "No upcoming events found in Google Calendar"
	msgSyncFailed    = "Failed to sync with Google Calendar"
)

// EventView is an event as placed on the grid.
type EventView struct {
	backend.CalendarEvent
	Pillar string `json:"pillar"`
	Icon   string `json:"icon"`
	Style  Style  `json:"style"`
}

// Cell is one day of a view. Blank cells pad the month grid.
type Cell struct {
	Date    string      `json:"date,omitempty"`
	IsToday bool        `json:"is_today"`
	Blank   bool        `json:"blank,omitempty"`
	Events  []EventView `json:"events"`
	More    int         `json:"more"`
}

// ViewModel is everything a renderer needs for one calendar screen.
type ViewModel struct {
	View   ViewKind `json:"view"`
	Focus  string   `json:"focus"`
	Header string   `json:"header"`
	Hours  []string `json:"hours,omitempty"`
	Days   []Cell   `json:"days,omitempty"`
	Rows   [][]Cell `json:"rows,omitempty"`
}

// SyncOutcome reports a sync and the banner it raised.
type SyncOutcome struct {
	Synced   int           `json:"synced"`
	Events   []string      `json:"events"`
	SyncedAt time.Time     `json:"synced_at"`
	Banner   banner.Banner `json:"banner"`
}

type Service struct {
	st        *store.Store
	banners   *banner.Board
	acts      *activity.Service
	loc       *time.Location
	daysAhead int
	syncDays  int
	logger    *zap.Logger
}

func NewService(st *store.Store, banners *banner.Board, acts *activity.Service, cfg config.ViewsConfig, logger *zap.Logger) (*Service, error) {
	loc := time.Local
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("calendar: timezone %q: %w", cfg.Timezone, err)
		}
		loc = l
	}
	s := &Service{
		st:        st,
		banners:   banners,
		acts:      acts,
		loc:       loc,
		daysAhead: cfg.CalendarDaysAhead,
		syncDays:  cfg.SyncDaysAhead,
		logger:    logger,
	}
	if s.daysAhead <= 0 {
		s.daysAhead = 90
	}
	if s.syncDays <= 0 {
		s.syncDays = 30
	}
	return s, nil
}

// Location is the zone the grid is laid out in.
func (s *Service) Location() *time.Location { return s.loc }

// ParseDate reads a YYYY-MM-DD date in the service's zone; empty means today.
func (s *Service) ParseDate(v string) (time.Time, error) {
	if v == "" {
		return Today(s.loc), nil
	}
	t, err := time.ParseInLocation(DateLayout, v, s.loc)
	if err != nil {
		return time.Time{}, apperr.Invalid("date must be YYYY-MM-DD")
	}
	return t, nil
}

// Window returns the events of the fetch window. All views read from it,
// so moving around the grid does not refetch.
func (s *Service) Window(ctx context.Context, sess *model.Session) ([]backend.CalendarEvent, error) {
	return s.st.Events(ctx, sess.UserID, s.daysAhead)
}

func (s *Service) cell(events []backend.CalendarEvent, date time.Time, today string, limit int) Cell {
	c := Cell{Date: date.Format(DateLayout), Events: []EventView{}}
	c.IsToday = c.Date == today
	matched := EventsForDate(events, date, s.loc)
	for i, ev := range matched {
		if limit > 0 && i >= limit {
			c.More = len(matched) - limit
			break
		}
		p := ev.Pillar()
		c.Events = append(c.Events, EventView{
			CalendarEvent: ev,
			Pillar:        string(p),
			Icon:          pillar.Icon(p),
			Style:         EventStyle(ev, s.loc),
		})
	}
	return c
}

// View builds the view model of kind around focus.
func (s *Service) View(ctx context.Context, sess *model.Session, kind ViewKind, focus time.Time) (*ViewModel, error) {
	events, err := s.Window(ctx, sess)
	if err != nil && !store.IsStale(err) {
		return nil, err
	}
	return s.Layout(events, kind, focus.In(s.loc), Today(s.loc)), err
}

// Layout is View without the fetch.
func (s *Service) Layout(events []backend.CalendarEvent, kind ViewKind, focus, today time.Time) *ViewModel {
	todayKey := today.Format(DateLayout)
	vm := &ViewModel{View: kind, Focus: focus.Format(DateLayout), Header: HeaderText(kind, focus)}
	switch kind {
	case DayView, WeekView:
		vm.Hours = make([]string, 24)
		for h := range vm.Hours {
			vm.Hours[h] = FormatHour(h)
		}
		dates := []time.Time{midnight(focus)}
		if kind == WeekView {
			dates = WeekDates(focus)
		}
		for _, d := range dates {
			vm.Days = append(vm.Days, s.cell(events, d, todayKey, 0))
		}
	default:
		for _, row := range MonthGrid(focus) {
			cells := make([]Cell, 0, 7)
			for _, d := range row {
				if d.IsZero() {
					cells = append(cells, Cell{Blank: true, Events: []EventView{}})
					continue
				}
				cells = append(cells, s.cell(events, d, todayKey, MonthPreview))
			}
			vm.Rows = append(vm.Rows, cells)
		}
	}
	return vm
}

// Validate checks a draft before it is posted.
func (d *Draft) Validate() error {
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		return apperr.Invalid("title is required")
	}
	if d.StartTime.IsZero() || d.EndTime.IsZero() {
		return apperr.Invalid("start and end time are required")
	}
	if d.EndTime.Before(d.StartTime) {
		return apperr.Invalid("end time must not be before start time")
	}
	if d.LifePillar == "" {
		d.LifePillar = string(pillar.PersonalGrowth)
	}
	if !pillar.Valid(d.LifePillar) {
		return apperr.Invalid("unknown life pillar %q", d.LifePillar)
	}
	return nil
}

// Create posts d, always asking for Google sync, and reports through the
// calendar banner whether the sync happened.
func (s *Service) Create(ctx context.Context, sess *model.Session, d Draft) (*backend.EventCreated, banner.Banner, error) {
	if err := d.Validate(); err != nil {
		return nil, banner.Banner{}, err
	}
	res, err := s.st.API().CreateEvent(ctx, sess.UserID, backend.EventCreate{
		Title:        d.Title,
		Description:  d.Description,
		LifePillar:   d.LifePillar,
		StartTime:    backend.NewTimestamp(d.StartTime),
		EndTime:      backend.NewTimestamp(d.EndTime),
		SyncToGoogle: true,
	})
	if err != nil {
		s.logger.Warn("event create failed", zap.String("user_id", sess.UserID), zap.Error(err))
		return nil, s.banners.Show(sess.ID, banner.ChannelCalendar, banner.Error, msgCreateFailed), err
	}
	_ = s.st.Invalidate(ctx, sess.UserID, store.EntityEvents)

	if res.SyncedToGoogle {
		return res, s.banners.Show(sess.ID, banner.ChannelCalendar, banner.Success, msgCreatedSynced), nil
	}
	return res, s.banners.Show(sess.ID, banner.ChannelCalendar, banner.Info, msgCreatedLocal), nil
}

func (s *Service) Delete(ctx context.Context, sess *model.Session, id string) error {
	if err := s.st.API().DeleteEvent(ctx, id); err != nil {
		s.logger.Warn("event delete failed", zap.String("event_id", id), zap.Error(err))
		s.banners.Show(sess.ID, banner.ChannelCalendar, banner.Error, msgDeleteFailed)
		return err
	}
	_ = s.st.Invalidate(ctx, sess.UserID, store.EntityEvents)
	return nil
}

// SyncMessage is the success banner text for a sync of titles.
func SyncMessage(synced int, titles []string) string {
	head := titles
	if len(head) > 3 {
		head = head[:3]
	}
	msg := fmt.Sprintf("Synced %d events: %s", synced, strings.Join(head, ", "))
	if len(titles) > 3 {
		msg += "..."
	}
	return msg
}

// Sync pulls upcoming Google events. The credential check runs first; a
// user without Google tokens gets ErrNoCalendarCredential and no sync
// request is made.
func (s *Service) Sync(ctx context.Context, sess *model.Session) (*SyncOutcome, error) {
	out := &SyncOutcome{Events: []string{}}
	fail := func(err error) (*SyncOutcome, error) {
		s.logger.Warn("calendar sync failed", zap.String("user_id", sess.UserID), zap.Error(err))
		out.Banner = s.banners.Show(sess.ID, banner.ChannelCalendar, banner.Error, syncFailure(err))
		s.log(ctx, sess, 0, err)
		return out, err
	}

	cred, err := s.st.API().CalendarDebug(ctx, sess.UserID)
	if err != nil {
		return fail(err)
	}
	if !cred.HasGoogleTokens {
		out.Banner = s.banners.Show(sess.ID, banner.ChannelCalendar, banner.Error, msgNoCredential)
		return out, ErrNoCalendarCredential
	}

	res, err := s.st.API().SyncCalendar(ctx, sess.UserID, s.syncDays)
	if err != nil {
		return fail(err)
	}
	_ = s.st.Invalidate(ctx, sess.UserID, store.EntityEvents)

	out.Synced = res.Synced
	out.SyncedAt = time.Now()
	if res.Events != nil {
		out.Events = res.Events
	}
	if res.Synced == 0 {
		out.Banner = s.banners.Show(sess.ID, banner.ChannelCalendar, banner.Info, msgNoEvents)
	} else {
		out.Banner = s.banners.Show(sess.ID, banner.ChannelCalendar, banner.Success, SyncMessage(res.Synced, out.Events))
	}
	s.log(ctx, sess, res.Synced, nil)
	return out, nil
}

// syncFailure prefers the backend's own detail over the generic message.
func syncFailure(err error) string {
	if apiErr, ok := backend.AsAPIError(err); ok && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return msgSyncFailed
}

func (s *Service) log(ctx context.Context, sess *model.Session, synced int, err error) {
	e := activity.Entry{
		TraceID:   backend.TraceID(ctx),
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Action:    activity.CalendarSync,
		Payload:   map[string]int{"synced": synced},
	}
	if err != nil {
		e.Error = err.Error()
	}
	s.acts.Log(e)
}
