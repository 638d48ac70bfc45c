// Package calendar lays out day, week and month views of the user's
// events and runs the event and Google sync operations behind them.
package calendar

import (
	"fmt"
	"math"
	"time"

	"github.com/takeoff-app/takeoff/backend"
	"github.com/takeoff-app/takeoff/pillar"
)

type ViewKind string

const (
	DayView   ViewKind = "day"
	WeekView  ViewKind = "week"
	MonthView ViewKind = "month"
)

// ParseView returns the view named s, defaulting to week.
func ParseView(s string) (ViewKind, bool) {
	switch ViewKind(s) {
	case DayView, WeekView, MonthView:
		return ViewKind(s), true
	case "":
		return WeekView, true
	}
	return "", false
}

// DateLayout is the YYYY-MM-DD form used to match events to days.
const DateLayout = "2006-01-02"

// MonthPreview is how many events a month cell lists before "more".
const MonthPreview = 3

// MinEventHeight is the smallest rendered event block, in pixels.
const MinEventHeight = 30

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// WeekDates returns the seven days of the Sunday-first week holding focus.
func WeekDates(focus time.Time) []time.Time {
	start := midnight(focus).AddDate(0, 0, -int(focus.Weekday()))
	out := make([]time.Time, 7)
	for i := range out {
		out[i] = start.AddDate(0, 0, i)
	}
	return out
}

// MonthGrid returns the month of focus as rows of seven cells. Zero
// times are blanks: one per weekday before the 1st, then padding after
// the last day.
func MonthGrid(focus time.Time) [][]time.Time {
	first := time.Date(focus.Year(), focus.Month(), 1, 0, 0, 0, 0, focus.Location())
	days := first.AddDate(0, 1, -1).Day()
	blanks := int(first.Weekday())

	cells := make([]time.Time, blanks, blanks+days+6)
	for d := 0; d < days; d++ {
		cells = append(cells, first.AddDate(0, 0, d))
	}
	rows := int(math.Ceil(float64(len(cells)) / 7))
	for len(cells) < rows*7 {
		cells = append(cells, time.Time{})
	}
	grid := make([][]time.Time, rows)
	for r := range grid {
		grid[r] = cells[r*7 : r*7+7]
	}
	return grid
}

// Style positions an event block in a 1px-per-minute day column.
type Style struct {
	Top    int `json:"top"`
	Height int `json:"height"`
}

// EventStyle places ev on its day in loc.
func EventStyle(ev backend.CalendarEvent, loc *time.Location) Style {
	start := ev.StartTime.In(loc)
	minutes := int(ev.EndTime.Sub(ev.StartTime.Time).Minutes())
	return Style{
		Top:    start.Hour()*60 + start.Minute(),
		Height: max(minutes, MinEventHeight),
	}
}

// EventsForDate returns the events starting on date's calendar day in loc.
func EventsForDate(events []backend.CalendarEvent, date time.Time, loc *time.Location) []backend.CalendarEvent {
	day := date.In(loc).Format(DateLayout)
	out := []backend.CalendarEvent{}
	for _, ev := range events {
		if ev.StartTime.In(loc).Format(DateLayout) == day {
			out = append(out, ev)
		}
	}
	return out
}

// Navigate moves focus one step of view in direction dir. Month steps
// clamp to the last day of the target month.
func Navigate(view ViewKind, focus time.Time, dir int) time.Time {
	switch view {
	case DayView:
		return focus.AddDate(0, 0, dir)
	case WeekView:
		return focus.AddDate(0, 0, 7*dir)
	}
	first := time.Date(focus.Year(), focus.Month()+time.Month(dir), 1,
		focus.Hour(), focus.Minute(), focus.Second(), focus.Nanosecond(), focus.Location())
	last := first.AddDate(0, 1, -1).Day()
	return first.AddDate(0, 0, min(focus.Day(), last)-1)
}

// Today returns the current date in loc.
func Today(loc *time.Location) time.Time {
	return midnight(time.Now().In(loc))
}

// Draft is an event being composed before it is posted.
type Draft struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	LifePillar  string    `json:"life_pillar"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
}

// DraftFromSlot returns a one-hour draft starting at hour on date.
func DraftFromSlot(date time.Time, hour int) Draft {
	start := time.Date(date.Year(), date.Month(), date.Day(), hour, 0, 0, 0, date.Location())
	return Draft{
		LifePillar: string(pillar.PersonalGrowth),
		StartTime:  start,
		EndTime:    start.Add(time.Hour),
	}
}

// HeaderText is the title shown above the grid.
func HeaderText(view ViewKind, focus time.Time) string {
	switch view {
	case DayView:
		return focus.Format("Monday, January 2, 2006")
	case WeekView:
		w := WeekDates(focus)
		start, end := w[0], w[6]
		if start.Month() == end.Month() {
			return fmt.Sprintf("%s %d – %d, %d", start.Month(), start.Day(), end.Day(), start.Year())
		}
		return fmt.Sprintf("%s – %s, %d", start.Format("Jan 2"), end.Format("Jan 2"), end.Year())
	}
	return focus.Format("January 2006")
}

// FormatHour labels an hour row on a 12-hour clock.
func FormatHour(hour int) string {
	switch {
	case hour == 0:
		return "12 AM"
	case hour < 12:
		return fmt.Sprintf("%d AM", hour)
	case hour == 12:
		return "12 PM"
	}
	return fmt.Sprintf("%d PM", hour-12)
}
