package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/takeoff-app/takeoff/calendar"
	"go.uber.org/zap"
)

func newCalendarCmd(ctx *Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Show the calendar and sync it with Google",
	}
	cmd.AddCommand(
		newCalendarViewCmd(ctx, calendar.WeekView),
		newCalendarViewCmd(ctx, calendar.MonthView),
		&cobra.Command{
			Use:   "sync",
			Short: "Import upcoming Google Calendar events",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				s, err := ctx.session()
				if err != nil {
					return err
				}
				c := s.ctx(cmd.Context())
				cred, err := s.api.CalendarDebug(c, s.creds.UserID)
				if err != nil {
					return err
				}
				if !cred.HasGoogleTokens {
					return calendar.ErrNoCalendarCredential
				}
				days := s.cfg.Views.SyncDaysAhead
				if days <= 0 {
					days = 30
				}
				res, err := s.api.SyncCalendar(c, s.creds.UserID, days)
				if err != nil {
					return err
				}
				if res.Synced == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No upcoming events found in Google Calendar")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), calendar.SyncMessage(res.Synced, res.Events))
				return nil
			},
		},
	)
	return cmd
}

func newCalendarViewCmd(ctx *Context, kind calendar.ViewKind) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   string(kind),
		Short: fmt.Sprintf("Show the %s around --date", kind),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := ctx.session()
			if err != nil {
				return err
			}
			// Only the layout half of the service is used here.
			svc, err := calendar.NewService(nil, nil, nil, s.cfg.Views, zap.NewNop())
			if err != nil {
				return err
			}
			focus, err := svc.ParseDate(date)
			if err != nil {
				return err
			}
			days := s.cfg.Views.CalendarDaysAhead
			if days <= 0 {
				days = 90
			}
			events, err := s.api.ListEvents(s.ctx(cmd.Context()), s.creds.UserID, days)
			if err != nil {
				return err
			}
			vm := svc.Layout(events, kind, focus, calendar.Today(svc.Location()))
			renderView(cmd.OutOrStdout(), vm, svc.Location())
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "focus date as YYYY-MM-DD (default today)")
	return cmd
}

// renderView prints a week as a day list and a month as a grid of day
// numbers with event counts.
func renderView(w io.Writer, vm *calendar.ViewModel, loc *time.Location) {
	fmt.Fprintln(w, vm.Header)
	if vm.View != calendar.MonthView {
		for _, d := range vm.Days {
			mark := " "
			if d.IsToday {
				mark = "*"
			}
			fmt.Fprintf(w, "%s%s\n", mark, d.Date)
			for _, ev := range d.Events {
				fmt.Fprintf(w, "    %s-%s %s %s\n",
					ev.StartTime.In(loc).Format("15:04"), ev.EndTime.In(loc).Format("15:04"), ev.Icon, ev.Title)
			}
		}
		return
	}

	fmt.Fprintln(w, " Sun    Mon    Tue    Wed    Thu    Fri    Sat")
	for _, row := range vm.Rows {
		var b strings.Builder
		for _, c := range row {
			if c.Blank {
				b.WriteString("       ")
				continue
			}
			day := c.Date[len(c.Date)-2:]
			n := len(c.Events) + c.More
			mark := " "
			if c.IsToday {
				mark = "*"
			}
			if n > 0 {
				fmt.Fprintf(&b, "%s%s(%d) ", mark, day, n)
			} else {
				fmt.Fprintf(&b, "%s%s    ", mark, day)
			}
		}
		fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	}
}
