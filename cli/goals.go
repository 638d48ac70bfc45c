package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/takeoff-app/takeoff/backend"
	"github.com/takeoff-app/takeoff/goals"
	"github.com/takeoff-app/takeoff/pillar"
)

func newGoalsCmd(ctx *Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goals",
		Short: "Show long-term and ultimate goals",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List goals with their next milestone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := ctx.session()
			if err != nil {
				return err
			}
			c := s.ctx(cmd.Context())
			lt, err := s.api.ListGoals(c, s.creds.UserID)
			if err != nil {
				return err
			}
			ult, err := s.api.ListUltimateGoals(c, s.creds.UserID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Long-term goals")
			if len(lt) == 0 {
				fmt.Fprintln(out, "  none yet")
			}
			for _, g := range lt {
				printGoal(out, pillar.Pillar(g.LifePillar), g.Title, g.ProgressPercent, g.Milestones, g.CurrentMilestoneIndex, g.IsCompleted)
			}
			fmt.Fprintln(out, "Ultimate goals")
			for _, g := range goals.SortUltimate(ult) {
				printGoal(out, pillar.Pillar(g.Pillar), g.Title, g.ProgressPercent, g.Milestones, g.CurrentMilestoneIndex, g.IsCompleted)
			}
			return nil
		},
	})
	return cmd
}

func printGoal(w io.Writer, p pillar.Pillar, title string, progress float64, ms []backend.Milestone, current int, done bool) {
	fmt.Fprintf(w, "  %s %-40s %3.0f%%\n", pillar.Icon(p), title, progress)
	if done {
		fmt.Fprintln(w, "      completed")
		return
	}
	if next, ok := goals.Actionable(goals.View(ms, current, done)); ok {
		fmt.Fprintf(w, "      next: %s (+%d XP) %s\n", next.Title, next.XPReward, next.ID)
	}
}
