package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/takeoff-app/takeoff/apperr"
	"github.com/takeoff-app/takeoff/backend"
	"github.com/takeoff-app/takeoff/pillar"
)

func newQuestsCmd(ctx *Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quests",
		Short: "List, generate and progress quests",
	}
	cmd.AddCommand(newQuestListCmd(ctx), newQuestGenerateCmd(ctx), newQuestProgressCmd(ctx))
	return cmd
}

func newQuestListCmd(ctx *Context) *cobra.Command {
	var pillarName string
	var completed bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List quests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if pillarName != "" && !pillar.Valid(pillarName) {
				return apperr.Invalid("unknown life pillar %q", pillarName)
			}
			f := backend.QuestFilter{Pillar: pillarName}
			if cmd.Flags().Changed("completed") {
				f.Completed = &completed
			}
			s, err := ctx.session()
			if err != nil {
				return err
			}
			qs, err := s.api.ListQuests(s.ctx(cmd.Context()), s.creds.UserID, f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(qs) == 0 {
				fmt.Fprintln(out, "No quests found")
				return nil
			}
			for _, q := range qs {
				p := pillar.Pillar(q.LifePillar)
				mark := " "
				if q.IsCompleted {
					mark = "x"
				}
				fmt.Fprintf(out, "[%s] %s %-36s %-9s %3.0f%% %4d XP  %s\n",
					mark, pillar.Icon(p), q.Title, q.Difficulty, q.ProgressPercent, q.XPReward, q.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&pillarName, "pillar", "", "only quests of this life pillar")
	cmd.Flags().BoolVar(&completed, "completed", false, "only completed (true) or open (false) quests")
	return cmd
}

func newQuestGenerateCmd(ctx *Context) *cobra.Command {
	var pillarName string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Ask for new AI quests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if pillarName != "" && !pillar.Valid(pillarName) {
				return apperr.Invalid("unknown life pillar %q", pillarName)
			}
			s, err := ctx.session()
			if err != nil {
				return err
			}
			res, err := s.api.GenerateQuests(s.ctx(cmd.Context()), s.creds.UserID, pillarName)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.Message)
			for _, q := range res.Quests {
				fmt.Fprintf(out, "  %s %s (%d XP)\n", pillar.Icon(pillar.Pillar(q.Pillar)), q.Title, q.XP)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&pillarName, "pillar", "", "generate for this life pillar only")
	return cmd
}

func newQuestProgressCmd(ctx *Context) *cobra.Command {
	return &cobra.Command{
		Use:   "progress <id> <value>",
		Short: "Set a quest's current value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseFloat(args[1], 64)
			if err != nil || value < 0 {
				return apperr.Invalid("progress value must be a non-negative number")
			}
			s, err := ctx.session()
			if err != nil {
				return err
			}
			res, err := s.api.UpdateQuestProgress(s.ctx(cmd.Context()), args[0], value)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Progress %.0f%%\n", res.ProgressPercent)
			if res.IsCompleted {
				fmt.Fprintf(out, "Quest complete! +%d XP\n", res.XPEarned)
			}
			return nil
		},
	}
}
