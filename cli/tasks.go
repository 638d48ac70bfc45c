package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/takeoff-app/takeoff/backend"
	"github.com/takeoff-app/takeoff/pillar"
	"github.com/takeoff-app/takeoff/tasks"
)

func newTasksCmd(ctx *Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List and manage tasks",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List active tasks and the latest completed ones",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				s, err := ctx.session()
				if err != nil {
					return err
				}
				all, err := s.api.ListTasks(s.ctx(cmd.Context()), s.creds.UserID)
				if err != nil {
					return err
				}
				printBoard(cmd.OutOrStdout(), tasks.Group(all))
				return nil
			},
		},
		newTaskAddCmd(ctx),
		&cobra.Command{
			Use:   "complete <id>",
			Short: "Mark a task done",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := ctx.session()
				if err != nil {
					return err
				}
				res, err := s.api.CompleteTask(s.ctx(cmd.Context()), args[0])
				if apiErr, ok := backend.AsAPIError(err); ok && apiErr.AlreadyCompleted() {
					fmt.Fprintf(cmd.OutOrStdout(), "Task %s was already completed\n", args[0])
					return nil
				}
				if err != nil {
					return err
				}
				p := pillar.Pillar(res.LifePillar)
				fmt.Fprintf(cmd.OutOrStdout(), "+%d XP %s %s\n", res.XPEarned, pillar.Icon(p), pillar.Label(p))
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a task",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := ctx.session()
				if err != nil {
					return err
				}
				if err := s.api.DeleteTask(s.ctx(cmd.Context()), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %s\n", args[0])
				return nil
			},
		},
	)
	return cmd
}

func newTaskAddCmd(ctx *Context) *cobra.Command {
	var d tasks.Draft
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d.Title = args[0]
			if err := d.Validate(); err != nil {
				return err
			}
			s, err := ctx.session()
			if err != nil {
				return err
			}
			t, err := s.api.CreateTask(s.ctx(cmd.Context()), backend.TaskCreate{
				UserID:            s.creds.UserID,
				Title:             d.Title,
				Description:       d.Description,
				LifePillar:        d.LifePillar,
				Priority:          d.Priority,
				EstimatedDuration: d.EstimatedDuration,
				XPReward:          pillar.TaskXP(d.EstimatedDuration),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%d XP) %s\n", t.Title, t.XPReward, t.ID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&d.LifePillar, "pillar", string(pillar.PersonalGrowth), "life pillar")
	f.StringVar(&d.Priority, "priority", tasks.DefaultPriority, "low, medium, high or urgent")
	f.IntVar(&d.EstimatedDuration, "minutes", tasks.DefaultDuration, "estimated duration in minutes")
	f.StringVar(&d.Description, "description", "", "optional description")
	return cmd
}

func printBoard(w io.Writer, b *tasks.Board) {
	if len(b.Active) == 0 {
		fmt.Fprintln(w, "No active tasks")
	}
	for _, t := range b.Active {
		p := pillar.Pillar(t.LifePillar)
		fmt.Fprintf(w, "[ ] %s %-40s %4d XP  %s\n", pillar.Icon(p), t.Title, t.XPReward, t.ID)
	}
	if b.CompletedCount == 0 {
		return
	}
	fmt.Fprintf(w, "Completed (%d)\n", b.CompletedCount)
	for _, t := range b.Completed {
		fmt.Fprintf(w, "[x] %s\n", t.Title)
	}
}
