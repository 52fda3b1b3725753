package root

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"questguild/internal/app"
	"questguild/internal/engine"
	"questguild/internal/storage"
	"questguild/internal/ui"
	"questguild/internal/worker"
)

func newRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <name>",
		Short: "Create your character",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				c, err := app.Await(ctx, a.Register(ctx, args[0]))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s %s the %s (level %d)\n", ui.IconLevel, ui.Title.Render(c.Name), engine.Title(c.Level), c.Level)
				return nil
			})
		},
	}
}

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "task",
		Aliases: []string{"t"},
		Short:   "Manage tasks",
	}
	cmd.AddCommand(
		newTaskAddCmd(),
		newTaskListCmd(),
		newTaskEditCmd(),
		newTaskDoCmd(),
		newTaskTransitionCmd("cancel", "Cancel a task", (*app.App).CancelTask),
		newTaskTransitionCmd("pause", "Pause a recurring task", (*app.App).PauseTask),
		newTaskTransitionCmd("resume", "Resume a paused task", (*app.App).ResumeTask),
		newTaskRemoveCmd(),
	)
	return cmd
}

func newTaskAddCmd() *cobra.Command {
	var (
		desc, category, diff, imp, at string
		every                         int
		unit, until                   string
	)
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Schedule a task, optionally repeating",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("name is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			d, ok := engine.ParseDifficulty(diff)
			if !ok {
				return fmt.Errorf("unknown difficulty %q", diff)
			}
			i, ok := engine.ParseImportance(imp)
			if !ok {
				return fmt.Errorf("unknown importance %q", imp)
			}
			scheduled, err := parseWhen(at)
			if err != nil {
				return err
			}
			in := engine.CreateTaskInput{
				Name:        args[0],
				Description: desc,
				Category:    category,
				Difficulty:  d,
				Importance:  i,
				ScheduledAt: scheduled,
			}
			if every > 0 {
				u, ok := engine.ParseRepeatUnit(unit)
				if !ok {
					return fmt.Errorf("unknown repeat unit %q", unit)
				}
				end, err := parseWhen(until)
				if err != nil {
					return err
				}
				in.Recurrence = &engine.Recurrence{Interval: every, Unit: u, Until: end}
			}

			return withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				res, err := app.Await(ctx, a.CreateTask(ctx, in))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s Scheduled %s worth %d XP", ui.IconTask, ui.H2.Render(in.Name), res.XPValue)
				if len(res.TaskIDs) > 1 {
					fmt.Fprintf(out, " (%d instances)", len(res.TaskIDs))
				}
				fmt.Fprintln(out)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&desc, "desc", "", "Description")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Category")
	cmd.Flags().StringVarP(&diff, "diff", "d", "easy", "Difficulty (very_easy|easy|hard|extreme)")
	cmd.Flags().StringVarP(&imp, "imp", "i", "normal", "Importance (normal|important|very_important|special)")
	cmd.Flags().StringVar(&at, "at", "", "When it is due (default now)")
	cmd.Flags().IntVar(&every, "every", 0, "Repeat every N units")
	cmd.Flags().StringVar(&unit, "unit", "day", "Repeat unit (day|week)")
	cmd.Flags().StringVar(&until, "until", "", "Last day of the series (inclusive)")
	return cmd
}

func newTaskListCmd() *cobra.Command {
	var statuses []string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter []engine.TaskStatus
			for _, s := range statuses {
				st, ok := engine.ParseStatus(s)
				if !ok {
					return fmt.Errorf("unknown status %q", s)
				}
				filter = append(filter, st)
			}
			return withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				tasks, err := app.Await(ctx, a.ListTasks(ctx, filter...))
				if err != nil {
					return err
				}
				if len(tasks) == 0 {
					fmt.Fprintln(out, ui.Muted.Render("No tasks."))
					return nil
				}
				fmt.Fprintln(out, ui.Heading(ui.IconTask, "Tasks"))
				for i := range tasks {
					printTask(out, &tasks[i])
				}
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Only these statuses")
	return cmd
}

func printTask(out io.Writer, t *storage.Task) {
	loc, _ := cfg.Location()
	if loc == nil {
		loc = t.ScheduledAt.Location()
	}
	fmt.Fprintf(out, "%s %s %s %s %s\n",
		ui.Key.Render(fmt.Sprintf("#%d", t.ID)),
		ui.TaskIcon(t.Recurring),
		t.Name,
		ui.Muted.Render(fmt.Sprintf("%s | %s/%s | %d XP", t.ScheduledAt.In(loc).Format("2006-01-02 15:04"), t.Difficulty, t.Importance, t.XPValue)),
		ui.StatusText(t.Status),
	)
}

func newTaskEditCmd() *cobra.Command {
	var name, desc, category, diff, imp, at string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a task's details",
		Args:  exactID("id"),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := engine.EditTaskInput{ID: argID(args)}
			flags := cmd.Flags()
			if flags.Changed("name") {
				in.Name = &name
			}
			if flags.Changed("desc") {
				in.Description = &desc
			}
			if flags.Changed("category") {
				in.Category = &category
			}
			if flags.Changed("diff") {
				d, ok := engine.ParseDifficulty(diff)
				if !ok {
					return fmt.Errorf("unknown difficulty %q", diff)
				}
				in.Difficulty = &d
			}
			if flags.Changed("imp") {
				i, ok := engine.ParseImportance(imp)
				if !ok {
					return fmt.Errorf("unknown importance %q", imp)
				}
				in.Importance = &i
			}
			if flags.Changed("at") {
				when, err := parseWhen(at)
				if err != nil {
					return err
				}
				in.ScheduledAt = &when
			}
			return withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				t, err := app.Await(ctx, a.EditTask(ctx, in))
				if err != nil {
					return err
				}
				printTask(out, t)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().StringVar(&desc, "desc", "", "New description")
	cmd.Flags().StringVarP(&category, "category", "c", "", "New category")
	cmd.Flags().StringVarP(&diff, "diff", "d", "", "New difficulty")
	cmd.Flags().StringVarP(&imp, "imp", "i", "", "New importance")
	cmd.Flags().StringVar(&at, "at", "", "New schedule")
	return cmd
}

func newTaskDoCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "do <id>",
		Aliases: []string{"complete"},
		Short:   "Complete a task",
		Args:    exactID("id"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				res, err := app.Await(ctx, a.CompleteTask(ctx, argID(args)))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s +%d XP (total %s) %s\n", ui.IconDone, res.XPAwarded, ui.Number(res.XPTotal),
					ui.Muted.Render(fmt.Sprintf("%s quota %d/%d", res.QuotaClass, res.QuotaUsed, res.QuotaLimit)))
				if res.LevelUp {
					fmt.Fprintf(out, "%s level %d, %s (+%d power)\n", ui.BadgeLevelUp, res.LevelAfter, res.Title, res.PowerGained)
				}
				if res.Boss != nil {
					fmt.Fprintf(out, "%s A level %d boss with %s HP is waiting.\n", ui.IconBoss, res.Boss.Level, ui.Number(res.Boss.MaxHP))
				}
				return nil
			})
		},
	}
}

type taskTransition func(a *app.App, ctx context.Context, id int64) *worker.Future[*storage.Task]

func newTaskTransitionCmd(use, short string, fn taskTransition) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  exactID("id"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				t, err := app.Await(ctx, fn(a, ctx, argID(args)))
				if err != nil {
					return err
				}
				printTask(out, t)
				return nil
			})
		},
	}
}

func newTaskRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task; recurring tasks lose their future instances too",
		Args:    exactID("id"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				res, err := app.Await(ctx, a.DeleteTask(ctx, argID(args)))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Deleted %s.\n", plural(res.Deleted, "task"))
				return nil
			})
		},
	}
}

func plural(n int64, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return ui.Number(n) + " " + noun + "s"
}
