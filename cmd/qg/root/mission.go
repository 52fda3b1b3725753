package root

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"questguild/internal/app"
	"questguild/internal/engine"
	"questguild/internal/ui"
)

func newMissionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mission",
		Short: "Your guild's special mission",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				v, err := app.Await(ctx, a.MissionProgress(ctx))
				if err != nil {
					return err
				}
				printMission(out, v)
				return nil
			})
		},
	}
	cmd.AddCommand(
		newMissionStartCmd(),
		newMissionChatCmd(),
		newMissionContributeCmd(),
		newMissionCheckCmd(),
	)
	return cmd
}

func printMission(out io.Writer, v *engine.MissionView) {
	m := v.Mission
	fmt.Fprintln(out, ui.Heading(ui.IconMission, fmt.Sprintf("Mission #%d", m.ID)))
	fmt.Fprintf(out, "%s %s/%s HP\n", ui.Bar(m.CurrentHP, m.MaxHP, 24), ui.Number(m.CurrentHP), ui.Number(m.MaxHP))
	switch {
	case m.Status == string(engine.MissionActive):
		fmt.Fprintln(out, ui.LabelValue("Ends in", v.Remaining.Truncate(time.Minute)))
	case m.Successful:
		fmt.Fprintln(out, ui.Good.Render("Completed successfully."))
	default:
		fmt.Fprintln(out, ui.Bad.Render("Expired."))
	}
	rows := append(v.Progress[:0:0], v.Progress...)
	sort.Slice(rows, func(i, j int) bool { return rows[i].DamageDealt > rows[j].DamageDealt })
	for _, p := range rows {
		bonus := ""
		if p.NoUnresolvedBonus {
			bonus = ui.Gold.Render(" bonus")
		}
		fmt.Fprintf(out, "%s %s dmg %s\n", ui.Key.Render(fmt.Sprintf("#%d", p.CharacterID)), ui.Number(p.DamageDealt),
			ui.Muted.Render(fmt.Sprintf("shop %d, hits %d, easy %d, other %d, chat %d", p.ShopPurchases, p.BossHits, p.EasyTasks, p.OtherTasks, p.ChatDays))+bonus)
	}
}

func printContribution(out io.Writer, res *engine.ContributionResult) {
	if res == nil {
		fmt.Fprintln(out, ui.Muted.Render("No mission is running."))
		return
	}
	if !res.Applied {
		fmt.Fprintln(out, ui.Muted.Render(fmt.Sprintf("%s did not count (cap reached or already counted).", res.Kind)))
		return
	}
	fmt.Fprintf(out, "%s %s dealt %d, mission at %s HP\n", ui.IconMission, res.Kind, res.Damage, ui.Number(res.MissionHP))
	if res.Completed {
		fmt.Fprintln(out, ui.Good.Render("Mission complete!"))
		ids := make([]int64, 0, len(res.Rewards))
		for id := range res.Rewards {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			fmt.Fprintf(out, "- #%d %s\n", id, ui.Coins(res.Rewards[id]))
		}
	}
}

func newMissionStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start a special mission for your guild",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				m, err := app.Await(ctx, a.StartMission(ctx))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s Mission #%d started with %s HP, ends %s\n", ui.IconMission, m.ID, ui.Number(m.MaxHP), m.EndsAt.Local().Format("2006-01-02 15:04"))
				return nil
			})
		},
	}
}

func newMissionChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat <message...>",
		Short: "Post to guild chat",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				res, err := app.Await(ctx, a.RecordChatMessage(ctx, strings.Join(args, " ")))
				if err != nil {
					return err
				}
				printContribution(out, res)
				return nil
			})
		},
	}
}

func newMissionContributeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "contribute <kind>",
		Short: "Record a contribution (shop_purchase|boss_hit|easy_task|other_task|chat_day|no_unresolved)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := engine.ParseContributionKind(args[0])
			if !ok {
				return fmt.Errorf("unknown contribution %q", args[0])
			}
			return withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				res, err := app.Await(ctx, a.RecordContribution(ctx, kind))
				if err != nil {
					return err
				}
				printContribution(out, res)
				return nil
			})
		},
	}
}

func newMissionCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Claim the bonus for having nothing overdue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				res, err := app.Await(ctx, a.CheckNoUnresolved(ctx))
				if err != nil {
					return err
				}
				printContribution(out, res)
				return nil
			})
		},
	}
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Mark overdue tasks and settle expired missions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				rep, err := app.Await(ctx, a.Sweep(ctx))
				if err != nil {
					return err
				}
				fmt.Fprintln(out, sweepSummary(rep))
				return nil
			})
		},
	}
}

func sweepSummary(rep *engine.SweepReport) string {
	return fmt.Sprintf("overdue %d, missions expired %d, bonuses %d, missions completed %d",
		rep.Overdue, rep.MissionsExpired, rep.BonusesGranted, rep.MissionsComplete)
}
