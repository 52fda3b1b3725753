package root

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"questguild/internal/app"
	"questguild/internal/ui"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show your character sheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				v, err := app.Await(ctx, a.Status(ctx))
				if err != nil {
					return err
				}
				c := v.Character
				fmt.Fprintln(out, ui.Heading(ui.IconLevel, c.Name))
				fmt.Fprintln(out, ui.LabelValue("Level", fmt.Sprintf("%d %s", c.Level, v.Title)))
				fmt.Fprintln(out, ui.LabelValue("XP", fmt.Sprintf("%s %s %.1f%% (%s to go)",
					ui.Number(c.XP), ui.Bar(int64(v.Progress), 100, 20), v.Progress, ui.Number(v.NextLevelXP))))
				fmt.Fprintln(out, ui.LabelValue("Power", ui.Number(c.PowerPoints)))
				fmt.Fprintln(out, ui.LabelValue("Coins", ui.Coins(c.Coins)))
				if st := v.Stats; st != nil {
					fmt.Fprintln(out, ui.LabelValue("Success", fmt.Sprintf("%s (%d of %d)", ui.Percent(st.SuccessRate), st.Completed, st.Counted)))
				}
				b := v.Bonuses
				if b.Power != 0 || b.Success != 0 || b.Coins != 0 {
					fmt.Fprintln(out, ui.LabelValue("Bonuses", fmt.Sprintf("power +%g, success +%g, coins +%g", b.Power, b.Success, b.Coins)))
				}
				if v.Guild != nil {
					fmt.Fprintln(out, ui.LabelValue("Guild", fmt.Sprintf("%s %s (#%d)", ui.IconGuild, v.Guild.Name, v.Guild.ID)))
				}
				if v.Boss != nil {
					fmt.Fprintln(out, ui.LabelValue("Boss", fmt.Sprintf("%s level %d, %s/%s HP", ui.IconBoss, v.Boss.Level, ui.Number(v.Boss.CurrentHP), ui.Number(v.Boss.MaxHP))))
				}
				return nil
			})
		},
	}
}

func newAchievementsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "achievements",
		Short: "List badges",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				list, err := app.Await(ctx, a.Achievements(ctx))
				if err != nil {
					return err
				}
				fmt.Fprintln(out, ui.Heading(ui.IconTrophy, "Achievements"))
				for _, ach := range list {
					mark := ui.Muted.Render("·")
					name := ui.Muted.Render(ach.Name)
					if ach.Earned {
						mark = ach.Icon
						name = ui.Gold.Render(ach.Name)
					}
					fmt.Fprintf(out, "%s %s %s\n", mark, name, ui.Muted.Render(ach.Description))
				}
				return nil
			})
		},
	}
}
