package root

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"questguild/internal/app"
	"questguild/internal/engine"
	"questguild/internal/ui"
)

func newBossCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "boss",
		Short: "Face the boss for your level",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				v, err := app.Await(ctx, a.CurrentBoss(ctx))
				if err != nil {
					return err
				}
				printBoss(out, v)
				return nil
			})
		},
	}
	cmd.AddCommand(newBossFightCmd(), newBossAttackCmd(), newBossEndCmd())
	return cmd
}

func printBoss(out io.Writer, v *engine.BossView) {
	if v.Boss == nil {
		fmt.Fprintln(out, ui.Muted.Render("No boss is waiting. "+v.Reason))
		return
	}
	b := v.Boss
	fmt.Fprintln(out, ui.Heading(ui.IconBoss, fmt.Sprintf("Level %d boss", b.Level)))
	fmt.Fprintf(out, "%s %s/%s HP\n", ui.Bar(b.CurrentHP, b.MaxHP, 24), ui.Number(b.CurrentHP), ui.Number(b.MaxHP))
	fmt.Fprintln(out, ui.LabelValue("Hit chance", ui.Percent(v.HitChance)))
	switch {
	case v.Open != nil:
		fmt.Fprintln(out, ui.Warn.Render(fmt.Sprintf("Encounter #%d is open.", v.Open.ID)))
	case v.Available:
		fmt.Fprintln(out, ui.Good.Render("Ready to fight."))
	default:
		fmt.Fprintln(out, ui.Warn.Render(ui.IconWarn+" "+v.Reason))
	}
}

func printAttack(out io.Writer, res *engine.AttackResult) {
	if res.Hit {
		fmt.Fprintf(out, "%s Hit for %s (roll %d < %d), boss at %s HP\n", ui.IconSword, ui.Number(res.Damage), res.Roll, res.HitChance, ui.Number(res.BossHP))
	} else {
		fmt.Fprintf(out, "%s Miss (roll %d, needed < %d)\n", ui.IconSword, res.Roll, res.HitChance)
	}
	if res.Finished && res.Result != nil {
		printEncounter(out, res.Result)
	}
}

func printEncounter(out io.Writer, res *engine.EncounterResult) {
	fmt.Fprintf(out, "%s dealt %s (%.0f%%), earned %s\n", ui.OutcomeText(string(res.Outcome)), ui.Number(res.DamageDealt), res.DamagePercent, ui.Coins(res.Coins))
	if res.Drop != nil {
		fmt.Fprintf(out, "%s Found %s\n", ui.CategoryIcon(res.Drop.Category), ui.Gold.Render(res.Drop.ItemCode))
	}
	if res.Destroyed > 0 {
		fmt.Fprintln(out, ui.Muted.Render(plural(res.Destroyed, "item")+" wore out."))
	}
}

func newBossFightCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fight",
		Short: "Start an encounter and attack until it ends",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				st, err := app.Await(ctx, a.StartEncounter(ctx))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s Encounter #%d, hit chance %s\n", ui.IconBoss, st.Encounter.ID, ui.Percent(st.HitChance))
				for {
					res, err := app.Await(ctx, a.Attack(ctx, st.Encounter.ID))
					if err != nil {
						return err
					}
					printAttack(out, res)
					if res.Finished {
						return nil
					}
				}
			})
		},
	}
}

func newBossAttackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attack",
		Short: "Attack once, opening an encounter if needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				v, err := app.Await(ctx, a.CurrentBoss(ctx))
				if err != nil {
					return err
				}
				var id int64
				if v.Open != nil {
					id = v.Open.ID
				} else {
					st, err := app.Await(ctx, a.StartEncounter(ctx))
					if err != nil {
						return err
					}
					id = st.Encounter.ID
				}
				res, err := app.Await(ctx, a.Attack(ctx, id))
				if err != nil {
					return err
				}
				printAttack(out, res)
				if !res.Finished {
					fmt.Fprintln(out, ui.Muted.Render(fmt.Sprintf("%d attacks left", res.AttacksLeft)))
				}
				return nil
			})
		},
	}
}

func newBossEndCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "end <encounter-id>",
		Short: "Retreat and settle an open encounter",
		Args:  exactID("encounter id"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				res, err := app.Await(ctx, a.EndEncounter(ctx, argID(args)))
				if err != nil {
					return err
				}
				printEncounter(out, res)
				return nil
			})
		},
	}
}
