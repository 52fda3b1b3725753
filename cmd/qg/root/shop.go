package root

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"questguild/internal/app"
	"questguild/internal/storage"
	"questguild/internal/ui"
	"questguild/internal/worker"
)

func newShopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shop",
		Short: "Browse the shop and manage equipment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				items, err := app.Await(ctx, a.ShopCatalog(ctx))
				if err != nil {
					return err
				}
				fmt.Fprintln(out, ui.Heading(ui.IconShop, "Shop"))
				for _, it := range items {
					price := ui.Muted.Render("drop only")
					if it.Purchasable() {
						price = ui.Coins(it.Price)
					}
					uses := "unlimited"
					if it.Durability > 0 {
						uses = plural(int64(it.Durability), "use")
					}
					fmt.Fprintf(out, "%s %-18s %s +%g %s, %s  %s\n",
						ui.CategoryIcon(string(it.Category)), it.Code, it.Name, it.BonusValue, it.Bonus, uses, price)
				}
				return nil
			})
		},
	}
	cmd.AddCommand(
		newShopBuyCmd(),
		newEquipmentListCmd(),
		newEquipmentToggleCmd("activate", "Wear or ready an item", (*app.App).Activate),
		newEquipmentToggleCmd("deactivate", "Put an item away", (*app.App).Deactivate),
		newShopUpgradeCmd(),
	)
	return cmd
}

func newShopBuyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "buy <item-code>",
		Short: "Buy an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				res, err := app.Await(ctx, a.Purchase(ctx, args[0]))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s Bought %s (#%d) for %s, %s left\n", ui.IconShop, ui.Gold.Render(res.Item.Name), res.Equipment.ID, ui.Coins(res.Price), ui.Coins(res.Coins))
				return nil
			})
		},
	}
}

func printEquipment(out io.Writer, e *storage.Equipment) {
	state := ui.Muted.Render("stored")
	if e.Active {
		state = ui.Good.Render("active")
	}
	uses := "unlimited"
	if e.Durability >= 0 {
		uses = plural(int64(e.Durability), "use")
	}
	fmt.Fprintf(out, "%s %s %s +%g %s, %s %s\n",
		ui.Key.Render(fmt.Sprintf("#%d", e.ID)), ui.CategoryIcon(e.Category), e.ItemCode, e.BonusValue, e.BonusType, uses, state)
}

func newEquipmentListCmd() *cobra.Command {
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "List your equipment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				items, err := app.Await(ctx, a.ListEquipment(ctx, activeOnly))
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintln(out, ui.Muted.Render("No equipment."))
					return nil
				}
				for i := range items {
					printEquipment(out, &items[i])
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "Only active items")
	return cmd
}

type equipmentToggle func(a *app.App, ctx context.Context, id int64) *worker.Future[*storage.Equipment]

func newEquipmentToggleCmd(use, short string, fn equipmentToggle) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <equipment-id>",
		Short: short,
		Args:  exactID("equipment id"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				e, err := app.Await(ctx, fn(a, ctx, argID(args)))
				if err != nil {
					return err
				}
				printEquipment(out, e)
				return nil
			})
		},
	}
}

func newShopUpgradeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade <equipment-id>",
		Short: "Sharpen a weapon",
		Args:  exactID("equipment id"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				res, err := app.Await(ctx, a.Upgrade(ctx, argID(args)))
				if err != nil {
					return err
				}
				printEquipment(out, res.Equipment)
				fmt.Fprintf(out, "Paid %s, %s left\n", ui.Coins(res.Price), ui.Coins(res.Coins))
				return nil
			})
		},
	}
}
