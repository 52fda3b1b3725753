package root

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"questguild/internal/app"
	"questguild/internal/storage"
	"questguild/internal/ui"
)

func newGuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guild",
		Short: "Show or manage your guild",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				g, err := app.Await(ctx, a.CurrentGuild(ctx))
				if err != nil {
					return err
				}
				printGuild(out, g)
				return nil
			})
		},
	}
	cmd.AddCommand(
		newGuildCreateCmd(),
		newGuildJoinCmd(),
		newGuildInviteCmd(),
		newGuildLeaveCmd(),
		newGuildDisbandCmd(),
		newGuildMembersCmd(),
	)
	return cmd
}

func printGuild(out io.Writer, g *storage.Guild) {
	fmt.Fprintln(out, ui.Heading(ui.IconGuild, fmt.Sprintf("%s (#%d)", g.Name, g.ID)))
	if g.MissionActive {
		fmt.Fprintln(out, ui.Warn.Render(ui.IconMission+" special mission in progress"))
	}
}

func newGuildCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Found a guild and lead it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				g, err := app.Await(ctx, a.CreateGuild(ctx, args[0]))
				if err != nil {
					return err
				}
				printGuild(out, g)
				return nil
			})
		},
	}
}

func newGuildJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <guild-id>",
		Short: "Join a guild",
		Args:  exactID("guild id"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				g, err := app.Await(ctx, a.JoinGuild(ctx, argID(args)))
				if err != nil {
					return err
				}
				printGuild(out, g)
				return nil
			})
		},
	}
}

func newGuildInviteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invite <character-id>",
		Short: "Invite a character to your guild",
		Args:  exactID("character id"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				if _, err := app.Await(ctx, a.InviteToGuild(ctx, argID(args))); err != nil {
					return err
				}
				fmt.Fprintln(out, "Invitation sent.")
				return nil
			})
		},
	}
}

func newGuildLeaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leave",
		Short: "Leave your guild",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				if _, err := app.Await(ctx, a.LeaveGuild(ctx)); err != nil {
					return err
				}
				fmt.Fprintln(out, "You left the guild.")
				return nil
			})
		},
	}
}

func newGuildDisbandCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disband",
		Short: "Disband the guild you lead",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				if _, err := app.Await(ctx, a.DisbandGuild(ctx)); err != nil {
					return err
				}
				fmt.Fprintln(out, "Guild disbanded.")
				return nil
			})
		},
	}
}

func newGuildMembersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "members",
		Short: "List guild members",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				members, err := app.Await(ctx, a.GuildMembers(ctx))
				if err != nil {
					return err
				}
				for _, m := range members {
					role := ""
					if m.Leader {
						role = ui.Gold.Render(" leader")
					}
					fmt.Fprintf(out, "%s %s level %d %s%s\n", ui.Key.Render(fmt.Sprintf("#%d", m.CharacterID)), m.Name, m.Level, ui.Muted.Render(m.Title), role)
				}
				return nil
			})
		},
	}
}
