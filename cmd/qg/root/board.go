package root

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"questguild/internal/app"
	"questguild/internal/tui"
)

func newBoardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Open the TUI dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				return tui.RunBoard(ctx, a, out)
			})
		},
	}
}
