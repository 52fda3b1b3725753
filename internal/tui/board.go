// Package tui is the interactive board: character sheet, boss and the task
// list in one screen.
package tui

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"questguild/internal/app"
)

func RunBoard(ctx context.Context, a *app.App, out io.Writer) error {
	p := tea.NewProgram(newBoardModel(ctx, a), tea.WithOutput(out), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
