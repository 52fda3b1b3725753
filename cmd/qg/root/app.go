package root

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"questguild/internal/app"
	"questguild/internal/notify"
)

func openApp(ctx context.Context, notifier notify.Notifier) (*app.App, func(), error) {
	a, err := app.New(ctx, app.Options{
		Config:   cfg,
		Notifier: notifier,
		Logger:   log.New(os.Stderr, "qg ", log.LstdFlags),
	})
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := a.Close(); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
	return a, cleanup, nil
}

// withApp opens the app for a single command.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App, out io.Writer) error) error {
	ctx := cmd.Context()
	a, cleanup, err := openApp(ctx, nil)
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(ctx, a, cmd.OutOrStdout())
}

func exactID(name string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("%s is required", name)
		}
		if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
			return fmt.Errorf("%s must be an integer", name)
		}
		return nil
	}
}

func argID(args []string) int64 {
	id, _ := strconv.ParseInt(args[0], 10, 64)
	return id
}

var whenLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseWhen reads a schedule in the configured timezone. Empty means zero.
func parseWhen(input string) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return time.Time{}, nil
	}
	if input == "now" {
		return time.Now(), nil
	}
	loc, err := cfg.Location()
	if err != nil {
		return time.Time{}, err
	}
	if t, err := time.Parse(time.RFC3339, input); err == nil {
		return t, nil
	}
	for _, layout := range whenLayouts {
		if t, err := time.ParseInLocation(layout, input, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("time must look like 2006-01-02 or 2006-01-02 15:04")
}
