package root

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"questguild/internal/app"
	"questguild/internal/notify"
	"questguild/internal/server"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and event feed, sweeping on a timer",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = cfg.ListenAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := log.New(os.Stderr, "qg serve ", log.LstdFlags)
			hub := notify.NewHub(logger)
			a, cleanup, err := openApp(ctx, hub)
			if err != nil {
				return err
			}
			defer cleanup()

			httpSrv := &http.Server{
				Addr:              addr,
				Handler:           server.New(a, hub, cfg.JWTSecret, logger),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return hub.Run(ctx) })
			g.Go(func() error { return sweepLoop(ctx, a, cfg.SweepInterval, logger) })
			g.Go(func() error {
				logger.Printf("listening on %s", addr)
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("listen: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return httpSrv.Shutdown(shutdownCtx)
			})

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from QG_LISTEN_ADDR)")
	return cmd
}

// sweepLoop runs the sweeper every interval until ctx ends.
func sweepLoop(ctx context.Context, a *app.App, interval time.Duration, logger *log.Logger) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rep, err := app.Await(ctx, a.Sweep(ctx))
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Printf("sweep: %v", err)
				continue
			}
			if rep.Overdue > 0 || rep.MissionsExpired > 0 || rep.MissionsComplete > 0 {
				logger.Printf("sweep: %s", sweepSummary(rep))
			}
		}
	}
}
