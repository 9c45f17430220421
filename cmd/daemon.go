package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	vsync "github.com/ghyeongl/vaultsync/sync"
)

const shutdownTimeout = 5 * time.Second

func init() {
	rootCmd.AddCommand(newDaemonCmd())
}

func newDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run queued syncs, watch the vault and serve the control API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			cmd.SilenceUsage = true

			d := vsync.NewDaemon(a.syncer, vsync.DaemonOptions{
				LoadSync:  cfg.LoadSync,
				Watch:     cfg.Watch,
				WatchRoot: a.vault.BasePath(),
				Ignore:    a.ignore,
			})

			var srv *http.Server
			if cfg.Listen != "" {
				h := vsync.NewHandlers(d, a.store, a.bus, a.vault.BasePath(), cfg.ControlToken)
				srv = &http.Server{Addr: cfg.Listen, Handler: h.Router(), ReadHeaderTimeout: 10 * time.Second}
			}

			defer slog.Info("Bye!")
			return serveDaemon(cmd.Context(), d, srv)
		},
	}
}

// serveDaemon runs the worker loop and, when srv is set, the HTTP API until
// ctx is cancelled or one of them fails.
func serveDaemon(ctx context.Context, d *vsync.Daemon, srv *http.Server) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return d.Run(ctx) })

	if srv != nil {
		g.Go(func() error {
			slog.Info("control API listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
