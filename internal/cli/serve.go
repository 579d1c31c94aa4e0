package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/stellarsave/stellarsave/internal/api"
)

// NewServeCommand creates the serve command.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	var addr string
	var watch []string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the JSON API over the configured gateway. The server also exposes
/metrics, /health and the /invoke contract relay, so another stellarsave
can use it as its rpc gateway.

Users named with --watch get their dashboards refreshed in the background.

Example:
  stellarsave serve --addr :8080 --watch GALICE`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				if addr == "" {
					addr = app.Config.API.Addr
				}
				serverOpts := []api.Option{
					api.WithRelay(app.Relay),
					api.WithMetrics(app.Metrics, app.Registry),
					api.WithLogger(app.Logger),
					api.WithCORS(app.Config.API.CORSOrigins...),
					api.WithClock(opts.clock),
				}
				if rl := app.Config.API.RateLimit; rl.Enabled() {
					serverOpts = append(serverOpts, api.WithRateLimit(rl.RPS, rl.Burst))
				}
				srv := api.New(app.Engine, serverOpts...)

				g, gctx := errgroup.WithContext(ctx)
				g.Go(func() error { return srv.Serve(gctx, addr) })
				g.Go(func() error { return app.Engine.Cache().Run(gctx, app.Config.Cache.CollectInterval) })
				if app.Config.Refresh.Enabled {
					for _, user := range watch {
						stop := app.Engine.Watch(user)
						defer stop()
						g.Go(func() error { return app.Engine.AutoRefresh(gctx, user) })
					}
				}

				err := g.Wait()
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config api.addr)")
	cmd.Flags().StringSliceVar(&watch, "watch", nil, "user whose dashboard is kept fresh (repeatable)")
	return cmd
}
