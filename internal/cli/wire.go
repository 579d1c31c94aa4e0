package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/stellarsave/stellarsave/internal/config"
	"github.com/stellarsave/stellarsave/internal/engine"
	"github.com/stellarsave/stellarsave/internal/gateway"
	"github.com/stellarsave/stellarsave/internal/ledger"
	"github.com/stellarsave/stellarsave/internal/metrics"
	"github.com/stellarsave/stellarsave/internal/query"
	"github.com/stellarsave/stellarsave/internal/store"
)

// drainTimeout bounds the wait for background refetches before exit.
const drainTimeout = 5 * time.Second

// App is the composed client: one gateway stack chosen from config, the
// engine over it, and the metrics registry every layer records on.
type App struct {
	Config   config.Config
	Engine   *engine.Engine
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	// Relay is the decorated gateway, served on /invoke by the API.
	Relay gateway.Gateway

	ledger *ledger.Ledger
}

// Close releases the fixture ledger, if any.
func (a *App) Close() error {
	if a.ledger != nil {
		return a.ledger.Close()
	}
	return nil
}

// newLogger writes to w at Warn, or Debug with --verbose. JSON output gets
// JSON logs so a pipeline can parse both streams.
func (o *RootOptions) newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if o.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// loadConfig reads the .env file, the config file and the environment.
func (o *RootOptions) loadConfig() (config.Config, error) {
	if o.EnvFile != "" {
		if err := config.LoadDotEnv(o.EnvFile); err != nil {
			return config.Config{}, WrapExitError(ExitCommandError, "failed to load env file", err)
		}
	}
	cfg, err := config.Load(o.Config)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// open composes the App for cmd. Callers must Close it.
func (o *RootOptions) open(cmd *cobra.Command) (*App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := o.newLogger(cmd.ErrOrStderr())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	app := &App{Config: cfg, Logger: logger, Registry: reg, Metrics: m}

	var base gateway.Gateway
	switch cfg.Gateway.Mode {
	case config.ModeFixture:
		l, err := ledger.Open(cfg.Ledger.Path,
			ledger.WithClock(o.clock),
			ledger.WithAdmin(cfg.Ledger.Admin),
			ledger.WithLogger(logger))
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open ledger", err)
		}
		app.ledger = l
		base = ledger.NewGateway(l, cfg.Gateway.Contracts)
		logger.Debug("using fixture ledger", "path", cfg.Ledger.Path)
	case config.ModeRPC:
		rpcOpts := []gateway.RPCOption{gateway.WithHTTPClient(&http.Client{Timeout: cfg.Gateway.Timeout})}
		for k, v := range cfg.Gateway.Headers {
			rpcOpts = append(rpcOpts, gateway.WithHeader(k, v))
		}
		base = gateway.NewRPC(cfg.Gateway.RPCURL, rpcOpts...)
		logger.Debug("using rpc relay", "url", cfg.Gateway.RPCURL)
	default:
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown gateway mode %q", cfg.Gateway.Mode))
	}

	gw := base
	if cfg.Gateway.RateLimit.Enabled() {
		gw = gateway.NewLimited(gw, cfg.Gateway.RateLimit.RPS, cfg.Gateway.RateLimit.Burst)
	}
	gw = gateway.NewInstrumented(gw, m, logger)
	app.Relay = gw

	contracts := gateway.NewContracts(gw, cfg.Gateway.Contracts,
		gateway.WithPreflight(cfg.Gateway.Preflight),
		gateway.WithFanout(cfg.Gateway.Fanout))
	cache := query.New(o.clock, query.WithMetrics(m), query.WithLogger(logger))
	st := store.New(o.clock, store.WithNotificationCap(cfg.Notifications.Cap))
	app.Engine = engine.New(st, cache, contracts, o.clock,
		engine.WithTiming(cfg.Timing()),
		engine.WithLogger(logger))
	return app, nil
}

// withApp opens the App, runs fn and closes it once background refetches
// have drained.
func (o *RootOptions) withApp(cmd *cobra.Command, fn func(context.Context, *App) error) error {
	app, err := o.open(cmd)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), drainTimeout)
		defer cancel()
		if err := app.Engine.Cache().WaitIdle(ctx); err != nil {
			app.Logger.Warn("background refetches did not drain", "error", err)
		}
		if err := app.Close(); err != nil {
			app.Logger.Warn("closing ledger failed", "error", err)
		}
	}()
	return fn(cmd.Context(), app)
}
