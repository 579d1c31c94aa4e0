// Package api serves the engine over HTTP: JSON projections for the UI
// runtime, mutation intents, a contract relay for remote clients, health
// and Prometheus metrics.
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stellarsave/stellarsave/internal/clock"
	"github.com/stellarsave/stellarsave/internal/engine"
	"github.com/stellarsave/stellarsave/internal/gateway"
	"github.com/stellarsave/stellarsave/internal/metrics"
)

// Server routes HTTP requests to the engine.
type Server struct {
	engine   *engine.Engine
	relay    gateway.Gateway
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	clock    clock.Clock

	corsOrigins []string
	limiter     *visitorLimiter
}

// Option configures a Server.
type Option func(*Server)

// WithRelay exposes gw on POST /invoke so RPC gateways can reach it.
func WithRelay(gw gateway.Gateway) Option {
	return func(s *Server) { s.relay = gw }
}

// WithMetrics records request metrics on m and serves g on /metrics.
func WithMetrics(m *metrics.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// WithLogger sets the access and error logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithCORS sets the allowed origins. The default allows any origin.
func WithCORS(origins ...string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithRateLimit limits each client address to rps requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps > 0 {
			s.limiter = newVisitorLimiter(rps, burst)
		}
	}
}

// WithClock sets the clock used for visitor expiry.
func WithClock(c clock.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// New creates a server for e.
func New(e *engine.Engine, opts ...Option) *Server {
	s := &Server{
		engine:      e,
		logger:      slog.Default(),
		clock:       clock.Real{},
		corsOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router with its middleware chain.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.monitor)
	if s.limiter != nil {
		r.Use(s.rateLimit)
	}

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	if s.relay != nil {
		r.HandleFunc("/invoke", s.invoke).Methods(http.MethodPost)
	}

	v1 := r.PathPrefix("/api/v1").Subrouter()
	s.savingsRoutes(v1)
	s.yieldRoutes(v1)

	cors := handlers.CORS(
		handlers.AllowedOrigins(s.corsOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.ExposedHeaders([]string{"Content-Length"}),
	)
	logged := handlers.CustomLoggingHandler(io.Discard, r, s.accessLog)
	return handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{s.logger}))(cors(logged))
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]any{
		"status":       "healthy",
		"service":      "stellarsave",
		"last_refresh": s.engine.Store().LastRefresh(),
		"cache":        s.engine.Cache().Len(),
		"mutations":    s.engine.Cache().Lanes().Active(),
	})
}

// Serve runs the HTTP server on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	if s.limiter != nil {
		go s.limiter.cleanup(ctx, s.clock)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("api stopped")
	return nil
}

type recoveryLogger struct {
	logger *slog.Logger
}

func (l recoveryLogger) Println(v ...any) {
	l.logger.Error("handler panic", "panic", v)
}
