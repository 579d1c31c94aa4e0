package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/stellarsave/stellarsave/internal/clock"
	"github.com/stellarsave/stellarsave/internal/gateway"
	"github.com/stellarsave/stellarsave/internal/query"
	"github.com/stellarsave/stellarsave/internal/store"
)

// Timing holds the cache options of each query family and the dashboard
// refresh period.
type Timing struct {
	Challenge query.Options `yaml:"challenge"`
	Progress  query.Options `yaml:"progress"`
	List      query.Options `yaml:"list"`
	Stats     query.Options `yaml:"stats"`
	Balance   query.Options `yaml:"balance"`
	Yield     query.Options `yaml:"yield"`

	// AutoRefresh is the dashboard refresh period.
	AutoRefresh time.Duration `yaml:"auto_refresh"`
}

// DefaultTiming returns the stock query timings.
func DefaultTiming() Timing {
	const retention = 5 * time.Minute
	return Timing{
		Challenge: query.Options{StaleTime: 30 * time.Second, RetentionTime: retention, RefetchOnFocus: true},
		Progress:  query.Options{StaleTime: 15 * time.Second, RetentionTime: retention, RefetchInterval: time.Minute},
		List:      query.Options{StaleTime: 30 * time.Second, RetentionTime: retention, RefetchInterval: time.Minute, RefetchOnFocus: true},
		Stats:     query.Options{StaleTime: time.Minute, RetentionTime: retention},
		Balance:   query.Options{StaleTime: 30 * time.Second, RetentionTime: retention, RefetchOnFocus: true},
		Yield:     query.Options{StaleTime: time.Minute, RetentionTime: retention},
		AutoRefresh: 30 * time.Second,
	}
}

// Modal names tracked in the store.
const (
	ModalCreateChallenge = "create-challenge"
	ModalContribute      = "contribute"
)

// Engine is the client's single orchestration point.
//
// Thread-safety: all methods are safe for concurrent use.
type Engine struct {
	store     *store.Store
	cache     *query.Cache
	contracts *gateway.Contracts
	clock     clock.Clock
	ids       IDGenerator
	logger    *slog.Logger
	timing    Timing
}

// Option configures an Engine.
type Option func(*Engine)

// WithTiming overrides DefaultTiming.
func WithTiming(t Timing) Option {
	return func(e *Engine) { e.timing = t }
}

// WithIDGenerator overrides the UUIDv7 generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New wires an engine. The store and cache must share clk.
func New(s *store.Store, c *query.Cache, contracts *gateway.Contracts, clk clock.Clock, opts ...Option) *Engine {
	e := &Engine{
		store:     s,
		cache:     c,
		contracts: contracts,
		clock:     clk,
		ids:       UUIDv7Generator{},
		logger:    slog.Default(),
		timing:    DefaultTiming(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store exposes the state for read-only projections.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Cache exposes the query cache.
func (e *Engine) Cache() *query.Cache {
	return e.cache
}

// Contracts exposes the typed contract client.
func (e *Engine) Contracts() *gateway.Contracts {
	return e.contracts
}

// Timing returns the active query timings.
func (e *Engine) Timing() Timing {
	return e.timing
}

// Refresh reloads the user's dashboard: challenge lists, stats and balance.
func (e *Engine) Refresh(ctx context.Context, user string) error {
	if err := e.cache.Refetch(ctx, UserChallengesKey(user), StatsKey(user), BalanceKey(user)); err != nil {
		return err
	}
	if _, err := e.UserChallenges(ctx, user, store.Filter{}); err != nil {
		return err
	}
	_, err := e.Stats(ctx, user)
	return err
}

// AutoRefresh refreshes the user's dashboard every Timing.AutoRefresh until
// ctx is done. Failures are logged and retried on the next tick.
func (e *Engine) AutoRefresh(ctx context.Context, user string) error {
	e.logger.Info("auto refresh starting", "user", user, "interval", e.timing.AutoRefresh)
	ticker := e.clock.NewTicker(e.timing.AutoRefresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("auto refresh stopping", "user", user)
			return ctx.Err()
		case <-ticker.C():
			if err := e.Refresh(ctx, user); err != nil && ctx.Err() == nil {
				e.logger.Warn("auto refresh failed", "user", user, "error", err)
			}
		}
	}
}

// Focus refetches stale observed queries that opted into refetch on focus.
func (e *Engine) Focus() int {
	return e.cache.Focus()
}

// Watch observes the user's dashboard queries so they refresh on their
// intervals. Call stop when the dashboard closes.
func (e *Engine) Watch(user string) (stop func()) {
	all := store.Filter{}
	stops := []func(){
		e.cache.ObserveLoader(UserChallengesFilterKey(user, all), e.timing.List, func(ctx context.Context) (any, query.Commit, error) {
			return e.loadUserChallenges(ctx, user, all)
		}),
		e.cache.ObserveLoader(StatsKey(user), e.timing.Stats, func(ctx context.Context) (any, query.Commit, error) {
			return e.loadStats(ctx, user)
		}),
		e.cache.ObserveLoader(BalanceKey(user), e.timing.Balance, func(ctx context.Context) (any, query.Commit, error) {
			return e.loadBalance(ctx, user)
		}),
	}
	return func() {
		for _, s := range stops {
			s()
		}
	}
}

// WatchChallenge observes a challenge's detail and progress.
func (e *Engine) WatchChallenge(id string) (stop func()) {
	stopDetail := e.cache.ObserveLoader(ChallengeKey(id), e.timing.Challenge, func(ctx context.Context) (any, query.Commit, error) {
		return e.loadChallenge(ctx, id)
	})
	stopProgress := e.cache.ObserveLoader(ProgressKey(id), e.timing.Progress, func(ctx context.Context) (any, query.Commit, error) {
		return e.loadProgress(ctx, id)
	})
	return func() {
		stopDetail()
		stopProgress()
	}
}

// EvictChallenge drops a challenge from the store and every cached query
// about it.
func (e *Engine) EvictChallenge(id string) bool {
	e.cache.Remove(ChallengeKey(id), ProgressKey(id), ParticipantsKey(id), ChallengeContributionsKey(id))
	return e.store.RemoveChallenge(id)
}
