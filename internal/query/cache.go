package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/stellarsave/stellarsave/internal/clock"
	"github.com/stellarsave/stellarsave/internal/metrics"
)

// Options configures one query.
type Options struct {
	// StaleTime is how long a fetched value is served without a refresh.
	// Zero means every read triggers a background refresh.
	StaleTime time.Duration `yaml:"stale_time" json:"stale_time"`

	// RetentionTime is how long an unobserved entry survives Collect.
	RetentionTime time.Duration `yaml:"retention_time" json:"retention_time"`

	// RefetchInterval refreshes the entry periodically while observed.
	RefetchInterval time.Duration `yaml:"refetch_interval" json:"refetch_interval"`

	// RefetchOnFocus refreshes stale observed entries on Focus.
	RefetchOnFocus bool `yaml:"refetch_on_focus" json:"refetch_on_focus"`
}

// DefaultOptions applies to entries created by SetData.
var DefaultOptions = Options{
	StaleTime:     30 * time.Second,
	RetentionTime: 5 * time.Minute,
}

// Fetcher loads the value of one key from the gateway.
type Fetcher func(ctx context.Context) (any, error)

// Loader is a Fetcher with deferred side effects. commit runs only when the
// result is accepted for the entry's current generation.
type Loader func(ctx context.Context) (v any, commit Commit, err error)

// Commit applies the side effects of an accepted fetch. It runs while no
// mutation can start, so g.Allows stays true until it returns.
type Commit func(g Guard)

func (f Fetcher) loader() Loader {
	if f == nil {
		return nil
	}
	return func(ctx context.Context) (any, Commit, error) {
		v, err := f(ctx)
		return v, nil, err
	}
}

// Guard reports whether an accepted fetch may still write under a key.
type Guard struct {
	c   *Cache
	gen int64
}

// Allows is false while a mutation holds key, and for fetches that began
// before such a hold was released.
func (g Guard) Allows(key Key) bool {
	g.c.mu.Lock()
	defer g.c.mu.Unlock()
	return !g.c.blockedLocked(key, g.gen)
}

// errSuperseded marks a fetch whose result was discarded because the entry
// changed generation while it was in flight.
var errSuperseded = errors.New("query: fetch superseded")

type entry struct {
	key   Key
	opts  Options
	fetch Loader

	data      any
	hasData   bool
	err       error
	updatedAt time.Time
	usedAt    time.Time
	stale     bool
	observers int

	gen      int64
	fetchCtx context.Context
	cancel   context.CancelFunc
}

func (e *entry) isStale(now time.Time) bool {
	return e.stale || now.Sub(e.updatedAt) >= e.opts.StaleTime
}

func (e *entry) fetching() bool {
	return e.cancel != nil
}

// State describes an entry for inspection.
type State struct {
	HasData   bool
	Stale     bool
	Fetching  bool
	Observers int
	UpdatedAt time.Time
	Err       error
}

// Cache holds query results keyed by Key.
//
// Thread-safety: all methods are safe for concurrent use.
type Cache struct {
	clock    clock.Clock
	seq      *clock.Sequence
	metrics  *metrics.Metrics
	logger   *slog.Logger
	defaults Options
	lanes    *Lanes
	group    singleflight.Group

	// commitMu orders fetch commits against Hold and Cancel.
	commitMu sync.Mutex

	mu       sync.Mutex
	entries  map[string]*entry
	holds    map[*hold]struct{}
	released map[string]releasedHold
	pending  int
	idle     chan struct{}
}

type hold struct {
	prefixes []Key
}

type releasedHold struct {
	prefix Key
	at     int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithMetrics records cache activity on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithLogger sets the logger used for fetch failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithDefaults overrides DefaultOptions for entries created by SetData.
func WithDefaults(o Options) Option {
	return func(c *Cache) { c.defaults = o }
}

// New creates an empty cache reading time from clk.
func New(clk clock.Clock, opts ...Option) *Cache {
	c := &Cache{
		clock:    clk,
		seq:      clock.NewSequence(),
		metrics:  metrics.New(nil),
		logger:   slog.Default(),
		defaults: DefaultOptions,
		lanes:    NewLanes(),
		entries:  make(map[string]*entry),
		holds:    make(map[*hold]struct{}),
		released: make(map[string]releasedHold),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lanes returns the per-entity mutation lanes.
func (c *Cache) Lanes() *Lanes {
	return c.lanes
}

// Fetch reads key through the cache, loading it with fn when absent.
func Fetch[T any](ctx context.Context, c *Cache, key Key, opts Options, fn func(context.Context) (T, error)) (T, error) {
	return Load(ctx, c, key, opts, func(ctx context.Context) (T, Commit, error) {
		v, err := fn(ctx)
		return v, nil, err
	})
}

// Load is Fetch for loaders with side effects. commit is skipped when the
// result is discarded.
func Load[T any](ctx context.Context, c *Cache, key Key, opts Options, fn func(context.Context) (T, Commit, error)) (T, error) {
	var zero T
	v, err := c.fetch(ctx, key, opts, func(ctx context.Context) (any, Commit, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("query: %s holds %T, want %T", key, v, zero)
	}
	return t, nil
}

func (c *Cache) fetch(ctx context.Context, key Key, opts Options, fn Loader) (any, error) {
	for {
		now := c.clock.Now()
		c.mu.Lock()
		e := c.registerLocked(key, opts, fn)
		e.usedAt = now
		if e.hasData {
			data, result := e.data, "hit"
			if e.isStale(now) {
				c.refreshLocked(e)
				result = "stale"
			}
			c.mu.Unlock()
			c.metrics.CacheRequests.WithLabelValues(key.Kind(), result).Inc()
			return data, nil
		}
		ch := c.startLocked(e)
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			if errors.Is(res.Err, errSuperseded) {
				// Cancelled by a mutation or replaced by SetData. Read again.
				continue
			}
			c.metrics.CacheRequests.WithLabelValues(key.Kind(), "miss").Inc()
			return res.Val, res.Err
		}
	}
}

func (c *Cache) registerLocked(key Key, opts Options, fn Loader) *entry {
	e, ok := c.entries[key.id()]
	if !ok {
		e = &entry{key: NewKey(key...)}
		c.entries[key.id()] = e
		c.metrics.CacheEntries.Set(float64(len(c.entries)))
	}
	e.opts = opts
	if fn != nil {
		e.fetch = fn
	}
	return e
}

func (c *Cache) getOrCreateLocked(key Key) *entry {
	if e, ok := c.entries[key.id()]; ok {
		return e
	}
	return c.registerLocked(key, c.defaults, nil)
}

// startLocked joins the entry's in-flight fetch or starts a new generation.
func (c *Cache) startLocked(e *entry) <-chan singleflight.Result {
	if !e.fetching() {
		e.gen = c.seq.Next()
		e.fetchCtx, e.cancel = context.WithCancel(context.Background())
	}
	key, gen, ctx, fn := e.key, e.gen, e.fetchCtx, e.fetch
	return c.group.DoChan(flightKey(key, gen), func() (any, error) {
		return c.load(ctx, key, gen, fn)
	})
}

func flightKey(key Key, gen int64) string {
	return key.id() + "@" + strconv.FormatInt(gen, 10)
}

func (c *Cache) load(ctx context.Context, key Key, gen int64, fn Loader) (any, error) {
	var (
		v      any
		commit Commit
		err    error
	)
	if fn == nil {
		err = fmt.Errorf("query: no fetcher registered for %s", key)
	} else {
		v, commit, err = fn(ctx)
	}

	c.commitMu.Lock()
	defer c.commitMu.Unlock()

	accepted, err := c.acceptLoad(key, gen, v, err)
	if err != nil {
		return nil, err
	}
	if accepted && commit != nil {
		commit(Guard{c: c, gen: gen})
	}
	return v, nil
}

// acceptLoad stores a finished fetch in its entry. A fetch overlapping a
// hold on key is returned to its caller but not stored.
func (c *Cache) acceptLoad(key Key, gen int64, v any, err error) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.id()]
	if !ok || e.gen != gen {
		c.metrics.CacheFetches.WithLabelValues(key.Kind(), "superseded").Inc()
		return false, errSuperseded
	}
	e.cancel()
	e.cancel, e.fetchCtx = nil, nil

	if err != nil {
		e.err = err
		c.metrics.CacheFetches.WithLabelValues(key.Kind(), "error").Inc()
		c.logger.Warn("query fetch failed", "key", key.String(), "error", err)
		return false, err
	}
	if c.blockedLocked(key, gen) {
		c.metrics.CacheFetches.WithLabelValues(key.Kind(), "held").Inc()
		return false, nil
	}
	e.data, e.hasData, e.err = v, true, nil
	e.updatedAt = c.clock.Now()
	e.stale = false
	c.metrics.CacheFetches.WithLabelValues(key.Kind(), "ok").Inc()
	return true, nil
}

func (c *Cache) blockedLocked(key Key, gen int64) bool {
	for h := range c.holds {
		if matchesAny(key, h.prefixes) {
			return true
		}
	}
	for _, r := range c.released {
		if r.at > gen && key.HasPrefix(r.prefix) {
			return true
		}
	}
	return false
}

// refreshLocked starts or joins a background fetch for e.
func (c *Cache) refreshLocked(e *entry) {
	if e.fetch == nil {
		return
	}
	ch := c.startLocked(e)
	c.beginLocked()
	go func() {
		<-ch
		c.mu.Lock()
		c.endLocked()
		c.mu.Unlock()
	}()
}

func (c *Cache) beginLocked() {
	if c.pending == 0 {
		c.idle = make(chan struct{})
	}
	c.pending++
}

func (c *Cache) endLocked() {
	c.pending--
	if c.pending == 0 {
		close(c.idle)
	}
}

// cancelLocked aborts any in-flight fetch and moves e to a new generation.
func (c *Cache) cancelLocked(e *entry) {
	if e.cancel != nil {
		e.cancel()
		e.cancel, e.fetchCtx = nil, nil
	}
	e.gen = c.seq.Next()
}

func (c *Cache) matchLocked(prefixes []Key) []*entry {
	var out []*entry
	for _, e := range c.entries {
		if matchesAny(e.key, prefixes) {
			out = append(out, e)
		}
	}
	return out
}

// Invalidate marks every entry under prefixes stale. Observed entries and
// entries with a fetch in flight are refetched in the background; the rest
// refetch on their next read.
func (c *Cache) Invalidate(prefixes ...Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	matched := c.matchLocked(prefixes)
	for _, e := range matched {
		e.stale = true
		c.metrics.CacheInvalidations.WithLabelValues(e.key.Kind()).Inc()
		if e.fetch != nil && (e.observers > 0 || e.fetching()) {
			c.cancelLocked(e)
			c.refreshLocked(e)
		}
	}
	return len(matched)
}

// Refetch reloads every entry under prefixes that has a fetcher and waits
// for the results.
func (c *Cache) Refetch(ctx context.Context, prefixes ...Key) error {
	c.mu.Lock()
	var chans []<-chan singleflight.Result
	for _, e := range c.matchLocked(prefixes) {
		if e.fetch == nil {
			continue
		}
		e.stale = true
		c.cancelLocked(e)
		chans = append(chans, c.startLocked(e))
	}
	c.mu.Unlock()

	var errs []error
	for _, ch := range chans {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-ch:
			if res.Err != nil && !errors.Is(res.Err, errSuperseded) {
				errs = append(errs, res.Err)
			}
		}
	}
	return errors.Join(errs...)
}

// Cancel aborts in-flight fetches under prefixes. Cached data is kept.
// A commit already running finishes before Cancel returns.
func (c *Cache) Cancel(prefixes ...Key) int {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelAllLocked(prefixes)
}

func (c *Cache) cancelAllLocked(prefixes []Key) int {
	n := 0
	for _, e := range c.matchLocked(prefixes) {
		if e.fetching() {
			n++
		}
		c.cancelLocked(e)
	}
	return n
}

// Hold cancels in-flight fetches under prefixes and keeps every fetch that
// overlaps the hold from storing or committing its result. Such fetches
// still return their value to the caller. release may be called more than
// once.
func (c *Cache) Hold(prefixes ...Key) (release func()) {
	h := &hold{prefixes: slices.Clone(prefixes)}
	c.commitMu.Lock()
	c.mu.Lock()
	c.cancelAllLocked(h.prefixes)
	c.holds[h] = struct{}{}
	c.mu.Unlock()
	c.commitMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.holds, h)
			at := c.seq.Next()
			for _, p := range h.prefixes {
				c.released[p.id()] = releasedHold{prefix: p, at: at}
			}
		})
	}
}

// Held reports whether a mutation currently holds key.
func (c *Cache) Held(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for h := range c.holds {
		if matchesAny(key, h.prefixes) {
			return true
		}
	}
	return false
}

// SetData installs v as the fresh value of key.
func (c *Cache) SetData(key Key, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.getOrCreateLocked(key)
	c.cancelLocked(e)
	e.data, e.hasData, e.err = v, true, nil
	e.updatedAt = c.clock.Now()
	e.usedAt = e.updatedAt
	e.stale = false
}

// GetData returns the cached value of key, fresh or not.
func (c *Cache) GetData(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.id()]
	if !ok || !e.hasData {
		return nil, false
	}
	return e.data, true
}

// Get returns the cached value of key as T.
func Get[T any](c *Cache, key Key) (T, bool) {
	var zero T
	v, ok := c.GetData(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// Update replaces the cached value of key with fn(old). It reports false
// when key holds no value of type T.
func Update[T any](c *Cache, key Key, fn func(T) T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.id()]
	if !ok || !e.hasData {
		return false
	}
	old, ok := e.data.(T)
	if !ok {
		return false
	}
	c.cancelLocked(e)
	e.data = fn(old)
	e.updatedAt = c.clock.Now()
	return true
}

// State reports the status of key.
func (c *Cache) State(key Key) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.id()]
	if !ok {
		return State{}, false
	}
	return State{
		HasData:   e.hasData,
		Stale:     e.isStale(c.clock.Now()),
		Fetching:  e.fetching(),
		Observers: e.observers,
		UpdatedAt: e.updatedAt,
		Err:       e.err,
	}, true
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Remove drops every entry under prefixes.
func (c *Cache) Remove(prefixes ...Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	matched := c.matchLocked(prefixes)
	for _, e := range matched {
		c.cancelLocked(e)
		delete(c.entries, e.key.id())
	}
	c.metrics.CacheEntries.Set(float64(len(c.entries)))
	return len(matched)
}

// Snapshot captures the entries under a set of prefixes.
type Snapshot struct {
	prefixes []Key
	saved    map[string]savedEntry
}

type savedEntry struct {
	key       Key
	data      any
	hasData   bool
	updatedAt time.Time
	stale     bool
}

// Snapshot records every entry under prefixes so Restore can put them back.
func (c *Cache) Snapshot(prefixes ...Key) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{prefixes: prefixes, saved: make(map[string]savedEntry)}
	for _, e := range c.matchLocked(prefixes) {
		s.saved[e.key.id()] = savedEntry{
			key:       e.key,
			data:      e.data,
			hasData:   e.hasData,
			updatedAt: e.updatedAt,
			stale:     e.stale,
		}
	}
	return s
}

// Restore puts back the entries captured by s. Entries created under the
// same prefixes after the snapshot lose their data.
func (c *Cache) Restore(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.matchLocked(s.prefixes) {
		c.cancelLocked(e)
		saved, ok := s.saved[e.key.id()]
		if !ok {
			e.data, e.hasData = nil, false
			continue
		}
		e.data, e.hasData = saved.data, saved.hasData
		e.updatedAt, e.stale = saved.updatedAt, saved.stale
	}
	for id, saved := range s.saved {
		if _, ok := c.entries[id]; ok {
			continue
		}
		e := c.getOrCreateLocked(saved.key)
		e.data, e.hasData = saved.data, saved.hasData
		e.updatedAt, e.stale = saved.updatedAt, saved.stale
	}
}

// Observe marks key as actively used. The entry is loaded if absent or
// stale, and refetched every opts.RefetchInterval until stop is called.
func (c *Cache) Observe(key Key, opts Options, fn Fetcher) (stop func()) {
	return c.ObserveLoader(key, opts, fn.loader())
}

// ObserveLoader is Observe for loaders with side effects.
func (c *Cache) ObserveLoader(key Key, opts Options, fn Loader) (stop func()) {
	c.mu.Lock()
	e := c.registerLocked(key, opts, fn)
	e.observers++
	e.usedAt = c.clock.Now()
	if !e.hasData || e.isStale(e.usedAt) {
		c.refreshLocked(e)
	}
	c.mu.Unlock()

	done := make(chan struct{})
	if opts.RefetchInterval > 0 {
		ticker := c.clock.NewTicker(opts.RefetchInterval)
		go func() {
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C():
					c.mu.Lock()
					if e, ok := c.entries[key.id()]; ok {
						c.refreshLocked(e)
					}
					c.mu.Unlock()
				}
			}
		}()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			c.mu.Lock()
			defer c.mu.Unlock()
			if e, ok := c.entries[key.id()]; ok {
				e.observers--
				e.usedAt = c.clock.Now()
			}
		})
	}
}

// Focus refetches stale observed entries that opted into RefetchOnFocus.
func (c *Cache) Focus() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	n := 0
	for _, e := range c.entries {
		if e.observers > 0 && e.opts.RefetchOnFocus && e.isStale(now) {
			c.refreshLocked(e)
			n++
		}
	}
	return n
}

// Collect drops unobserved, idle entries older than their retention time.
func (c *Cache) Collect() int {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	n := 0
	for id, e := range c.entries {
		if e.observers > 0 || e.fetching() {
			continue
		}
		if now.Sub(e.usedAt) >= e.opts.RetentionTime {
			delete(c.entries, id)
			n++
		}
	}
	c.metrics.CacheEntries.Set(float64(len(c.entries)))
	c.pruneReleasedLocked()
	if n > 0 {
		c.logger.Debug("query cache collected", "entries", n)
	}
	return n
}

// pruneReleasedLocked forgets released holds older than every fetch still
// in flight.
func (c *Cache) pruneReleasedLocked() {
	oldest := int64(-1)
	for _, e := range c.entries {
		if e.fetching() && (oldest < 0 || e.gen < oldest) {
			oldest = e.gen
		}
	}
	for id, r := range c.released {
		if oldest < 0 || r.at <= oldest {
			delete(c.released, id)
		}
	}
}

// Run collects expired entries every interval until ctx is done.
func (c *Cache) Run(ctx context.Context, interval time.Duration) error {
	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			c.Collect()
		}
	}
}

// WaitIdle blocks until no background fetch is running.
func (c *Cache) WaitIdle(ctx context.Context) error {
	c.mu.Lock()
	if c.pending == 0 {
		c.mu.Unlock()
		return nil
	}
	idle := c.idle
	c.mu.Unlock()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-idle:
		return nil
	}
}
