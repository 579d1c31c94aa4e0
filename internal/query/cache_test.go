package query

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellarsave/stellarsave/internal/metrics"
	"github.com/stellarsave/stellarsave/internal/testutil"
)

var epoch = time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)

var fresh = Options{StaleTime: time.Minute, RetentionTime: 5 * time.Minute}

func newCache(t *testing.T) (*Cache, *testutil.Clock, *metrics.Metrics) {
	t.Helper()
	clk := testutil.NewClock(epoch)
	m := metrics.New(prometheus.NewRegistry())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(clk, WithMetrics(m), WithLogger(logger)), clk, m
}

func waitIdle(t *testing.T, c *Cache) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.WaitIdle(ctx))
}

// counter returns a fetcher that yields "v<n>" on its n-th call.
func counter() (*atomic.Int32, func(context.Context) (string, error)) {
	var calls atomic.Int32
	return &calls, func(context.Context) (string, error) {
		n := calls.Add(1)
		return "v" + string(rune('0'+n)), nil
	}
}

func TestFetch_MissThenHit(t *testing.T) {
	c, _, m := newCache(t)
	calls, fn := counter()
	key := NewKey("challenge", "detail", "1")

	v, err := Fetch(context.Background(), c, key, fresh, fn)
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	v, err = Fetch(context.Background(), c, key, fresh, fn)
	require.NoError(t, err)
	assert.Equal(t, "v1", v)
	assert.Equal(t, int32(1), calls.Load())

	assert.Equal(t, float64(1), promtest.ToFloat64(m.CacheRequests.WithLabelValues("challenge", "miss")))
	assert.Equal(t, float64(1), promtest.ToFloat64(m.CacheRequests.WithLabelValues("challenge", "hit")))
}

func TestFetch_StaleServesCachedThenRefreshes(t *testing.T) {
	c, clk, _ := newCache(t)
	calls, fn := counter()
	key := NewKey("challenge", "detail", "1")

	_, err := Fetch(context.Background(), c, key, fresh, fn)
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)
	v, err := Fetch(context.Background(), c, key, fresh, fn)
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	waitIdle(t, c)
	assert.Equal(t, int32(2), calls.Load())
	got, ok := Get[string](c, key)
	require.True(t, ok)
	assert.Equal(t, "v2", got)
}

func TestFetch_SharesInFlightRequest(t *testing.T) {
	c, _, _ := newCache(t)
	key := NewKey("challenges", "list", "GALICE", "status=all")

	var calls atomic.Int32
	gate := make(chan struct{})
	fn := func(context.Context) ([]string, error) {
		calls.Add(1)
		<-gate
		return []string{"1", "2"}, nil
	}

	var wg sync.WaitGroup
	results := make([][]string, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := Fetch(context.Background(), c, key, fresh, fn)
			assert.NoError(t, err)
			results[i] = v
		}()
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, []string{"1", "2"}, r)
	}
}

func TestFetch_ErrorIsNotCached(t *testing.T) {
	c, _, m := newCache(t)
	key := NewKey("savecoin", "balance", "GALICE")
	boom := errors.New("boom")

	_, err := Fetch(context.Background(), c, key, fresh, func(context.Context) (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)

	st, ok := c.State(key)
	require.True(t, ok)
	assert.False(t, st.HasData)
	assert.ErrorIs(t, st.Err, boom)

	v, err := Fetch(context.Background(), c, key, fresh, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, float64(1), promtest.ToFloat64(m.CacheFetches.WithLabelValues("savecoin", "error")))
}

func TestFetch_TypeMismatch(t *testing.T) {
	c, _, _ := newCache(t)
	key := NewKey("stats", "GALICE")
	c.SetData(key, "not an int")

	_, err := Fetch(context.Background(), c, key, fresh, func(context.Context) (int, error) { return 1, nil })
	assert.Error(t, err)
}

func TestFetch_CallerContext(t *testing.T) {
	c, _, _ := newCache(t)
	gate := make(chan struct{})
	defer close(gate)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := Fetch(ctx, c, NewKey("slow"), fresh, func(context.Context) (int, error) {
		<-gate
		return 1, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInvalidate_UserListGroup(t *testing.T) {
	c, _, m := newCache(t)
	aliceAll := NewKey("challenges", "list", "GALICE", "status=all")
	aliceActive := NewKey("challenges", "list", "GALICE", "status=active;sort=deadline:asc")
	bobAll := NewKey("challenges", "list", "GBOB", "status=all")
	for _, k := range []Key{aliceAll, aliceActive, bobAll} {
		c.SetData(k, []string{})
	}

	n := c.Invalidate(NewKey("challenges", "list", "GALICE"))
	assert.Equal(t, 2, n)

	for _, k := range []Key{aliceAll, aliceActive} {
		st, _ := c.State(k)
		assert.True(t, st.Stale, k.String())
	}
	st, _ := c.State(bobAll)
	assert.False(t, st.Stale)
	assert.Equal(t, float64(2), promtest.ToFloat64(m.CacheInvalidations.WithLabelValues("challenges")))
}

func TestInvalidate_RefetchesObserved(t *testing.T) {
	c, _, _ := newCache(t)
	calls, fn := counter()
	key := NewKey("challenge", "detail", "1")

	stop := c.Observe(key, fresh, func(ctx context.Context) (any, error) { return fn(ctx) })
	defer stop()
	waitIdle(t, c)
	require.Equal(t, int32(1), calls.Load())

	c.Invalidate(NewKey("challenge"))
	waitIdle(t, c)
	assert.Equal(t, int32(2), calls.Load())
	st, _ := c.State(key)
	assert.False(t, st.Stale)
}

func TestCancel_DiscardsInFlightResult(t *testing.T) {
	c, clk, _ := newCache(t)
	key := NewKey("challenge", "detail", "1")
	c.SetData(key, "old")
	clk.Advance(time.Hour)

	gate := make(chan struct{})
	started := make(chan struct{})
	v, err := Fetch(context.Background(), c, key, fresh, func(context.Context) (string, error) {
		close(started)
		<-gate
		return "server-old", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "old", v)
	<-started

	assert.Equal(t, 1, c.Cancel(key))
	c.SetData(key, "optimistic")
	close(gate)
	waitIdle(t, c)

	got, _ := Get[string](c, key)
	assert.Equal(t, "optimistic", got)
}

func TestSnapshotRestore(t *testing.T) {
	c, _, _ := newCache(t)
	prefix := NewKey("challenge", "detail")
	a, b := prefix.With("1"), prefix.With("2")
	other := NewKey("stats", "GALICE")
	c.SetData(a, 10)
	c.SetData(b, 20)
	c.SetData(other, 1)

	snap := c.Snapshot(prefix)
	c.SetData(a, 11)
	c.SetData(prefix.With("3"), 30)
	c.Remove(b)
	c.SetData(other, 2)

	c.Restore(snap)

	got, _ := Get[int](c, a)
	assert.Equal(t, 10, got)
	got, ok := Get[int](c, b)
	require.True(t, ok)
	assert.Equal(t, 20, got)
	_, ok = Get[int](c, prefix.With("3"))
	assert.False(t, ok)
	got, _ = Get[int](c, other)
	assert.Equal(t, 2, got)
}

func TestUpdate(t *testing.T) {
	c, _, _ := newCache(t)
	key := NewKey("savecoin", "balance", "GALICE")

	assert.False(t, Update(c, key, func(n int) int { return n + 1 }))
	c.SetData(key, 41)
	assert.True(t, Update(c, key, func(n int) int { return n + 1 }))
	assert.False(t, Update(c, key, func(s string) string { return s }))

	got, _ := Get[int](c, key)
	assert.Equal(t, 42, got)
}

func TestObserve_RefetchInterval(t *testing.T) {
	c, clk, _ := newCache(t)
	calls, fn := counter()
	key := NewKey("challenges", "list", "GALICE", "status=all")
	opts := Options{StaleTime: time.Hour, RetentionTime: time.Hour, RefetchInterval: time.Minute}

	stop := c.Observe(key, opts, func(ctx context.Context) (any, error) { return fn(ctx) })
	waitIdle(t, c)
	require.Equal(t, int32(1), calls.Load())
	require.Equal(t, 1, clk.Tickers())

	clk.Advance(time.Minute)
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)

	stop()
	stop()
	require.Eventually(t, func() bool { return clk.Tickers() == 0 }, time.Second, time.Millisecond)
	st, _ := c.State(key)
	assert.Equal(t, 0, st.Observers)
}

func TestFocus_RefetchesStaleObserved(t *testing.T) {
	c, clk, _ := newCache(t)
	calls, fn := counter()
	focus := Options{StaleTime: time.Minute, RetentionTime: time.Hour, RefetchOnFocus: true}
	noFocus := Options{StaleTime: time.Minute, RetentionTime: time.Hour}

	stop1 := c.Observe(NewKey("a"), focus, func(ctx context.Context) (any, error) { return fn(ctx) })
	defer stop1()
	stop2 := c.Observe(NewKey("b"), noFocus, func(ctx context.Context) (any, error) { return fn(ctx) })
	defer stop2()
	waitIdle(t, c)
	require.Equal(t, int32(2), calls.Load())

	assert.Equal(t, 0, c.Focus())

	clk.Advance(2 * time.Minute)
	assert.Equal(t, 1, c.Focus())
	waitIdle(t, c)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCollect_RespectsRetentionAndObservers(t *testing.T) {
	c, clk, _ := newCache(t)
	unobserved := NewKey("stats", "GALICE")
	observed := NewKey("stats", "GBOB")
	c.SetData(unobserved, 1)
	stop := c.Observe(observed, fresh, func(context.Context) (any, error) { return 2, nil })
	waitIdle(t, c)

	clk.Advance(6 * time.Minute)
	assert.Equal(t, 1, c.Collect())
	_, ok := c.State(unobserved)
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	stop()
	assert.Equal(t, 0, c.Collect())
	clk.Advance(6 * time.Minute)
	assert.Equal(t, 1, c.Collect())
	assert.Equal(t, 0, c.Len())
}

func TestRun_CollectsOnTick(t *testing.T) {
	c, clk, _ := newCache(t)
	c.SetData(NewKey("stats", "GALICE"), 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, time.Minute) }()
	require.Eventually(t, func() bool { return clk.Tickers() == 1 }, time.Second, time.Millisecond)

	clk.Advance(6 * time.Minute)
	require.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRefetch_WaitsForResults(t *testing.T) {
	c, _, _ := newCache(t)
	calls, fn := counter()
	key := NewKey("pools", "list")
	_, err := Fetch(context.Background(), c, key, fresh, fn)
	require.NoError(t, err)
	c.SetData(NewKey("pools", "orphan"), 0)

	require.NoError(t, c.Refetch(context.Background(), NewKey("pools")))
	got, _ := Get[string](c, key)
	assert.Equal(t, "v2", got)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRemove(t *testing.T) {
	c, _, _ := newCache(t)
	c.SetData(NewKey("challenge", "detail", "1"), 1)
	c.SetData(NewKey("challenge", "progress", "1"), 1)
	c.SetData(NewKey("stats", "GALICE"), 1)

	assert.Equal(t, 2, c.Remove(NewKey("challenge")))
	assert.Equal(t, 1, c.Len())
}

func TestWaitIdle_Context(t *testing.T) {
	c, _, _ := newCache(t)
	gate := make(chan struct{})
	defer close(gate)
	c.Observe(NewKey("slow"), fresh, func(context.Context) (any, error) {
		<-gate
		return 1, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.WaitIdle(ctx), context.DeadlineExceeded)
}
