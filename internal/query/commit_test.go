package query

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder returns a loader yielding v whose commit counts its runs.
func recorder(v string) (*atomic.Int32, func(context.Context) (string, Commit, error)) {
	var commits atomic.Int32
	return &commits, func(context.Context) (string, Commit, error) {
		return v, func(Guard) { commits.Add(1) }, nil
	}
}

// gated returns a loader that blocks until gate closes.
func gated(v string, started, gate chan struct{}) (*atomic.Int32, func(context.Context) (string, Commit, error)) {
	var commits atomic.Int32
	return &commits, func(context.Context) (string, Commit, error) {
		close(started)
		<-gate
		return v, func(Guard) { commits.Add(1) }, nil
	}
}

func TestLoad_CommitsAcceptedResult(t *testing.T) {
	c, _, _ := newCache(t)
	key := NewKey("savecoin", "balance", "GALICE")
	commits, fn := recorder("42")

	v, err := Load(context.Background(), c, key, fresh, fn)
	require.NoError(t, err)
	assert.Equal(t, "42", v)
	assert.Equal(t, int32(1), commits.Load())

	_, err = Load(context.Background(), c, key, fresh, fn)
	require.NoError(t, err)
	assert.Equal(t, int32(1), commits.Load(), "a cache hit does not commit")
}

func TestLoad_ErrorSkipsCommit(t *testing.T) {
	c, _, _ := newCache(t)
	var commits atomic.Int32
	boom := errors.New("rpc down")

	_, err := Load(context.Background(), c, NewKey("stats", "GALICE"), fresh, func(context.Context) (string, Commit, error) {
		return "", func(Guard) { commits.Add(1) }, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, commits.Load())
}

func TestLoad_SupersededSkipsCommit(t *testing.T) {
	c, clk, _ := newCache(t)
	key := NewKey("challenge", "detail", "1")
	c.SetData(key, "old")
	clk.Advance(time.Hour)

	started, gate := make(chan struct{}), make(chan struct{})
	commits, fn := gated("server-old", started, gate)
	v, err := Load(context.Background(), c, key, fresh, fn)
	require.NoError(t, err)
	assert.Equal(t, "old", v)
	<-started

	c.Cancel(key)
	c.SetData(key, "optimistic")
	close(gate)
	waitIdle(t, c)

	assert.Zero(t, commits.Load())
	got, _ := Get[string](c, key)
	assert.Equal(t, "optimistic", got)
}

func TestHold_ReturnsValueWithoutStoring(t *testing.T) {
	c, _, m := newCache(t)
	key := NewKey("challenge", "progress", "1")
	release := c.Hold(NewKey("challenge", "progress"))
	assert.True(t, c.Held(key))

	commits, fn := recorder("p1")
	v, err := Load(context.Background(), c, key, fresh, fn)
	require.NoError(t, err)
	assert.Equal(t, "p1", v)
	assert.Zero(t, commits.Load())
	_, ok := c.GetData(key)
	assert.False(t, ok)
	assert.Equal(t, float64(1), promtest.ToFloat64(m.CacheFetches.WithLabelValues("challenge", "held")))

	release()
	release()
	assert.False(t, c.Held(key))

	_, err = Load(context.Background(), c, key, fresh, fn)
	require.NoError(t, err)
	assert.Equal(t, int32(1), commits.Load())
}

func TestHold_FetchOverlappingReleaseIsDropped(t *testing.T) {
	c, clk, _ := newCache(t)
	key := NewKey("challenge", "detail", "1")
	c.SetData(key, "old")
	clk.Advance(time.Hour)

	release := c.Hold(key)
	started, gate := make(chan struct{}), make(chan struct{})
	commits, fn := gated("read-during-call", started, gate)
	_, err := Load(context.Background(), c, key, fresh, fn)
	require.NoError(t, err)
	<-started

	release()
	close(gate)
	waitIdle(t, c)

	assert.Zero(t, commits.Load())
	got, _ := Get[string](c, key)
	assert.Equal(t, "old", got)

	after, fn := recorder("confirmed")
	_, err = Load(context.Background(), c, key, fresh, fn)
	require.NoError(t, err)
	waitIdle(t, c)
	assert.Equal(t, int32(1), after.Load())
	got, _ = Get[string](c, key)
	assert.Equal(t, "confirmed", got)

	c.Collect()
	c.mu.Lock()
	assert.Empty(t, c.released)
	c.mu.Unlock()
}

func TestGuard_ReportsSiblingHolds(t *testing.T) {
	c, _, _ := newCache(t)
	held := NewKey("challenge", "detail", "1")
	free := NewKey("challenge", "detail", "2")
	release := c.Hold(held)
	defer release()

	var allowHeld, allowFree bool
	_, err := Load(context.Background(), c, NewKey("stats", "GALICE"), fresh, func(context.Context) (int, Commit, error) {
		return 7, func(g Guard) {
			allowHeld, allowFree = g.Allows(held), g.Allows(free)
		}, nil
	})
	require.NoError(t, err)
	assert.False(t, allowHeld)
	assert.True(t, allowFree)
}

func TestObserveLoader_Commits(t *testing.T) {
	c, _, _ := newCache(t)
	key := NewKey("savecoin", "balance", "GALICE")
	var commits atomic.Int32

	stop := c.ObserveLoader(key, fresh, func(context.Context) (any, Commit, error) {
		return "9", func(Guard) { commits.Add(1) }, nil
	})
	defer stop()
	waitIdle(t, c)

	assert.Equal(t, int32(1), commits.Load())
	got, ok := Get[string](c, key)
	require.True(t, ok)
	assert.Equal(t, "9", got)
}

// The optimistic value survives a read that lands while the call is out.
func TestRunMutation_ReadDuringCallKeepsOptimisticValue(t *testing.T) {
	c, clk, _ := newCache(t)
	key := NewKey("challenge", "detail", "1")
	c.SetData(key, 0)
	clk.Advance(time.Hour)

	var stored atomic.Int32
	inCall, finish := make(chan struct{}), make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := RunMutation(context.Background(), c, Mutation[int, string]{
			Name:     "contribute",
			Affected: func(int) []Key { return []Key{key} },
			Optimistic: func(n int) func() {
				prev := stored.Swap(int32(n))
				Update(c, key, func(int) int { return n })
				return func() { stored.Store(prev) }
			},
			Call: func(context.Context, int) (string, error) {
				close(inCall)
				<-finish
				return "tx", nil
			},
		}, 50)
		done <- err
	}()
	<-inCall

	alwaysStale := Options{RetentionTime: time.Minute}
	v, err := Load(context.Background(), c, key, alwaysStale, func(context.Context) (int, Commit, error) {
		return 0, func(Guard) { stored.Store(0) }, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 50, v, "stale read serves the optimistic value")
	waitIdle(t, c)

	assert.Equal(t, int32(50), stored.Load())
	got, _ := Get[int](c, key)
	assert.Equal(t, 50, got)

	close(finish)
	require.NoError(t, <-done)
	assert.False(t, c.Held(key))
}
