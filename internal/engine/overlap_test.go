package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellarsave/stellarsave/internal/gateway"
	"github.com/stellarsave/stellarsave/internal/model"
)

// gate parks one gateway call. Reads are parked after the ledger answers,
// writes before they reach it.
type gate struct {
	reached chan struct{}
	open    chan struct{}
}

type gates struct {
	mu    sync.Mutex
	armed map[gateway.Method]*gate
}

func (g *gates) arm(m gateway.Method) *gate {
	g.mu.Lock()
	defer g.mu.Unlock()
	gt := &gate{reached: make(chan struct{}), open: make(chan struct{})}
	g.armed[m] = gt
	return gt
}

func (g *gates) take(m gateway.Method) *gate {
	g.mu.Lock()
	defer g.mu.Unlock()
	gt := g.armed[m]
	delete(g.armed, m)
	return gt
}

func (g *gates) wrap(next gateway.Gateway) gateway.Gateway {
	return gateway.Func(func(ctx context.Context, call gateway.Call) (gateway.Result, error) {
		if call.Simulate {
			return next.Invoke(ctx, call)
		}
		gt := g.take(call.Method)
		if gt == nil {
			return next.Invoke(ctx, call)
		}
		if call.Method.IsMutation() {
			close(gt.reached)
			<-gt.open
			return next.Invoke(ctx, call)
		}
		res, err := next.Invoke(ctx, call)
		close(gt.reached)
		<-gt.open
		return res, err
	})
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("gateway call never arrived")
	}
}

func TestContribute_OverlappingReadsKeepOptimisticTotal(t *testing.T) {
	g := &gates{armed: make(map[gateway.Method]*gate)}
	f := newFixtureWith(t, g.wrap)
	ctx := context.Background()
	c := f.createChallenge(t, bob)

	_, err := f.engine.Challenge(ctx, c.ID)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)

	// A background refresh reads the pre-contribution total and parks.
	read := g.arm(gateway.MethodGetChallenge)
	cached, err := f.engine.Challenge(ctx, c.ID)
	require.NoError(t, err)
	assertDec(t, "0", cached.CurrentAmount)
	waitFor(t, read.reached)

	call := g.arm(gateway.MethodContribute)
	done := make(chan error, 1)
	go func() {
		_, err := f.engine.Contribute(ctx, model.ContributeRequest{
			ChallengeID: c.ID, Contributor: alice, Amount: dec("50"),
		})
		done <- err
	}()
	waitFor(t, call.reached)

	close(read.open)
	f.settle(t)

	stored, ok := f.engine.Store().Challenge(c.ID)
	require.True(t, ok)
	assertDec(t, "50", stored.CurrentAmount, "refresh landed over the optimistic total")
	fromCache, err := f.engine.Challenge(ctx, c.ID)
	require.NoError(t, err)
	assertDec(t, "50", fromCache.CurrentAmount)

	// A dashboard read while the call is out sees the old ledger state too.
	_, err = f.engine.Stats(ctx, alice)
	require.NoError(t, err)
	stored, _ = f.engine.Store().Challenge(c.ID)
	assertDec(t, "50", stored.CurrentAmount, "stats commit overwrote a held challenge")
	assert.Len(t, f.engine.Store().PendingContributions(), 1, "stats commit dropped the pending placeholder")

	close(call.open)
	require.NoError(t, <-done)
	f.settle(t)

	stored, _ = f.engine.Store().Challenge(c.ID)
	assertDec(t, "50", stored.CurrentAmount)
	assert.False(t, f.engine.Cache().Held(ChallengeKey(c.ID)))
}

func TestContribute_OverlappingReadsRollBackCleanly(t *testing.T) {
	g := &gates{armed: make(map[gateway.Method]*gate)}
	f := newFixtureWith(t, g.wrap)
	ctx := context.Background()
	c := f.createChallenge(t, bob)

	f.faulty.FailNextKind(gateway.MethodContribute, model.KindContractError, "rejected")
	call := g.arm(gateway.MethodContribute)
	done := make(chan error, 1)
	go func() {
		_, err := f.engine.Contribute(ctx, model.ContributeRequest{
			ChallengeID: c.ID, Contributor: alice, Amount: dec("50"),
		})
		done <- err
	}()
	waitFor(t, call.reached)

	_, err := f.engine.Stats(ctx, alice)
	require.NoError(t, err)

	close(call.open)
	assert.Error(t, <-done)
	f.settle(t)

	stored, ok := f.engine.Store().Challenge(c.ID)
	require.True(t, ok)
	assertDec(t, "0", stored.CurrentAmount)
	assert.Empty(t, f.engine.Store().PendingContributions())
}
