// Package clock abstracts wall-clock time and timers so that progress
// derivation, cache staleness, and refresh loops can be driven
// deterministically in tests.
package clock

import (
	"sync/atomic"
	"time"
)

// Clock provides the current time and periodic tickers.
//
// Production code uses Real. Tests use testutil.Clock, which only moves
// when advanced explicitly and fires tickers synchronously on Advance.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers ticks on C until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Real is the system clock.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time { return time.Now() }

// NewTicker wraps time.NewTicker.
func (Real) NewTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// Sequence is a monotonic logical counter.
//
// The cache stamps every entry write with a sequence number so that results
// of fetches started before a cancellation or an optimistic write can be
// recognized and discarded. Ordering never depends on wall-clock time.
//
// Thread-safety: Sequence is safe for concurrent use (atomic operations).
type Sequence struct {
	seq atomic.Int64
}

// NewSequence creates a sequence starting at 0.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Next returns the next value. The first call returns 1.
func (s *Sequence) Next() int64 {
	return s.seq.Add(1)
}

// Current returns the last value handed out without incrementing.
func (s *Sequence) Current() int64 {
	return s.seq.Load()
}
