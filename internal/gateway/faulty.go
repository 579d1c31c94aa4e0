package gateway

import (
	"context"
	"sync"

	"github.com/stellarsave/stellarsave/internal/model"
)

// Faulty fails scripted calls. Failures are queued per method and consumed
// in order; calls with no queued failure pass through.
type Faulty struct {
	next Gateway

	mu      sync.Mutex
	pending map[Method][]error
	calls   []Call
}

// NewFaulty wraps next.
func NewFaulty(next Gateway) *Faulty {
	return &Faulty{next: next, pending: make(map[Method][]error)}
}

// FailNext queues err for the next non-simulated call to method.
func (f *Faulty) FailNext(method Method, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[method] = append(f.pending[method], err)
}

// FailNextKind queues an *model.Error of the given kind.
func (f *Faulty) FailNextKind(method Method, kind model.Kind, message string) {
	f.FailNext(method, model.NewError(kind, message))
}

// Pending reports how many failures are still queued for method.
func (f *Faulty) Pending(method Method) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending[method])
}

// Calls returns every call seen, in order.
func (f *Faulty) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Invoke implements Gateway.
func (f *Faulty) Invoke(ctx context.Context, call Call) (Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	var err error
	if q := f.pending[call.Method]; len(q) > 0 && !call.Simulate {
		err, f.pending[call.Method] = q[0], q[1:]
	}
	f.mu.Unlock()

	if err != nil {
		return Result{}, err
	}
	return f.next.Invoke(ctx, call)
}
