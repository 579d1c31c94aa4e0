package query

import (
	"context"
	"sync"
)

// Lanes serializes work per entity id in arrival order.
//
// Each Acquire chains behind the previous holder of the same id, so two
// contributions to one challenge run one after the other and the second
// snapshot always sees the first's settled state. Different ids never wait
// on each other.
type Lanes struct {
	mu    sync.Mutex
	tails map[string]chan struct{}
}

// NewLanes creates an empty lane set.
func NewLanes() *Lanes {
	return &Lanes{tails: make(map[string]chan struct{})}
}

// Acquire waits for every earlier holder of id and returns the release
// func. An empty id is never serialized.
func (l *Lanes) Acquire(ctx context.Context, id string) (func(), error) {
	if id == "" {
		return func() {}, nil
	}

	l.mu.Lock()
	prev := l.tails[id]
	done := make(chan struct{})
	l.tails[id] = done
	l.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			l.mu.Lock()
			if l.tails[id] == done {
				delete(l.tails, id)
			}
			l.mu.Unlock()
			close(done)
		})
	}

	if prev == nil {
		return release, nil
	}
	select {
	case <-prev:
		return release, nil
	case <-ctx.Done():
		// Later arrivals are chained on done; hand the lane on once the
		// earlier holder finishes.
		go func() {
			<-prev
			release()
		}()
		return nil, ctx.Err()
	}
}

// Active returns the number of ids with a holder or waiter.
func (l *Lanes) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tails)
}
