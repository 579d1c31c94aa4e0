package query

import "context"

// Mutation describes one write against the gateway.
//
// V is the request and R the gateway result. Only Name and Call are
// required.
type Mutation[V, R any] struct {
	// Name labels metrics and logs.
	Name string

	// Lane serializes mutations that touch the same entity.
	Lane func(V) string

	// Validate rejects a request before anything is touched.
	Validate func(V) error

	// Affected keys have their in-flight reads cancelled and are
	// snapshotted before the optimistic patch. Reads of them that overlap
	// the call are not stored.
	Affected func(V) []Key

	// Optimistic applies the visible effect and returns its undo.
	Optimistic func(V) func()

	// Call performs the gateway write.
	Call func(context.Context, V) (R, error)

	// Invalidate lists the keys to mark stale after a successful call.
	Invalidate func(V, R) []Key

	// Settle lists the keys to invalidate once the mutation finishes,
	// whatever the outcome.
	Settle func(V) []Key

	OnSuccess func(V, R)
	OnError   func(V, error)
}

// RunMutation executes m for v: lane, hold, snapshot, optimistic patch,
// call, then invalidate on success or restore on failure, then settle.
//
// The gateway call runs without ctx's cancellation; once issued it is
// waited for. ctx still bounds the wait for the lane.
func RunMutation[V, R any](ctx context.Context, c *Cache, m Mutation[V, R], v V) (R, error) {
	var zero R
	log := c.logger.With("mutation", m.Name)

	if m.Validate != nil {
		if err := m.Validate(v); err != nil {
			c.metrics.Mutations.WithLabelValues(m.Name, "rejected").Inc()
			log.Debug("mutation rejected", "error", err)
			if m.OnError != nil {
				m.OnError(v, err)
			}
			return zero, err
		}
	}

	if m.Lane != nil {
		release, err := c.lanes.Acquire(ctx, m.Lane(v))
		if err != nil {
			return zero, err
		}
		defer release()
	}

	var affected []Key
	if m.Affected != nil {
		affected = m.Affected(v)
	}
	unhold := c.Hold(affected...)
	defer unhold()
	snap := c.Snapshot(affected...)

	undo := func() {}
	if m.Optimistic != nil {
		undo = m.Optimistic(v)
	}

	r, err := m.Call(context.WithoutCancel(ctx), v)
	if err != nil {
		c.Restore(snap)
		undo()
		unhold()
		c.metrics.Mutations.WithLabelValues(m.Name, "rolled_back").Inc()
		log.Warn("mutation rolled back", "error", err)
		if m.OnError != nil {
			m.OnError(v, err)
		}
		settle(c, m, v)
		return zero, err
	}

	unhold()
	if m.Invalidate != nil {
		c.Invalidate(m.Invalidate(v, r)...)
	}
	c.metrics.Mutations.WithLabelValues(m.Name, "committed").Inc()
	log.Debug("mutation committed")
	if m.OnSuccess != nil {
		m.OnSuccess(v, r)
	}
	settle(c, m, v)
	return r, nil
}

func settle[V, R any](c *Cache, m Mutation[V, R], v V) {
	if m.Settle == nil {
		return
	}
	if keys := m.Settle(v); len(keys) > 0 {
		c.Invalidate(keys...)
	}
}
