package gateway

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/stellarsave/stellarsave/internal/model"
)

// Limited throttles invocations with a token bucket. Calls wait for a token
// until their context is done.
type Limited struct {
	next    Gateway
	limiter *rate.Limiter
}

// NewLimited allows rps calls per second with the given burst.
func NewLimited(next Gateway, rps float64, burst int) *Limited {
	return &Limited{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Invoke implements Gateway.
func (l *Limited) Invoke(ctx context.Context, call Call) (Result, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return Result{}, model.WrapError(model.KindNetworkError, "rate limited", err)
	}
	return l.next.Invoke(ctx, call)
}
