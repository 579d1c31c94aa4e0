package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/stellarsave/stellarsave/internal/metrics"
	"github.com/stellarsave/stellarsave/internal/model"
)

// Instrumented records call counts, latency and failures.
type Instrumented struct {
	next    Gateway
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewInstrumented wraps next. A nil logger uses slog.Default().
func NewInstrumented(next Gateway, m *metrics.Metrics, logger *slog.Logger) *Instrumented {
	if logger == nil {
		logger = slog.Default()
	}
	return &Instrumented{next: next, metrics: m, logger: logger}
}

// Invoke implements Gateway.
func (i *Instrumented) Invoke(ctx context.Context, call Call) (Result, error) {
	start := time.Now()
	res, err := i.next.Invoke(ctx, call)
	elapsed := time.Since(start)

	outcome := "ok"
	if err != nil {
		outcome = string(model.AsError(err).Kind)
	}
	if i.metrics != nil {
		i.metrics.GatewayCalls.WithLabelValues(string(call.Method), outcome).Inc()
		i.metrics.GatewayLatency.WithLabelValues(string(call.Method)).Observe(elapsed.Seconds())
	}

	if err != nil {
		i.logger.Warn("contract call failed",
			"method", call.Method,
			"simulate", call.Simulate,
			"kind", outcome,
			"duration", elapsed,
			"error", err)
		return res, err
	}
	i.logger.Debug("contract call",
		"method", call.Method,
		"simulate", call.Simulate,
		"tx", res.TransactionHash,
		"duration", elapsed)
	return res, nil
}
