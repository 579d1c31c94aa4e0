// Package harness runs YAML scenarios against a real engine backed by an
// in-memory ledger, a manual clock and sequential ids, so a scenario
// produces the same trace on every run.
package harness

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/stellarsave/stellarsave/internal/clock"
	"github.com/stellarsave/stellarsave/internal/engine"
	"github.com/stellarsave/stellarsave/internal/gateway"
	"github.com/stellarsave/stellarsave/internal/ledger"
	"github.com/stellarsave/stellarsave/internal/metrics"
	"github.com/stellarsave/stellarsave/internal/model"
	"github.com/stellarsave/stellarsave/internal/query"
	"github.com/stellarsave/stellarsave/internal/store"
	"github.com/stellarsave/stellarsave/internal/testutil"
)

// idPrefix prefixes the run's sequential ids.
const idPrefix = "n"

// settleTimeout bounds the wait for background refetches after a step.
const settleTimeout = 5 * time.Second

// Harness is one scenario execution.
type Harness struct {
	engine *engine.Engine
	faulty *gateway.Faulty
	clock  *testutil.Clock
	seq    *clock.Sequence
	logger *slog.Logger

	// lastID is the highest notification sequence already traced.
	lastID int
}

// Option configures a run.
type Option func(*runConfig)

type runConfig struct {
	logger *slog.Logger
}

// WithLogger routes engine logs to l. Runs are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) { c.logger = l }
}

// Run executes a scenario in a fresh in-memory ledger and returns the
// result. An error means the scenario could not run at all; failed
// expectations are reported in Result.Errors.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	start, err := scenario.StartTime()
	if err != nil {
		return nil, err
	}
	clk := testutil.NewClock(start)

	l, err := ledger.Open(":memory:", ledger.WithClock(clk), ledger.WithLogger(cfg.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory ledger: %w", err)
	}
	defer l.Close()

	faulty := gateway.NewFaulty(ledger.NewGateway(l, gateway.DefaultAddresses))
	cache := query.New(clk, query.WithMetrics(metrics.New(nil)), query.WithLogger(cfg.logger))
	eng := engine.New(store.New(clk), cache, gateway.NewContracts(faulty, gateway.DefaultAddresses), clk,
		engine.WithIDGenerator(testutil.NewSequentialIDs(idPrefix)),
		engine.WithLogger(cfg.logger))

	h := &Harness{
		engine: eng,
		faulty: faulty,
		clock:  clk,
		seq:    clock.NewSequence(),
		logger: cfg.logger,
	}

	result := NewResult()
	for i, step := range scenario.Setup {
		if _, err := h.execute(ctx, step); err != nil {
			return nil, fmt.Errorf("setup step %d (%s): %w", i, step.Step, err)
		}
		h.traceNotifications(result)
	}

	for i, step := range scenario.Flow {
		h.runStep(ctx, i, step, result)
	}

	for _, msg := range h.evaluate(ctx, result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) runStep(ctx context.Context, i int, step Step, result *Result) {
	result.addInvocation(h.seq.Next(), step.Step, step.Args)

	out, err := h.execute(ctx, step)
	outcome := CaseSuccess
	if err != nil {
		outcome = string(model.KindOf(err))
	}
	result.addCompletion(h.seq.Next(), step.Step, outcome, plain(out))
	h.traceNotifications(result)

	h.logger.Info("flow step completed", "step", i, "action", step.Step, "outcome", outcome)

	switch {
	case step.Expect == nil && err != nil:
		result.AddError(fmt.Sprintf("flow[%d] %s: unexpected failure: %v", i, step.Step, err))
	case step.Expect == nil:
	case step.Expect.Case != outcome:
		detail := ""
		if err != nil {
			detail = ": " + err.Error()
		}
		result.AddError(fmt.Sprintf("flow[%d] %s: expected case %s, got %s%s", i, step.Step, step.Expect.Case, outcome, detail))
	case !matchSubset(plain(out), step.Expect.Result):
		result.AddError(fmt.Sprintf("flow[%d] %s: result %v does not match %v", i, step.Step, plain(out), step.Expect.Result))
	}
}

// traceNotifications appends notifications recorded since the last call,
// oldest first. Ids come from a sequential generator, so anything above the
// highest id seen so far is new.
func (h *Harness) traceNotifications(result *Result) {
	all := h.engine.Store().Notifications()
	newest := h.lastID
	for i := len(all) - 1; i >= 0; i-- {
		n := all[i]
		id := sequenceOf(n.ID)
		if id <= h.lastID {
			continue
		}
		result.addNotification(h.seq.Next(), string(n.Type), n.Message)
		newest = max(newest, id)
	}
	h.lastID = newest
}

func sequenceOf(id string) int {
	var n int
	if _, err := fmt.Sscanf(id, idPrefix+"-%d", &n); err != nil {
		return 0
	}
	return n
}

func (h *Harness) settle(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()
	return h.engine.Cache().WaitIdle(ctx)
}

// execute runs one step and returns its result value.
func (h *Harness) execute(ctx context.Context, step Step) (any, error) {
	defer func() {
		if err := h.settle(ctx); err != nil {
			h.logger.Warn("background refetches did not settle", "error", err)
		}
	}()

	e := h.engine
	switch step.Step {
	case StepCreateChallenge:
		req, err := decodeArgs[model.CreateChallengeRequest](step.Args)
		if err != nil {
			return nil, err
		}
		c, err := e.CreateChallenge(ctx, req)
		if err != nil {
			return nil, err
		}
		return map[string]any{"id": c.ID, "participants": c.Participants, "deadline": c.Deadline.UTC().Format(time.RFC3339)}, nil

	case StepContribute:
		req, err := decodeArgs[model.ContributeRequest](step.Args)
		if err != nil {
			return nil, err
		}
		c, err := e.Contribute(ctx, req)
		if err != nil {
			return nil, err
		}
		return map[string]any{"amount": c.Amount.String(), "week_number": c.WeekNumber}, nil

	case StepFinalize:
		req, err := decodeArgs[model.FinalizeRequest](step.Args)
		if err != nil {
			return nil, err
		}
		_, err = e.FinalizeChallenge(ctx, req)
		return nil, err

	case StepRemind:
		args, err := decodeArgs[userArgs](step.Args)
		if err != nil {
			return nil, err
		}
		list, err := e.Remind(ctx, args.User)
		if err != nil {
			return nil, err
		}
		return map[string]any{"count": len(list)}, nil

	case StepRefresh:
		args, err := decodeArgs[userArgs](step.Args)
		if err != nil {
			return nil, err
		}
		return nil, e.Refresh(ctx, args.User)

	case StepCreatePool:
		req, err := decodeArgs[model.CreatePoolRequest](step.Args)
		if err != nil {
			return nil, err
		}
		p, err := e.CreatePool(ctx, req)
		if err != nil {
			return nil, err
		}
		return map[string]any{"id": p.ID, "corridor": p.Corridor}, nil

	case StepDeposit:
		req, err := decodeArgs[model.DepositRequest](step.Args)
		if err != nil {
			return nil, err
		}
		_, err = e.Deposit(ctx, req)
		return nil, err

	case StepSendCrossBorder:
		req, err := decodeArgs[model.SendCrossBorderRequest](step.Args)
		if err != nil {
			return nil, err
		}
		t, err := e.SendCrossBorder(ctx, req)
		if err != nil {
			return nil, err
		}
		return map[string]any{"corridor": t.Corridor, "fees": t.Fees.String(), "moneygram_ref": t.MoneyGramRef}, nil

	case StepAdvance:
		args, err := decodeArgs[advanceArgs](step.Args)
		if err != nil {
			return nil, err
		}
		d, err := args.duration()
		if err != nil {
			return nil, err
		}
		h.clock.Advance(d)
		return map[string]any{"now": h.clock.Now().UTC().Format(time.RFC3339)}, nil

	case StepFailNext:
		args, err := decodeArgs[failArgs](step.Args)
		if err != nil {
			return nil, err
		}
		h.faulty.FailNextKind(gateway.Method(args.Method), model.Kind(args.Kind), args.Message)
		return nil, nil
	}
	return nil, fmt.Errorf("unknown step %q", step.Step)
}

type userArgs struct {
	User string `yaml:"user"`
}

type advanceArgs struct {
	Days     int    `yaml:"days"`
	Weeks    int    `yaml:"weeks"`
	Duration string `yaml:"duration"`
}

func (a advanceArgs) duration() (time.Duration, error) {
	d := time.Duration(a.Days)*24*time.Hour + time.Duration(a.Weeks)*7*24*time.Hour
	if a.Duration != "" {
		extra, err := time.ParseDuration(a.Duration)
		if err != nil {
			return 0, model.Validationf("duration", "invalid duration %q", a.Duration)
		}
		d += extra
	}
	if d <= 0 {
		return 0, model.Validationf("duration", "advance needs a positive duration")
	}
	return d, nil
}

type failArgs struct {
	Method  string `yaml:"method"`
	Kind    string `yaml:"kind"`
	Message string `yaml:"message"`
}

// decodeArgs converts YAML-parsed args into a typed request, rejecting
// unknown fields.
func decodeArgs[T any](args map[string]any) (T, error) {
	var out T
	if len(args) == 0 {
		return out, nil
	}
	raw, err := yaml.Marshal(args)
	if err != nil {
		return out, model.WrapError(model.KindValidationError, "encode step args", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&out); err != nil {
		return out, model.WrapError(model.KindValidationError, "invalid step args", err)
	}
	return out, nil
}

// decimalOf reports v as a decimal when it is numeric or a numeric string.
func decimalOf(v any) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(fmt.Sprint(v))
	return d, err == nil
}
