package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/stellarsave/stellarsave/internal/engine"
	"github.com/stellarsave/stellarsave/internal/model"
	"github.com/stellarsave/stellarsave/internal/query"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			if event.Type == EventInvocation {
				fmt.Fprintf(&buf, "  [%d] %s %v\n", i+1, event.Step, event.Args)
			}
		}
	}
	return buf.String()
}

// evaluate checks every assertion and returns one message per failure.
func (h *Harness) evaluate(ctx context.Context, result *Result, assertions []Assertion) []string {
	var errs []string
	for i, assertion := range assertions {
		var err error
		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			err = h.assertFinalState(ctx, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Type == EventInvocation && event.Step == assertion.Step && matchSubset(plain(event.Args), assertion.Args) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("step %s with args %v", assertion.Step, assertion.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first occurrence of each step comes in
// the given order. Other steps may come between them.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if event.Type != EventInvocation {
			continue
		}
		if _, seen := positions[event.Step]; !seen && slices.Contains(assertion.Steps, event.Step) {
			positions[event.Step] = i + 1
		}
	}

	for _, step := range assertion.Steps {
		if positions[step] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all steps present: %v", assertion.Steps),
				Actual:   fmt.Sprintf("missing step: %s", step),
				Trace:    trace,
			}
		}
	}
	for i := 1; i < len(assertion.Steps); i++ {
		prev, curr := assertion.Steps[i-1], assertion.Steps[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("steps in order: %v", assertion.Steps),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == EventInvocation && event.Step == assertion.Step {
			count++
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Step),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

var knownTables = map[string]bool{
	"challenge":     true,
	"progress":      true,
	"participant":   true,
	"stats":         true,
	"balance":       true,
	"pool":          true,
	"notifications": true,
}

// assertFinalState reads a state view through the engine and checks the
// expected fields as a subset.
func (h *Harness) assertFinalState(ctx context.Context, assertion Assertion) error {
	row, err := h.stateRow(ctx, assertion.Table, assertion.Where)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %v", assertion.Table, assertion.Where),
			Actual:   err.Error(),
		}
	}
	actual, _ := plain(row).(map[string]any)
	for key, want := range assertion.Expect {
		got, ok := actual[key]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist in %s", key, assertion.Table),
				Actual:   fmt.Sprintf("fields: %v", sortedKeys(actual)),
			}
		}
		if !looseEqual(got, want) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s.%s = %v", assertion.Table, key, want),
				Actual:   fmt.Sprintf("%s.%s = %v", assertion.Table, key, got),
			}
		}
	}
	return nil
}

func (h *Harness) stateRow(ctx context.Context, table string, where map[string]any) (any, error) {
	str := func(key string) (string, error) {
		v, ok := where[key]
		if !ok {
			return "", fmt.Errorf("where.%s is required for %s", key, table)
		}
		return fmt.Sprint(v), nil
	}

	// Cached views may be stale after the last mutation. Drop them so the
	// read goes to the ledger.
	e := h.engine
	drop := func(key query.Key) { e.Cache().Remove(key) }
	switch table {
	case "challenge":
		id, err := str("id")
		if err != nil {
			return nil, err
		}
		drop(engine.ChallengeKey(id))
		return e.Challenge(ctx, id)
	case "progress":
		id, err := str("challenge_id")
		if err != nil {
			return nil, err
		}
		drop(engine.ProgressKey(id))
		return e.Progress(ctx, id)
	case "participant":
		id, err := str("challenge_id")
		if err != nil {
			return nil, err
		}
		user, err := str("participant")
		if err != nil {
			return nil, err
		}
		drop(engine.ParticipantKey(id, user))
		return e.ParticipantProgress(ctx, id, user)
	case "stats":
		user, err := str("user")
		if err != nil {
			return nil, err
		}
		drop(engine.StatsKey(user))
		return e.Stats(ctx, user)
	case "balance":
		user, err := str("user")
		if err != nil {
			return nil, err
		}
		drop(engine.BalanceKey(user))
		bal, err := e.Balance(ctx, user)
		if err != nil {
			return nil, err
		}
		return map[string]any{"user": user, "balance": bal}, nil
	case "pool":
		id, err := str("id")
		if err != nil {
			return nil, err
		}
		drop(engine.PoolKey(id))
		return e.Pool(ctx, id)
	case "notifications":
		return notificationSummary(e.Store().Notifications()), nil
	}
	return nil, fmt.Errorf("unknown table %q", table)
}

func notificationSummary(list []model.Notification) map[string]any {
	unread := 0
	for _, n := range list {
		if !n.Read {
			unread++
		}
	}
	out := map[string]any{"count": len(list), "unread": unread}
	if len(list) > 0 {
		out["latest_type"] = string(list[0].Type)
		out["latest_message"] = list[0].Message
	}
	return out
}

// plain converts v to the JSON data model (maps, slices, json.Number,
// strings, bools) so typed values compare against YAML literals.
func plain(v any) any {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return v
	}
	return out
}

// matchSubset reports whether every key of expected is present in actual
// with an equal value. Extra keys in actual are ignored.
func matchSubset(actual any, expected map[string]any) bool {
	if len(expected) == 0 {
		return true
	}
	m, ok := actual.(map[string]any)
	if !ok {
		return false
	}
	for key, want := range expected {
		got, ok := m[key]
		if !ok || !looseEqual(got, want) {
			return false
		}
	}
	return true
}

// looseEqual compares a plain actual value with a YAML-parsed expected one.
// Numbers and numeric strings compare as decimals, so 50, "50" and "50.0"
// are equal.
func looseEqual(actual, expected any) bool {
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}
	switch exp := expected.(type) {
	case map[string]any:
		return matchSubset(actual, exp)
	case []any:
		list, ok := actual.([]any)
		if !ok || len(list) != len(exp) {
			return false
		}
		for i := range exp {
			if !looseEqual(list[i], exp[i]) {
				return false
			}
		}
		return true
	case bool:
		b, ok := actual.(bool)
		return ok && b == exp
	}
	if a, ok := decimalOf(actual); ok {
		if e, ok := decimalOf(expected); ok {
			return a.Equal(e)
		}
	}
	return fmt.Sprint(actual) == fmt.Sprint(expected)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
