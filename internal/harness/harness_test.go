package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioDir = "../../testdata/scenarios"

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join(scenarioDir, name+".yaml"))
	require.NoError(t, err)
	return s
}

func mustParse(t *testing.T, doc string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(doc))
	require.NoError(t, err)
	return s
}

func TestRun_Scenarios(t *testing.T) {
	for _, name := range []string{"contribution_rollback", "savings_milestones", "cross_border_yield"} {
		t.Run(name, func(t *testing.T) {
			result, err := Run(context.Background(), loadTestScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_TraceShape(t *testing.T) {
	s := mustParse(t, `
name: shape
description: one challenge and one contribution
flow:
  - step: create_challenge
    args: {creator: GALICE, name: Trip, goal: 100, weekly: 10, weeks: 10}
  - step: contribute
    args: {challenge: "1", from: GALICE, amount: 30}
`)
	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	types := make([]string, len(result.Trace))
	for i, ev := range result.Trace {
		types[i] = ev.Type
		assert.Equal(t, int64(i+1), ev.Seq)
	}
	// 30 of 100 crosses the 25% milestone.
	assert.Equal(t, []string{
		EventInvocation, EventCompletion,
		EventInvocation, EventCompletion, EventNotification, EventNotification,
	}, types)
	assert.Equal(t, "Contributed 30.00 XLM to Trip", result.Trace[4].Message)
	assert.Equal(t, "milestone", result.Trace[5].Kind)
	assert.Equal(t, "Trip is 25% funded", result.Trace[5].Message)
}

func TestRun_Deterministic(t *testing.T) {
	s := loadTestScenario(t, "savings_milestones")

	first, err := Run(context.Background(), s)
	require.NoError(t, err)
	second, err := Run(context.Background(), s)
	require.NoError(t, err)

	a, err := MarshalTrace(s.Name, first)
	require.NoError(t, err)
	b, err := MarshalTrace(s.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_UnexpectedFailure(t *testing.T) {
	s := mustParse(t, `
name: unexpected
description: contributing to a missing challenge
flow:
  - step: contribute
    args: {challenge: "42", from: GALICE, amount: 10}
`)
	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected failure")
	assert.Equal(t, "CHALLENGE_NOT_FOUND", result.Trace[1].Outcome)
}

func TestRun_ExpectMismatch(t *testing.T) {
	s := mustParse(t, `
name: mismatch
description: wrong expectations are reported
flow:
  - step: create_challenge
    args: {creator: GALICE, name: Trip, goal: 100, weekly: 10, weeks: 10}
    expect:
      case: VALIDATION_ERROR
  - step: create_challenge
    args: {creator: GALICE, name: Car, goal: 100, weekly: 10, weeks: 10}
    expect:
      case: success
      result: {id: "7"}
`)
	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "expected case VALIDATION_ERROR, got success")
	assert.Contains(t, result.Errors[1], "does not match")
}

func TestRun_InvalidArgs(t *testing.T) {
	s := mustParse(t, `
name: bad_args
description: unknown request fields are validation errors
flow:
  - step: remind
    args: {usr: GALICE}
    expect:
      case: VALIDATION_ERROR
`)
	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_SetupFailureAborts(t *testing.T) {
	s := mustParse(t, `
name: setup_fails
description: setup errors stop the run
setup:
  - step: finalize
    args: {challenge: "9", by: GALICE}
flow:
  - step: remind
    args: {user: GALICE}
`)
	_, err := Run(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup step 0 (finalize)")
}

func TestRun_SetupNotificationsAreTraced(t *testing.T) {
	s := mustParse(t, `
name: setup_trace
description: setup notifications appear before the flow
setup:
  - step: create_challenge
    args: {creator: GALICE, name: Trip, goal: 100, weekly: 10, weeks: 10}
  - step: contribute
    args: {challenge: "1", from: GALICE, amount: 10}
flow:
  - step: remind
    args: {user: GALICE}
    expect:
      case: success
      result: {count: 0}
`)
	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)
	require.NotEmpty(t, result.Trace)
	assert.Equal(t, EventNotification, result.Trace[0].Type)
	assert.Equal(t, "Contributed 10.00 XLM to Trip", result.Trace[0].Message)
}

func TestRun_FinalStateErrors(t *testing.T) {
	s := mustParse(t, `
name: final_state_errors
description: final state failures name the field
flow:
  - step: create_challenge
    args: {creator: GALICE, name: Trip, goal: 100, weekly: 10, weeks: 10}
assertions:
  - type: final_state
    table: challenge
    where: {id: "1"}
    expect: {current_amount: 5}
  - type: final_state
    table: challenge
    where: {id: "1"}
    expect: {colour: blue}
  - type: final_state
    table: challenge
    expect: {is_active: true}
`)
	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "challenge.current_amount = 0")
	assert.Contains(t, result.Errors[1], `field "colour" to exist`)
	assert.Contains(t, result.Errors[2], "where.id is required")
}

func TestRunWithGolden(t *testing.T) {
	result, err := RunWithGolden(t, loadTestScenario(t, "contribution_rollback"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}
