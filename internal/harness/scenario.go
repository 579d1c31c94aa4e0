package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted session against a fresh engine: a list of steps
// with expected outcomes and assertions on the resulting trace and state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Start is the RFC 3339 instant the manual clock starts at. Defaults to
	// DefaultStart.
	Start string `yaml:"start,omitempty"`

	// Setup steps establish initial state. Any failure aborts the run.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow is the main session. Each step may state its expected outcome.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step invokes one engine operation or test control.
type Step struct {
	// Step names the operation: one of the Step* constants.
	Step string `yaml:"step"`

	// Args are decoded into the operation's request type.
	Args map[string]any `yaml:"args"`

	// Expect is the expected outcome. Nil means the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause is the expected outcome of a step.
type ExpectClause struct {
	// Case is "success" or the error kind the step must fail with.
	Case string `yaml:"case"`

	// Result is a subset match against the step's result.
	Result map[string]any `yaml:"result,omitempty"`
}

// CaseSuccess is the outcome of a step that returned no error.
const CaseSuccess = "success"

// Step names.
const (
	StepCreateChallenge = "create_challenge"
	StepContribute      = "contribute"
	StepFinalize        = "finalize"
	StepRemind          = "remind"
	StepRefresh         = "refresh"
	StepCreatePool      = "create_pool"
	StepDeposit         = "deposit"
	StepSendCrossBorder = "send_cross_border"
	StepAdvance         = "advance"
	StepFailNext        = "fail_next"
)

var knownSteps = map[string]bool{
	StepCreateChallenge: true,
	StepContribute:      true,
	StepFinalize:        true,
	StepRemind:          true,
	StepRefresh:         true,
	StepCreatePool:      true,
	StepDeposit:         true,
	StepSendCrossBorder: true,
	StepAdvance:         true,
	StepFailNext:        true,
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Step is the step name (trace_contains, trace_count).
	Step string `yaml:"step,omitempty"`

	// Args are matched as a subset of the invocation args (trace_contains).
	Args map[string]any `yaml:"args,omitempty"`

	// Table names the state view (final_state): challenge, progress,
	// participant, stats, balance, pool or notifications.
	Table string `yaml:"table,omitempty"`

	// Where selects the row (final_state).
	Where map[string]any `yaml:"where,omitempty"`

	// Expect is matched as a subset of the row (final_state).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of invocations (trace_count).
	Count int `yaml:"count,omitempty"`

	// Steps is the expected invocation order (trace_order).
	Steps []string `yaml:"steps,omitempty"`
}

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// DefaultStart is the clock's start instant when a scenario names none.
var DefaultStart = time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)

// LoadScenario reads and parses a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScenario parses scenario YAML. Unknown fields are rejected so typos
// like "assertion:" fail loudly.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// StartTime returns the parsed start instant.
func (s *Scenario) StartTime() (time.Time, error) {
	if s.Start == "" {
		return DefaultStart, nil
	}
	return time.Parse(time.RFC3339, s.Start)
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if _, err := s.StartTime(); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	for i, step := range s.Setup {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: setup steps cannot carry expect", i)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(step Step) error {
	if step.Step == "" {
		return fmt.Errorf("step is required")
	}
	if !knownSteps[step.Step] {
		return fmt.Errorf("unknown step %q", step.Step)
	}
	if step.Expect != nil && step.Expect.Case == "" {
		return fmt.Errorf("expect: case is required")
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Step == "" {
			return fmt.Errorf("assertions[%d]: step is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Steps) == 0 {
			return fmt.Errorf("assertions[%d]: steps list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Step == "" {
			return fmt.Errorf("assertions[%d]: step is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if !knownTables[a.Table] {
			return fmt.Errorf("assertions[%d]: unknown table %q", index, a.Table)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
