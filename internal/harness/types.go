package harness

// Trace event types.
const (
	EventInvocation   = "invocation"
	EventCompletion   = "completion"
	EventNotification = "notification"
)

// TraceEvent is one entry of a scenario trace. An invocation is followed by
// its completion and then by any notification the step recorded.
type TraceEvent struct {
	Seq     int64          `json:"seq"`
	Type    string         `json:"type"`
	Step    string         `json:"step,omitempty"`
	Args    map[string]any `json:"args,omitempty"`
	Outcome string         `json:"outcome,omitempty"`
	Result  any            `json:"result,omitempty"`
	Kind    string         `json:"kind,omitempty"`
	Message string         `json:"message,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace holds every invocation, completion and notification in order.
	Trace []TraceEvent `json:"trace"`

	// Errors describes each failed expectation. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) addInvocation(seq int64, step string, args map[string]any) {
	r.Trace = append(r.Trace, TraceEvent{Seq: seq, Type: EventInvocation, Step: step, Args: args})
}

func (r *Result) addCompletion(seq int64, step, outcome string, result any) {
	r.Trace = append(r.Trace, TraceEvent{Seq: seq, Type: EventCompletion, Step: step, Outcome: outcome, Result: result})
}

func (r *Result) addNotification(seq int64, kind, message string) {
	r.Trace = append(r.Trace, TraceEvent{Seq: seq, Type: EventNotification, Kind: kind, Message: message})
}
