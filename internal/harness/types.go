package harness

import "github.com/roach88/marcshift/internal/ir"

// TraceEvent records one case conversion for the trace.
// Seq and ID are those of the logged conversion; both are zero when the
// conversion failed and nothing was logged.
type TraceEvent struct {
	Case      string       `json:"case"`
	Direction ir.Direction `json:"direction"`
	Seq       int64        `json:"seq"`
	ID        string       `json:"id,omitempty"`
	Input     *ir.Record   `json:"input"`
	Output    *ir.Record   `json:"output,omitempty"`
	Missing   []string     `json:"missing,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every case expectation and assertion holds.
	Pass bool `json:"pass"`

	// Trace contains one event per case, in case order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a case event to the trace.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}

// Event returns the trace event for the named case.
func (r *Result) Event(caseName string) (TraceEvent, bool) {
	for _, ev := range r.Trace {
		if ev.Case == caseName {
			return ev, true
		}
	}
	return TraceEvent{}, false
}
