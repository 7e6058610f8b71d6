package model

import "time"

// State is the state of a pipeline run.
type State string

const (
	Pending   State = "PENDING"
	Running   State = "RUNNING"
	Succeeded State = "SUCCEEDED"
	Failed    State = "FAILED"
	// Degraded means every required step succeeded but an optional one failed.
	Degraded State = "DEGRADED"
)

// Outcome is what happened to one step.
type Outcome struct {
	Step     string
	Required bool
	Success  bool
	// Input is the output of the previous step, empty for the first one.
	Input string
	// Output is the declared output, or the path the action refined it to.
	Output     string
	Diagnostic string
	Err        error
	Duration   time.Duration
}

// Result is the immutable summary of a run. Steps holds the outcome of
// every step that ran, in order.
type Result struct {
	Name     string
	State    State
	Success  bool
	Steps    []Outcome
	Duration time.Duration
}

// Outcome returns the outcome of the named step, if it ran.
func (r *Result) Outcome(step string) (Outcome, bool) {
	for _, o := range r.Steps {
		if o.Step == step {
			return o, true
		}
	}

	return Outcome{}, false
}

// Failed returns the outcomes of the steps that failed.
func (r *Result) Failed() []Outcome {
	var out []Outcome

	for _, o := range r.Steps {
		if !o.Success {
			out = append(out, o)
		}
	}

	return out
}
