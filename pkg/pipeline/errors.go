package pipeline

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrStepNameMustBeSet = errors.New("step name must be set")
	ErrActionMustBeSet   = errors.New("step action must be set")
	ErrDuplicateStep     = errors.New("step already added")
	ErrNoSteps           = errors.New("pipeline has no steps")
	ErrAlreadyRun        = errors.New("pipeline already run")
	ErrStepPanicked      = errors.New("step panicked")
)

// StepFailure is the error recorded for a step whose action failed.
type StepFailure struct {
	Step  string
	Cause error
}

func (e *StepFailure) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.Step, e.Cause)
}

func (e *StepFailure) Unwrap() error {
	return e.Cause
}
