package pipeline

import (
	"context"

	"github.com/pkg/errors"

	"github.com/askiada/emflow/pkg/pipeline/model"
)

// StepIO is handed to a step action. Input is the output of the previous
// step, empty for the first one. Output is the path the step declared.
type StepIO struct {
	Input  string
	Output string
}

// Action does the work of a step. It returns the path it actually wrote,
// or an empty string to keep the declared output.
type Action func(ctx context.Context, io StepIO) (string, error)

// Step is one unit of work of a pipeline.
type Step struct {
	Name     string
	Required bool
	Output   string
	Action   Action
}

func (s *Step) info(index int) *model.StepInfo {
	return &model.StepInfo{
		Name:     s.Name,
		Index:    index,
		Required: s.Required,
		Output:   s.Output,
	}
}

// run calls the action and turns a panic into an error.
func (s *Step) run(ctx context.Context, stepIO StepIO) (output string, err error) {
	defer func() {
		if r := recover(); r != nil {
			output = ""
			err = errors.Wrapf(ErrStepPanicked, "%v", r)
		}
	}()

	return s.Action(ctx, stepIO)
}
