package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/askiada/emflow/pkg/pipeline/model"
)

// Pipeline is a sequence of steps. A pipeline runs once.
type Pipeline struct {
	name   string
	logger logrus.FieldLogger
	opts   []model.PipelineOption

	mu      sync.Mutex
	steps   []*Step
	names   map[string]struct{}
	state   model.State
	current string
	ran     bool
}

// New creates a new pipeline. A nil logger means the standard logrus logger.
func New(name string, logger logrus.FieldLogger, opts ...model.PipelineOption) (*Pipeline, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	pipe := &Pipeline{
		name:   name,
		logger: logger.WithField("pipeline", name),
		opts:   opts,
		names:  make(map[string]struct{}),
		state:  model.Pending,
	}

	for _, opt := range opts {
		err := opt.New()
		if err != nil {
			return nil, errors.Wrap(err, "unable to apply pipeline option")
		}
	}

	return pipe, nil
}

// Name returns the name of the pipeline.
func (p *Pipeline) Name() string {
	return p.name
}

// AddStep appends a step. Step names are unique within a pipeline.
func (p *Pipeline) AddStep(step Step) error {
	if step.Name == "" {
		return ErrStepNameMustBeSet
	}

	if step.Action == nil {
		return errors.Wrapf(ErrActionMustBeSet, "step %s", step.Name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ran {
		return ErrAlreadyRun
	}

	if _, ok := p.names[step.Name]; ok {
		return errors.Wrapf(ErrDuplicateStep, "step %s", step.Name)
	}

	parent := model.StartStep
	if n := len(p.steps); n > 0 {
		parent = p.steps[n-1].info(n - 1)
	}

	s := step
	p.steps = append(p.steps, &s)
	p.names[s.Name] = struct{}{}

	info := s.info(len(p.steps) - 1)
	for _, opt := range p.opts {
		err := opt.PrepareStep(parent, info)
		if err != nil {
			p.logger.WithError(err).WithField("step", s.Name).Warn("unable to prepare step in pipeline option")
		}
	}

	return nil
}

// State returns the state of the pipeline.
func (p *Pipeline) State() model.State {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.state
}

// Current returns the name of the running step, empty when no step runs.
func (p *Pipeline) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.current
}

func (p *Pipeline) setCurrent(state model.State, step string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state = state
	p.current = step
}

// Run runs the steps in order and returns the result of the run. Step
// failures are reported in the result, not as an error.
func (p *Pipeline) Run(ctx context.Context) (*model.Result, error) {
	p.mu.Lock()
	if p.ran {
		p.mu.Unlock()

		return nil, ErrAlreadyRun
	}

	if len(p.steps) == 0 {
		p.mu.Unlock()

		return nil, ErrNoSteps
	}

	p.ran = true
	steps := p.steps
	p.mu.Unlock()

	startTime := time.Now()
	result := &model.Result{Name: p.name}
	state := model.Succeeded
	input := ""

	p.logger.WithField("steps", len(steps)).Info("pipeline started")

	for i, step := range steps {
		p.setCurrent(model.Running, step.Name)

		outcome := p.runStep(ctx, step, input)
		result.Steps = append(result.Steps, outcome)

		info := step.info(i)
		for _, opt := range p.opts {
			err := opt.OnStepDone(info, outcome)
			if err != nil {
				p.logger.WithError(err).WithField("step", step.Name).Warn("unable to record step in pipeline option")
			}
		}

		if !outcome.Success {
			if step.Required {
				state = model.Failed

				break
			}

			state = model.Degraded
		}

		input = outcome.Output
	}

	result.State = state
	result.Success = state != model.Failed
	result.Duration = time.Since(startTime)

	p.setCurrent(state, "")

	for _, opt := range p.opts {
		err := opt.Finish(copyResult(result))
		if err != nil {
			p.logger.WithError(err).Warn("unable to finish pipeline option")
		}
	}

	p.logger.WithFields(logrus.Fields{
		"state":    string(state),
		"duration": result.Duration.String(),
	}).Info("pipeline finished")

	return copyResult(result), nil
}

func (p *Pipeline) runStep(ctx context.Context, step *Step, input string) model.Outcome {
	logger := p.logger.WithFields(logrus.Fields{"step": step.Name, "path": step.Output})
	outcome := model.Outcome{
		Step:     step.Name,
		Required: step.Required,
		Input:    input,
		Output:   step.Output,
	}

	startTime := time.Now()

	var (
		output string
		err    error
	)

	if err = ctx.Err(); err == nil {
		logger.Debug("step started")
		output, err = step.run(ctx, StepIO{Input: input, Output: step.Output})
	}

	outcome.Duration = time.Since(startTime)

	if err != nil {
		outcome.Err = &StepFailure{Step: step.Name, Cause: err}
		outcome.Diagnostic = err.Error()

		if step.Required {
			logger.WithError(err).Error("required step failed")
		} else {
			logger.WithError(err).Warn("optional step failed")
		}

		return outcome
	}

	if output != "" {
		outcome.Output = output
	}

	outcome.Success = true
	logger.WithFields(logrus.Fields{
		"path":     outcome.Output,
		"duration": outcome.Duration.String(),
	}).Info("step succeeded")

	return outcome
}

func copyResult(r *model.Result) *model.Result {
	out := *r
	out.Steps = append([]model.Outcome(nil), r.Steps...)

	return &out
}
