package measure

import (
	"github.com/askiada/emflow/pkg/pipeline/model"
)

type pipelineMeasure struct {
	Measure
}

func (pm *pipelineMeasure) New() error {
	pm.AddMetric(model.StartStep.Name)
	pm.AddMetric(model.EndStep.Name)

	return nil
}

func (pm *pipelineMeasure) PrepareStep(parentStep, step *model.StepInfo) error {
	pm.AddMetric(step.Name)

	return nil
}

func (pm *pipelineMeasure) OnStepDone(step *model.StepInfo, outcome model.Outcome) error {
	mt := pm.AddMetric(step.Name)
	mt.AddDuration(outcome.Duration)
	mt.AddOutcome(outcome.Success)

	return nil
}

func (pm *pipelineMeasure) Finish(result *model.Result) error {
	pm.AddMetric(model.EndStep.Name).AddTotalDuration(result.Duration)

	return nil
}

// PipelineMeasure records the duration and outcome of every step into measure.
func PipelineMeasure(measure Measure) model.PipelineOption {
	return &pipelineMeasure{measure}
}
