package drawer

import (
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/askiada/emflow/pkg/pipeline/measure"
	"github.com/askiada/emflow/pkg/pipeline/model"
)

type pipelineDrawer struct {
	Drawer
	m       measure.Measure
	parents map[string]string
	last    string
}

func (pd *pipelineDrawer) New() error {
	err := pd.AddStep(model.StartStep.Name)
	if err != nil {
		return errors.Wrap(err, "unable to add start step to drawer")
	}
	err = pd.AddStep(model.EndStep.Name)
	if err != nil {
		return errors.Wrap(err, "unable to add end step to drawer")
	}

	return nil
}

func (pd *pipelineDrawer) PrepareStep(parentStep, step *model.StepInfo) error {
	err := pd.AddStep(step.Name)
	if err != nil {
		return err
	}
	err = pd.AddLink(parentStep.Name, step.Name)
	if err != nil {
		return err
	}

	pd.parents[step.Name] = parentStep.Name
	pd.last = step.Name

	return nil
}

func (pd *pipelineDrawer) OnStepDone(step *model.StepInfo, outcome model.Outcome) error {
	err := pd.SetOutcome(outcome)
	if err != nil {
		return err
	}

	if outcome.Input == "" {
		return nil
	}

	return pd.LabelLink(pd.parents[step.Name], step.Name, filepath.Base(outcome.Input))
}

func (pd *pipelineDrawer) Finish(result *model.Result) error {
	if pd.last != "" {
		err := pd.AddLink(pd.last, model.EndStep.Name)
		if err != nil {
			return errors.Wrap(err, "unable to link end step")
		}

		if n := len(result.Steps); n > 0 && result.Steps[n-1].Step == pd.last && result.Steps[n-1].Output != "" {
			err = pd.LabelLink(pd.last, model.EndStep.Name, filepath.Base(result.Steps[n-1].Output))
			if err != nil {
				return err
			}
		}
	}

	err := pd.SetOutcome(model.Outcome{
		Step:     model.EndStep.Name,
		Success:  result.State == model.Succeeded,
		Required: result.State == model.Failed,
	})
	if err != nil {
		return errors.Wrap(err, "unable to colour end step")
	}

	err = pd.SetTotalTime(model.EndStep.Name, result.Duration)
	if err != nil {
		return errors.Wrap(err, "unable to set total time")
	}

	if pd.m != nil {
		err = pd.AddMeasure(pd.m)
		if err != nil {
			return errors.Wrap(err, "unable to add measure")
		}
	}

	err = pd.Draw()
	if err != nil {
		return errors.Wrap(err, "unable to draw pipeline")
	}

	return nil
}

// PipelineDrawer draws the run once it finished. The measure is optional.
func PipelineDrawer(drawer Drawer, measure measure.Measure) model.PipelineOption {
	return &pipelineDrawer{Drawer: drawer, m: measure, parents: map[string]string{}}
}
