package drawer

import (
	"time"

	"github.com/askiada/emflow/pkg/pipeline/measure"
	"github.com/askiada/emflow/pkg/pipeline/model"
)

// Drawer is an interface that defines the methods for drawing a pipeline run.
type Drawer interface {
	// AddStep adds a step to the pipeline drawer.
	AddStep(stepName string) error
	// AddLink adds a link between parent and child steps.
	AddLink(parentStepName, childStepName string) error
	// LabelLink labels the link between parent and child steps, usually with the path handed over.
	LabelLink(parentStepName, childStepName, label string) error
	// SetOutcome colours the step after its outcome.
	SetOutcome(outcome model.Outcome) error
	// SetTotalTime sets the total time for the step.
	SetTotalTime(stepName string, totalTime time.Duration) error
	// AddMeasure adds a measure to the pipeline drawer.
	AddMeasure(measure measure.Measure) error
	// Draw creates a file with the pipeline graph.
	Draw() error
}
