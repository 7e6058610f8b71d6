package model

// PipelineOption defines the interface for pipeline options.
type PipelineOption interface {
	// New initialises the pipeline option.
	New() error
	// PrepareStep runs when a step is added, after its parent.
	PrepareStep(parentStep, step *StepInfo) error
	// OnStepDone runs once the step action returned or panicked.
	OnStepDone(step *StepInfo, outcome Outcome) error
	// Finish runs after the pipeline is finished.
	Finish(result *Result) error
}
