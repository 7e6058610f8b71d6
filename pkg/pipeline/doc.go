// Package pipeline runs a named sequence of steps over files.
//
// Steps run one after the other. Every step receives the output of the
// previous one as its input and may refine its own output path. A required
// step that fails stops the run; an optional step that fails is recorded and
// the run carries on, ending DEGRADED instead of SUCCEEDED.
//
// Step actions run inside a recover boundary: an error or a panic becomes a
// StepFailure in the step outcome and never escapes Run.
//
// Options implementing model.PipelineOption observe the run. The measure and
// drawer packages provide options that record step durations and draw the
// run as a Graphviz graph.
package pipeline
