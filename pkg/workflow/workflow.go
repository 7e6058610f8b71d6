// Package workflow assembles the pipelines that move simulation results into
// a design workspace.
//
// SParameter extracts S-parameters, converts them, imports the converted file
// and optionally generates and verifies a testbench around it. Matrix does the
// same for inductance, resistance and capacitance matrices. RunBatch runs
// several workflows side by side, each in its own output directory.
package workflow

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/askiada/emflow/pkg/config"
	"github.com/askiada/emflow/pkg/converter"
	"github.com/askiada/emflow/pkg/network"
	"github.com/askiada/emflow/pkg/pipeline"
	"github.com/askiada/emflow/pkg/pipeline/drawer"
	"github.com/askiada/emflow/pkg/pipeline/measure"
	"github.com/askiada/emflow/pkg/pipeline/model"
)

// Kind selects the workflow of a job.
type Kind string

const (
	SParameterKind Kind = "sparam"
	MatrixKind     Kind = "matrix"
)

// Job is one workflow invocation.
type Job struct {
	Kind      Kind   `yaml:"kind"`
	Source    string `yaml:"source"`
	Workspace string `yaml:"workspace"`
	Component string `yaml:"component"`
	// OutputDir holds the intermediate files. Empty means the configured
	// output directory.
	OutputDir string `yaml:"outputDir,omitempty"`
}

func (j Job) validate() error {
	switch {
	case j.Component == "":
		return errors.Wrap(ErrInvalidJob, "component must be set")
	case j.Source == "":
		return errors.Wrapf(ErrInvalidJob, "%s: source must be set", j.Component)
	case j.Workspace == "":
		return errors.Wrapf(ErrInvalidJob, "%s: workspace must be set", j.Component)
	}

	return nil
}

type options struct {
	logger       logrus.FieldLogger
	measure      measure.Measure
	pipelineOpts []model.PipelineOption
}

type Option func(o *options)

func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMeasure records the step durations of the run into m. The same measure
// can be shared by the jobs of a batch.
func WithMeasure(m measure.Measure) Option {
	return func(o *options) {
		o.measure = m
	}
}

func WithPipelineOptions(opts ...model.PipelineOption) Option {
	return func(o *options) {
		o.pipelineOpts = append(o.pipelineOpts, opts...)
	}
}

// flow carries what every step of a workflow needs.
type flow struct {
	cfg       *config.Config
	job       Job
	outputDir string
	logger    logrus.FieldLogger
	conv      *converter.Converter
	pipe      *pipeline.Pipeline
}

func newFlow(cfg *config.Config, job Job, opts ...Option) (*flow, error) {
	if cfg == nil {
		return nil, ErrConfigMustBeSet
	}

	err := job.validate()
	if err != nil {
		return nil, err
	}

	o := &options{logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(o)
	}

	outputDir := job.OutputDir
	if outputDir == "" {
		outputDir = cfg.OutputDir
	}

	outputDir, err = filepath.Abs(outputDir)
	if err != nil {
		return nil, errors.Wrap(err, "unable to resolve output directory")
	}

	logger := o.logger.WithFields(logrus.Fields{"component": job.Component, "workflow": string(job.Kind)})

	conv, err := converter.New(outputDir,
		converter.WithLogger(logger),
		converter.WithTouchstoneOptions(cfg.TouchstoneOptions()),
		converter.WithBuildOptions(cfg.BuildOptions()...),
	)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create converter")
	}

	pipeOpts := []model.PipelineOption{}
	if o.measure != nil {
		pipeOpts = append(pipeOpts, measure.PipelineMeasure(o.measure))
	}

	if cfg.DrawWorkflow {
		dotFile := filepath.Join(outputDir, job.Component+"_"+string(job.Kind)+".dot")
		pipeOpts = append(pipeOpts, drawer.PipelineDrawer(drawer.NewDOTDrawer(dotFile), o.measure))
	}

	pipeOpts = append(pipeOpts, o.pipelineOpts...)

	pipe, err := pipeline.New(job.Component, logger, pipeOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create pipeline")
	}

	return &flow{
		cfg:       cfg,
		job:       job,
		outputDir: outputDir,
		logger:    logger,
		conv:      conv,
		pipe:      pipe,
	}, nil
}

func (f *flow) path(name string) string {
	return filepath.Join(f.outputDir, name)
}

func (f *flow) addSteps(steps ...pipeline.Step) error {
	for _, s := range steps {
		err := f.pipe.AddStep(s)
		if err != nil {
			return errors.Wrapf(err, "unable to add step %s", s.Name)
		}
	}

	return nil
}

// closeSource releases an extractor and only logs when it cannot.
func (f *flow) closeSource(c interface{ Close() error }) {
	err := c.Close()
	if err != nil {
		f.logger.WithError(err).Warn("unable to close source")
	}
}

// TestbenchRange returns the range a testbench around componentFile sweeps:
// the configured one, or the sweep of the component when none is configured.
func TestbenchRange(cfg *config.Config, componentFile string) (network.FrequencyRange, error) {
	return testbenchRange(cfg, componentFile)
}

// New builds the pipeline matching the kind of the job.
func New(cfg *config.Config, job Job, opts ...Option) (*pipeline.Pipeline, error) {
	switch job.Kind {
	case SParameterKind, "":
		return SParameter(cfg, job, opts...)
	case MatrixKind:
		return Matrix(cfg, job, opts...)
	default:
		return nil, errors.Wrapf(ErrInvalidJob, "%s: unknown workflow %q", job.Component, job.Kind)
	}
}

// Run builds the pipeline of the job and runs it.
func Run(ctx context.Context, cfg *config.Config, job Job, opts ...Option) (*model.Result, error) {
	pipe, err := New(cfg, job, opts...)
	if err != nil {
		return nil, err
	}

	return pipe.Run(ctx)
}
