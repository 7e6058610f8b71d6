package workflow

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/askiada/emflow/pkg/adapter/source"
	"github.com/askiada/emflow/pkg/adapter/workspace"
	"github.com/askiada/emflow/pkg/config"
	"github.com/askiada/emflow/pkg/converter"
	"github.com/askiada/emflow/pkg/format"
	"github.com/askiada/emflow/pkg/network"
	"github.com/askiada/emflow/pkg/pipeline"
)

// Step names of the S-parameter workflow.
const (
	ExtractStep   = "extract"
	ConvertStep   = "convert"
	ImportStep    = "import"
	TestbenchStep = "generate-testbench"
	VerifyStep    = "verify"
)

// SParameter builds the pipeline extracting S-parameters from the job source
// into the job workspace. The testbench steps only run for Touchstone output,
// the only format a testbench can load.
func SParameter(cfg *config.Config, job Job, opts ...Option) (*pipeline.Pipeline, error) {
	job.Kind = SParameterKind

	f, err := newFlow(cfg, job, opts...)
	if err != nil {
		return nil, err
	}

	name := job.Component
	rawTable := f.path(name + "_raw.csv")

	err = f.addSteps(
		pipeline.Step{Name: ExtractStep, Required: true, Output: rawTable, Action: f.extract},
		pipeline.Step{Name: ConvertStep, Required: true, Output: f.path(name), Action: f.convert},
		pipeline.Step{
			Name:     ImportStep,
			Required: true,
			Output:   filepath.Join(job.Workspace, workspace.DataDir, name),
			Action:   f.importComponent,
		},
	)
	if err != nil {
		return nil, err
	}

	if !cfg.CreateTestbench {
		return f.pipe, nil
	}

	if cfg.Format != converter.Touchstone {
		f.logger.WithField("format", string(cfg.Format)).Info("testbench skipped, it needs a touchstone file")

		return f.pipe, nil
	}

	tbName := name + "_tb"
	tbConfig := filepath.Join(job.Workspace, tbName+"_dsn", "config.yaml")

	err = f.addSteps(pipeline.Step{
		Name:   TestbenchStep,
		Output: tbConfig,
		Action: func(ctx context.Context, io pipeline.StepIO) (string, error) {
			tb, err := workspace.NewTestbenches(job.Workspace, workspace.WithTestbenchLogger(f.logger))
			if err != nil {
				return "", err
			}

			rng, err := testbenchRange(cfg, io.Input)
			if err != nil {
				return "", err
			}

			return tb.Generate(ctx, io.Input, tbName, rng)
		},
	})
	if err != nil {
		return nil, err
	}

	if !cfg.Verify {
		return f.pipe, nil
	}

	err = f.addSteps(pipeline.Step{
		Name:   VerifyStep,
		Output: tbConfig,
		Action: func(ctx context.Context, io pipeline.StepIO) (string, error) {
			return "", f.verify(ctx, io.Input, rawTable)
		},
	})
	if err != nil {
		return nil, err
	}

	return f.pipe, nil
}

// testbenchRange returns the configured testbench range, or the sweep of the
// component when none was configured.
func testbenchRange(cfg *config.Config, componentFile string) (network.FrequencyRange, error) {
	if !cfg.TestbenchFromComponent {
		return cfg.Testbench, nil
	}

	nw, err := format.ReadTouchstoneFile(componentFile)
	if err != nil {
		return network.FrequencyRange{}, errors.Wrapf(err, "unable to read the sweep of %s", componentFile)
	}

	return nw.Sweep.Range(), nil
}

// extract writes the samples of the source into the raw table.
func (f *flow) extract(ctx context.Context, io pipeline.StepIO) (string, error) {
	src, err := source.Open(f.job.Source)
	if err != nil {
		return "", err
	}
	defer f.closeSource(src)

	samples, err := src.ExtractElements(ctx)
	if err != nil {
		return "", errors.Wrapf(err, "unable to extract s-parameters from %s", f.job.Source)
	}

	table, err := format.SamplesTable(samples)
	if err != nil {
		return "", err
	}

	err = format.WriteTable(io.Output, table)
	if err != nil {
		return "", err
	}

	f.logger.WithFields(logrus.Fields{
		"path":   io.Output,
		"source": src.Name(),
		"points": len(samples.Sweep),
	}).Info("s-parameters extracted")

	return "", nil
}

// convert turns the raw table into the configured format. The output is
// renamed after the port count, e.g. filter.s2p.
func (f *flow) convert(ctx context.Context, io pipeline.StepIO) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	table, err := format.ReadTable(io.Input)
	if err != nil {
		return "", err
	}

	samples, err := format.TableSamples(table)
	if err != nil {
		return "", err
	}

	ports, err := network.PortCount(samples.Elements)
	if err != nil {
		return "", err
	}

	fileName, err := converter.FileName(filepath.Base(io.Output), ports, f.cfg.Format)
	if err != nil {
		return "", err
	}

	return f.conv.Convert(samples, filepath.Join(filepath.Dir(io.Output), fileName), f.cfg.Format)
}

func (f *flow) importComponent(ctx context.Context, io pipeline.StepIO) (string, error) {
	ws, err := workspace.Open(f.job.Workspace, workspace.WithLogger(f.logger))
	if err != nil {
		return "", err
	}

	return ws.ImportFile(ctx, io.Input, f.job.Component, "imported from "+filepath.Base(f.job.Source))
}

// verify re-reads the component named by the testbench, compares it with the
// extracted samples and checks the testbench sweeps inside the component.
func (f *flow) verify(ctx context.Context, testbench, rawTable string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tb, err := workspace.ReadTestbench(testbench)
	if err != nil {
		return err
	}

	component, err := format.ReadTouchstoneFile(tb.ComponentFile)
	if err != nil {
		return errors.Wrapf(err, "unable to read component of testbench %s", tb.Name)
	}

	table, err := format.ReadTable(rawTable)
	if err != nil {
		return err
	}

	samples, err := format.TableSamples(table)
	if err != nil {
		return err
	}

	extracted, err := network.Build(samples.Sweep, samples.Elements, f.cfg.BuildOptions()...)
	if err != nil {
		return err
	}

	deviation, err := network.MaxDeviation(extracted, component)
	if err != nil {
		return errors.Wrap(ErrVerification, err.Error())
	}

	if deviation > f.cfg.VerifyTolerance {
		return errors.Wrapf(ErrVerification, "deviation %g exceeds tolerance %g", deviation, f.cfg.VerifyTolerance)
	}

	if tb.Frequency == nil || !component.Sweep.Covers(*tb.Frequency) {
		return errors.Wrapf(ErrVerification, "testbench %s sweeps outside the component data", tb.Name)
	}

	f.logger.WithFields(logrus.Fields{
		"path":      tb.ComponentFile,
		"deviation": deviation,
	}).Info("component verified")

	return nil
}
