package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/renameio/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/askiada/emflow/pkg/adapter/source"
	"github.com/askiada/emflow/pkg/adapter/workspace"
	"github.com/askiada/emflow/pkg/config"
	"github.com/askiada/emflow/pkg/format"
	"github.com/askiada/emflow/pkg/pipeline"
)

// Step names of the matrix workflow. The last step is ImportStep.
const (
	ExtractMatricesStep = "extract-matrices"
	ExportMatricesStep  = "convert-and-export"
)

// MatrixBundle is the intermediate file of the matrix workflow.
type MatrixBundle struct {
	Component string                 `yaml:"component"`
	Matrices  []format.MatrixDataset `yaml:"matrices"`
}

// ReadMatrixBundle loads a bundle written by the extract-matrices step.
func ReadMatrixBundle(path string) (*MatrixBundle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read matrix bundle %s", path)
	}

	b := &MatrixBundle{}

	err = yaml.Unmarshal(raw, b)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to decode matrix bundle %s", path)
	}

	return b, nil
}

// Matrix builds the pipeline extracting the configured matrices from the job
// source into the job workspace.
func Matrix(cfg *config.Config, job Job, opts ...Option) (*pipeline.Pipeline, error) {
	job.Kind = MatrixKind

	f, err := newFlow(cfg, job, opts...)
	if err != nil {
		return nil, err
	}

	err = f.addSteps(
		pipeline.Step{
			Name:     ExtractMatricesStep,
			Required: true,
			Output:   f.path(job.Component + "_matrices.yaml"),
			Action:   f.extractMatrices,
		},
		pipeline.Step{Name: ExportMatricesStep, Required: true, Output: f.outputDir, Action: f.exportMatrices},
		pipeline.Step{
			Name:     ImportStep,
			Required: true,
			Output:   filepath.Join(job.Workspace, workspace.DataDir),
			Action:   f.importMatrices,
		},
	)
	if err != nil {
		return nil, err
	}

	return f.pipe, nil
}

func (f *flow) extractMatrices(ctx context.Context, io pipeline.StepIO) (string, error) {
	src, err := source.OpenMatrices(f.job.Source)
	if err != nil {
		return "", err
	}
	defer f.closeSource(src)

	bundle := &MatrixBundle{Component: f.job.Component}

	for _, kind := range f.cfg.MatrixKinds() {
		values, err := src.ExtractMatrix(ctx, kind)
		if err != nil {
			return "", errors.Wrapf(err, "unable to extract %s matrix", kind)
		}

		if len(values) == 0 {
			f.logger.WithField("kind", string(kind)).Info("no matrix of this kind, skipped")

			continue
		}

		ds := format.MatrixDataset{Kind: kind, Values: values}

		rows, cols, err := ds.Size()
		if err != nil {
			return "", errors.Wrapf(err, "%s matrix", kind)
		}

		f.logger.WithFields(logrus.Fields{"kind": string(kind), "size": fmt.Sprintf("%dx%d", rows, cols)}).Info("matrix extracted")

		bundle.Matrices = append(bundle.Matrices, ds)
	}

	if len(bundle.Matrices) == 0 {
		return "", errors.Wrapf(ErrNoMatrices, "%s", f.job.Source)
	}

	raw, err := yaml.Marshal(bundle)
	if err != nil {
		return "", errors.Wrap(err, "unable to encode matrix bundle")
	}

	err = renameio.WriteFile(io.Output, raw, 0o644)
	if err != nil {
		return "", errors.Wrapf(err, "unable to write matrix bundle %s", io.Output)
	}

	return "", nil
}

func matrixFileName(component string, kind format.MatrixKind) string {
	return component + "_" + string(kind) + ".txt"
}

// exportMatrices writes one numeric matrix file per matrix of the bundle.
func (f *flow) exportMatrices(ctx context.Context, io pipeline.StepIO) (string, error) {
	bundle, err := ReadMatrixBundle(io.Input)
	if err != nil {
		return "", err
	}

	for _, ds := range bundle.Matrices {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		_, err := f.conv.ExportMatrix(ds, filepath.Join(io.Output, matrixFileName(f.job.Component, ds.Kind)))
		if err != nil {
			return "", err
		}
	}

	f.logger.WithFields(logrus.Fields{"path": io.Output, "matrices": len(bundle.Matrices)}).Info("matrices exported")

	return "", nil
}

// importMatrices imports every matrix file of the component found in the
// exported directory.
func (f *flow) importMatrices(ctx context.Context, io pipeline.StepIO) (string, error) {
	files, err := filepath.Glob(filepath.Join(io.Input, f.job.Component+"_*.txt"))
	if err != nil {
		return "", errors.Wrap(err, "unable to list matrix files")
	}

	if len(files) == 0 {
		return "", errors.Wrapf(ErrNothingToImport, "no matrix file of %s in %s", f.job.Component, io.Input)
	}

	sort.Strings(files)

	ws, err := workspace.Open(f.job.Workspace, workspace.WithLogger(f.logger))
	if err != nil {
		return "", err
	}

	description := "imported from " + filepath.Base(f.job.Source)

	for _, file := range files {
		_, err := ws.ImportFile(ctx, file, f.job.Component, description)
		if err != nil {
			return "", err
		}
	}

	return "", nil
}
