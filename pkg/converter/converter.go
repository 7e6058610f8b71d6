// Package converter turns extracted samples and matrices into files in one
// output directory.
//
// Every operation has a boolean variant that logs the failure and reports
// false, and an error-returning variant for callers that chain results.
// Neither leaves a partially written file behind.
package converter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/askiada/emflow/pkg/format"
	"github.com/askiada/emflow/pkg/network"
	"github.com/askiada/emflow/pkg/units"
)

// Format is the target representation of an S-parameter dataset.
type Format string

const (
	Touchstone Format = "touchstone"
	CSV        Format = "csv"
	MATLAB     Format = "matlab"
)

var formatAliases = map[string]Format{
	"touchstone":  Touchstone,
	"interchange": Touchstone,
	"snp":         Touchstone,
	"csv":         CSV,
	"tabular":     CSV,
	"matlab":      MATLAB,
	"mat":         MATLAB,
}

// ParseFormat resolves a format name or one of its aliases.
func ParseFormat(s string) (Format, error) {
	f, ok := formatAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", errors.Wrapf(ErrUnsupportedFormat, "%q", s)
	}

	return f, nil
}

// FileName returns the conventional file name of a component exported in f.
func FileName(component string, ports int, f Format) (string, error) {
	resolved, err := ParseFormat(string(f))
	if err != nil {
		return "", err
	}

	switch resolved {
	case Touchstone:
		return component + format.TouchstoneExtension(ports), nil
	case CSV:
		return component + ".csv", nil
	default:
		return component + ".mat", nil
	}
}

// Converter owns an output directory and writes datasets into it.
type Converter struct {
	outputDir  string
	logger     logrus.FieldLogger
	touchstone format.TouchstoneOptions
	build      []network.BuildOption
}

// New creates the output directory if needed.
func New(outputDir string, opts ...Option) (*Converter, error) {
	if outputDir == "" {
		return nil, ErrOutputDirMustBeSet
	}

	c := &Converter{
		outputDir:  outputDir,
		logger:     logrus.StandardLogger(),
		touchstone: format.DefaultTouchstoneOptions(),
	}

	for _, opt := range opts {
		opt(c)
	}

	err := os.MkdirAll(outputDir, 0o755)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to create output directory %s", outputDir)
	}

	return c, nil
}

// OutputDir returns the directory relative destinations resolve into.
func (c *Converter) OutputDir() string {
	return c.outputDir
}

func (c *Converter) resolve(destination string) (string, error) {
	if destination == "" {
		return "", ErrDestinationMustBeSet
	}

	if filepath.IsAbs(destination) {
		return destination, nil
	}

	return filepath.Join(c.outputDir, destination), nil
}

// Convert reconstructs the network from samples and writes it in format f.
// It returns the written path.
func (c *Converter) Convert(samples network.Samples, destination string, f Format) (string, error) {
	resolved, err := ParseFormat(string(f))
	if err != nil {
		return "", err
	}

	path, err := c.resolve(destination)
	if err != nil {
		return "", err
	}

	// samples are validated through reconstruction whatever the target
	nw, err := network.Build(samples.Sweep, samples.Elements, c.build...)
	if err != nil {
		return "", err
	}

	switch resolved {
	case CSV:
		table, err := format.SamplesTable(samples)
		if err != nil {
			return "", err
		}

		return path, format.WriteTable(path, table)
	case Touchstone:
		return path, format.WriteTouchstone(path, nw, c.touchstone)
	}

	vars, err := format.NetworkVariables(nw)
	if err != nil {
		return "", err
	}

	return path, format.WriteMAT(path, vars)
}

// ConvertSParameters is Convert reporting success as a boolean. Failures are
// logged with the destination and cause.
func (c *Converter) ConvertSParameters(samples network.Samples, destination string, f Format) bool {
	path, err := c.Convert(samples, destination, f)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"path":   destinationOrPath(destination, path),
			"format": string(f),
		}).WithError(err).Error("unable to convert s-parameters")

		return false
	}

	c.logger.WithFields(logrus.Fields{"path": path, "format": string(f)}).Info("s-parameters converted")

	return true
}

// ExportMatrix writes a real matrix dump and returns its path.
func (c *Converter) ExportMatrix(dataset format.MatrixDataset, destination string) (string, error) {
	path, err := c.resolve(destination)
	if err != nil {
		return "", err
	}

	return path, format.WriteMatrix(path, dataset)
}

// ConvertMatrix is ExportMatrix reporting success as a boolean.
func (c *Converter) ConvertMatrix(dataset format.MatrixDataset, destination string) bool {
	path, err := c.ExportMatrix(dataset, destination)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"path": destinationOrPath(destination, path),
			"kind": string(dataset.Kind),
		}).WithError(err).Error("unable to convert matrix")

		return false
	}

	c.logger.WithFields(logrus.Fields{"path": path, "kind": string(dataset.Kind)}).Info("matrix exported")

	return true
}

// ConvertFrequencyUnits scales values from one unit to another.
func (c *Converter) ConvertFrequencyUnits(values []float64, from, to units.Unit) ([]float64, error) {
	out, err := units.Convert(values, from, to)
	if err != nil {
		c.logger.WithFields(logrus.Fields{"from": string(from), "to": string(to)}).WithError(err).Error("unable to convert frequency units")

		return nil, err
	}

	return out, nil
}

func destinationOrPath(destination, path string) string {
	if path != "" {
		return path
	}

	return fmt.Sprintf("%q", destination)
}
