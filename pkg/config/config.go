package config

import (
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/askiada/emflow/pkg/converter"
	"github.com/askiada/emflow/pkg/format"
	"github.com/askiada/emflow/pkg/network"
	"github.com/askiada/emflow/pkg/units"
)

var ErrInvalidConfig = pkgerrors.New("invalid config")

// Extraction kinds accepted by the matrix workflow.
const (
	ExtractAll         = "all"
	ExtractInductance  = "inductance"
	ExtractResistance  = "resistance"
	ExtractCapacitance = "capacitance"
)

// Config is the resolved configuration, every key set and checked.
type Config struct {
	OutputDir          string
	Format             converter.Format
	TouchstoneLayout   format.Layout
	FrequencyUnit      units.Unit
	ReferenceImpedance float64
	StrictMagnitude    bool
	CreateTestbench    bool
	Verify             bool
	VerifyTolerance    float64
	Testbench          network.FrequencyRange
	ExtractType        string
	BatchConcurrency   int
	DrawWorkflow       bool

	// TestbenchFromComponent is set when no testbench range was configured:
	// testbenches then sweep the frequencies of their component.
	TestbenchFromComponent bool
}

// Load reads the file at path and resolves it over the defaults.
func Load(path string) (*Config, error) {
	raw, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	return Resolve(raw)
}

func invalid(key string, err error) error {
	return pkgerrors.Wrapf(err, "invalid %s", key)
}

// Resolve merges raw over Default and validates the result.
func Resolve(raw *RawFileConfig) (*Config, error) {
	m := Merge(Default(), raw)

	c := &Config{
		OutputDir:          *m.OutputDir,
		ReferenceImpedance: *m.ReferenceImpedance,
		StrictMagnitude:    *m.StrictMagnitude,
		CreateTestbench:    *m.CreateTestbench,
		Verify:             *m.Verify,
		VerifyTolerance:    *m.VerifyTolerance,
		ExtractType:        strings.ToLower(*m.ExtractType),
		BatchConcurrency:   *m.BatchConcurrency,
		DrawWorkflow:       *m.DrawWorkflow,
		Testbench: network.FrequencyRange{
			Start:   *m.Testbench.Start,
			Stop:    *m.Testbench.Stop,
			Points:  *m.Testbench.Points,
			Spacing: network.Spacing(strings.ToUpper(*m.Testbench.Spacing)),
		},
	}

	c.TestbenchFromComponent = raw == nil || raw.Testbench == nil

	if c.OutputDir == "" {
		return nil, invalid("outputDir", converter.ErrOutputDirMustBeSet)
	}

	f, err := converter.ParseFormat(*m.Format)
	if err != nil {
		return nil, invalid("format", err)
	}

	c.Format = f

	switch layout := format.Layout(strings.ToUpper(*m.TouchstoneLayout)); layout {
	case format.RealImag, format.MagAngle, format.DBAngle:
		c.TouchstoneLayout = layout
	default:
		return nil, pkgerrors.Wrapf(ErrInvalidConfig, "touchstoneLayout: unknown layout %q", *m.TouchstoneLayout)
	}

	unit, err := units.Parse(*m.FrequencyUnit)
	if err != nil {
		return nil, invalid("frequencyUnit", err)
	}

	c.FrequencyUnit = unit

	if c.ReferenceImpedance <= 0 {
		return nil, pkgerrors.Wrapf(ErrInvalidConfig, "referenceImpedance must be positive, got %g", c.ReferenceImpedance)
	}

	if c.VerifyTolerance < 0 {
		return nil, pkgerrors.Wrapf(ErrInvalidConfig, "verifyTolerance must not be negative, got %g", c.VerifyTolerance)
	}

	if err := c.Testbench.Validate(); err != nil {
		return nil, invalid("testbench", err)
	}

	switch c.ExtractType {
	case ExtractAll, ExtractInductance, ExtractResistance, ExtractCapacitance:
	default:
		return nil, pkgerrors.Wrapf(ErrInvalidConfig, "extractType: unknown type %q", *m.ExtractType)
	}

	if c.BatchConcurrency < 1 {
		return nil, pkgerrors.Wrapf(ErrInvalidConfig, "batchConcurrency must be at least 1, got %d", c.BatchConcurrency)
	}

	return c, nil
}

// TouchstoneOptions returns the option line settings for written files.
func (c *Config) TouchstoneOptions() format.TouchstoneOptions {
	return format.TouchstoneOptions{Unit: c.FrequencyUnit, Layout: c.TouchstoneLayout}
}

// BuildOptions returns the options passed to network.Build.
func (c *Config) BuildOptions() []network.BuildOption {
	opts := []network.BuildOption{network.WithReference(c.ReferenceImpedance)}
	if c.StrictMagnitude {
		opts = append(opts, network.RejectNegativeMagnitude())
	}

	return opts
}

// MatrixKinds returns the matrices the matrix workflow extracts.
func (c *Config) MatrixKinds() []format.MatrixKind {
	if c.ExtractType == ExtractAll {
		return []format.MatrixKind{format.Inductance, format.Resistance, format.Capacitance}
	}

	return []format.MatrixKind{format.MatrixKind(c.ExtractType)}
}

func (c *Config) LogrusFields() logrus.Fields {
	testbench := units.Format(c.Testbench.Start) + " - " + units.Format(c.Testbench.Stop)
	if c.TestbenchFromComponent {
		testbench = "component sweep"
	}

	return logrus.Fields{
		"outputDir":          c.OutputDir,
		"format":             string(c.Format),
		"touchstoneLayout":   string(c.TouchstoneLayout),
		"frequencyUnit":      string(c.FrequencyUnit),
		"referenceImpedance": c.ReferenceImpedance,
		"strictMagnitude":    c.StrictMagnitude,
		"createTestbench":    c.CreateTestbench,
		"verify":             c.Verify,
		"verifyTolerance":    c.VerifyTolerance,
		"testbench":          testbench,
		"extractType":        c.ExtractType,
		"batchConcurrency":   c.BatchConcurrency,
		"drawWorkflow":       c.DrawWorkflow,
	}
}
