// Package config loads the emflow configuration file. Every key is optional:
// unset keys fall back to Default.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var ErrUnsupportedConfig = pkgerrors.New("unsupported config file")

func ptrTo[T any](v T) *T {
	return &v
}

// RawRange is the testbench sweep as written in the file.
type RawRange struct {
	Start   *float64 `yaml:"start,omitempty" json:"start,omitempty"`
	Stop    *float64 `yaml:"stop,omitempty" json:"stop,omitempty"`
	Points  *int     `yaml:"points,omitempty" json:"points,omitempty"`
	Spacing *string  `yaml:"spacing,omitempty" json:"spacing,omitempty"`
}

// RawFileConfig is the configuration file as written. A nil field is unset.
type RawFileConfig struct {
	OutputDir          *string   `yaml:"outputDir,omitempty" json:"outputDir,omitempty"`
	Format             *string   `yaml:"format,omitempty" json:"format,omitempty"`
	TouchstoneLayout   *string   `yaml:"touchstoneLayout,omitempty" json:"touchstoneLayout,omitempty"`
	FrequencyUnit      *string   `yaml:"frequencyUnit,omitempty" json:"frequencyUnit,omitempty"`
	ReferenceImpedance *float64  `yaml:"referenceImpedance,omitempty" json:"referenceImpedance,omitempty"`
	StrictMagnitude    *bool     `yaml:"strictMagnitude,omitempty" json:"strictMagnitude,omitempty"`
	CreateTestbench    *bool     `yaml:"createTestbench,omitempty" json:"createTestbench,omitempty"`
	Verify             *bool     `yaml:"verify,omitempty" json:"verify,omitempty"`
	VerifyTolerance    *float64  `yaml:"verifyTolerance,omitempty" json:"verifyTolerance,omitempty"`
	Testbench          *RawRange `yaml:"testbench,omitempty" json:"testbench,omitempty"`
	ExtractType        *string   `yaml:"extractType,omitempty" json:"extractType,omitempty"`
	BatchConcurrency   *int      `yaml:"batchConcurrency,omitempty" json:"batchConcurrency,omitempty"`
	DrawWorkflow       *bool     `yaml:"drawWorkflow,omitempty" json:"drawWorkflow,omitempty"`
}

// Default returns the configuration used for unset keys.
func Default() *RawFileConfig {
	return &RawFileConfig{
		OutputDir:          ptrTo("workflow_output"),
		Format:             ptrTo("touchstone"),
		TouchstoneLayout:   ptrTo("RI"),
		FrequencyUnit:      ptrTo("GHz"),
		ReferenceImpedance: ptrTo(50.0),
		StrictMagnitude:    ptrTo(false),
		CreateTestbench:    ptrTo(true),
		Verify:             ptrTo(true),
		VerifyTolerance:    ptrTo(1e-6),
		Testbench: &RawRange{
			Start:   ptrTo(0.0),
			Stop:    ptrTo(10e9),
			Points:  ptrTo(201),
			Spacing: ptrTo("LIN"),
		},
		ExtractType:      ptrTo("all"),
		BatchConcurrency: ptrTo(4),
		DrawWorkflow:     ptrTo(false),
	}
}

func pick[T any](base, overlay *T) *T {
	if overlay != nil {
		return overlay
	}

	return base
}

// Merge returns base with every field set in overlay replacing it. The
// testbench range is merged key by key. Neither argument is modified.
func Merge(base, overlay *RawFileConfig) *RawFileConfig {
	if base == nil {
		base = &RawFileConfig{}
	}

	if overlay == nil {
		overlay = &RawFileConfig{}
	}

	return &RawFileConfig{
		OutputDir:          pick(base.OutputDir, overlay.OutputDir),
		Format:             pick(base.Format, overlay.Format),
		TouchstoneLayout:   pick(base.TouchstoneLayout, overlay.TouchstoneLayout),
		FrequencyUnit:      pick(base.FrequencyUnit, overlay.FrequencyUnit),
		ReferenceImpedance: pick(base.ReferenceImpedance, overlay.ReferenceImpedance),
		StrictMagnitude:    pick(base.StrictMagnitude, overlay.StrictMagnitude),
		CreateTestbench:    pick(base.CreateTestbench, overlay.CreateTestbench),
		Verify:             pick(base.Verify, overlay.Verify),
		VerifyTolerance:    pick(base.VerifyTolerance, overlay.VerifyTolerance),
		Testbench:          mergeRange(base.Testbench, overlay.Testbench),
		ExtractType:        pick(base.ExtractType, overlay.ExtractType),
		BatchConcurrency:   pick(base.BatchConcurrency, overlay.BatchConcurrency),
		DrawWorkflow:       pick(base.DrawWorkflow, overlay.DrawWorkflow),
	}
}

func mergeRange(base, overlay *RawRange) *RawRange {
	switch {
	case base == nil && overlay == nil:
		return nil
	case base == nil:
		base = &RawRange{}
	case overlay == nil:
		overlay = &RawRange{}
	}

	return &RawRange{
		Start:   pick(base.Start, overlay.Start),
		Stop:    pick(base.Stop, overlay.Stop),
		Points:  pick(base.Points, overlay.Points),
		Spacing: pick(base.Spacing, overlay.Spacing),
	}
}

// LoadFile reads a YAML or JSON configuration file. A missing or empty file
// is an empty configuration.
func LoadFile(path string) (*RawFileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &RawFileConfig{}, nil
		}

		return nil, pkgerrors.Wrapf(err, "unable to read config file %s", path)
	}

	conf := &RawFileConfig{}

	if strings.TrimSpace(string(b)) == "" {
		return conf, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(strings.NewReader(string(b)))
		dec.KnownFields(true)

		err = dec.Decode(conf)
	case ".json":
		dec := json.NewDecoder(strings.NewReader(string(b)))
		dec.DisallowUnknownFields()

		err = dec.Decode(conf)
	default:
		return nil, pkgerrors.Wrapf(ErrUnsupportedConfig, "%s", path)
	}

	if err != nil {
		return nil, pkgerrors.Wrapf(err, "unable to decode config file %s", path)
	}

	return conf, nil
}
