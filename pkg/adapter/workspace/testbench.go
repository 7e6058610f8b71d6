package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/askiada/emflow/pkg/adapter"
	"github.com/askiada/emflow/pkg/format"
	"github.com/askiada/emflow/pkg/network"
)

const (
	testbenchSuffix = "_dsn"
	testbenchConfig = "config.yaml"

	SParameterTestbench      = "s_parameter"
	HarmonicBalanceTestbench = "harmonic_balance"

	defaultHarmonics = 7
)

var defaultPowerSweep = []float64{-20, -10, 0, 10}

// Testbench is the configuration written for a generated testbench.
type Testbench struct {
	Name            string                  `yaml:"name"`
	Type            string                  `yaml:"type"`
	ComponentFile   string                  `yaml:"component_file,omitempty"`
	CircuitFile     string                  `yaml:"circuit_file,omitempty"`
	Frequency       *network.FrequencyRange `yaml:"frequency,omitempty"`
	Measurements    []string                `yaml:"measurements,omitempty"`
	FundamentalFreq float64                 `yaml:"fundamental_freq,omitempty"`
	Harmonics       int                     `yaml:"harmonics,omitempty"`
	PowerSweep      []float64               `yaml:"power_sweep,omitempty,flow"`
}

// ReadTestbench loads a testbench configuration.
func ReadTestbench(path string) (*Testbench, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read testbench %s", path)
	}

	tb := &Testbench{}

	err = yaml.Unmarshal(raw, tb)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to decode testbench %s", path)
	}

	return tb, nil
}

var _ adapter.TestbenchGenerator = &Testbenches{}

// Testbenches generates testbench designs inside a workspace.
type Testbenches struct {
	root        string
	templateDir string
	logger      logrus.FieldLogger
}

type TestbenchOption func(t *Testbenches)

func WithTemplateDir(dir string) TestbenchOption {
	return func(t *Testbenches) {
		t.templateDir = dir
	}
}

func WithTestbenchLogger(logger logrus.FieldLogger) TestbenchOption {
	return func(t *Testbenches) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTestbenches returns a generator for the workspace at root. Templates are
// looked up in root/templates unless WithTemplateDir says otherwise.
func NewTestbenches(root string, opts ...TestbenchOption) (*Testbenches, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrapf(adapter.ErrAdapterUnavailable, "workspace %s: %v", root, err)
	}

	if !info.IsDir() {
		return nil, errors.Wrapf(adapter.ErrAdapterUnavailable, "workspace %s is not a directory", root)
	}

	t := &Testbenches{
		root:        root,
		templateDir: filepath.Join(root, "templates"),
		logger:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}

	return t, nil
}

// Dir returns the design directory of the named testbench.
func (t *Testbenches) Dir(name string) string {
	return filepath.Join(t.root, name+testbenchSuffix)
}

func (t *Testbenches) write(name string, v any) (string, error) {
	dir := t.Dir(name)

	err := os.MkdirAll(dir, dirPerm)
	if err != nil {
		return "", errors.Wrapf(err, "unable to create testbench directory %s", dir)
	}

	raw, err := yaml.Marshal(v)
	if err != nil {
		return "", errors.Wrap(err, "unable to encode testbench")
	}

	path := filepath.Join(dir, testbenchConfig)

	err = renameio.WriteFile(path, raw, filePerm)
	if err != nil {
		return "", errors.Wrapf(err, "unable to write testbench %s", path)
	}

	t.logger.WithFields(logrus.Fields{"testbench": name, "path": path}).Info("testbench created")

	return path, nil
}

// measurements lists every S-parameter of an n-port.
func measurements(n int) []string {
	out := make([]string, 0, n*n)
	for i := 1; i <= n; i++ {
		for j := 1; j <= n; j++ {
			if n >= 10 {
				out = append(out, fmt.Sprintf("S%d_%d", i, j))
			} else {
				out = append(out, fmt.Sprintf("S%d%d", i, j))
			}
		}
	}

	return out
}

// Generate writes an S-parameter testbench sweeping rng around componentFile.
func (t *Testbenches) Generate(ctx context.Context, componentFile, name string, rng network.FrequencyRange) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	err := rng.Validate()
	if err != nil {
		return "", err
	}

	ports, err := format.PortsFromExtension(componentFile)
	if err != nil {
		return "", err
	}

	return t.write(name, &Testbench{
		Name:          name,
		Type:          SParameterTestbench,
		ComponentFile: componentFile,
		Frequency:     &rng,
		Measurements:  measurements(ports),
	})
}

// GenerateHarmonicBalance writes a harmonic balance testbench. A zero
// harmonics count and an empty power sweep take their defaults.
func (t *Testbenches) GenerateHarmonicBalance(ctx context.Context, circuitFile, name string, fundamental float64, harmonics int, powerSweep []float64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if fundamental <= 0 {
		return "", errors.Wrap(network.ErrInvalidRange, "fundamental frequency must be positive")
	}

	if harmonics == 0 {
		harmonics = defaultHarmonics
	}

	if len(powerSweep) == 0 {
		powerSweep = defaultPowerSweep
	}

	return t.write(name, &Testbench{
		Name:            name,
		Type:            HarmonicBalanceTestbench,
		CircuitFile:     circuitFile,
		FundamentalFreq: fundamental,
		Harmonics:       harmonics,
		PowerSweep:      powerSweep,
	})
}

// GenerateFromTemplate overlays parameters on the named template and writes
// the result. The testbench name always wins over the template's.
func (t *Testbenches) GenerateFromTemplate(ctx context.Context, template, name string, parameters map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(t.templateDir, template+".yaml")

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "template %s not found", template)
	}

	config := map[string]any{}

	err = yaml.Unmarshal(raw, &config)
	if err != nil {
		return "", errors.Wrapf(err, "unable to decode template %s", template)
	}

	for k, v := range parameters {
		config[k] = v
	}

	config["name"] = name

	return t.write(name, config)
}
