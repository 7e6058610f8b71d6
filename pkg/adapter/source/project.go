// Package source reads simulation results exported by the field solver.
package source

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/askiada/emflow/pkg/adapter"
	"github.com/askiada/emflow/pkg/format"
	"github.com/askiada/emflow/pkg/network"
	"github.com/askiada/emflow/pkg/units"
)

// ProjectFile is the solution export of a simulation project.
type ProjectFile struct {
	Name          string                 `yaml:"name,omitempty"`
	FrequencyUnit string                 `yaml:"frequencyUnit,omitempty"`
	Frequencies   []float64              `yaml:"frequencies,omitempty"`
	SParameters   []ElementEntry         `yaml:"sParameters,omitempty"`
	Matrices      map[string][][]float64 `yaml:"matrices,omitempty"`
}

// ElementEntry holds one S-parameter either as magnitude/phase in degrees or
// as real/imaginary parts.
type ElementEntry struct {
	Port      [2]int    `yaml:"port,flow"`
	Magnitude []float64 `yaml:"magnitude,omitempty,flow"`
	Phase     []float64 `yaml:"phase,omitempty,flow"`
	Real      []float64 `yaml:"real,omitempty,flow"`
	Imag      []float64 `yaml:"imag,omitempty,flow"`
}

func (e ElementEntry) element() (network.Element, error) {
	if e.Real != nil || e.Imag != nil {
		if e.Magnitude != nil || e.Phase != nil {
			return network.Element{}, errors.New("both magnitude/phase and real/imag are set")
		}

		return network.FromRealImag(e.Real, e.Imag)
	}

	return network.Element{
		Magnitude: append([]float64(nil), e.Magnitude...),
		Phase:     append([]float64(nil), e.Phase...),
	}, nil
}

var _ adapter.ElementExtractor = &Project{}
var _ adapter.MatrixExtractor = &Project{}

// Project is an open solution export. It must be closed once extraction is done.
type Project struct {
	path   string
	mu     sync.Mutex
	file   *ProjectFile
	closed bool
}

// OpenProject reads a YAML solution export.
func OpenProject(path string) (*Project, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(adapter.ErrAdapterUnavailable, "unable to open project %s: %v", path, err)
	}
	defer f.Close()

	file := &ProjectFile{}
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	err = dec.Decode(file)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to decode project %s", path)
	}

	err = file.checkMatrixNames()
	if err != nil {
		return nil, errors.Wrapf(err, "project %s", path)
	}

	return &Project{path: path, file: file}, nil
}

// checkMatrixNames rejects matrix names that only differ by case, since
// matrices are looked up regardless of case.
func (f *ProjectFile) checkMatrixNames() error {
	names := make([]string, 0, len(f.Matrices))
	for name := range f.Matrices {
		names = append(names, name)
	}
	sort.Strings(names)

	seen := make(map[string]string, len(names))
	for _, name := range names {
		key := strings.ToLower(name)
		if other, ok := seen[key]; ok {
			return errors.Wrapf(format.ErrMalformed, "matrices %q and %q only differ by case", other, name)
		}
		seen[key] = name
	}

	return nil
}

// Name returns the project name, falling back to the file name.
func (p *Project) Name() string {
	if p.file.Name != "" {
		return p.file.Name
	}

	base := filepath.Base(p.path)

	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (p *Project) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if p.closed {
		return errors.Wrapf(adapter.ErrAdapterUnavailable, "project %s is closed", p.path)
	}

	return nil
}

// ExtractElements returns the S-parameters with the sweep converted to hertz.
func (p *Project) ExtractElements(ctx context.Context) (network.Samples, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.check(ctx); err != nil {
		return network.Samples{}, err
	}

	if len(p.file.SParameters) == 0 {
		return network.Samples{}, errors.Errorf("project %s has no s-parameters", p.path)
	}

	unit := units.GHz
	if p.file.FrequencyUnit != "" {
		var err error

		unit, err = units.Parse(p.file.FrequencyUnit)
		if err != nil {
			return network.Samples{}, errors.Wrapf(err, "project %s", p.path)
		}
	}

	sweep, err := units.Convert(p.file.Frequencies, unit, units.Hz)
	if err != nil {
		return network.Samples{}, err
	}

	out := network.Samples{
		Sweep:    sweep,
		Elements: make(map[network.PortIndex]network.Element, len(p.file.SParameters)),
	}

	for _, entry := range p.file.SParameters {
		idx := network.PortIndex{I: entry.Port[0], J: entry.Port[1]}
		if idx.I < 1 || idx.J < 1 {
			return network.Samples{}, errors.Errorf("project %s: invalid port %v", p.path, entry.Port)
		}

		if _, ok := out.Elements[idx]; ok {
			return network.Samples{}, errors.Errorf("project %s: S%d%d is listed twice", p.path, idx.I, idx.J)
		}

		el, err := entry.element()
		if err != nil {
			return network.Samples{}, errors.Wrapf(err, "project %s: S%d%d", p.path, idx.I, idx.J)
		}

		out.Elements[idx] = el
	}

	return out, nil
}

// ExtractMatrix returns a copy of the matrix of the given kind, or nil if the
// project has none.
func (p *Project) ExtractMatrix(ctx context.Context, kind format.MatrixKind) ([][]float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.check(ctx); err != nil {
		return nil, err
	}

	if values, ok := p.file.Matrices[string(kind)]; ok {
		return copyMatrix(values), nil
	}

	for name, values := range p.file.Matrices {
		if strings.EqualFold(name, string(kind)) {
			return copyMatrix(values), nil
		}
	}

	return nil, nil
}

func copyMatrix(values [][]float64) [][]float64 {
	out := make([][]float64, len(values))
	for i, row := range values {
		out[i] = append([]float64(nil), row...)
	}

	return out
}

// Close releases the project. Further extraction fails with ErrAdapterUnavailable.
func (p *Project) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	p.file = &ProjectFile{Name: p.file.Name}

	return nil
}

// WriteProject saves f as a solution export.
func WriteProject(path string, f *ProjectFile) error {
	raw, err := yaml.Marshal(f)
	if err != nil {
		return errors.Wrap(err, "unable to encode project")
	}

	return errors.Wrapf(os.WriteFile(path, raw, 0o644), "unable to write project %s", path)
}
