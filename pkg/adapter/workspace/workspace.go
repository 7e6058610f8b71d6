// Package workspace imports converted files into a design workspace and
// generates testbenches around them.
//
// A workspace is a directory. Imported files are copied into its data
// directory and every component gets a manifest next to it.
package workspace

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/askiada/emflow/pkg/adapter"
	"github.com/askiada/emflow/pkg/format"
	"github.com/askiada/emflow/pkg/units"
)

const (
	// DataDir is where imported files are copied, relative to the workspace.
	DataDir = "data"

	manifestSuffix = ".component.yaml"
	filePerm       = 0o644
	dirPerm        = 0o755
)

var ErrUnsupportedFile = errors.New("unsupported file type")

// FileKind tells what an imported file contains.
type FileKind string

const (
	SParameterFile FileKind = "s-parameter"
	TableFile      FileKind = "table"
	MatrixFile     FileKind = "matrix"
	MATFile        FileKind = "matlab"
)

// ComponentFile is one file of a component, relative to the workspace.
type ComponentFile struct {
	Path   string            `yaml:"path"`
	Kind   FileKind          `yaml:"kind"`
	Ports  int               `yaml:"ports,omitempty"`
	Points int               `yaml:"points,omitempty"`
	Start  string            `yaml:"start,omitempty"`
	Stop   string            `yaml:"stop,omitempty"`
	Matrix format.MatrixKind `yaml:"matrix,omitempty"`
}

// Component is the manifest written for every imported component.
type Component struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description,omitempty"`
	Files       []ComponentFile `yaml:"files"`
}

var _ adapter.Importer = &Workspace{}

// Workspace imports files into a workspace directory.
type Workspace struct {
	root   string
	logger logrus.FieldLogger
}

type Option func(w *Workspace)

func WithLogger(logger logrus.FieldLogger) Option {
	return func(w *Workspace) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// Open checks that the workspace exists and prepares its data directory.
func Open(root string, opts ...Option) (*Workspace, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrapf(adapter.ErrAdapterUnavailable, "workspace %s: %v", root, err)
	}

	if !info.IsDir() {
		return nil, errors.Wrapf(adapter.ErrAdapterUnavailable, "workspace %s is not a directory", root)
	}

	w := &Workspace{root: root, logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(w)
	}

	err = os.MkdirAll(filepath.Join(root, DataDir), dirPerm)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create data directory")
	}

	return w, nil
}

// Root returns the workspace directory.
func (w *Workspace) Root() string {
	return w.root
}

// inspect parses the file to make sure it is importable and describes it.
func inspect(path string) (ComponentFile, error) {
	cf := ComponentFile{}

	if ports, err := format.PortsFromExtension(path); err == nil {
		nw, err := format.ReadTouchstoneFile(path)
		if err != nil {
			return cf, err
		}

		cf.Kind = SParameterFile
		cf.Ports = ports
		cf.Points = len(nw.Sweep)
		cf.Start = units.Format(nw.Sweep.Start())
		cf.Stop = units.Format(nw.Sweep.Stop())

		return cf, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		t, err := format.ReadTable(path)
		if err != nil {
			return cf, err
		}

		rows, err := t.Rows()
		if err != nil {
			return cf, err
		}

		cf.Kind = TableFile
		cf.Points = rows

		return cf, nil
	case ".txt":
		m, err := format.ReadMatrix(path)
		if err != nil {
			return cf, err
		}

		cf.Kind = MatrixFile
		cf.Matrix = m.Kind

		return cf, nil
	case ".mat":
		return inspectMAT(path)
	default:
		return cf, errors.Wrapf(ErrUnsupportedFile, "%s", path)
	}
}

func inspectMAT(path string) (ComponentFile, error) {
	cf := ComponentFile{Kind: MATFile}

	f, err := os.Open(path)
	if err != nil {
		return cf, errors.Wrapf(err, "unable to open %s", path)
	}
	defer f.Close()

	vars, err := format.ReadMAT(f)
	if err != nil {
		return cf, err
	}

	if len(vars) == 0 {
		return cf, errors.Wrapf(format.ErrMalformed, "%s holds no variable", path)
	}

	for _, v := range vars {
		if v.Name == "freq" {
			cf.Points = v.Rows
		}
	}

	return cf, nil
}

// ImportFile validates the file, copies it into the data directory and
// records it in the component manifest. It returns the path of the copy.
func (w *Workspace) ImportFile(ctx context.Context, path, name, description string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if name == "" {
		return "", errors.New("component name must be set")
	}

	cf, err := inspect(path)
	if err != nil {
		return "", errors.Wrapf(err, "unable to import %s", path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "unable to read %s", path)
	}

	dest := filepath.Join(w.root, DataDir, filepath.Base(path))

	err = renameio.WriteFile(dest, raw, filePerm)
	if err != nil {
		return "", errors.Wrapf(err, "unable to copy %s", path)
	}

	cf.Path = filepath.Join(DataDir, filepath.Base(path))

	err = w.record(name, description, cf)
	if err != nil {
		return "", err
	}

	w.logger.WithFields(logrus.Fields{
		"component": name,
		"path":      dest,
		"kind":      string(cf.Kind),
	}).Info("file imported")

	return dest, nil
}

func (w *Workspace) manifestPath(name string) string {
	return filepath.Join(w.root, name+manifestSuffix)
}

// Component reads the manifest of an imported component.
func (w *Workspace) Component(name string) (*Component, error) {
	raw, err := os.ReadFile(w.manifestPath(name))
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read component %s", name)
	}

	c := &Component{}

	err = yaml.Unmarshal(raw, c)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to decode component %s", name)
	}

	return c, nil
}

// record adds or replaces cf in the manifest of the component.
func (w *Workspace) record(name, description string, cf ComponentFile) error {
	c, err := w.Component(name)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}

		c = &Component{Name: name}
	}

	if description != "" {
		c.Description = description
	}

	replaced := false
	for i := range c.Files {
		if c.Files[i].Path == cf.Path {
			c.Files[i] = cf
			replaced = true
		}
	}

	if !replaced {
		c.Files = append(c.Files, cf)
	}

	raw, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "unable to encode component")
	}

	return errors.Wrapf(renameio.WriteFile(w.manifestPath(name), raw, filePerm), "unable to write component %s", name)
}
