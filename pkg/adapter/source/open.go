package source

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/askiada/emflow/pkg/adapter"
	"github.com/askiada/emflow/pkg/format"
)

// Source is an element extractor that knows the component it describes.
type Source interface {
	adapter.ElementExtractor
	Name() string
}

// Open picks the extractor matching the file extension: a YAML solution
// export or a Touchstone file.
func Open(path string) (Source, error) {
	if isProject(path) {
		p, err := OpenProject(path)
		if err != nil {
			return nil, err
		}

		return p, nil
	}

	if _, err := format.PortsFromExtension(path); err == nil {
		t, err := OpenTouchstone(path)
		if err != nil {
			return nil, err
		}

		return t, nil
	}

	return nil, errors.Wrapf(adapter.ErrAdapterUnavailable, "no extractor for %s", path)
}

// OpenMatrices opens a source of real matrices. Only solution exports carry them.
func OpenMatrices(path string) (adapter.MatrixExtractor, error) {
	if isProject(path) {
		p, err := OpenProject(path)
		if err != nil {
			return nil, err
		}

		return p, nil
	}

	return nil, errors.Wrapf(adapter.ErrAdapterUnavailable, "no matrix extractor for %s", path)
}

func isProject(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}
