package source

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/askiada/emflow/pkg/adapter"
	"github.com/askiada/emflow/pkg/format"
	"github.com/askiada/emflow/pkg/network"
)

var _ adapter.ElementExtractor = &Touchstone{}

// Touchstone serves an already exported .sNp file as a source.
type Touchstone struct {
	path string
	mu   sync.Mutex
	nw   *network.Network
}

// OpenTouchstone parses the file up front so that a malformed source fails
// before any step writes output.
func OpenTouchstone(path string) (*Touchstone, error) {
	nw, err := format.ReadTouchstoneFile(path)
	if err != nil {
		if errors.Is(err, format.ErrMalformed) {
			return nil, err
		}

		return nil, errors.Wrapf(adapter.ErrAdapterUnavailable, "%v", err)
	}

	return &Touchstone{path: path, nw: nw}, nil
}

// Name returns the file name without its extension.
func (t *Touchstone) Name() string {
	base := filepath.Base(t.path)

	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ExtractElements decomposes the stored matrices into magnitude/phase samples.
func (t *Touchstone) ExtractElements(ctx context.Context) (network.Samples, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return network.Samples{}, err
	}

	if t.nw == nil {
		return network.Samples{}, errors.Wrapf(adapter.ErrAdapterUnavailable, "%s is closed", t.path)
	}

	return t.nw.Elements(), nil
}

// Close drops the parsed network.
func (t *Touchstone) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nw = nil

	return nil
}
