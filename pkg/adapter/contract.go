// Package adapter defines the boundaries between the conversion engine and the
// tools it exchanges data with. Implementations live in the source and
// workspace subpackages.
package adapter

import (
	"context"

	"github.com/pkg/errors"

	"github.com/askiada/emflow/pkg/format"
	"github.com/askiada/emflow/pkg/network"
)

// ErrAdapterUnavailable is returned when the tool behind an adapter cannot be
// reached, or the adapter was already closed.
var ErrAdapterUnavailable = errors.New("adapter unavailable")

// ElementExtractor pulls per-port magnitude/phase samples out of a simulation
// result. Close releases the underlying handle.
type ElementExtractor interface {
	ExtractElements(ctx context.Context) (network.Samples, error)
	Close() error
}

// MatrixExtractor pulls a real matrix of the given kind. An empty result means
// the source has no such matrix.
type MatrixExtractor interface {
	ExtractMatrix(ctx context.Context, kind format.MatrixKind) ([][]float64, error)
	Close() error
}

// Importer registers a file as a named component and returns where the
// component's copy of the file lives.
type Importer interface {
	ImportFile(ctx context.Context, path, name, description string) (string, error)
}

// TestbenchGenerator creates a simulation setup around an imported component
// and returns the path of its configuration.
type TestbenchGenerator interface {
	Generate(ctx context.Context, componentFile, name string, rng network.FrequencyRange) (string, error)
}
