package converter

import "github.com/pkg/errors"

var (
	ErrUnsupportedFormat    = errors.New("unsupported format")
	ErrOutputDirMustBeSet   = errors.New("output directory must be set")
	ErrDestinationMustBeSet = errors.New("destination must be set")
)
