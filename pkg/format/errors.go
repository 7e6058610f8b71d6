package format

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrMalformed is returned by readers when a file does not follow the expected layout.
var ErrMalformed = errors.New("malformed file")

// ErrNonFinite is returned by writers given a NaN or infinite value.
var ErrNonFinite = errors.New("value is not finite")

// SerializationError reports a failure to write a dataset. The destination is
// never left partially written when it is returned.
type SerializationError struct {
	Path string
	Err  error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("unable to serialize %s: %v", e.Path, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

func serializationError(path string, err error) error {
	if err == nil {
		return nil
	}

	var serr *SerializationError
	if errors.As(err, &serr) {
		return err
	}

	return &SerializationError{Path: path, Err: err}
}
