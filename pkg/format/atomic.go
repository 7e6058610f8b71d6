package format

import (
	"bufio"
	"io"

	"github.com/google/renameio/v2"
	"github.com/pkg/errors"
)

const filePerm = 0o644

// writeAtomic streams fn's output to a temporary file next to path and
// renames it into place only once everything was written and flushed.
func writeAtomic(path string, fn func(w io.Writer) error) (err error) {
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(filePerm))
	if err != nil {
		return serializationError(path, errors.Wrap(err, "unable to create temporary file"))
	}

	defer func() {
		// no-op once the file was renamed
		cleanupErr := pending.Cleanup()
		if err == nil && cleanupErr != nil {
			err = serializationError(path, errors.Wrap(cleanupErr, "unable to clean up temporary file"))
		}
	}()

	buf := bufio.NewWriter(pending)

	err = fn(buf)
	if err != nil {
		return serializationError(path, err)
	}

	err = buf.Flush()
	if err != nil {
		return serializationError(path, errors.Wrap(err, "unable to flush"))
	}

	err = pending.CloseAtomicallyReplace()
	if err != nil {
		return serializationError(path, errors.Wrap(err, "unable to replace destination"))
	}

	return nil
}
