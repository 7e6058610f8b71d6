package workflow

import "github.com/pkg/errors"

var (
	ErrConfigMustBeSet    = errors.New("config must be set")
	ErrInvalidJob         = errors.New("invalid job")
	ErrDuplicateComponent = errors.New("component appears in several jobs")
	ErrNoMatrices         = errors.New("no matrix extracted")
	ErrNothingToImport    = errors.New("nothing to import")
	ErrVerification       = errors.New("verification failed")
)
