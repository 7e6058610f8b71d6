package network

import "github.com/pkg/errors"

var (
	// ErrIncompletePortGrid is returned when the supplied port pairs do not
	// form a complete N×N grid.
	ErrIncompletePortGrid = errors.New("incomplete port grid")
	// ErrLengthMismatch is returned when a data array is not aligned with the sweep.
	ErrLengthMismatch = errors.New("length mismatch")
	// ErrInvalidSweep is returned for sweeps that are too short or not strictly increasing.
	ErrInvalidSweep = errors.New("invalid frequency sweep")
	// ErrNegativeMagnitude is returned when strict magnitude checking is enabled.
	ErrNegativeMagnitude = errors.New("negative magnitude")
	// ErrInvalidRange is returned for an invalid frequency range.
	ErrInvalidRange = errors.New("invalid frequency range")
)
