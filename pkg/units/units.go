// Package units converts frequency values between scale prefixes.
package units

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidUnit is returned when a frequency unit is not recognised.
var ErrInvalidUnit = errors.New("invalid frequency unit")

// Unit is a frequency unit.
type Unit string

const (
	Hz  Unit = "Hz"
	KHz Unit = "kHz"
	MHz Unit = "MHz"
	GHz Unit = "GHz"
)

var factors = map[Unit]float64{
	Hz:  1,
	KHz: 1e3,
	MHz: 1e6,
	GHz: 1e9,
}

// Parse returns the Unit matching s, ignoring case.
func Parse(s string) (Unit, error) {
	for u := range factors {
		if strings.EqualFold(string(u), strings.TrimSpace(s)) {
			return u, nil
		}
	}

	return "", errors.Wrapf(ErrInvalidUnit, "%q", s)
}

// Factor returns the number of hertz in one u.
func Factor(u Unit) (float64, error) {
	f, ok := factors[u]
	if !ok {
		return 0, errors.Wrapf(ErrInvalidUnit, "%q", string(u))
	}

	return f, nil
}

// Convert scales values from one unit to another. The input slice is left
// untouched. An unknown unit on either side is an error; the input is never
// returned in its place.
func Convert(values []float64, from, to Unit) ([]float64, error) {
	fromFactor, err := Factor(from)
	if err != nil {
		return nil, errors.Wrap(err, "unable to convert from")
	}

	toFactor, err := Factor(to)
	if err != nil {
		return nil, errors.Wrap(err, "unable to convert to")
	}

	scale := fromFactor / toFactor
	out := make([]float64, len(values))

	for i, v := range values {
		out[i] = v * scale
	}

	return out, nil
}

// Format renders a frequency in hertz with the largest fitting prefix.
func Format(hz float64) string {
	switch {
	case hz >= 1e9:
		return fmt.Sprintf("%.3f GHz", hz/1e9)
	case hz >= 1e6:
		return fmt.Sprintf("%.3f MHz", hz/1e6)
	case hz >= 1e3:
		return fmt.Sprintf("%.3f kHz", hz/1e3)
	default:
		return fmt.Sprintf("%.3f Hz", hz)
	}
}
