package network

import (
	"math"
	"strings"

	"github.com/pkg/errors"
)

// Sweep is an ordered list of frequencies in hertz.
type Sweep []float64

// Validate checks that the sweep has at least two points and is strictly increasing.
func (s Sweep) Validate() error {
	if len(s) < 2 {
		return errors.Wrapf(ErrInvalidSweep, "need at least 2 points, got %d", len(s))
	}

	for k := 1; k < len(s); k++ {
		if !(s[k] > s[k-1]) {
			return errors.Wrapf(ErrInvalidSweep, "point %d (%g) does not follow %g", k, s[k], s[k-1])
		}
	}

	return nil
}

// Start returns the first frequency.
func (s Sweep) Start() float64 { return s[0] }

// Stop returns the last frequency.
func (s Sweep) Stop() float64 { return s[len(s)-1] }

// Range returns the linear range spanning the sweep with as many points.
func (s Sweep) Range() FrequencyRange {
	return FrequencyRange{Start: s.Start(), Stop: s.Stop(), Points: len(s), Spacing: Linear}
}

// Spacing selects how a FrequencyRange distributes its points.
type Spacing string

const (
	Linear Spacing = "LIN"
	Decade Spacing = "DEC"
	Octave Spacing = "OCT"
)

// FrequencyRange describes a sweep by its bounds rather than its points.
type FrequencyRange struct {
	Start   float64 `yaml:"start" json:"start"`
	Stop    float64 `yaml:"stop" json:"stop"`
	Points  int     `yaml:"points" json:"points"`
	Spacing Spacing `yaml:"spacing,omitempty" json:"spacing,omitempty"`
}

func (r FrequencyRange) spacing() Spacing {
	if r.Spacing == "" {
		return Linear
	}

	return Spacing(strings.ToUpper(string(r.Spacing)))
}

// Validate checks the bounds and the number of points.
func (r FrequencyRange) Validate() error {
	if r.Start < 0 {
		return errors.Wrap(ErrInvalidRange, "start frequency must be non-negative")
	}

	if r.Stop <= r.Start {
		return errors.Wrap(ErrInvalidRange, "stop frequency must be greater than start frequency")
	}

	if r.Points < 2 {
		return errors.Wrap(ErrInvalidRange, "number of frequency points must be at least 2")
	}

	switch r.spacing() {
	case Linear:
	case Decade, Octave:
		if r.Start == 0 {
			return errors.Wrapf(ErrInvalidRange, "%s spacing needs a positive start frequency", r.spacing())
		}
	default:
		return errors.Wrapf(ErrInvalidRange, "unknown spacing %q", r.Spacing)
	}

	return nil
}

// Sweep generates the points of the range.
func (r FrequencyRange) Sweep() (Sweep, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	out := make(Sweep, r.Points)
	last := float64(r.Points - 1)

	switch r.spacing() {
	case Decade:
		logStart, logStop := math.Log10(r.Start), math.Log10(r.Stop)
		step := (logStop - logStart) / last
		for i := range out {
			out[i] = math.Pow(10, logStart+float64(i)*step)
		}
	case Octave:
		logStart, logStop := math.Log2(r.Start), math.Log2(r.Stop)
		step := (logStop - logStart) / last
		for i := range out {
			out[i] = math.Pow(2, logStart+float64(i)*step)
		}
	default:
		step := (r.Stop - r.Start) / last
		for i := range out {
			out[i] = r.Start + float64(i)*step
		}
	}

	// pin the bounds so that coverage checks against the range are exact
	out[0], out[len(out)-1] = r.Start, r.Stop

	return out, nil
}

// coverTolerance absorbs the rounding introduced by unit scaling in files.
const coverTolerance = 1e-9

// Covers reports whether the range lies within the sweep bounds.
func (s Sweep) Covers(r FrequencyRange) bool {
	if len(s) == 0 {
		return false
	}

	slack := coverTolerance * math.Max(math.Abs(s.Stop()), 1)

	return r.Start >= s.Start()-slack && r.Stop <= s.Stop()+slack
}
