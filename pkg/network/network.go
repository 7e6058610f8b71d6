// Package network reconstructs complex N-port scattering matrices from
// per-element magnitude and phase arrays sampled over a frequency sweep.
package network

import (
	"math"
	"math/cmplx"

	"github.com/pkg/errors"
)

// DefaultReference is the reference impedance used when none is given.
const DefaultReference = 50.0

// PortIndex identifies one element of the scattering matrix. Both indices are 1-based.
type PortIndex struct {
	I, J int
}

// Element holds the sweep-aligned samples of one matrix element. Phase is in degrees.
type Element struct {
	Magnitude []float64
	Phase     []float64
}

// FromRealImag converts real/imaginary arrays into an Element.
func FromRealImag(re, im []float64) (Element, error) {
	if len(re) != len(im) {
		return Element{}, errors.Wrapf(ErrLengthMismatch, "real has %d values, imaginary has %d", len(re), len(im))
	}

	el := Element{
		Magnitude: make([]float64, len(re)),
		Phase:     make([]float64, len(re)),
	}

	for k := range re {
		c := complex(re[k], im[k])
		el.Magnitude[k] = cmplx.Abs(c)
		el.Phase[k] = cmplx.Phase(c) * 180 / math.Pi
	}

	return el, nil
}

// Samples is what an extraction produces: a sweep and the elements measured over it.
type Samples struct {
	Sweep    Sweep
	Elements map[PortIndex]Element
}

// Matrix is one N×N complex scattering matrix.
type Matrix [][]complex128

// Network is a scattering matrix per sweep point.
type Network struct {
	Sweep     Sweep
	Ports     int
	Reference float64
	S         []Matrix
}

// BuildOption configures Build.
type BuildOption func(b *builder)

type builder struct {
	rejectNegative bool
	reference      float64
}

// RejectNegativeMagnitude makes Build fail on magnitudes below zero instead
// of accepting them as they are.
func RejectNegativeMagnitude() BuildOption {
	return func(b *builder) {
		b.rejectNegative = true
	}
}

// WithReference sets the reference impedance recorded on the network.
func WithReference(ohms float64) BuildOption {
	return func(b *builder) {
		if ohms > 0 {
			b.reference = ohms
		}
	}
}

// PortCount infers N from the supplied pairs and checks the grid is complete.
func PortCount[T any](elements map[PortIndex]T) (int, error) {
	if len(elements) == 0 {
		return 0, errors.Wrap(ErrIncompletePortGrid, "no elements")
	}

	n := int(math.Sqrt(float64(len(elements))))
	for n*n < len(elements) {
		n++
	}

	if n*n != len(elements) {
		return 0, errors.Wrapf(ErrIncompletePortGrid, "%d elements do not form a square grid", len(elements))
	}

	for i := 1; i <= n; i++ {
		for j := 1; j <= n; j++ {
			if _, ok := elements[PortIndex{I: i, J: j}]; !ok {
				return 0, errors.Wrapf(ErrIncompletePortGrid, "missing S%d%d for %d ports", i, j, n)
			}
		}
	}

	return n, nil
}

// Build reconstructs the network. Every array must have exactly one value per
// sweep point.
func Build(sweep Sweep, elements map[PortIndex]Element, opts ...BuildOption) (*Network, error) {
	cfg := &builder{reference: DefaultReference}
	for _, opt := range opts {
		opt(cfg)
	}

	err := sweep.Validate()
	if err != nil {
		return nil, err
	}

	n, err := PortCount(elements)
	if err != nil {
		return nil, err
	}

	points := len(sweep)

	for i := 1; i <= n; i++ {
		for j := 1; j <= n; j++ {
			el := elements[PortIndex{I: i, J: j}]
			if len(el.Magnitude) != points || len(el.Phase) != points {
				return nil, errors.Wrapf(ErrLengthMismatch, "S%d%d has %d magnitudes and %d phases for %d frequencies",
					i, j, len(el.Magnitude), len(el.Phase), points)
			}

			if !cfg.rejectNegative {
				continue
			}

			for k, m := range el.Magnitude {
				if m < 0 {
					return nil, errors.Wrapf(ErrNegativeMagnitude, "S%d%d at point %d is %g", i, j, k, m)
				}
			}
		}
	}

	nw := &Network{
		Sweep:     append(Sweep(nil), sweep...),
		Ports:     n,
		Reference: cfg.reference,
		S:         make([]Matrix, points),
	}

	for k := range sweep {
		m := make(Matrix, n)
		for i := range m {
			m[i] = make([]complex128, n)
			for j := range m[i] {
				el := elements[PortIndex{I: i + 1, J: j + 1}]
				m[i][j] = cmplx.Rect(el.Magnitude[k], el.Phase[k]*math.Pi/180)
			}
		}
		nw.S[k] = m
	}

	return nw, nil
}

// Elements decomposes the network back into magnitude/phase samples.
func (nw *Network) Elements() Samples {
	out := Samples{
		Sweep:    append(Sweep(nil), nw.Sweep...),
		Elements: make(map[PortIndex]Element, nw.Ports*nw.Ports),
	}

	for i := 1; i <= nw.Ports; i++ {
		for j := 1; j <= nw.Ports; j++ {
			el := Element{
				Magnitude: make([]float64, len(nw.S)),
				Phase:     make([]float64, len(nw.S)),
			}
			for k, m := range nw.S {
				el.Magnitude[k] = cmplx.Abs(m[i-1][j-1])
				el.Phase[k] = cmplx.Phase(m[i-1][j-1]) * 180 / math.Pi
			}
			out.Elements[PortIndex{I: i, J: j}] = el
		}
	}

	return out
}

// MaxDeviation returns the largest absolute difference between matching
// elements of two networks defined over the same sweep.
func MaxDeviation(a, b *Network) (float64, error) {
	if a.Ports != b.Ports {
		return 0, errors.Errorf("port count differs: %d != %d", a.Ports, b.Ports)
	}

	if len(a.S) != len(b.S) || len(a.Sweep) != len(b.Sweep) {
		return 0, errors.Wrapf(ErrLengthMismatch, "%d points != %d points", len(a.S), len(b.S))
	}

	var worst float64

	for k := range a.S {
		if d := math.Abs(a.Sweep[k] - b.Sweep[k]); d > coverTolerance*math.Max(math.Abs(a.Sweep[k]), 1) {
			return 0, errors.Errorf("frequency %d differs: %g != %g", k, a.Sweep[k], b.Sweep[k])
		}

		for i := range a.S[k] {
			for j := range a.S[k][i] {
				worst = math.Max(worst, cmplx.Abs(a.S[k][i][j]-b.S[k][i][j]))
			}
		}
	}

	return worst, nil
}
