package format

import (
	"fmt"
	"io"
	"math"
	"math/cmplx"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/askiada/emflow/pkg/network"
	"github.com/askiada/emflow/pkg/units"
)

// Layout selects how each complex element is written in a Touchstone record.
type Layout string

const (
	// RealImag writes real and imaginary parts.
	RealImag Layout = "RI"
	// MagAngle writes linear magnitude and angle in degrees.
	MagAngle Layout = "MA"
	// DBAngle writes magnitude in dB and angle in degrees.
	DBAngle Layout = "DB"
)

// maxPairsPerLine is the Touchstone limit on data pairs per line for N >= 3.
const maxPairsPerLine = 4

// TouchstoneOptions controls the option line of a Touchstone file.
type TouchstoneOptions struct {
	Unit   units.Unit
	Layout Layout
}

// DefaultTouchstoneOptions writes GHz and real/imaginary pairs.
func DefaultTouchstoneOptions() TouchstoneOptions {
	return TouchstoneOptions{Unit: units.GHz, Layout: RealImag}
}

func (o TouchstoneOptions) withDefaults() TouchstoneOptions {
	if o.Unit == "" {
		o.Unit = units.GHz
	}

	if u, err := units.Parse(string(o.Unit)); err == nil {
		o.Unit = u
	}

	if o.Layout == "" {
		o.Layout = RealImag
	}

	o.Layout = Layout(strings.ToUpper(string(o.Layout)))

	return o
}

// TouchstoneExtension returns the conventional file extension for n ports.
func TouchstoneExtension(n int) string {
	return fmt.Sprintf(".s%dp", n)
}

// WriteTouchstone writes nw as a Touchstone 1.x file.
func WriteTouchstone(path string, nw *network.Network, opts TouchstoneOptions) error {
	opts = opts.withDefaults()

	switch opts.Layout {
	case RealImag, MagAngle, DBAngle:
	default:
		return serializationError(path, errors.Errorf("unknown touchstone layout %q", opts.Layout))
	}

	if nw == nil || nw.Ports < 1 || len(nw.S) != len(nw.Sweep) {
		return serializationError(path, errors.Wrap(network.ErrLengthMismatch, "network is empty or not aligned with its sweep"))
	}

	err := checkFinite(nw)
	if err != nil {
		return serializationError(path, err)
	}

	freqs, err := units.Convert(nw.Sweep, units.Hz, opts.Unit)
	if err != nil {
		return serializationError(path, err)
	}

	return writeAtomic(path, func(w io.Writer) error {
		return encodeTouchstone(w, nw, freqs, opts)
	})
}

func encodeTouchstone(w io.Writer, nw *network.Network, freqs []float64, opts TouchstoneOptions) error {
	reference := nw.Reference
	if reference <= 0 {
		reference = network.DefaultReference
	}

	var b strings.Builder

	fmt.Fprintf(&b, "! %d-port S-parameter data\n", nw.Ports)
	fmt.Fprintf(&b, "! %d frequency points\n", len(nw.Sweep))
	fmt.Fprintf(&b, "# %s S %s R %s\n", strings.ToUpper(string(opts.Unit)), opts.Layout, formatFloat(reference))

	for k, m := range nw.S {
		b.WriteString(formatFloat(freqs[k]))

		pairs := orderedElements(m, nw.Ports)
		for p, c := range pairs {
			if nw.Ports >= 3 && p > 0 && (p%nw.Ports == 0 || p%nw.Ports%maxPairsPerLine == 0) {
				b.WriteString("\n")
			}

			x, y := splitComplex(c, opts.Layout)
			b.WriteString(" ")
			b.WriteString(formatFloat(x))
			b.WriteString(" ")
			b.WriteString(formatFloat(y))
		}

		b.WriteString("\n")

		_, err := io.WriteString(w, b.String())
		if err != nil {
			return errors.Wrapf(err, "unable to write frequency point %d", k)
		}

		b.Reset()
	}

	return nil
}

// orderedElements returns the matrix in Touchstone record order: column-major
// for two ports (11 21 12 22), row-major otherwise.
func orderedElements(m network.Matrix, n int) []complex128 {
	out := make([]complex128, 0, n*n)

	if n == 2 {
		return append(out, m[0][0], m[1][0], m[0][1], m[1][1])
	}

	for i := range n {
		out = append(out, m[i][:n]...)
	}

	return out
}

// checkFinite rejects NaN and infinite frequencies or elements.
func checkFinite(nw *network.Network) error {
	for k, f := range nw.Sweep {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return errors.Wrapf(ErrNonFinite, "frequency point %d is %v", k, f)
		}
	}

	for k, m := range nw.S {
		for i, row := range m {
			for j, c := range row {
				if cmplx.IsNaN(c) || cmplx.IsInf(c) {
					return errors.Wrapf(ErrNonFinite, "S%d%d at frequency point %d is %v", i+1, j+1, k, c)
				}
			}
		}
	}

	return nil
}

// minDB is written for magnitudes too small to have a finite dB value, zero
// included.
const minDB = -400

func splitComplex(c complex128, layout Layout) (float64, float64) {
	switch layout {
	case MagAngle:
		return cmplx.Abs(c), cmplx.Phase(c) * 180 / math.Pi
	case DBAngle:
		return math.Max(20*math.Log10(cmplx.Abs(c)), minDB), cmplx.Phase(c) * 180 / math.Pi
	default:
		return real(c), imag(c)
	}
}

func joinComplex(x, y float64, layout Layout) complex128 {
	switch layout {
	case MagAngle:
		return cmplx.Rect(x, y*math.Pi/180)
	case DBAngle:
		return cmplx.Rect(math.Pow(10, x/20), y*math.Pi/180)
	default:
		return complex(x, y)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
