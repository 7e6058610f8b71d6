package format

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/askiada/emflow/pkg/network"
)

// MATVariable is a named double matrix stored column-major. Imag is nil for
// real variables.
type MATVariable struct {
	Name string
	Rows int
	Cols int
	Real []float64
	Imag []float64
}

func (v MATVariable) validate() error {
	if v.Name == "" {
		return errors.Wrap(ErrMalformed, "variable name is empty")
	}

	if v.Rows < 1 || v.Cols < 1 || len(v.Real) != v.Rows*v.Cols {
		return errors.Wrapf(network.ErrLengthMismatch, "variable %s: %dx%d does not match %d values",
			v.Name, v.Rows, v.Cols, len(v.Real))
	}

	if v.Imag != nil && len(v.Imag) != len(v.Real) {
		return errors.Wrapf(network.ErrLengthMismatch, "variable %s: %d imaginary values for %d real",
			v.Name, len(v.Imag), len(v.Real))
	}

	return nil
}

// MAT level 4 header: type, rows, cols, imaginary flag, name length.
// Type 0 is little-endian IEEE doubles stored as a full matrix.
type matHeader struct {
	Type    int32
	Rows    int32
	Cols    int32
	Imagf   int32
	NameLen int32
}

// WriteMAT writes the variables as a MATLAB level 4 file.
func WriteMAT(path string, vars []MATVariable) error {
	if len(vars) == 0 {
		return serializationError(path, errors.Wrap(ErrMalformed, "no variables to write"))
	}

	for _, v := range vars {
		if err := v.validate(); err != nil {
			return serializationError(path, err)
		}
	}

	return writeAtomic(path, func(w io.Writer) error {
		for _, v := range vars {
			if err := encodeMATVariable(w, v); err != nil {
				return errors.Wrapf(err, "unable to write variable %s", v.Name)
			}
		}

		return nil
	})
}

func encodeMATVariable(w io.Writer, v MATVariable) error {
	h := matHeader{
		Rows:    int32(v.Rows),
		Cols:    int32(v.Cols),
		NameLen: int32(len(v.Name) + 1),
	}
	if v.Imag != nil {
		h.Imagf = 1
	}

	err := binary.Write(w, binary.LittleEndian, h)
	if err != nil {
		return err
	}

	_, err = io.WriteString(w, v.Name+"\x00")
	if err != nil {
		return err
	}

	err = binary.Write(w, binary.LittleEndian, v.Real)
	if err != nil {
		return err
	}

	if v.Imag != nil {
		return binary.Write(w, binary.LittleEndian, v.Imag)
	}

	return nil
}

// Bounds on what ReadMAT accepts from a variable header.
const (
	maxMATName     = 4096
	maxMATElements = 1 << 26
	matChunk       = 1 << 13
)

// readDoubles reads n doubles chunk by chunk, so that a header announcing
// more data than the file holds fails before allocating all of it.
func readDoubles(r io.Reader, n int) ([]float64, error) {
	out := make([]float64, 0, min(n, matChunk))
	buf := make([]float64, min(n, matChunk))

	for len(out) < n {
		chunk := buf[:min(n-len(out), matChunk)]

		err := binary.Read(r, binary.LittleEndian, chunk)
		if err != nil {
			return nil, errors.Wrap(ErrMalformed, err.Error())
		}

		out = append(out, chunk...)
	}

	return out, nil
}

// ReadMAT reads the variables of a level 4 file written by WriteMAT.
func ReadMAT(r io.Reader) ([]MATVariable, error) {
	var out []MATVariable

	for {
		var h matHeader

		err := binary.Read(r, binary.LittleEndian, &h)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, errors.Wrap(ErrMalformed, err.Error())
		}

		if h.Type != 0 || h.Rows < 1 || h.Cols < 1 || h.NameLen < 2 {
			return nil, errors.Wrapf(ErrMalformed, "unsupported variable header %+v", h)
		}

		if h.NameLen > maxMATName || int64(h.Rows)*int64(h.Cols) > maxMATElements {
			return nil, errors.Wrapf(ErrMalformed, "variable header %+v exceeds the supported size", h)
		}

		name := make([]byte, h.NameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, errors.Wrap(ErrMalformed, err.Error())
		}

		v := MATVariable{
			Name: string(name[:len(name)-1]),
			Rows: int(h.Rows),
			Cols: int(h.Cols),
		}

		v.Real, err = readDoubles(r, v.Rows*v.Cols)
		if err != nil {
			return nil, err
		}

		if h.Imagf != 0 {
			v.Imag, err = readDoubles(r, len(v.Real))
			if err != nil {
				return nil, err
			}
		}

		out = append(out, v)
	}
}

// NetworkVariables lays a network out as MATLAB variables: freq (points x 1),
// Z0 (1 x 1) and one complex vector Sij per element.
func NetworkVariables(nw *network.Network) ([]MATVariable, error) {
	if nw == nil || nw.Ports < 1 || len(nw.S) != len(nw.Sweep) {
		return nil, errors.Wrap(network.ErrLengthMismatch, "network is empty or not aligned with its sweep")
	}

	reference := nw.Reference
	if reference <= 0 {
		reference = network.DefaultReference
	}

	points := len(nw.Sweep)
	vars := []MATVariable{
		{Name: "freq", Rows: points, Cols: 1, Real: append([]float64(nil), nw.Sweep...)},
		{Name: "Z0", Rows: 1, Cols: 1, Real: []float64{reference}},
	}

	for i := range nw.Ports {
		for j := range nw.Ports {
			v := MATVariable{
				Name: elementVariable(i+1, j+1, nw.Ports),
				Rows: points,
				Cols: 1,
				Real: make([]float64, points),
				Imag: make([]float64, points),
			}

			for k, m := range nw.S {
				v.Real[k], v.Imag[k] = real(m[i][j]), imag(m[i][j])
			}

			vars = append(vars, v)
		}
	}

	return vars, nil
}

func elementVariable(i, j, ports int) string {
	if ports >= 10 {
		return fmt.Sprintf("S%d_%d", i, j)
	}

	return fmt.Sprintf("S%d%d", i, j)
}
