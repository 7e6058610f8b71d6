package format

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/askiada/emflow/pkg/network"
)

// MatrixKind tags what a real matrix represents.
type MatrixKind string

const (
	Inductance  MatrixKind = "inductance"
	Resistance  MatrixKind = "resistance"
	Capacitance MatrixKind = "capacitance"
	Conductance MatrixKind = "conductance"
)

// MatrixKinds lists the supported kinds in a stable order.
var MatrixKinds = []MatrixKind{Inductance, Resistance, Capacitance, Conductance}

// ParseMatrixKind matches s against the supported kinds, ignoring case.
func ParseMatrixKind(s string) (MatrixKind, error) {
	for _, k := range MatrixKinds {
		if strings.EqualFold(string(k), strings.TrimSpace(s)) {
			return k, nil
		}
	}

	return "", errors.Errorf("unknown matrix kind %q", s)
}

// MatrixDataset is a named real matrix such as an inductance matrix.
type MatrixDataset struct {
	Kind   MatrixKind  `yaml:"kind" json:"kind"`
	Values [][]float64 `yaml:"values" json:"values"`
}

// Size returns the row and column counts, failing on empty or ragged matrices.
func (d MatrixDataset) Size() (int, int, error) {
	if len(d.Values) == 0 || len(d.Values[0]) == 0 {
		return 0, 0, errors.Wrapf(ErrMalformed, "%s matrix is empty", d.Kind)
	}

	cols := len(d.Values[0])
	for r, row := range d.Values {
		if len(row) != cols {
			return 0, 0, errors.Wrapf(network.ErrLengthMismatch, "%s matrix row %d has %d columns, expected %d",
				d.Kind, r, len(row), cols)
		}
	}

	return len(d.Values), cols, nil
}

// WriteMatrix writes a two-line header followed by rows in %.6e.
func WriteMatrix(path string, d MatrixDataset) error {
	rows, cols, err := d.Size()
	if err != nil {
		return serializationError(path, err)
	}

	return writeAtomic(path, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "# %s Matrix\n# Size: %dx%d\n", strings.ToUpper(string(d.Kind)), rows, cols)
		if err != nil {
			return errors.Wrap(err, "unable to write header")
		}

		for r, row := range d.Values {
			cells := make([]string, len(row))
			for c, v := range row {
				cells[c] = fmt.Sprintf("%.6e", v)
			}

			_, err = io.WriteString(w, strings.Join(cells, " ")+"\n")
			if err != nil {
				return errors.Wrapf(err, "unable to write row %d", r)
			}
		}

		return nil
	})
}

// ReadMatrix parses a file written by WriteMatrix.
func ReadMatrix(path string) (*MatrixDataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open %s", path)
	}
	defer file.Close()

	d := &MatrixDataset{}
	rows, cols := -1, -1
	scanner := bufio.NewScanner(file)

	// nonBlank numbers the lines that hold text; the headers are the first two.
	nonBlank := 0

	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		nonBlank++

		switch {
		case nonBlank == 1:
			var kind string
			if _, err := fmt.Sscanf(text, "# %s Matrix", &kind); err != nil {
				return nil, errors.Wrapf(ErrMalformed, "%s: bad type header %q", path, text)
			}
			d.Kind = MatrixKind(strings.ToLower(kind))
		case nonBlank == 2:
			if _, err := fmt.Sscanf(text, "# Size: %dx%d", &rows, &cols); err != nil {
				return nil, errors.Wrapf(ErrMalformed, "%s: bad size header %q", path, text)
			}
		default:
			fields := strings.Fields(text)
			row := make([]float64, len(fields))
			for c, f := range fields {
				row[c], err = strconv.ParseFloat(f, 64)
				if err != nil {
					return nil, errors.Wrapf(ErrMalformed, "%s line %d: %q", path, line, f)
				}
			}
			d.Values = append(d.Values, row)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "unable to read %s", path)
	}

	gotRows, gotCols, err := d.Size()
	if err != nil {
		return nil, err
	}

	if gotRows != rows || gotCols != cols {
		return nil, errors.Wrapf(ErrMalformed, "%s declares %dx%d but holds %dx%d", path, rows, cols, gotRows, gotCols)
	}

	return d, nil
}
