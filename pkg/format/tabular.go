package format

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"

	"github.com/pkg/errors"

	"github.com/askiada/emflow/pkg/network"
)

// FrequencyColumn is the name of the first column of S-parameter tables.
const FrequencyColumn = "frequency"

// Column is one named series of a Table.
type Column struct {
	Name   string
	Values []float64
}

// Table is a set of equally long named columns.
type Table struct {
	Columns []Column
}

// Rows returns the number of rows, or an error if the columns are ragged.
func (t *Table) Rows() (int, error) {
	if t == nil || len(t.Columns) == 0 {
		return 0, errors.Wrap(ErrMalformed, "table has no columns")
	}

	rows := len(t.Columns[0].Values)
	for _, col := range t.Columns[1:] {
		if len(col.Values) != rows {
			return 0, errors.Wrapf(network.ErrLengthMismatch, "column %s has %d rows, %s has %d",
				col.Name, len(col.Values), t.Columns[0].Name, rows)
		}
	}

	return rows, nil
}

// Column returns the column with the given name.
func (t *Table) Column(name string) ([]float64, bool) {
	for _, col := range t.Columns {
		if col.Name == name {
			return col.Values, true
		}
	}

	return nil, false
}

// WriteTable writes the table as comma-separated values with a header row.
func WriteTable(path string, t *Table) error {
	rows, err := t.Rows()
	if err != nil {
		return serializationError(path, err)
	}

	return writeAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)

		header := make([]string, len(t.Columns))
		for i, col := range t.Columns {
			header[i] = col.Name
		}

		err := cw.Write(header)
		if err != nil {
			return errors.Wrap(err, "unable to write header")
		}

		record := make([]string, len(t.Columns))
		for r := range rows {
			for i, col := range t.Columns {
				record[i] = formatFloat(col.Values[r])
			}

			err = cw.Write(record)
			if err != nil {
				return errors.Wrapf(err, "unable to write row %d", r)
			}
		}

		cw.Flush()

		return errors.Wrap(cw.Error(), "unable to flush csv")
	})
}

// ReadTable reads a file written by WriteTable.
func ReadTable(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open %s", path)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, errors.Wrapf(ErrMalformed, "%s: %v", path, err)
	}

	if len(records) == 0 {
		return nil, errors.Wrapf(ErrMalformed, "%s has no header", path)
	}

	t := &Table{Columns: make([]Column, len(records[0]))}
	for i, name := range records[0] {
		t.Columns[i] = Column{Name: name, Values: make([]float64, 0, len(records)-1)}
	}

	for r, record := range records[1:] {
		for i, cell := range record {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, errors.Wrapf(ErrMalformed, "%s row %d column %s: %q", path, r+1, t.Columns[i].Name, cell)
			}
			t.Columns[i].Values = append(t.Columns[i].Values, v)
		}
	}

	return t, nil
}

// elementColumn names the magnitude or phase column of an element. Indices are
// separated once they can have more than one digit.
func elementColumn(idx network.PortIndex, ports int, part string) string {
	if ports >= 10 {
		return fmt.Sprintf("S%d_%d_%s", idx.I, idx.J, part)
	}

	return fmt.Sprintf("S%d%d_%s", idx.I, idx.J, part)
}

var elementColumnPattern = regexp.MustCompile(`^S(?:(\d+)_(\d+)|(\d)(\d))_(mag|phase)$`)

// SamplesTable lays samples out as frequency followed by magnitude and phase
// columns in port order.
func SamplesTable(s network.Samples) (*Table, error) {
	n, err := network.PortCount(s.Elements)
	if err != nil {
		return nil, err
	}

	t := &Table{Columns: []Column{{Name: FrequencyColumn, Values: s.Sweep}}}

	for i := 1; i <= n; i++ {
		for j := 1; j <= n; j++ {
			idx := network.PortIndex{I: i, J: j}
			el := s.Elements[idx]
			t.Columns = append(t.Columns,
				Column{Name: elementColumn(idx, n, "mag"), Values: el.Magnitude},
				Column{Name: elementColumn(idx, n, "phase"), Values: el.Phase},
			)
		}
	}

	return t, nil
}

// TableSamples is the inverse of SamplesTable. Columns it does not recognise are ignored.
func TableSamples(t *Table) (network.Samples, error) {
	freq, ok := t.Column(FrequencyColumn)
	if !ok {
		return network.Samples{}, errors.Wrapf(ErrMalformed, "missing %s column", FrequencyColumn)
	}

	out := network.Samples{
		Sweep:    network.Sweep(freq),
		Elements: map[network.PortIndex]network.Element{},
	}

	for _, col := range t.Columns {
		match := elementColumnPattern.FindStringSubmatch(col.Name)
		if match == nil {
			continue
		}

		i, j := match[1], match[2]
		if i == "" {
			i, j = match[3], match[4]
		}

		// the pattern only matches digits
		row, _ := strconv.Atoi(i)
		column, _ := strconv.Atoi(j)
		idx := network.PortIndex{I: row, J: column}

		el := out.Elements[idx]
		if match[5] == "mag" {
			el.Magnitude = col.Values
		} else {
			el.Phase = col.Values
		}
		out.Elements[idx] = el
	}

	return out, nil
}
