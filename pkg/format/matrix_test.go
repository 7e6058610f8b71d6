package format_test

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/emflow/pkg/format"
	"github.com/askiada/emflow/pkg/network"
)

func TestWriteMatrix(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "dut_inductance.txt")
	err := format.WriteMatrix(path, format.MatrixDataset{
		Kind:   format.Inductance,
		Values: [][]float64{{1e-9, 2e-10}, {2e-10, 1e-9}},
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "# INDUCTANCE Matrix\n"+
		"# Size: 2x2\n"+
		"1.000000e-09 2.000000e-10\n"+
		"2.000000e-10 1.000000e-09\n", string(raw))

	got, err := format.ReadMatrix(path)
	require.NoError(t, err)
	assert.Equal(t, format.Inductance, got.Kind)
	assert.Equal(t, [][]float64{{1e-9, 2e-10}, {2e-10, 1e-9}}, got.Values)
}

func TestWriteMatrixErrors(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		values  [][]float64
		wantErr error
	}{
		"empty":     {values: nil, wantErr: format.ErrMalformed},
		"empty row": {values: [][]float64{{}}, wantErr: format.ErrMalformed},
		"ragged":    {values: [][]float64{{1, 2}, {3}}, wantErr: network.ErrLengthMismatch},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "m.txt")
			err := format.WriteMatrix(path, format.MatrixDataset{Kind: format.Resistance, Values: tt.values})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NoFileExists(t, path)
		})
	}
}

func TestReadMatrixSizeMismatch(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "m.txt")
	require.NoError(t, os.WriteFile(path, []byte("# CAPACITANCE Matrix\n# Size: 2x2\n1 2\n"), 0o600))

	_, err := format.ReadMatrix(path)
	assert.ErrorIs(t, err, format.ErrMalformed)
}

func TestReadMatrixSkipsBlankLines(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"leading blank line":    "\n# CAPACITANCE Matrix\n# Size: 2x2\n1 2\n3 4\n",
		"blank between headers": "# CAPACITANCE Matrix\n\n  \n# Size: 2x2\n1 2\n3 4\n",
		"blank inside values":   "# CAPACITANCE Matrix\n# Size: 2x2\n1 2\n\n3 4\n\n",
	}

	for name, content := range tests {
		content := content
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "m.txt")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

			got, err := format.ReadMatrix(path)
			require.NoError(t, err)
			assert.Equal(t, format.Capacitance, got.Kind)
			assert.Equal(t, [][]float64{{1, 2}, {3, 4}}, got.Values)
		})
	}
}

func TestParseMatrixKind(t *testing.T) {
	t.Parallel()

	k, err := format.ParseMatrixKind(" Capacitance ")
	require.NoError(t, err)
	assert.Equal(t, format.Capacitance, k)

	_, err = format.ParseMatrixKind("all")
	assert.Error(t, err)
}

func TestWriteMAT(t *testing.T) {
	t.Parallel()

	nw := testNetwork(t, 2, 4)
	vars, err := format.NetworkVariables(nw)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "dut.mat")
	require.NoError(t, format.WriteMAT(path, vars))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	got, err := format.ReadMAT(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, got, 2+4)

	assert.Equal(t, "freq", got[0].Name)
	assert.Equal(t, []float64(nw.Sweep), got[0].Real)
	assert.Nil(t, got[0].Imag)
	assert.Equal(t, []float64{50}, got[1].Real)

	s21 := got[4]
	assert.Equal(t, "S21", s21.Name)
	assert.Equal(t, 4, s21.Rows)
	assert.Equal(t, 1, s21.Cols)
	for k := range nw.S {
		assert.Equal(t, real(nw.S[k][1][0]), s21.Real[k])
		assert.Equal(t, imag(nw.S[k][1][0]), s21.Imag[k])
	}
}

func TestReadMATRejectsOversizedHeaders(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		header [5]int32
		body   []byte
	}{
		"element count overflows int32": {
			header: [5]int32{0, 1 << 30, 1 << 30, 0, 2},
			body:   []byte("x\x00"),
		},
		"element count above the limit": {
			header: [5]int32{0, 1 << 14, 1 << 14, 1, 2},
			body:   []byte("x\x00"),
		},
		"name too long": {
			header: [5]int32{0, 1, 1, 0, 1 << 30},
			body:   []byte("x\x00"),
		},
		"data shorter than announced": {
			header: [5]int32{0, 1 << 20, 1, 0, 2},
			body:   append([]byte("x\x00"), make([]byte, 24)...),
		},
		"imaginary part missing": {
			header: [5]int32{0, 1, 1, 1, 2},
			body:   append([]byte("x\x00"), make([]byte, 8)...),
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			require.NoError(t, binary.Write(&buf, binary.LittleEndian, tt.header))
			buf.Write(tt.body)

			got, err := format.ReadMAT(&buf)
			require.ErrorIs(t, err, format.ErrMalformed)
			assert.Nil(t, got)
		})
	}
}

func TestWriteMATRejectsBadVariables(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.mat")
	err := format.WriteMAT(path, []format.MATVariable{{Name: "x", Rows: 2, Cols: 2, Real: []float64{1}}})

	assert.ErrorIs(t, err, network.ErrLengthMismatch)
	assert.NoFileExists(t, path)
}
