package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/emflow/pkg/adapter/source"
	"github.com/askiada/emflow/pkg/adapter/workspace"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	out := &bytes.Buffer{}
	cmd := NewCommand()
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	closeLogger()

	return out.String(), err
}

func writeProject(t *testing.T, dir string) string {
	t.Helper()

	path := filepath.Join(dir, "lowpass.yaml")
	require.NoError(t, source.WriteProject(path, &source.ProjectFile{
		FrequencyUnit: "GHz",
		Frequencies:   []float64{1, 2, 3},
		SParameters: []source.ElementEntry{
			{Port: [2]int{1, 1}, Magnitude: []float64{0.1, 0.2, 0.3}, Phase: []float64{0, -10, -20}},
		},
		Matrices: map[string][][]float64{"capacitance": {{1e-12}}},
	}))

	return path
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()

	path := filepath.Join(dir, "emflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "dev unknown\n", out)
}

func TestSParameterCommand(t *testing.T) {
	dir := t.TempDir()
	ws := t.TempDir()
	logPath := filepath.Join(dir, "emflow.log")
	cfg := writeConfig(t, dir, "testbench: {start: 1e9, stop: 3e9, points: 5}\n")

	out, err := execute(t, "sparam", writeProject(t, dir), ws, "filter",
		"--config", cfg, "--output-dir", filepath.Join(dir, "out"), "--log-file", logPath, "--draw")
	require.NoError(t, err)

	assert.Contains(t, out, "SUCCEEDED")
	assert.Contains(t, out, "filter.s1p")
	assert.FileExists(t, filepath.Join(ws, workspace.DataDir, "filter.s1p"))
	assert.FileExists(t, filepath.Join(ws, "filter_tb_dsn", "config.yaml"))
	assert.FileExists(t, filepath.Join(dir, "out", "filter_sparam.dot"))

	logs, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(logs), "pipeline finished")
}

func TestSParameterCommandFailure(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "sparam", filepath.Join(dir, "missing.yaml"), t.TempDir(), "filter",
		"--config", filepath.Join(dir, "none.yaml"), "--output-dir", filepath.Join(dir, "out"))
	assert.ErrorIs(t, err, errWorkflowFailed)
	assert.Contains(t, out, "FAILED")
}

func TestSParameterCommandDegraded(t *testing.T) {
	dir := t.TempDir()

	// a 0-10 GHz testbench lies outside the 1-3 GHz data
	cfg := writeConfig(t, dir, "testbench: {start: 0, stop: 10e9}\n")
	out, err := execute(t, "sparam", writeProject(t, dir), t.TempDir(), "filter",
		"--config", cfg, "--output-dir", filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Contains(t, out, "DEGRADED")
	assert.Contains(t, out, "(optional)")
}

func TestMatrixCommand(t *testing.T) {
	dir := t.TempDir()
	ws := t.TempDir()

	_, err := execute(t, "matrix", writeProject(t, dir), ws, "bus",
		"--config", filepath.Join(dir, "none.yaml"), "--output-dir", filepath.Join(dir, "out"), "--type", "capacitance")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(ws, workspace.DataDir, "bus_capacitance.txt"))

	_, err = execute(t, "matrix", writeProject(t, dir), ws, "bus",
		"--config", filepath.Join(dir, "none.yaml"), "--output-dir", filepath.Join(dir, "out"), "--type", "inductance")
	assert.ErrorIs(t, err, errWorkflowFailed)
}

func TestBatchCommand(t *testing.T) {
	dir := t.TempDir()
	writeProject(t, dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ws"), 0o755))

	batch := filepath.Join(dir, "batch.yaml")
	require.NoError(t, os.WriteFile(batch, []byte(`jobs:
  - {kind: sparam, source: lowpass.yaml, workspace: ws, component: a}
  - {kind: matrix, source: lowpass.yaml, workspace: ws, component: b}
`), 0o600))

	out, err := execute(t, "batch", batch, "--config", filepath.Join(dir, "none.yaml"),
		"--output-dir", filepath.Join(dir, "out"), "--no-testbench", "-j", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "a:")
	assert.Contains(t, out, "b:")
	assert.Contains(t, out, "Average step durations:")
	assert.FileExists(t, filepath.Join(dir, "out", "a", "a.s1p"))
	assert.FileExists(t, filepath.Join(dir, "out", "b", "b_capacitance.txt"))
}

func TestConvertCommand(t *testing.T) {
	dir := t.TempDir()
	src := writeProject(t, dir)
	out := filepath.Join(dir, "out")

	_, err := execute(t, "convert", src, "lowpass.csv", "--config", filepath.Join(dir, "none.yaml"),
		"--output-dir", out, "--format", "csv")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(out, "lowpass.csv"))

	_, err = execute(t, "convert", src, "lowpass.h5", "--config", filepath.Join(dir, "none.yaml"),
		"--output-dir", out, "--format", "hdf5")
	assert.Error(t, err)
}

func TestUnitsCommand(t *testing.T) {
	out, err := execute(t, "units", "GHz", "MHz", "1", "2.5")
	require.NoError(t, err)
	assert.Equal(t, "1000 MHz\n2500 MHz\n", out)

	_, err = execute(t, "units", "GHz", "THz", "1")
	assert.Error(t, err)
}

func TestImportAndTestbenchCommands(t *testing.T) {
	dir := t.TempDir()
	ws := t.TempDir()
	file := filepath.Join(dir, "filter.s1p")
	require.NoError(t, os.WriteFile(file, []byte("# GHz S RI R 50\n1 0.1 0\n2 0.2 0\n"), 0o600))

	_, err := execute(t, "import", file, ws, "filter", "-d", "bench copy")
	require.NoError(t, err)

	cfg := filepath.Join(dir, "none.yaml")
	imported := filepath.Join(ws, workspace.DataDir, "filter.s1p")

	_, err = execute(t, "testbench", imported, ws, "filter_tb", "--config", cfg)
	require.NoError(t, err)

	tb, err := workspace.ReadTestbench(filepath.Join(ws, "filter_tb_dsn", "config.yaml"))
	require.NoError(t, err)
	require.NotNil(t, tb.Frequency)
	assert.InDelta(t, 1e9, tb.Frequency.Start, 1)
	assert.InDelta(t, 2e9, tb.Frequency.Stop, 1)
	assert.Equal(t, 2, tb.Frequency.Points)

	_, err = execute(t, "testbench", "amp.dsn", ws, "amp_hb", "--config", cfg, "--fundamental", "2.4e9")
	require.NoError(t, err)

	tb, err = workspace.ReadTestbench(filepath.Join(ws, "amp_hb_dsn", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, workspace.HarmonicBalanceTestbench, tb.Type)
	assert.Equal(t, 7, tb.Harmonics)
}

func TestParseParams(t *testing.T) {
	tests := map[string]struct {
		pairs   []string
		want    map[string]any
		wantErr bool
	}{
		"typed values": {
			pairs: []string{"points=201", "measurements=[S11, S21]", "name=x"},
			want: map[string]any{
				"points":       201,
				"measurements": []any{"S11", "S21"},
				"name":         "x",
			},
		},
		"missing equal": {pairs: []string{"points"}, wantErr: true},
		"empty key":     {pairs: []string{"=1"}, wantErr: true},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			got, err := parseParams(tt.pairs)
			if tt.wantErr {
				assert.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
