package workspace_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/emflow/pkg/adapter"
	"github.com/askiada/emflow/pkg/adapter/workspace"
	"github.com/askiada/emflow/pkg/format"
	"github.com/askiada/emflow/pkg/network"
)

const touchstone = "# GHz S RI R 50\n1 0.1 0 0.9 0 0.9 0 0.1 0\n2 0.1 0 0.9 0 0.9 0 0.1 0\n"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func openWorkspace(t *testing.T) *workspace.Workspace {
	t.Helper()

	logger, _ := logrustest.NewNullLogger()
	ws, err := workspace.Open(t.TempDir(), workspace.WithLogger(logger))
	require.NoError(t, err)

	return ws
}

func TestOpenWorkspace(t *testing.T) {
	t.Parallel()

	_, err := workspace.Open(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, adapter.ErrAdapterUnavailable)

	file := writeFile(t, t.TempDir(), "file", "")
	_, err = workspace.Open(file)
	assert.ErrorIs(t, err, adapter.ErrAdapterUnavailable)

	ws := openWorkspace(t)
	assert.DirExists(t, filepath.Join(ws.Root(), workspace.DataDir))
}

func TestImportTouchstone(t *testing.T) {
	t.Parallel()

	ws := openWorkspace(t)
	src := writeFile(t, t.TempDir(), "filter.s2p", touchstone)

	dest, err := ws.ImportFile(context.Background(), src, "filter", "imported from lowpass.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ws.Root(), workspace.DataDir, "filter.s2p"), dest)

	raw, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, touchstone, string(raw))

	c, err := ws.Component("filter")
	require.NoError(t, err)
	assert.Equal(t, "imported from lowpass.yaml", c.Description)
	require.Len(t, c.Files, 1)
	assert.Equal(t, workspace.ComponentFile{
		Path:   filepath.Join(workspace.DataDir, "filter.s2p"),
		Kind:   workspace.SParameterFile,
		Ports:  2,
		Points: 2,
		Start:  "1.000 GHz",
		Stop:   "2.000 GHz",
	}, c.Files[0])
}

func TestImportAccumulatesFiles(t *testing.T) {
	t.Parallel()

	ws := openWorkspace(t)
	dir := t.TempDir()

	l := filepath.Join(dir, "bus_inductance.txt")
	require.NoError(t, format.WriteMatrix(l, format.MatrixDataset{Kind: format.Inductance, Values: [][]float64{{1}}}))
	r := filepath.Join(dir, "bus_resistance.txt")
	require.NoError(t, format.WriteMatrix(r, format.MatrixDataset{Kind: format.Resistance, Values: [][]float64{{2}}}))

	for _, path := range []string{l, r, l} {
		_, err := ws.ImportFile(context.Background(), path, "bus", "")
		require.NoError(t, err)
	}

	c, err := ws.Component("bus")
	require.NoError(t, err)
	require.Len(t, c.Files, 2)
	assert.Equal(t, format.Inductance, c.Files[0].Matrix)
	assert.Equal(t, format.Resistance, c.Files[1].Matrix)
}

func TestImportMAT(t *testing.T) {
	t.Parallel()

	ws := openWorkspace(t)
	src := filepath.Join(t.TempDir(), "filter.mat")
	require.NoError(t, format.WriteMAT(src, []format.MATVariable{
		{Name: "freq", Rows: 3, Cols: 1, Real: []float64{1, 2, 3}},
		{Name: "Z0", Rows: 1, Cols: 1, Real: []float64{50}},
	}))

	_, err := ws.ImportFile(context.Background(), src, "filter", "")
	require.NoError(t, err)

	c, err := ws.Component("filter")
	require.NoError(t, err)
	require.Len(t, c.Files, 1)
	assert.Equal(t, workspace.MATFile, c.Files[0].Kind)
	assert.Equal(t, 3, c.Files[0].Points)
}

func TestImportRejects(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	tests := map[string]struct {
		path    string
		wantErr error
	}{
		"malformed touchstone": {path: writeFile(t, dir, "bad.s2p", "# GHz S RI\n1 2 3\n"), wantErr: format.ErrMalformed},
		"malformed table":      {path: writeFile(t, dir, "bad.csv", "frequency\nx\n"), wantErr: format.ErrMalformed},
		"unknown extension":    {path: writeFile(t, dir, "bad.json", "{}"), wantErr: workspace.ErrUnsupportedFile},
		"empty mat":            {path: writeFile(t, dir, "bad.mat", ""), wantErr: format.ErrMalformed},
		"missing":              {path: filepath.Join(dir, "missing.s2p"), wantErr: os.ErrNotExist},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ws := openWorkspace(t)

			_, err := ws.ImportFile(context.Background(), tt.path, "bad", "")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NoFileExists(t, filepath.Join(ws.Root(), workspace.DataDir, filepath.Base(tt.path)))
			assert.NoFileExists(t, filepath.Join(ws.Root(), "bad.component.yaml"))
		})
	}
}

func TestGenerateTestbench(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	tb, err := workspace.NewTestbenches(root)
	require.NoError(t, err)

	rng := network.FrequencyRange{Start: 0, Stop: 10e9, Points: 201}

	path, err := tb.Generate(context.Background(), "/ws/data/filter.s2p", "filter_tb", rng)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "filter_tb_dsn", "config.yaml"), path)

	got, err := workspace.ReadTestbench(path)
	require.NoError(t, err)
	assert.Equal(t, &workspace.Testbench{
		Name:          "filter_tb",
		Type:          workspace.SParameterTestbench,
		ComponentFile: "/ws/data/filter.s2p",
		Frequency:     &rng,
		Measurements:  []string{"S11", "S12", "S21", "S22"},
	}, got)

	_, err = tb.Generate(context.Background(), "/ws/data/filter.s2p", "bad_tb", network.FrequencyRange{Start: 5, Stop: 1, Points: 2})
	assert.ErrorIs(t, err, network.ErrInvalidRange)
	assert.NoDirExists(t, filepath.Join(root, "bad_tb_dsn"))
}

func TestGenerateHarmonicBalance(t *testing.T) {
	t.Parallel()

	tb, err := workspace.NewTestbenches(t.TempDir())
	require.NoError(t, err)

	path, err := tb.GenerateHarmonicBalance(context.Background(), "amp.dsn", "amp_hb", 2.4e9, 0, nil)
	require.NoError(t, err)

	got, err := workspace.ReadTestbench(path)
	require.NoError(t, err)
	assert.Equal(t, workspace.HarmonicBalanceTestbench, got.Type)
	assert.Equal(t, 7, got.Harmonics)
	assert.Equal(t, []float64{-20, -10, 0, 10}, got.PowerSweep)

	_, err = tb.GenerateHarmonicBalance(context.Background(), "amp.dsn", "amp_hb", 0, 0, nil)
	assert.ErrorIs(t, err, network.ErrInvalidRange)
}

func TestGenerateFromTemplate(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	templates := filepath.Join(root, "tpl")
	require.NoError(t, os.MkdirAll(templates, 0o755))
	writeFile(t, templates, "sweep.yaml", "name: template\ntype: s_parameter\nmeasurements: [S11]\n")

	tb, err := workspace.NewTestbenches(root, workspace.WithTemplateDir(templates))
	require.NoError(t, err)

	path, err := tb.GenerateFromTemplate(context.Background(), "sweep", "custom_tb", map[string]any{
		"component_file": "filter.s2p",
		"measurements":   []string{"S21"},
	})
	require.NoError(t, err)

	got, err := workspace.ReadTestbench(path)
	require.NoError(t, err)
	assert.Equal(t, "custom_tb", got.Name)
	assert.Equal(t, "s_parameter", got.Type)
	assert.Equal(t, "filter.s2p", got.ComponentFile)
	assert.Equal(t, []string{"S21"}, got.Measurements)

	_, err = tb.GenerateFromTemplate(context.Background(), "missing", "x_tb", nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
