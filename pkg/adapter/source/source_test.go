package source_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/emflow/pkg/adapter"
	"github.com/askiada/emflow/pkg/adapter/source"
	"github.com/askiada/emflow/pkg/format"
	"github.com/askiada/emflow/pkg/network"
)

func writeProject(t *testing.T, f *source.ProjectFile) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "lowpass.yaml")
	require.NoError(t, source.WriteProject(path, f))

	return path
}

func onePort() *source.ProjectFile {
	return &source.ProjectFile{
		FrequencyUnit: "MHz",
		Frequencies:   []float64{100, 200, 300},
		SParameters: []source.ElementEntry{
			{Port: [2]int{1, 1}, Magnitude: []float64{0.1, 0.2, 0.3}, Phase: []float64{0, -10, -20}},
		},
		Matrices: map[string][][]float64{
			"Inductance": {{1e-9, 1e-10}, {1e-10, 1e-9}},
		},
	}
}

func TestProjectExtractElements(t *testing.T) {
	t.Parallel()

	p, err := source.OpenProject(writeProject(t, onePort()))
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, "lowpass", p.Name())

	s, err := p.ExtractElements(context.Background())
	require.NoError(t, err)

	assert.Equal(t, network.Sweep{100e6, 200e6, 300e6}, s.Sweep)
	require.Contains(t, s.Elements, network.PortIndex{I: 1, J: 1})
	assert.Equal(t, []float64{0, -10, -20}, s.Elements[network.PortIndex{I: 1, J: 1}].Phase)
}

func TestProjectRealImag(t *testing.T) {
	t.Parallel()

	f := onePort()
	f.Name = "custom"
	f.SParameters = []source.ElementEntry{{Port: [2]int{1, 1}, Real: []float64{0, 1, 0}, Imag: []float64{1, 0, -2}}}

	p, err := source.OpenProject(writeProject(t, f))
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, "custom", p.Name())

	s, err := p.ExtractElements(context.Background())
	require.NoError(t, err)

	el := s.Elements[network.PortIndex{I: 1, J: 1}]
	assert.InDeltaSlice(t, []float64{1, 1, 2}, el.Magnitude, 1e-12)
	assert.InDeltaSlice(t, []float64{90, 0, -90}, el.Phase, 1e-12)
}

func TestProjectErrors(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		mutate func(f *source.ProjectFile)
	}{
		"duplicate port": {mutate: func(f *source.ProjectFile) {
			f.SParameters = append(f.SParameters, f.SParameters[0])
		}},
		"invalid port": {mutate: func(f *source.ProjectFile) {
			f.SParameters[0].Port = [2]int{0, 1}
		}},
		"invalid unit": {mutate: func(f *source.ProjectFile) {
			f.FrequencyUnit = "THz"
		}},
		"no s-parameters": {mutate: func(f *source.ProjectFile) {
			f.SParameters = nil
		}},
		"mixed representations": {mutate: func(f *source.ProjectFile) {
			f.SParameters[0].Real = []float64{1, 1, 1}
		}},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			f := onePort()
			tt.mutate(f)

			p, err := source.OpenProject(writeProject(t, f))
			require.NoError(t, err)
			defer p.Close()

			_, err = p.ExtractElements(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestProjectExtractMatrix(t *testing.T) {
	t.Parallel()

	p, err := source.OpenProject(writeProject(t, onePort()))
	require.NoError(t, err)

	m, err := p.ExtractMatrix(context.Background(), format.Inductance)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1e-9, 1e-10}, {1e-10, 1e-9}}, m)

	m, err = p.ExtractMatrix(context.Background(), format.Resistance)
	require.NoError(t, err)
	assert.Empty(t, m)

	require.NoError(t, p.Close())

	_, err = p.ExtractMatrix(context.Background(), format.Inductance)
	assert.ErrorIs(t, err, adapter.ErrAdapterUnavailable)

	_, err = p.ExtractElements(context.Background())
	assert.ErrorIs(t, err, adapter.ErrAdapterUnavailable)
}

func TestProjectMatrixNames(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		matrices map[string][][]float64
		kind     format.MatrixKind
		want     [][]float64
		wantErr  error
	}{
		"exact name": {
			matrices: map[string][][]float64{"resistance": {{2}}},
			kind:     format.Resistance,
			want:     [][]float64{{2}},
		},
		"capitalised name": {
			matrices: map[string][][]float64{"RESISTANCE": {{3}}, "Inductance": {{1}}},
			kind:     format.Resistance,
			want:     [][]float64{{3}},
		},
		"names differing by case": {
			matrices: map[string][][]float64{"Inductance": {{1}}, "inductance": {{2}}},
			kind:     format.Inductance,
			wantErr:  format.ErrMalformed,
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			f := onePort()
			f.Matrices = tt.matrices

			p, err := source.OpenProject(writeProject(t, f))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer p.Close()

			m, err := p.ExtractMatrix(context.Background(), tt.kind)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m)
		})
	}
}

func TestProjectCancelled(t *testing.T) {
	t.Parallel()

	p, err := source.OpenProject(writeProject(t, onePort()))
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.ExtractElements(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenProjectErrors(t *testing.T) {
	t.Parallel()

	_, err := source.OpenProject(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, adapter.ErrAdapterUnavailable)

	path := filepath.Join(t.TempDir(), "unknown.yaml")
	require.NoError(t, os.WriteFile(path, []byte("frequencies: [1, 2]\nsolver: hfss\n"), 0o600))

	_, err = source.OpenProject(path)
	assert.Error(t, err)
}

func TestOpenTouchstone(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "stub.s1p")
	require.NoError(t, os.WriteFile(path, []byte("# GHz S MA R 50\n1 0.5 0\n2 0.25 -90\n"), 0o600))

	src, err := source.Open(path)
	require.NoError(t, err)
	assert.Equal(t, "stub", src.Name())

	s, err := src.ExtractElements(context.Background())
	require.NoError(t, err)
	assert.Equal(t, network.Sweep{1e9, 2e9}, s.Sweep)
	assert.InDeltaSlice(t, []float64{0.5, 0.25}, s.Elements[network.PortIndex{I: 1, J: 1}].Magnitude, 1e-12)

	require.NoError(t, src.Close())

	_, err = src.ExtractElements(context.Background())
	assert.ErrorIs(t, err, adapter.ErrAdapterUnavailable)
}

func TestOpenByExtension(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := source.Open(filepath.Join(dir, "result.h5"))
	assert.ErrorIs(t, err, adapter.ErrAdapterUnavailable)

	_, err = source.Open(filepath.Join(dir, "missing.s2p"))
	assert.ErrorIs(t, err, adapter.ErrAdapterUnavailable)

	_, err = source.OpenMatrices(filepath.Join(dir, "missing.s2p"))
	assert.ErrorIs(t, err, adapter.ErrAdapterUnavailable)

	m, err := source.OpenMatrices(writeProject(t, onePort()))
	require.NoError(t, err)
	assert.NoError(t, m.Close())
}
