package format_test

import (
	"math"
	"math/cmplx"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/emflow/pkg/format"
	"github.com/askiada/emflow/pkg/network"
	"github.com/askiada/emflow/pkg/units"
)

func linspace(start, stop float64, n int) network.Sweep {
	out := make(network.Sweep, n)
	for i := range out {
		out[i] = start + float64(i)*(stop-start)/float64(n-1)
	}

	return out
}

// testNetwork builds an n-port network whose elements are all distinct so
// that any ordering mistake shows up.
func testNetwork(t *testing.T, ports, points int) *network.Network {
	t.Helper()

	sweep := linspace(1e9, 10e9, points)
	elements := map[network.PortIndex]network.Element{}

	for i := 1; i <= ports; i++ {
		for j := 1; j <= ports; j++ {
			el := network.Element{Magnitude: make([]float64, points), Phase: make([]float64, points)}
			for k := range points {
				el.Magnitude[k] = 0.05*float64(i) + 0.01*float64(j) + 0.001*float64(k)
				el.Phase[k] = float64(10*i-20*j) - float64(k)
			}
			elements[network.PortIndex{I: i, J: j}] = el
		}
	}

	nw, err := network.Build(sweep, elements)
	require.NoError(t, err)

	return nw
}

func TestTouchstoneRoundTrip(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		ports   int
		layout  format.Layout
		unit    units.Unit
		zeroS12 bool
	}{
		"one port RI":     {ports: 1, layout: format.RealImag, unit: units.GHz},
		"two port RI":     {ports: 2, layout: format.RealImag, unit: units.GHz},
		"two port MA MHz": {ports: 2, layout: format.MagAngle, unit: units.MHz},
		"three port DB":   {ports: 3, layout: format.DBAngle, unit: units.Hz},
		"five port RI":    {ports: 5, layout: format.RealImag, unit: units.KHz},
		"unilateral DB":   {ports: 2, layout: format.DBAngle, unit: units.GHz, zeroS12: true},
		"unilateral MA":   {ports: 2, layout: format.MagAngle, unit: units.GHz, zeroS12: true},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			nw := testNetwork(t, tt.ports, 11)
			if tt.zeroS12 {
				for _, m := range nw.S {
					m[0][1] = 0
				}
			}

			path := filepath.Join(t.TempDir(), "dut"+format.TouchstoneExtension(tt.ports))

			err := format.WriteTouchstone(path, nw, format.TouchstoneOptions{Unit: tt.unit, Layout: tt.layout})
			require.NoError(t, err)

			got, err := format.ReadTouchstoneFile(path)
			require.NoError(t, err)

			assert.Equal(t, tt.ports, got.Ports)
			assert.Equal(t, network.DefaultReference, got.Reference)

			dev, err := network.MaxDeviation(nw, got)
			require.NoError(t, err)
			assert.Less(t, dev, 1e-9)
		})
	}
}

func TestWriteTouchstoneTwoPortOrder(t *testing.T) {
	t.Parallel()

	nw := &network.Network{
		Sweep:     network.Sweep{1e9, 2e9},
		Ports:     2,
		Reference: 50,
		S: []network.Matrix{
			{{complex(11, 0), complex(12, 0)}, {complex(21, 0), complex(22, 0)}},
			{{complex(11, 1), complex(12, 1)}, {complex(21, 1), complex(22, 1)}},
		},
	}

	path := filepath.Join(t.TempDir(), "order.s2p")
	require.NoError(t, format.WriteTouchstone(path, nw, format.DefaultTouchstoneOptions()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "! 2-port S-parameter data\n"+
		"! 2 frequency points\n"+
		"# GHZ S RI R 50\n"+
		"1 11 0 21 0 12 0 22 0\n"+
		"2 11 1 21 1 12 1 22 1\n", string(raw))
}

func TestWriteTouchstoneWrapsWideRecords(t *testing.T) {
	t.Parallel()

	nw := testNetwork(t, 5, 2)
	path := filepath.Join(t.TempDir(), "wide.s5p")
	require.NoError(t, format.WriteTouchstone(path, nw, format.DefaultTouchstoneOptions()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	data := lines[3:]

	// each row of five pairs spills onto a second line: 4 + 1 pairs
	require.Len(t, data, 2*5*2)

	for i, line := range data {
		fields := strings.Fields(line)
		if i%10 == 0 {
			// the frequency leads the record
			fields = fields[1:]
		}
		assert.LessOrEqual(t, len(fields), 8, "line %d: %q", i, line)
	}
}

func TestWriteTouchstoneIsIdempotent(t *testing.T) {
	t.Parallel()

	nw := testNetwork(t, 3, 21)
	dir := t.TempDir()
	first := filepath.Join(dir, "a.s3p")
	second := filepath.Join(dir, "b.s3p")

	require.NoError(t, format.WriteTouchstone(first, nw, format.DefaultTouchstoneOptions()))
	require.NoError(t, format.WriteTouchstone(second, nw, format.DefaultTouchstoneOptions()))

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestWriteTouchstoneZeroMagnitudeInDB(t *testing.T) {
	t.Parallel()

	nw := &network.Network{
		Sweep:     network.Sweep{1e9},
		Ports:     1,
		Reference: 50,
		S:         []network.Matrix{{{0}}},
	}

	path := filepath.Join(t.TempDir(), "isolated.s1p")
	require.NoError(t, format.WriteTouchstone(path, nw, format.TouchstoneOptions{Layout: format.DBAngle}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "1 -400 0\n")
	assert.NotContains(t, string(raw), "Inf")

	got, err := format.ReadTouchstoneFile(path)
	require.NoError(t, err)
	assert.InDelta(t, 0, cmplx.Abs(got.S[0][0][0]), 1e-15)
}

func TestWriteTouchstoneFailureLeavesNoFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	tests := map[string]struct {
		nw      *network.Network
		opts    format.TouchstoneOptions
		wantErr error
	}{
		"nil network": {
			nw:   nil,
			opts: format.DefaultTouchstoneOptions(),
		},
		"misaligned sweep": {
			nw:   &network.Network{Sweep: network.Sweep{1, 2}, Ports: 1, S: []network.Matrix{{{1}}}},
			opts: format.DefaultTouchstoneOptions(),
		},
		"unknown layout": {
			nw:   testNetwork(t, 1, 3),
			opts: format.TouchstoneOptions{Layout: "XY"},
		},
		"unknown unit": {
			nw:   testNetwork(t, 1, 3),
			opts: format.TouchstoneOptions{Unit: "THz"},
		},
		"nan element": {
			nw:      &network.Network{Sweep: network.Sweep{1, 2}, Ports: 1, S: []network.Matrix{{{1}}, {{cmplx.NaN()}}}},
			opts:    format.DefaultTouchstoneOptions(),
			wantErr: format.ErrNonFinite,
		},
		"infinite frequency": {
			nw:      &network.Network{Sweep: network.Sweep{1, math.Inf(1)}, Ports: 1, S: []network.Matrix{{{1}}, {{1}}}},
			opts:    format.DefaultTouchstoneOptions(),
			wantErr: format.ErrNonFinite,
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(dir, strings.ReplaceAll(name, " ", "_")+".s1p")
			err := format.WriteTouchstone(path, tt.nw, tt.opts)

			var serr *format.SerializationError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, path, serr.Path)
			assert.NoFileExists(t, path)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestWriteTouchstoneKeepsPreviousFileOnFailure(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "keep.s1p")
	require.NoError(t, os.WriteFile(path, []byte("previous"), 0o600))

	err := format.WriteTouchstone(path, nil, format.DefaultTouchstoneOptions())
	require.Error(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(raw))
}

func TestReadTouchstone(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		input   string
		ports   int
		wantErr error
		check   func(t *testing.T, nw *network.Network)
	}{
		"defaults to GHz MA": {
			input: "! no option line\n1 0.5 90\n2 0.25 180\n",
			ports: 1,
			check: func(t *testing.T, nw *network.Network) {
				assert.Equal(t, network.Sweep{1e9, 2e9}, nw.Sweep)
				assert.InDelta(t, 0, cmplx.Abs(nw.S[0][0][0]-complex(0, 0.5)), 1e-12)
				assert.InDelta(t, 0, cmplx.Abs(nw.S[1][0][0]-complex(-0.25, 0)), 1e-12)
			},
		},
		"dB layout and reference": {
			input: "# MHz S DB R 75\n100 -20 0\n200 0 0\n",
			ports: 1,
			check: func(t *testing.T, nw *network.Network) {
				assert.Equal(t, 75.0, nw.Reference)
				assert.InDelta(t, 100e6, nw.Sweep[0], 1e-6)
				assert.InDelta(t, 0.1, real(nw.S[0][0][0]), 1e-12)
				assert.InDelta(t, 1, real(nw.S[1][0][0]), 1e-12)
			},
		},
		"two port records are column ordered": {
			input: "# Hz S RI\n1 11 0 21 0 12 0 22 0\n2 11 0 21 0 12 0 22 0\n",
			ports: 2,
			check: func(t *testing.T, nw *network.Network) {
				assert.Equal(t, complex(21, 0), nw.S[0][1][0])
				assert.Equal(t, complex(12, 0), nw.S[0][0][1])
			},
		},
		"records may span lines": {
			input: "# Hz S RI\n1 1 0 2 0 3 0\n4 0 5 0 6 0\n7 0 8 0 9 0\n" +
				"2 1 0 2 0 3 0\n4 0 5 0 6 0\n7 0 8 0 9 0\n",
			ports: 3,
			check: func(t *testing.T, nw *network.Network) {
				assert.Equal(t, complex(6, 0), nw.S[1][1][2])
			},
		},
		"later option lines are ignored": {
			input: "# Hz S RI\n# GHz S MA\n1 1 0\n2 1 0\n",
			ports: 1,
			check: func(t *testing.T, nw *network.Network) {
				assert.Equal(t, network.Sweep{1, 2}, nw.Sweep)
			},
		},
		"Z parameters": {
			input:   "# GHz Z RI\n1 1 0\n2 1 0\n",
			ports:   1,
			wantErr: format.ErrMalformed,
		},
		"truncated record": {
			input:   "# GHz S RI\n1 1 0 2\n",
			ports:   1,
			wantErr: format.ErrMalformed,
		},
		"decreasing sweep": {
			input:   "# GHz S RI\n2 1 0\n1 1 0\n",
			ports:   1,
			wantErr: network.ErrInvalidSweep,
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			nw, err := format.ReadTouchstone(strings.NewReader(tt.input), tt.ports)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			tt.check(t, nw)
		})
	}
}

func TestPortsFromExtension(t *testing.T) {
	t.Parallel()

	n, err := format.PortsFromExtension("/tmp/filter.S12P")
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	_, err = format.PortsFromExtension("/tmp/filter.csv")
	assert.ErrorIs(t, err, format.ErrMalformed)
}
