package format

import (
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/pkg/errors"

	"github.com/askiada/emflow/pkg/network"
	"github.com/askiada/emflow/pkg/units"
)

// touchstoneLexer keeps line breaks significant so that the option line ends
// where its line ends.
var touchstoneLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `![^\n]*`},
	{Name: "EOL", Pattern: `\r?\n`},
	{Name: "Whitespace", Pattern: `[ \t\r]+`},
	{Name: "Hash", Pattern: `#`},
	{Name: "Number", Pattern: `[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?`},
	{Name: "Ident", Pattern: `[A-Za-z][A-Za-z0-9_]*`},
})

type touchstoneAST struct {
	Lines []*touchstoneLine `( @@ | EOL )*`
}

type touchstoneLine struct {
	Option *touchstoneOption `  @@`
	Values []float64         `| @Number+`
}

type touchstoneOption struct {
	Fields []string `"#" ( @Ident | @Number )*`
}

var touchstoneParser = participle.MustBuild[touchstoneAST](
	participle.Lexer(touchstoneLexer),
	participle.Elide("Comment", "Whitespace"),
)

var extensionPattern = regexp.MustCompile(`(?i)\.s(\d+)p$`)

// PortsFromExtension returns N for a path ending in .sNp.
func PortsFromExtension(path string) (int, error) {
	match := extensionPattern.FindStringSubmatch(filepath.Base(path))
	if match == nil {
		return 0, errors.Wrapf(ErrMalformed, "%s has no .sNp extension", path)
	}

	n, err := strconv.Atoi(match[1])
	if err != nil || n < 1 {
		return 0, errors.Wrapf(ErrMalformed, "%s has an invalid port count", path)
	}

	return n, nil
}

// ReadTouchstoneFile parses a Touchstone file, taking the port count from its extension.
func ReadTouchstoneFile(path string) (*network.Network, error) {
	n, err := PortsFromExtension(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open %s", path)
	}
	defer file.Close()

	nw, err := ReadTouchstone(file, n)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read %s", path)
	}

	return nw, nil
}

type optionLine struct {
	unit      units.Unit
	layout    Layout
	reference float64
}

// Touchstone 1.x defaults when no option line is present.
func defaultOptionLine() optionLine {
	return optionLine{unit: units.GHz, layout: MagAngle, reference: network.DefaultReference}
}

func parseOptionLine(fields []string) (optionLine, error) {
	opt := defaultOptionLine()

	for i := 0; i < len(fields); i++ {
		field := strings.ToUpper(fields[i])

		switch field {
		case "HZ", "KHZ", "MHZ", "GHZ":
			u, err := units.Parse(field)
			if err != nil {
				return opt, err
			}
			opt.unit = u
		case "RI", "MA", "DB":
			opt.layout = Layout(field)
		case "S":
		case "Y", "Z", "H", "G":
			return opt, errors.Wrapf(ErrMalformed, "%s-parameters are not supported", field)
		case "R":
			if i+1 >= len(fields) {
				return opt, errors.Wrap(ErrMalformed, "reference impedance is missing")
			}
			ref, err := strconv.ParseFloat(fields[i+1], 64)
			if err != nil {
				return opt, errors.Wrapf(ErrMalformed, "reference impedance %q", fields[i+1])
			}
			opt.reference = ref
			i++
		default:
			return opt, errors.Wrapf(ErrMalformed, "unknown option %q", fields[i])
		}
	}

	return opt, nil
}

// ReadTouchstone parses Touchstone 1.x data for an n-port network.
func ReadTouchstone(r io.Reader, n int) (*network.Network, error) {
	if n < 1 {
		return nil, errors.Wrapf(ErrMalformed, "invalid port count %d", n)
	}

	ast, err := touchstoneParser.Parse("", r)
	if err != nil {
		return nil, errors.Wrap(ErrMalformed, err.Error())
	}

	opt := defaultOptionLine()
	seenOption := false
	values := []float64{}

	for _, line := range ast.Lines {
		if line.Option != nil {
			// only the first option line counts
			if seenOption {
				continue
			}

			opt, err = parseOptionLine(line.Option.Fields)
			if err != nil {
				return nil, err
			}

			seenOption = true

			continue
		}

		values = append(values, line.Values...)
	}

	recordLen := 1 + 2*n*n
	if len(values) == 0 || len(values)%recordLen != 0 {
		return nil, errors.Wrapf(ErrMalformed, "%d values do not split into %d-port records of %d", len(values), n, recordLen)
	}

	points := len(values) / recordLen
	freqs := make([]float64, points)
	matrices := make([]network.Matrix, points)

	for k := range points {
		record := values[k*recordLen : (k+1)*recordLen]
		freqs[k] = record[0]

		m := make(network.Matrix, n)
		for i := range m {
			m[i] = make([]complex128, n)
		}

		for p := range n * n {
			c := joinComplex(record[1+2*p], record[2+2*p], opt.layout)
			i, j := p/n, p%n
			if n == 2 {
				i, j = j, i
			}
			m[i][j] = c
		}

		matrices[k] = m
	}

	sweep, err := units.Convert(freqs, opt.unit, units.Hz)
	if err != nil {
		return nil, err
	}

	err = network.Sweep(sweep).Validate()
	if err != nil {
		return nil, err
	}

	return &network.Network{
		Sweep:     sweep,
		Ports:     n,
		Reference: opt.reference,
		S:         matrices,
	}, nil
}
