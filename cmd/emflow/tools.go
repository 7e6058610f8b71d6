package main

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/askiada/emflow/pkg/adapter/source"
	"github.com/askiada/emflow/pkg/adapter/workspace"
	"github.com/askiada/emflow/pkg/converter"
	"github.com/askiada/emflow/pkg/units"
	"github.com/askiada/emflow/pkg/workflow"
)

var errConversionFailed = errors.New("conversion failed")

func NewConvertCommand() *cobra.Command {
	o := &overrides{}

	cmd := &cobra.Command{
		Use:     "convert <source> <destination>",
		Short:   "Convert the S-parameters of a simulation to a file",
		GroupID: gTools,
		Long: `Convert the S-parameters of a simulation to a file.

A relative destination is written inside the output directory.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.loadConfig(cmd)
			if err != nil {
				return err
			}

			src, err := source.Open(args[0])
			if err != nil {
				return err
			}

			defer func() {
				if err := src.Close(); err != nil {
					logrus.WithError(err).Warn("unable to close source")
				}
			}()

			samples, err := src.ExtractElements(cmd.Context())
			if err != nil {
				return errors.Wrapf(err, "unable to extract s-parameters from %s", args[0])
			}

			conv, err := converter.New(cfg.OutputDir,
				converter.WithTouchstoneOptions(cfg.TouchstoneOptions()),
				converter.WithBuildOptions(cfg.BuildOptions()...),
			)
			if err != nil {
				return err
			}

			if !conv.ConvertSParameters(samples, args[1], cfg.Format) {
				return errConversionFailed
			}

			return nil
		},
	}

	o.addOutputFlags(cmd)

	return cmd
}

func NewUnitsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "units <from> <to> <value>...",
		Short:   "Convert frequencies between Hz, kHz, MHz and GHz",
		GroupID: gTools,
		Args:    cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := units.Parse(args[0])
			if err != nil {
				return err
			}

			to, err := units.Parse(args[1])
			if err != nil {
				return err
			}

			values := make([]float64, 0, len(args)-2)
			for _, arg := range args[2:] {
				v, err := strconv.ParseFloat(arg, 64)
				if err != nil {
					return errors.Wrapf(err, "unable to parse %q", arg)
				}

				values = append(values, v)
			}

			out, err := units.Convert(values, from, to)
			if err != nil {
				return err
			}

			for _, v := range out {
				cmd.Printf("%s %s\n", strconv.FormatFloat(v, 'g', -1, 64), to)
			}

			return nil
		},
	}
}

func NewImportCommand() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:     "import <file> <workspace> <component>",
		Short:   "Import a converted file into a workspace",
		GroupID: gTools,
		Long: `Import a converted file into a workspace.

Touchstone (.sNp), CSV, MATLAB (.mat) and numeric matrix (.txt) files are
checked, copied into the data directory of the workspace and recorded in the
component manifest.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := workspace.Open(args[1])
			if err != nil {
				return err
			}

			dest, err := ws.ImportFile(cmd.Context(), args[0], args[2], description)
			if err != nil {
				return err
			}

			cmd.Printf("%s %s\n", bool2Text(true), dest)

			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "component description")

	return cmd
}

type testbenchFlags struct {
	fundamental float64
	harmonics   int
	power       []float64
	template    string
	params      []string
}

// parseParams turns key=value pairs into template parameters. Values are
// decoded as YAML so that numbers and lists keep their type.
func parseParams(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, errors.Errorf("parameter %q is not key=value", pair)
		}

		var v any

		err := yaml.Unmarshal([]byte(value), &v)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to decode parameter %s", key)
		}

		out[key] = v
	}

	return out, nil
}

func NewTestbenchCommand() *cobra.Command {
	o := &overrides{}
	tf := &testbenchFlags{}

	cmd := &cobra.Command{
		Use:     "testbench <component-file> <workspace> <name>",
		Short:   "Generate a testbench around a component",
		GroupID: gTools,
		Long: `Generate a testbench around a component.

By default an S-parameter testbench sweeping the configured range is created.
--fundamental creates a harmonic balance testbench instead, and --template
fills the named template of <workspace>/templates with --param values.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.loadConfig(cmd)
			if err != nil {
				return err
			}

			tb, err := workspace.NewTestbenches(args[1])
			if err != nil {
				return err
			}

			var path string

			switch {
			case tf.template != "":
				params, err := parseParams(tf.params)
				if err != nil {
					return err
				}

				if _, ok := params["component_file"]; !ok {
					params["component_file"] = args[0]
				}

				path, err = tb.GenerateFromTemplate(cmd.Context(), tf.template, args[2], params)
				if err != nil {
					return err
				}
			case tf.fundamental > 0:
				path, err = tb.GenerateHarmonicBalance(cmd.Context(), args[0], args[2], tf.fundamental, tf.harmonics, tf.power)
				if err != nil {
					return err
				}
			default:
				rng, err := workflow.TestbenchRange(cfg, args[0])
				if err != nil {
					return err
				}

				path, err = tb.Generate(cmd.Context(), args[0], args[2], rng)
				if err != nil {
					return err
				}
			}

			cmd.Printf("%s %s\n", bool2Text(true), path)

			return nil
		},
	}

	flags := cmd.Flags()
	flags.Float64Var(&tf.fundamental, "fundamental", 0, "fundamental frequency in Hz of a harmonic balance testbench")
	flags.IntVar(&tf.harmonics, "harmonics", 0, "number of harmonics (default 7)")
	flags.Float64SliceVar(&tf.power, "power", nil, "input power sweep in dBm (default -20,-10,0,10)")
	flags.StringVar(&tf.template, "template", "", "template name")
	flags.StringArrayVar(&tf.params, "param", nil, "template parameter as key=value, repeatable")

	return cmd
}
