package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/askiada/emflow/pkg/config"
)

// overrides holds the flags that take precedence over the config file.
type overrides struct {
	outputDir       string
	format          string
	frequencyUnit   string
	strictMagnitude bool
	noTestbench     bool
	noVerify        bool
	draw            bool
	extractType     string
	concurrency     int
}

func (o *overrides) addOutputFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&o.outputDir, "output-dir", "o", "", "directory for intermediate files (default from config)")
	flags.StringVarP(&o.format, "format", "f", "", "output format: touchstone, csv or matlab (default from config)")
	flags.StringVar(&o.frequencyUnit, "frequency-unit", "", "frequency unit of written touchstone files")
	flags.BoolVar(&o.strictMagnitude, "strict-magnitude", false, "reject negative magnitudes")
	flags.BoolVar(&o.draw, "draw", false, "write a Graphviz DOT file of the run")
}

func (o *overrides) addTestbenchFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.BoolVar(&o.noTestbench, "no-testbench", false, "skip testbench creation")
	flags.BoolVar(&o.noVerify, "no-verify", false, "skip verification")
}

// raw turns the flags the user set into a partial configuration.
func (o *overrides) raw(cmd *cobra.Command) *config.RawFileConfig {
	flags := cmd.Flags()
	raw := &config.RawFileConfig{}

	if flags.Changed("output-dir") {
		raw.OutputDir = &o.outputDir
	}

	if flags.Changed("format") {
		raw.Format = &o.format
	}

	if flags.Changed("frequency-unit") {
		raw.FrequencyUnit = &o.frequencyUnit
	}

	if flags.Changed("strict-magnitude") {
		raw.StrictMagnitude = &o.strictMagnitude
	}

	if flags.Changed("draw") {
		raw.DrawWorkflow = &o.draw
	}

	if flags.Changed("no-testbench") {
		create := !o.noTestbench
		raw.CreateTestbench = &create
	}

	if flags.Changed("no-verify") {
		verify := !o.noVerify
		raw.Verify = &verify
	}

	if flags.Changed("type") {
		raw.ExtractType = &o.extractType
	}

	if flags.Changed("concurrency") {
		raw.BatchConcurrency = &o.concurrency
	}

	return raw
}

// loadConfig reads the config file and applies the flags of cmd over it.
func (o *overrides) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	fromFile, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Resolve(config.Merge(fromFile, o.raw(cmd)))
	if err != nil {
		return nil, err
	}

	logrus.WithFields(cfg.LogrusFields()).Debug("configuration loaded")

	return cfg, nil
}
