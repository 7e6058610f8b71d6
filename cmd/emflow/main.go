package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	version   = "dev"
	gitCommit = "unknown"
)

var (
	logLevel   = "info"
	logFile    = ""
	configPath = "emflow.yaml"
)

var (
	gWorkflow     = "Workflows:"
	gTools        = "Tools:"
	commandGroups = []string{
		gWorkflow,
		gTools,
	}
)

var errWorkflowFailed = errors.New("workflow failed")

// logSink is the log file opened by setupLogger, if any.
var logSink io.Closer

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return errors.Wrap(err, "unable to parse log level")
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
			DisableColors:   logFile != "",
		})
	}

	if logFile == "" {
		logrus.SetOutput(os.Stderr)

		return nil
	}

	f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "unable to open log file %s", logFile)
	}

	logSink = f
	logrus.SetOutput(io.MultiWriter(os.Stderr, f))

	return nil
}

func closeLogger() {
	if logSink == nil {
		return
	}

	err := logSink.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to close log file %s: %v\n", logFile, err)
	}

	logSink = nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	cmd := NewCommand()
	err := cmd.ExecuteContext(ctx)

	stop()
	closeLogger()

	if err != nil {
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "emflow",
		Short: "emflow moves electromagnetic simulation results into a design workspace",
		Long: `emflow moves electromagnetic simulation results into a design workspace.

It extracts S-parameters or inductance, resistance and capacitance matrices
from a solution export, converts them to Touchstone, CSV or MATLAB files,
imports them as components and generates testbenches around them.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return setupLogger()
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVar(&logFile, "log-file", "", "also write logs to this file")
	globalFlags.StringVar(&configPath, "config", configPath, "config file path (yaml or json)")

	for _, i := range commandGroups {
		cmd.AddGroup(&cobra.Group{
			ID:    i,
			Title: i,
		})
	}

	cmd.AddCommand(
		NewVersionCommand(),
		NewSParameterCommand(),
		NewMatrixCommand(),
		NewBatchCommand(),
		NewConvertCommand(),
		NewUnitsCommand(),
		NewImportCommand(),
		NewTestbenchCommand(),
	)

	return cmd
}

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version, gitCommit)
		},
	}
}
