package main

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fatih/color"

	"github.com/askiada/emflow/pkg/pipeline/model"
)

func bool2Text(b bool) string {
	if b {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}

func stateText(s model.State) string {
	switch s {
	case model.Succeeded:
		return color.New(color.Bold, color.FgGreen).Sprint(s)
	case model.Degraded:
		return color.New(color.Bold, color.FgYellow).Sprint(s)
	default:
		return color.New(color.Bold, color.FgRed).Sprint(s)
	}
}

// printResult writes one line per step: a mark, the step name and either the
// output file or the failure.
func printResult(w io.Writer, res *model.Result) {
	fmt.Fprintf(w, "%s %s (%s)\n", bold("%s:", res.Name), stateText(res.State), res.Duration.Round(time.Millisecond))

	for _, o := range res.Steps {
		detail := filepath.Base(o.Output)
		if !o.Success {
			detail = o.Diagnostic
			if !o.Required {
				detail += color.YellowString(" (optional)")
			}
		}

		fmt.Fprintf(w, "  %s %-20s %s\n", bool2Text(o.Success), o.Step, detail)
	}
}
