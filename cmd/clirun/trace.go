package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/clirun/pkg/events"
	"github.com/ormasoftchile/clirun/pkg/trace"
)

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Trace file operations",
}

var traceShowLogs bool

var traceShowCmd = &cobra.Command{
	Use:   "show [trace.jsonl]",
	Short: "Print the lifecycle events recorded in a trace file",
	Args:  cobra.ExactArgs(1),
	RunE:  runTraceShow,
}

func runTraceShow(cmd *cobra.Command, args []string) error {
	evs, err := trace.Read(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	runs := map[string]bool{}
	for _, e := range evs {
		runs[e.RunID] = true
		if e.Type == events.Log && !traceShowLogs {
			continue
		}
		fmt.Fprintf(out, "%s  %s\n", dimStyle.Render(e.Time.Format("15:04:05.000")), formatEvent(e))
	}
	fmt.Fprintf(out, "%d events, %d run(s)\n", len(evs), len(runs))
	return nil
}

func formatEvent(e events.Event) string {
	switch e.Type {
	case events.ScenarioStart:
		return fmt.Sprintf("▶ %s (%s)", e.Name, e.RunID)
	case events.ScenarioEnd:
		if ok, _ := e.Data["success"].(bool); ok {
			return okStyle.Render("✓ ") + e.Name + " passed"
		}
		return failStyle.Render("✗ ") + e.Name + " failed"
	case events.StepStart:
		return fmt.Sprintf("  ▸ [%d] %s", e.Step+1, e.Name)
	case events.StepComplete:
		if ok, _ := e.Data["passed"].(bool); ok {
			return fmt.Sprintf("  %s [%d] %s", okStyle.Render("✓"), e.Step+1, e.Name)
		}
		return fmt.Sprintf("  %s [%d] %s", failStyle.Render("✗"), e.Step+1, e.Name)
	case events.StepError:
		return fmt.Sprintf("  %s [%d] %s: %s", failStyle.Render("✗"), e.Step+1, e.Name, e.Message)
	case events.Log:
		return fmt.Sprintf("    %s %s", e.Level, e.Message)
	default:
		return fmt.Sprintf("    %s [%d] %s", e.Type, e.Step+1, e.Name)
	}
}

func init() {
	traceShowCmd.Flags().BoolVar(&traceShowLogs, "logs", false, "Include log records")
	traceCmd.AddCommand(traceShowCmd)
}
