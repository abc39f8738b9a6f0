package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ormasoftchile/clirun/pkg/config"
	"github.com/ormasoftchile/clirun/pkg/events"
	"github.com/ormasoftchile/clirun/pkg/logging"
	"github.com/ormasoftchile/clirun/pkg/redact"
	"github.com/ormasoftchile/clirun/pkg/replay"
	"github.com/ormasoftchile/clirun/pkg/report"
	"github.com/ormasoftchile/clirun/pkg/runtime"
	"github.com/ormasoftchile/clirun/pkg/schema"
	"github.com/ormasoftchile/clirun/pkg/trace"
	"github.com/ormasoftchile/clirun/pkg/tui"
)

var (
	runVars     []string
	runParallel bool
	runTUI      bool
	runTrace    string
	runFormats  []string
	runOut      string
	runNoReport bool
	runReplay   string
)

var runCmd = &cobra.Command{
	Use:   "run [scenario.json|yaml]...",
	Short: "Run scenarios and write reports",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRun,
}

// runPlan is everything a run needs besides the scenarios themselves.
type runPlan struct {
	Config   config.Config
	Vars     map[string]string
	Formats  []report.Format
	OutDir   string
	Redactor *redact.Redactor
	NoReport bool
	Logger   *slog.Logger
	Bus      *events.Bus
	UseTUI   bool
	Replay   string
}

// runOutcome is the terminal state of one scenario file.
type runOutcome struct {
	Path    string
	Result  *runtime.ScenarioResult
	Report  *report.Report
	Written []string
	Err     error
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runTUI && runParallel && len(args) > 1 {
		return fmt.Errorf("--tui cannot be combined with --parallel")
	}

	plan := runPlan{Config: cfg, OutDir: cfg.Report.OutputDir, NoReport: runNoReport, UseTUI: runTUI, Replay: runReplay}
	if plan.Vars, err = parseVars(runVars); err != nil {
		return err
	}
	names := cfg.Report.Formats
	if len(runFormats) > 0 {
		names = runFormats
	}
	if plan.Formats, err = report.ParseFormats(names...); err != nil {
		return err
	}
	if runOut != "" {
		plan.OutDir = runOut
	}
	if plan.Redactor, err = redact.Compile(cfg.Report.Redact); err != nil {
		return err
	}

	scenarios := make([]*schema.Scenario, len(args))
	for i, path := range args {
		sc, errs := schema.ValidateFile(path)
		printValidationWarnings(errs)
		if schema.HasErrors(errs) {
			for _, e := range errs {
				if e.Severity != "warning" {
					fmt.Fprintf(os.Stderr, "  [%s] %s: %s\n", e.Phase, e.Path, e.Message)
				}
			}
			return fmt.Errorf("%s: validation failed with %d error(s)", path, countValidationErrors(errs))
		}
		for k, v := range plan.Vars {
			sc.SetVariable(k, v)
		}
		scenarios[i] = sc
	}

	plan.Bus = events.NewBus()
	defer plan.Bus.Close()

	tracePath := cfg.Trace.Path
	if runTrace != "" {
		tracePath = runTrace
	}
	if tracePath != "" {
		tw, err := trace.NewWriter(tracePath)
		if err != nil {
			return err
		}
		tw.Attach(plan.Bus)
		defer func() {
			if err := tw.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: trace: %v\n", err)
			}
		}()
	}

	plan.Logger = slog.Default()
	if runTUI {
		if plan.Logger, err = logging.New(cfg.Log.Level, cfg.Log.Format, io.Discard); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	outcomes := make([]*runOutcome, len(args))
	if runParallel {
		g, gctx := errgroup.WithContext(ctx)
		for i := range args {
			g.Go(func() error {
				outcomes[i] = runScenario(gctx, plan, args[i], scenarios[i])
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range args {
			outcomes[i] = runScenario(ctx, plan, args[i], scenarios[i])
		}
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, o := range outcomes {
		printOutcome(out, o)
		if o.Err != nil || o.Result == nil || !o.Result.Success {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scenario(s) failed", failed, len(outcomes))
	}
	return nil
}

// runScenario executes one scenario, saves its result and renders its
// reports. Errors are kept on the outcome so other scenarios still run.
func runScenario(ctx context.Context, plan runPlan, path string, sc *schema.Scenario) *runOutcome {
	o := &runOutcome{Path: path}
	set := plan.Config.Providers()
	var recorded *replay.Provider
	if plan.Replay != "" {
		p, err := replay.Load(plan.Replay)
		if err != nil {
			o.Err = err
			return o
		}
		recorded, set = p, p.Set()
	}
	eng, err := runtime.New(sc, runtime.Options{
		Providers: set,
		Logger:    plan.Logger,
		Bus:       plan.Bus,
		Source:    path,
	})
	if err != nil {
		o.Err = err
		return o
	}

	var res *runtime.ScenarioResult
	if plan.UseTUI {
		res, err = tui.Run(ctx, eng)
	} else {
		res, err = eng.Run(ctx)
	}
	o.Result = res
	if recorded != nil {
		if unused := recorded.Unused(); len(unused) > 0 {
			plan.Logger.Warn("recorded steps were not replayed", "steps", unused)
		}
	}
	if res == nil {
		o.Err = err
		return o
	}
	if err != nil {
		o.Err = fmt.Errorf("run interrupted: %w", err)
	}

	o.Report = report.Convert(res, report.Options{Redactor: plan.Redactor})
	if plan.NoReport {
		return o
	}
	base := report.BaseName(res.Info.Name, res.RunID)
	resultPath := filepath.Join(plan.OutDir, base+".result.json")
	if err := runtime.SaveResult(res, resultPath); err != nil {
		o.Err = err
		return o
	}
	o.Written = append(o.Written, resultPath)
	written, err := report.WriteFiles(o.Report, plan.OutDir, base, plan.Formats)
	o.Written = append(o.Written, written...)
	if err != nil {
		o.Err = err
	}
	return o
}

const nameWidth = 32

func printOutcome(w io.Writer, o *runOutcome) {
	if o.Result == nil {
		fmt.Fprintf(w, "%s %s: %v\n", failStyle.Render("✗"), o.Path, o.Err)
		return
	}
	res := o.Result
	fmt.Fprintf(w, "\n▶ %s %s\n", res.Info.Name, dimStyle.Render("("+res.RunID+")"))
	for _, sr := range res.Steps {
		name := runewidth.FillRight(runewidth.Truncate(sr.Name, nameWidth, "…"), nameWidth)
		ms := fmt.Sprintf("%6d ms", stepMs(sr))
		switch {
		case sr.Errored():
			fmt.Fprintf(w, "  %s %s %s  %s\n", failStyle.Render("✗"), name, ms, failStyle.Render(sr.Error))
		case sr.Skipped:
			fmt.Fprintf(w, "  %s %s %s  %s\n", dimStyle.Render("⊘"), name, ms, dimStyle.Render("skipped"))
		case sr.Passed:
			fmt.Fprintf(w, "  %s %s %s  %d test(s)\n", okStyle.Render("✓"), name, ms, len(sr.Tests))
		default:
			fmt.Fprintf(w, "  %s %s %s\n", failStyle.Render("✗"), name, ms)
		}
		for _, t := range sr.Tests {
			if t.Passed {
				continue
			}
			detail := t.Error
			if detail == "" {
				detail = fmt.Sprintf("expected %q but got %q", t.Expected, t.Actual)
			}
			fmt.Fprintf(w, "      %s %s: %s\n", failStyle.Render("✗"), t.Name, detail)
		}
	}
	if skipped := res.Summary.Total - len(res.Steps); skipped > 0 {
		fmt.Fprintf(w, "  %s %d step(s) not run\n", dimStyle.Render("⊘"), skipped)
	}
	if o.Report != nil {
		fmt.Fprint(w, report.Terminal(o.Report, 100))
	}
	for _, p := range o.Written {
		fmt.Fprintf(w, "  %s %s\n", dimStyle.Render("→"), p)
	}
	if o.Err != nil {
		fmt.Fprintf(w, "%s %v\n", failStyle.Render("✗"), o.Err)
	}
	status := okStyle.Render("PASSED")
	if !res.Success {
		status = failStyle.Render("FAILED")
	}
	fmt.Fprintf(w, "%s  %d passed, %d failed of %d in %s\n",
		status, res.Summary.Passed, res.Summary.Failed, res.Summary.Total, res.Summary.Duration)
}

func stepMs(sr *runtime.StepResult) int64 {
	if sr.Response == nil {
		return 0
	}
	return sr.Response.DurationMs()
}

func init() {
	runCmd.Flags().StringArrayVar(&runVars, "var", nil, "Override a scenario variable (key=value), repeatable")
	runCmd.Flags().BoolVar(&runParallel, "parallel", false, "Run scenario files concurrently")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show live progress in an interactive view")
	runCmd.Flags().StringVar(&runTrace, "trace", "", "Append lifecycle events to this JSONL file")
	runCmd.Flags().StringSliceVar(&runFormats, "format", nil, "Report formats: html, json, xml, xlsx, markdown")
	runCmd.Flags().StringVar(&runOut, "out", "", "Report output directory (overrides report.output_dir)")
	runCmd.Flags().StringVar(&runReplay, "replay", "", "Answer steps from a saved result.json instead of running the client")
	runCmd.Flags().BoolVar(&runNoReport, "no-report", false, "Do not write result or report files")
}
