package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/clirun/pkg/redact"
	"github.com/ormasoftchile/clirun/pkg/report"
	"github.com/ormasoftchile/clirun/pkg/runtime"
)

var (
	reportFormats []string
	reportOut     string
)

var reportCmd = &cobra.Command{
	Use:   "report [result.json]...",
	Short: "Render reports from saved scenario results",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	names := cfg.Report.Formats
	if len(reportFormats) > 0 {
		names = reportFormats
	}
	formats, err := report.ParseFormats(names...)
	if err != nil {
		return err
	}
	dir := cfg.Report.OutputDir
	if reportOut != "" {
		dir = reportOut
	}
	red, err := redact.Compile(cfg.Report.Redact)
	if err != nil {
		return err
	}

	for _, path := range args {
		res, err := runtime.LoadResult(path)
		if err != nil {
			return err
		}
		rep := report.Convert(res, report.Options{Redactor: red})
		written, err := report.WriteFiles(rep, dir, report.BaseName(res.Info.Name, res.RunID), formats)
		for _, p := range written {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", okStyle.Render("✓"), p)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

func init() {
	reportCmd.Flags().StringSliceVar(&reportFormats, "format", nil, "Report formats: html, json, xml, xlsx, markdown")
	reportCmd.Flags().StringVar(&reportOut, "out", "", "Report output directory (overrides report.output_dir)")
}
