package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/clirun/pkg/config"
	"github.com/ormasoftchile/clirun/pkg/logging"
	"github.com/ormasoftchile/clirun/pkg/schema"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	dimStyle  = lipgloss.NewStyle().Faint(true)
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var (
	configPath string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:          "clirun",
	Short:        "Scenario runner for command-line payment clients",
	Long:         "clirun runs ordered request scenarios against a command-line client, extracts values from its output, checks them and writes reports.",
	SilenceUsage: true,
}

// loadConfig resolves layered configuration and applies the global
// logging flags on top of it.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if _, err := logging.Init(cfg.Log.Level, cfg.Log.Format, os.Stderr); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// parseVars splits repeated KEY=VALUE flags.
func parseVars(kvs []string) (map[string]string, error) {
	out := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --var %q: expected key=value", kv)
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate [scenario.json|yaml]...",
	Short: "Validate scenario files against the schema and domain rules",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	failed := 0
	for _, path := range args {
		sc, errs := schema.ValidateFile(path)
		printValidationWarnings(errs)
		if schema.HasErrors(errs) {
			failed++
			fmt.Fprintf(os.Stderr, "%s %s: %d error(s)\n", failStyle.Render("✗"), path, countValidationErrors(errs))
			n := 0
			for _, e := range errs {
				if e.Severity == "warning" {
					continue
				}
				n++
				fmt.Fprintf(os.Stderr, "  %d. [%s] %s\n", n, e.Phase, e.Message)
				if e.Path != "" {
					fmt.Fprintf(os.Stderr, "     at: %s\n", e.Path)
				}
			}
			continue
		}
		fmt.Printf("%s %s is valid (%d steps)\n", okStyle.Render("✓"), sc.Info.Name, len(sc.Requests))
	}
	if failed > 0 {
		return fmt.Errorf("validation failed for %d file(s)", failed)
	}
	return nil
}

func printValidationWarnings(errs []*schema.ValidationError) {
	for _, w := range errs {
		if w.Severity != "warning" {
			continue
		}
		fmt.Fprintf(os.Stderr, "  %s [%s] %s\n", warnStyle.Render("⚠"), w.Phase, w.Message)
		if w.Path != "" {
			fmt.Fprintf(os.Stderr, "    at: %s\n", w.Path)
		}
	}
}

func countValidationErrors(errs []*schema.ValidationError) int {
	n := 0
	for _, e := range errs {
		if e.Severity != "warning" {
			n++
		}
	}
	return n
}

// --- schema ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Scenario schema operations",
}

var schemaExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the scenario JSON Schema to stdout",
	RunE:  runSchemaExport,
}

func runSchemaExport(cmd *cobra.Command, args []string) error {
	data, err := schema.GenerateJSONSchema()
	if err != nil {
		return fmt.Errorf("generate schema: %w", err)
	}
	var out json.RawMessage = data
	formatted, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(formatted))
	return nil
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "clirun %s (build: %s)\n", version, commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (layered over ~/.config/clirun and ./.clirun)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json")

	schemaCmd.AddCommand(schemaExportCmd)

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(assertCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(traceCmd)
	rootCmd.AddCommand(diagramCmd)
	rootCmd.AddCommand(versionCmd)
}
