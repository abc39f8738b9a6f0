package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/clirun/pkg/diagram"
	"github.com/ormasoftchile/clirun/pkg/schema"
)

var diagramFormat string

var diagramCmd = &cobra.Command{
	Use:   "diagram [scenario.json|yaml]",
	Short: "Draw the step flow of a scenario",
	Args:  cobra.ExactArgs(1),
	RunE:  runDiagram,
}

func runDiagram(cmd *cobra.Command, args []string) error {
	sc, err := schema.LoadFile(args[0])
	if err != nil {
		return err
	}
	out, err := diagram.Generate(sc, diagram.Format(diagramFormat))
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

func init() {
	diagramCmd.Flags().StringVar(&diagramFormat, "format", string(diagram.FormatASCII), "Diagram format: ascii or mermaid")
}
