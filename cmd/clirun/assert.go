package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/clirun/pkg/assertions"
	"github.com/ormasoftchile/clirun/pkg/repl"
	"github.com/ormasoftchile/clirun/pkg/response"
)

var (
	assertExprs    []string
	assertVars     []string
	assertExitCode int
	assertEncoding string
)

var assertCmd = &cobra.Command{
	Use:   "assert [response.txt]",
	Short: "Check assertions against a saved client response",
	Long: `Evaluate assertions against captured client stdout. With -e each
assertion is evaluated once; without it an interactive console starts.`,
	Args: cobra.ExactArgs(1),
	RunE: runAssert,
}

func runAssert(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	stdout, err := response.Decode(response.TrimBOM(data), assertEncoding)
	if err != nil {
		return err
	}
	scope, err := parseVars(assertVars)
	if err != nil {
		return err
	}
	raw := response.New(assertExitCode, stdout, "", 0)

	if len(assertExprs) == 0 {
		return repl.New(raw, scope).Run()
	}

	ctx := assertions.NewContext(scope, raw)
	failed := 0
	for _, text := range assertExprs {
		res := assertions.Evaluate(text, ctx)
		repl.Print(cmd.OutOrStdout(), res)
		if !res.Passed {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d assertion(s) failed", failed, len(assertExprs))
	}
	return nil
}

func init() {
	assertCmd.Flags().StringArrayVarP(&assertExprs, "expr", "e", nil, "Assertion to evaluate, repeatable")
	assertCmd.Flags().StringArrayVar(&assertVars, "var", nil, "Scope variable (key=value), repeatable")
	assertCmd.Flags().IntVar(&assertExitCode, "exit-code", 0, "Exit code of the captured run")
	assertCmd.Flags().StringVar(&assertEncoding, "encoding", response.EncodingUTF8, "Encoding of the response file: utf-8, euc-kr or auto")
}
