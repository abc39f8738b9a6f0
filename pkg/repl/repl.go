// Package repl is an interactive console for trying assertions against a
// saved step response.
package repl

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/chzyer/readline"

	"github.com/ormasoftchile/clirun/pkg/assertions"
	"github.com/ormasoftchile/clirun/pkg/expression"
	"github.com/ormasoftchile/clirun/pkg/response"
)

// Console evaluates one assertion per input line.
type Console struct {
	raw    *response.Raw
	scope  map[string]string
	output io.Writer
	rl     *readline.Instance
	passed int
	failed int
}

// New creates a console over raw with an initial variable scope.
func New(raw *response.Raw, scope map[string]string) *Console {
	if scope == nil {
		scope = map[string]string{}
	}
	return &Console{raw: raw, scope: scope, output: os.Stdout}
}

// SetOutput redirects console output.
func (c *Console) SetOutput(w io.Writer) {
	c.output = w
}

var commands = []string{":set", ":unset", ":vars", ":response", ":script", ":eval", ":help", ":quit"}

// Run starts the interactive loop until EOF, ^C or :quit.
func (c *Console) Run() error {
	completer := readline.NewPrefixCompleter()
	for _, cmd := range commands {
		completer.Children = append(completer.Children, readline.PcItem(cmd))
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          c.prompt(),
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       ":quit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	c.rl = rl
	defer rl.Close()

	fmt.Fprintf(c.output, "clirun assert: %d parsed keys, %d variables\n", len(c.raw.Parsed), len(c.scope))
	fmt.Fprintf(c.output, "Type an assertion, or ':help' for commands.\n\n")

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				c.printTally()
				return nil
			}
			return err
		}
		if c.Exec(line) {
			c.printTally()
			return nil
		}
		rl.SetPrompt(c.prompt())
	}
}

func (c *Console) prompt() string {
	return fmt.Sprintf("assert[%d✓ %d✗]> ", c.passed, c.failed)
}

func (c *Console) printTally() {
	fmt.Fprintf(c.output, "%d passed, %d failed\n", c.passed, c.failed)
}

// Exec handles one input line and reports whether the console should
// exit.
func (c *Console) Exec(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, ":") {
		c.assert(line)
		return false
	}
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch cmd {
	case ":set":
		key, val, ok := strings.Cut(rest, "=")
		if !ok || strings.TrimSpace(key) == "" {
			fmt.Fprintf(c.output, "usage: :set KEY=VALUE\n")
			return false
		}
		c.scope[strings.TrimSpace(key)] = val
	case ":unset":
		delete(c.scope, rest)
	case ":vars":
		c.printVars()
	case ":response":
		c.printResponse()
	case ":script":
		src, err := assertions.CompileScript(rest, rest)
		if err != nil {
			fmt.Fprintf(c.output, "Error: %v\n", err)
			return false
		}
		fmt.Fprint(c.output, src)
	case ":eval":
		c.eval(rest)
	case ":help":
		c.printHelp()
	case ":quit", ":q":
		return true
	default:
		fmt.Fprintf(c.output, "Unknown command: %q. Type ':help' for available commands.\n", cmd)
	}
	return false
}

func (c *Console) assert(text string) {
	ctx := assertions.NewContext(c.scope, c.raw)
	var res *assertions.Result
	if strings.HasPrefix(text, "{") {
		var obj map[string]any
		if err := json.Unmarshal([]byte(text), &obj); err != nil {
			fmt.Fprintf(c.output, "  ! invalid object assertion: %v\n", err)
			return
		}
		res = assertions.EvaluateObject(obj, ctx)
	} else {
		res = assertions.Evaluate(text, ctx)
	}
	Print(c.output, res)
	if res.Passed {
		c.passed++
	} else {
		c.failed++
	}
}

// Print writes one assertion result as a glyph line.
func Print(w io.Writer, res *assertions.Result) {
	switch {
	case res.IsError():
		fmt.Fprintf(w, "  ! %s\n", res.Message)
	case res.Passed:
		fmt.Fprintf(w, "  ✓ %s\n", res.Message)
	default:
		fmt.Fprintf(w, "  ✗ %s\n", res.Message)
		fmt.Fprintf(w, "    expected: %s\n    actual:   %s\n", expression.Format(res.Expected), expression.Format(res.Actual))
	}
}

func (c *Console) eval(code string) {
	env := expression.Builtins()
	for k, v := range c.raw.Parsed {
		env[k] = v
	}
	for k, v := range c.scope {
		env[k] = v
	}
	env["response"] = assertions.ResponseObject(c.raw)
	out, err := expression.Eval(expression.Strip(code), env)
	if err != nil {
		fmt.Fprintf(c.output, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.output, "%s\n", expression.Format(out))
}

func (c *Console) printVars() {
	if len(c.scope) == 0 {
		fmt.Fprintf(c.output, "(no variables)\n")
		return
	}
	keys := make([]string, 0, len(c.scope))
	for k := range c.scope {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(c.output, "  %s = %s\n", k, c.scope[k])
	}
}

func (c *Console) printResponse() {
	fmt.Fprintf(c.output, "  exitCode = %d\n  duration = %dms\n", c.raw.ExitCode, c.raw.DurationMs())
	keys := make([]string, 0, len(c.raw.Parsed))
	for k := range c.raw.Parsed {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(c.output, "  parsed.%s = %s\n", k, c.raw.Parsed[k])
	}
}

func (c *Console) printHelp() {
	fmt.Fprintf(c.output, `Assertions:
  <path> == <value>           e.g. response.result == 0000, RESULT != 9999
  <path> exists | not exists
  <path> contains <text>
  <path> > < >= <= <number>
  <path> is <type>            string, number, boolean, object, array
  <path> length == <n>
  <path> matches /re/flags
  expect(<path>).to.equal(<value>)
  {"expect": "<path>", "to": {"equal": <value>}}

Commands:
  :set KEY=VALUE    set a variable
  :unset KEY        remove a variable
  :vars             list variables
  :response         show the parsed response
  :script <text>    show the generated test script for an assertion
  :eval <expr>      evaluate an expression
  :help             show this help
  :quit             exit
`)
}
