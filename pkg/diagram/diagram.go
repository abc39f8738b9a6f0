// Package diagram renders a scenario as a flowchart of its steps, showing
// which variables each step extracts and which steps are gated.
// Supports Mermaid flowchart and ASCII formats.
package diagram

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/ormasoftchile/clirun/pkg/schema"
)

// Format represents the output diagram format.
type Format string

const (
	FormatMermaid Format = "mermaid"
	FormatASCII   Format = "ascii"
)

// Generate produces a diagram string from a parsed scenario.
func Generate(sc *schema.Scenario, format Format) (string, error) {
	if sc == nil {
		return "", fmt.Errorf("nil scenario")
	}
	steps := collect(sc)
	switch format {
	case FormatMermaid:
		return generateMermaid(steps, sc.StopsOnError()), nil
	case FormatASCII:
		return generateASCII(sc.Info.Name, steps), nil
	default:
		return "", fmt.Errorf("unsupported diagram format: %s", format)
	}
}

type diagramStep struct {
	id       string
	title    string
	stepType schema.StepType
	capture  string
	tests    int
	when     string
}

func collect(sc *schema.Scenario) []diagramStep {
	out := make([]diagramStep, 0, len(sc.Requests))
	for i, s := range sc.Requests {
		ds := diagramStep{
			id:       fmt.Sprintf("S%d", i+1),
			title:    s.Name,
			stepType: s.Type,
			tests:    len(s.Tests),
		}
		var caps []string
		for _, ex := range s.Extractors {
			caps = append(caps, ex.Variable)
		}
		ds.capture = strings.Join(caps, ", ")
		if s.Type == schema.StepSleep {
			ds.when, _ = s.Arguments.Get("when")
		}
		out = append(out, ds)
	}
	return out
}

// --- Mermaid flowchart ---

func generateMermaid(steps []diagramStep, stopOnError bool) string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")
	if len(steps) == 0 {
		return b.String()
	}

	b.WriteString("    START([Start]) --> " + entryID(steps[0]) + "\n")
	for i, s := range steps {
		next := "END"
		if i < len(steps)-1 {
			next = entryID(steps[i+1])
		}
		if s.when != "" {
			fmt.Fprintf(&b, "    %s{%q}\n", entryID(s), s.when+" set?")
			fmt.Fprintf(&b, "    %s -->|yes| %s\n", entryID(s), s.id)
			fmt.Fprintf(&b, "    %s -->|no| %s\n", entryID(s), next)
		}
		b.WriteString("    " + nodeDefinition(s) + "\n")
		fmt.Fprintf(&b, "    %s --> %s\n", s.id, next)
		if stopOnError {
			fmt.Fprintf(&b, "    %s -.->|error| STOP\n", s.id)
		}
	}
	b.WriteString("    END([Done])\n")
	if stopOnError {
		b.WriteString("    STOP([Stopped])\n")
		b.WriteString("    style STOP fill:#e60,stroke:#c40,color:#fff\n")
	}
	return b.String()
}

func entryID(s diagramStep) string {
	if s.when != "" {
		return s.id + "_gate"
	}
	return s.id
}

func nodeDefinition(s diagramStep) string {
	label := stepIcon(s.stepType) + " " + escMermaid(s.title)
	if s.capture != "" {
		label += "<br/>→ " + escMermaid(s.capture)
	}
	if s.tests > 0 {
		label += fmt.Sprintf("<br/>%d test(s)", s.tests)
	}
	switch s.stepType {
	case schema.StepHTTP:
		return fmt.Sprintf(`%s[/"%s"/]`, s.id, label)
	case schema.StepSleep:
		return fmt.Sprintf(`%s(["%s"])`, s.id, label)
	case schema.StepCrypto:
		return fmt.Sprintf(`%s[["%s"]]`, s.id, label)
	default:
		return fmt.Sprintf(`%s["%s"]`, s.id, label)
	}
}

// --- ASCII ---

func generateASCII(name string, steps []diagramStep) string {
	var b strings.Builder
	if name == "" {
		name = "Scenario"
	}
	if len(steps) == 0 {
		b.WriteString(name + " (empty)\n")
		return b.String()
	}

	const indent = 8
	boxWidth := computeUniformBoxWidth(steps, name)
	connPad := strings.Repeat(" ", indent+1+boxWidth/2)
	pad := strings.Repeat(" ", indent)
	mid := boxWidth / 2

	b.WriteString(pad + "╔" + strings.Repeat("═", boxWidth) + "╗\n")
	b.WriteString(pad + "║" + centerPad(name, boxWidth) + "║\n")
	b.WriteString(pad + "╚" + strings.Repeat("═", mid) + "╤" + strings.Repeat("═", boxWidth-mid-1) + "╝\n")

	for _, s := range steps {
		b.WriteString(connPad + "│\n")
		writeASCIIStep(&b, s, indent, boxWidth)
	}
	return b.String()
}

func stepLines(s diagramStep) []string {
	lines := []string{fmt.Sprintf(" %s %s ", stepIcon(s.stepType), s.title)}
	if s.when != "" {
		lines = append(lines, " ? only if "+s.when+" is set ")
	}
	if s.capture != "" {
		lines = append(lines, " → "+s.capture+" ")
	}
	if s.tests > 0 {
		lines = append(lines, fmt.Sprintf(" ✓ %d test(s) ", s.tests))
	}
	return lines
}

// computeUniformBoxWidth returns the widest interior width needed
// across all steps and the header name.
func computeUniformBoxWidth(steps []diagramStep, name string) int {
	w := 22
	if nw := runewidth.StringWidth(name) + 4; nw > w {
		w = nw
	}
	for _, s := range steps {
		for _, l := range stepLines(s) {
			if lw := runewidth.StringWidth(l); lw > w {
				w = lw
			}
		}
	}
	return w
}

// centerPad centers s within width using spaces, based on display width.
func centerPad(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	left := (width - sw) / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", width-sw-left)
}

func writeASCIIStep(b *strings.Builder, s diagramStep, indent, boxWidth int) {
	pad := strings.Repeat(" ", indent)
	mid := boxWidth / 2
	b.WriteString(pad + "┌" + strings.Repeat("─", boxWidth) + "┐\n")
	for _, l := range stepLines(s) {
		b.WriteString(pad + "│" + runewidth.FillRight(l, boxWidth) + "│\n")
	}
	b.WriteString(pad + "└" + strings.Repeat("─", mid) + "┬" + strings.Repeat("─", boxWidth-mid-1) + "┘\n")
}

func stepIcon(t schema.StepType) string {
	switch t {
	case schema.StepCrypto:
		return "🔒"
	case schema.StepHTTP:
		return "🌐"
	case schema.StepSleep:
		return "⏱"
	default:
		return "⚡"
	}
}

func escMermaid(s string) string {
	s = strings.ReplaceAll(s, `"`, "#quot;")
	s = strings.ReplaceAll(s, `'`, "#apos;")
	return s
}
