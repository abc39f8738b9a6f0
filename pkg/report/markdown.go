package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
)

// Markdown renders a summary table and the failures of rep.
func Markdown(rep *Report) string {
	var b strings.Builder
	st := rep.Run.Stats
	fmt.Fprintf(&b, "# %s\n\n", mdText(rep.Collection.Info.Name))
	if d := rep.Collection.Info.Description; d != "" {
		fmt.Fprintf(&b, "%s\n\n", mdText(d))
	}
	b.WriteString("| | total | failed |\n|---|---:|---:|\n")
	fmt.Fprintf(&b, "| requests | %d | %d |\n", st.Requests.Total, st.Requests.Failed)
	fmt.Fprintf(&b, "| assertions | %d | %d |\n\n", st.Assertions.Total, st.Assertions.Failed)
	fmt.Fprintf(&b, "Success rate **%.1f%%**, response avg %.1f ms (min %.0f, max %.0f)\n\n",
		rep.Run.SuccessRate, rep.Run.Timings.ResponseAverage, rep.Run.Timings.ResponseMin, rep.Run.Timings.ResponseMax)

	b.WriteString("## Steps\n\n| # | step | status | time | assertions |\n|---:|---|---|---:|---|\n")
	for i, ex := range rep.Run.Executions {
		passed := 0
		for _, a := range ex.Assertions {
			if a.Passed() {
				passed++
			}
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %d ms | %d/%d |\n",
			i+1, mdText(ex.Item.Name), mdText(ex.Response.Status), ex.Response.ResponseTime, passed, len(ex.Assertions))
	}

	if len(rep.Run.Failures) > 0 {
		b.WriteString("\n## Failures\n\n")
		for i, f := range rep.Run.Failures {
			fmt.Fprintf(&b, "%d. **%s** / %s: %s\n", i+1, mdText(f.Source.Name), mdText(f.Error.Test), mdText(f.Error.Message))
		}
	}
	if rep.Run.Error != "" {
		fmt.Fprintf(&b, "\nRun stopped: %s\n", mdText(rep.Run.Error))
	}
	return b.String()
}

var mdEscaper = strings.NewReplacer("|", `\|`, "\n", " ", "*", `\*`, "_", `\_`, "`", "\\`")

func mdText(s string) string {
	return mdEscaper.Replace(s)
}

// Terminal renders the markdown summary for a terminal of the given
// width. The raw markdown is returned when styling fails.
func Terminal(rep *Report, width int) string {
	md := Markdown(rep)
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n") + "\n"
}
