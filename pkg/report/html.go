package report

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"
)

var htmlEscaper = strings.NewReplacer(
	`&`, "&amp;",
	`<`, "&lt;",
	`>`, "&gt;",
	`"`, "&quot;",
	`'`, "&#39;",
)

// Escape makes s safe as HTML text or a quoted attribute value.
func Escape(s string) string {
	return htmlEscaper.Replace(s)
}

var htmlFuncs = template.FuncMap{
	"esc": Escape,
	"ms": func(v float64) string {
		return fmt.Sprintf("%.1f ms", v)
	},
	"when": func(ms int64) string {
		if ms == 0 {
			return ""
		}
		return time.UnixMilli(ms).Format(time.RFC3339)
	},
	"add": func(a, b int) int { return a + b },
}

var htmlTemplate = template.Must(template.New("report").Funcs(htmlFuncs).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{esc .Collection.Info.Name}}</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem; color: #222; }
h1 { margin-bottom: .2rem; }
.muted { color: #777; }
.cards { display: flex; gap: 1rem; margin: 1rem 0; }
.card { border: 1px solid #ddd; border-radius: 6px; padding: .6rem 1rem; min-width: 8rem; }
.card b { display: block; font-size: 1.4rem; }
details { border: 1px solid #ddd; border-radius: 6px; margin: .5rem 0; padding: .4rem .8rem; }
details.fail { border-color: #e55; }
summary { cursor: pointer; font-weight: 600; }
.pass { color: #2a2; }
.fail-text { color: #d33; }
.assertion[title] { border-bottom: 1px dotted #999; cursor: help; }
pre { background: #f6f6f6; padding: .6rem; overflow-x: auto; white-space: pre-wrap; }
table { border-collapse: collapse; }
td, th { padding: .2rem .6rem; text-align: left; }
</style>
</head>
<body>
<h1>{{esc .Collection.Info.Name}}</h1>
{{- with .Collection.Info.Description}}
<p class="muted">{{esc .}}</p>
{{- end}}
<p class="muted">{{when .Run.Timings.Started}} to {{when .Run.Timings.Completed}}</p>
<div class="cards">
<div class="card">Requests<b>{{.Run.Stats.Requests.Total}}</b></div>
<div class="card">Failed<b>{{.Run.Stats.Requests.Failed}}</b></div>
<div class="card">Assertions<b>{{.Run.Stats.Assertions.Total}}</b></div>
<div class="card">Success rate<b>{{printf "%.1f" .Run.SuccessRate}}%</b></div>
</div>
<table>
<tr><th>Average response</th><td>{{ms .Run.Timings.ResponseAverage}}</td></tr>
<tr><th>Min response</th><td>{{ms .Run.Timings.ResponseMin}}</td></tr>
<tr><th>Max response</th><td>{{ms .Run.Timings.ResponseMax}}</td></tr>
</table>
{{- with .Run.Error}}
<p class="fail-text">Run stopped: {{esc .}}</p>
{{- end}}
<h2>Executions</h2>
{{- range $i, $ex := .Run.Executions}}
<details class="execution{{range .Assertions}}{{if .Error}} fail{{break}}{{end}}{{end}}">
<summary>{{add $i 1}}. {{esc .Item.Name}} <span class="muted">{{esc .Response.Status}} &middot; {{.Response.ResponseTime}} ms</span></summary>
<p><code>{{esc .Request.Method}} {{esc .Request.URL}}</code></p>
{{- with .Request.Body}}
<pre>{{esc .Raw}}</pre>
{{- end}}
<ul>
{{- range .Assertions}}
<li><span class="assertion"{{with .Description}} title="{{esc .}}"{{end}}>{{esc .Assertion}}</span>
{{- if .Error}} <span class="fail-text">&#10007; {{esc .Error.Message}}</span>{{else}} <span class="pass">&#10003;</span>{{end}}</li>
{{- end}}
</ul>
<details>
<summary>Response</summary>
<pre>{{esc .Response.Body}}</pre>
{{- with .Response.Stderr}}
<pre class="fail-text">{{esc .}}</pre>
{{- end}}
</details>
{{- with .Response.Extracted}}
<details>
<summary>Extracted</summary>
<table>
{{- range $k, $v := .}}
<tr><td>{{esc $k}}</td><td>{{esc $v}}</td></tr>
{{- end}}
</table>
</details>
{{- end}}
{{- with .TestScript.Exec}}
<details>
<summary>Test script</summary>
<pre>{{range .}}{{esc .}}
{{end}}</pre>
</details>
{{- end}}
</details>
{{- end}}
</body>
</html>
`))

// RenderHTML writes a standalone HTML report. Every embedded string goes
// through Escape.
func RenderHTML(w io.Writer, rep *Report) error {
	return htmlTemplate.Execute(w, rep)
}
