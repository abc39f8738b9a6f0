package report

import (
	"fmt"
	"maps"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/ormasoftchile/clirun/pkg/assertions"
	"github.com/ormasoftchile/clirun/pkg/redact"
	"github.com/ormasoftchile/clirun/pkg/runtime"
	"github.com/ormasoftchile/clirun/pkg/schema"
)

// Error names carried by failed assertions.
const (
	ErrAssertion  = "AssertionError"
	ErrEvaluation = "EvaluationError"
	ErrRequest    = "RequestError"
)

// RequestAssertion is the name of the assertion recorded for a step that
// errored before any test could run.
const RequestAssertion = "request completed"

// Options tunes conversion.
type Options struct {
	// Redactor masks stdout and stderr bodies. Extraction and assertions
	// already ran on the unredacted text.
	Redactor *redact.Redactor
}

// Convert maps a scenario result to the report model. Only ids are random;
// everything else is a pure function of res.
func Convert(res *runtime.ScenarioResult, opts Options) *Report {
	rep := &Report{
		Collection: Collection{
			Info: CollectionInfo{
				ID:          uuid.NewString(),
				Name:        res.Info.Name,
				Description: res.Info.Description,
				Schema:      Schema,
			},
			Item: []Item{},
		},
		Run: Run{
			Executions: []Execution{},
			Failures:   []Failure{},
			Error:      res.Error,
		},
	}

	for pos, sr := range res.Steps {
		item := Item{ID: uuid.NewString(), Name: sr.Name, Request: requestOf(sr)}
		ex := Execution{
			ID:         uuid.NewString(),
			Cursor:     Cursor{Position: pos, Iteration: 0, Length: len(res.Steps), Ref: uuid.NewString()},
			Item:       ItemRef{ID: item.ID, Name: item.Name},
			Request:    item.Request,
			Response:   responseOf(sr, opts.Redactor),
			Assertions: assertionsOf(sr),
		}
		ex.TestScript = Script{ID: uuid.NewString(), Type: "text/javascript", Exec: scriptLines(sr)}
		if len(ex.TestScript.Exec) > 0 {
			item.Event = []ItemEvent{{Listen: "test", Script: ex.TestScript}}
		}
		if sr.Errored() {
			ex.RequestError = &Error{Name: ErrRequest, Message: sr.Error}
		}
		for _, a := range ex.Assertions {
			if a.Error != nil {
				rep.Run.Failures = append(rep.Run.Failures, Failure{
					Error:  *a.Error,
					At:     fmt.Sprintf("assertion:%d in test-script", a.Error.Index),
					Source: ex.Item,
					Cursor: ex.Cursor,
				})
			}
		}
		rep.Collection.Item = append(rep.Collection.Item, item)
		rep.Run.Executions = append(rep.Run.Executions, ex)
	}

	rep.Run.Stats = statsOf(res, rep.Run.Executions)
	rep.Run.Timings = timingsOf(rep.Run.Executions)
	rep.Run.Timings.Started = res.StartTime.UnixMilli()
	rep.Run.Timings.Completed = res.EndTime.UnixMilli()
	for _, ex := range rep.Run.Executions {
		rep.Run.Transfers.ResponseTotal += ex.Response.ResponseSize
	}
	rep.Run.SuccessRate = successRate(rep.Run.Stats.Requests)
	return rep
}

func requestOf(sr *runtime.StepResult) Request {
	req := Request{URL: sr.CommandString, Method: methodOf(sr.Type)}
	if req.URL == "" {
		req.URL = sr.Command
	}
	if sr.Type == schema.StepHTTP {
		req.URL = sr.Command
		for _, k := range slices.Sorted(maps.Keys(sr.Headers)) {
			req.Header = append(req.Header, Header{Key: k, Value: sr.Headers[k]})
		}
		if sr.Body != "" {
			req.Body = &Body{Mode: "raw", Raw: sr.Body}
		}
	}
	return req
}

func methodOf(t schema.StepType) string {
	switch t {
	case schema.StepHTTP:
		return http.MethodPost
	case schema.StepCrypto:
		return "CRYPTO"
	case schema.StepSleep:
		return "SLEEP"
	}
	return "EXEC"
}

func responseOf(sr *runtime.StepResult, r *redact.Redactor) Response {
	out := Response{ID: uuid.NewString(), Extracted: sr.Extracted}
	raw := sr.Response
	if raw == nil {
		out.Status = "Error"
		return out
	}
	out.Code = raw.ExitCode
	out.Body = r.Apply(raw.Stdout)
	out.Stderr = r.Apply(raw.Stderr)
	out.Parsed = raw.Parsed
	out.ResponseTime = raw.DurationMs()
	out.ResponseSize = len(raw.Stdout)
	out.Status = statusOf(sr)
	if sr.Type == schema.StepHTTP {
		if code, err := strconv.Atoi(raw.Parsed["status"]); err == nil {
			out.Code = code
		}
		if b, ok := raw.Parsed["body"]; ok {
			out.Body = r.Apply(b)
			out.ResponseSize = len(b)
		}
	}
	return out
}

func statusOf(sr *runtime.StepResult) string {
	raw := sr.Response
	switch {
	case sr.Errored():
		return "Error"
	case sr.Skipped:
		return "Skipped"
	case sr.Type == schema.StepHTTP:
		code, _ := strconv.Atoi(raw.Parsed["status"])
		if text := http.StatusText(code); text != "" {
			return text
		}
		return "Error"
	case raw.ExitCode == 0:
		return "OK"
	}
	return "Exit " + strconv.Itoa(raw.ExitCode)
}

func assertionsOf(sr *runtime.StepResult) []Assertion {
	out := []Assertion{}
	if sr.Errored() {
		return append(out, Assertion{
			Assertion: RequestAssertion,
			Error:     &Error{Name: ErrRequest, Index: 0, Test: RequestAssertion, Message: sr.Error},
		})
	}
	for i, tr := range sr.Tests {
		a := Assertion{
			Assertion:   tr.Name,
			Description: tr.Description,
			Expected:    tr.Expected,
			Actual:      tr.Actual,
		}
		switch {
		case tr.Error != "":
			a.Error = &Error{Name: ErrEvaluation, Index: i, Test: tr.Name, Message: tr.Error}
		case !tr.Passed:
			a.Error = &Error{Name: ErrAssertion, Index: i, Test: tr.Name, Message: failureMessage(tr)}
		}
		out = append(out, a)
	}
	return out
}

func failureMessage(tr runtime.TestResult) string {
	check := tr.Assertion
	if check == "" {
		check = tr.Script
	}
	return fmt.Sprintf("%s: expected %s but got %s", check, quoteOrUnset(tr.Expected), quoteOrUnset(tr.Actual))
}

func quoteOrUnset(s string) string {
	if s == "" {
		return "<unset>"
	}
	return strconv.Quote(s)
}

// scriptLines renders each test as generated script source. Expression
// tests are kept as comments.
func scriptLines(sr *runtime.StepResult) []string {
	var names, texts []string
	var lines []string
	for _, tr := range sr.Tests {
		if tr.Assertion != "" {
			names = append(names, tr.Name)
			texts = append(texts, tr.Assertion)
			continue
		}
		if tr.Script != "" {
			lines = append(lines, "// "+tr.Name+": "+tr.Script)
		}
	}
	src := strings.TrimRight(assertions.CompileScripts(names, texts), "\n")
	if src != "" {
		lines = append(strings.Split(src, "\n"), lines...)
	}
	return lines
}

func statsOf(res *runtime.ScenarioResult, execs []Execution) Stats {
	var st Stats
	st.Iterations.Total = 1
	if !res.Success {
		st.Iterations.Failed = 1
	}
	st.Items.Total = len(execs)
	st.Requests.Total = len(execs)
	for _, ex := range execs {
		failed := false
		for _, a := range ex.Assertions {
			st.Assertions.Total++
			if a.Error != nil {
				st.Assertions.Failed++
				failed = true
			}
		}
		if failed {
			st.Requests.Failed++
			st.Items.Failed++
		}
		if len(ex.TestScript.Exec) > 0 {
			st.TestScripts.Total++
			st.Scripts.Total++
			if failed {
				st.TestScripts.Failed++
				st.Scripts.Failed++
			}
		}
	}
	st.Tests = st.Assertions
	return st
}

func timingsOf(execs []Execution) Timings {
	var t Timings
	if len(execs) == 0 {
		return t
	}
	var sum float64
	t.ResponseMin = math.Inf(1)
	for _, ex := range execs {
		v := float64(ex.Response.ResponseTime)
		sum += v
		if v < t.ResponseMin {
			t.ResponseMin = v
		}
		if v > t.ResponseMax {
			t.ResponseMax = v
		}
	}
	t.ResponseAverage = sum / float64(len(execs))
	var sq float64
	for _, ex := range execs {
		d := float64(ex.Response.ResponseTime) - t.ResponseAverage
		sq += d * d
	}
	t.ResponseSd = math.Sqrt(sq / float64(len(execs)))
	return t
}

// successRate is passed/total requests as a percentage with one decimal.
func successRate(c Counter) float64 {
	if c.Total == 0 {
		return 0
	}
	passed := c.Total - c.Failed
	return math.Round(float64(passed)/float64(c.Total)*1000) / 10
}
