package report

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"
)

type junitSuites struct {
	XMLName  xml.Name     `xml:"testsuites"`
	Name     string       `xml:"name,attr"`
	Tests    int          `xml:"tests,attr"`
	Failures int          `xml:"failures,attr"`
	Errors   int          `xml:"errors,attr"`
	Time     string       `xml:"time,attr"`
	Suites   []junitSuite `xml:"testsuite"`
}

type junitSuite struct {
	Name      string      `xml:"name,attr"`
	ID        string      `xml:"id,attr"`
	Timestamp string      `xml:"timestamp,attr,omitempty"`
	Tests     int         `xml:"tests,attr"`
	Failures  int         `xml:"failures,attr"`
	Errors    int         `xml:"errors,attr"`
	Time      string      `xml:"time,attr"`
	Cases     []junitCase `xml:"testcase"`
	SystemOut string      `xml:"system-out,omitempty"`
}

type junitCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitProblem `xml:"failure,omitempty"`
	Error     *junitProblem `xml:"error,omitempty"`
}

type junitProblem struct {
	Type    string `xml:"type,attr"`
	Message string `xml:"message,attr"`
	Body    string `xml:",chardata"`
}

func seconds(ms int64) string {
	return fmt.Sprintf("%.3f", float64(ms)/1000)
}

// RenderXML writes a JUnit document: one testsuite per execution and one
// testcase per assertion, classified by the step name.
func RenderXML(w io.Writer, rep *Report) error {
	doc := junitSuites{Name: rep.Collection.Info.Name}
	var total int64
	for _, ex := range rep.Run.Executions {
		suite := junitSuite{
			Name:      ex.Item.Name,
			ID:        ex.Item.ID,
			Tests:     len(ex.Assertions),
			Time:      seconds(ex.Response.ResponseTime),
			SystemOut: ex.Response.Body,
		}
		if rep.Run.Timings.Started != 0 {
			suite.Timestamp = time.UnixMilli(rep.Run.Timings.Started).UTC().Format(time.RFC3339)
		}
		for _, a := range ex.Assertions {
			tc := junitCase{
				Name:      a.Assertion,
				Classname: ex.Item.Name,
				Time:      seconds(ex.Response.ResponseTime),
			}
			if e := a.Error; e != nil {
				p := &junitProblem{Type: e.Name, Message: e.Message, Body: e.Message}
				if e.Name == ErrAssertion {
					tc.Failure = p
					suite.Failures++
				} else {
					tc.Error = p
					suite.Errors++
				}
			}
			suite.Cases = append(suite.Cases, tc)
		}
		total += ex.Response.ResponseTime
		doc.Tests += suite.Tests
		doc.Failures += suite.Failures
		doc.Errors += suite.Errors
		doc.Suites = append(doc.Suites, suite)
	}
	doc.Time = seconds(total)

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode junit: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}
