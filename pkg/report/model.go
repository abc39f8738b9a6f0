// Package report converts scenario results into a Newman-compatible
// collection/run model and renders it as html, json, xml, xlsx or markdown.
package report

// Schema is the collection format identifier written into reports.
const Schema = "https://schema.getpostman.com/json/collection/v2.1.0/collection.json"

// Report is the top-level document: what ran and how it went.
type Report struct {
	Collection Collection `json:"collection"`
	Run        Run        `json:"run"`
}

type Collection struct {
	Info CollectionInfo `json:"info"`
	Item []Item         `json:"item"`
}

type CollectionInfo struct {
	ID          string `json:"_postman_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Schema      string `json:"schema"`
}

type Item struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Request Request     `json:"request"`
	Event   []ItemEvent `json:"event,omitempty"`
}

type ItemEvent struct {
	Listen string `json:"listen"`
	Script Script `json:"script"`
}

// Script is a block of generated test script source, one line per entry.
type Script struct {
	ID   string   `json:"id,omitempty"`
	Type string   `json:"type"`
	Exec []string `json:"exec"`
}

type Request struct {
	URL    string   `json:"url"`
	Method string   `json:"method"`
	Header []Header `json:"header,omitempty"`
	Body   *Body    `json:"body,omitempty"`
}

type Header struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Body struct {
	Mode string `json:"mode"`
	Raw  string `json:"raw"`
}

type Run struct {
	Stats       Stats       `json:"stats"`
	Timings     Timings     `json:"timings"`
	Executions  []Execution `json:"executions"`
	Transfers   Transfers   `json:"transfers"`
	Failures    []Failure   `json:"failures"`
	SuccessRate float64     `json:"successRate"`
	Error       string      `json:"error,omitempty"`
}

// Counter is a total/pending/failed triple.
type Counter struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Failed  int `json:"failed"`
}

type Stats struct {
	Iterations        Counter `json:"iterations"`
	Items             Counter `json:"items"`
	Scripts           Counter `json:"scripts"`
	Prerequests       Counter `json:"prerequests"`
	Requests          Counter `json:"requests"`
	Tests             Counter `json:"tests"`
	Assertions        Counter `json:"assertions"`
	TestScripts       Counter `json:"testScripts"`
	PrerequestScripts Counter `json:"prerequestScripts"`
}

// Timings holds response-time statistics in milliseconds and run
// boundaries in Unix milliseconds.
type Timings struct {
	ResponseAverage float64 `json:"responseAverage"`
	ResponseMin     float64 `json:"responseMin"`
	ResponseMax     float64 `json:"responseMax"`
	ResponseSd      float64 `json:"responseSd"`
	Started         int64   `json:"started"`
	Completed       int64   `json:"completed"`
}

type Transfers struct {
	ResponseTotal int `json:"responseTotal"`
}

type Execution struct {
	ID           string      `json:"id"`
	Cursor       Cursor      `json:"cursor"`
	Item         ItemRef     `json:"item"`
	Request      Request     `json:"request"`
	Response     Response    `json:"response"`
	Assertions   []Assertion `json:"assertions"`
	TestScript   Script      `json:"testScript"`
	RequestError *Error      `json:"requestError,omitempty"`
}

type Cursor struct {
	Position  int    `json:"position"`
	Iteration int    `json:"iteration"`
	Length    int    `json:"length"`
	Ref       string `json:"ref"`
}

type ItemRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Response struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Code         int               `json:"code"`
	Body         string            `json:"body"`
	Stderr       string            `json:"stderr,omitempty"`
	Parsed       map[string]string `json:"parsed,omitempty"`
	Extracted    map[string]string `json:"extracted,omitempty"`
	ResponseTime int64             `json:"responseTime"`
	ResponseSize int               `json:"responseSize"`
}

// Assertion is one test outcome. Error is set when the test did not pass.
type Assertion struct {
	Assertion   string `json:"assertion"`
	Description string `json:"description,omitempty"`
	Expected    string `json:"expected,omitempty"`
	Actual      string `json:"actual,omitempty"`
	Skipped     bool   `json:"skipped"`
	Error       *Error `json:"error,omitempty"`
}

// Passed reports whether the assertion holds.
func (a Assertion) Passed() bool {
	return a.Error == nil && !a.Skipped
}

type Error struct {
	Name    string `json:"name"`
	Index   int    `json:"index"`
	Test    string `json:"test,omitempty"`
	Message string `json:"message"`
}

type Failure struct {
	Error  Error   `json:"error"`
	At     string  `json:"at"`
	Source ItemRef `json:"source"`
	Cursor Cursor  `json:"cursor"`
}
