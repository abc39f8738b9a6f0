package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/ormasoftchile/clirun/pkg/assertions"
	"github.com/ormasoftchile/clirun/pkg/expression"
)

// ValidationError represents a single validation error with location context.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // JSON-path-like location (e.g., "requests[0].extractors[1]")
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// HasErrors reports whether any entry has error severity.
func HasErrors(errs []*ValidationError) bool {
	for _, e := range errs {
		if e.Severity == "error" {
			return true
		}
	}
	return false
}

// ValidateFile performs the full 3-phase validation pipeline on a scenario file.
// Phase 1: Structural (strict decode)
// Phase 2: Semantic (JSON Schema validation)
// Phase 3: Domain (custom Go rules)
func ValidateFile(path string) (*Scenario, []*ValidationError) {
	sc, err := LoadFile(path)
	if err != nil {
		return nil, []*ValidationError{{
			Phase:    "structural",
			Message:  err.Error(),
			Severity: "error",
		}}
	}
	return sc, Validate(sc)
}

// Validate runs the semantic and domain phases on an already decoded
// scenario. A nil result means the scenario is valid.
func Validate(sc *Scenario) []*ValidationError {
	var all []*ValidationError
	all = append(all, validateSemantic(sc)...)
	all = append(all, ValidateDomain(sc)...)
	if len(all) == 0 {
		return nil
	}
	return all
}

func semanticError(format string, args ...any) []*ValidationError {
	return []*ValidationError{{
		Phase:    "semantic",
		Message:  fmt.Sprintf(format, args...),
		Severity: "error",
	}}
}

// validateSemantic validates the scenario against the generated JSON Schema.
func validateSemantic(sc *Scenario) []*ValidationError {
	data, err := json.Marshal(sc)
	if err != nil {
		return semanticError("marshal for schema validation: %v", err)
	}

	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return semanticError("generate schema: %v", err)
	}
	schemaDoc, err := sjsonschema.UnmarshalJSON(strings.NewReader(string(schemaJSON)))
	if err != nil {
		return semanticError("unmarshal schema: %v", err)
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("scenario-v1.json", schemaDoc); err != nil {
		return semanticError("add schema resource: %v", err)
	}
	sch, err := c.Compile("scenario-v1.json")
	if err != nil {
		return semanticError("compile schema: %v", err)
	}

	doc, err := sjsonschema.UnmarshalJSON(strings.NewReader(string(data)))
	if err != nil {
		return semanticError("unmarshal document: %v", err)
	}

	if err := sch.Validate(doc); err != nil {
		ve, ok := err.(*sjsonschema.ValidationError)
		if !ok {
			return semanticError("%v", err)
		}
		var errs []*ValidationError
		for _, cause := range flattenValidationErrors(ve) {
			errs = append(errs, &ValidationError{
				Phase:    "semantic",
				Path:     strings.Join(cause.InstanceLocation, "/"),
				Message:  fmt.Sprintf("%v", cause.ErrorKind),
				Severity: "error",
			})
		}
		return errs
	}
	return nil
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

// ValidateDomain applies the rules JSON Schema cannot express.
func ValidateDomain(sc *Scenario) []*ValidationError {
	var errs []*ValidationError
	add := func(path, severity, format string, args ...any) {
		errs = append(errs, domainErr(path, severity, format, args...))
	}

	if strings.TrimSpace(sc.Info.Name) == "" {
		add("info.name", "error", "scenario name must not be empty")
	}

	seen := make(map[string]bool)
	for i, v := range sc.Variables {
		path := fmt.Sprintf("variables[%d]", i)
		if strings.TrimSpace(v.Key) == "" {
			add(path, "error", "variable key must not be empty")
			continue
		}
		if seen[v.Key] {
			add(path, "warning", "variable %q is defined more than once; the last value wins", v.Key)
		}
		seen[v.Key] = true
	}

	for i, step := range sc.Requests {
		path := fmt.Sprintf("requests[%d]", i)
		if strings.TrimSpace(step.Name) == "" {
			add(path+".name", "error", "step name must not be empty")
		}
		if step.Timeout != "" {
			if _, err := time.ParseDuration(step.Timeout); err != nil {
				add(path+".timeout", "error", "invalid timeout %q", step.Timeout)
			}
		}
		errs = append(errs, validateStepType(path, step)...)
		for j, ex := range step.Extractors {
			errs = append(errs, validateExtractor(fmt.Sprintf("%s.extractors[%d]", path, j), ex)...)
		}
		for j, ts := range step.Tests {
			errs = append(errs, validateTest(fmt.Sprintf("%s.tests[%d]", path, j), ts)...)
		}
	}
	return errs
}

func domainErr(path, severity, format string, args ...any) *ValidationError {
	return &ValidationError{
		Phase:    "domain",
		Path:     path,
		Message:  fmt.Sprintf(format, args...),
		Severity: severity,
	}
}

func validateStepType(path string, step Step) []*ValidationError {
	var errs []*ValidationError
	switch step.Type {
	case StepProcess:
		if step.Arguments.Len() == 0 {
			errs = append(errs, domainErr(path+".arguments", "warning", "process step has no arguments"))
		}
	case StepCrypto:
		op, _ := step.Arguments.Get("operation")
		if op != "encrypt" && op != "decrypt" && !strings.Contains(op, "{{") {
			errs = append(errs, domainErr(path+".arguments.operation", "error", "crypto operation must be encrypt or decrypt, got %q", op))
		}
		for _, k := range []string{"key", "data"} {
			if _, ok := step.Arguments.Get(k); !ok {
				errs = append(errs, domainErr(path+".arguments."+k, "error", "crypto step requires %q", k))
			}
		}
	case StepHTTP:
		cmd := strings.TrimSpace(step.Command)
		if !strings.Contains(cmd, "{{") && !strings.HasPrefix(cmd, "http://") && !strings.HasPrefix(cmd, "https://") {
			errs = append(errs, domainErr(path+".command", "error", "http step command must be an http(s) URL, got %q", cmd))
		}
	case StepSleep:
		if d, ok := step.Arguments.Get("duration"); ok && !strings.Contains(d, "{{") {
			if _, err := ParseSleepDuration(d); err != nil {
				errs = append(errs, domainErr(path+".arguments.duration", "error", "%v", err))
			}
		}
	default:
		errs = append(errs, domainErr(path+".type", "error", "unknown step type %q (want crypto, http, sleep or empty)", step.Type))
	}
	return errs
}

func validateExtractor(path string, ex Extractor) []*ValidationError {
	var errs []*ValidationError
	if strings.TrimSpace(ex.Variable) == "" {
		errs = append(errs, domainErr(path+".variable", "error", "extractor variable must not be empty"))
	}
	switch {
	case strings.TrimSpace(ex.Pattern) == "":
		errs = append(errs, domainErr(path+".pattern", "error", "extractor pattern must not be empty"))
	case expression.HasPrefix(ex.Pattern):
		if err := expression.Check(expression.Strip(ex.Pattern)); err != nil {
			errs = append(errs, domainErr(path+".pattern", "error", "%v", err))
		}
	case IsRegexPattern(ex.Pattern):
		if _, err := regexp.Compile(ex.Pattern); err != nil {
			errs = append(errs, domainErr(path+".pattern", "error", "invalid regex: %v", err))
		}
	}
	return errs
}

func validateTest(path string, ts TestSpec) []*ValidationError {
	var errs []*ValidationError
	if strings.TrimSpace(ts.Name) == "" {
		errs = append(errs, domainErr(path+".name", "error", "test name must not be empty"))
	}
	if ts.Assertion == "" && ts.Script == "" {
		errs = append(errs, domainErr(path, "warning", "test has neither assertion nor script and will always error"))
	}
	if ts.Assertion != "" {
		if _, err := assertions.ParseInline(ts.Assertion); err != nil {
			errs = append(errs, domainErr(path+".assertion", "warning", "%v; the test will error at run time", err))
		}
	}
	if ts.Script != "" {
		if err := expression.Check(expression.Strip(ts.Script)); err != nil {
			errs = append(errs, domainErr(path+".script", "error", "%v", err))
		}
	}
	return errs
}

// IsRegexPattern reports whether an extractor pattern is treated as a
// regular expression rather than a literal field name.
func IsRegexPattern(p string) bool {
	return strings.ContainsAny(p, `\([`)
}

// ParseSleepDuration accepts a Go duration ("1500ms", "2s") or a bare
// integer number of milliseconds.
func ParseSleepDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("sleep duration must not be negative")
		}
		return time.Duration(n) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid sleep duration %q", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("sleep duration must not be negative")
	}
	return d, nil
}
