package assertions

import "github.com/ormasoftchile/clirun/pkg/response"

// ResponseObject exposes a raw step response to path lookups. Parsed keys
// are reachable both under "parsed" and directly, unless they collide with
// one of the fixed fields.
func ResponseObject(raw *response.Raw) map[string]any {
	if raw == nil {
		return map[string]any{}
	}
	parsed := make(map[string]any, len(raw.Parsed))
	for k, v := range raw.Parsed {
		parsed[k] = v
	}
	obj := make(map[string]any, len(parsed)+5)
	for k, v := range parsed {
		obj[k] = v
	}
	obj["exitCode"] = float64(raw.ExitCode)
	obj["stdout"] = raw.Stdout
	obj["stderr"] = raw.Stderr
	obj["duration"] = float64(raw.DurationMs())
	obj["parsed"] = parsed
	return obj
}

// NewContext builds a lookup context from a scope snapshot and a response.
func NewContext(scope map[string]string, raw *response.Raw) Context {
	return Context{Scope: scope, Response: ResponseObject(raw)}
}
