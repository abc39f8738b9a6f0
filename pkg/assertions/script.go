package assertions

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CompileScript renders assertion text as a Postman-style test script so
// scenario results can be carried into tools that expect pm.test blocks.
// name is the test title; when empty the assertion text is used.
func CompileScript(name, text string) (string, error) {
	a, err := Parse(text)
	if err != nil {
		return "", err
	}
	if name == "" {
		name = a.Raw
	}
	return fmt.Sprintf("pm.test(%s, function () {\n    pm.expect(%s)%s;\n});\n",
		jsLiteral(name), accessor(a.Path), chain(a)), nil
}

// CompileScripts compiles several assertions into one script. Assertions
// that do not parse are emitted as comments so the rest still run.
func CompileScripts(names, texts []string) string {
	var b strings.Builder
	for i, text := range texts {
		name := ""
		if i < len(names) {
			name = names[i]
		}
		src, err := CompileScript(name, text)
		if err != nil {
			fmt.Fprintf(&b, "// %v\n", err)
			continue
		}
		b.WriteString(src)
	}
	return b.String()
}

func accessor(path string) string {
	if capsToken.MatchString(path) {
		return "pm.variables.get(" + jsLiteral(path) + ")"
	}
	if rest, ok := strings.CutPrefix(path, "response."); ok {
		return "pm.response.json()." + rest
	}
	return path
}

func chain(a *Assertion) string {
	v := jsValue(a.Value)
	switch a.Kind {
	case KindEqual:
		return ".to.eql(" + v + ")"
	case KindNotEqual:
		return ".to.not.eql(" + v + ")"
	case KindExists:
		return ".to.exist"
	case KindNotExists:
		return ".to.not.exist"
	case KindContains:
		return ".to.include(" + v + ")"
	case KindNotContains:
		return ".to.not.include(" + v + ")"
	case KindGreater:
		return ".to.be.above(" + v + ")"
	case KindLess:
		return ".to.be.below(" + v + ")"
	case KindGreaterOrEqual:
		return ".to.be.at.least(" + v + ")"
	case KindLessOrEqual:
		return ".to.be.at.most(" + v + ")"
	case KindTypeIs:
		return ".to.be.a(" + v + ")"
	case KindBoolean:
		return ".to.be." + v
	case KindLength:
		return ".to.have.lengthOf(" + v + ")"
	case KindMatches:
		return ".to.match(" + v + ")"
	case KindHasProperty:
		return ".to.have.property(" + v + ")"
	}
	return ""
}

func jsValue(v any) string {
	switch x := v.(type) {
	case string:
		return jsLiteral(x)
	case Regex:
		return x.String()
	case undefinedValue:
		return "undefined"
	}
	return display(v)
}

func jsLiteral(s string) string {
	data, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(data)
}
