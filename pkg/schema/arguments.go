package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

// Arguments is a string map that remembers document order. The external
// client receives its arguments joined in this order.
type Arguments struct {
	m *orderedmap.OrderedMap[string, string]
}

// NewArguments builds Arguments from alternating key, value strings.
func NewArguments(kv ...string) Arguments {
	a := Arguments{m: orderedmap.New[string, string]()}
	for i := 0; i+1 < len(kv); i += 2 {
		a.m.Set(kv[i], kv[i+1])
	}
	return a
}

// Len returns the number of arguments.
func (a Arguments) Len() int {
	if a.m == nil {
		return 0
	}
	return a.m.Len()
}

// Get returns the value for key.
func (a Arguments) Get(key string) (string, bool) {
	if a.m == nil {
		return "", false
	}
	return a.m.Get(key)
}

// Set assigns key = value, keeping the position of an existing key.
func (a *Arguments) Set(key, value string) {
	if a.m == nil {
		a.m = orderedmap.New[string, string]()
	}
	a.m.Set(key, value)
}

// Each calls fn for every argument in document order.
func (a Arguments) Each(fn func(key, value string)) {
	if a.m == nil {
		return
	}
	for p := a.m.Oldest(); p != nil; p = p.Next() {
		fn(p.Key, p.Value)
	}
}

// MarshalJSON writes the arguments as a JSON object in order.
func (a Arguments) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	var err error
	a.Each(func(k, v string) {
		if err != nil {
			return
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		var kb, vb []byte
		if kb, err = json.Marshal(k); err != nil {
			return
		}
		if vb, err = json.Marshal(v); err != nil {
			return
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	})
	if err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object. Scalar values are kept as their
// literal text so that {"amount": 1000} yields "1000".
func (a *Arguments) UnmarshalJSON(data []byte) error {
	a.m = orderedmap.New[string, string]()
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("arguments: expected object")
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("arguments: expected string key")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("arguments[%s]: %w", key, err)
		}
		value, err := scalarText(raw)
		if err != nil {
			return fmt.Errorf("arguments[%s]: %w", key, err)
		}
		a.m.Set(key, value)
	}
	_, err = dec.Token()
	return err
}

func scalarText(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[':
		return "", fmt.Errorf("nested values are not supported")
	}
	if string(trimmed) == "null" {
		return "", nil
	}
	return string(trimmed), nil
}

// MarshalYAML writes the arguments as an ordered mapping node.
func (a Arguments) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	a.Each(func(k, v string) {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Value: v, Style: yaml.DoubleQuotedStyle},
		)
	})
	return node, nil
}

// UnmarshalYAML reads a mapping node of scalars.
func (a *Arguments) UnmarshalYAML(node *yaml.Node) error {
	a.m = orderedmap.New[string, string]()
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: arguments must be a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: argument %q must be a scalar", v.Line, k.Value)
		}
		a.m.Set(k.Value, v.Value)
	}
	return nil
}

// JSONSchema describes Arguments as a string-valued object.
func (Arguments) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:                 "object",
		AdditionalProperties: &jsonschema.Schema{Type: "string"},
	}
}

// Join renders key=value pairs joined by sep, after passing each value
// through fn.
func (a Arguments) Join(sep string, fn func(string) string) string {
	parts := make([]string, 0, a.Len())
	a.Each(func(k, v string) {
		if fn != nil {
			v = fn(v)
		}
		parts = append(parts, k+"="+v)
	})
	return strings.Join(parts, sep)
}
