package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

// Variable seeds the run scope before the first step. Numeric and boolean
// values are kept as their literal text, like Arguments.
type Variable struct {
	Key   string `yaml:"key"   json:"key"   jsonschema:"required"`
	Value string `yaml:"value" json:"value"`
}

// UnmarshalJSON accepts a scalar of any JSON type for value and rejects
// unknown fields.
func (v *Variable) UnmarshalJSON(data []byte) error {
	var doc struct {
		Key   string          `json:"key"`
		Value json.RawMessage `json:"value"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("variable: %w", err)
	}
	value, err := scalarText(doc.Value)
	if err != nil {
		return fmt.Errorf("variable %q: %w", doc.Key, err)
	}
	v.Key, v.Value = doc.Key, value
	return nil
}

// UnmarshalYAML reads a key/value mapping whose value is any scalar.
func (v *Variable) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: variable must be a mapping", node.Line)
	}
	var out Variable
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, val := node.Content[i], node.Content[i+1]
		if val.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: variable field %q must be a scalar", val.Line, k.Value)
		}
		switch k.Value {
		case "key":
			out.Key = val.Value
		case "value":
			if val.Tag != "!!null" {
				out.Value = val.Value
			}
		default:
			return fmt.Errorf("line %d: field %s not found in type schema.Variable", k.Line, k.Value)
		}
	}
	*v = out
	return nil
}

// JSONSchemaExtend lets value be written as a string, number or boolean.
func (Variable) JSONSchemaExtend(s *jsonschema.Schema) {
	if s.Properties == nil {
		return
	}
	s.Properties.Set("value", &jsonschema.Schema{AnyOf: []*jsonschema.Schema{
		{Type: "string"},
		{Type: "number"},
		{Type: "boolean"},
	}})
}
