package schema

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
)

// TestLoadValidScenarios ensures the valid fixtures parse without errors.
func TestLoadValidScenarios(t *testing.T) {
	files, err := filepath.Glob("../../testdata/valid/*")
	if err != nil {
		t.Fatalf("glob valid fixtures: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("no valid test fixtures found")
	}
	for _, f := range files {
		t.Run(filepath.Base(f), func(t *testing.T) {
			sc, err := LoadFile(f)
			if err != nil {
				t.Fatalf("expected valid, got error: %v", err)
			}
			if sc.Info.Name == "" {
				t.Error("info.name is empty")
			}
			if len(sc.Requests) == 0 {
				t.Error("expected at least one request")
			}
		})
	}
}

func TestLoadKeepsArgumentOrderAndStringifiesScalars(t *testing.T) {
	sc, err := LoadFile("../../testdata/valid/payment.json")
	if err != nil {
		t.Fatal(err)
	}
	var keys []string
	sc.Requests[0].Arguments.Each(func(k, _ string) { keys = append(keys, k) })
	if strings.Join(keys, ",") != "CMD,MID,AMT,TRACE" {
		t.Errorf("argument order = %v", keys)
	}
	if v, _ := sc.Requests[2].Arguments.Get("AMT"); v != "1000" {
		t.Errorf("numeric argument = %q, want 1000", v)
	}
	if !sc.StopsOnError() {
		t.Error("unset stopOnError should default to true")
	}
}

func TestLoadYAMLArguments(t *testing.T) {
	sc, err := LoadFile("../../testdata/valid/crypto.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if sc.StopsOnError() {
		t.Error("stopOnError: false should be honoured")
	}
	if op, _ := sc.Requests[0].Arguments.Get("operation"); op != "encrypt" {
		t.Errorf("operation = %q", op)
	}
	if sc.Requests[0].Type != StepCrypto {
		t.Errorf("type = %q", sc.Requests[0].Type)
	}
}

// TestLoadRejectsUnknownFields verifies that strict mode rejects unknown keys.
func TestLoadRejectsUnknownFields(t *testing.T) {
	if _, err := LoadFile("../../testdata/invalid/unknown-field.json"); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestArgumentsJSONRoundTripOrder(t *testing.T) {
	a := NewArguments("Z", "1", "A", "2")
	data, err := json.Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"Z":"1","A":"2"}` {
		t.Errorf("marshal = %s", data)
	}
	if got := a.Join(";", nil); got != "Z=1;A=2" {
		t.Errorf("Join = %q", got)
	}
}

func TestGenerateJSONSchema(t *testing.T) {
	data, err := GenerateJSONSchema()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), SchemaID) {
		t.Error("schema missing $id")
	}
	if !strings.Contains(string(data), "requests") {
		t.Error("schema missing requests property")
	}
}

func TestSetVariable(t *testing.T) {
	sc := &Scenario{Variables: []Variable{{Key: "MID", Value: "M0001"}}}
	sc.SetVariable("MID", "M0002")
	sc.SetVariable("AMT", "1000")
	if len(sc.Variables) != 2 {
		t.Fatalf("variables = %+v", sc.Variables)
	}
	if sc.Variables[0].Value != "M0002" || sc.Variables[1].Key != "AMT" {
		t.Errorf("variables = %+v", sc.Variables)
	}
}

func TestLoadJSONStringifiesVariableScalars(t *testing.T) {
	doc := `{"info":{"name":"v"},"variables":[{"key":"AMOUNT","value":1000},{"key":"LIVE","value":true},{"key":"MID","value":"M1"},{"key":"NONE"}],"requests":[{"name":"s"}]}`
	sc, err := LoadJSON(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	want := []Variable{{"AMOUNT", "1000"}, {"LIVE", "true"}, {"MID", "M1"}, {"NONE", ""}}
	for i, w := range want {
		if sc.Variables[i] != w {
			t.Errorf("variables[%d] = %+v, want %+v", i, sc.Variables[i], w)
		}
	}
	if errs := Validate(sc); HasErrors(errs) {
		t.Errorf("unexpected errors: %v", errs)
	}
}

func TestLoadYAMLStringifiesVariableScalars(t *testing.T) {
	doc := "info:\n  name: v\nvariables:\n  - key: AMOUNT\n    value: 1000\n  - key: RATE\n    value: 1.50\n  - key: EMPTY\n    value: ~\nrequests:\n  - name: s\n"
	sc, err := Load(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	if sc.Variables[0].Value != "1000" || sc.Variables[1].Value != "1.50" || sc.Variables[2].Value != "" {
		t.Errorf("variables = %+v", sc.Variables)
	}
}

func TestVariableRejectsUnknownAndNested(t *testing.T) {
	bad := []string{
		`{"info":{"name":"v"},"variables":[{"key":"A","val":1}],"requests":[{"name":"s"}]}`,
		`{"info":{"name":"v"},"variables":[{"key":"A","value":{"x":1}}],"requests":[{"name":"s"}]}`,
	}
	for _, doc := range bad {
		if _, err := LoadJSON(strings.NewReader(doc)); err == nil {
			t.Errorf("expected error for %s", doc)
		}
	}
	if _, err := Load(strings.NewReader("info:\n  name: v\nvariables:\n  - key: A\n    extra: 1\nrequests:\n  - name: s\n")); err == nil {
		t.Error("expected error for unknown YAML variable field")
	}
}

func TestGenerateJSONSchemaVariableValueScalars(t *testing.T) {
	data, err := GenerateJSONSchema()
	if err != nil {
		t.Fatal(err)
	}
	var doc struct {
		Defs map[string]struct {
			Properties map[string]struct {
				AnyOf []struct {
					Type string `json:"type"`
				} `json:"anyOf"`
			} `json:"properties"`
		} `json:"$defs"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	var types []string
	for _, alt := range doc.Defs["Variable"].Properties["value"].AnyOf {
		types = append(types, alt.Type)
	}
	if strings.Join(types, ",") != "string,number,boolean" {
		t.Errorf("value types = %v", types)
	}
}
