package assertions

import (
	"strings"
	"testing"
)

func TestCompileScript(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"RESULT == 0000", `pm.expect(pm.variables.get("RESULT")).to.eql(0);`},
		{`RESULT == "0000"`, `pm.expect(pm.variables.get("RESULT")).to.eql("0000");`},
		{"TOKEN exists", `pm.expect(pm.variables.get("TOKEN")).to.exist;`},
		{"response.status > 199", `pm.expect(pm.response.json().status).to.be.above(199);`},
		{"CARD matches /^4/", `pm.expect(pm.variables.get("CARD")).to.match(/^4/);`},
		{"FLAG is true", `pm.expect(pm.variables.get("FLAG")).to.be.true;`},
	}
	for _, tt := range tests {
		got, err := CompileScript("", tt.text)
		if err != nil {
			t.Fatalf("CompileScript(%q): %v", tt.text, err)
		}
		if !strings.Contains(got, tt.want) {
			t.Errorf("CompileScript(%q) =\n%s\nwant line %s", tt.text, got, tt.want)
		}
		if !strings.HasPrefix(got, "pm.test(") {
			t.Errorf("script should open with pm.test: %s", got)
		}
	}
}

func TestCompileScript_NameIsEscaped(t *testing.T) {
	got, err := CompileScript(`says "hi"`, "A exists")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, `pm.test("says \"hi\"", function () {`) {
		t.Errorf("unexpected header: %s", got)
	}
}

func TestCompileScripts_KeepsGoingOnBadInput(t *testing.T) {
	got := CompileScripts([]string{"one", "two"}, []string{"A ~~ 1", "B exists"})
	if !strings.HasPrefix(got, "// unknown assertion pattern") {
		t.Errorf("bad assertion should become a comment: %s", got)
	}
	if !strings.Contains(got, `pm.test("two"`) {
		t.Errorf("second assertion missing: %s", got)
	}
}
