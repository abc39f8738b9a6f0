package extract

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/ormasoftchile/clirun/pkg/response"
	"github.com/ormasoftchile/clirun/pkg/schema"
	"github.com/ormasoftchile/clirun/pkg/vars"
)

func testRaw() *response.Raw {
	return response.New(0, "RESULT=0000\nApproval=A-77\nmsg=approval no 123456 issued\ncard=4111\n", "", 10*time.Millisecond)
}

func TestModeOf(t *testing.T) {
	tests := map[string]Mode{
		"RESULT":          ModeKey,
		"js: card + '-x'": ModeExpression,
		`NO=(\d+)`:        ModeRegex,
		"[0-9]+":          ModeRegex,
		`a\sb`:            ModeRegex,
		"a.b":             ModeKey,
	}
	for p, want := range tests {
		if got := ModeOf(p); got != want {
			t.Errorf("ModeOf(%q) = %s, want %s", p, got, want)
		}
	}
}

func TestApply_KeyIsCaseInsensitive(t *testing.T) {
	scope := vars.New()
	got := Apply(testRaw(), []schema.Extractor{
		{Name: "r", Pattern: "result", Variable: "RESULT"},
		{Name: "a", Pattern: "APPROVAL", Variable: "APPROVAL"},
		{Name: "a2", Pattern: "approval", Variable: "approval"},
	}, scope, nil)

	if got["RESULT"] != "0000" {
		t.Errorf("RESULT = %q", got["RESULT"])
	}
	if got["APPROVAL"] != "A-77" || got["approval"] != "A-77" {
		t.Errorf("approval lookups = %q / %q", got["APPROVAL"], got["approval"])
	}
	if v, _ := scope.Get("RESULT"); v != "0000" {
		t.Errorf("scope RESULT = %q", v)
	}
}

func TestApply_RegexFirstGroup(t *testing.T) {
	scope := vars.New()
	got := Apply(testRaw(), []schema.Extractor{
		{Name: "no", Pattern: `approval no (\d+)`, Variable: "APPROVAL_NO"},
		{Name: "miss", Pattern: `declined (\d+)`, Variable: "DECLINED"},
	}, scope, nil)
	if got["APPROVAL_NO"] != "123456" {
		t.Errorf("APPROVAL_NO = %q", got["APPROVAL_NO"])
	}
	if _, ok := got["DECLINED"]; ok {
		t.Error("no match must be omitted")
	}
	if scope.Has("DECLINED") {
		t.Error("no match must not touch scope")
	}
}

func TestApply_ExpressionSeesScopeAndResponse(t *testing.T) {
	scope := vars.FromPairs(vars.Pair{Key: "PREFIX", Value: "ID"}, vars.Pair{Key: "card", Value: "from-scope"})
	got := Apply(testRaw(), []schema.Extractor{
		{Name: "joined", Pattern: "js: PREFIX + '-' + card", Variable: "JOINED"},
		{Name: "num", Pattern: "js: parseInt(result) + 1", Variable: "NEXT"},
		{Name: "chain", Pattern: "js: JOINED + '!'", Variable: "CHAINED"},
	}, scope, nil)

	if got["JOINED"] != "ID-4111" {
		t.Errorf("response keys should override scope: JOINED = %q", got["JOINED"])
	}
	if got["NEXT"] != "1" {
		t.Errorf("NEXT = %q", got["NEXT"])
	}
	if got["CHAINED"] != "ID-4111!" {
		t.Errorf("later extractors should see earlier ones: CHAINED = %q", got["CHAINED"])
	}
}

func TestApply_ExpressionGlobals(t *testing.T) {
	got := Apply(testRaw(), []schema.Extractor{
		{Name: "max", Pattern: "js: Math.max(parseInt(card), 5000)", Variable: "MAX"},
		{Name: "floor", Pattern: "js: Math.floor(Number(card) / 1000)", Variable: "THOUSANDS"},
		{Name: "keys", Pattern: "js: Object.keys(parsed)", Variable: "KEYS"},
	}, vars.New(), nil)
	if got["MAX"] != "5000" {
		t.Errorf("MAX = %q", got["MAX"])
	}
	if got["THOUSANDS"] != "4" {
		t.Errorf("THOUSANDS = %q", got["THOUSANDS"])
	}
	if got["KEYS"] != "approval,card,msg,result" {
		t.Errorf("KEYS = %q", got["KEYS"])
	}
}

func TestApply_FailuresAreLoggedNotFatal(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	scope := vars.New()
	got := Apply(testRaw(), []schema.Extractor{
		{Name: "bad", Pattern: "js: nosuchvar + 1", Variable: "BAD"},
		{Name: "nil", Pattern: "js: nil", Variable: "NIL"},
		{Name: "missing", Pattern: "nokey", Variable: "MISSING"},
		{Name: "ok", Pattern: "result", Variable: "RESULT"},
	}, scope, logger)

	if len(got) != 1 || got["RESULT"] != "0000" {
		t.Errorf("got %v, want only RESULT", got)
	}
	out := buf.String()
	if !strings.Contains(out, "extractor failed") || !strings.Contains(out, "variable=BAD") {
		t.Errorf("expression failure not logged: %s", out)
	}
	if !strings.Contains(out, "variable=NIL") || !strings.Contains(out, "variable=MISSING") {
		t.Errorf("null results not logged: %s", out)
	}
}

func TestTarget_FallsBackToName(t *testing.T) {
	if got := Target(schema.Extractor{Name: "TOKEN", Pattern: "token"}); got != "TOKEN" {
		t.Errorf("Target = %q", got)
	}
}
