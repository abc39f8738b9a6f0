package runtime

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ormasoftchile/clirun/pkg/events"
	"github.com/ormasoftchile/clirun/pkg/providers"
	"github.com/ormasoftchile/clirun/pkg/response"
	"github.com/ormasoftchile/clirun/pkg/schema"
)

// fakeProvider answers every request through respond and records it.
type fakeProvider struct {
	mu      sync.Mutex
	reqs    []*providers.Request
	respond func(n int, req *providers.Request) (*providers.Result, error)
}

func (f *fakeProvider) Execute(_ context.Context, req *providers.Request) (*providers.Result, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	n := len(f.reqs)
	f.mu.Unlock()
	return f.respond(n, req)
}

func stdoutResult(stdout string) *providers.Result {
	return &providers.Result{
		Response:      response.New(0, stdout, "", 10*time.Millisecond),
		CommandString: "client",
	}
}

func okProvider(stdout string) *fakeProvider {
	return &fakeProvider{respond: func(int, *providers.Request) (*providers.Result, error) {
		return stdoutResult(stdout), nil
	}}
}

func threeSteps() *schema.Scenario {
	step := func(name string) schema.Step {
		return schema.Step{
			Name:       name,
			Command:    name,
			Arguments:  schema.NewArguments("CMD", strings.ToUpper(name)),
			Extractors: []schema.Extractor{{Pattern: "RESULT", Variable: "RESULT"}},
			Tests:      []schema.TestSpec{{Name: "ok", Assertion: "RESULT == 0"}},
		}
	}
	return &schema.Scenario{
		Info:     schema.Info{Name: "three"},
		Requests: []schema.Step{step("one"), step("two"), step("three")},
	}
}

func failOnSecond() *fakeProvider {
	return &fakeProvider{respond: func(n int, _ *providers.Request) (*providers.Result, error) {
		if n == 2 {
			return &providers.Result{CommandString: "client two"}, errors.New("spawn failed")
		}
		return stdoutResult("RESULT=0\n"), nil
	}}
}

func TestRunIDFormat(t *testing.T) {
	id := GenerateRunID()
	re := regexp.MustCompile(`^\d{8}T\d{6}-[a-f0-9]{8}$`)
	if !re.MatchString(id) {
		t.Errorf("RunID %q does not match expected format YYYYMMDDTHHmmss-xxxxxxxx", id)
	}
}

func TestRun_StopsAfterErrorByDefault(t *testing.T) {
	p := failOnSecond()
	e, err := New(threeSteps(), Options{Providers: providers.Set{schema.StepProcess: p}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(res.Steps))
	}
	if !res.Steps[0].Passed {
		t.Errorf("step 1 should pass: %+v", res.Steps[0].Tests)
	}
	second := res.Steps[1]
	if second.Passed || !second.Errored() || second.Error != "spawn failed" {
		t.Errorf("step 2 = %+v", second)
	}
	if second.Tests == nil || len(second.Tests) != 0 {
		t.Errorf("error result must carry an empty test list, got %v", second.Tests)
	}
	if second.CommandString != "client two" {
		t.Errorf("command string = %q", second.CommandString)
	}
	if res.Success {
		t.Error("success should be false")
	}
	if res.Summary.Total != 3 || res.Summary.Passed != 1 || res.Summary.Failed != 1 {
		t.Errorf("summary = %+v", res.Summary)
	}
	if len(p.reqs) != 2 {
		t.Errorf("step 3 must never be attempted, provider saw %d requests", len(p.reqs))
	}
	if e.State() != StateCompleted {
		t.Errorf("state = %s", e.State())
	}
}

func TestRun_ContinuesWhenStopOnErrorFalse(t *testing.T) {
	sc := threeSteps()
	off := false
	sc.StopOnError = &off
	e, err := New(sc, Options{Providers: providers.Set{schema.StepProcess: failOnSecond()}})
	if err != nil {
		t.Fatal(err)
	}
	res, _ := e.Run(context.Background())
	if len(res.Steps) != 3 {
		t.Fatalf("steps = %d, want 3", len(res.Steps))
	}
	if res.Summary.Passed+res.Summary.Failed != len(res.Steps) {
		t.Errorf("summary %+v does not add up", res.Summary)
	}
	if res.Summary.Passed != 2 || res.Success {
		t.Errorf("summary = %+v success = %v", res.Summary, res.Success)
	}
	want := 10*time.Millisecond + 10*time.Millisecond
	if res.Summary.Duration < want {
		t.Errorf("duration = %s, want at least %s", res.Summary.Duration, want)
	}
}

func TestRun_PaymentScenario(t *testing.T) {
	sc, err := schema.LoadFile("../../testdata/valid/payment.json")
	if err != nil {
		t.Fatal(err)
	}
	client := &fakeProvider{respond: func(n int, req *providers.Request) (*providers.Result, error) {
		if n == 1 {
			return stdoutResult("RESULT=0000\nMSG=ok\nAPPROVAL_NO=778899\n"), nil
		}
		return stdoutResult("RESULT=0000\n"), nil
	}}
	var slept []time.Duration
	sleeper := &providers.SleepProvider{Sleep: func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}}
	e, err := New(sc, Options{Providers: providers.Set{schema.StepProcess: client, schema.StepSleep: sleeper}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := e.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || len(res.Steps) != 3 {
		t.Fatalf("success=%v steps=%d: %+v", res.Success, len(res.Steps), res.Steps)
	}

	first := res.Steps[0]
	if first.Name != "approve 1000" {
		t.Errorf("step name = %q", first.Name)
	}
	if got := providers.ArgumentString(client.reqs[0]); !strings.HasPrefix(got, "CMD=APPROVE;MID=M0001;AMT=1000;TRACE=") {
		t.Errorf("argument string = %q", got)
	}
	if first.Extracted["RESULT"] != "0000" || first.Extracted["APPROVAL_NO"] != "778899" {
		t.Errorf("extracted = %v", first.Extracted)
	}
	if first.Tests[0].Name != "result is 0000" {
		t.Errorf("test name should be templated from extracted values, got %q", first.Tests[0].Name)
	}
	if first.Tests[0].Description != `0000 means "approved"` {
		t.Errorf("description = %q", first.Tests[0].Description)
	}
	if len(slept) != 1 || slept[0] != 10*time.Millisecond {
		t.Errorf("sleep gate should open once APPROVAL_NO exists, slept %v", slept)
	}
	if got := providers.ArgumentString(client.reqs[1]); got != "CMD=CANCEL;APPROVAL_NO=778899;AMT=1000" {
		t.Errorf("cancel arguments = %q", got)
	}

	found := false
	for _, p := range res.Variables {
		if p.Key == "APPROVAL_NO" && p.Value == "778899" {
			found = true
		}
	}
	if !found {
		t.Errorf("final variables missing APPROVAL_NO: %v", res.Variables)
	}
}

func TestRun_SleepSkippedWithoutGate(t *testing.T) {
	sc := &schema.Scenario{
		Info: schema.Info{Name: "gate"},
		Requests: []schema.Step{{
			Name:      "wait",
			Type:      schema.StepSleep,
			Arguments: schema.NewArguments("duration", "5s", "when", "TOKEN"),
		}},
	}
	e, err := New(sc, Options{Providers: providers.Set{schema.StepSleep: &providers.SleepProvider{
		Sleep: func(context.Context, time.Duration) error { t.Error("must not sleep"); return nil },
	}}})
	if err != nil {
		t.Fatal(err)
	}
	res, _ := e.Run(context.Background())
	if !res.Steps[0].Skipped || !res.Steps[0].Passed {
		t.Errorf("skipped step = %+v", res.Steps[0])
	}
}

func TestRunTest_Kinds(t *testing.T) {
	sc := &schema.Scenario{
		Info: schema.Info{Name: "tests"},
		Requests: []schema.Step{{
			Name:       "s",
			Arguments:  schema.NewArguments("A", "1"),
			Extractors: []schema.Extractor{{Pattern: "count", Variable: "COUNT"}},
			Tests: []schema.TestSpec{
				{Name: "loose", Assertion: "COUNT == 3"},
				{Name: "script", Script: "parseInt(COUNT) * 2 == 6"},
				{Name: "script fails", Script: "COUNT == '4'"},
				{Name: "missing > 5", Assertion: "ABSENT > 5"},
				{Name: "empty"},
			},
		}},
	}
	e, err := New(sc, Options{Providers: providers.Set{schema.StepProcess: okProvider("COUNT=3\n")}})
	if err != nil {
		t.Fatal(err)
	}
	res, _ := e.Run(context.Background())
	tests := res.Steps[0].Tests
	if len(tests) != 5 {
		t.Fatalf("tests = %d", len(tests))
	}
	if !tests[0].Passed || tests[0].Actual != "3" || tests[0].Expected != "3" {
		t.Errorf("loose = %+v", tests[0])
	}
	if !tests[1].Passed {
		t.Errorf("script = %+v", tests[1])
	}
	if tests[2].Passed || tests[2].Error != "" {
		t.Errorf("script fails = %+v", tests[2])
	}
	if tests[3].Passed || tests[3].Error != "" {
		t.Errorf("absent comparison should fail quietly: %+v", tests[3])
	}
	if tests[4].Passed || tests[4].Error == "" {
		t.Errorf("test without assertion must be an error: %+v", tests[4])
	}
	if res.Steps[0].Passed {
		t.Error("step with failing tests must not pass")
	}
}

func TestRun_UnparseableAssertionIsTestError(t *testing.T) {
	sc := &schema.Scenario{
		Info: schema.Info{Name: "grammar"},
		Requests: []schema.Step{{
			Name:       "pay",
			Arguments:  schema.NewArguments("CMD", "PAY"),
			Extractors: []schema.Extractor{{Pattern: "RESULT", Variable: "RESULT"}},
			Tests: []schema.TestSpec{
				{Name: "ok", Assertion: "RESULT == 0"},
				{Name: "range", Assertion: "RESULT is between 0 and 1"},
			},
		}},
	}
	p := okProvider("RESULT=0\n")
	e, err := New(sc, Options{Providers: providers.Set{schema.StepProcess: p}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(p.reqs) != 1 {
		t.Fatalf("step must run, provider saw %d requests", len(p.reqs))
	}
	tests := res.Steps[0].Tests
	if len(tests) != 2 {
		t.Fatalf("tests = %d", len(tests))
	}
	if !tests[0].Passed || tests[0].Error != "" {
		t.Errorf("ok = %+v", tests[0])
	}
	if tests[1].Passed || !strings.Contains(tests[1].Error, "unknown assertion pattern") {
		t.Errorf("range = %+v", tests[1])
	}
	if res.Steps[0].Passed {
		t.Error("step with an erroring test must not pass")
	}
}

func TestNew_RejectsInvalidScenario(t *testing.T) {
	sc := &schema.Scenario{Info: schema.Info{Name: ""}, Requests: []schema.Step{{Name: "x", Type: "ftp"}}}
	called := false
	p := &fakeProvider{respond: func(int, *providers.Request) (*providers.Result, error) {
		called = true
		return nil, nil
	}}
	_, err := New(sc, Options{Providers: providers.Set{"ftp": p}})
	var invalid *InvalidScenarioError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want InvalidScenarioError", err)
	}
	if !strings.Contains(err.Error(), "requests[0].type") {
		t.Errorf("message = %q", err.Error())
	}
	if called {
		t.Error("no step may run for an invalid scenario")
	}
}

func TestRun_OnlyOnce(t *testing.T) {
	e, err := New(threeSteps(), Options{Providers: providers.Set{schema.StepProcess: okProvider("RESULT=0\n")}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Run(context.Background()); !errors.Is(err, ErrAlreadyRun) {
		t.Errorf("second Run err = %v", err)
	}
}

func TestRun_CancelledContextReturnsPartialResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &fakeProvider{respond: func(n int, _ *providers.Request) (*providers.Result, error) {
		cancel()
		return stdoutResult("RESULT=0\n"), nil
	}}
	e, err := New(threeSteps(), Options{Providers: providers.Set{schema.StepProcess: p}})
	if err != nil {
		t.Fatal(err)
	}
	res, err := e.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if res == nil || len(res.Steps) != 1 || res.Success {
		t.Errorf("partial result = %+v", res)
	}
}

func TestRun_MissingProviderIsStepError(t *testing.T) {
	sc := threeSteps()
	e, err := New(sc, Options{Providers: providers.Set{}})
	if err != nil {
		t.Fatal(err)
	}
	res, _ := e.Run(context.Background())
	if len(res.Steps) != 1 || !res.Steps[0].Errored() {
		t.Errorf("steps = %+v", res.Steps)
	}
}

func TestRun_PublishesLifecycle(t *testing.T) {
	bus := events.NewBus()
	var got []events.Type
	var mu sync.Mutex
	bus.Subscribe(nil, func(ev events.Event) {
		mu.Lock()
		got = append(got, ev.Type)
		mu.Unlock()
	})
	e, err := New(threeSteps(), Options{Providers: providers.Set{schema.StepProcess: failOnSecond()}, Bus: bus})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	var lifecycle []events.Type
	logs := 0
	for _, tp := range got {
		if tp == events.Log {
			logs++
			continue
		}
		lifecycle = append(lifecycle, tp)
	}
	want := []events.Type{
		events.ScenarioStart,
		events.StepStart, events.Stdout, events.StepEnd, events.StepComplete,
		events.StepStart, events.StepError,
		events.ScenarioEnd,
	}
	if len(lifecycle) != len(want) {
		t.Fatalf("events = %v, want %v", lifecycle, want)
	}
	for i := range want {
		if lifecycle[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, lifecycle[i], want[i])
		}
	}
	if logs == 0 {
		t.Error("log records should be mirrored on the bus")
	}
}

func TestRun_IndependentEnginesConcurrently(t *testing.T) {
	var wg sync.WaitGroup
	results := make([]*ScenarioResult, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := New(threeSteps(), Options{Providers: providers.Set{schema.StepProcess: okProvider("RESULT=0\n")}})
			if err != nil {
				t.Error(err)
				return
			}
			results[i], _ = e.Run(context.Background())
		}(i)
	}
	wg.Wait()
	for i, r := range results {
		if r == nil || !r.Success || len(r.Steps) != 3 {
			t.Errorf("run %d = %+v", i, r)
		}
	}
}
