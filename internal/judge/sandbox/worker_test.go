package sandbox_test

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"

	"codejudge/internal/judge/sandbox"
	"codejudge/internal/judge/sandbox/language"
	"codejudge/internal/judge/sandbox/profile"
	"codejudge/internal/judge/sandbox/result"
	"codejudge/internal/judge/sandbox/spec"
	"codejudge/internal/judge/sandbox/workspace"
	appErr "codejudge/pkg/errors"
)

// scriptedEngine answers each run from a function of its stdin.
type scriptedEngine struct {
	mu     sync.Mutex
	runs   []spec.RunSpec
	script func(stdin string) (result.RawExecutionResult, error)
}

func (e *scriptedEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.RawExecutionResult, error) {
	e.mu.Lock()
	e.runs = append(e.runs, runSpec)
	e.mu.Unlock()
	if info, err := os.Stat(runSpec.WorkDir); err != nil || !info.IsDir() {
		return result.RawExecutionResult{}, appErr.Newf(appErr.JudgeSystemError, "workdir missing: %v", err)
	}
	return e.script(runSpec.Stdin)
}

// echoScript succeeds and prints "out:<stdin>", except for a few magic inputs.
// "num:<x>" prints x alone.
func echoScript(stdin string) (result.RawExecutionResult, error) {
	switch stdin {
	case "crash":
		return result.RawExecutionResult{Classification: result.ClassRuntimeError, Stdout: "partial", Stderr: "boom", ElapsedMs: 5, ExitCode: 1}, nil
	case "hang":
		return result.RawExecutionResult{Classification: result.ClassTimeout, ElapsedMs: 1000, ExitCode: -1}, nil
	case "fault":
		return result.RawExecutionResult{}, appErr.New(appErr.JudgeSystemError).WithMessage("cannot fork")
	}
	if num, ok := strings.CutPrefix(stdin, "num:"); ok {
		return result.RawExecutionResult{Classification: result.ClassSuccess, Stdout: num + "\n"}, nil
	}
	return result.RawExecutionResult{Classification: result.ClassSuccess, Stdout: "out:" + stdin + "\n", ElapsedMs: int64(len(stdin)) * 10}, nil
}

type fakeAdapter struct {
	lang     profile.LanguageSpec
	buildErr error
	prepErr  error
	builds   int
	cleanups int
}

func (a *fakeAdapter) Language() profile.LanguageSpec { return a.lang }

func (a *fakeAdapter) Prepare(ctx context.Context, ws *workspace.Workspace, code string) (*language.Unit, error) {
	if a.prepErr != nil {
		return nil, a.prepErr
	}
	path, err := ws.WriteFile("main.src", []byte(code))
	if err != nil {
		return nil, err
	}
	return &language.Unit{Language: a.lang, Workspace: ws, SourcePath: path}, nil
}

func (a *fakeAdapter) BuildCommand(ctx context.Context, unit *language.Unit) (language.Command, error) {
	a.builds++
	if a.buildErr != nil {
		return language.Command{}, a.buildErr
	}
	return language.Command{Argv: []string{unit.Workspace.BinaryPath("prog")}, WorkDir: unit.Workspace.RootDir}, nil
}

func (a *fakeAdapter) Cleanup(unit *language.Unit) error {
	a.cleanups++
	return nil
}

type fakeRegistry map[string]language.Adapter

func (r fakeRegistry) Get(id string) (language.Adapter, error) {
	adapter, ok := r[id]
	if !ok {
		return nil, appErr.Newf(appErr.LanguageNotSupported, "language not supported: %s", id)
	}
	return adapter, nil
}

type recordingReporter struct {
	updates []sandbox.StatusUpdate
}

func (r *recordingReporter) ReportStatus(ctx context.Context, update sandbox.StatusUpdate) error {
	r.updates = append(r.updates, update)
	return nil
}

type harness struct {
	worker  *sandbox.Worker
	engine  *scriptedEngine
	adapter *fakeAdapter
	root    string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()
	mgr, err := workspace.NewManager(root)
	if err != nil {
		t.Fatalf("create workspace manager: %v", err)
	}
	eng := &scriptedEngine{script: echoScript}
	adapter := &fakeAdapter{lang: profile.LanguageSpec{ID: "fake", Kind: profile.KindNative}}
	worker := sandbox.NewWorker(eng, fakeRegistry{"fake": adapter}, mgr)
	return &harness{worker: worker, engine: eng, adapter: adapter, root: root}
}

func (h *harness) assertClean(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(h.root)
	if err != nil {
		t.Fatalf("read workspace root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no leftover workspaces, found %d", len(entries))
	}
}

func tests(inputs ...string) []sandbox.TestCase {
	out := make([]sandbox.TestCase, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, sandbox.TestCase{Input: in, ExpectedOutput: "out:" + in})
	}
	return out
}

func TestExecuteAccepted(t *testing.T) {
	h := newHarness(t)
	res, err := h.worker.Execute(context.Background(), sandbox.ExecutionRequest{
		Language:  "fake",
		Code:      "code",
		TestCases: tests("a", "bbb", "cc"),
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Status != result.StatusAccepted {
		t.Fatalf("expected ACCEPTED, got %s", res.Status)
	}
	if res.PassedCount != 3 || len(res.Tests) != 3 {
		t.Fatalf("unexpected counts passed=%d tests=%d", res.PassedCount, len(res.Tests))
	}
	for i, in := range []string{"a", "bbb", "cc"} {
		if res.Tests[i].Input != in || res.Tests[i].Actual != "out:"+in+"\n" {
			t.Fatalf("test %d out of order: %+v", i, res.Tests[i])
		}
	}
	if res.RuntimeMs != 20 || res.MaxRuntimeMs != 30 {
		t.Fatalf("expected mean 20 and max 30, got %d and %d", res.RuntimeMs, res.MaxRuntimeMs)
	}
	if res.MemoryKB != 0 {
		t.Fatalf("memory is not measured, got %d", res.MemoryKB)
	}
	if h.adapter.builds != 1 || h.adapter.cleanups != 1 {
		t.Fatalf("expected one build and one cleanup, got %d and %d", h.adapter.builds, h.adapter.cleanups)
	}
	h.assertClean(t)
}

func TestExecuteVerdictPrecedence(t *testing.T) {
	cases := []struct {
		name   string
		cases  []sandbox.TestCase
		want   result.Status
		passed int
	}{
		{
			name:   "timeout beats runtime error and wrong answer",
			cases:  append(tests("crash", "hang"), sandbox.TestCase{Input: "x", ExpectedOutput: "nope"}),
			want:   result.StatusTimeLimit,
			passed: 0,
		},
		{
			name:   "runtime error beats wrong answer",
			cases:  append(tests("ok", "crash"), sandbox.TestCase{Input: "x", ExpectedOutput: "nope"}),
			want:   result.StatusRuntimeError,
			passed: 1,
		},
		{
			name:   "wrong answer",
			cases:  append(tests("ok"), sandbox.TestCase{Input: "x", ExpectedOutput: "nope"}),
			want:   result.StatusWrongAnswer,
			passed: 1,
		},
		{
			name:   "crash with matching output is not a pass",
			cases:  []sandbox.TestCase{{Input: "crash", ExpectedOutput: "partial"}},
			want:   result.StatusRuntimeError,
			passed: 0,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			res, err := h.worker.Execute(context.Background(), sandbox.ExecutionRequest{
				Language:  "fake",
				Code:      "code",
				TestCases: tc.cases,
			})
			if err != nil {
				t.Fatalf("execute: %v", err)
			}
			if res.Status != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, res.Status)
			}
			if res.PassedCount != tc.passed {
				t.Fatalf("expected %d passed, got %d", tc.passed, res.PassedCount)
			}
			if len(res.Tests) != len(tc.cases) || len(h.engine.runs) != len(tc.cases) {
				t.Fatalf("every test must run: verdicts=%d runs=%d", len(res.Tests), len(h.engine.runs))
			}
			h.assertClean(t)
		})
	}
}

func TestExecutePreservesPartialOutput(t *testing.T) {
	h := newHarness(t)
	res, err := h.worker.Execute(context.Background(), sandbox.ExecutionRequest{
		Language:  "fake",
		Code:      "code",
		TestCases: []sandbox.TestCase{{Input: "crash", ExpectedOutput: "x"}},
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	tv := res.Tests[0]
	if tv.Actual != "partial" || tv.Stderr != "boom" || tv.Classification != result.ClassRuntimeError {
		t.Fatalf("unexpected verdict %+v", tv)
	}
}

func TestExecuteCompileErrorShortCircuits(t *testing.T) {
	h := newHarness(t)
	h.adapter.buildErr = appErr.New(appErr.CompilationError).WithMessage("main.cpp:1: error")
	res, err := h.worker.Execute(context.Background(), sandbox.ExecutionRequest{
		Language:  "fake",
		Code:      "code",
		TestCases: tests("a", "b"),
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Status != result.StatusCompileError {
		t.Fatalf("expected COMPILE_ERROR, got %s", res.Status)
	}
	if len(res.Tests) != 0 || res.PassedCount != 0 {
		t.Fatalf("no test may run after a compile error: %+v", res)
	}
	if !strings.Contains(res.Stderr, "main.cpp:1: error") {
		t.Fatalf("expected compiler message in stderr, got %q", res.Stderr)
	}
	if len(h.engine.runs) != 0 {
		t.Fatalf("engine must not run, got %d runs", len(h.engine.runs))
	}
	h.assertClean(t)
}

func TestExecutePrepareCompileError(t *testing.T) {
	h := newHarness(t)
	h.adapter.prepErr = appErr.New(appErr.CompilationError).WithMessage("no public class found in source")
	res, err := h.worker.Execute(context.Background(), sandbox.ExecutionRequest{
		Language:  "fake",
		Code:      "class Main {}",
		TestCases: tests("a"),
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Status != result.StatusCompileError || len(res.Tests) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if h.adapter.builds != 0 {
		t.Fatalf("build must not run after prepare failed")
	}
	h.assertClean(t)
}

func TestExecuteUnsupportedLanguage(t *testing.T) {
	h := newHarness(t)
	res, err := h.worker.Execute(context.Background(), sandbox.ExecutionRequest{
		Language:  "cobol",
		Code:      "DISPLAY 'HI'.",
		TestCases: tests("a"),
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Status != result.StatusCompileError {
		t.Fatalf("expected COMPILE_ERROR, got %s", res.Status)
	}
	if !strings.Contains(res.Stderr, "cobol") {
		t.Fatalf("expected language in message, got %q", res.Stderr)
	}
	h.assertClean(t)
}

func TestExecuteHostFault(t *testing.T) {
	h := newHarness(t)
	_, err := h.worker.Execute(context.Background(), sandbox.ExecutionRequest{
		Language:  "fake",
		Code:      "code",
		TestCases: tests("a", "fault", "b"),
	})
	if !appErr.Is(err, appErr.JudgeSystemError) {
		t.Fatalf("expected JudgeSystemError, got %v", err)
	}
	if h.adapter.cleanups != 1 {
		t.Fatalf("expected cleanup on fault path")
	}
	h.assertClean(t)
}

func TestExecuteBuildHostFault(t *testing.T) {
	h := newHarness(t)
	h.adapter.buildErr = appErr.New(appErr.JudgeSystemError).WithMessage("cannot fork")
	_, err := h.worker.Execute(context.Background(), sandbox.ExecutionRequest{
		Language:  "fake",
		Code:      "code",
		TestCases: tests("a"),
	})
	if !appErr.Is(err, appErr.JudgeSystemError) {
		t.Fatalf("expected JudgeSystemError, got %v", err)
	}
	h.assertClean(t)
}

func TestExecuteAdHoc(t *testing.T) {
	cases := []struct {
		name   string
		input  *string
		want   result.Status
		stdout string
		stderr string
	}{
		{name: "success", input: strPtr("hello"), want: result.StatusAccepted, stdout: "out:hello\n"},
		{name: "no input", input: nil, want: result.StatusAccepted, stdout: "out:\n"},
		{name: "runtime error", input: strPtr("crash"), want: result.StatusRuntimeError, stdout: "partial", stderr: "boom"},
		{name: "timeout", input: strPtr("hang"), want: result.StatusTimeLimit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			res, err := h.worker.Execute(context.Background(), sandbox.ExecutionRequest{
				Language: "fake",
				Code:     "code",
				Input:    tc.input,
			})
			if err != nil {
				t.Fatalf("execute: %v", err)
			}
			if !res.AdHoc || res.Tests != nil {
				t.Fatalf("expected ad hoc result without tests, got %+v", res)
			}
			if res.Status != tc.want || res.Stdout != tc.stdout || res.Stderr != tc.stderr {
				t.Fatalf("unexpected result %+v", res)
			}
			h.assertClean(t)
		})
	}
}

func TestExecuteValidation(t *testing.T) {
	cases := []struct {
		name string
		req  sandbox.ExecutionRequest
		code appErr.ErrorCode
	}{
		{
			name: "tests and input",
			req:  sandbox.ExecutionRequest{Language: "fake", Code: "x", TestCases: tests("a"), Input: strPtr("b")},
			code: appErr.InvalidParams,
		},
		{
			name: "negative time limit",
			req:  sandbox.ExecutionRequest{Language: "fake", Code: "x", TimeLimitMs: -1},
			code: appErr.ValidationFailed,
		},
		{
			name: "unknown comparator",
			req:  sandbox.ExecutionRequest{Language: "fake", Code: "x", Comparator: "fuzzy"},
			code: appErr.ComparatorNotFound,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.worker.Execute(context.Background(), tc.req)
			if !appErr.Is(err, tc.code) {
				t.Fatalf("expected %d, got %v", tc.code, err)
			}
			if len(h.engine.runs) != 0 {
				t.Fatalf("invalid requests must not run")
			}
		})
	}
}

func TestExecuteBlankLanguageIsCompileError(t *testing.T) {
	for _, lang := range []string{"", "   "} {
		h := newHarness(t)
		res, err := h.worker.Execute(context.Background(), sandbox.ExecutionRequest{
			Language:  lang,
			Code:      "x",
			TestCases: tests("a"),
		})
		if err != nil {
			t.Fatalf("language %q: expected a verdict, got %v", lang, err)
		}
		if res.Status != result.StatusCompileError || len(res.Tests) != 0 {
			t.Fatalf("language %q: expected COMPILE_ERROR with zero tests, got %+v", lang, res)
		}
		if len(h.engine.runs) != 0 {
			t.Fatalf("language %q: nothing may run", lang)
		}
		h.assertClean(t)
	}
}

func TestExecuteBlankCodeIsJudged(t *testing.T) {
	for _, code := range []string{"", " \n\t"} {
		h := newHarness(t)
		res, err := h.worker.Execute(context.Background(), sandbox.ExecutionRequest{
			Language:  "fake",
			Code:      code,
			TestCases: tests("a"),
		})
		if err != nil {
			t.Fatalf("code %q: expected a verdict, got %v", code, err)
		}
		if res.Status != result.StatusAccepted || len(h.engine.runs) != 1 {
			t.Fatalf("code %q: expected the program to be judged, got %+v", code, res)
		}
	}
}

func TestExecuteTimeLimit(t *testing.T) {
	h := newHarness(t)
	h.adapter.lang.TimeMultiplier = 1.5
	_, err := h.worker.Execute(context.Background(), sandbox.ExecutionRequest{
		Language:    "fake",
		Code:        "code",
		TestCases:   tests("a"),
		TimeLimitMs: 1000,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := h.engine.runs[0].TimeoutMs; got != 1500 {
		t.Fatalf("expected scaled limit 1500, got %d", got)
	}

	h = newHarness(t)
	if _, err := h.worker.Execute(context.Background(), sandbox.ExecutionRequest{Language: "fake", Code: "code"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := h.engine.runs[0].TimeoutMs; got != sandbox.DefaultTimeLimitMs {
		t.Fatalf("expected default limit, got %d", got)
	}
}

// hangingEngine lets every build step succeed and every test run hit its limit.
type hangingEngine struct {
	mu   sync.Mutex
	runs []spec.RunSpec
}

func (e *hangingEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.RawExecutionResult, error) {
	e.mu.Lock()
	e.runs = append(e.runs, runSpec)
	e.mu.Unlock()
	if runSpec.Label == "compile" {
		return result.RawExecutionResult{Classification: result.ClassSuccess}, nil
	}
	return result.RawExecutionResult{Classification: result.ClassTimeout, ElapsedMs: runSpec.TimeoutMs, ExitCode: -1}, nil
}

func TestExecuteBuiltinLanguagesUseRequestLimit(t *testing.T) {
	sources := map[string]string{
		"python":     "import time\ntime.sleep(5)\n",
		"javascript": "setTimeout(() => {}, 5000)\n",
		"java":       "public class Main { public static void main(String[] a) throws Exception { Thread.sleep(5000); } }",
		"cpp":        "#include <unistd.h>\nint main() { sleep(5); }\n",
		"c":          "#include <unistd.h>\nint main(void) { sleep(5); return 0; }\n",
	}
	for _, lang := range profile.DefaultLanguages() {
		code, ok := sources[lang.ID]
		if !ok {
			t.Fatalf("no sample program for built-in language %s", lang.ID)
		}
		t.Run(lang.ID, func(t *testing.T) {
			mgr, err := workspace.NewManager(t.TempDir())
			if err != nil {
				t.Fatalf("create workspace manager: %v", err)
			}
			eng := &hangingEngine{}
			reg, err := language.NewRegistry(profile.DefaultLanguages(), eng, language.Options{
				LookPath: func(file string) (string, error) { return "/usr/bin/" + file, nil },
			})
			if err != nil {
				t.Fatalf("create registry: %v", err)
			}
			res, err := sandbox.NewWorker(eng, reg, mgr).Execute(context.Background(), sandbox.ExecutionRequest{
				Language:    lang.ID,
				Code:        code,
				TestCases:   []sandbox.TestCase{{Input: "", ExpectedOutput: ""}},
				TimeLimitMs: 2000,
			})
			if err != nil {
				t.Fatalf("execute: %v", err)
			}
			if res.Status != result.StatusTimeLimit {
				t.Fatalf("expected TIME_LIMIT, got %s (%s)", res.Status, res.Stderr)
			}
			last := eng.runs[len(eng.runs)-1]
			if last.TimeoutMs != 2000 || res.Tests[0].RuntimeMs != 2000 {
				t.Fatalf("expected the request limit of 2000ms, got timeout=%d runtime=%d", last.TimeoutMs, res.Tests[0].RuntimeMs)
			}
		})
	}
}

func TestExecuteIsolatesTestDirs(t *testing.T) {
	h := newHarness(t)
	if _, err := h.worker.Execute(context.Background(), sandbox.ExecutionRequest{
		Language:  "fake",
		Code:      "code",
		TestCases: tests("a", "b", "c"),
	}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	seen := make(map[string]bool)
	for _, run := range h.engine.runs {
		if seen[run.WorkDir] {
			t.Fatalf("workdir reused: %s", run.WorkDir)
		}
		seen[run.WorkDir] = true
	}
}

func TestExecuteComparator(t *testing.T) {
	cases := []struct {
		comparator string
		want       result.Status
	}{
		{comparator: "", want: result.StatusWrongAnswer},
		{comparator: "float", want: result.StatusAccepted},
	}
	for _, tc := range cases {
		h := newHarness(t)
		res, err := h.worker.Execute(context.Background(), sandbox.ExecutionRequest{
			Language:   "fake",
			Code:       "code",
			TestCases:  []sandbox.TestCase{{Input: "num:1.0000001", ExpectedOutput: "1.0"}},
			Comparator: tc.comparator,
		})
		if err != nil {
			t.Fatalf("execute: %v", err)
		}
		if res.Status != tc.want {
			t.Fatalf("comparator %q: expected %s, got %s", tc.comparator, tc.want, res.Status)
		}
	}
}

func TestExecuteReportsStatus(t *testing.T) {
	h := newHarness(t)
	reporter := &recordingReporter{}
	h.worker.SetStatusReporter(reporter)
	if _, err := h.worker.Execute(context.Background(), sandbox.ExecutionRequest{
		RequestID: "req-1",
		Language:  "fake",
		Code:      "code",
		TestCases: tests("a", "b"),
	}); err != nil {
		t.Fatalf("execute: %v", err)
	}

	var states []string
	for _, u := range reporter.updates {
		if u.RequestID != "req-1" {
			t.Fatalf("unexpected request id %q", u.RequestID)
		}
		states = append(states, string(u.State))
	}
	want := "COMPILING,RUNNING_TESTS,RUNNING_TESTS,RUNNING_TESTS,AGGREGATING,FINISHED"
	if strings.Join(states, ",") != want {
		t.Fatalf("unexpected states %v", states)
	}
	last := reporter.updates[len(reporter.updates)-1]
	if last.Status != result.StatusAccepted || last.DoneTests != 2 || last.TotalTests != 2 {
		t.Fatalf("unexpected final update %+v", last)
	}
}

func strPtr(s string) *string {
	return &s
}
