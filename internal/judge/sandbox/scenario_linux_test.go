//go:build linux

package sandbox_test

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"codejudge/internal/judge/sandbox"
	"codejudge/internal/judge/sandbox/engine"
	"codejudge/internal/judge/sandbox/language"
	"codejudge/internal/judge/sandbox/profile"
	"codejudge/internal/judge/sandbox/result"
	"codejudge/internal/judge/sandbox/workspace"
)

func requireTool(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available", name)
	}
}

func newRealWorker(t *testing.T) (*sandbox.Worker, string) {
	t.Helper()
	root := t.TempDir()
	mgr, err := workspace.NewManager(root)
	if err != nil {
		t.Fatalf("create workspace manager: %v", err)
	}
	eng := engine.NewEngine(engine.Config{})
	reg, err := language.NewRegistry(profile.DefaultLanguages(), eng, language.Options{})
	if err != nil {
		t.Fatalf("create registry: %v", err)
	}
	return sandbox.NewWorker(eng, reg, mgr), root
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read %s: %v", dir, err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected %s to be empty, found %d entries", dir, len(entries))
	}
}

func TestScenarioPythonSumAccepted(t *testing.T) {
	requireTool(t, "python3")
	worker, root := newRealWorker(t)

	res, err := worker.Execute(context.Background(), sandbox.ExecutionRequest{
		Language:  "python",
		Code:      "a, b = map(int, input().split())\nprint(a + b)\n",
		TestCases: []sandbox.TestCase{{Input: "2 3\n", ExpectedOutput: "5"}},
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Status != result.StatusAccepted || res.PassedCount != 1 {
		t.Fatalf("expected ACCEPTED with 1 passed, got %s with %d", res.Status, res.PassedCount)
	}
	if res.MemoryKB != 0 {
		t.Fatalf("expected memory_kb 0, got %d", res.MemoryKB)
	}
	assertEmptyDir(t, root)
}

func TestScenarioPythonSleepTimeLimit(t *testing.T) {
	requireTool(t, "python3")
	worker, root := newRealWorker(t)

	start := time.Now()
	res, err := worker.Execute(context.Background(), sandbox.ExecutionRequest{
		Language:    "python",
		Code:        "import time\ntime.sleep(5)\n",
		TestCases:   []sandbox.TestCase{{Input: "", ExpectedOutput: ""}},
		TimeLimitMs: 500,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Status != result.StatusTimeLimit {
		t.Fatalf("expected TIME_LIMIT, got %s", res.Status)
	}
	if res.Tests[0].RuntimeMs != 500 {
		t.Fatalf("expected elapsed to equal the limit, got %d", res.Tests[0].RuntimeMs)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("judge took too long: %s", elapsed)
	}
	assertEmptyDir(t, root)
}

func TestScenarioJavaWithoutPublicClass(t *testing.T) {
	worker, root := newRealWorker(t)

	res, err := worker.Execute(context.Background(), sandbox.ExecutionRequest{
		Language:  "java",
		Code:      "class Main { public static void main(String[] args) { System.out.println(1); } }",
		TestCases: []sandbox.TestCase{{Input: "", ExpectedOutput: "1"}},
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Status != result.StatusCompileError {
		t.Fatalf("expected COMPILE_ERROR, got %s", res.Status)
	}
	if len(res.Tests) != 0 {
		t.Fatalf("expected zero tests, got %d", len(res.Tests))
	}
	assertEmptyDir(t, root)
}

func TestScenarioCppSegfaultOnSecondTest(t *testing.T) {
	requireTool(t, "g++")
	worker, root := newRealWorker(t)

	code := `#include <csignal>
#include <iostream>
int main() {
    int n;
    std::cin >> n;
    if (n == 2) {
        std::raise(SIGSEGV);
    }
    std::cout << n << std::endl;
    return 0;
}
`
	res, err := worker.Execute(context.Background(), sandbox.ExecutionRequest{
		Language: "cpp",
		Code:     code,
		TestCases: []sandbox.TestCase{
			{Input: "1", ExpectedOutput: "1"},
			{Input: "2", ExpectedOutput: "2"},
			{Input: "3", ExpectedOutput: "3"},
		},
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Status != result.StatusRuntimeError {
		t.Fatalf("expected RUNTIME_ERROR, got %s (stderr %q)", res.Status, res.Stderr)
	}
	if len(res.Tests) != 3 {
		t.Fatalf("expected all three tests to run, got %d", len(res.Tests))
	}
	if !res.Tests[0].Passed || res.Tests[1].Passed || !res.Tests[2].Passed {
		t.Fatalf("unexpected pass pattern %+v", res.Tests)
	}
	if res.Tests[1].Classification != result.ClassRuntimeError || !strings.Contains(res.Tests[1].Stderr, "SIGSEGV") {
		t.Fatalf("unexpected crash verdict %+v", res.Tests[1])
	}
	if res.PassedCount != 2 {
		t.Fatalf("expected 2 passed, got %d", res.PassedCount)
	}
	assertEmptyDir(t, root)
}

func TestScenarioCppCompileError(t *testing.T) {
	requireTool(t, "g++")
	worker, root := newRealWorker(t)

	res, err := worker.Execute(context.Background(), sandbox.ExecutionRequest{
		Language:  "cpp",
		Code:      "int main() { return 0 }",
		TestCases: []sandbox.TestCase{{Input: "", ExpectedOutput: ""}},
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Status != result.StatusCompileError || len(res.Tests) != 0 {
		t.Fatalf("expected COMPILE_ERROR with zero tests, got %+v", res)
	}
	if !strings.Contains(res.Stderr, "error") {
		t.Fatalf("expected compiler diagnostics, got %q", res.Stderr)
	}
	assertEmptyDir(t, root)
}

func TestScenarioAdHocPython(t *testing.T) {
	requireTool(t, "python3")
	worker, root := newRealWorker(t)

	input := "world\n"
	res, err := worker.Execute(context.Background(), sandbox.ExecutionRequest{
		Language: "py",
		Code:     "import sys\nname = input()\nprint('hello', name)\nprint('warn', file=sys.stderr)\n",
		Input:    &input,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Status != result.StatusAccepted || !res.AdHoc {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Stdout != "hello world\n" || res.Stderr != "warn\n" {
		t.Fatalf("expected raw output, got stdout=%q stderr=%q", res.Stdout, res.Stderr)
	}
	assertEmptyDir(t, root)
}
