package model

import (
	"encoding/json"
	"strings"
	"testing"

	"codejudge/internal/judge/sandbox/result"
)

func TestExecuteRequestToSandbox(t *testing.T) {
	var req ExecuteRequest
	body := `{"language":"python","code":"print(1)","test_cases":[{"input":"1","expected_output":"2"}],"time_limit_ms":500,"comparator":"float"}`
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("decode: %v", err)
	}
	sr := req.ToSandbox("req-1")
	if sr.RequestID != "req-1" || sr.Language != "python" || sr.TimeLimitMs != 500 || sr.Comparator != "float" {
		t.Fatalf("unexpected request %+v", sr)
	}
	if len(sr.TestCases) != 1 || sr.TestCases[0].ExpectedOutput != "2" {
		t.Fatalf("unexpected tests %+v", sr.TestCases)
	}
	if sr.Input != nil || sr.AdHoc() {
		t.Fatalf("expected test mode")
	}
	if req.InputBytes() != 2 {
		t.Fatalf("unexpected input size %d", req.InputBytes())
	}
}

func TestNewExecuteResponseTestMode(t *testing.T) {
	resp := NewExecuteResponse(result.JudgeResult{
		Status:      result.StatusWrongAnswer,
		RuntimeMs:   12,
		PassedCount: 0,
		Tests: []result.TestVerdict{
			{Passed: false, Input: "1", Expected: "2", Actual: "3", RuntimeMs: 12},
		},
	})
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out := string(data)
	for _, want := range []string{`"status":"WRONG_ANSWER"`, `"memory_kb":0`, `"passed_count":0`, `"actual":"3"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
	if strings.Contains(out, `"stdout"`) {
		t.Fatalf("test mode must not carry raw stdout: %s", out)
	}
}

func TestNewExecuteResponseAdHoc(t *testing.T) {
	resp := NewExecuteResponse(result.JudgeResult{
		Status: result.StatusRuntimeError,
		Stdout: "partial",
		Stderr: "Traceback",
		AdHoc:  true,
	})
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "passed_count") || strings.Contains(out, `"tests"`) {
		t.Fatalf("ad hoc response must not carry per-test fields: %s", out)
	}
	if !strings.Contains(out, `"stdout":"partial"`) || !strings.Contains(out, `"stderr":"Traceback"`) {
		t.Fatalf("expected raw output in %s", out)
	}
}
