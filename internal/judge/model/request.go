package model

import (
	"codejudge/internal/judge/sandbox"
)

// ExecuteRequest is the wire form of a judge request.
type ExecuteRequest struct {
	Language      string         `json:"language"`
	Code          string         `json:"code"`
	TestCases     []TestCaseBody `json:"test_cases,omitempty"`
	Input         *string        `json:"input,omitempty"`
	TimeLimitMs   int64          `json:"time_limit_ms,omitempty"`
	MemoryLimitMB int64          `json:"memory_limit_mb,omitempty"`
	Comparator    string         `json:"comparator,omitempty"`
}

// TestCaseBody is one test case on the wire.
type TestCaseBody struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
}

// ToSandbox converts the wire request into a worker request.
func (r ExecuteRequest) ToSandbox(requestID string) sandbox.ExecutionRequest {
	tests := make([]sandbox.TestCase, 0, len(r.TestCases))
	for _, tc := range r.TestCases {
		tests = append(tests, sandbox.TestCase{Input: tc.Input, ExpectedOutput: tc.ExpectedOutput})
	}
	return sandbox.ExecutionRequest{
		RequestID:     requestID,
		Language:      r.Language,
		Code:          r.Code,
		TestCases:     tests,
		Input:         r.Input,
		TimeLimitMs:   r.TimeLimitMs,
		MemoryLimitMB: r.MemoryLimitMB,
		Comparator:    r.Comparator,
	}
}

// InputBytes returns the total size of all stdin payloads.
func (r ExecuteRequest) InputBytes() int {
	total := 0
	if r.Input != nil {
		total += len(*r.Input)
	}
	for _, tc := range r.TestCases {
		total += len(tc.Input) + len(tc.ExpectedOutput)
	}
	return total
}
