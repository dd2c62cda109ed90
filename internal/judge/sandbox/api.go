// Package sandbox defines the judge entrypoint: compile once, run every test, aggregate.
package sandbox

import (
	"context"

	"codejudge/internal/judge/sandbox/compare"
	"codejudge/internal/judge/sandbox/result"
	appErr "codejudge/pkg/errors"
)

const (
	DefaultTimeLimitMs   int64 = 2000
	DefaultMemoryLimitMB int64 = 256
)

// Service is the high-level entrypoint used by the judge service layer.
type Service interface {
	Execute(ctx context.Context, req ExecutionRequest) (result.JudgeResult, error)
}

// ExecutionRequest contains all data needed to judge one submission.
//
// TestCases and Input are mutually exclusive. With no test cases the request
// is an ad hoc run over Input, which may be empty.
type ExecutionRequest struct {
	RequestID string
	Language  string
	Code      string
	TestCases []TestCase
	Input     *string

	TimeLimitMs int64
	// MemoryLimitMB is accepted for compatibility and is not enforced.
	MemoryLimitMB int64
	// Comparator names the output comparator, "exact" when empty.
	Comparator string
}

// TestCase is one input and its expected output.
type TestCase struct {
	Input          string
	ExpectedOutput string
}

// AdHoc reports whether the request runs once over a single input.
func (r ExecutionRequest) AdHoc() bool {
	return len(r.TestCases) == 0
}

// Stdin returns the ad hoc input.
func (r ExecutionRequest) Stdin() string {
	if r.Input == nil {
		return ""
	}
	return *r.Input
}

// WithDefaults fills unset limits.
func (r ExecutionRequest) WithDefaults() ExecutionRequest {
	if r.TimeLimitMs == 0 {
		r.TimeLimitMs = DefaultTimeLimitMs
	}
	if r.MemoryLimitMB == 0 {
		r.MemoryLimitMB = DefaultMemoryLimitMB
	}
	return r
}

// Validate checks the request shape. A blank or unsupported language is not a
// validation failure; it is judged as a compile error. Blank code is judged
// like any other program.
func (r ExecutionRequest) Validate() error {
	if len(r.TestCases) > 0 && r.Input != nil {
		return appErr.New(appErr.InvalidParams).WithMessage("test_cases and input are mutually exclusive")
	}
	if r.TimeLimitMs < 0 {
		return appErr.ValidationError("time_limit_ms", "must be positive")
	}
	if r.MemoryLimitMB < 0 {
		return appErr.ValidationError("memory_limit_mb", "must be positive")
	}
	if _, err := compare.Lookup(r.Comparator); err != nil {
		return err
	}
	return nil
}
