package model

import (
	"codejudge/internal/judge/sandbox/profile"
	"codejudge/internal/judge/sandbox/result"
)

// ExecuteResponse is the wire form of a judge result.
type ExecuteResponse struct {
	Status       result.Status `json:"status"`
	Stdout       string        `json:"stdout,omitempty"`
	Stderr       string        `json:"stderr,omitempty"`
	RuntimeMs    int64         `json:"runtime_ms"`
	MaxRuntimeMs int64         `json:"max_runtime_ms"`
	MemoryKB     int64         `json:"memory_kb"`
	PassedCount  *int          `json:"passed_count,omitempty"`
	Tests        []TestResult  `json:"tests,omitempty"`
}

// TestResult is one per-test verdict on the wire.
type TestResult struct {
	Passed    bool   `json:"passed"`
	Input     string `json:"input"`
	Expected  string `json:"expected"`
	Actual    string `json:"actual"`
	RuntimeMs int64  `json:"runtime_ms"`
	Stderr    string `json:"stderr,omitempty"`
}

// NewExecuteResponse converts a worker result. Ad hoc results carry raw
// output and no per-test fields.
func NewExecuteResponse(res result.JudgeResult) ExecuteResponse {
	resp := ExecuteResponse{
		Status:       res.Status,
		Stdout:       res.Stdout,
		Stderr:       res.Stderr,
		RuntimeMs:    res.RuntimeMs,
		MaxRuntimeMs: res.MaxRuntimeMs,
		MemoryKB:     0,
	}
	if res.AdHoc {
		return resp
	}
	passed := res.PassedCount
	resp.PassedCount = &passed
	resp.Tests = make([]TestResult, 0, len(res.Tests))
	for _, tv := range res.Tests {
		resp.Tests = append(resp.Tests, TestResult{
			Passed:    tv.Passed,
			Input:     tv.Input,
			Expected:  tv.Expected,
			Actual:    tv.Actual,
			RuntimeMs: tv.RuntimeMs,
			Stderr:    tv.Stderr,
		})
	}
	return resp
}

// LanguageInfo describes one supported language.
type LanguageInfo struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Aliases        []string `json:"aliases,omitempty"`
	Compiled       bool     `json:"compiled"`
	TimeMultiplier float64  `json:"time_multiplier,omitempty"`
}

// NewLanguageInfo converts a language spec for listing.
func NewLanguageInfo(spec profile.LanguageSpec) LanguageInfo {
	return LanguageInfo{
		ID:             spec.ID,
		Name:           spec.Name,
		Aliases:        spec.Aliases,
		Compiled:       spec.CompileEnabled(),
		TimeMultiplier: spec.TimeMultiplier,
	}
}
