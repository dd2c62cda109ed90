package service

import (
	"codejudge/internal/judge/model"
	appErr "codejudge/pkg/errors"
)

// Limits bounds what one request may ask for.
type Limits struct {
	MaxCodeBytes   int   `yaml:"maxCodeBytes"`
	MaxInputBytes  int   `yaml:"maxInputBytes"`
	MaxTestCases   int   `yaml:"maxTestCases"`
	MaxTimeLimitMs int64 `yaml:"maxTimeLimitMs"`
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxCodeBytes:   64 << 10,
		MaxInputBytes:  8 << 20,
		MaxTestCases:   100,
		MaxTimeLimitMs: 15000,
	}
}

func (l Limits) withDefaults() Limits {
	def := DefaultLimits()
	if l.MaxCodeBytes <= 0 {
		l.MaxCodeBytes = def.MaxCodeBytes
	}
	if l.MaxInputBytes <= 0 {
		l.MaxInputBytes = def.MaxInputBytes
	}
	if l.MaxTestCases <= 0 {
		l.MaxTestCases = def.MaxTestCases
	}
	if l.MaxTimeLimitMs <= 0 {
		l.MaxTimeLimitMs = def.MaxTimeLimitMs
	}
	return l
}

func (l Limits) check(req model.ExecuteRequest) error {
	if len(req.Code) > l.MaxCodeBytes {
		return appErr.Newf(appErr.CodeTooLarge, "code exceeds %d bytes", l.MaxCodeBytes)
	}
	if len(req.TestCases) > l.MaxTestCases {
		return appErr.Newf(appErr.TooManyTestCases, "at most %d test cases are allowed", l.MaxTestCases)
	}
	if req.InputBytes() > l.MaxInputBytes {
		return appErr.Newf(appErr.CustomInputTooLarge, "test data exceeds %d bytes", l.MaxInputBytes)
	}
	return nil
}

// clampTimeLimit caps the requested limit; zero keeps the worker default.
func (l Limits) clampTimeLimit(ms int64) int64 {
	if ms > l.MaxTimeLimitMs {
		return l.MaxTimeLimitMs
	}
	return ms
}
