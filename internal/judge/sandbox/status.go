package sandbox

import (
	"context"

	"codejudge/internal/judge/sandbox/result"
)

// StatusUpdate carries intermediate judge progress.
type StatusUpdate struct {
	RequestID  string
	State      result.JudgeState
	Language   string
	TotalTests int
	DoneTests  int
	// Status is set once State is StateFinished.
	Status result.Status
}

// StatusReporter receives state transitions of a running request.
type StatusReporter interface {
	ReportStatus(ctx context.Context, update StatusUpdate) error
}
