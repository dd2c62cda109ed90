package model

import "codejudge/internal/judge/sandbox/result"

// TaskState is the lifecycle of an asynchronous judge task.
type TaskState string

const (
	TaskQueued   TaskState = "QUEUED"
	TaskRunning  TaskState = "RUNNING"
	TaskFinished TaskState = "FINISHED"
	TaskFailed   TaskState = "FAILED"
)

// TaskStatus is the polled view of an asynchronous judge task.
type TaskStatus struct {
	ID       string    `json:"id"`
	State    TaskState `json:"state"`
	Language string    `json:"language,omitempty"`
	// Phase is the engine state while running, e.g. COMPILING.
	Phase      result.JudgeState `json:"phase,omitempty"`
	TotalTests int               `json:"total_tests"`
	DoneTests  int               `json:"done_tests"`

	Response     *ExecuteResponse `json:"response,omitempty"`
	ErrorCode    int              `json:"error_code,omitempty"`
	ErrorMessage string           `json:"error,omitempty"`

	UpdatedAt int64 `json:"updated_at"`
}

// Terminal reports whether the task will not change anymore.
func (s TaskStatus) Terminal() bool {
	return s.State == TaskFinished || s.State == TaskFailed
}

// SubmitResponse acknowledges an asynchronous submission.
type SubmitResponse struct {
	ID    string    `json:"id"`
	State TaskState `json:"state"`
}
