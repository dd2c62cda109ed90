package model

// JudgeMessage is the Kafka payload of an asynchronous judge task.
type JudgeMessage struct {
	ID      string         `json:"id"`
	Request ExecuteRequest `json:"request"`
}

// JudgeResultMessage is published once a task finishes. Error fields are set
// when the task could not be judged at all.
type JudgeResultMessage struct {
	ID           string           `json:"id"`
	Response     *ExecuteResponse `json:"response,omitempty"`
	ErrorCode    int              `json:"error_code,omitempty"`
	ErrorMessage string           `json:"error,omitempty"`
	FinishedAt   int64            `json:"finished_at"`
}
