// Package result defines execution results and verdict aggregation.
package result

// Classification is the raw outcome of one process run.
type Classification string

const (
	ClassSuccess      Classification = "SUCCESS"
	ClassRuntimeError Classification = "RUNTIME_ERROR"
	ClassTimeout      Classification = "TIMEOUT"
	ClassCompileError Classification = "COMPILE_ERROR"
)

// Status is the terminal verdict of a whole request.
type Status string

const (
	StatusAccepted     Status = "ACCEPTED"
	StatusWrongAnswer  Status = "WRONG_ANSWER"
	StatusRuntimeError Status = "RUNTIME_ERROR"
	StatusTimeLimit    Status = "TIME_LIMIT"
	StatusCompileError Status = "COMPILE_ERROR"
)

// JudgeState is the lifecycle state of one request inside the worker.
type JudgeState string

const (
	StateCompiling    JudgeState = "COMPILING"
	StateRunningTests JudgeState = "RUNNING_TESTS"
	StateAggregating  JudgeState = "AGGREGATING"
	StateFinished     JudgeState = "FINISHED"
)

// RawExecutionResult captures one process run.
type RawExecutionResult struct {
	Classification Classification
	Stdout         string
	Stderr         string
	ElapsedMs      int64
	ExitCode       int
	Signal         string
	Truncated      bool
}

// TestVerdict is the outcome of one test case. Order follows the request.
type TestVerdict struct {
	Passed         bool
	Input          string
	Expected       string
	Actual         string
	RuntimeMs      int64
	Classification Classification
	Stderr         string
}

// JudgeResult is the response of one request.
type JudgeResult struct {
	Status       Status
	Stdout       string
	Stderr       string
	RuntimeMs    int64
	MaxRuntimeMs int64
	MemoryKB     int64
	PassedCount  int
	Tests        []TestVerdict
	// AdHoc is true when the request carried no test cases.
	AdHoc bool
}

// StatusFromClassification maps a single run directly to a terminal status.
func StatusFromClassification(c Classification) Status {
	switch c {
	case ClassSuccess:
		return StatusAccepted
	case ClassTimeout:
		return StatusTimeLimit
	case ClassCompileError:
		return StatusCompileError
	default:
		return StatusRuntimeError
	}
}

// Aggregate computes the batch verdict. First match wins:
// all passed, then any timeout, then any runtime error, else wrong answer.
// An empty batch is accepted. Compile errors never reach here because they
// short-circuit before any test runs.
func Aggregate(tests []TestVerdict) Status {
	allPassed := true
	anyTimeout := false
	anyRuntime := false
	for _, tv := range tests {
		if !tv.Passed {
			allPassed = false
		}
		switch tv.Classification {
		case ClassTimeout:
			anyTimeout = true
		case ClassRuntimeError:
			anyRuntime = true
		case ClassCompileError:
			return StatusCompileError
		}
	}
	switch {
	case allPassed:
		return StatusAccepted
	case anyTimeout:
		return StatusTimeLimit
	case anyRuntime:
		return StatusRuntimeError
	default:
		return StatusWrongAnswer
	}
}

// Runtimes returns the mean and the max elapsed time of the executed tests.
func Runtimes(tests []TestVerdict) (mean int64, max int64) {
	if len(tests) == 0 {
		return 0, 0
	}
	var total int64
	for _, tv := range tests {
		total += tv.RuntimeMs
		if tv.RuntimeMs > max {
			max = tv.RuntimeMs
		}
	}
	return total / int64(len(tests)), max
}
