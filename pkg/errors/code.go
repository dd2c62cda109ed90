package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 13000-13999: Execution & Judge errors
// 14000-14999: Infrastructure (cache, queue) errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	InvalidFormat      ErrorCode = 10301
	InvalidValue       ErrorCode = 10302
	RequiredFieldEmpty ErrorCode = 10303

	// ========== Execution & Judge Errors (13000-13999) ==========

	// Submission (13000-13099)
	CodeTooLarge         ErrorCode = 13002
	LanguageNotSupported ErrorCode = 13003
	TooManyTestCases     ErrorCode = 13004

	// Judge (13100-13199)
	JudgeQueueFull      ErrorCode = 13100
	JudgeSystemError    ErrorCode = 13101
	CompilationError    ErrorCode = 13102
	RuntimeError        ErrorCode = 13103
	TimeLimitExceeded   ErrorCode = 13104
	ToolchainNotFound   ErrorCode = 13107
	WorkspaceError      ErrorCode = 13108
	ComparatorNotFound  ErrorCode = 13109

	// Custom input (13200-13299)
	CustomTestFailed    ErrorCode = 13200
	CustomInputTooLarge ErrorCode = 13201

	// ========== Infrastructure Errors (14000-14999) ==========

	// Cache (14000-14099)
	CacheError     ErrorCode = 14000
	CacheMiss      ErrorCode = 14001
	CacheSetFailed ErrorCode = 14002

	// Queue (14100-14199)
	QueueError          ErrorCode = 14100
	QueuePublishFailed  ErrorCode = 14101
	QueueMessageInvalid ErrorCode = 14102
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	// Validation
	ValidationFailed:   "Validation failed",
	InvalidFormat:      "Invalid format",
	InvalidValue:       "Invalid value",
	RequiredFieldEmpty: "Required field is empty",

	// Submission
	CodeTooLarge:         "Code is too large",
	LanguageNotSupported: "Programming language not supported",
	TooManyTestCases:     "Too many test cases",

	// Judge
	JudgeQueueFull:     "Judge queue is full, please try again later",
	JudgeSystemError:   "Judge system error",
	CompilationError:   "Compilation error",
	RuntimeError:       "Runtime error",
	TimeLimitExceeded:  "Time limit exceeded",
	ToolchainNotFound:  "Toolchain not found",
	WorkspaceError:     "Workspace operation failed",
	ComparatorNotFound: "Output comparator not found",

	// Custom input
	CustomTestFailed:    "Custom test execution failed",
	CustomInputTooLarge: "Custom input is too large",

	// Cache
	CacheError:     "Cache operation failed",
	CacheMiss:      "Cache miss",
	CacheSetFailed: "Failed to set cache",

	// Queue
	QueueError:          "Message queue operation failed",
	QueuePublishFailed:  "Failed to publish message",
	QueueMessageInvalid: "Invalid queue message",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == NotFound:
		return 404
	case c == CodeTooLarge, c == CustomInputTooLarge:
		return 413
	case c == TooManyRequests:
		return 429
	case c == ServiceUnavailable, c == JudgeQueueFull:
		return 503
	case c == Timeout:
		return 504
	case c >= 10300 && c < 10400: // Validation errors
		return 400
	case c == InvalidParams, c == TooManyTestCases, c == ComparatorNotFound:
		return 400
	default:
		return 500
	}
}
