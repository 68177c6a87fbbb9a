package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 12000-12999: Problem store errors
// 13000-13999: Run & Judge errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008
	Canceled            ErrorCode = 10009

	// Cache errors (10200-10299)
	CacheError     ErrorCode = 10200
	CacheMiss      ErrorCode = 10201
	CacheSetFailed ErrorCode = 10202

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	InvalidFormat      ErrorCode = 10301
	InvalidValue       ErrorCode = 10302
	RequiredFieldEmpty ErrorCode = 10303

	// Messaging & storage errors (10400-10499)
	QueueError   ErrorCode = 10400
	StorageError ErrorCode = 10401

	// ========== Problem Store Errors (12000-12999) ==========

	ProblemNotFound     ErrorCode = 12000
	ProblemStoreInvalid ErrorCode = 12001

	// Test cases (12100-12199)
	TestCaseInvalid ErrorCode = 12102

	// ========== Run & Judge Errors (13000-13999) ==========

	// Run (13000-13099)
	RunNotFound  ErrorCode = 13000
	CodeTooLarge ErrorCode = 13002

	// Judge (13100-13199)
	JudgeQueueFull     ErrorCode = 13100
	JudgeSystemError   ErrorCode = 13101
	CompilationError   ErrorCode = 13102
	RuntimeError       ErrorCode = 13103
	TimeLimitExceeded  ErrorCode = 13104
	EntryPointNotFound ErrorCode = 13107
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
	Canceled:            "Request canceled",

	// Cache
	CacheError:     "Cache operation failed",
	CacheMiss:      "Cache miss",
	CacheSetFailed: "Failed to set cache",

	// Validation
	ValidationFailed:   "Validation failed",
	InvalidFormat:      "Invalid format",
	InvalidValue:       "Invalid value",
	RequiredFieldEmpty: "Required field is empty",

	// Messaging & storage
	QueueError:   "Message queue operation failed",
	StorageError: "Object storage operation failed",

	// Problem store
	ProblemNotFound:     "Problem not found",
	ProblemStoreInvalid: "Problem database is invalid",
	TestCaseInvalid:     "Invalid test case format",

	// Run
	RunNotFound:  "Run not found",
	CodeTooLarge: "Code is too large",

	// Judge
	JudgeQueueFull:     "Judge queue is full, please try again later",
	JudgeSystemError:   "Judge system error",
	CompilationError:   "Compilation error",
	RuntimeError:       "Runtime error",
	TimeLimitExceeded:  "Time limit exceeded",
	EntryPointNotFound: "Entry point not found",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// Kind returns the short machine-readable name used in terminal run errors.
func (c ErrorCode) Kind() string {
	switch c {
	case CompilationError:
		return "load"
	case EntryPointNotFound:
		return "entry_point"
	case TestCaseInvalid:
		return "configuration"
	case RuntimeError:
		return "runtime"
	case TimeLimitExceeded:
		return "timeout"
	case ProblemNotFound:
		return "not_found"
	case JudgeQueueFull:
		return "busy"
	default:
		return "internal"
	}
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == NotFound, c == ProblemNotFound, c == RunNotFound:
		return 404
	case c == TooManyRequests, c == JudgeQueueFull:
		return 429
	case c == ServiceUnavailable:
		return 503
	case c == Timeout:
		return 504
	case c >= 10300 && c < 10400: // Validation errors
		return 400
	case c == InvalidParams, c == CodeTooLarge:
		return 400
	default:
		return 500
	}
}
