package errors_test

import (
	"errors"
	"fmt"
	"testing"

	. "offlinejudge/pkg/errors"
)

func TestErrorCode_Message(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{Success, "Success"},
		{ProblemNotFound, "Problem not found"},
		{InvalidParams, "Invalid parameters"},
		{JudgeQueueFull, "Judge queue is full, please try again later"},
		{ErrorCode(1), "Unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.code.Message(); got != tt.want {
				t.Errorf("Message() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code       ErrorCode
		wantStatus int
	}{
		{Success, 200},
		{InvalidParams, 400},
		{CodeTooLarge, 400},
		{ValidationFailed, 400},
		{ProblemNotFound, 404},
		{RunNotFound, 404},
		{TooManyRequests, 429},
		{JudgeQueueFull, 429},
		{ServiceUnavailable, 503},
		{Timeout, 504},
		{JudgeSystemError, 500},
	}

	for _, tt := range tests {
		t.Run(tt.code.Message(), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.wantStatus {
				t.Errorf("HTTPStatus() = %v, want %v", got, tt.wantStatus)
			}
		})
	}
}

func TestErrorCode_Kind(t *testing.T) {
	tests := map[ErrorCode]string{
		CompilationError:   "load",
		EntryPointNotFound: "entry_point",
		TestCaseInvalid:    "configuration",
		TimeLimitExceeded:  "timeout",
		JudgeQueueFull:     "busy",
		CacheError:         "internal",
	}
	for code, want := range tests {
		if got := code.Kind(); got != want {
			t.Errorf("%d.Kind() = %q, want %q", code, got, want)
		}
	}
}

func TestNew(t *testing.T) {
	err := New(ProblemNotFound)

	if err.Code != ProblemNotFound {
		t.Errorf("Code = %v, want %v", err.Code, ProblemNotFound)
	}
	if err.Error() != ProblemNotFound.Message() {
		t.Errorf("Error() = %v, want %v", err.Error(), ProblemNotFound.Message())
	}
	if err.Stack == "" {
		t.Error("expected a stack trace")
	}
}

func TestNewf(t *testing.T) {
	err := Newf(ProblemNotFound, "Question ID %s not found.", "42")

	want := "Question ID 42 not found."
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}
}

func TestWrap(t *testing.T) {
	originalErr := errors.New("connection refused")
	wrappedErr := Wrap(originalErr, CacheError)

	if wrappedErr.Code != CacheError {
		t.Errorf("Code = %v, want %v", wrappedErr.Code, CacheError)
	}
	if wrappedErr.Unwrap() != originalErr {
		t.Error("Unwrap() should return original error")
	}
	if Wrap(nil, CacheError) != nil {
		t.Error("Wrap(nil) should be nil")
	}
}

func TestWrapCopiesCustomError(t *testing.T) {
	sentinel := New(JudgeSystemError).WithMessage("engine down")
	wrapped := Wrap(fmt.Errorf("start: %w", sentinel), Timeout)

	if wrapped.Code != Timeout || wrapped.Error() != "engine down" {
		t.Errorf("unexpected wrapped error: %d %q", wrapped.Code, wrapped.Error())
	}
	if sentinel.Code != JudgeSystemError {
		t.Error("Wrap must not mutate the original error")
	}
}

func TestError_WithDetail(t *testing.T) {
	err := New(ValidationFailed).
		WithDetail("field", "question_id").
		WithDetail("reason", "required")

	if err.Details["field"] != "question_id" || err.Details["reason"] != "required" {
		t.Errorf("unexpected details: %v", err.Details)
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{name: "nil error", err: nil, want: Success},
		{name: "custom error", err: New(RunNotFound), want: RunNotFound},
		{name: "wrapped custom error", err: fmt.Errorf("lookup: %w", New(RunNotFound)), want: RunNotFound},
		{name: "standard error", err: errors.New("standard error"), want: InternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.want {
				t.Errorf("GetCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIs(t *testing.T) {
	err := New(CodeTooLarge)

	if !Is(err, CodeTooLarge) {
		t.Error("Is() should return true for matching code")
	}
	if Is(err, InvalidParams) {
		t.Error("Is() should return false for non-matching code")
	}
	if Is(nil, CodeTooLarge) {
		t.Error("Is() should return false for nil error")
	}
}

func TestCommonErrorConstructors(t *testing.T) {
	if err := BadRequest("invalid input"); err.Code != InvalidParams {
		t.Error("BadRequest should use InvalidParams code")
	}
	if err := InternalError(errors.New("boom")); err.Code != InternalServerError {
		t.Error("InternalError should use InternalServerError code")
	}
	if err := InternalError(nil); err.Code != InternalServerError {
		t.Error("InternalError(nil) should still use InternalServerError code")
	}
	err := ValidationError("code", "too large")
	if err.Code != ValidationFailed || err.Details["field"] != "code" || err.Error() != "code: too large" {
		t.Errorf("unexpected validation error: %+v", err)
	}
}

func TestTerminal(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{New(CompilationError), true},
		{Wrap(New(EntryPointNotFound), EntryPointNotFound), true},
		{Newf(TestCaseInvalid, "bad case"), true},
		{New(JudgeSystemError), false},
		{errors.New("plain"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := Terminal(tt.err); got != tt.want {
			t.Errorf("Terminal(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
