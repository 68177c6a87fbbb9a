package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"offlinejudge/internal/judge/value"
)

// FaultKind classifies why a case produced no comparable output.
type FaultKind string

const (
	FaultNone    FaultKind = ""
	FaultRuntime FaultKind = "runtime"
	FaultTimeout FaultKind = "timeout"
)

// Duration renders as milliseconds with two decimals, e.g. "12.34ms".
type Duration time.Duration

func (d Duration) String() string {
	return fmt.Sprintf("%.2fms", float64(time.Duration(d))/float64(time.Millisecond))
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(d.String())), nil
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	raw, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	ms, err := strconv.ParseFloat(strings.TrimSuffix(raw, "ms"), 64)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(ms * float64(time.Millisecond))
	return nil
}

// ExecutionResult is the outcome of one test case. ID is 1-based.
type ExecutionResult struct {
	ID       int         `json:"id"`
	Input    value.Value `json:"input"`
	Expected value.Value `json:"expected"`
	Actual   value.Value `json:"actual"`
	Passed   bool        `json:"passed"`
	Duration Duration    `json:"duration"`
	Error    *string     `json:"error"`
	Fault    FaultKind   `json:"fault,omitempty"`
}

// Faulted reports whether the case ended in a runtime or timeout fault.
func (r ExecutionResult) Faulted() bool {
	return r.Fault != FaultNone
}

// Report aggregates the results of one run. Results are ordered by case ID.
type Report struct {
	AllPassed   bool              `json:"all_passed"`
	PassedCount int               `json:"passed_count"`
	TotalCount  int               `json:"total_count"`
	Results     []ExecutionResult `json:"results"`
}

// Submission is one judging request.
type Submission struct {
	QuestionID string `json:"question_id"`
	Code       string `json:"code"`
}
