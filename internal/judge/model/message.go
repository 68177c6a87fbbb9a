package model

// RunState is the lifecycle state of an asynchronous run.
type RunState string

const (
	RunPending  RunState = "Pending"
	RunRunning  RunState = "Running"
	RunFinished RunState = "Finished"
	RunFailed   RunState = "Failed"
)

// Terminal reports whether no further transitions happen from s.
func (s RunState) Terminal() bool {
	return s == RunFinished || s == RunFailed
}

// RunMessage is the queue payload for an asynchronous run.
type RunMessage struct {
	RunID      string `json:"run_id"`
	QuestionID string `json:"question_id"`
	Code       string `json:"code"`
	TraceID    string `json:"trace_id,omitempty"`
	CreatedAt  int64  `json:"created_at"`
}

// RunError describes why an asynchronous run produced no report.
type RunError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// RunStatus is the stored state of an asynchronous run.
type RunStatus struct {
	RunID      string    `json:"run_id"`
	QuestionID string    `json:"question_id"`
	State      RunState  `json:"status"`
	Report     *Report   `json:"report,omitempty"`
	Error      *RunError `json:"error,omitempty"`
	CreatedAt  int64     `json:"created_at"`
	FinishedAt int64     `json:"finished_at,omitempty"`
}
