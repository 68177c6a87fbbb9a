package contextkey

// key is a private type to avoid context key collisions across packages.
type key string

const (
	TraceID    key = "trace_id"
	RequestID  key = "request_id"
	RunID      key = "run_id"
	QuestionID key = "question_id"
)

// fields lists every key the logger lifts out of a context, in output order.
var fields = []key{TraceID, RequestID, RunID, QuestionID}

// Fields returns the context keys that carry log correlation values.
func Fields() []key {
	return fields
}

// Name returns the log field name for the key.
func (k key) Name() string {
	return string(k)
}
