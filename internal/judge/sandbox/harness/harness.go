// Package harness holds the interpreter-side driver that loads a submission
// and the JSON-lines protocol spoken with it.
package harness

import (
	_ "embed"

	"offlinejudge/internal/judge/value"
)

// FileName is the name the harness is materialized under in a run workspace.
const FileName = "judge_harness.py"

//go:embed harness.py
var script []byte

// Script returns the harness source.
func Script() []byte {
	out := make([]byte, len(script))
	copy(out, script)
	return out
}

// Op names a request kind.
type Op string

const (
	OpLoad    Op = "load"
	OpResolve Op = "resolve"
	OpCall    Op = "call"
)

// Fault is the category of a failed request as reported by the harness.
type Fault string

const (
	FaultLoad       Fault = "load"
	FaultEntryPoint Fault = "entry_point"
	FaultRuntime    Fault = "runtime"
	FaultProtocol   Fault = "protocol"
)

// Shape marks a call result that was converted from node objects. Such a
// list is ordered by construction and must not be compared as a multiset.
type Shape string

const (
	ShapeList Shape = "list"
	ShapeTree Shape = "tree"
)

// Request is one line sent to the harness. Only the fields of Op are set.
type Request struct {
	Op Op `json:"op"`

	// load
	SourceFile     string `json:"source_file,omitempty"`
	RecursionLimit int    `json:"recursion_limit,omitempty"`
	MemoryBytes    int64  `json:"memory_bytes,omitempty"`
	CPUSeconds     int64  `json:"cpu_seconds,omitempty"`
	FsizeBytes     int64  `json:"fsize_bytes,omitempty"`
	NProc          int64  `json:"nproc,omitempty"`

	// resolve
	Name      string `json:"name,omitempty"`
	Container string `json:"container,omitempty"`

	// call
	Mode   string        `json:"mode,omitempty"`
	Args   []value.Value `json:"args,omitempty"`
	Kwargs *value.Value  `json:"kwargs,omitempty"`
}

// Param describes one named parameter of the resolved callable.
type Param struct {
	Name       string `json:"name"`
	Positional bool   `json:"positional"`
	Keyword    bool   `json:"keyword"`
	Required   bool   `json:"required"`
	Node       string `json:"node,omitempty"`
}

// Response is one line read back from the harness.
type Response struct {
	OK    bool   `json:"ok"`
	Fault Fault  `json:"fault,omitempty"`
	Error string `json:"error,omitempty"`

	// resolve
	QualifiedName string  `json:"qualified_name,omitempty"`
	Params        []Param `json:"params,omitempty"`
	VarArgs       bool    `json:"varargs,omitempty"`
	VarKw         bool    `json:"varkw,omitempty"`

	// call
	Value     value.Value `json:"value"`
	Shape     Shape       `json:"shape,omitempty"`
	ElapsedNs int64       `json:"elapsed_ns,omitempty"`
}

// LoadRequest builds a load request.
func LoadRequest(sourceFile string, recursionLimit int, memoryBytes, cpuSeconds, fsizeBytes, nproc int64) Request {
	return Request{
		Op:             OpLoad,
		SourceFile:     sourceFile,
		RecursionLimit: recursionLimit,
		MemoryBytes:    memoryBytes,
		CPUSeconds:     cpuSeconds,
		FsizeBytes:     fsizeBytes,
		NProc:          nproc,
	}
}

// ResolveRequest builds a resolve request for name, looked up on container first.
func ResolveRequest(name, container string) Request {
	return Request{Op: OpResolve, Name: name, Container: container}
}

// KeywordCall builds a call binding every input by name.
func KeywordCall(input value.Value) Request {
	return Request{Op: OpCall, Mode: "keyword", Kwargs: &input}
}

// PositionalCall builds a call binding args in order.
func PositionalCall(args []value.Value) Request {
	if args == nil {
		args = []value.Value{}
	}
	return Request{Op: OpCall, Mode: "positional", Args: args}
}
