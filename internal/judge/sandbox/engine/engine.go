// Package engine starts interpreter processes inside an isolated sandbox.
package engine

import (
	"context"
	"errors"
	"io"

	"offlinejudge/internal/judge/sandbox/result"
	"offlinejudge/internal/judge/sandbox/spec"
)

// ErrIsolationUnavailable is returned by NewEngine when the host cannot
// create the namespaces interpreters run in.
var ErrIsolationUnavailable = errors.New("sandbox isolation unavailable")

// Engine starts sandboxed processes.
type Engine interface {
	Start(ctx context.Context, ps spec.ProcessSpec) (Process, error)
	// KillRun kills every live process started for runID.
	KillRun(ctx context.Context, runID string) error
}

// Process is one running sandboxed process. Stdin and Stdout are the
// private protocol channel; stderr is captured up to a byte cap.
type Process interface {
	Pid() int
	Stdin() io.WriteCloser
	Stdout() io.ReadCloser
	// Kill terminates the whole process group. It is safe to call repeatedly.
	Kill()
	// Wait blocks until the process exits and releases its resources.
	// Every call returns the same status.
	Wait() result.ExitStatus
}
