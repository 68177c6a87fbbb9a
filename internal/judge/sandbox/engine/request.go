package engine

import (
	"offlinejudge/internal/judge/sandbox/security"
	"offlinejudge/internal/judge/sandbox/spec"
)

// InitFD is the descriptor the helper reads its InitRequest from.
const InitFD = 3

// InitRequest is sent to the sandbox-init helper before it execs the interpreter.
type InitRequest struct {
	Spec          spec.ProcessSpec
	Isolation     security.IsolationProfile
	EnableSeccomp bool
	EnableNs      bool
}
