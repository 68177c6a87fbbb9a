// Package result describes how a sandboxed process ended.
package result

import (
	"fmt"
	"strings"
)

// ExitStatus captures raw data about a finished sandbox process.
type ExitStatus struct {
	ExitCode   int
	Signal     string
	CPUTimeMs  int64
	WallTimeMs int64
	MemoryKB   int64
	OomKilled  bool
	Stderr     string
}

// Describe renders the termination cause for fault messages.
func (s ExitStatus) Describe() string {
	var cause string
	switch {
	case s.OomKilled:
		cause = "interpreter ran out of memory"
	case s.Signal != "":
		cause = "interpreter terminated by signal " + s.Signal
	default:
		cause = fmt.Sprintf("interpreter exited with code %d", s.ExitCode)
	}
	if tail := lastLine(s.Stderr); tail != "" {
		cause += ": " + tail
	}
	return cause
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}
