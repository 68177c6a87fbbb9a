//go:build linux

package main

import (
	"fmt"

	"offlinejudge/internal/judge/sandbox/spec"

	"golang.org/x/sys/unix"
)

type rlimit struct {
	resource int
	name     string
	value    uint64
}

// rlimitsFor converts the positive fields of limits into kernel rlimits.
// The wall clock is enforced by the engine, not here.
func rlimitsFor(limits spec.ResourceLimit) []rlimit {
	const mb = 1 << 20
	var out []rlimit
	if limits.CPUTimeMs > 0 {
		out = append(out, rlimit{unix.RLIMIT_CPU, "cpu", uint64((limits.CPUTimeMs + 999) / 1000)})
	}
	if limits.MemoryMB > 0 {
		out = append(out, rlimit{unix.RLIMIT_AS, "as", uint64(limits.MemoryMB) * mb})
	}
	if limits.OutputMB > 0 {
		out = append(out, rlimit{unix.RLIMIT_FSIZE, "fsize", uint64(limits.OutputMB) * mb})
	}
	if limits.StackMB > 0 {
		out = append(out, rlimit{unix.RLIMIT_STACK, "stack", uint64(limits.StackMB) * mb})
	}
	if limits.PIDs > 0 {
		out = append(out, rlimit{unix.RLIMIT_NPROC, "nproc", uint64(limits.PIDs)})
	}
	return out
}

func applyRlimits(limits spec.ResourceLimit) error {
	for _, l := range rlimitsFor(limits) {
		if err := unix.Setrlimit(l.resource, &unix.Rlimit{Cur: l.value, Max: l.value}); err != nil {
			return fmt.Errorf("set rlimit %s: %w", l.name, err)
		}
	}
	return nil
}
