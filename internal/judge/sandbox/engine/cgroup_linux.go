//go:build linux

package engine

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"offlinejudge/internal/judge/sandbox/spec"
)

// cpuPeriodUs is the cpu.max period. One interpreter gets at most one core.
const cpuPeriodUs = 100000

// runCgroup is the cgroup v2 leaf of one interpreter process. The zero value
// means cgroups are disabled and every method is a no-op.
type runCgroup string

// newRunCgroup creates root/<runID>/<nanos>. A respawned interpreter gets its
// own leaf so memory.peak and oom counters start from zero.
func newRunCgroup(root, runID string) (runCgroup, error) {
	if root == "" {
		return "", errors.New("cgroup root is required")
	}
	dir := filepath.Join(root, runID, strconv.FormatInt(time.Now().UnixNano(), 10))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create cgroup %s: %w", dir, err)
	}
	return runCgroup(dir), nil
}

func (cg runCgroup) path(name string) string {
	return filepath.Join(string(cg), name)
}

func (cg runCgroup) write(name, value string) error {
	if err := os.WriteFile(cg.path(name), []byte(value), 0o640); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// limit applies pids, memory and cpu bounds. Swap is disabled so memory.max
// is a hard ceiling; kernels without swap accounting ignore the write.
func (cg runCgroup) limit(limits spec.ResourceLimit) error {
	if cg == "" {
		return nil
	}
	pids := "max"
	if limits.PIDs > 0 {
		pids = strconv.FormatInt(limits.PIDs, 10)
	}
	if err := cg.write("pids.max", pids); err != nil {
		return err
	}
	if limits.MemoryMB > 0 {
		if err := cg.write("memory.max", strconv.FormatInt(limits.MemoryMB<<20, 10)); err != nil {
			return err
		}
		_ = cg.write("memory.swap.max", "0")
	}
	return cg.write("cpu.max", fmt.Sprintf("%d %d", cpuPeriodUs, cpuPeriodUs))
}

func (cg runCgroup) add(pid int) error {
	if cg == "" {
		return nil
	}
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d", pid)
	}
	return cg.write("cgroup.procs", strconv.Itoa(pid))
}

// kill uses cgroup.kill, which also reaches processes that left the group.
func (cg runCgroup) kill() {
	if cg != "" {
		_ = cg.write("cgroup.kill", "1")
	}
}

func (cg runCgroup) oomKilled() bool {
	if cg == "" {
		return false
	}
	data, err := os.ReadFile(cg.path("memory.events"))
	if err != nil {
		return false
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		key, value, ok := bytes.Cut(sc.Bytes(), []byte(" "))
		if ok && string(key) == "oom_kill" {
			n, _ := strconv.ParseInt(string(bytes.TrimSpace(value)), 10, 64)
			return n > 0
		}
	}
	return false
}

// peakMemoryKB prefers memory.peak and falls back to the rusage high-water mark.
func (cg runCgroup) peakMemoryKB(state *os.ProcessState) int64 {
	if cg != "" {
		if data, err := os.ReadFile(cg.path("memory.peak")); err == nil {
			if n, err := strconv.ParseInt(string(bytes.TrimSpace(data)), 10, 64); err == nil && n > 0 {
				return n >> 10
			}
		}
	}
	if state == nil {
		return 0
	}
	if ru, ok := state.SysUsage().(*syscall.Rusage); ok {
		return ru.Maxrss
	}
	return 0
}

// remove deletes the leaf and the run directory once it is empty. cgroupfs
// only supports rmdir.
func (cg runCgroup) remove() {
	if cg == "" {
		return
	}
	_ = os.Remove(string(cg))
	_ = os.Remove(filepath.Dir(string(cg)))
}
