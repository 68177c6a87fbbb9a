//go:build linux

package engine

import (
	"os"
	"path/filepath"
	"testing"

	"offlinejudge/internal/judge/sandbox/spec"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestRunCgroupOnPlainDirectory(t *testing.T) {
	root := t.TempDir()
	cg, err := newRunCgroup(root, "run-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if filepath.Dir(string(cg)) != filepath.Join(root, "run-1") {
		t.Fatalf("unexpected leaf %s", cg)
	}
	if err := cg.limit(spec.ResourceLimit{MemoryMB: 256, PIDs: 8}); err != nil {
		t.Fatalf("limit: %v", err)
	}
	if got := readFile(t, cg.path("memory.max")); got != "268435456" {
		t.Fatalf("memory.max = %s", got)
	}
	if got := readFile(t, cg.path("pids.max")); got != "8" {
		t.Fatalf("pids.max = %s", got)
	}
	if got := readFile(t, cg.path("cpu.max")); got != "100000 100000" {
		t.Fatalf("cpu.max = %s", got)
	}

	if err := os.WriteFile(cg.path("memory.events"), []byte("low 0\nhigh 0\nmax 3\noom 1\noom_kill 1\n"), 0o644); err != nil {
		t.Fatalf("write events: %v", err)
	}
	if !cg.oomKilled() {
		t.Fatalf("expected oom kill")
	}
	if err := os.WriteFile(cg.path("memory.peak"), []byte("2097152\n"), 0o644); err != nil {
		t.Fatalf("write peak: %v", err)
	}
	if got := cg.peakMemoryKB(nil); got != 2048 {
		t.Fatalf("peak = %d KB", got)
	}
}

func TestRunCgroupDisabled(t *testing.T) {
	var cg runCgroup
	if err := cg.limit(spec.ResourceLimit{MemoryMB: 1}); err != nil {
		t.Fatalf("limit: %v", err)
	}
	if err := cg.add(42); err != nil {
		t.Fatalf("add: %v", err)
	}
	if cg.oomKilled() || cg.peakMemoryKB(nil) != 0 {
		t.Fatalf("disabled cgroup must report nothing")
	}
	cg.kill()
	cg.remove()
	if _, err := newRunCgroup("", "run"); err == nil {
		t.Fatalf("expected error without root")
	}
}
