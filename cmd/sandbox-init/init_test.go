//go:build linux

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"offlinejudge/internal/judge/sandbox/spec"

	seccomp "github.com/seccomp/libseccomp-golang"
	"golang.org/x/sys/unix"
)

func TestDecodeAndValidateRequest(t *testing.T) {
	body := `{"Spec":{"RunID":"r1","WorkDir":"/work","Cmd":["python3","-I","/work/harness.py"],` +
		`"Limits":{"CPUTimeMs":1500,"MemoryMB":256}},"Isolation":{"RootFS":"/srv/rootfs"},"EnableNs":true}`
	req, err := decodeRequest(strings.NewReader(body))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req.Spec.RunID != "r1" || req.Spec.Limits.MemoryMB != 256 || req.Isolation.RootFS != "/srv/rootfs" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if err := validateRequest(req); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if _, err := decodeRequest(strings.NewReader("{")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestValidateRequestRejects(t *testing.T) {
	base := spec.ProcessSpec{WorkDir: "/work", Cmd: []string{"python3"}}
	tests := []struct {
		name string
		req  initRequest
	}{
		{name: "no command", req: initRequest{Spec: spec.ProcessSpec{WorkDir: "/work"}}},
		{name: "no workdir", req: initRequest{Spec: spec.ProcessSpec{Cmd: []string{"python3"}}}},
		{name: "mounts without namespaces", req: initRequest{Spec: withMounts(base, spec.MountSpec{Source: "/a", Target: "/b"})}},
		{name: "empty mount", req: initRequest{Spec: withMounts(base, spec.MountSpec{Source: "/a"}), EnableNs: true}},
	}
	for _, tt := range tests {
		if err := validateRequest(tt.req); err == nil {
			t.Fatalf("%s: expected error", tt.name)
		}
	}
}

func withMounts(ps spec.ProcessSpec, mounts ...spec.MountSpec) spec.ProcessSpec {
	ps.BindMounts = mounts
	return ps
}

func TestRlimitsFor(t *testing.T) {
	got := rlimitsFor(spec.ResourceLimit{CPUTimeMs: 1001, WallTimeMs: 5000, MemoryMB: 2, PIDs: 4})
	want := map[string]uint64{"cpu": 2, "as": 2 << 20, "nproc": 4}
	if len(got) != len(want) {
		t.Fatalf("unexpected limits: %+v", got)
	}
	for _, l := range got {
		if want[l.name] != l.value {
			t.Fatalf("limit %s = %d, want %d", l.name, l.value, want[l.name])
		}
	}
	if l := rlimitsFor(spec.ResourceLimit{}); len(l) != 0 {
		t.Fatalf("zero limits must not set rlimits: %+v", l)
	}
}

func TestBuildEnvAddsPath(t *testing.T) {
	env := buildEnv([]string{"PYTHONHASHSEED=0"})
	if len(env) != 2 || env[1] != defaultPath {
		t.Fatalf("unexpected env: %v", env)
	}
	custom := []string{"PATH=/opt/python/bin"}
	if env := buildEnv(custom); len(env) != 1 || env[0] != custom[0] {
		t.Fatalf("custom PATH must be kept: %v", env)
	}
}

func TestSeccompProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "python.json")
	profile := `{"defaultAction":"SCMP_ACT_ERRNO","syscalls":[{"names":["read","write"],"action":"SCMP_ACT_ALLOW"}]}`
	if err := os.WriteFile(path, []byte(profile), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	cfg, err := loadSeccompConfig(path)
	if err != nil {
		t.Fatalf("load profile: %v", err)
	}
	if len(cfg.Syscalls) != 1 || len(cfg.Syscalls[0].Names) != 2 {
		t.Fatalf("unexpected profile: %+v", cfg)
	}

	action, err := parseSeccompAction(cfg.DefaultAction)
	if err != nil || action.GetReturnCode() != int16(unix.EPERM) {
		t.Fatalf("unexpected default action %v: %v", action, err)
	}
	if action, err := parseSeccompAction("scmp_act_kill"); err != nil || action != seccomp.ActKillProcess {
		t.Fatalf("unexpected kill action %v: %v", action, err)
	}
	if _, err := parseSeccompAction("SCMP_ACT_TRACE"); err == nil {
		t.Fatalf("expected unsupported action error")
	}
}
