//go:build linux

// Command sandbox-init prepares the isolated environment for one interpreter
// and execs it. The engine sends the init request on fd 3; stdin and stdout
// are inherited untouched because they carry the harness protocol.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"offlinejudge/internal/judge/sandbox/security"
	"offlinejudge/internal/judge/sandbox/spec"

	"golang.org/x/sys/unix"
)

const initFD = 3

const defaultPath = "PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

// initRequest mirrors engine.InitRequest.
type initRequest struct {
	Spec          spec.ProcessSpec
	Isolation     security.IsolationProfile
	EnableSeccomp bool
	EnableNs      bool
}

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "sandbox-init:", err.Error())
		os.Exit(1)
	}
}

func run() error {
	initFile := os.NewFile(initFD, "init")
	if initFile == nil {
		return fmt.Errorf("init descriptor %d is not open", initFD)
	}
	req, err := decodeRequest(initFile)
	_ = initFile.Close()
	if err != nil {
		return err
	}
	if err := validateRequest(req); err != nil {
		return err
	}

	if req.EnableNs {
		if err := prepareFilesystem(req.Isolation.RootFS, req.Spec.BindMounts); err != nil {
			return err
		}
	}

	if err := os.Chdir(req.Spec.WorkDir); err != nil {
		return fmt.Errorf("chdir workdir: %w", err)
	}
	// Resolve before the filter is loaded; it may deny the lookups.
	env := buildEnv(req.Spec.Env)
	argv0, err := lookPath(req.Spec.Cmd[0], env)
	if err != nil {
		return fmt.Errorf("resolve command: %w", err)
	}
	if err := applyRlimits(req.Spec.Limits); err != nil {
		return err
	}
	if req.EnableSeccomp && req.Isolation.SeccompProfile != "" {
		if err := applySeccomp(req.Isolation.SeccompProfile); err != nil {
			return err
		}
	}
	return unix.Exec(argv0, req.Spec.Cmd, env)
}

func decodeRequest(r io.Reader) (initRequest, error) {
	var req initRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return initRequest{}, fmt.Errorf("decode init request: %w", err)
	}
	return req, nil
}

func validateRequest(req initRequest) error {
	if len(req.Spec.Cmd) == 0 {
		return fmt.Errorf("command is required")
	}
	if req.Spec.WorkDir == "" {
		return fmt.Errorf("work dir is required")
	}
	if !req.EnableNs && (req.Isolation.RootFS != "" || len(req.Spec.BindMounts) > 0) {
		return fmt.Errorf("rootfs and bind mounts need namespaces")
	}
	for _, m := range req.Spec.BindMounts {
		if m.Source == "" || m.Target == "" {
			return fmt.Errorf("invalid mount spec %+v", m)
		}
	}
	return nil
}

func buildEnv(env []string) []string {
	for _, kv := range env {
		if strings.HasPrefix(kv, "PATH=") {
			return env
		}
	}
	return append(append([]string{}, env...), defaultPath)
}

// lookPath resolves name against the PATH of the interpreter environment
// rather than the helper's empty one.
func lookPath(name string, env []string) (string, error) {
	if strings.Contains(name, "/") {
		return name, nil
	}
	for _, kv := range env {
		if path, ok := strings.CutPrefix(kv, "PATH="); ok {
			if err := os.Setenv("PATH", path); err != nil {
				return "", err
			}
		}
	}
	return exec.LookPath(name)
}
