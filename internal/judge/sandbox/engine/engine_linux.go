//go:build linux

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"offlinejudge/internal/judge/sandbox/result"
	"offlinejudge/internal/judge/sandbox/security"
	"offlinejudge/internal/judge/sandbox/spec"
	"offlinejudge/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	defaultStderrMaxBytes int64 = 64 * 1024
	waitDelay                   = 2 * time.Second
)

// nsMode is how interpreters are separated from the judge.
type nsMode int

const (
	nsNone nsMode = iota
	// nsPID creates PID and mount namespaces without a user namespace.
	// Only root can do this.
	nsPID
	nsUser
)

type linuxEngine struct {
	cfg       Config
	ns        nsMode
	resolver  ProfileResolver
	registry  map[string]map[*linuxProcess]struct{}
	registryM sync.Mutex
}

// NewEngine creates a Linux sandbox engine. Unless namespaces are disabled it
// checks that the host can create them and fails with
// ErrIsolationUnavailable otherwise.
func NewEngine(cfg Config, resolver ProfileResolver) (Engine, error) {
	if resolver == nil {
		return nil, fmt.Errorf("profile resolver is required")
	}
	if cfg.StderrMaxBytes <= 0 {
		cfg.StderrMaxBytes = defaultStderrMaxBytes
	}
	if cfg.EnableCgroup && cfg.CgroupRoot == "" {
		return nil, fmt.Errorf("cgroup root is required when cgroups are enabled")
	}
	ns := nsNone
	if cfg.DisableNamespaces {
		logger.Error(context.Background(), "sandbox namespaces disabled, submissions share the judge pid namespace and can signal it",
			zap.Bool("cgroup", cfg.EnableCgroup),
		)
	} else {
		mode, err := detectNamespaces()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIsolationUnavailable, err)
		}
		ns = mode
	}
	return &linuxEngine{
		cfg:      cfg,
		ns:       ns,
		resolver: resolver,
		registry: make(map[string]map[*linuxProcess]struct{}),
	}, nil
}

// detectNamespaces starts a trivial process the way interpreters are started
// and returns the first mode the host accepts.
func detectNamespaces() (nsMode, error) {
	bin, err := exec.LookPath("true")
	if err != nil {
		logger.Warn(context.Background(), "cannot check namespace support, assuming user namespaces", zap.Error(err))
		return nsUser, nil
	}
	try := func(mode nsMode) error {
		cmd := exec.Command(bin)
		cmd.SysProcAttr = buildSysProcAttr(security.IsolationProfile{}, mode)
		return cmd.Run()
	}
	userErr := try(nsUser)
	if userErr == nil {
		return nsUser, nil
	}
	if os.Geteuid() == 0 {
		if err := try(nsPID); err == nil {
			logger.Warn(context.Background(), "user namespaces unavailable, interpreters keep root uid", zap.Error(userErr))
			return nsPID, nil
		}
	}
	return nsNone, fmt.Errorf("create namespaces: %w", userErr)
}

func (e *linuxEngine) Start(ctx context.Context, ps spec.ProcessSpec) (Process, error) {
	if err := validateProcessSpec(ps); err != nil {
		return nil, err
	}

	isoProfile, err := e.resolver.Resolve(ps.Profile)
	if err != nil {
		return nil, fmt.Errorf("resolve profile: %w", err)
	}
	isoProfile = isoProfile.WithSeccompDir(e.cfg.SeccompDir)

	proc := &linuxProcess{
		engine: e,
		runID:  ps.RunID,
		stderr: &limitedBuffer{max: e.cfg.StderrMaxBytes},
	}
	if e.cfg.EnableCgroup {
		proc.cgroup, err = newRunCgroup(e.cfg.CgroupRoot, ps.RunID)
		if err != nil {
			return nil, err
		}
		if err := proc.cgroup.limit(ps.Limits); err != nil {
			proc.cgroup.remove()
			return nil, fmt.Errorf("apply cgroup limits: %w", err)
		}
	}

	cmd, initWriter, err := e.buildCmd(ps, isoProfile)
	if err != nil {
		proc.cgroup.remove()
		return nil, err
	}
	cmd.Stderr = proc.stderr
	cmd.WaitDelay = waitDelay
	proc.cmd = cmd

	if proc.stdin, err = cmd.StdinPipe(); err != nil {
		proc.cgroup.remove()
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	if proc.stdout, err = cmd.StdoutPipe(); err != nil {
		proc.cgroup.remove()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	proc.start = time.Now()
	if err := cmd.Start(); err != nil {
		closeInit(cmd, initWriter)
		proc.cgroup.remove()
		return nil, fmt.Errorf("start interpreter: %w", err)
	}
	if initWriter != nil {
		closeInit(cmd, nil)
		go writeInitRequest(initWriter, InitRequest{
			Spec:          ps,
			Isolation:     isoProfile,
			EnableSeccomp: e.cfg.EnableSeccomp,
			EnableNs:      e.ns != nsNone,
		})
	}

	if err := proc.cgroup.add(cmd.Process.Pid); err != nil {
		logger.Warn(ctx, "add process to cgroup failed", zap.String("cgroup", string(proc.cgroup)), zap.Error(err))
	}
	e.register(proc)
	logger.Debug(ctx, "sandbox process started",
		zap.Int("pid", cmd.Process.Pid),
		zap.Strings("cmd", ps.Cmd),
		zap.Bool("helper", initWriter != nil),
	)
	return proc, nil
}

// buildCmd execs the interpreter directly, or the helper with the init
// request pipe on InitFD.
func (e *linuxEngine) buildCmd(ps spec.ProcessSpec, iso security.IsolationProfile) (*exec.Cmd, *os.File, error) {
	if e.cfg.HelperPath == "" {
		if iso.NeedsHelper(len(ps.BindMounts) > 0) {
			return nil, nil, fmt.Errorf("rootfs and bind mounts require the sandbox helper")
		}
		cmd := exec.Command(ps.Cmd[0], ps.Cmd[1:]...)
		cmd.Dir = ps.WorkDir
		cmd.Env = ps.Env
		cmd.SysProcAttr = buildSysProcAttr(iso, e.ns)
		return cmd, nil, nil
	}

	reader, writer, err := os.Pipe()
	if err != nil {
		return nil, nil, fmt.Errorf("init pipe: %w", err)
	}
	cmd := exec.Command(e.cfg.HelperPath)
	cmd.Env = []string{}
	cmd.ExtraFiles = []*os.File{reader}
	cmd.SysProcAttr = buildSysProcAttr(iso, e.ns)
	return cmd, writer, nil
}

func closeInit(cmd *exec.Cmd, writer *os.File) {
	for _, f := range cmd.ExtraFiles {
		_ = f.Close()
	}
	if writer != nil {
		_ = writer.Close()
	}
}

func writeInitRequest(w *os.File, req InitRequest) {
	defer w.Close()
	_ = json.NewEncoder(w).Encode(req)
}

func (e *linuxEngine) KillRun(ctx context.Context, runID string) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	for _, proc := range e.snapshot(runID) {
		proc.Kill()
	}
	return nil
}

func (e *linuxEngine) register(proc *linuxProcess) {
	e.registryM.Lock()
	defer e.registryM.Unlock()
	procs := e.registry[proc.runID]
	if procs == nil {
		procs = make(map[*linuxProcess]struct{})
		e.registry[proc.runID] = procs
	}
	procs[proc] = struct{}{}
}

func (e *linuxEngine) unregister(proc *linuxProcess) {
	e.registryM.Lock()
	defer e.registryM.Unlock()
	procs := e.registry[proc.runID]
	delete(procs, proc)
	if len(procs) == 0 {
		delete(e.registry, proc.runID)
	}
}

func (e *linuxEngine) snapshot(runID string) []*linuxProcess {
	e.registryM.Lock()
	defer e.registryM.Unlock()
	out := make([]*linuxProcess, 0, len(e.registry[runID]))
	for proc := range e.registry[runID] {
		out = append(out, proc)
	}
	return out
}

type linuxProcess struct {
	engine *linuxEngine
	runID  string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr *limitedBuffer
	cgroup runCgroup
	start  time.Time

	killOnce sync.Once
	waitOnce sync.Once
	status   result.ExitStatus
}

func (p *linuxProcess) Pid() int { return p.cmd.Process.Pid }

func (p *linuxProcess) Stdin() io.WriteCloser { return p.stdin }

func (p *linuxProcess) Stdout() io.ReadCloser { return p.stdout }

func (p *linuxProcess) Kill() {
	p.killOnce.Do(func() {
		killProcessGroup(p.cmd.Process.Pid)
		p.cgroup.kill()
	})
}

func (p *linuxProcess) Wait() result.ExitStatus {
	p.waitOnce.Do(func() {
		waitErr := p.cmd.Wait()
		// In a PID namespace the interpreter is init and the kernel kills
		// every descendant when it exits. Without one, the group kill reaches
		// children still in the group and cgroup.kill the ones that called
		// setsid.
		killProcessGroup(p.cmd.Process.Pid)
		p.cgroup.kill()
		state := p.cmd.ProcessState
		p.status = result.ExitStatus{
			ExitCode:   exitCodeFromErr(waitErr, state),
			Signal:     signalName(state),
			CPUTimeMs:  cpuTimeMs(state),
			WallTimeMs: time.Since(p.start).Milliseconds(),
			MemoryKB:   p.cgroup.peakMemoryKB(state),
			OomKilled:  p.cgroup.oomKilled(),
			Stderr:     p.stderr.String(),
		}
		p.cgroup.remove()
		p.engine.unregister(p)
	})
	return p.status
}

func exitCodeFromErr(err error, state *os.ProcessState) int {
	if state != nil {
		return state.ExitCode()
	}
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func signalName(state *os.ProcessState) string {
	if state == nil {
		return ""
	}
	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return ""
	}
	return signalNames[ws.Signal()]
}

var signalNames = map[syscall.Signal]string{
	syscall.SIGABRT: "SIGABRT",
	syscall.SIGBUS:  "SIGBUS",
	syscall.SIGFPE:  "SIGFPE",
	syscall.SIGILL:  "SIGILL",
	syscall.SIGKILL: "SIGKILL",
	syscall.SIGSEGV: "SIGSEGV",
	syscall.SIGSYS:  "SIGSYS",
	syscall.SIGTERM: "SIGTERM",
	syscall.SIGXCPU: "SIGXCPU",
	syscall.SIGXFSZ: "SIGXFSZ",
}

func cpuTimeMs(state *os.ProcessState) int64 {
	if state == nil {
		return 0
	}
	return (state.UserTime() + state.SystemTime()).Milliseconds()
}

func killProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}

func validateProcessSpec(ps spec.ProcessSpec) error {
	if ps.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if ps.WorkDir == "" {
		return fmt.Errorf("work dir is required")
	}
	if len(ps.Cmd) == 0 {
		return fmt.Errorf("command is required")
	}
	if ps.Profile == "" {
		return fmt.Errorf("profile is required")
	}
	return nil
}

func buildSysProcAttr(profile security.IsolationProfile, mode nsMode) *syscall.SysProcAttr {
	attr := &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
	if mode == nsNone {
		return attr
	}

	cloneFlags := uintptr(syscall.CLONE_NEWNS | syscall.CLONE_NEWPID | syscall.CLONE_NEWUTS | syscall.CLONE_NEWIPC)
	if profile.DisableNetwork {
		cloneFlags |= syscall.CLONE_NEWNET
	}
	attr.Cloneflags = cloneFlags
	if mode != nsUser {
		return attr
	}

	attr.Cloneflags |= syscall.CLONE_NEWUSER
	attr.GidMappingsEnableSetgroups = false
	attr.UidMappings = []syscall.SysProcIDMap{{
		ContainerID: 0,
		HostID:      os.Getuid(),
		Size:        1,
	}}
	attr.GidMappings = []syscall.SysProcIDMap{{
		ContainerID: 0,
		HostID:      os.Getgid(),
		Size:        1,
	}}
	return attr
}
