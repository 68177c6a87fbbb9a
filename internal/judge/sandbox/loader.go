package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"offlinejudge/internal/judge/sandbox/engine"
	"offlinejudge/internal/judge/sandbox/harness"
	"offlinejudge/internal/judge/sandbox/profile"
	"offlinejudge/internal/judge/sandbox/spec"
	appErr "offlinejudge/pkg/errors"
	"offlinejudge/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	containerWorkDir        = "/work"
	defaultCaseTimeout      = 2 * time.Second
	defaultLoadTimeout      = 10 * time.Second
	defaultRecursionLimit   = 10000
	defaultMaxResponseBytes = 8 << 20
	defaultSourceFile       = "solution.py"
)

// LoaderConfig tunes how submissions are materialized and started.
type LoaderConfig struct {
	// WorkRoot holds per-run workspaces; empty means the system temp dir.
	WorkRoot string
	// LoadTimeout bounds top-level submission code and entry point resolution.
	LoadTimeout      time.Duration
	RecursionLimit   int
	MaxResponseBytes int
	// Limits override the task profile defaults. WallTimeMs is the per-case budget.
	Limits spec.ResourceLimit
}

// Loader turns source text into a LoadedUnit backed by a live interpreter.
type Loader struct {
	engine      engine.Engine
	lang        profile.LanguageSpec
	profile     profile.TaskProfile
	cfg         LoaderConfig
	limits      spec.ResourceLimit
	caseTimeout time.Duration
}

// NewLoader validates the language and profile and computes effective limits.
func NewLoader(eng engine.Engine, lang profile.LanguageSpec, prof profile.TaskProfile, cfg LoaderConfig) (*Loader, error) {
	if eng == nil {
		return nil, fmt.Errorf("sandbox engine is required")
	}
	if lang.ID == "" || lang.RunCmdTpl == "" {
		return nil, appErr.ValidationError("language", "id and run command are required")
	}
	if prof.LanguageID != lang.ID {
		return nil, appErr.ValidationError("profile", fmt.Sprintf("profile %s does not belong to language %s", prof.Name(), lang.ID))
	}
	if lang.SourceFile == "" {
		lang.SourceFile = defaultSourceFile
	}
	if cfg.WorkRoot == "" {
		cfg.WorkRoot = os.TempDir()
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = defaultLoadTimeout
	}
	if cfg.RecursionLimit <= 0 {
		cfg.RecursionLimit = defaultRecursionLimit
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = defaultMaxResponseBytes
	}
	if err := os.MkdirAll(cfg.WorkRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create work root: %w", err)
	}

	limits := prof.DefaultLimits.Merge(cfg.Limits).Scale(lang.TimeMultiplier, lang.MemoryMultiplier)
	caseTimeout := time.Duration(limits.WallTimeMs) * time.Millisecond
	if caseTimeout <= 0 {
		caseTimeout = defaultCaseTimeout
		limits.WallTimeMs = caseTimeout.Milliseconds()
	}
	return &Loader{
		engine:      eng,
		lang:        lang,
		profile:     prof,
		cfg:         cfg,
		limits:      limits,
		caseTimeout: caseTimeout,
	}, nil
}

// LanguageID returns the language this loader starts.
func (l *Loader) LanguageID() string { return l.lang.ID }

// CaseTimeout returns the wall-clock budget of one call.
func (l *Loader) CaseTimeout() time.Duration { return l.caseTimeout }

// Load materializes code in a fresh workspace, starts an interpreter and runs
// the submission's top-level code. cases sizes the process CPU budget.
// A failure to load is returned as appErr.CompilationError; the workspace is
// removed on every failure path.
func (l *Loader) Load(ctx context.Context, runID, code string, cases int) (*LoadedUnit, error) {
	if runID == "" {
		runID = uuid.NewString()
	}
	workDir, err := os.MkdirTemp(l.cfg.WorkRoot, "run-"+runID+"-*")
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.JudgeSystemError, "create workspace failed")
	}
	unit := &LoadedUnit{
		loader:  l,
		runID:   runID,
		workDir: workDir,
		code:    code,
		limits:  l.processLimits(cases),
	}
	if err := unit.spawn(ctx); err != nil {
		unit.Close()
		return nil, err
	}
	logger.Debug(ctx, "submission loaded", zap.String("workdir", workDir))
	return unit, nil
}

// processLimits stretches the CPU budget over every case plus loading; the
// per-case wall clock remains the real bound.
func (l *Loader) processLimits(cases int) spec.ResourceLimit {
	limits := l.limits
	if limits.CPUTimeMs <= 0 {
		limits.CPUTimeMs = limits.WallTimeMs*int64(cases+1) + l.cfg.LoadTimeout.Milliseconds()
	}
	return limits
}

func (l *Loader) processSpec(runID, workDir string, limits spec.ResourceLimit) (spec.ProcessSpec, error) {
	procDir := workDir
	var mounts []spec.MountSpec
	if l.profile.RootFS != "" {
		procDir = containerWorkDir
		mounts = []spec.MountSpec{{Source: workDir, Target: containerWorkDir}}
	}
	cmd, err := buildCommand(l.lang.RunCmdTpl, filepath.Join(procDir, harness.FileName), procDir)
	if err != nil {
		return spec.ProcessSpec{}, err
	}
	return spec.ProcessSpec{
		RunID:      runID,
		WorkDir:    procDir,
		Cmd:        cmd,
		Env:        l.lang.Env,
		BindMounts: mounts,
		Profile:    l.profile.Name(),
		Limits:     limits,
	}, nil
}

func (l *Loader) loadRequest(limits spec.ResourceLimit) harness.Request {
	cpuSeconds := (limits.CPUTimeMs + 999) / 1000
	return harness.LoadRequest(
		l.lang.SourceFile,
		l.cfg.RecursionLimit,
		limits.MemoryMB<<20,
		cpuSeconds,
		limits.OutputMB<<20,
		limits.PIDs,
	)
}

// LoadedUnit is one loaded submission: a workspace, a live interpreter
// session and, once resolved, its entry point. It belongs to a single run.
type LoadedUnit struct {
	loader  *Loader
	runID   string
	workDir string
	code    string
	limits  spec.ResourceLimit

	session *session
	entry   *EntryPoint
	// entryName is kept so a respawned interpreter can re-resolve.
	entryName string
	// unavailable is set once a replacement interpreter could not be started.
	unavailable error
	respawns    int
	closed      bool
}

// WorkDir returns the host path of the run workspace.
func (u *LoadedUnit) WorkDir() string { return u.workDir }

// Respawns counts interpreter restarts after timeouts or crashes.
func (u *LoadedUnit) Respawns() int { return u.respawns }

// spawn (re)materializes the workspace files, starts the interpreter and
// executes the submission's top-level code.
func (u *LoadedUnit) spawn(ctx context.Context) error {
	l := u.loader
	if err := u.materialize(); err != nil {
		return appErr.Wrapf(err, appErr.JudgeSystemError, "materialize submission failed")
	}
	ps, err := l.processSpec(u.runID, u.workDir, u.limits)
	if err != nil {
		return appErr.Wrap(err, appErr.JudgeSystemError)
	}
	proc, err := l.engine.Start(ctx, ps)
	if err != nil {
		return appErr.Wrapf(err, appErr.JudgeSystemError, "start interpreter failed: %v", err)
	}
	s := newSession(proc, l.cfg.MaxResponseBytes)

	resp, err := s.roundTrip(ctx, l.loadRequest(u.limits), l.cfg.LoadTimeout)
	if err != nil {
		s.close()
		return loadTransportError(ctx, err, l.cfg.LoadTimeout)
	}
	if !resp.OK {
		s.close()
		if resp.Fault == harness.FaultLoad {
			return appErr.New(appErr.CompilationError).WithMessage(resp.Error)
		}
		return appErr.Newf(appErr.JudgeSystemError, "unexpected load failure: %s", resp.Error)
	}
	u.session = s
	return nil
}

func (u *LoadedUnit) materialize() error {
	if err := os.WriteFile(filepath.Join(u.workDir, u.loader.lang.SourceFile), []byte(u.code), 0o644); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(u.workDir, harness.FileName), harness.Script(), 0o644)
}

func loadTransportError(ctx context.Context, err error, timeout time.Duration) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return contextError(ctxErr)
	}
	var exitErr *exitError
	switch {
	case errors.Is(err, errTimeout):
		return appErr.Newf(appErr.CompilationError, "Load Error: top-level code did not finish within %s", timeout)
	case errors.As(err, &exitErr):
		return appErr.Newf(appErr.CompilationError, "Load Error: %s", exitErr.Error())
	default:
		return appErr.Wrapf(err, appErr.JudgeSystemError, "load submission failed: %v", err)
	}
}

// discardSession kills the current interpreter after a timeout or crash.
func (u *LoadedUnit) discardSession() {
	if u.session == nil {
		return
	}
	u.session.close()
	u.session = nil
}

// Close releases the interpreter and removes the workspace. It is safe to
// call more than once.
func (u *LoadedUnit) Close() error {
	if u.closed {
		return nil
	}
	u.closed = true
	u.discardSession()
	// Sweep anything the run started that is still registered, such as an
	// interpreter whose start raced a cancellation.
	if err := u.loader.engine.KillRun(context.Background(), u.runID); err != nil {
		logger.Warn(context.Background(), "kill run processes failed", zap.String("run_id", u.runID), zap.Error(err))
	}
	return os.RemoveAll(u.workDir)
}
