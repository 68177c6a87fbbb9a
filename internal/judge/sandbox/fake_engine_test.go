package sandbox

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"offlinejudge/internal/judge/sandbox/engine"
	"offlinejudge/internal/judge/sandbox/harness"
	"offlinejudge/internal/judge/sandbox/result"
	"offlinejudge/internal/judge/sandbox/spec"
)

// fakeReply tells the fake interpreter how to answer one request.
type fakeReply struct {
	resp harness.Response
	hang bool
	die  bool
}

type fakeHandler func(ps spec.ProcessSpec, req harness.Request) fakeReply

// fakeEngine starts in-memory "interpreters" that answer protocol requests
// through handler.
type fakeEngine struct {
	mu       sync.Mutex
	handler  fakeHandler
	starts   int
	startErr func(n int) error
	procs    []*fakeProcess
	specs    []spec.ProcessSpec
	swept    []string
}

func (e *fakeEngine) Start(_ context.Context, ps spec.ProcessSpec) (engine.Process, error) {
	e.mu.Lock()
	e.starts++
	n := e.starts
	e.specs = append(e.specs, ps)
	e.mu.Unlock()
	if e.startErr != nil {
		if err := e.startErr(n); err != nil {
			return nil, err
		}
	}
	p := newFakeProcess(ps, e.handler)
	e.mu.Lock()
	e.procs = append(e.procs, p)
	e.mu.Unlock()
	return p, nil
}

func (e *fakeEngine) KillRun(_ context.Context, runID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.swept = append(e.swept, runID)
	for _, p := range e.procs {
		if p.spec.RunID == runID {
			p.Kill()
		}
	}
	return nil
}

func (e *fakeEngine) startCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.starts
}

type fakeProcess struct {
	spec    spec.ProcessSpec
	stdinR  *io.PipeReader
	stdinW  *io.PipeWriter
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter

	killOnce sync.Once
	killed   chan struct{}
	exitOnce sync.Once
	done     chan struct{}
	status   result.ExitStatus
}

func newFakeProcess(ps spec.ProcessSpec, handler fakeHandler) *fakeProcess {
	p := &fakeProcess{spec: ps, killed: make(chan struct{}), done: make(chan struct{})}
	p.stdinR, p.stdinW = io.Pipe()
	p.stdoutR, p.stdoutW = io.Pipe()
	go p.serve(handler)
	return p
}

func (p *fakeProcess) serve(handler fakeHandler) {
	reader := bufio.NewReader(p.stdinR)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			p.exit(result.ExitStatus{ExitCode: 0})
			return
		}
		var req harness.Request
		if err := json.Unmarshal(line, &req); err != nil {
			p.exit(result.ExitStatus{ExitCode: 2, Stderr: "bad request"})
			return
		}
		reply := handler(p.spec, req)
		switch {
		case reply.hang:
			<-p.killed
			return
		case reply.die:
			p.exit(result.ExitStatus{ExitCode: 1, Stderr: "Fatal Python error: Segmentation fault"})
			return
		}
		data, _ := json.Marshal(reply.resp)
		if _, err := p.stdoutW.Write(append(data, '\n')); err != nil {
			return
		}
	}
}

func (p *fakeProcess) exit(status result.ExitStatus) {
	p.exitOnce.Do(func() {
		p.status = status
		_ = p.stdoutW.CloseWithError(io.EOF)
		_ = p.stdinR.CloseWithError(errors.New("process exited"))
		close(p.done)
	})
}

func (p *fakeProcess) Pid() int { return 1 }

func (p *fakeProcess) Stdin() io.WriteCloser { return p.stdinW }

func (p *fakeProcess) Stdout() io.ReadCloser { return p.stdoutR }

func (p *fakeProcess) Kill() {
	p.killOnce.Do(func() {
		close(p.killed)
		p.exit(result.ExitStatus{ExitCode: -1, Signal: "SIGKILL"})
	})
}

func (p *fakeProcess) Wait() result.ExitStatus {
	<-p.done
	return p.status
}
