package sandbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"offlinejudge/internal/judge/comparator"
	"offlinejudge/internal/judge/model"
	"offlinejudge/internal/judge/sandbox/harness"
	"offlinejudge/internal/judge/sandbox/profile"
	"offlinejudge/internal/judge/sandbox/spec"
	"offlinejudge/internal/judge/value"
	appErr "offlinejudge/pkg/errors"
)

const addSource = "class Solution:\n    def add(self, a, b):\n        return a + b\n"

var addParams = []harness.Param{
	{Name: "a", Positional: true, Keyword: true, Required: true},
	{Name: "b", Positional: true, Keyword: true, Required: true},
}

// addHandler answers like an interpreter running addSource, with magic
// inputs: a == -1 raises, a == 99 loops forever, a == 50 crashes.
func addHandler(t *testing.T) fakeHandler {
	return func(ps spec.ProcessSpec, req harness.Request) fakeReply {
		switch req.Op {
		case harness.OpLoad:
			data, err := os.ReadFile(filepath.Join(ps.WorkDir, req.SourceFile))
			if err != nil || string(data) != addSource {
				t.Errorf("submission not materialized: %q %v", data, err)
			}
			return fakeReply{resp: harness.Response{OK: true}}
		case harness.OpResolve:
			if req.Name != "add" {
				return fakeReply{resp: harness.Response{Fault: harness.FaultEntryPoint, Error: `entry point "` + req.Name + `" not found`}}
			}
			return fakeReply{resp: harness.Response{OK: true, QualifiedName: "Solution.add", Params: addParams}}
		case harness.OpCall:
			a, b := callArgs(req)
			switch a {
			case -1:
				return fakeReply{resp: harness.Response{Fault: harness.FaultRuntime, Error: "Runtime Error: ValueError: negative", ElapsedNs: 1000}}
			case 99:
				return fakeReply{hang: true}
			case 50:
				return fakeReply{die: true}
			}
			if a == 2 && b == 2 {
				return fakeReply{resp: harness.Response{OK: true, Value: value.Int(4), ElapsedNs: 2000}}
			}
			return fakeReply{resp: harness.Response{OK: true, Value: value.Int(a + b), ElapsedNs: 3000}}
		}
		return fakeReply{resp: harness.Response{Fault: harness.FaultProtocol, Error: "unknown op"}}
	}
}

func callArgs(req harness.Request) (int64, int64) {
	var av, bv value.Value
	if req.Mode == "keyword" {
		av, _ = req.Kwargs.Get("a")
		bv, _ = req.Kwargs.Get("b")
	} else {
		av, bv = req.Args[0], req.Args[1]
	}
	return asInt(av), asInt(bv)
}

func asInt(v value.Value) int64 {
	f, _ := v.Float64()
	return int64(f)
}

func mustValue(t *testing.T, raw string) value.Value {
	t.Helper()
	v, err := value.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse %s: %v", raw, err)
	}
	return v
}

func addProblem(t *testing.T, inputs ...string) *model.Problem {
	t.Helper()
	p := &model.Problem{ID: "1", Title: "Add", FunctionName: "add"}
	for _, in := range inputs {
		parts := strings.SplitN(in, "=>", 2)
		p.TestCases = append(p.TestCases, model.TestCase{
			Input:  mustValue(t, parts[0]),
			Output: mustValue(t, parts[1]),
		})
	}
	return p
}

func newTestWorker(t *testing.T, eng *fakeEngine, wallMs int64) (*Worker, string) {
	t.Helper()
	root := t.TempDir()
	lang := profile.Python3()
	loader, err := NewLoader(eng, lang, profile.DefaultRunProfile(lang.ID), LoaderConfig{
		WorkRoot:    root,
		LoadTimeout: time.Second,
		Limits:      spec.ResourceLimit{WallTimeMs: wallMs},
	})
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}
	return NewWorker(loader, comparator.New(0), nil), root
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("workspace leaked: %v", entries)
	}
}

type recordingProgress struct {
	mu      sync.Mutex
	stages  []Stage
	results []int
}

func (r *recordingProgress) OnStage(_ context.Context, s Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, s)
}

func (r *recordingProgress) OnResult(_ context.Context, res model.ExecutionResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res.ID)
}

func TestWorkerRunsAllCasesWithFaultIsolation(t *testing.T) {
	eng := &fakeEngine{handler: addHandler(t)}
	w, root := newTestWorker(t, eng, 100)
	problem := addProblem(t,
		`{"a":1,"b":2}=>3`,
		`{"a":2,"b":2}=>5`,
		`{"a":-1,"b":0}=>0`,
		`{"a":99,"b":0}=>99`,
		`{"a":3,"b":4}=>7`,
		`{"a":50,"b":0}=>50`,
		`{"a":5,"b":5}=>10.0`,
	)
	progress := &recordingProgress{}

	rep, err := w.Run(context.Background(), RunRequest{RunID: "run-1", Problem: problem, Code: addSource, Progress: progress})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.TotalCount != 7 || rep.PassedCount != 3 || rep.AllPassed {
		t.Fatalf("unexpected counts: %+v", rep)
	}
	for i, res := range rep.Results {
		if res.ID != i+1 {
			t.Fatalf("results out of order: %+v", rep.Results)
		}
	}

	wrong := rep.Results[1]
	if wrong.Passed || wrong.Faulted() || wrong.Error != nil || wrong.Actual.String() != "4" {
		t.Fatalf("wrong answer must carry actual output: %+v", wrong)
	}
	raised := rep.Results[2]
	if raised.Fault != model.FaultRuntime || raised.Error == nil || *raised.Error != "Runtime Error: ValueError: negative" || !raised.Actual.IsNull() {
		t.Fatalf("unexpected runtime fault: %+v", raised)
	}
	hung := rep.Results[3]
	if hung.Fault != model.FaultTimeout || !strings.HasPrefix(*hung.Error, "Time Limit Exceeded") {
		t.Fatalf("unexpected timeout result: %+v", hung)
	}
	if !rep.Results[4].Passed {
		t.Fatalf("case after timeout must run in a fresh interpreter: %+v", rep.Results[4])
	}
	crashed := rep.Results[5]
	if crashed.Fault != model.FaultRuntime || !strings.Contains(*crashed.Error, "interpreter exited with code 1") {
		t.Fatalf("unexpected crash result: %+v", crashed)
	}
	if !rep.Results[6].Passed {
		t.Fatalf("numeric equality must accept 10 for 10.0: %+v", rep.Results[6])
	}

	if got := eng.startCount(); got != 3 {
		t.Fatalf("expected 3 interpreter starts, got %d", got)
	}
	wantStages := []Stage{StageLoading, StageResolving, StageExecuting, StageReporting, StageDone}
	if len(progress.stages) != len(wantStages) {
		t.Fatalf("unexpected stages: %v", progress.stages)
	}
	for i := range wantStages {
		if progress.stages[i] != wantStages[i] {
			t.Fatalf("unexpected stages: %v", progress.stages)
		}
	}
	if len(progress.results) != 7 {
		t.Fatalf("expected a progress event per case, got %v", progress.results)
	}
	if len(eng.swept) != 1 || eng.swept[0] != "run-1" {
		t.Fatalf("closing the unit must sweep the run's processes, got %v", eng.swept)
	}
	assertEmptyDir(t, root)
}

func TestWorkerTerminalFaults(t *testing.T) {
	cases := []struct {
		name    string
		handler func(t *testing.T) fakeHandler
		problem func(t *testing.T) *model.Problem
		code    appErr.ErrorCode
		message string
	}{
		{
			name: "load fault",
			handler: func(t *testing.T) fakeHandler {
				return func(ps spec.ProcessSpec, req harness.Request) fakeReply {
					return fakeReply{resp: harness.Response{Fault: harness.FaultLoad, Error: "Syntax Error: invalid syntax (solution.py, line 1)"}}
				}
			},
			problem: func(t *testing.T) *model.Problem { return addProblem(t, `{"a":1,"b":2}=>3`) },
			code:    appErr.CompilationError,
			message: "Syntax Error: invalid syntax (solution.py, line 1)",
		},
		{
			name:    "missing entry point",
			handler: addHandler,
			problem: func(t *testing.T) *model.Problem {
				p := addProblem(t, `{"a":1,"b":2}=>3`)
				p.FunctionName = "plus"
				return p
			},
			code:    appErr.EntryPointNotFound,
			message: `entry point "plus" not found`,
		},
		{
			name:    "input keys do not match",
			handler: addHandler,
			problem: func(t *testing.T) *model.Problem { return addProblem(t, `{"a":1,"b":2,"c":3}=>3`) },
			code:    appErr.TestCaseInvalid,
		},
		{
			name: "top-level code never finishes",
			handler: func(t *testing.T) fakeHandler {
				return func(ps spec.ProcessSpec, req harness.Request) fakeReply { return fakeReply{hang: true} }
			},
			problem: func(t *testing.T) *model.Problem { return addProblem(t, `{"a":1,"b":2}=>3`) },
			code:    appErr.CompilationError,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			eng := &fakeEngine{handler: tc.handler(t)}
			w, root := newTestWorker(t, eng, 100)
			rep, err := w.Run(context.Background(), RunRequest{Problem: tc.problem(t), Code: addSource})
			if rep != nil {
				t.Fatalf("terminal fault must not produce a report: %+v", rep)
			}
			if !appErr.Is(err, tc.code) {
				t.Fatalf("expected code %d, got %v", tc.code, err)
			}
			if tc.message != "" && err.Error() != tc.message {
				t.Fatalf("unexpected message %q", err.Error())
			}
			assertEmptyDir(t, root)
		})
	}
}

func TestWorkerRespawnFailureFaultsRemainingCases(t *testing.T) {
	eng := &fakeEngine{
		handler: addHandler(t),
		startErr: func(n int) error {
			if n > 1 {
				return errors.New("no more processes")
			}
			return nil
		},
	}
	w, root := newTestWorker(t, eng, 100)
	problem := addProblem(t, `{"a":99,"b":0}=>99`, `{"a":1,"b":1}=>2`, `{"a":2,"b":3}=>5`)

	rep, err := w.Run(context.Background(), RunRequest{Problem: problem, Code: addSource})
	if err != nil {
		t.Fatalf("run must complete: %v", err)
	}
	if rep.TotalCount != 3 || rep.PassedCount != 0 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	for _, res := range rep.Results[1:] {
		if res.Fault != model.FaultRuntime || !strings.Contains(*res.Error, "sandbox unavailable") {
			t.Fatalf("expected sandbox unavailable fault: %+v", res)
		}
	}
	if got := eng.startCount(); got != 2 {
		t.Fatalf("a failed respawn must not be retried, got %d starts", got)
	}
	assertEmptyDir(t, root)
}

func TestWorkerCancellation(t *testing.T) {
	eng := &fakeEngine{handler: addHandler(t)}
	w, root := newTestWorker(t, eng, 5000)
	problem := addProblem(t, `{"a":1,"b":2}=>3`, `{"a":99,"b":0}=>99`, `{"a":1,"b":1}=>2`)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	rep, err := w.Run(ctx, RunRequest{Problem: problem, Code: addSource})
	if rep != nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %+v %v", rep, err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("cancellation must interrupt the running case")
	}
	assertEmptyDir(t, root)
}

func TestWorkerPositionalBinding(t *testing.T) {
	var mu sync.Mutex
	var modes []string
	base := addHandler(t)
	eng := &fakeEngine{handler: func(ps spec.ProcessSpec, req harness.Request) fakeReply {
		if req.Op == harness.OpCall {
			mu.Lock()
			modes = append(modes, req.Mode)
			mu.Unlock()
		}
		return base(ps, req)
	}}
	w, _ := newTestWorker(t, eng, 100)
	problem := addProblem(t, `{"x":1,"y":2}=>3`, `[4, 5]=>9`)

	_, err := w.Run(context.Background(), RunRequest{Problem: problem, Code: addSource})
	if !appErr.Is(err, appErr.TestCaseInvalid) {
		t.Fatalf("mixed mapping and sequence inputs must be rejected, got %v", err)
	}

	problem = addProblem(t, `{"x":1,"y":2}=>3`, `{"p":4,"q":5}=>9`)
	rep, err := w.Run(context.Background(), RunRequest{Problem: problem, Code: addSource})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !rep.AllPassed {
		t.Fatalf("positional binding must pass inputs in stored order: %+v", rep)
	}
	for _, m := range modes {
		if m != "positional" {
			t.Fatalf("expected positional calls, got %v", modes)
		}
	}
}

func TestWorkerNodeResultsKeepOrder(t *testing.T) {
	eng := &fakeEngine{handler: func(ps spec.ProcessSpec, req harness.Request) fakeReply {
		switch req.Op {
		case harness.OpLoad:
			return fakeReply{resp: harness.Response{OK: true}}
		case harness.OpResolve:
			return fakeReply{resp: harness.Response{OK: true, QualifiedName: "reverseList", Params: []harness.Param{
				{Name: "head", Positional: true, Keyword: true, Required: true, Node: "list"},
			}}}
		}
		// Echoes the input list unchanged, as a linked list.
		head, _ := req.Kwargs.Get("head")
		return fakeReply{resp: harness.Response{OK: true, Value: head, Shape: harness.ShapeList}}
	}}
	w, _ := newTestWorker(t, eng, 100)
	problem := addProblem(t, `{"head":[1,2,3]}=>[3,2,1]`, `{"head":[7,7]}=>[7,7]`)
	problem.FunctionName = "reverseList"

	rep, err := w.Run(context.Background(), RunRequest{Problem: problem, Code: "def reverseList(head): return head\n"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Results[0].Passed {
		t.Fatalf("a linked list in the wrong order must fail: %+v", rep.Results[0])
	}
	if !rep.Results[1].Passed {
		t.Fatalf("an equal linked list must pass: %+v", rep.Results[1])
	}
}
