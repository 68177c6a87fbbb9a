package sandbox

import (
	"context"
	"regexp"
	"strings"

	"offlinejudge/internal/judge/sandbox/harness"
	appErr "offlinejudge/pkg/errors"
)

// SolutionClass is the container class searched before top-level functions.
const SolutionClass = "Solution"

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// EntryPoint describes the resolved callable.
type EntryPoint struct {
	// QualifiedName is "Solution.name" or "name".
	QualifiedName string
	Params        []harness.Param
	VarArgs       bool
	VarKw         bool
}

// positionalArity returns how many positional arguments the callable
// requires and accepts; max is -1 when *args is present.
func (e EntryPoint) positionalArity() (min, max int) {
	for _, p := range e.Params {
		if !p.Positional {
			continue
		}
		max++
		if p.Required {
			min++
		}
	}
	if e.VarArgs {
		max = -1
	}
	return min, max
}

func (e EntryPoint) param(name string) (harness.Param, bool) {
	for _, p := range e.Params {
		if p.Name == name {
			return p, true
		}
	}
	return harness.Param{}, false
}

func (e EntryPoint) names() []string {
	out := make([]string, 0, len(e.Params))
	for _, p := range e.Params {
		out = append(out, p.Name)
	}
	return out
}

// Resolve finds the entry point named name: a method of class Solution when
// the submission defines one, otherwise a top-level function. Only the exact
// name matches. A missing entry point is appErr.EntryPointNotFound; an
// exception raised while instantiating Solution is appErr.CompilationError.
func (u *LoadedUnit) Resolve(ctx context.Context, name string) (EntryPoint, error) {
	if !identifierPattern.MatchString(name) {
		return EntryPoint{}, appErr.Newf(appErr.TestCaseInvalid, "function name %q is not a valid identifier", name)
	}
	if u.session == nil {
		return EntryPoint{}, appErr.New(appErr.JudgeSystemError).WithMessage("submission is not loaded")
	}
	resp, err := u.session.roundTrip(ctx, harness.ResolveRequest(name, SolutionClass), u.loader.cfg.LoadTimeout)
	if err != nil {
		u.discardSession()
		return EntryPoint{}, loadTransportError(ctx, err, u.loader.cfg.LoadTimeout)
	}
	if !resp.OK {
		switch resp.Fault {
		case harness.FaultEntryPoint:
			return EntryPoint{}, appErr.New(appErr.EntryPointNotFound).WithMessage(resp.Error).WithDetail("expected", name)
		case harness.FaultLoad:
			return EntryPoint{}, appErr.New(appErr.CompilationError).WithMessage(resp.Error)
		default:
			return EntryPoint{}, appErr.Newf(appErr.JudgeSystemError, "resolve entry point: %s", resp.Error)
		}
	}
	entry := EntryPoint{
		QualifiedName: resp.QualifiedName,
		Params:        resp.Params,
		VarArgs:       resp.VarArgs,
		VarKw:         resp.VarKw,
	}
	u.entry = &entry
	u.entryName = name
	return entry, nil
}

// String renders the signature, e.g. "Solution.twoSum(nums, target)".
func (e EntryPoint) String() string {
	names := e.names()
	if e.VarArgs {
		names = append(names, "*args")
	}
	if e.VarKw {
		names = append(names, "**kwargs")
	}
	return e.QualifiedName + "(" + strings.Join(names, ", ") + ")"
}
