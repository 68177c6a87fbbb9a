//go:build !linux

package engine

import (
	"context"

	"offlinejudge/internal/judge/sandbox/spec"
	appErr "offlinejudge/pkg/errors"
)

// unsupportedEngine lets the service start on other platforms for the
// question endpoints; every run fails with a system error.
type unsupportedEngine struct{}

func NewEngine(Config, ProfileResolver) (Engine, error) {
	return unsupportedEngine{}, nil
}

func (unsupportedEngine) Start(context.Context, spec.ProcessSpec) (Process, error) {
	return nil, appErr.New(appErr.JudgeSystemError).WithMessage("sandboxed runs need linux")
}

func (unsupportedEngine) KillRun(context.Context, string) error { return nil }
