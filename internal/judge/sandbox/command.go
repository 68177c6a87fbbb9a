package sandbox

import (
	"strings"

	appErr "offlinejudge/pkg/errors"

	"github.com/google/shlex"
)

// buildCommand splits a language command template into argv and fills the
// {harness} and {workdir} placeholders. Substitution happens after splitting,
// so paths containing spaces or quotes stay single arguments.
func buildCommand(tpl, harnessPath, workDir string) ([]string, error) {
	argv, err := shlex.Split(tpl)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidParams, "parse command template %q", tpl)
	}
	if len(argv) == 0 {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("command template is required")
	}
	fill := strings.NewReplacer("{harness}", harnessPath, "{workdir}", workDir)
	for i, arg := range argv {
		argv[i] = fill.Replace(arg)
	}
	return argv, nil
}
