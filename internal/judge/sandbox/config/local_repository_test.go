package config

import (
	"context"
	"testing"

	"offlinejudge/internal/judge/sandbox/profile"
	appErr "offlinejudge/pkg/errors"
)

func TestLocalRepositoryLookups(t *testing.T) {
	allow := false
	repo := NewLocalRepository(
		[]profile.LanguageSpec{profile.Python3(), {Name: "nameless"}},
		[]profile.TaskProfile{
			{LanguageID: "python3", TaskType: profile.TaskTypeRun, SeccompProfile: "python3.json"},
			{LanguageID: "python3", TaskType: "debug", DisableNetwork: &allow},
			{TaskType: profile.TaskTypeRun},
		},
	)
	ctx := context.Background()

	lang, prof, err := repo.RunTarget(ctx, "python3")
	if err != nil || lang.SourceFile != "solution.py" || prof.Name() != "python3-run" {
		t.Fatalf("unexpected run target: %+v %+v %v", lang, prof, err)
	}
	if _, _, err := repo.RunTarget(ctx, "ruby"); !appErr.Is(err, appErr.NotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := repo.GetLanguageSpec(ctx, ""); !appErr.Is(err, appErr.ValidationFailed) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := repo.GetTaskProfile(ctx, "debug", ""); !appErr.Is(err, appErr.ValidationFailed) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLocalRepositoryResolve(t *testing.T) {
	allow := false
	repo := NewLocalRepository(
		[]profile.LanguageSpec{profile.Python3()},
		[]profile.TaskProfile{
			{LanguageID: "python3", TaskType: profile.TaskTypeRun, SeccompProfile: "python3.json"},
			{LanguageID: "python3", TaskType: "debug", DisableNetwork: &allow},
		},
	)
	iso, err := repo.Resolve("python3-run")
	if err != nil || !iso.DisableNetwork || iso.SeccompProfile != "python3.json" {
		t.Fatalf("unexpected isolation: %+v %v", iso, err)
	}
	iso, err = repo.Resolve("python3-debug")
	if err != nil || iso.DisableNetwork {
		t.Fatalf("explicit network setting must win: %+v %v", iso, err)
	}
	if _, err := repo.Resolve("missing"); !appErr.Is(err, appErr.NotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLocalRepositoryBuiltinPython(t *testing.T) {
	repo := NewLocalRepository(nil, nil)
	lang, prof, err := repo.RunTarget(context.Background(), "python3")
	if err != nil || lang.RunCmdTpl == "" || prof.DefaultLimits.WallTimeMs == 0 {
		t.Fatalf("expected built-in python3: %+v %+v %v", lang, prof, err)
	}
}
