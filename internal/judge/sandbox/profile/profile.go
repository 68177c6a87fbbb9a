// Package profile describes interpreter languages and the sandbox profile
// each task type runs under.
package profile

import "offlinejudge/internal/judge/sandbox/spec"

// TaskType identifies the sandbox task category.
type TaskType string

const (
	// TaskTypeRun is a harness session that loads and calls a submission.
	TaskTypeRun TaskType = "run"
)

// LanguageSpec describes how to start an interpreter.
// RunCmdTpl may reference {harness} and {workdir}.
type LanguageSpec struct {
	ID               string   `yaml:"id"`
	Name             string   `yaml:"name"`
	Version          string   `yaml:"version"`
	SourceFile       string   `yaml:"sourceFile"`
	RunCmdTpl        string   `yaml:"runCmd"`
	Env              []string `yaml:"env"`
	TimeMultiplier   float64  `yaml:"timeMultiplier"`
	MemoryMultiplier float64  `yaml:"memoryMultiplier"`
}

// TaskProfile defines sandbox resources and security settings for a task type.
type TaskProfile struct {
	LanguageID     string             `yaml:"languageId"`
	TaskType       TaskType           `yaml:"taskType"`
	RootFS         string             `yaml:"rootfs"`
	SeccompProfile string             `yaml:"seccompProfile"`
	DisableNetwork *bool              `yaml:"disableNetwork"`
	DefaultLimits  spec.ResourceLimit `yaml:"limits"`
}

// Name returns the key the engine resolves isolation settings by.
func (p TaskProfile) Name() string {
	return Name(p.LanguageID, p.TaskType)
}

// Name builds a profile key from a language and task type.
func Name(languageID string, taskType TaskType) string {
	return languageID + "-" + string(taskType)
}

// Python3 is the built-in interpreter definition used when no language is configured.
func Python3() LanguageSpec {
	return LanguageSpec{
		ID:         "python3",
		Name:       "Python",
		Version:    "3",
		SourceFile: "solution.py",
		RunCmdTpl:  "python3 -I -B -u {harness}",
		Env: []string{
			"PATH=/usr/local/bin:/usr/bin:/bin",
			"LANG=C.UTF-8",
			"PYTHONHASHSEED=0",
			"PYTHONDONTWRITEBYTECODE=1",
		},
		TimeMultiplier:   1,
		MemoryMultiplier: 1,
	}
}

// DefaultRunProfile is the run profile used when none is configured.
func DefaultRunProfile(languageID string) TaskProfile {
	return TaskProfile{
		LanguageID: languageID,
		TaskType:   TaskTypeRun,
		DefaultLimits: spec.ResourceLimit{
			WallTimeMs: 2000,
			MemoryMB:   512,
			OutputMB:   16,
			PIDs:       16,
		},
	}
}
