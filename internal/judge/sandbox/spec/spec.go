// Package spec describes the interpreter process a run starts and the limits
// it runs under.
package spec

import "math"

// ResourceLimit is enforced through rlimits, cgroups and the harness. Zero
// leaves a limit unset.
type ResourceLimit struct {
	CPUTimeMs  int64 `yaml:"cpuTimeMs"`
	WallTimeMs int64 `yaml:"wallTimeMs"`
	MemoryMB   int64 `yaml:"memoryMB"`
	StackMB    int64 `yaml:"stackMB"`
	OutputMB   int64 `yaml:"outputMB"`
	PIDs       int64 `yaml:"pids"`
}

// Merge returns base with every positive field of override applied.
func (base ResourceLimit) Merge(override ResourceLimit) ResourceLimit {
	out := base
	dst := out.fields()
	for i, v := range override.fields() {
		if *v > 0 {
			*dst[i] = *v
		}
	}
	return out
}

func (l *ResourceLimit) fields() [6]*int64 {
	return [6]*int64{&l.CPUTimeMs, &l.WallTimeMs, &l.MemoryMB, &l.StackMB, &l.OutputMB, &l.PIDs}
}

// Scale multiplies the time limits by timeMul and the memory limit by memMul.
func (base ResourceLimit) Scale(timeMul, memMul float64) ResourceLimit {
	base.CPUTimeMs = scaleLimit(base.CPUTimeMs, timeMul)
	base.WallTimeMs = scaleLimit(base.WallTimeMs, timeMul)
	base.MemoryMB = scaleLimit(base.MemoryMB, memMul)
	return base
}

func scaleLimit(value int64, multiplier float64) int64 {
	if value <= 0 {
		return 0
	}
	if multiplier <= 0 {
		return value
	}
	return int64(math.Ceil(float64(value) * multiplier))
}

// MountSpec describes a bind mount inside the sandbox.
type MountSpec struct {
	Source   string
	Target   string
	ReadOnly bool
}

// ProcessSpec describes one long-lived sandboxed process. RunID groups every
// process started for the same run so they can be killed together.
type ProcessSpec struct {
	RunID      string
	WorkDir    string
	Cmd        []string
	Env        []string
	BindMounts []MountSpec
	Profile    string
	Limits     ResourceLimit
}
