package engine

import "offlinejudge/internal/judge/sandbox/security"

// ProfileResolver resolves a profile name into an isolation profile.
type ProfileResolver interface {
	Resolve(profile string) (security.IsolationProfile, error)
}

// Config controls sandbox engine behavior.
// An empty HelperPath starts the interpreter directly. The zero value runs
// every interpreter in fresh PID, mount, IPC and UTS namespaces.
type Config struct {
	CgroupRoot     string
	SeccompDir     string
	HelperPath     string
	StderrMaxBytes int64
	EnableSeccomp  bool
	EnableCgroup   bool
	// DisableNamespaces runs interpreters in the judge's own namespaces,
	// where a submission can signal the judge and other runs.
	DisableNamespaces bool
}
