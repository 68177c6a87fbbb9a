// Package security holds the isolation a sandboxed interpreter runs under.
package security

import "path/filepath"

// IsolationProfile is the resolved isolation of one task profile.
type IsolationProfile struct {
	// RootFS, when set, is the directory the helper chroots into.
	RootFS string `json:"rootfs,omitempty"`
	// SeccompProfile is a JSON syscall filter; relative paths are resolved by WithSeccompDir.
	SeccompProfile string `json:"seccompProfile,omitempty"`
	DisableNetwork bool   `json:"disableNetwork"`
}

// WithSeccompDir returns p with a relative SeccompProfile joined onto dir.
func (p IsolationProfile) WithSeccompDir(dir string) IsolationProfile {
	if dir != "" && p.SeccompProfile != "" && !filepath.IsAbs(p.SeccompProfile) {
		p.SeccompProfile = filepath.Join(dir, p.SeccompProfile)
	}
	return p
}

// NeedsHelper reports whether the profile can only be applied by the
// sandbox-init helper rather than by a plain fork and exec.
func (p IsolationProfile) NeedsHelper(hasMounts bool) bool {
	return p.RootFS != "" || hasMounts
}
