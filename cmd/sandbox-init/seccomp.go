//go:build linux

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	seccomp "github.com/seccomp/libseccomp-golang"
	"golang.org/x/sys/unix"
)

// seccompConfig is the subset of the OCI seccomp profile format the helper
// understands.
type seccompConfig struct {
	DefaultAction string           `json:"defaultAction"`
	Syscalls      []seccompSyscall `json:"syscalls"`
}

type seccompSyscall struct {
	Names  []string `json:"names"`
	Action string   `json:"action"`
}

func loadSeccompConfig(path string) (seccompConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return seccompConfig{}, fmt.Errorf("read seccomp profile: %w", err)
	}
	var cfg seccompConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return seccompConfig{}, fmt.Errorf("parse seccomp profile: %w", err)
	}
	return cfg, nil
}

// applySeccomp installs the filter at path for this process and everything it
// execs. NO_NEW_PRIVS is required to load a filter without CAP_SYS_ADMIN.
func applySeccomp(path string) error {
	cfg, err := loadSeccompConfig(path)
	if err != nil {
		return err
	}
	filter, err := buildFilter(cfg)
	if err != nil {
		return err
	}
	defer filter.Release()
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("set no new privs: %w", err)
	}
	if err := filter.Load(); err != nil {
		return fmt.Errorf("load seccomp filter: %w", err)
	}
	return nil
}

func buildFilter(cfg seccompConfig) (*seccomp.ScmpFilter, error) {
	def, err := parseSeccompAction(cfg.DefaultAction)
	if err != nil {
		return nil, err
	}
	filter, err := seccomp.NewFilter(def)
	if err != nil {
		return nil, fmt.Errorf("create seccomp filter: %w", err)
	}
	for _, rule := range cfg.Syscalls {
		action, err := parseSeccompAction(rule.Action)
		if err != nil {
			filter.Release()
			return nil, err
		}
		for _, name := range rule.Names {
			// Unknown names belong to other architectures.
			call, err := seccomp.GetSyscallFromName(name)
			if err != nil {
				continue
			}
			if err := filter.AddRule(call, action); err != nil {
				filter.Release()
				return nil, fmt.Errorf("add seccomp rule %s: %w", name, err)
			}
		}
	}
	return filter, nil
}

// parseSeccompAction maps OCI action names. ERRNO always answers EPERM so a
// blocked call surfaces in Python as PermissionError.
func parseSeccompAction(action string) (seccomp.ScmpAction, error) {
	switch strings.ToUpper(strings.TrimSpace(action)) {
	case "SCMP_ACT_ALLOW":
		return seccomp.ActAllow, nil
	case "SCMP_ACT_ERRNO":
		return seccomp.ActErrno.SetReturnCode(int16(unix.EPERM)), nil
	case "SCMP_ACT_KILL", "SCMP_ACT_KILL_PROCESS":
		return seccomp.ActKillProcess, nil
	case "SCMP_ACT_KILL_THREAD":
		return seccomp.ActKillThread, nil
	case "SCMP_ACT_LOG":
		return seccomp.ActLog, nil
	default:
		return seccomp.ActInvalid, fmt.Errorf("unsupported seccomp action %q", action)
	}
}
