//go:build linux

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"offlinejudge/internal/judge/sandbox/spec"

	"golang.org/x/sys/unix"
)

// prepareFilesystem runs inside a fresh mount namespace: it stops mount
// propagation, applies the bind mounts and, when rootfs is set, mounts /proc
// there and chroots into it.
func prepareFilesystem(rootfs string, mounts []spec.MountSpec) error {
	if err := unix.Mount("", "/", "", unix.MS_REC|unix.MS_PRIVATE, ""); err != nil {
		return fmt.Errorf("make mounts private: %w", err)
	}
	for _, m := range mounts {
		if err := bindMount(filepath.Join("/", rootfs, m.Target), m); err != nil {
			return err
		}
	}
	if rootfs == "" {
		return nil
	}
	proc := filepath.Join(rootfs, "proc")
	if err := os.MkdirAll(proc, 0o755); err != nil {
		return err
	}
	if err := unix.Mount("proc", proc, "proc", unix.MS_NOSUID|unix.MS_NODEV|unix.MS_NOEXEC, ""); err != nil && !errors.Is(err, unix.EBUSY) {
		return fmt.Errorf("mount proc: %w", err)
	}
	if err := unix.Chroot(rootfs); err != nil {
		return fmt.Errorf("chroot %s: %w", rootfs, err)
	}
	return os.Chdir("/")
}

func bindMount(target string, m spec.MountSpec) error {
	if err := mountPoint(m.Source, target); err != nil {
		return err
	}
	const flags = unix.MS_BIND | unix.MS_REC
	if err := unix.Mount(m.Source, target, "", flags, ""); err != nil {
		return fmt.Errorf("bind %s on %s: %w", m.Source, target, err)
	}
	if !m.ReadOnly {
		return nil
	}
	// A read-only bind needs a second, remounting call.
	if err := unix.Mount("", target, "", flags|unix.MS_REMOUNT|unix.MS_RDONLY, ""); err != nil {
		return fmt.Errorf("remount %s read-only: %w", target, err)
	}
	return nil
}

// mountPoint creates target as a directory or an empty file, matching source.
func mountPoint(source, target string) error {
	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("bind source: %w", err)
	}
	if info.IsDir() {
		return os.MkdirAll(target, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_RDONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}
