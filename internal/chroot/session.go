// SPDX-FileCopyrightText: 2024 The tib authors
//
// SPDX-License-Identifier: MIT

// Package chroot runs commands and scripts inside a foreign-architecture
// rootfs. Two session variants exist with identical capabilities: the
// privileged [QemuSession] (chroot plus pseudo-filesystem mounts plus a
// staged qemu-user emulator) and the unprivileged [ProotSession]
// (syscall interception, no mounts, no root).
package chroot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tegratools/tib/internal/host"
	"github.com/tegratools/tib/internal/sys"
)

// DefaultArch is the target architecture assumed when none is given.
const DefaultArch = sys.AARCH64

// Session is one sandbox session on a rootfs. Acquire with Enter, issue
// any number of Run/RunScript/Shell calls, and release with Close. Close
// must run on every exit path; after Close the session is inert.
//
// Run and RunScript return the command result as data. A non-zero exit
// status never tears the session down by itself; escalation is the
// caller's choice.
type Session interface {
	Enter(ctx context.Context) error
	Run(ctx context.Context, command ...string) (*host.Result, error)
	RunScript(ctx context.Context, script string, args ...string) (*host.Result, error)
	Shell(ctx context.Context) error
	Close(ctx context.Context)
}

// Config describes a sandbox session.
type Config struct {
	// Rootfs is the path to the root filesystem tree to enter.
	Rootfs string

	// Arch is the target architecture. Defaults to [DefaultArch]. Used
	// to locate the emulator binary unless Emulator is set.
	Arch sys.Arch

	// Emulator is an explicit path to the userspace emulator binary. If
	// empty, it is resolved from the host search path by naming
	// convention.
	Emulator string

	// Userspec is an optional USER:GROUP override passed to chroot.
	// Privileged sessions only.
	Userspec string

	// Proot selects the unprivileged proot variant.
	Proot bool

	// Mounts overrides the default mount plan. Privileged sessions only.
	Mounts []MountSpec

	// ExtraMounts extends the mount plan. Privileged sessions only.
	ExtraMounts []MountSpec

	// Executor runs host commands. Defaults to [host.New].
	Executor host.Executor

	// Logger receives session progress and teardown diagnostics.
	// Defaults to [slog.Default].
	Logger *slog.Logger
}

func (c *Config) withDefaults() Config {
	cfg := *c

	if cfg.Arch == "" {
		cfg.Arch = DefaultArch
	}

	if cfg.Executor == nil {
		cfg.Executor = host.New()
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return cfg
}

// validateRootfs checks that the configured rootfs exists and is a
// directory, and returns its absolute path.
func (c *Config) validateRootfs() (string, error) {
	rootfs, err := absDir(c.Rootfs)
	if err != nil {
		return "", fmt.Errorf("rootfs: %w", err)
	}

	return rootfs, nil
}

func absDir(path string) (string, error) {
	abs, err := absPath(path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", err //nolint:wrapcheck
	}

	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotDirectory, abs)
	}

	return abs, nil
}

func absPath(path string) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("ensure absolute path: %w", err)
	}

	return abs, nil
}

// New creates the session variant selected by the config.
func New(cfg Config) (Session, error) {
	if cfg.Proot {
		return NewProotSession(cfg)
	}

	return NewQemuSession(cfg)
}
