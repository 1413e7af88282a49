// SPDX-FileCopyrightText: 2024 The tib authors
//
// SPDX-License-Identifier: MIT

package chroot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/tegratools/tib/internal/host"
	"github.com/tegratools/tib/internal/sys"
)

// emulatorStaging records how the emulator binary got into the rootfs,
// which determines how it is removed again: a bind mount is unmounted, a
// copied file is deleted. Never both.
type emulatorStaging int

const (
	stagingNone emulatorStaging = iota
	stagingCopied
	stagingBound
)

// QemuSession is the privileged sandbox variant: a chroot into the
// rootfs with a staged qemu-user emulator and the pseudo filesystems of
// [DefaultMounts] applied. Requires root or working sudo.
type QemuSession struct {
	rootfs   string
	emulator string
	userspec string
	sudo     bool
	exec     host.Executor
	log      *slog.Logger

	plan          []MountSpec
	mounted       []MountSpec
	staging       emulatorStaging
	stagingTarget string
	scripts       []string
	entered       bool
}

// NewQemuSession validates all preconditions and creates the session.
// Nothing is mutated until [QemuSession.Enter].
func NewQemuSession(cfg Config) (*QemuSession, error) {
	cfg = cfg.withDefaults()

	rootfs, err := cfg.validateRootfs()
	if err != nil {
		return nil, err
	}

	emulator := cfg.Emulator
	if emulator == "" {
		emulator, err = sys.FindEmulator(cfg.Arch)
		if err != nil {
			return nil, err
		}
	} else {
		emulator, err = absPath(emulator)
		if err != nil {
			return nil, err
		}

		err = sys.ValidateEmulator(emulator)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Userspec != "" {
		if !strings.Contains(cfg.Userspec, ":") ||
			strings.Contains(cfg.Userspec, "-") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidUserspec, cfg.Userspec)
		}
	}

	plan := cfg.Mounts
	if plan == nil {
		plan = DefaultMounts(rootfs)
	}

	plan = append(plan, cfg.ExtraMounts...)

	return &QemuSession{
		rootfs:   rootfs,
		emulator: emulator,
		userspec: cfg.Userspec,
		sudo:     os.Geteuid() != 0,
		exec:     cfg.Executor,
		log:      cfg.Logger,
		plan:     plan,
	}, nil
}

// Enter stages the emulator and applies the mount plan one mount at a
// time. If any step fails, everything accumulated so far is torn down
// immediately and the original error is returned: the caller never sees
// a partially mounted sandbox. The rollback must survive the very
// cancellation that may have failed the step, so it runs detached from
// the caller's context.
func (s *QemuSession) Enter(ctx context.Context) error {
	s.log.Info("Entering chroot", slog.String("rootfs", s.rootfs))

	err := s.stageEmulator(ctx)
	if err != nil {
		s.Close(context.WithoutCancel(ctx))
		return err
	}

	for _, m := range s.plan {
		err := s.mount(ctx, m)
		if err != nil {
			s.Close(context.WithoutCancel(ctx))
			return fmt.Errorf("mount %s: %w", m.Target, err)
		}

		s.mounted = append(s.mounted, m)
	}

	s.entered = true

	return nil
}

// stageEmulator makes the emulator binary available inside the rootfs at
// usr/bin. A file already present at that path is never overwritten; the
// host emulator is bind mounted read-only over it instead.
func (s *QemuSession) stageEmulator(ctx context.Context) error {
	target := filepath.Join(s.rootfs, "usr", "bin", filepath.Base(s.emulator))

	if fileExists(target) {
		bind := MountSpec{
			Source:  s.emulator,
			Target:  target,
			Options: []string{"bind", "ro"},
		}

		err := s.mount(ctx, bind)
		if err != nil {
			return fmt.Errorf("bind emulator over %s: %w", target, err)
		}

		s.staging = stagingBound
		s.stagingTarget = target

		return nil
	}

	s.log.Debug("Copying emulator into rootfs",
		slog.String("emulator", s.emulator),
		slog.String("target", target),
	)

	err := s.mustRun(ctx, "cp", s.emulator, target)
	if err != nil {
		return fmt.Errorf("copy emulator to %s: %w", target, err)
	}

	s.staging = stagingCopied
	s.stagingTarget = target

	return nil
}

func (s *QemuSession) mount(ctx context.Context, m MountSpec) error {
	s.log.Info("Mounting", slog.String("target", m.Target))

	result, err := s.exec.Run(ctx, host.Command{Args: m.mountArgs(), Sudo: s.sudo})
	if err != nil {
		return err
	}

	return result.Check()
}

// mustRun runs a host command and escalates a non-zero exit status.
func (s *QemuSession) mustRun(ctx context.Context, command ...string) error {
	result, err := s.exec.Run(ctx, host.Command{Args: command, Sudo: s.sudo})
	if err != nil {
		return err
	}

	return result.Check()
}

// chrootCommand builds the argument vector running the given command
// inside the rootfs.
func (s *QemuSession) chrootCommand(command ...string) []string {
	argv := []string{"chroot"}

	if s.userspec != "" {
		argv = append(argv, "--userspec="+s.userspec)
	}

	argv = append(argv, s.rootfs)

	return append(argv, command...)
}

// Run executes the command inside the chroot and returns its result.
// Non-zero exit is reported in the result, not as an error.
func (s *QemuSession) Run(
	ctx context.Context,
	command ...string,
) (*host.Result, error) {
	if !s.entered {
		return nil, ErrNotEntered
	}

	return s.exec.Run(ctx, host.Command{ //nolint:wrapcheck
		Args: s.chrootCommand(command...),
		Sudo: s.sudo,
	})
}

// RunScript copies the script into the rootfs scratch directory, marks
// it executable and runs it inside the chroot with the given arguments.
// The staged copy is tracked and removed on Close.
func (s *QemuSession) RunScript(
	ctx context.Context,
	script string,
	args ...string,
) (*host.Result, error) {
	if !s.entered {
		return nil, ErrNotEntered
	}

	name := filepath.Base(script)
	staged := filepath.Join(s.rootfs, "tmp", name)

	err := s.mustRun(ctx, "cp", script, staged)
	if err != nil {
		return nil, fmt.Errorf("stage script %s: %w", script, err)
	}

	s.scripts = append(s.scripts, staged)

	err = s.mustRun(ctx, "chmod", "+x", staged)
	if err != nil {
		return nil, fmt.Errorf("stage script %s: %w", script, err)
	}

	return s.Run(ctx, append([]string{path.Join("/tmp", name)}, args...)...)
}

// Shell runs an interactive login shell inside the chroot.
func (s *QemuSession) Shell(ctx context.Context) error {
	if !s.entered {
		return ErrNotEntered
	}

	result, err := host.RunInteractive(ctx, host.Command{
		Args: s.chrootCommand("/bin/bash"),
		Sudo: s.sudo,
	})
	if err != nil {
		return err //nolint:wrapcheck
	}

	return result.Check() //nolint:wrapcheck
}

// Close tears the sandbox down: the staged emulator is unstaged, every
// applied mount is unmounted in strict reverse order, and staged scripts
// are deleted. It runs on every exit path. Individual teardown failures
// are logged and skipped so the remaining steps still run; no mount
// outside the accumulated list is ever touched.
func (s *QemuSession) Close(ctx context.Context) {
	s.entered = false

	s.unstageEmulator(ctx)

	for i := len(s.mounted) - 1; i >= 0; i-- {
		s.unmount(ctx, s.mounted[i].Target)
	}

	s.mounted = nil

	for _, script := range s.scripts {
		// Staged scripts usually vanish with the /tmp tmpfs.
		err := os.Remove(script)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.log.Error("Failed to remove staged script",
				slog.String("path", script),
				slog.Any("error", err),
			)
		}
	}

	s.scripts = nil
}

func (s *QemuSession) unstageEmulator(ctx context.Context) {
	switch s.staging {
	case stagingCopied:
		s.log.Debug("Removing copied emulator",
			slog.String("target", s.stagingTarget))

		err := s.mustRun(ctx, "rm", s.stagingTarget)
		if err != nil {
			s.log.Error("Failed to remove copied emulator",
				slog.String("target", s.stagingTarget),
				slog.Any("error", err),
			)
		}
	case stagingBound:
		s.unmount(ctx, s.stagingTarget)
	case stagingNone:
	}

	s.staging = stagingNone
	s.stagingTarget = ""
}

func (s *QemuSession) unmount(ctx context.Context, target string) {
	s.log.Info("Unmounting", slog.String("target", target))

	err := s.mustRun(ctx, "umount", target)
	if err != nil {
		s.log.Error("Failed to unmount",
			slog.String("target", target),
			slog.Any("error", err),
		)
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
