// SPDX-FileCopyrightText: 2024 The tib authors
//
// SPDX-License-Identifier: MIT

package chroot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/tegratools/tib/internal/host"
	"github.com/tegratools/tib/internal/sys"
)

const stagedScriptMode = 0o755

// ProotSession is the unprivileged sandbox variant. It intercepts the
// syscalls of the sandboxed process tree instead of mounting anything,
// so it needs neither root nor teardown of mounts. The rootfs must be
// owned by the calling user for package managers to work.
type ProotSession struct {
	rootfs   string
	arch     sys.Arch
	emulator string
	exec     host.Executor
	log      *slog.Logger

	scripts []string
	entered bool
}

// NewProotSession creates the session. There are no preconditions beyond
// a resolvable emulator, which is checked on Enter and only when the
// host architecture differs from the target.
func NewProotSession(cfg Config) (*ProotSession, error) {
	cfg = cfg.withDefaults()

	rootfs, err := absPath(cfg.Rootfs)
	if err != nil {
		return nil, fmt.Errorf("rootfs: %w", err)
	}

	return &ProotSession{
		rootfs:   rootfs,
		arch:     cfg.Arch,
		emulator: cfg.Emulator,
		exec:     cfg.Executor,
		log:      cfg.Logger,
	}, nil
}

// Enter resolves the emulator if the target architecture is foreign.
// Nothing on the host is mutated.
func (s *ProotSession) Enter(_ context.Context) error {
	if !s.arch.IsNative() && s.emulator == "" {
		emulator, err := sys.FindEmulator(s.arch)
		if err != nil {
			return err
		}

		s.emulator = emulator
	}

	s.entered = true

	return nil
}

// prefix is the invocation prefix pinning the apparent filesystem root
// to the rootfs with working directory /. The emulator argument is
// included only for foreign targets.
func (s *ProotSession) prefix() []string {
	argv := []string{"proot", "-S", s.rootfs, "-w", "/"}

	if !s.arch.IsNative() {
		argv = append(argv, "-q", s.emulator)
	}

	return argv
}

// Run executes the command inside the sandbox and returns its result.
func (s *ProotSession) Run(
	ctx context.Context,
	command ...string,
) (*host.Result, error) {
	if !s.entered {
		return nil, ErrNotEntered
	}

	return s.exec.Run(ctx, host.Command{ //nolint:wrapcheck
		Args: append(s.prefix(), command...),
	})
}

// RunScript copies the script into the scratch directory under the
// rootfs, marks it executable and runs it with the given arguments. The
// staged copy is tracked and removed on Close.
func (s *ProotSession) RunScript(
	ctx context.Context,
	script string,
	args ...string,
) (*host.Result, error) {
	if !s.entered {
		return nil, ErrNotEntered
	}

	name := filepath.Base(script)
	staged := filepath.Join(s.rootfs, "tmp", name)

	err := copyFile(script, staged, stagedScriptMode)
	if err != nil {
		return nil, fmt.Errorf("stage script %s: %w", script, err)
	}

	s.scripts = append(s.scripts, staged)

	return s.Run(ctx, append([]string{path.Join("/tmp", name)}, args...)...)
}

// Shell runs an interactive shell inside the sandbox.
func (s *ProotSession) Shell(ctx context.Context) error {
	if !s.entered {
		return ErrNotEntered
	}

	result, err := host.RunInteractive(ctx, host.Command{
		Args: append(s.prefix(), "/bin/bash"),
	})
	if err != nil {
		return err //nolint:wrapcheck
	}

	return result.Check() //nolint:wrapcheck
}

// Close deletes every staged script, best effort. Each deletion failure
// is logged independently and never escalated, so an error from the
// session body is never masked by cleanup.
func (s *ProotSession) Close(_ context.Context) {
	s.entered = false

	for _, script := range s.scripts {
		err := os.Remove(script)
		if err != nil {
			s.log.Error("Failed to remove staged script",
				slog.String("path", script),
				slog.Any("error", err),
			)
		}
	}

	s.scripts = nil
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err //nolint:wrapcheck
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err //nolint:wrapcheck
	}

	_, err = io.Copy(out, in)
	if err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}

	return out.Close() //nolint:wrapcheck
}
