// SPDX-FileCopyrightText: 2024 The tib authors
//
// SPDX-License-Identifier: MIT

// Package vm provisions a disposable multipass VM and runs commands,
// scripts and file transfers inside it. The VM is deleted on every exit
// path unless cleanup is explicitly suppressed.
package vm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path"
	"runtime"
	"strconv"

	"github.com/tegratools/tib/internal/host"
)

// ScriptDir is where scripts are staged inside the VM.
const ScriptDir = "/tmp/scriptdir"

const (
	defaultName   = "tib"
	defaultDisk   = "64G"
	defaultMemory = "8G"
	defaultImage  = "22.04"
)

// Config describes the VM to provision.
type Config struct {
	// Name of the VM instance. Must not collide with an existing one.
	Name string

	// CPUs, Disk and Memory size the VM. Disk and Memory use multipass
	// size syntax ("64G"). Zero values get defaults.
	CPUs   int
	Disk   string
	Memory string

	// Image is the base image identifier to launch.
	Image string

	// Verbose repeats the multipass --verbose flag.
	Verbose int

	// KeepVM suppresses deletion of the VM on Close.
	KeepVM bool

	// Binary is the path to the multipass executable. Resolved from the
	// host search path when empty.
	Binary string

	// Executor runs host commands. Defaults to [host.New].
	Executor host.Executor

	// Logger receives session progress and teardown diagnostics.
	// Defaults to [slog.Default].
	Logger *slog.Logger
}

func (c *Config) withDefaults() Config {
	cfg := *c

	if cfg.Name == "" {
		cfg.Name = defaultName
	}

	if cfg.CPUs == 0 {
		cfg.CPUs = runtime.NumCPU()
	}

	if cfg.Disk == "" {
		cfg.Disk = defaultDisk
	}

	if cfg.Memory == "" {
		cfg.Memory = defaultMemory
	}

	if cfg.Image == "" {
		cfg.Image = defaultImage
	}

	if cfg.Executor == nil {
		cfg.Executor = host.New()
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return cfg
}

// Session is one ephemeral VM session. Acquire with [Launch], release
// with [Session.Close] on every exit path.
type Session struct {
	cfg  Config
	exec host.Executor
	log  *slog.Logger

	scriptDirReady bool
}

// Launch provisions the VM. On failure there is nothing to roll back:
// no usable session is returned and the error carries guidance for the
// most likely cause, a stale VM of the same name from a previous run.
func Launch(ctx context.Context, cfg Config) (*Session, error) {
	cfg = cfg.withDefaults()

	if cfg.Binary == "" {
		binary, err := findMultipass()
		if err != nil {
			return nil, err
		}

		cfg.Binary = binary

		cfg.Logger.Debug("Found multipass", slog.String("path", binary))
	}

	cfg.Logger.Info("Setting up VM", slog.String("name", cfg.Name))

	argv := []string{
		cfg.Binary, "launch",
		"--cpus", strconv.Itoa(cfg.CPUs),
		"--disk", cfg.Disk,
		"--memory", cfg.Memory,
		"--name", cfg.Name,
	}

	for i := 0; i < cfg.Verbose; i++ {
		argv = append(argv, "--verbose")
	}

	argv = append(argv, cfg.Image)

	session := &Session{cfg: cfg, exec: cfg.Executor, log: cfg.Logger}

	err := session.mustRun(ctx, argv...)
	if err != nil {
		return nil, &LaunchError{Name: cfg.Name, Err: err}
	}

	cfg.Logger.Info("VM ready", slog.String("name", cfg.Name))

	return session, nil
}

// Name returns the VM instance name.
func (s *Session) Name() string {
	return s.cfg.Name
}

func (s *Session) mustRun(ctx context.Context, argv ...string) error {
	result, err := s.exec.Run(ctx, host.Command{Args: argv})
	if err != nil {
		return err //nolint:wrapcheck
	}

	return result.Check() //nolint:wrapcheck
}

// Run executes the command inside the VM and returns its result.
// Non-zero exit is reported in the result, not as an error.
func (s *Session) Run(
	ctx context.Context,
	command ...string,
) (*host.Result, error) {
	argv := []string{s.cfg.Binary, "exec", s.cfg.Name, "--"}

	return s.exec.Run(ctx, host.Command{ //nolint:wrapcheck
		Args: append(argv, command...),
	})
}

// RunScript transfers the script into the VM's staging directory, marks
// it executable and runs it with the given arguments. The staging
// directory is created once per session with a restrictive mode.
func (s *Session) RunScript(
	ctx context.Context,
	script string,
	args ...string,
) (*host.Result, error) {
	err := s.ensureScriptDir(ctx)
	if err != nil {
		return nil, err
	}

	// Destination paths inside the VM are always POSIX.
	dest := path.Join(ScriptDir, path.Base(script))

	err = s.TransferTo(ctx, dest, script)
	if err != nil {
		return nil, err
	}

	result, err := s.Run(ctx, "chmod", "+x", dest)
	if err != nil {
		return nil, err
	}

	err = result.Check()
	if err != nil {
		return nil, fmt.Errorf("mark script executable: %w", err)
	}

	return s.Run(ctx, append([]string{dest}, args...)...)
}

func (s *Session) ensureScriptDir(ctx context.Context) error {
	if s.scriptDirReady {
		return nil
	}

	result, err := s.Run(ctx, "mkdir", "-p", "-m", "700", ScriptDir)
	if err != nil {
		return err
	}

	err = result.Check()
	if err != nil {
		return fmt.Errorf("create script dir: %w", err)
	}

	s.scriptDirReady = true

	return nil
}

// TransferTo copies host files to the given path inside the VM. Any
// failed transfer aborts immediately.
func (s *Session) TransferTo(
	ctx context.Context,
	dest string,
	sources ...string,
) error {
	for _, source := range sources {
		s.log.Debug("Transferring to VM",
			slog.String("source", source),
			slog.String("dest", dest),
		)

		err := s.mustRun(ctx,
			s.cfg.Binary, "transfer", source, s.cfg.Name+":"+dest)
		if err != nil {
			return fmt.Errorf("transfer %s to VM: %w", source, err)
		}
	}

	return nil
}

// TransferFrom copies files from inside the VM to the host path. Any
// failed transfer aborts immediately.
func (s *Session) TransferFrom(
	ctx context.Context,
	dest string,
	sources ...string,
) error {
	argv := []string{s.cfg.Binary, "transfer"}

	for _, source := range sources {
		argv = append(argv, s.cfg.Name+":"+source)
	}

	argv = append(argv, dest)

	err := s.mustRun(ctx, argv...)
	if err != nil {
		return fmt.Errorf("transfer from VM: %w", err)
	}

	return nil
}

// Mount exposes a host path inside the VM.
func (s *Session) Mount(ctx context.Context, source, target string) error {
	err := s.mustRun(ctx,
		s.cfg.Binary, "mount", source, s.cfg.Name+":"+target)
	if err != nil {
		return fmt.Errorf("mount %s in VM: %w", source, err)
	}

	return nil
}

// Close deletes and purges the VM unless cleanup is suppressed, then
// classifies the cause that ended the session: cancellation is converted
// into a clean, non-error shutdown; any other cause is returned
// unchanged after the VM is gone. Deletion failures are logged, never
// raised.
//
// Callers should pass a context that survives cancellation, e.g.
// [context.WithoutCancel], so teardown still runs.
func (s *Session) Close(ctx context.Context, cause error) error {
	if s.cfg.KeepVM {
		s.log.Info("Keeping VM", slog.String("name", s.cfg.Name))
	} else {
		s.log.Info("Deleting VM", slog.String("name", s.cfg.Name))

		err := s.mustRun(ctx,
			s.cfg.Binary, "delete", "--purge", s.cfg.Name)
		if err != nil {
			s.log.Error("Failed to delete VM",
				slog.String("name", s.cfg.Name),
				slog.Any("error", err),
			)
		}
	}

	if errors.Is(cause, context.Canceled) {
		s.log.Info("Cancelled.")
		return nil
	}

	return cause
}

func findMultipass() (string, error) {
	binary, err := exec.LookPath("multipass")
	if err != nil {
		return "", ErrMultipassNotFound
	}

	return binary, nil
}
