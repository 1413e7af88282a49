// SPDX-FileCopyrightText: 2024 The tib authors
//
// SPDX-License-Identifier: MIT

// Package host runs commands on the host system and returns their
// outcome as data. It is the single execution path used by the sandbox
// and VM sessions, so elevation and logging are handled uniformly.
package host

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Command describes a single host process invocation.
type Command struct {
	// Args is the complete argument vector. Args[0] is the program.
	Args []string

	// Sudo prepends a sudo invocation. Elevation is always an explicit
	// per-command choice.
	Sudo bool

	// Capture collects stdout into [Result.Output] instead of passing it
	// through.
	Capture bool

	// Stdin, Stdout and Stderr override the standard streams. Unset
	// streams are inherited from the process.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// argv returns the effective argument vector including the sudo prefix.
func (c *Command) argv() []string {
	if c.Sudo {
		return append([]string{"sudo"}, c.Args...)
	}

	return c.Args
}

// Result is the outcome of a completed command.
type Result struct {
	// Args is the exact argument vector that ran, including any sudo
	// prefix.
	Args []string

	// ExitCode is the command's exit status. Non-zero exit is returned
	// as data, never as an error. Use [Result.Check] to escalate.
	ExitCode int

	// Output is captured stdout, if requested.
	Output []byte
}

// Check returns an [ExitError] if the command exited non-zero.
func (r *Result) Check() error {
	if r.ExitCode == 0 {
		return nil
	}

	return &ExitError{Args: r.Args, ExitCode: r.ExitCode}
}

// Executor runs host commands. The default implementation from [New]
// shells out; tests substitute fakes.
type Executor interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

type execExecutor struct{}

// New returns an [Executor] backed by [exec.CommandContext].
func New() Executor {
	return &execExecutor{}
}

func (e *execExecutor) Run(ctx context.Context, c Command) (*Result, error) {
	argv := c.argv()

	slog.Debug("Running command", slog.String("command", strings.Join(argv, " ")))

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = c.Stdin

	var stdout bytes.Buffer

	switch {
	case c.Capture:
		cmd.Stdout = &stdout
	case c.Stdout != nil:
		cmd.Stdout = c.Stdout
	default:
		cmd.Stdout = os.Stdout
	}

	if c.Stderr != nil {
		cmd.Stderr = c.Stderr
	} else {
		cmd.Stderr = os.Stderr
	}

	err := cmd.Run()
	if err != nil {
		// A child killed by cancellation surfaces the context error, so
		// session boundaries can classify the shutdown.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, &StartError{Args: argv, Err: err}
		}
	}

	return &Result{
		Args:     argv,
		ExitCode: cmd.ProcessState.ExitCode(),
		Output:   stdout.Bytes(),
	}, nil
}
