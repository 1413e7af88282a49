// SPDX-FileCopyrightText: 2024 The tib authors
//
// SPDX-License-Identifier: MIT

// Package hosttest provides a scriptable in-memory [host.Executor] for
// tests. It records every command instead of running anything.
package hosttest

import (
	"context"

	"github.com/tegratools/tib/internal/host"
)

// Executor records commands and answers them with scripted results. The
// zero value answers every command with exit status 0.
type Executor struct {
	// Commands are all commands received, in order.
	Commands []host.Command

	// ExitCodeFunc, if set, decides the exit status per argument vector.
	ExitCodeFunc func(args []string) int

	// ErrFunc, if set, may fail a command before it "runs".
	ErrFunc func(args []string) error

	// OutputFunc, if set, provides captured output per argument vector.
	OutputFunc func(args []string) []byte
}

func (e *Executor) Run(
	_ context.Context,
	cmd host.Command,
) (*host.Result, error) {
	e.Commands = append(e.Commands, cmd)

	if e.ErrFunc != nil {
		if err := e.ErrFunc(cmd.Args); err != nil {
			return nil, err
		}
	}

	result := &host.Result{Args: cmd.Args}

	if e.ExitCodeFunc != nil {
		result.ExitCode = e.ExitCodeFunc(cmd.Args)
	}

	if e.OutputFunc != nil {
		result.Output = e.OutputFunc(cmd.Args)
	}

	return result, nil
}

// Argvs returns the argument vectors of all recorded commands.
func (e *Executor) Argvs() [][]string {
	argvs := make([][]string, len(e.Commands))
	for idx, cmd := range e.Commands {
		argvs[idx] = cmd.Args
	}

	return argvs
}
