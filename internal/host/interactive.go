// SPDX-FileCopyrightText: 2024 The tib authors
//
// SPDX-License-Identifier: MIT

package host

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"os/signal"

	"github.com/creack/pty"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// RunInteractive runs the command attached to a pseudo-terminal with the
// calling terminal in raw mode, so full-screen programs (shells,
// menuconfig) work. It returns the command's exit status as data, like
// [Executor.Run].
func RunInteractive(ctx context.Context, c Command) (*Result, error) {
	argv := c.argv()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return nil, &StartError{Args: argv, Err: err}
	}
	defer ptmx.Close()

	stdinFd := int(os.Stdin.Fd())

	if term.IsTerminal(stdinFd) {
		oldState, err := term.MakeRaw(stdinFd)
		if err == nil {
			defer term.Restore(stdinFd, oldState) //nolint:errcheck
		}

		if size, err := pty.GetsizeFull(os.Stdin); err == nil {
			_ = pty.Setsize(ptmx, size)
		}
	}

	// Track terminal size changes for the lifetime of the command.
	sigwinch := make(chan os.Signal, 1)
	signal.Notify(sigwinch, unix.SIGWINCH)
	defer signal.Stop(sigwinch)

	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			select {
			case <-sigwinch:
				if size, err := pty.GetsizeFull(os.Stdin); err == nil {
					_ = pty.Setsize(ptmx, size)
				}
			case <-done:
				return
			}
		}
	}()

	var copiers errgroup.Group

	// The stdin copy blocks until the user's next keypress even after
	// the child exited, so it is not waited for.
	go func() {
		_, _ = io.Copy(ptmx, os.Stdin)
	}()

	copiers.Go(func() error {
		_, err := io.Copy(os.Stdout, ptmx)
		// The pty master returns EIO when the child side is closed.
		if err != nil && !errors.Is(err, unix.EIO) {
			return err
		}

		return nil
	})

	waitErr := cmd.Wait()
	copyErr := copiers.Wait()

	if waitErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, &StartError{Args: argv, Err: waitErr}
		}
	}

	if copyErr != nil {
		return nil, copyErr
	}

	return &Result{
		Args:     argv,
		ExitCode: cmd.ProcessState.ExitCode(),
	}, nil
}
