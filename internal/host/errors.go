// SPDX-FileCopyrightText: 2024 The tib authors
//
// SPDX-License-Identifier: MIT

package host

import (
	"fmt"
	"strings"
)

// ExitError reports a command that ran to completion with a non-zero
// exit status. It names the exact argument vector invoked.
type ExitError struct {
	Args     []string
	ExitCode int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf(
		"command %q returned non-zero exit status %d",
		strings.Join(e.Args, " "),
		e.ExitCode,
	)
}

func (e *ExitError) Is(other error) bool {
	_, ok := other.(*ExitError)
	return ok
}

// StartError reports a command that could not be run at all, usually
// because the program was not found.
type StartError struct {
	Args []string
	Err  error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("run %q: %v", strings.Join(e.Args, " "), e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}
