// SPDX-FileCopyrightText: 2024 The tib authors
//
// SPDX-License-Identifier: MIT

package vm

import (
	"errors"
	"fmt"
)

// MultipassURI points at installation instructions.
const MultipassURI = "https://multipass.run/"

var ErrMultipassNotFound = errors.New(
	"multipass not found, installation instructions: " + MultipassURI,
)

// LaunchError reports a failed VM provisioning. The most common cause is
// a stale VM of the same name left over from a previous run, so the
// message carries the recovery command.
type LaunchError struct {
	Name string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf(
		"launch VM %q: %v (a stale VM with this name may exist;"+
			" try 'multipass delete --purge %s' and run again)",
		e.Name, e.Err, e.Name,
	)
}

func (e *LaunchError) Is(other error) bool {
	_, ok := other.(*LaunchError)
	return ok
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}
