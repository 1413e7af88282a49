// SPDX-FileCopyrightText: 2024 The tib authors
//
// SPDX-License-Identifier: MIT

package sys

import (
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// FindEmulator resolves the userspace emulator binary for the given
// architecture on the host search path and validates it with
// [ValidateEmulator].
func FindEmulator(arch Arch) (string, error) {
	path, err := exec.LookPath(arch.EmulatorName())
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrEmulatorNotFound, arch.EmulatorName())
	}

	err = ValidateEmulator(path)
	if err != nil {
		return "", err
	}

	return path, nil
}

// ValidateEmulator checks that path is an existing regular file that the
// current user may execute.
func ValidateEmulator(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrEmulatorNotFound, path)
	}

	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", ErrEmulatorNotFound, path)
	}

	err = unix.Access(path, unix.X_OK)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrEmulatorNotExecutable, path)
	}

	return nil
}
