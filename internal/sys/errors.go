// SPDX-FileCopyrightText: 2024 The tib authors
//
// SPDX-License-Identifier: MIT

package sys

import "errors"

var (
	ErrArchNotSupported      = errors.New("architecture not supported")
	ErrEmulatorNotFound      = errors.New("emulator binary not found")
	ErrEmulatorNotExecutable = errors.New("emulator binary not executable")
)
