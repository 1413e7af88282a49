// SPDX-FileCopyrightText: 2024 The tib authors
//
// SPDX-License-Identifier: MIT

package chroot

import "errors"

var (
	ErrEmptyPath       = errors.New("path must not be empty")
	ErrNotDirectory    = errors.New("not a directory")
	ErrInvalidUserspec = errors.New("invalid userspec, expected USER:GROUP")
	ErrNotEntered      = errors.New("session not entered")
)
