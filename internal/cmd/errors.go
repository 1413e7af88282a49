// SPDX-FileCopyrightText: 2024 The tib authors
//
// SPDX-License-Identifier: MIT

package cmd

import "errors"

var (
	ErrNothingToDo = errors.New(
		"a command, --script or --enter must be given")
	ErrRootRequired = errors.New("this command must run as root")
)
