// SPDX-FileCopyrightText: 2024 The tib authors
//
// SPDX-License-Identifier: MIT

package builder

import "errors"

var (
	ErrUnknownBoard    = errors.New("unknown board")
	ErrUnknownRevision = errors.New("unknown board revision")
	ErrNoOutputPath    = errors.New("no output path given")
	ErrNoKernelScript  = errors.New(
		"kernel patches or menuconfig requested but no kernel script given")
	ErrNotRegularFile = errors.New("not a regular file")
)
