// SPDX-FileCopyrightText: 2024 The tib authors
//
// SPDX-License-Identifier: MIT

package extlinux

import "errors"

var (
	ErrUnsupportedRevision = errors.New("unsupported board revision")
	ErrNoInitrdLine        = errors.New("no INITRD line in extlinux.conf")
)
