// SPDX-FileCopyrightText: 2024 The tib authors
//
// SPDX-License-Identifier: MIT

package sys

import (
	"runtime"
)

// Arch is a target CPU architecture, in the naming scheme the qemu-user
// binaries use (qemu-<arch>-static).
type Arch string

// Supported target architectures.
const (
	AARCH64 Arch = "aarch64"
	ARM     Arch = "arm"
	RISCV64 Arch = "riscv64"
	X86_64  Arch = "x86_64"
)

// Native is the architecture of the host. Commands for a native target
// run directly, without a userspace emulator.
var Native = nativeArch()

func nativeArch() Arch {
	switch runtime.GOARCH {
	case "amd64":
		return X86_64
	case "arm64":
		return AARCH64
	case "arm":
		return ARM
	case "riscv64":
		return RISCV64
	default:
		return Arch(runtime.GOARCH)
	}
}

func (a *Arch) String() string {
	return string(*a)
}

func (a *Arch) IsNative() bool {
	return Native == *a
}

// EmulatorName returns the name of the statically linked userspace
// emulator binary for the architecture.
func (a *Arch) EmulatorName() string {
	return "qemu-" + string(*a) + "-static"
}

// Set implements [pflag.Value] so an Arch can be used as a flag.
func (a *Arch) Set(s string) error {
	switch Arch(s) {
	case AARCH64, ARM, RISCV64, X86_64:
		*a = Arch(s)
	default:
		return ErrArchNotSupported
	}

	return nil
}

// Type implements [pflag.Value].
func (a *Arch) Type() string {
	return "arch"
}
