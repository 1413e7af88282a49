// SPDX-FileCopyrightText: 2024 The tib authors
//
// SPDX-License-Identifier: MIT

package chroot_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tegratools/tib/internal/chroot"
	"github.com/tegratools/tib/internal/host/hosttest"
	"github.com/tegratools/tib/internal/sys"
)

// foreignArch returns an architecture guaranteed to differ from the
// host's, so the emulator code paths are exercised on any machine.
func foreignArch() sys.Arch {
	if sys.Native == sys.AARCH64 {
		return sys.X86_64
	}

	return sys.AARCH64
}

func TestProotSessionRunNative(t *testing.T) {
	rootfs := t.TempDir()
	executor := &hosttest.Executor{}

	session, err := chroot.NewProotSession(chroot.Config{
		Rootfs:   rootfs,
		Arch:     sys.Native,
		Executor: executor,
	})
	require.NoError(t, err)

	ctx := context.Background()

	_, err = session.Run(ctx, "true")
	require.ErrorIs(t, err, chroot.ErrNotEntered)

	require.NoError(t, session.Enter(ctx))

	_, err = session.Run(ctx, "apt-get", "update")
	require.NoError(t, err)

	require.Len(t, executor.Commands, 1)
	assert.Equal(t, []string{
		"proot", "-S", rootfs, "-w", "/", "apt-get", "update",
	}, executor.Commands[0].Args)
	assert.False(t, executor.Commands[0].Sudo, "proot never elevates")
}

func TestProotSessionRunForeign(t *testing.T) {
	rootfs := t.TempDir()
	executor := &hosttest.Executor{}

	arch := foreignArch()
	emulator := "/usr/bin/" + arch.EmulatorName()

	session, err := chroot.NewProotSession(chroot.Config{
		Rootfs:   rootfs,
		Arch:     arch,
		Emulator: emulator,
		Executor: executor,
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, session.Enter(ctx))

	_, err = session.Run(ctx, "uname", "-m")
	require.NoError(t, err)

	require.Len(t, executor.Commands, 1)
	assert.Equal(t, []string{
		"proot", "-S", rootfs, "-w", "/", "-q", emulator, "uname", "-m",
	}, executor.Commands[0].Args)
}

func TestProotSessionEnterMissingEmulator(t *testing.T) {
	// Empty search path, so no emulator can resolve.
	t.Setenv("PATH", t.TempDir())

	session, err := chroot.NewProotSession(chroot.Config{
		Rootfs:   t.TempDir(),
		Arch:     foreignArch(),
		Executor: &hosttest.Executor{},
	})
	require.NoError(t, err)

	err = session.Enter(context.Background())
	require.ErrorIs(t, err, sys.ErrEmulatorNotFound)
}

func TestProotSessionRunScript(t *testing.T) {
	rootfs := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(rootfs, "tmp"), 0o755))

	executor := &hosttest.Executor{}

	script := filepath.Join(t.TempDir(), "setup.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\n"), 0o644))

	session, err := chroot.NewProotSession(chroot.Config{
		Rootfs:   rootfs,
		Arch:     sys.Native,
		Executor: executor,
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, session.Enter(ctx))

	_, err = session.RunScript(ctx, script, "arg1")
	require.NoError(t, err)

	staged := filepath.Join(rootfs, "tmp", "setup.sh")

	info, err := os.Stat(staged)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0o100, "staged script must be executable")

	require.Len(t, executor.Commands, 1)
	assert.Equal(t, []string{
		"proot", "-S", rootfs, "-w", "/", "/tmp/setup.sh", "arg1",
	}, executor.Commands[0].Args)

	session.Close(ctx)

	_, err = os.Stat(staged)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestProotSessionCloseRemovesAllScripts(t *testing.T) {
	rootfs := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(rootfs, "tmp"), 0o755))

	first := filepath.Join(t.TempDir(), "first.sh")
	require.NoError(t, os.WriteFile(first, []byte("#!/bin/sh\n"), 0o644))

	second := filepath.Join(t.TempDir(), "second.sh")
	require.NoError(t, os.WriteFile(second, []byte("#!/bin/sh\n"), 0o644))

	session, err := chroot.NewProotSession(chroot.Config{
		Rootfs:   rootfs,
		Arch:     sys.Native,
		Executor: &hosttest.Executor{},
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, session.Enter(ctx))

	_, err = session.RunScript(ctx, first)
	require.NoError(t, err)
	_, err = session.RunScript(ctx, second)
	require.NoError(t, err)

	// Make the first deletion fail: a non-empty directory in its place.
	stagedFirst := filepath.Join(rootfs, "tmp", "first.sh")
	require.NoError(t, os.Remove(stagedFirst))
	require.NoError(t, os.MkdirAll(filepath.Join(stagedFirst, "sub"), 0o755))

	session.Close(ctx)

	_, err = os.Stat(filepath.Join(rootfs, "tmp", "second.sh"))
	require.ErrorIs(t, err, os.ErrNotExist,
		"remaining scripts must still be deleted")
}
