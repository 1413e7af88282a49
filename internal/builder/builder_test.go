// SPDX-FileCopyrightText: 2024 The tib authors
//
// SPDX-License-Identifier: MIT

package builder_test

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tegratools/tib/internal/builder"
	"github.com/tegratools/tib/internal/host/hosttest"
	"github.com/tegratools/tib/internal/vm"
)

const toolPath = vm.ScriptDir + "/tib"

func newBuildConfig(t *testing.T, executor *hosttest.Executor) builder.Config {
	t.Helper()

	return builder.Config{
		Board:      "nano",
		Revision:   "b00",
		OutputPath: filepath.Join(t.TempDir(), "out.img"),
		Tool:       tempScript(t, "tib"),
		VM: vm.Config{
			Name:     "test-vm",
			Binary:   "multipass",
			Executor: executor,
		},
	}
}

func TestBuildMinimal(t *testing.T) {
	executor := &hosttest.Executor{}
	cfg := newBuildConfig(t, executor)

	require.NoError(t, builder.Build(context.Background(), cfg))

	argvs := executor.Argvs()
	require.NotEmpty(t, argvs)

	assert.Equal(t, "launch", argvs[0][1])

	assert.Contains(t, argvs, []string{
		"multipass", "exec", "test-vm", "--",
		"sudo", "/home/ubuntu/Linux_for_Tegra/apply_binaries.sh",
	})

	assert.Contains(t, argvs, []string{
		"multipass", "exec", "test-vm", "--",
		"sudo", "/home/ubuntu/Linux_for_Tegra/tools/jetson-disk-image-creator.sh",
		"-o", "/home/ubuntu/sdcard.img",
		"-b", "jetson-nano",
		"-r", "300",
	})

	assert.Contains(t, argvs, []string{
		"multipass", "transfer",
		"test-vm:/home/ubuntu/sdcard.img", cfg.OutputPath,
	})

	// Teardown is always last.
	assert.Equal(t, []string{
		"multipass", "delete", "--purge", "test-vm",
	}, argvs[len(argvs)-1])
}

func TestBuildValidateError(t *testing.T) {
	executor := &hosttest.Executor{}
	cfg := newBuildConfig(t, executor)
	cfg.Board = "agx"

	err := builder.Build(context.Background(), cfg)
	require.ErrorIs(t, err, builder.ErrUnknownBoard)
	assert.Empty(t, executor.Commands, "nothing must run on invalid config")
}

func TestBuildKernelAndChroot(t *testing.T) {
	executor := &hosttest.Executor{}
	cfg := newBuildConfig(t, executor)
	cfg.KernelScript = tempScript(t, "kernel.sh")
	cfg.KernelPatches = []string{tempScript(t, "camera.patch")}
	cfg.SaveKconfig = filepath.Join(t.TempDir(), "kconfig.out")
	cfg.ChrootScripts = []string{tempScript(t, "install.sh")}

	require.NoError(t, builder.Build(context.Background(), cfg))

	argvs := executor.Argvs()

	assert.Contains(t, argvs, []string{
		"multipass", "exec", "test-vm", "--",
		"/tmp/scriptdir/kernel.sh",
		"--patches", "/tmp/kernel_patches/camera.patch",
		"--save-kconfig", "/tmp/kernel_configs/kconfig_out",
	})

	assert.Contains(t, argvs, []string{
		"multipass", "transfer",
		"test-vm:/tmp/kernel_configs/kconfig_out", cfg.SaveKconfig,
	})

	// A custom kernel on the nano requires the bootloader to load the
	// freshly installed device tree.
	assert.Contains(t, argvs, []string{
		"multipass", "exec", "test-vm", "--",
		"sudo", toolPath, "patch-extlinux",
		"/home/ubuntu/Linux_for_Tegra/rootfs", "b00",
	})

	assert.Contains(t, argvs, []string{
		"multipass", "exec", "test-vm", "--",
		"sudo", toolPath, "chroot",
		"/home/ubuntu/Linux_for_Tegra/rootfs",
		"--script", vm.ScriptDir + "/install.sh",
	})

	assert.Contains(t, argvs, []string{
		"multipass", "exec", "test-vm", "--",
		"sudo", "/home/ubuntu/Linux_for_Tegra/apply_binaries.sh",
		"--target-overlay",
	})

	// The tool is staged exactly once for both chroot and extlinux steps.
	var toolTransfers int

	for _, argv := range argvs {
		if slices.Contains(argv, "test-vm:"+toolPath) {
			toolTransfers++
		}
	}

	assert.Equal(t, 1, toolTransfers)
}

func TestBuildFailedStepAbortsAndCleansUp(t *testing.T) {
	executor := &hosttest.Executor{
		ExitCodeFunc: func(args []string) int {
			if slices.Contains(args, "/home/ubuntu/Linux_for_Tegra/apply_binaries.sh") {
				return 1
			}

			return 0
		},
	}
	cfg := newBuildConfig(t, executor)

	err := builder.Build(context.Background(), cfg)
	require.Error(t, err)

	argvs := executor.Argvs()

	for _, argv := range argvs {
		assert.NotContains(t, argv, "jetson-disk-image-creator.sh",
			"image assembly must not run after a failed step")
	}

	assert.Equal(t, []string{
		"multipass", "delete", "--purge", "test-vm",
	}, argvs[len(argvs)-1], "VM must be deleted on the failure path")
}

func TestBuildCancellationIsCleanShutdown(t *testing.T) {
	executor := &hosttest.Executor{
		ErrFunc: func(args []string) error {
			if slices.Contains(args, "apply_binaries.sh") {
				return fmt.Errorf("run: %w", context.Canceled)
			}

			return nil
		},
	}
	cfg := newBuildConfig(t, executor)

	err := builder.Build(context.Background(), cfg)
	require.NoError(t, err, "cancellation must not surface as an error")

	argvs := executor.Argvs()
	assert.Equal(t, []string{
		"multipass", "delete", "--purge", "test-vm",
	}, argvs[len(argvs)-1], "VM must be deleted on cancellation")
}
