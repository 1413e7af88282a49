// SPDX-FileCopyrightText: 2024 The tib authors
//
// SPDX-License-Identifier: MIT

// Package builder assembles a flashable SD card image for an embedded
// board. All build steps run inside a disposable VM: setup and user
// scripts, an optional kernel build, vendor binary application, rootfs
// customization inside a chroot, and finally the vendor image assembly
// script. The finished image is transferred back to the host.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"

	"github.com/tegratools/tib/internal/host"
	"github.com/tegratools/tib/internal/vm"
)

// Build runs the whole pipeline. The VM is deleted on every exit path,
// including cancellation, unless the config suppresses cleanup.
func Build(ctx context.Context, cfg Config) (err error) {
	err = cfg.Validate()
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.VM.Logger == nil {
		cfg.VM.Logger = cfg.Logger
	}

	if cfg.Tool == "" {
		cfg.Tool, err = os.Executable()
		if err != nil {
			return fmt.Errorf("locate own executable: %w", err)
		}
	}

	if online, err := host.HasDefaultRoute(); err == nil && !online {
		cfg.Logger.Warn("No default route on host," +
			" downloads inside the VM will likely fail")
	}

	session, err := vm.Launch(ctx, cfg.VM)
	if err != nil {
		return err
	}

	// The VM must be torn down on every exit path. Cancellation is
	// converted into a clean shutdown at this boundary.
	defer func() {
		err = session.Close(context.WithoutCancel(ctx), err)
	}()

	b := &build{cfg: cfg, vm: session}

	return b.run(ctx)
}

type build struct {
	cfg Config
	vm  *vm.Session

	toolStaged bool
}

func (b *build) run(ctx context.Context) error {
	for _, script := range b.cfg.SetupScripts {
		err := b.runScript(ctx, script)
		if err != nil {
			return err
		}
	}

	for _, script := range b.cfg.Scripts {
		err := b.runScript(ctx, script)
		if err != nil {
			return err
		}
	}

	if b.cfg.kernelBuildRequested() {
		err := b.buildKernel(ctx)
		if err != nil {
			return err
		}
	}

	err := b.applyBinaries(ctx)
	if err != nil {
		return err
	}

	// A custom kernel installs its own device tree, so the bootloader
	// configuration must point at it.
	if len(b.cfg.KernelPatches) > 0 && b.cfg.Board == "nano" {
		err = b.patchExtlinux(ctx)
		if err != nil {
			return err
		}
	}

	for _, script := range b.cfg.ChrootScripts {
		err = b.runChrootScript(ctx, script)
		if err != nil {
			return err
		}
	}

	if b.cfg.EnterChroot {
		err = b.enterChroot(ctx)
		if err != nil {
			return err
		}
	}

	err = b.assembleImage(ctx)
	if err != nil {
		return err
	}

	b.cfg.Logger.Info("Transferring image to host",
		slog.String("source", imageOut),
		slog.String("dest", b.cfg.OutputPath),
	)

	return b.vm.TransferFrom(ctx, b.cfg.OutputPath, imageOut)
}

// runScript runs a host script inside the VM and escalates non-zero
// exit: a failed pipeline step aborts the build.
func (b *build) runScript(ctx context.Context, script string, args ...string) error {
	result, err := b.vm.RunScript(ctx, script, args...)
	if err != nil {
		return err //nolint:wrapcheck
	}

	return result.Check() //nolint:wrapcheck
}

func (b *build) runChecked(ctx context.Context, command ...string) error {
	result, err := b.vm.Run(ctx, command...)
	if err != nil {
		return err //nolint:wrapcheck
	}

	return result.Check() //nolint:wrapcheck
}

// stageTool transfers the running tib binary into the VM once, so
// chroot and extlinux steps run through this same program.
func (b *build) stageTool(ctx context.Context) error {
	if b.toolStaged {
		return nil
	}

	err := b.runChecked(ctx, "mkdir", "-p", "-m", "700", vm.ScriptDir)
	if err != nil {
		return err
	}

	err = b.vm.TransferTo(ctx, toolPath, b.cfg.Tool)
	if err != nil {
		return err //nolint:wrapcheck
	}

	err = b.runChecked(ctx, "chmod", "+x", toolPath)
	if err != nil {
		return err
	}

	b.toolStaged = true

	return nil
}

// buildKernel stages patches and kernel configuration into the VM and
// runs the caller-supplied kernel build script with matching arguments.
func (b *build) buildKernel(ctx context.Context) error {
	b.cfg.Logger.Info("Building Linux kernel")

	var args []string

	if len(b.cfg.KernelPatches) > 0 {
		err := b.runChecked(ctx, "mkdir", "-p", "-m", "700", kernelPatchDir)
		if err != nil {
			return err
		}

		args = append(args, "--patches")

		for _, patch := range b.cfg.KernelPatches {
			dest := path.Join(kernelPatchDir, path.Base(patch))

			err = b.vm.TransferTo(ctx, dest, patch)
			if err != nil {
				return err //nolint:wrapcheck
			}

			args = append(args, dest)
		}
	}

	if b.cfg.Verbose > 0 {
		args = append(args, "--verbose")
	}

	if b.cfg.LoadKconfig != "" || b.cfg.SaveKconfig != "" {
		err := b.runChecked(ctx, "mkdir", "-p", "-m", "700", kernelConfigDir)
		if err != nil {
			return err
		}
	}

	if b.cfg.LoadKconfig != "" {
		dest := path.Join(kernelConfigDir, "kconfig_in")

		err := b.vm.TransferTo(ctx, dest, b.cfg.LoadKconfig)
		if err != nil {
			return err //nolint:wrapcheck
		}

		args = append(args, "--load-kconfig", dest)
	}

	kconfigOut := path.Join(kernelConfigDir, "kconfig_out")
	if b.cfg.SaveKconfig != "" {
		args = append(args, "--save-kconfig", kconfigOut)
	}

	if b.cfg.Menuconfig {
		args = append(args, "--menuconfig")
	}

	err := b.runScript(ctx, b.cfg.KernelScript, args...)
	if err != nil {
		return err
	}

	if b.cfg.SaveKconfig != "" {
		// Only transfer a configuration that built a kernel.
		err = b.vm.TransferFrom(ctx, b.cfg.SaveKconfig, kconfigOut)
		if err != nil {
			return err //nolint:wrapcheck
		}
	}

	return nil
}

// applyBinaries installs the vendor userspace into the rootfs. With a
// custom kernel it runs in target-overlay mode so the freshly built
// kernel and modules get installed instead of the stock ones.
func (b *build) applyBinaries(ctx context.Context) error {
	b.cfg.Logger.Info("Applying binaries to rootfs")

	command := []string{"sudo", applyBinaries}
	if b.cfg.kernelBuildRequested() {
		command = append(command, "--target-overlay")
	}

	return b.runChecked(ctx, command...)
}

func (b *build) patchExtlinux(ctx context.Context) error {
	b.cfg.Logger.Info("Patching extlinux.conf")

	err := b.stageTool(ctx)
	if err != nil {
		return err
	}

	return b.runChecked(ctx,
		"sudo", toolPath, "patch-extlinux", rootfsPath, b.cfg.Revision)
}

// runChrootScript transfers the script into the VM and runs it inside
// the rootfs chroot via the staged tib binary.
func (b *build) runChrootScript(ctx context.Context, script string) error {
	err := b.stageTool(ctx)
	if err != nil {
		return err
	}

	dest := path.Join(vm.ScriptDir, path.Base(script))

	err = b.vm.TransferTo(ctx, dest, script)
	if err != nil {
		return err //nolint:wrapcheck
	}

	err = b.runChecked(ctx, "chmod", "+x", dest)
	if err != nil {
		return err
	}

	return b.runChecked(ctx,
		"sudo", toolPath, "chroot", rootfsPath, "--script", dest)
}

func (b *build) enterChroot(ctx context.Context) error {
	err := b.stageTool(ctx)
	if err != nil {
		return err
	}

	// Interactive; the exit status of the shell is not a build failure.
	result, err := b.vm.Run(ctx,
		"sudo", toolPath, "chroot", rootfsPath, "--enter")
	if err != nil {
		return err //nolint:wrapcheck
	}

	if result.ExitCode != 0 {
		b.cfg.Logger.Warn("Interactive chroot shell exited non-zero",
			slog.Int("exitcode", result.ExitCode))
	}

	return nil
}

// assembleImage runs the vendor disk image creation script.
func (b *build) assembleImage(ctx context.Context) error {
	b.cfg.Logger.Info("Assembling SD card image")

	command := []string{
		"sudo", imageScript,
		"-o", imageOut,
		"-b", boardImageNames[b.cfg.Board],
	}

	if b.cfg.Board == "nano" {
		command = append(command, "-r", nanoSKUs[b.cfg.Revision])
	}

	return b.runChecked(ctx, command...)
}
