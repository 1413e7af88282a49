// SPDX-FileCopyrightText: 2024 The tib authors
//
// SPDX-License-Identifier: MIT

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tegratools/tib/internal/builder"
)

func newBuildCommand(root *rootOptions) *cobra.Command {
	cfg := builder.Config{}

	cmd := &cobra.Command{
		Use:   "build BOARD",
		Short: "Build a flashable SD card image inside a disposable VM",
		Long: fmt.Sprintf(
			"Build a flashable SD card image for one of: %s.\n"+
				"All build steps run inside a multipass VM that is deleted"+
				" when the build finishes, fails or is interrupted.",
			strings.Join(builder.Boards(), ", ")),
		Args:      cobra.ExactArgs(1),
		ValidArgs: builder.Boards(),
		Example: `  tib build nano
  tib build nano --kernel-script kernel.sh --kernel-patches camera.patch --menuconfig
  tib build nx --chroot-scripts install.sh --out nx.img`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Board = args[0]
			cfg.Verbose = root.verbose
			cfg.VM.Verbose = root.verbose

			return builder.Build(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cfg.Revision, "revision", "r", "b00",
		"board revision ("+strings.Join(builder.Revisions(), ", ")+")")
	flags.StringVarP(&cfg.OutputPath, "out", "o", "sdcard.img",
		"host path for the finished image")
	flags.StringSliceVar(&cfg.SetupScripts, "setup-scripts", nil,
		"setup scripts run first inside the VM (deps, BSP, rootfs, toolchain)")
	flags.StringSliceVar(&cfg.Scripts, "scripts", nil,
		"additional scripts to copy into the VM and run")
	flags.StringSliceVar(&cfg.ChrootScripts, "chroot-scripts", nil,
		"scripts to run inside the rootfs chroot (as the target arch)")
	flags.StringVar(&cfg.KernelScript, "kernel-script", "",
		"script that builds the kernel inside the VM")
	flags.StringSliceVar(&cfg.KernelPatches, "kernel-patches", nil,
		"kernel patches to apply at the kernel source root")
	flags.BoolVar(&cfg.Menuconfig, "menuconfig", false,
		"customize the kernel config interactively")
	flags.StringVar(&cfg.LoadKconfig, "load-kconfig", "",
		"kernel config file to load")
	flags.StringVar(&cfg.SaveKconfig, "save-kconfig", "",
		"host file to save the built kernel config to")
	flags.BoolVar(&cfg.EnterChroot, "enter-chroot", false,
		"enter an interactive shell in the rootfs before image assembly")

	flags.StringVar(&cfg.VM.Name, "name", "", "VM instance name")
	flags.IntVar(&cfg.VM.CPUs, "cpus", 0, "VM CPU count (0: all host CPUs)")
	flags.StringVar(&cfg.VM.Disk, "disk", "", "VM disk size")
	flags.StringVarP(&cfg.VM.Memory, "mem", "m", "", "VM memory cap")
	flags.StringVar(&cfg.VM.Image, "image", "", "VM base image")
	flags.BoolVar(&cfg.VM.KeepVM, "no-cleanup", false,
		"do not delete the VM when done")

	return cmd
}
