// SPDX-FileCopyrightText: 2024 The tib authors
//
// SPDX-License-Identifier: MIT

package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/tegratools/tib/internal/chroot"
)

func newChrootCommand() *cobra.Command {
	var (
		script   string
		proot    bool
		enter    bool
		arch     = chroot.DefaultArch
		qemu     string
		userspec string
	)

	cmd := &cobra.Command{
		Use:   "chroot ROOTFS [COMMAND...]",
		Short: "Run commands or scripts inside a foreign-architecture rootfs",
		Long: "Run commands or scripts inside the rootfs through a" +
			" userspace emulator. The default variant uses chroot plus the" +
			" usual pseudo filesystem mounts and needs root; --proot needs" +
			" neither, but the rootfs must be owned by the calling user.",
		Args: cobra.MinimumNArgs(1),
		Example: `  sudo tib chroot rootfs -- apt-get update
  sudo tib chroot rootfs --script install.sh
  sudo tib chroot rootfs --enter
  tib chroot rootfs --proot --enter`,
		RunE: func(cmd *cobra.Command, args []string) error {
			command := args[1:]

			if len(command) == 0 && script == "" && !enter {
				return ErrNothingToDo
			}

			session, err := chroot.New(chroot.Config{
				Rootfs:   args[0],
				Arch:     arch,
				Emulator: qemu,
				Userspec: userspec,
				Proot:    proot,
			})
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			err = session.Enter(ctx)
			if err != nil {
				return err
			}
			defer session.Close(context.WithoutCancel(ctx))

			if len(command) > 0 {
				result, err := session.Run(ctx, command...)
				if err != nil {
					return err
				}

				err = result.Check()
				if err != nil {
					return err
				}
			}

			if script != "" {
				result, err := session.RunScript(ctx, script)
				if err != nil {
					return err
				}

				err = result.Check()
				if err != nil {
					return err
				}
			}

			if enter {
				return session.Shell(ctx)
			}

			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&script, "script", "",
		"script to copy into the rootfs and run")
	flags.BoolVar(&proot, "proot", false,
		"use proot instead of chroot (no root required)")
	flags.BoolVar(&enter, "enter", false,
		"run an interactive shell inside the rootfs")
	flags.Var(&arch, "arch",
		"target architecture (selects the emulator binary)")
	flags.StringVar(&qemu, "qemu", "",
		"explicit path to the emulator binary")
	flags.StringVar(&userspec, "userspec", "",
		"USER:GROUP to use inside the chroot")

	return cmd
}
