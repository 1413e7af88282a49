// SPDX-FileCopyrightText: 2024 The tib authors
//
// SPDX-License-Identifier: MIT

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/tegratools/tib/internal/initrd"
)

func newInitrdCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "initrd DIR",
		Short: "Pack a directory tree into a bootable initrd archive",
		Long: "Pack the given directory tree into a gzip-compressed newc" +
			" cpio archive, e.g. to regenerate a rootfs' boot/initrd after" +
			" kernel modules changed.",
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return initrd.Create(out, args[0])
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "initrd.gz",
		"output file for the archive")

	return cmd
}
