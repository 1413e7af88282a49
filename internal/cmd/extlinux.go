// SPDX-FileCopyrightText: 2024 The tib authors
//
// SPDX-License-Identifier: MIT

package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tegratools/tib/internal/extlinux"
)

func newPatchExtlinuxCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "patch-extlinux ROOTFS REVISION",
		Short: "Point extlinux.conf at the device tree built for the board",
		Long: "Insert an FDT line into the rootfs' extlinux.conf so the" +
			" bootloader loads the device tree installed by a custom" +
			" kernel build. Supported revisions: " +
			strings.Join(extlinux.Revisions(), ", ") + ".",
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			if os.Geteuid() != 0 {
				return ErrRootRequired
			}

			return extlinux.Patch(args[0], args[1])
		},
	}
}
