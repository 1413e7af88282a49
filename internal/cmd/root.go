// SPDX-FileCopyrightText: 2024 The tib authors
//
// SPDX-License-Identifier: MIT

// Package cmd wires the tib command line interface.
package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

type rootOptions struct {
	verbose int
	logFile string
}

// New creates the root command with all subcommands attached.
func New() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "tib",
		Short: "Build custom, flashable SD card images for Tegra boards",
		Long: "tib customizes an embedded rootfs and kernel inside a" +
			" disposable VM and assembles a flashable SD card image.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return setupLogging(os.Stderr, opts.verbose, opts.logFile)
		},
	}

	flags := cmd.PersistentFlags()
	flags.CountVarP(&opts.verbose, "verbose", "v",
		"increase log verbosity (repeatable)")
	flags.StringVarP(&opts.logFile, "log-file", "l", "",
		"duplicate the log to this file")

	cmd.AddCommand(
		newBuildCommand(opts),
		newChrootCommand(),
		newPatchExtlinuxCommand(),
		newInitrdCommand(),
	)

	return cmd
}

// Execute runs the CLI. An interrupt signal cancels the command context;
// sessions convert the cancellation into ordered teardown.
func Execute() int {
	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, unix.SIGTERM)
	defer stop()

	err := New().ExecuteContext(ctx)
	if err != nil {
		slog.Error(err.Error())
		return 1
	}

	return 0
}
