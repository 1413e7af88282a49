// SPDX-FileCopyrightText: 2024 The tib authors
//
// SPDX-License-Identifier: MIT

package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

const logFileMode = 0o644

// setupLogging configures the process-wide logger once, before any
// session is constructed. Library packages log through the default
// logger and never reconfigure it.
func setupLogging(writer io.Writer, verbosity int, logFile string) error {
	if logFile != "" {
		f, err := os.OpenFile(
			logFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, logFileMode)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}

		// Kept open for the process lifetime.
		writer = io.MultiWriter(writer, f)
	}

	level := slog.LevelInfo
	if verbosity > 0 {
		level = slog.LevelDebug
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(
		writer,
		&slog.HandlerOptions{
			Level: level,
		},
	)))

	return nil
}
