// SPDX-FileCopyrightText: 2024 The tib authors
//
// SPDX-License-Identifier: MIT

package cmd

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSubcommands(t *testing.T) {
	cmd := New()

	expected := []string{"build", "chroot", "patch-extlinux", "initrd"}

	for _, name := range expected {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
}

func TestSetupLogging(t *testing.T) {
	t.Cleanup(func() {
		slog.SetDefault(slog.New(slog.NewTextHandler(
			os.Stderr, &slog.HandlerOptions{})))
	})

	var buf bytes.Buffer

	require.NoError(t, setupLogging(&buf, 0, ""))

	slog.Debug("hidden")
	slog.Info("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()

	require.NoError(t, setupLogging(&buf, 1, ""))

	slog.Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestSetupLoggingFile(t *testing.T) {
	t.Cleanup(func() {
		slog.SetDefault(slog.New(slog.NewTextHandler(
			os.Stderr, &slog.HandlerOptions{})))
	})

	logFile := filepath.Join(t.TempDir(), "tib.log")

	var buf bytes.Buffer

	require.NoError(t, setupLogging(&buf, 0, logFile))

	slog.Info("logged twice")

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "logged twice")
	assert.Contains(t, buf.String(), "logged twice")

	require.Error(t, setupLogging(&buf, 0,
		filepath.Join(t.TempDir(), "missing", "tib.log")))
}
