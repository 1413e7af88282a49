// SPDX-FileCopyrightText: 2024 The tib authors
//
// SPDX-License-Identifier: MIT

package host_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tegratools/tib/internal/host"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestExecutorRunCapture(t *testing.T) {
	executor := host.New()

	result, err := executor.Run(context.Background(), host.Command{
		Args:    []string{"sh", "-c", "echo hello"},
		Capture: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "hello\n", string(result.Output))
	assert.Equal(t, []string{"sh", "-c", "echo hello"}, result.Args)
	require.NoError(t, result.Check())
}

func TestExecutorRunNonZeroExit(t *testing.T) {
	executor := host.New()

	result, err := executor.Run(context.Background(), host.Command{
		Args: []string{"sh", "-c", "exit 42"},
	})
	require.NoError(t, err, "non-zero exit is data, not an error")

	assert.Equal(t, 42, result.ExitCode)

	err = result.Check()
	require.ErrorIs(t, err, &host.ExitError{})
	assert.Contains(t, err.Error(), "42")
}

func TestExecutorRunStartError(t *testing.T) {
	executor := host.New()

	_, err := executor.Run(context.Background(), host.Command{
		Args: []string{"/nonexistent/binary"},
	})

	var startErr *host.StartError

	require.ErrorAs(t, err, &startErr)
}

func TestExecutorRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	executor := host.New()

	_, err := executor.Run(ctx, host.Command{
		Args: []string{"sleep", "10"},
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestExitErrorIs(t *testing.T) {
	assert.ErrorIs(t, error(&host.ExitError{}), &host.ExitError{})
	assert.NotErrorIs(t, assert.AnError, &host.ExitError{})
}
