// SPDX-FileCopyrightText: 2024 The tib authors
//
// SPDX-License-Identifier: MIT

package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandArgv(t *testing.T) {
	tests := []struct {
		name     string
		cmd      Command
		expected []string
	}{
		{
			name:     "plain",
			cmd:      Command{Args: []string{"mount", "/dev", "/mnt"}},
			expected: []string{"mount", "/dev", "/mnt"},
		},
		{
			name:     "sudo prefixed",
			cmd:      Command{Args: []string{"umount", "/mnt"}, Sudo: true},
			expected: []string{"sudo", "umount", "/mnt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.cmd.argv())
		})
	}
}
