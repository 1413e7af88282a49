// SPDX-FileCopyrightText: 2024 The tib authors
//
// SPDX-License-Identifier: MIT

package extlinux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertFDT(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		expected    string
		expectedErr error
	}{
		{
			name: "inserted after initrd with indentation",
			content: "LABEL primary\n" +
				"      MENU LABEL primary kernel\n" +
				"      LINUX /boot/Image\n" +
				"      INITRD /boot/initrd\n" +
				"      APPEND ${cbootargs}\n",
			expected: "LABEL primary\n" +
				"      MENU LABEL primary kernel\n" +
				"      LINUX /boot/Image\n" +
				"      INITRD /boot/initrd\n" +
				"      FDT /boot/some.dtb\n" +
				"      APPEND ${cbootargs}\n",
		},
		{
			name: "tab indentation preserved",
			content: "LABEL primary\n" +
				"\tINITRD /boot/initrd\n",
			expected: "LABEL primary\n" +
				"\tINITRD /boot/initrd\n" +
				"\tFDT /boot/some.dtb\n",
		},
		{
			name: "already patched",
			content: "LABEL primary\n" +
				"      INITRD /boot/initrd\n" +
				"      FDT /boot/other.dtb\n",
			expected: "",
		},
		{
			name: "no initrd line",
			content: "LABEL primary\n" +
				"      LINUX /boot/Image\n",
			expectedErr: ErrNoInitrdLine,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patched, err := insertFDT(tt.content, "/boot/some.dtb")
			require.ErrorIs(t, err, tt.expectedErr)
			assert.Equal(t, tt.expected, patched)
		})
	}
}
