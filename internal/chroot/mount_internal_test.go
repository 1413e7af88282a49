// SPDX-FileCopyrightText: 2024 The tib authors
//
// SPDX-License-Identifier: MIT

package chroot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMountArgs(t *testing.T) {
	tests := []struct {
		name     string
		spec     MountSpec
		expected []string
	}{
		{
			name: "plain bind",
			spec: MountSpec{
				Source: "/etc/resolv.conf",
				Target: "/rootfs/etc/resolv.conf",
			},
			expected: []string{
				"mount", "/etc/resolv.conf", "/rootfs/etc/resolv.conf",
			},
		},
		{
			name: "fstype only",
			spec: MountSpec{
				Source: "tmpfs",
				Target: "/rootfs/tmp",
				FSType: "tmpfs",
			},
			expected: []string{
				"mount", "-t", "tmpfs", "tmpfs", "/rootfs/tmp",
			},
		},
		{
			name: "options are sorted and joined",
			spec: MountSpec{
				Source:  "proc",
				Target:  "/rootfs/proc",
				FSType:  "proc",
				Options: []string{"ro", "nosuid", "nodev"},
			},
			expected: []string{
				"mount", "-t", "proc", "-o", "nodev,nosuid,ro",
				"proc", "/rootfs/proc",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.spec.mountArgs())
		})
	}
}

func TestMountArgsDoesNotMutateSpec(t *testing.T) {
	spec := MountSpec{
		Source:  "sysfs",
		Target:  "/rootfs/sys",
		Options: []string{"ro", "noexec"},
	}

	_ = spec.mountArgs()

	assert.Equal(t, []string{"ro", "noexec"}, spec.Options)
}
