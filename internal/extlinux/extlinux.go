// SPDX-FileCopyrightText: 2024 The tib authors
//
// SPDX-License-Identifier: MIT

// Package extlinux patches the extlinux.conf of a rootfs so the
// bootloader loads the device tree matching the board revision. Needed
// after installing a custom-built kernel, since the stock configuration
// relies on the device tree baked into the boot partition.
package extlinux

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

const confPath = "boot/extlinux/extlinux.conf"

// dtbByRevision maps a board revision to the device tree blob installed
// by the kernel build, relative to the rootfs root.
var dtbByRevision = map[string]string{
	"a01": "boot/tegra210-p3448-0000-p3449-0000-a01.dtb",
	"a02": "boot/tegra210-p3448-0000-p3449-0000-a02.dtb",
	"b00": "boot/tegra210-p3448-0000-p3449-0000-b00.dtb",
}

// Revisions returns the supported board revisions.
func Revisions() []string {
	return []string{"a01", "a02", "b00"}
}

// Patch inserts an FDT line for the revision's device tree into the
// primary boot entry of the rootfs' extlinux.conf. The original file is
// kept as a timestamped backup next to it. Patching an already patched
// configuration is a no-op.
func Patch(rootfs, revision string) error {
	dtb, exists := dtbByRevision[revision]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnsupportedRevision, revision)
	}

	dtbPath := filepath.Join(rootfs, dtb)
	if _, err := os.Stat(dtbPath); err != nil {
		return fmt.Errorf("device tree: %w", err)
	}

	conf := filepath.Join(rootfs, confPath)

	content, err := os.ReadFile(conf)
	if err != nil {
		return fmt.Errorf("read extlinux.conf: %w", err)
	}

	patched, err := insertFDT(string(content), path.Join("/", dtb))
	if err != nil {
		return err
	}

	if patched == "" {
		slog.Warn("extlinux.conf already carries an FDT line, not patching",
			slog.String("path", conf))

		return nil
	}

	info, err := os.Stat(conf)
	if err != nil {
		return fmt.Errorf("stat extlinux.conf: %w", err)
	}

	backup := fmt.Sprintf("%s.backup.%d", conf, time.Now().Unix())

	err = os.WriteFile(backup, content, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("back up extlinux.conf: %w", err)
	}

	slog.Info("Backed up extlinux.conf", slog.String("backup", backup))

	err = os.WriteFile(conf, []byte(patched), info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("write extlinux.conf: %w", err)
	}

	slog.Info("Patched extlinux.conf",
		slog.String("path", conf),
		slog.String("fdt", path.Join("/", dtb)),
	)

	return nil
}

// insertFDT places an FDT line directly after the INITRD line of the
// first boot entry, matching its indentation. It returns the empty
// string if an FDT line is already present.
func insertFDT(content, dtb string) (string, error) {
	lines := strings.Split(content, "\n")

	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "FDT ") {
			return "", nil
		}
	}

	for idx, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "INITRD ") {
			continue
		}

		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		fdtLine := indent + "FDT " + dtb

		lines = append(lines[:idx+1],
			append([]string{fdtLine}, lines[idx+1:]...)...)

		return strings.Join(lines, "\n"), nil
	}

	return "", ErrNoInitrdLine
}
