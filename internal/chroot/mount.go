// SPDX-FileCopyrightText: 2024 The tib authors
//
// SPDX-License-Identifier: MIT

package chroot

import (
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// MountSpec describes one mount operation inside a rootfs. Specs are
// created by [DefaultMounts] and consumed in order by [QemuSession];
// they are never mutated after creation.
type MountSpec struct {
	Source  string
	Target  string
	FSType  string
	Options []string
}

// mountArgs returns the mount(8) argument vector for the spec. Options
// are sorted and comma-joined.
func (m *MountSpec) mountArgs() []string {
	args := []string{"mount"}

	if m.FSType != "" {
		args = append(args, "-t", m.FSType)
	}

	if len(m.Options) > 0 {
		options := slices.Clone(m.Options)
		slices.Sort(options)
		args = append(args, "-o", strings.Join(options, ","))
	}

	return append(args, m.Source, m.Target)
}

// DefaultMounts returns the mount plan for a functional chroot in the
// given rootfs. The options are not meant to sandbox the host, only to
// protect it from accidental damage.
//
// The plan is, in order: sysfs, proc, a read-only bind of /dev, devpts,
// and a tmpfs on /tmp. /tmp stays executable because staged scripts run
// from it. If the rootfs layout allows it, the host's /etc/resolv.conf
// is bind mounted last so name resolution works inside the chroot.
func DefaultMounts(rootfs string) []MountSpec {
	mounts := []MountSpec{
		{
			Source:  "sysfs",
			Target:  filepath.Join(rootfs, "sys"),
			FSType:  "sysfs",
			Options: []string{"ro", "nosuid", "nodev", "noexec", "relatime"},
		},
		{
			Source:  "proc",
			Target:  filepath.Join(rootfs, "proc"),
			FSType:  "proc",
			Options: []string{"ro", "nosuid", "nodev", "noexec", "relatime"},
		},
		{
			Source:  "/dev",
			Target:  filepath.Join(rootfs, "dev"),
			Options: []string{"bind", "ro"},
		},
		{
			Source: "devpts",
			Target: filepath.Join(rootfs, "dev", "pts"),
			FSType: "devpts",
			Options: []string{
				"rw", "nosuid", "noexec", "relatime",
				"gid=5", "mode=620", "ptmxmode=000",
			},
		},
		{
			Source: "tmpfs",
			Target: filepath.Join(rootfs, "tmp"),
			FSType: "tmpfs",
		},
	}

	if target := resolvConfTarget(rootfs); target != "" {
		mounts = append(mounts, MountSpec{
			Source:  "/etc/resolv.conf",
			Target:  target,
			Options: []string{"bind", "ro"},
		})
	}

	return mounts
}

// resolvConfTarget picks the destination for the resolv.conf bind mount.
// Rootfs images managed by resolvconf or systemd-resolved symlink
// /etc/resolv.conf into /run, which is not mounted inside the chroot, so
// the bind must land on the file in /run/resolvconf instead. A plain
// regular /etc/resolv.conf is bound over directly. Any other layout gets
// no bind at all.
func resolvConfTarget(rootfs string) string {
	runResolv := filepath.Join(rootfs, "run", "resolvconf", "resolv.conf")
	etcResolv := filepath.Join(rootfs, "etc", "resolv.conf")

	switch {
	case exists(runResolv) && isSymlink(etcResolv):
		return runResolv
	case exists(etcResolv) && !isSymlink(etcResolv):
		return etcResolv
	default:
		slog.Warn("No resolv.conf location found in rootfs,"+
			" network may not be reachable inside the chroot",
			slog.String("run", runResolv),
			slog.String("etc", etcResolv),
		)

		return ""
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func isSymlink(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.Mode()&os.ModeSymlink != 0
}
