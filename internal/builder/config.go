// SPDX-FileCopyrightText: 2024 The tib authors
//
// SPDX-License-Identifier: MIT

package builder

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/tegratools/tib/internal/extlinux"
	"github.com/tegratools/tib/internal/vm"
)

// Paths inside the VM. The vendor BSP unpacks into the ubuntu user's
// home, and the vendor scripts hardcode that layout.
const (
	vmHome        = "/home/ubuntu"
	l4tPath       = vmHome + "/Linux_for_Tegra"
	rootfsPath    = l4tPath + "/rootfs"
	applyBinaries = l4tPath + "/apply_binaries.sh"
	imageScript   = l4tPath + "/tools/jetson-disk-image-creator.sh"
	imageOut      = vmHome + "/sdcard.img"

	kernelPatchDir  = "/tmp/kernel_patches"
	kernelConfigDir = "/tmp/kernel_configs"

	// toolPath is where the running tib binary is staged inside the VM,
	// so chroot and extlinux steps reuse this same program.
	toolPath = vm.ScriptDir + "/tib"
)

// boardImageNames maps a board tag to the name the vendor disk image
// script expects.
var boardImageNames = map[string]string{
	"nano": "jetson-nano",
	"nx":   "jetson-xavier-nx-devkit",
}

// nanoSKUs maps a nano board revision to the image script's -r value.
var nanoSKUs = map[string]string{
	"a01": "100",
	"a02": "200",
	"b00": "300",
}

// Boards returns the supported board tags.
func Boards() []string {
	return []string{"nano", "nx"}
}

// Config describes one image build.
type Config struct {
	// Board to build an image for ("nano" or "nx").
	Board string

	// Revision of the board, used for device tree selection on nano.
	Revision string

	// OutputPath is the host path the finished image is transferred to.
	OutputPath string

	// SetupScripts run first inside the VM: dependency installation, BSP
	// and rootfs download, toolchain installation. Opaque executables
	// supplied by the caller.
	SetupScripts []string

	// Scripts are additional user scripts run inside the VM after setup.
	Scripts []string

	// ChrootScripts run inside the rootfs chroot, as the target
	// architecture.
	ChrootScripts []string

	// KernelScript builds the kernel inside the VM. Required when
	// KernelPatches or Menuconfig are set.
	KernelScript string

	// KernelPatches are applied to the kernel source before building.
	KernelPatches []string

	// Menuconfig runs the interactive kernel configuration menu.
	Menuconfig bool

	// LoadKconfig and SaveKconfig load/save the kernel configuration
	// from/to host files.
	LoadKconfig string
	SaveKconfig string

	// EnterChroot drops into an interactive shell inside the rootfs
	// before image assembly.
	EnterChroot bool

	// Tool is the host path of the tib binary staged into the VM for
	// chroot and extlinux steps. Defaults to the running executable.
	Tool string

	// Verbose is passed through to scripts and the VM control plane.
	Verbose int

	// Logger receives pipeline progress. Defaults to [slog.Default].
	Logger *slog.Logger

	// VM configures the build VM.
	VM vm.Config
}

// Validate fails fast on anything that would only surface mid-build:
// unknown board or revision, missing input files.
func (c *Config) Validate() error {
	if _, exists := boardImageNames[c.Board]; !exists {
		return fmt.Errorf("%w: %q", ErrUnknownBoard, c.Board)
	}

	if c.Board == "nano" {
		if _, exists := nanoSKUs[c.Revision]; !exists {
			return fmt.Errorf("%w: %q", ErrUnknownRevision, c.Revision)
		}
	}

	if c.OutputPath == "" {
		return ErrNoOutputPath
	}

	if c.kernelBuildRequested() && c.KernelScript == "" {
		return ErrNoKernelScript
	}

	inputs := make([]string, 0,
		len(c.SetupScripts)+len(c.Scripts)+
			len(c.ChrootScripts)+len(c.KernelPatches)+2)
	inputs = append(inputs, c.SetupScripts...)
	inputs = append(inputs, c.Scripts...)
	inputs = append(inputs, c.ChrootScripts...)
	inputs = append(inputs, c.KernelPatches...)

	if c.KernelScript != "" {
		inputs = append(inputs, c.KernelScript)
	}

	if c.LoadKconfig != "" {
		inputs = append(inputs, c.LoadKconfig)
	}

	for _, input := range inputs {
		info, err := os.Stat(input)
		if err != nil {
			return fmt.Errorf("input file: %w", err)
		}

		if !info.Mode().IsRegular() {
			return fmt.Errorf("%w: %s", ErrNotRegularFile, input)
		}
	}

	return nil
}

func (c *Config) kernelBuildRequested() bool {
	return len(c.KernelPatches) > 0 || c.Menuconfig
}

// Revisions returns the board revisions accepted by Validate.
func Revisions() []string {
	return extlinux.Revisions()
}
