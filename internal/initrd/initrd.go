// SPDX-FileCopyrightText: 2024 The tib authors
//
// SPDX-License-Identifier: MIT

// Package initrd repacks a directory tree into a gzip-compressed newc
// cpio archive, the format the kernel boots as an initrd. Used to
// regenerate a rootfs' boot/initrd after kernel modules changed.
package initrd

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Write packs the tree rooted at dir into w as a gzip-compressed cpio
// archive. Regular files, directories and symbolic links are archived;
// anything else (device nodes, sockets) is skipped with an error.
func Write(w io.Writer, dir string) error {
	compressor := gzip.NewWriter(w)
	archive := newCPIOWriter(compressor)

	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if path == dir {
			return nil
		}

		name, err := filepath.Rel(dir, path)
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", path, err)
		}

		return writeEntry(archive, name, path, entry)
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", dir, err)
	}

	err = archive.Close()
	if err != nil {
		return err
	}

	err = compressor.Close()
	if err != nil {
		return fmt.Errorf("close compressor: %w", err)
	}

	return nil
}

func writeEntry(
	archive *cpioWriter,
	name string,
	path string,
	entry fs.DirEntry,
) error {
	info, err := entry.Info()
	if err != nil {
		return fmt.Errorf("read info for %s: %w", path, err)
	}

	switch {
	case entry.IsDir():
		return archive.writeDirectory(name, info.Mode())
	case info.Mode()&fs.ModeSymlink != 0:
		target, err := os.Readlink(path)
		if err != nil {
			return fmt.Errorf("readlink %s: %w", path, err)
		}

		return archive.writeLink(name, target)
	case info.Mode().IsRegular():
		source, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer source.Close()

		return archive.writeRegular(name, info, source)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFileType, path)
	}
}

// Create writes the archive for dir to the file at path.
func Create(path, dir string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	err = Write(out, dir)
	if err != nil {
		_ = out.Close()
		return err
	}

	err = out.Close()
	if err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	return nil
}

var ErrUnsupportedFileType = errors.New("unsupported file type")
