// SPDX-FileCopyrightText: 2024 The tib authors
//
// SPDX-License-Identifier: MIT

package initrd

import (
	"fmt"
	"io"
	"io/fs"

	"github.com/cavaliergopher/cpio"
)

const numLinks = 2

// cpioWriter writes archive entries in the newc format the kernel
// expects for initrds.
type cpioWriter struct {
	w *cpio.Writer
}

func newCPIOWriter(w io.Writer) *cpioWriter {
	return &cpioWriter{cpio.NewWriter(w)}
}

// Close closes the writer. Flush is called by the underlying closer.
func (w *cpioWriter) Close() error {
	err := w.w.Close()
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}

	return nil
}

func (w *cpioWriter) writeHeader(hdr *cpio.Header) error {
	err := w.w.WriteHeader(hdr)
	if err != nil {
		return fmt.Errorf("write header for %s: %w", hdr.Name, err)
	}

	return nil
}

// writeDirectory adds a directory entry for the given path.
func (w *cpioWriter) writeDirectory(path string, mode fs.FileMode) error {
	header := &cpio.Header{
		Name:  path,
		Mode:  cpio.TypeDir | cpio.FileMode(mode.Perm()),
		Links: numLinks,
	}

	return w.writeHeader(header)
}

// writeLink adds a symbolic link for the given path pointing to target.
func (w *cpioWriter) writeLink(path, target string) error {
	header := &cpio.Header{
		Name: path,
		Mode: cpio.TypeSymlink | cpio.ModePerm,
		Size: int64(len(target)),
	}

	err := w.writeHeader(header)
	if err != nil {
		return err
	}

	// Body of a link is the path of the target file.
	_, err = w.w.Write([]byte(target))
	if err != nil {
		return fmt.Errorf("write body for %s: %w", path, err)
	}

	return nil
}

// writeRegular copies an existing file into the archive.
func (w *cpioWriter) writeRegular(path string, info fs.FileInfo, source io.Reader) error {
	header, err := cpio.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("create header: %w", err)
	}

	header.Name = path

	err = w.writeHeader(header)
	if err != nil {
		return err
	}

	_, err = io.Copy(w.w, source)
	if err != nil {
		return fmt.Errorf("write body for %s: %w", path, err)
	}

	return nil
}
