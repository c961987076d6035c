// SPDX-License-Identifier: GPL-3.0-or-later

// Package archive reads and writes the local mbox archives, optionally gzip
// or bzip2 compressed as a whole.
package archive

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/CrawX/go-imap-backup/domain"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
)

var ErrAppendUnsupported = errors.New("bzip2 archives cannot be appended to")

// File describes the archive of one folder.
type File struct {
	Path        string
	Compression domain.Compression
	// Overwrite replaces the archive instead of appending to it.
	Overwrite bool
}

func (f File) checkAppend() error {
	if !f.Overwrite && f.Compression == domain.CompressionBzip2 {
		return fmt.Errorf("%s: %w", f.Path, ErrAppendUnsupported)
	}
	return nil
}

// Remove deletes an existing archive when it is to be overwritten. It reports
// whether a file was removed.
func (f File) Remove() (bool, error) {
	if !f.Overwrite {
		return false, nil
	}

	err := os.Remove(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("could not delete archive: %w", err)
	}
	return true, nil
}

type decompressor struct {
	io.Reader
	closers []io.Closer
}

func (d *decompressor) Close() error {
	var err error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if cerr := d.closers[i].Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// openReader opens the archive through the decompression path of its mode.
// An archive that exists but is empty reads as empty for every mode.
func (f File) openReader() (io.ReadCloser, error) {
	fd, err := os.Open(f.Path)
	if err != nil {
		return nil, err
	}

	info, err := fd.Stat()
	if err != nil {
		fd.Close()
		return nil, fmt.Errorf("could not stat archive: %w", err)
	}
	if info.Size() == 0 {
		return &decompressor{Reader: fd, closers: []io.Closer{fd}}, nil
	}

	switch f.Compression {
	case domain.CompressionGzip:
		gz, err := gzip.NewReader(fd)
		if err != nil {
			fd.Close()
			return nil, fmt.Errorf("could not open gzip archive: %w", err)
		}
		return &decompressor{Reader: gz, closers: []io.Closer{fd, gz}}, nil
	case domain.CompressionBzip2:
		bz, err := bzip2.NewReader(fd, nil)
		if err != nil {
			fd.Close()
			return nil, fmt.Errorf("could not open bzip2 archive: %w", err)
		}
		return &decompressor{Reader: bz, closers: []io.Closer{fd, bz}}, nil
	}

	return &decompressor{Reader: fd, closers: []io.Closer{fd}}, nil
}
