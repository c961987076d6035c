// SPDX-License-Identifier: GPL-3.0-or-later
package domain

import "fmt"

type Compression string

const (
	CompressionNone  = Compression("none")
	CompressionGzip  = Compression("gzip")
	CompressionBzip2 = Compression("bzip2")
)

func ParseCompression(s string) (Compression, error) {
	switch c := Compression(s); c {
	case CompressionNone, CompressionGzip, CompressionBzip2:
		return c, nil
	case "":
		return CompressionNone, nil
	}
	return "", fmt.Errorf("invalid compression type %q, use none, gzip or bzip2", s)
}

// Extension is the archive file suffix for the compression mode.
func (c Compression) Extension() string {
	switch c {
	case CompressionGzip:
		return ".mbox.gz"
	case CompressionBzip2:
		return ".mbox.bz2"
	}
	return ".mbox"
}

// Folder is a remote folder and the archive it is backed up to. Created once
// per run by the folder enumerator.
type Folder struct {
	Name          string
	LocalFilename string
}

// FolderReport summarizes one folder sync. It is never persisted.
type FolderReport struct {
	Folder Folder
	New    int
	Local  int
	Remote int
	// Total size of the bodies written this run and the largest of them.
	TotalBytes      int64
	MaxMessageBytes int64
	MalformedLocal  int
}

// Progress is notified once per downloaded message.
type Progress interface {
	Add(num int) error
	Finish() error
}
