// SPDX-License-Identifier: GPL-3.0-or-later
package archive

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/CrawX/go-imap-backup/domain"
	"github.com/CrawX/go-imap-backup/mail"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
)

// SeparatorTimeFormat is the date part of the "From - " line that starts
// every stored message, as expected by mutt and thunderbird.
const SeparatorTimeFormat = "Mon Jan 02 15:04:05 2006"

// mboxSeparator starts a new message for mbox readers wherever it begins a
// line.
const mboxSeparator = "From "

// Writer appends messages to an archive. It must be closed to flush the
// compressed stream.
type Writer struct {
	file       *os.File
	compressor io.WriteCloser
	buf        *bufio.Writer
}

// OpenWriter opens the archive for writing, creating it if absent. Appending
// starts a new gzip member for gzip archives; bzip2 archives can only be
// written from scratch.
func OpenWriter(f File) (*Writer, error) {
	if err := f.checkAppend(); err != nil {
		return nil, err
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if f.Overwrite {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}
	fd, err := os.OpenFile(f.Path, flags, 0o600)
	if err != nil {
		return nil, fmt.Errorf("could not open archive for writing: %w", err)
	}

	w := &Writer{file: fd}
	var out io.Writer = fd
	switch f.Compression {
	case domain.CompressionGzip:
		gz, err := gzip.NewWriterLevel(fd, gzip.BestCompression)
		if err != nil {
			fd.Close()
			return nil, fmt.Errorf("could not start gzip stream: %w", err)
		}
		w.compressor, out = gz, gz
	case domain.CompressionBzip2:
		bz, err := bzip2.NewWriter(fd, &bzip2.WriterConfig{Level: bzip2.BestCompression})
		if err != nil {
			fd.Close()
			return nil, fmt.Errorf("could not start bzip2 stream: %w", err)
		}
		w.compressor, out = bz, bz
	}
	w.buf = bufio.NewWriterSize(out, 512*1024)

	return w, nil
}

// Append stores one message: the separator line, an explicit Message-Id
// header for synthesized ids, the body without carriage returns and
// surrounding whitespace, and a blank line. Body lines starting with "From "
// are stored as ">From " and unescaped again by the mbox reader. It returns
// the body size before escaping.
func (w *Writer) Append(messageId string, body []byte, t time.Time) (int64, error) {
	var header strings.Builder
	header.WriteString(mboxSeparator + "- ")
	header.WriteString(t.Format(SeparatorTimeFormat))
	header.WriteString("\n")
	if mail.IsSynthesized(messageId) {
		header.WriteString(mail.MessageIdHeader + ": " + messageId + "\n")
	}

	text := strings.TrimSpace(strings.ReplaceAll(string(body), "\r", ""))

	for _, s := range []string{header.String(), escapeFromLines(text), "\n\n"} {
		if _, err := w.buf.WriteString(s); err != nil {
			return 0, fmt.Errorf("could not write message: %w", err)
		}
	}

	return int64(len(text)), nil
}

func (w *Writer) Close() error {
	err := w.buf.Flush()
	if w.compressor != nil {
		if cerr := w.compressor.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if cerr := w.file.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("could not close archive: %w", err)
	}
	return nil
}

func escapeFromLines(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, mboxSeparator) {
			lines[i] = ">" + line
		}
	}
	return strings.Join(lines, "\n")
}
