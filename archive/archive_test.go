// SPDX-License-Identifier: GPL-3.0-or-later
package archive

import (
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/CrawX/go-imap-backup/domain"
	"github.com/CrawX/go-imap-backup/mail"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var stamp = time.Date(2013, time.November, 2, 15, 1, 23, 0, time.UTC)

const threeStored = "From - Sat Nov 02 15:01:23 2013\n" +
	"Message-Id: <a@example.com>\nSubject: a\n\nbody a\n\n" +
	"From - Sat Nov 02 15:01:23 2013\n" +
	"Subject: no id\n\nbody\n\n" +
	"From - Sat Nov 02 15:01:23 2013\n" +
	"Message-ID:\n <b@example.com>\n\nbody b\n\n"

func testScanner(warnings bool) (*Scanner, *test.Hook) {
	logger, hook := test.NewNullLogger()
	return &Scanner{messageIdWarnings: warnings, l: logger}, hook
}

func writeArchive(t *testing.T, f File, messages map[string]string) {
	w, err := OpenWriter(f)
	require.NoError(t, err)
	for id, body := range messages {
		_, err := w.Append(id, []byte(body), stamp)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

func TestScanMalformedTolerance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "INBOX.mbox")
	require.NoError(t, ioutil.WriteFile(path, []byte(threeStored), 0o600))

	scanner, hook := testScanner(false)
	index, malformed, err := scanner.Scan(File{Path: path, Compression: domain.CompressionNone})
	require.NoError(t, err)
	assert.Equal(t, 1, malformed)
	assert.Equal(t, Index{"<a@example.com>": {}, "<b@example.com>": {}}, index)
	for _, e := range hook.AllEntries() {
		assert.NotEqual(t, logrus.WarnLevel, e.Level)
	}
}

func TestScanWarnings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "INBOX.mbox")
	require.NoError(t, ioutil.WriteFile(path, []byte(threeStored), 0o600))

	scanner, hook := testScanner(true)
	_, malformed, err := scanner.Scan(File{Path: path})
	require.NoError(t, err)
	assert.Equal(t, 1, malformed)

	warnings := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings++
			assert.Equal(t, 1, e.Data["message"])
		}
	}
	assert.Equal(t, 1, warnings)
}

func TestScanDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "INBOX.mbox")
	content := "From - Sat Nov 02 15:01:23 2013\nMessage-Id: <a@example.com>\n\none\n\n" +
		"From - Sat Nov 02 15:01:23 2013\nMessage-Id: <a@example.com>\n\ntwo\n\n"
	require.NoError(t, ioutil.WriteFile(path, []byte(content), 0o600))

	scanner, _ := testScanner(false)
	index, malformed, err := scanner.Scan(File{Path: path})
	require.NoError(t, err)
	assert.Equal(t, 0, malformed)
	assert.Len(t, index, 1)
}

func TestScanMissingFile(t *testing.T) {
	scanner, _ := testScanner(false)
	index, malformed, err := scanner.Scan(File{Path: filepath.Join(t.TempDir(), "nope.mbox.gz"), Compression: domain.CompressionGzip})
	require.NoError(t, err)
	assert.Empty(t, index)
	assert.Equal(t, 0, malformed)
}

func TestScanEmptyFile(t *testing.T) {
	for _, c := range []domain.Compression{domain.CompressionNone, domain.CompressionGzip} {
		t.Run(string(c), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "empty"+c.Extension())
			require.NoError(t, ioutil.WriteFile(path, nil, 0o600))

			scanner, _ := testScanner(false)
			index, malformed, err := scanner.Scan(File{Path: path, Compression: c})
			require.NoError(t, err)
			assert.Empty(t, index)
			assert.Equal(t, 0, malformed)
		})
	}
}

func TestScanOverwriteDoesNotOpen(t *testing.T) {
	// not a valid archive, must not be read
	path := filepath.Join(t.TempDir(), "INBOX.mbox.bz2")
	require.NoError(t, ioutil.WriteFile(path, []byte("garbage"), 0o600))

	scanner, _ := testScanner(false)
	index, malformed, err := scanner.Scan(File{Path: path, Compression: domain.CompressionBzip2, Overwrite: true})
	require.NoError(t, err)
	assert.Empty(t, index)
	assert.Equal(t, 0, malformed)
}

func TestScanBzip2Append(t *testing.T) {
	scanner, _ := testScanner(false)
	_, _, err := scanner.Scan(File{Path: "x.mbox.bz2", Compression: domain.CompressionBzip2})
	assert.True(t, errors.Is(err, ErrAppendUnsupported))

	_, err = OpenWriter(File{Path: "x.mbox.bz2", Compression: domain.CompressionBzip2})
	assert.True(t, errors.Is(err, ErrAppendUnsupported))
}

func TestAppendFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "INBOX.mbox")
	synthesized := "<" + mail.SyntheticNamespace + ".abc>"

	w, err := OpenWriter(File{Path: path})
	require.NoError(t, err)
	size, err := w.Append("<a@example.com>", []byte("\r\nMessage-Id: <a@example.com>\r\nSubject: a\r\n\r\nbody\r\n\r\n"), stamp)
	require.NoError(t, err)
	assert.Equal(t, int64(len("Message-Id: <a@example.com>\nSubject: a\n\nbody")), size)
	_, err = w.Append(synthesized, []byte("Subject: b\r\n\r\nbody b"), stamp)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	content, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"From - Sat Nov 02 15:01:23 2013\nMessage-Id: <a@example.com>\nSubject: a\n\nbody\n\n"+
			"From - Sat Nov 02 15:01:23 2013\nMessage-Id: "+synthesized+"\nSubject: b\n\nbody b\n\n",
		string(content))

	scanner, _ := testScanner(false)
	index, malformed, err := scanner.Scan(File{Path: path})
	require.NoError(t, err)
	assert.Equal(t, 0, malformed)
	assert.Equal(t, Index{"<a@example.com>": {}, synthesized: {}}, index)
}

func TestAppendEscapesFromLines(t *testing.T) {
	tests := []struct {
		name        string
		compression domain.Compression
	}{
		{"none", domain.CompressionNone},
		{"gzip", domain.CompressionGzip},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := File{Path: filepath.Join(t.TempDir(), "INBOX"+tc.compression.Extension()), Compression: tc.compression}
			body := "Message-Id: <outer@example.com>\r\nSubject: fwd\r\n\r\n" +
				"From what I heard, see below.\r\n\r\n" +
				"From bob Mon Jan 1 00:00:00 2001\r\n" +
				"Message-Id: <inner@example.com>\r\n\r\ninner body\r\n"

			w, err := OpenWriter(f)
			require.NoError(t, err)
			size, err := w.Append("<outer@example.com>", []byte(body), stamp)
			require.NoError(t, err)
			assert.Equal(t, int64(len(strings.TrimSpace(strings.ReplaceAll(body, "\r", "")))), size)
			require.NoError(t, w.Close())

			scanner, _ := testScanner(true)
			index, malformed, err := scanner.Scan(f)
			require.NoError(t, err)
			assert.Equal(t, 0, malformed)
			assert.Equal(t, Index{"<outer@example.com>": {}}, index)
		})
	}
}

func TestAppendEscapedContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "INBOX.mbox")

	w, err := OpenWriter(File{Path: path})
	require.NoError(t, err)
	_, err = w.Append("<a@x>", []byte("Message-Id: <a@x>\r\n\r\nFrom here\r\n From there\r\n>From elsewhere"), stamp)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	content, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "From - Sat Nov 02 15:01:23 2013\nMessage-Id: <a@x>\n\n>From here\n From there\n>From elsewhere\n\n", string(content))
}

func TestEscapeFromLines(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"plain", "plain"},
		{"From a", ">From a"},
		{"x\nFrom a\nFrom b", "x\n>From a\n>From b"},
		{"x\nFromage\nfrom a", "x\nFromage\nfrom a"},
		{"", ""},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, escapeFromLines(tc.input))
		})
	}
}

func TestGzipAppend(t *testing.T) {
	f := File{Path: filepath.Join(t.TempDir(), "INBOX.mbox.gz"), Compression: domain.CompressionGzip}
	writeArchive(t, f, map[string]string{"<a@x>": "Message-Id: <a@x>\n\na"})
	writeArchive(t, f, map[string]string{"<b@x>": "Message-Id: <b@x>\n\nb"})

	scanner, _ := testScanner(false)
	index, malformed, err := scanner.Scan(f)
	require.NoError(t, err)
	assert.Equal(t, 0, malformed)
	assert.Equal(t, Index{"<a@x>": {}, "<b@x>": {}}, index)
}

func TestBzip2Overwrite(t *testing.T) {
	f := File{Path: filepath.Join(t.TempDir(), "INBOX.mbox.bz2"), Compression: domain.CompressionBzip2, Overwrite: true}
	writeArchive(t, f, map[string]string{"<a@x>": "Message-Id: <a@x>\n\na"})
	writeArchive(t, f, map[string]string{"<b@x>": "Message-Id: <b@x>\n\nb"})

	// reading an existing bzip2 archive is allowed, only appending is not
	r, err := f.openReader()
	require.NoError(t, err)
	content, err := ioutil.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "From - Sat Nov 02 15:01:23 2013\nMessage-Id: <b@x>\n\nb\n\n", string(content))
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "INBOX.mbox")
	require.NoError(t, ioutil.WriteFile(path, []byte(threeStored), 0o600))

	removed, err := File{Path: path}.Remove()
	require.NoError(t, err)
	assert.False(t, removed)
	assert.FileExists(t, path)

	removed, err = File{Path: path, Overwrite: true}.Remove()
	require.NoError(t, err)
	assert.True(t, removed)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	removed, err = File{Path: path, Overwrite: true}.Remove()
	require.NoError(t, err)
	assert.False(t, removed)
}
