// SPDX-License-Identifier: GPL-3.0-or-later
package mail

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"mime"
	"regexp"
	"strings"

	"github.com/emersion/go-message/charset"
)

// SyntheticNamespace marks Message-Ids made up for messages that have none.
const SyntheticNamespace = "19AF1258-1AAF-44EF-9D9A-731079D6FAD7"

const MessageIdHeader = "Message-Id"

var (
	// Header fields fetched from the server, first to identify a message and
	// then to synthesize an identity when it carries no Message-Id.
	IdFields       = []string{"MESSAGE-ID"}
	EnvelopeFields = []string{"FROM", "TO", "CC", "DATE", "SUBJECT"}

	ErrNoMessageId        = errors.New("no Message-Id header")
	ErrMalformedMessageId = errors.New("malformed Message-Id header")

	messageIdRe = regexp.MustCompile(`(?i)^Message-Id:\s*(.+)`)
	blanksRe    = regexp.MustCompile(`\s+`)

	subjectDecoder = &mime.WordDecoder{
		CharsetReader: charset.Reader,
	}
)

// NormalizeWhitespace collapses every run of whitespace, folded line breaks
// included, into a single space.
func NormalizeWhitespace(s string) string {
	return blanksRe.ReplaceAllString(strings.TrimSpace(s), " ")
}

// HeaderBlock returns the header part of a raw message, everything up to the
// first empty line.
func HeaderBlock(raw []byte) []byte {
	for _, sep := range [][]byte{[]byte("\r\n\r\n"), []byte("\n\n")} {
		if i := bytes.Index(raw, sep); i >= 0 {
			raw = raw[:i+len(sep)/2]
		}
	}
	return raw
}

// FirstHeaderField returns the raw text of the first header field with the
// given name, including its name and any continuation lines. Lines that are
// neither fields nor continuations are skipped rather than rejected.
func FirstHeaderField(header []byte, name string) (string, bool) {
	var field []string
	for _, line := range strings.Split(string(header), "\n") {
		line = strings.TrimRight(line, "\r")
		if len(line) == 0 {
			break
		}

		if line[0] == ' ' || line[0] == '\t' {
			if field != nil {
				field = append(field, line)
			}
			continue
		}

		if field != nil {
			break
		}

		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(line[:colon]), name) {
			field = []string{line}
		}
	}

	if field == nil {
		return "", false
	}
	return strings.Join(field, "\n"), true
}

// MessageId extracts the whitespace-normalized Message-Id of a raw header
// block. It returns ErrNoMessageId or ErrMalformedMessageId when there is no
// usable value.
func MessageId(header []byte) (string, error) {
	field, ok := FirstHeaderField(header, MessageIdHeader)
	if !ok {
		return "", ErrNoMessageId
	}

	match := messageIdRe.FindStringSubmatch(NormalizeWhitespace(field))
	if match == nil {
		return "", ErrMalformedMessageId
	}

	return match[1], nil
}

// SynthesizeId derives a Message-Id from the raw From/To/Cc/Date/Subject
// header block of a message. The same header bytes always yield the same id.
func SynthesizeId(envelope []byte) string {
	normalized := strings.TrimSpace(string(envelope))
	normalized = strings.ReplaceAll(normalized, "\r\n", "\t")
	normalized = strings.ReplaceAll(normalized, "\n", "\t")

	return fmt.Sprintf("<%s.%x>", SyntheticNamespace, sha256.Sum256([]byte(normalized)))
}

func IsSynthesized(messageId string) bool {
	return strings.Contains(messageId, SyntheticNamespace)
}

// Subject returns the decoded Subject of a raw message, or an empty string.
func Subject(raw []byte) string {
	field, ok := FirstHeaderField(HeaderBlock(raw), "Subject")
	if !ok {
		return ""
	}

	value := NormalizeWhitespace(field[strings.IndexByte(field, ':')+1:])
	subject, err := subjectDecoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return subject
}

func ShortSubject(subject string) string {
	if (len(subject)) > 30 {
		subject = subject[:30] + "..."
	}
	return subject
}
