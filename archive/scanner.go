// SPDX-License-Identifier: GPL-3.0-or-later
package archive

import (
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"os"

	"github.com/CrawX/go-imap-backup/log"
	"github.com/CrawX/go-imap-backup/mail"

	"github.com/emersion/go-mbox"
	"github.com/sirupsen/logrus"
)

// Index is the set of Message-Ids stored in an archive.
type Index map[string]struct{}

func (i Index) Contains(messageId string) bool {
	_, ok := i[messageId]
	return ok
}

// Scanner rebuilds the Index of an archive by reading it completely.
type Scanner struct {
	messageIdWarnings bool

	l *logrus.Logger
}

// NewScanner creates a scanner. With messageIdWarnings set, every stored
// message without a usable Message-Id is logged, otherwise they are only
// counted.
func NewScanner(messageIdWarnings bool) *Scanner {
	return &Scanner{
		messageIdWarnings: messageIdWarnings,
		l:                 log.Logger(log.LOG_ARCHIVE),
	}
}

// Scan returns the Message-Ids stored in the archive and the number of
// stored messages whose Message-Id is missing or malformed.
func (s *Scanner) Scan(f File) (Index, int, error) {
	index := Index{}
	if f.Overwrite {
		return index, 0, nil
	}

	if err := f.checkAppend(); err != nil {
		return nil, 0, err
	}

	r, err := f.openReader()
	if errors.Is(err, os.ErrNotExist) {
		s.l.WithField("file", f.Path).Debug("Archive not found")
		return index, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("could not open archive %s: %w", f.Path, err)
	}
	defer r.Close()

	malformed := 0
	mr := mbox.NewReader(r)
	for i := 0; ; i++ {
		msg, err := mr.NextMessage()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("could not read message #%d of %s: %w", i, f.Path, err)
		}

		raw, err := ioutil.ReadAll(msg)
		if err != nil {
			return nil, 0, fmt.Errorf("could not read message #%d of %s: %w", i, f.Path, err)
		}

		messageId, err := mail.MessageId(mail.HeaderBlock(raw))
		if err != nil {
			malformed++
			if s.messageIdWarnings {
				s.l.WithFields(logrus.Fields{"file": f.Path, "message": i, "error": err}).Warn("Stored message has no usable Message-Id")
			}
			continue
		}

		if !index.Contains(messageId) {
			index[messageId] = struct{}{}
		}
	}

	s.l.WithFields(logrus.Fields{"file": f.Path, "messages": len(index), "malformed": malformed}).Debug("Scanned archive")
	return index, malformed, nil
}
