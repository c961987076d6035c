// SPDX-License-Identifier: GPL-3.0-or-later
package backup

import (
	"context"

	"github.com/CrawX/go-imap-backup/mail"

	"github.com/sirupsen/logrus"
)

// RemoteIndex maps the Message-Id of every message in a folder to its
// sequence number.
type RemoteIndex map[string]uint32

// add records messageId unless it is known already. The lowest sequence
// number wins since folders are scanned in ascending order.
func (r RemoteIndex) add(messageId string, seqNum uint32) bool {
	if _, ok := r[messageId]; ok {
		return false
	}
	r[messageId] = seqNum
	return true
}

// ScanRemote selects the folder read-only and identifies each of its
// messages, synthesizing a Message-Id for those without one. Any failure
// discards the folder with a SkipFolderError.
func (b *Backup) ScanRemote(ctx context.Context, folder string) (RemoteIndex, error) {
	count, err := b.session.SelectReadOnly(folder)
	if err != nil {
		return nil, &SkipFolderError{Folder: folder, Reason: "could not select folder", Err: err}
	}

	index := RemoteIndex{}
	duplicates, synthesized := 0, 0
	for seqNum := uint32(1); seqNum <= count; seqNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		header, err := b.session.FetchHeaderFields(seqNum, mail.IdFields)
		if err != nil {
			return nil, &SkipFolderError{Folder: folder, Reason: "could not fetch Message-Id", Err: err}
		}

		messageId, err := mail.MessageId(header)
		if err != nil {
			envelope, err := b.session.FetchHeaderFields(seqNum, mail.EnvelopeFields)
			if err != nil {
				return nil, &SkipFolderError{Folder: folder, Reason: "could not fetch envelope headers", Err: err}
			}
			messageId = mail.SynthesizeId(envelope)
			synthesized++
			b.l.WithFields(logrus.Fields{"folder": folder, "seq": seqNum, "messageid": messageId}).Trace("Synthesized Message-Id")
		}

		if !index.add(messageId, seqNum) {
			duplicates++
			b.l.WithFields(logrus.Fields{"folder": folder, "seq": seqNum, "messageid": messageId}).Debug("Ignoring duplicate Message-Id")
		}
	}

	b.l.WithFields(logrus.Fields{
		"folder":      folder,
		"messages":    count,
		"remote":      len(index),
		"duplicates":  duplicates,
		"synthesized": synthesized,
	}).Debug("Scanned folder")
	return index, nil
}
