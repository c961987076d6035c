// SPDX-License-Identifier: GPL-3.0-or-later
package backup

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/CrawX/go-imap-backup/archive"
	"github.com/CrawX/go-imap-backup/domain"
	"github.com/CrawX/go-imap-backup/mail"

	"github.com/sirupsen/logrus"
)

// DeltaEntry is a remote message that is missing from the archive.
type DeltaEntry struct {
	MessageId string
	SeqNum    uint32
}

// ComputeDelta returns the messages of remote not contained in local, in
// ascending sequence number order.
func ComputeDelta(remote RemoteIndex, local archive.Index) []DeltaEntry {
	delta := []DeltaEntry{}
	for messageId, seqNum := range remote {
		if !local.Contains(messageId) {
			delta = append(delta, DeltaEntry{MessageId: messageId, SeqNum: seqNum})
		}
	}

	sort.Slice(delta, func(i, j int) bool { return delta[i].SeqNum < delta[j].SeqNum })
	return delta
}

// SyncFolder downloads every message of the folder that is not in its
// archive yet. Recoverable failures are returned as SkipFolderError, anything
// else must end the run.
func (b *Backup) SyncFolder(ctx context.Context, folder domain.Folder) (*domain.FolderReport, error) {
	file := archive.File{
		Path:        folder.LocalFilename,
		Compression: b.configuration.Compression,
		Overwrite:   b.configuration.Overwrite,
	}

	remote, err := b.ScanRemote(ctx, folder.Name)
	if err != nil {
		return nil, err
	}

	removed, err := file.Remove()
	if err != nil {
		return nil, &SkipFolderError{Folder: folder.Name, Reason: "could not overwrite archive", Err: err}
	}
	if removed {
		b.l.WithFields(logrus.Fields{"folder": folder.Name, "file": file.Path}).Info("Deleting")
	}

	local, malformed, err := b.scanner.Scan(file)
	if errors.Is(err, archive.ErrAppendUnsupported) {
		return nil, err
	}
	if err != nil {
		return nil, &SkipFolderError{Folder: folder.Name, Reason: "could not scan archive", Err: err}
	}

	report := &domain.FolderReport{
		Folder:         folder,
		Local:          len(local),
		Remote:         len(remote),
		MalformedLocal: malformed,
	}

	delta := ComputeDelta(remote, local)
	if len(delta) == 0 {
		b.l.WithFields(logrus.Fields{"folder": folder.Name, "local": report.Local, "remote": report.Remote}).Debug("Archive is up to date")
		return report, nil
	}

	b.l.WithFields(logrus.Fields{"folder": folder.Name, "new": len(delta), "file": file.Path}).Info("Downloading new messages")
	if err := b.download(ctx, folder, file, delta, report); err != nil {
		return nil, err
	}

	return report, nil
}

func (b *Backup) download(ctx context.Context, folder domain.Folder, file archive.File, delta []DeltaEntry, report *domain.FolderReport) (err error) {
	w, err := archive.OpenWriter(file)
	if err != nil {
		return fmt.Errorf("could not open archive of %s: %w", folder.Name, err)
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	var progress domain.Progress
	if b.configuration.Progress != nil {
		progress = b.configuration.Progress(folder, len(delta))
		defer progress.Finish()
	}

	for _, entry := range delta {
		if err := ctx.Err(); err != nil {
			return err
		}

		body, err := b.session.FetchMessage(entry.SeqNum)
		if err != nil {
			return &FetchError{Folder: folder.Name, SeqNum: entry.SeqNum, Err: err}
		}

		size, err := w.Append(entry.MessageId, body, b.configuration.Clock())
		if err != nil {
			return fmt.Errorf("could not store message %d of %s: %w", entry.SeqNum, folder.Name, err)
		}

		report.New++
		report.TotalBytes += size
		if size > report.MaxMessageBytes {
			report.MaxMessageBytes = size
		}

		b.l.WithFields(logrus.Fields{
			"folder":  folder.Name,
			"seq":     entry.SeqNum,
			"subject": mail.ShortSubject(mail.Subject(body)),
			"size":    size,
		}).Debug("Stored message")

		if progress != nil {
			if err := progress.Add(1); err != nil {
				b.l.WithFields(logrus.Fields{"error": err}).Debug("Could not update progress")
			}
		}
	}

	return nil
}
