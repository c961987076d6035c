// SPDX-License-Identifier: GPL-3.0-or-later

// Package backup copies the messages of every remote folder into a local
// mbox archive, downloading only those not archived yet.
package backup

import (
	"context"
	"errors"
	"fmt"

	"github.com/CrawX/go-imap-backup/archive"
	"github.com/CrawX/go-imap-backup/domain"
	"github.com/CrawX/go-imap-backup/log"

	"github.com/sirupsen/logrus"
)

type Outcome int

const (
	Completed Outcome = iota
	Skipped
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Skipped:
		return "skipped"
	case Fatal:
		return "fatal"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// FolderResult is the outcome of one folder sync. Report is set for
// completed folders, Err for skipped and fatal ones.
type FolderResult struct {
	Folder  domain.Folder
	Outcome Outcome
	Report  *domain.FolderReport
	Err     error
}

// RunSummary accumulates the results of all folders processed by a run.
type RunSummary struct {
	Completed      int
	Skipped        int
	New            int
	TotalBytes     int64
	MalformedLocal int
}

type Backup struct {
	session domain.ImapSession
	scanner *archive.Scanner

	configuration *configuration

	l *logrus.Logger
}

// New creates a backup over an authenticated session. Conflicting options
// are rejected before any folder or file is touched.
func New(session domain.ImapSession, configFunc ...ConfigFunc) (*Backup, error) {
	config := defaultConfiguration()
	for _, f := range configFunc {
		err := f(config)
		if err != nil {
			return nil, fmt.Errorf("error applying configuration: %w", err)
		}
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &Backup{
		session:       session,
		scanner:       archive.NewScanner(config.MessageIdWarnings),
		configuration: config,
		l:             log.Logger(log.LOG_BACKUP),
	}, nil
}

// Run syncs every folder, last listed first, and hands each result to report
// in processing order. A skipped folder does not stop the run; a fatal one
// or a cancelled context does, and its error is returned along with the
// summary so far.
func (b *Backup) Run(ctx context.Context, report func(FolderResult)) (*RunSummary, error) {
	folders, err := b.Folders()
	if err != nil {
		return nil, fmt.Errorf("could not list folders: %w", err)
	}
	b.l.WithFields(logrus.Fields{"folders": len(folders)}).Info("Found folders to back up")

	summary := &RunSummary{}
	for i := len(folders) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		result := b.process(ctx, folders[i])
		if report != nil {
			report(result)
		}

		switch result.Outcome {
		case Completed:
			summary.Completed++
			summary.New += result.Report.New
			summary.TotalBytes += result.Report.TotalBytes
			summary.MalformedLocal += result.Report.MalformedLocal
		case Skipped:
			summary.Skipped++
			b.l.WithFields(logrus.Fields{"folder": folders[i].Name, "error": result.Err}).Warn("Skipped folder")
		case Fatal:
			return summary, result.Err
		}
	}

	return summary, nil
}

func (b *Backup) process(ctx context.Context, folder domain.Folder) FolderResult {
	report, err := b.SyncFolder(ctx, folder)

	var skip *SkipFolderError
	switch {
	case err == nil:
		return FolderResult{Folder: folder, Outcome: Completed, Report: report}
	case errors.As(err, &skip):
		return FolderResult{Folder: folder, Outcome: Skipped, Err: err}
	}
	return FolderResult{Folder: folder, Outcome: Fatal, Err: err}
}
