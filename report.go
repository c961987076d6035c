// SPDX-License-Identifier: GPL-3.0-or-later
package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/CrawX/go-imap-backup/backup"
	"github.com/CrawX/go-imap-backup/domain"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
)

type progressBar struct {
	bar *progressbar.ProgressBar
	w   io.Writer
}

func (p *progressBar) Add(num int) error {
	return p.bar.Add(num)
}

func (p *progressBar) Finish() error {
	err := p.bar.Finish()
	fmt.Fprintln(p.w)
	return err
}

func newProgressBar(w io.Writer) backup.ProgressFunc {
	return func(folder domain.Folder, total int) domain.Progress {
		return &progressBar{
			bar: progressbar.NewOptions(total,
				progressbar.OptionSetWriter(w),
				progressbar.OptionSetDescription(filepath.Base(folder.LocalFilename)),
				progressbar.OptionShowCount(),
			),
			w: w,
		}
	}
}

// summaryLine renders the result of one folder, e.g.
// [    2 new] [local    10/   12 remote] [4.1 kB] INBOX.mbox (3.0 kB for largest message)
func summaryLine(result backup.FolderResult) string {
	if result.Outcome != backup.Completed {
		return fmt.Sprintf("%s: %v", result.Folder.LocalFilename, result.Err)
	}

	r := result.Report
	size := "-"
	if r.New > 0 {
		size = humanize.Bytes(uint64(r.TotalBytes))
	}

	line := fmt.Sprintf("[%5d new] [local %5d/%5d remote] [%s] %s", r.New, r.Local, r.Remote, size, r.Folder.LocalFilename)
	if r.MaxMessageBytes > 0 {
		line += fmt.Sprintf(" (%s for largest message)", humanize.Bytes(uint64(r.MaxMessageBytes)))
	}
	if r.MalformedLocal > 0 {
		line += fmt.Sprintf(" (%d warnings)", r.MalformedLocal)
	}
	return line
}
