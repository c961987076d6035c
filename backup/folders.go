// SPDX-License-Identifier: GPL-3.0-or-later
package backup

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/CrawX/go-imap-backup/domain"
	"github.com/CrawX/go-imap-backup/listparser"

	"github.com/sirupsen/logrus"
)

var unselectableAttributes = []string{`\Noselect`, `\NonExistent`}

// Folders enumerates the selectable, not excluded remote folders in the
// order the server lists them.
func (b *Backup) Folders() ([]domain.Folder, error) {
	delimiter, err := b.hierarchyDelimiter()
	if err != nil {
		return nil, err
	}

	lines, err := b.session.List("", "*")
	if err != nil {
		return nil, fmt.Errorf("could not list folders: %w", err)
	}

	folders := []domain.Folder{}
	byFilename := map[string]string{}
	for _, line := range lines {
		resp, err := listparser.Parse(line)
		if err != nil {
			b.l.WithFields(logrus.Fields{"line": line, "error": err}).Warn("Ignoring unparsable folder")
			continue
		}

		if unselectable(resp) {
			b.l.WithFields(logrus.Fields{"folder": resp.Name}).Debug("Ignoring unselectable folder")
			continue
		}

		filename := b.filename(resp.Name, delimiter)
		if b.configuration.excluded(resp.Name) {
			b.l.WithFields(logrus.Fields{"folder": resp.Name, "file": filename}).Info("Ignoring excluded folder")
			continue
		}

		if other, ok := byFilename[filename]; ok {
			b.l.WithFields(logrus.Fields{"folder": resp.Name, "other": other, "file": filename}).Warn("Folders share one archive, their messages will be merged")
		} else {
			byFilename[filename] = resp.Name
		}

		folders = append(folders, domain.Folder{Name: resp.Name, LocalFilename: filename})
	}

	return folders, nil
}

// hierarchyDelimiter asks for the root of the hierarchy, which must be
// answered with exactly one line.
func (b *Backup) hierarchyDelimiter() (string, error) {
	lines, err := b.session.List("", "")
	if err != nil {
		return "", fmt.Errorf("could not query hierarchy delimiter: %w", err)
	}
	if len(lines) != 1 {
		return "", fmt.Errorf("could not query hierarchy delimiter: expected 1 response, got %d", len(lines))
	}

	root, err := listparser.Parse(lines[0])
	if err != nil {
		return "", fmt.Errorf("could not query hierarchy delimiter: %w", err)
	}

	b.l.WithFields(logrus.Fields{"delimiter": root.Delimiter}).Debug("Found hierarchy delimiter")
	return root.Delimiter, nil
}

func unselectable(resp *listparser.Response) bool {
	for _, a := range unselectableAttributes {
		if resp.HasAttribute(a) {
			return true
		}
	}
	return false
}

var pathReplacer = strings.NewReplacer("/", "_", string(filepath.Separator), "_")

// filename maps a folder name to its archive below the output directory, with
// hierarchy levels joined by dots, e.g. INBOX/Sent to INBOX.Sent.mbox.gz.
func (b *Backup) filename(folder, delimiter string) string {
	parts := []string{folder}
	if len(delimiter) > 0 {
		parts = strings.Split(folder, delimiter)
	}

	name := pathReplacer.Replace(strings.Join(parts, "."))
	return filepath.Join(b.configuration.OutputDir, name+b.configuration.Compression.Extension())
}
