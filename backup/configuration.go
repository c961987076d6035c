// SPDX-License-Identifier: GPL-3.0-or-later
package backup

import (
	"fmt"
	"regexp"
	"time"

	"github.com/CrawX/go-imap-backup/domain"
)

type ConfigFunc func(c *configuration) error

// ProgressFunc creates the progress reporter for downloading total messages
// of a folder.
type ProgressFunc func(folder domain.Folder, total int) domain.Progress

// Overwrite replaces existing archives instead of appending to them.
func Overwrite() ConfigFunc {
	return func(c *configuration) error {
		c.Overwrite = true
		return nil
	}
}

func WithCompression(compression domain.Compression) ConfigFunc {
	return func(c *configuration) error {
		parsed, err := domain.ParseCompression(string(compression))
		if err != nil {
			return err
		}

		c.Compression = parsed
		return nil
	}
}

func OutputDir(dir string) ConfigFunc {
	return func(c *configuration) error {
		if len(dir) == 0 {
			return fmt.Errorf("OutputDir cannot be empty")
		}

		c.OutputDir = dir
		return nil
	}
}

// ExcludeFolders skips every folder whose name matches one of the patterns.
func ExcludeFolders(patterns ...string) ConfigFunc {
	return func(c *configuration) error {
		for _, p := range patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return fmt.Errorf("invalid exclude pattern %q: %w", p, err)
			}
			c.ExcludeFolders = append(c.ExcludeFolders, re)
		}
		return nil
	}
}

func MessageIdWarnings() ConfigFunc {
	return func(c *configuration) error {
		c.MessageIdWarnings = true
		return nil
	}
}

// WithClock sets the time source for the separator line of stored messages.
func WithClock(clock func() time.Time) ConfigFunc {
	return func(c *configuration) error {
		if clock == nil {
			return fmt.Errorf("Clock cannot be nil")
		}

		c.Clock = clock
		return nil
	}
}

func WithProgress(progress ProgressFunc) ConfigFunc {
	return func(c *configuration) error {
		c.Progress = progress
		return nil
	}
}

type configuration struct {
	Overwrite   bool
	Compression domain.Compression
	OutputDir   string

	ExcludeFolders    []*regexp.Regexp
	MessageIdWarnings bool

	Clock    func() time.Time
	Progress ProgressFunc
}

func defaultConfiguration() *configuration {
	return &configuration{
		Compression: domain.CompressionNone,
		OutputDir:   ".",
		Clock:       time.Now,
	}
}

func (c *configuration) validate() error {
	if c.Compression == domain.CompressionBzip2 && !c.Overwrite {
		return fmt.Errorf("%w: cannot append new messages to bzip2 archives, overwrite them instead", domain.ErrConfigurationConflict)
	}

	return nil
}

func (c *configuration) excluded(folder string) bool {
	for _, re := range c.ExcludeFolders {
		if re.MatchString(folder) {
			return true
		}
	}
	return false
}
