// SPDX-License-Identifier: GPL-3.0-or-later
package backup

import "fmt"

// SkipFolderError aborts the current folder. The run continues with the next
// one.
type SkipFolderError struct {
	Folder string
	Reason string
	Err    error
}

func (e *SkipFolderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("skipping folder %s: %s: %v", e.Folder, e.Reason, e.Err)
	}
	return fmt.Sprintf("skipping folder %s: %s", e.Folder, e.Reason)
}

func (e *SkipFolderError) Unwrap() error {
	return e.Err
}

// FetchError is a failed message download after the folder was scanned. It
// ends the run.
type FetchError struct {
	Folder string
	SeqNum uint32
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("could not fetch message %d of %s: %v", e.SeqNum, e.Folder, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
