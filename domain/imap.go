// SPDX-License-Identifier: GPL-3.0-or-later
package domain

//go:generate mockgen -destination=mocks/imap.go -package=mocks . ImapSession

// ImapSession is a live, authenticated connection to the mail server. All
// operations are issued one at a time; sequence numbers refer to the folder
// selected last.
type ImapSession interface {
	// SelectReadOnly examines a folder and returns its message count.
	SelectReadOnly(folder string) (uint32, error)
	// FetchHeaderFields returns the raw header block limited to the given
	// field names for one message.
	FetchHeaderFields(seqNum uint32, fields []string) ([]byte, error)
	// FetchMessage returns the full raw message.
	FetchMessage(seqNum uint32) ([]byte, error)
	// List returns the raw LIST response lines (without the leading
	// "* LIST ") for the given reference and mailbox pattern.
	List(reference, pattern string) ([]string, error)

	Close() error
}
