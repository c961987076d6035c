// SPDX-License-Identifier: GPL-3.0-or-later
package imapconnection

import (
	"crypto/tls"
	"fmt"
	"io"
	"io/ioutil"

	"github.com/CrawX/go-imap-backup/log"

	"github.com/emersion/go-imap"
	compress "github.com/emersion/go-imap-compress"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-imap/commands"
	"github.com/sirupsen/logrus"
)

type Options struct {
	UseTLS    bool
	StartTLS  bool
	TLSConfig *tls.Config
	// Compress enables COMPRESS=DEFLATE when the server offers it.
	Compress bool
	// Debug receives the raw protocol traffic when set.
	Debug io.Writer
}

// ImapConnection is a read-only session used for backups.
type ImapConnection struct {
	connection *client.Client

	server, user string

	selectedFolder string

	l *logrus.Logger
}

func NewImapConnection(server string, user string, password string, opts Options) (*ImapConnection, error) {
	var imapClient *client.Client
	var err error
	if opts.UseTLS {
		imapClient, err = client.DialTLS(server, opts.TLSConfig)
	} else {
		imapClient, err = client.Dial(server)
	}
	if err != nil {
		return nil, fmt.Errorf("could not dial to imap: %w", err)
	}

	if opts.Debug != nil {
		imapClient.SetDebug(opts.Debug)
	}

	if opts.StartTLS && !opts.UseTLS {
		err = imapClient.StartTLS(opts.TLSConfig)
		if err != nil {
			_ = imapClient.Logout()
			return nil, fmt.Errorf("could not start tls: %w", err)
		}
	}

	err = imapClient.Login(user, password)
	if err != nil {
		_ = imapClient.Logout()
		return nil, fmt.Errorf("could not login to imap: %w", err)
	}

	conn := &ImapConnection{
		connection: imapClient,
		server:     server,
		user:       user,
		l:          log.Logger(log.LOG_IMAP),
	}

	baseLogger := conn.l.WithFields(logrus.Fields{"server": server, "user": user})
	baseLogger.Debug("Logged in to server")

	if opts.Compress {
		compressClient := compress.NewClient(imapClient)
		compressSupported, err := compressClient.SupportCompress(compress.Deflate)
		if err != nil {
			_ = imapClient.Logout()
			return nil, fmt.Errorf("could not check for COMPRESS support: %w", err)
		}

		if compressSupported {
			err = compressClient.Compress(compress.Deflate)
			if err != nil {
				_ = imapClient.Logout()
				return nil, fmt.Errorf("could not enable compression: %w", err)
			}
			baseLogger.Debug("COMPRESS=DEFLATE enabled")
		} else {
			baseLogger.Info("COMPRESS not supported on server, continuing uncompressed")
		}
	}

	return conn, nil
}

func (ic *ImapConnection) SelectReadOnly(folder string) (uint32, error) {
	m, err := ic.connection.Select(folder, true)
	if err != nil {
		return 0, fmt.Errorf("could not select folder: %w", err)
	}

	ic.selectedFolder = folder
	ic.l.WithFields(logrus.Fields{"folder": folder, "messages": m.Messages}).Debug("Selected folder")
	return m.Messages, nil
}

func (ic *ImapConnection) FetchHeaderFields(seqNum uint32, fields []string) ([]byte, error) {
	section := &imap.BodySectionName{
		BodyPartName: imap.BodyPartName{
			Specifier: imap.HeaderSpecifier,
			Fields:    fields,
		},
		Peek: true,
	}

	return ic.fetchOne(seqNum, section)
}

func (ic *ImapConnection) FetchMessage(seqNum uint32) ([]byte, error) {
	fullBodySection := &imap.BodySectionName{
		Peek: true,
	}

	return ic.fetchOne(seqNum, fullBodySection)
}

func (ic *ImapConnection) fetchOne(seqNum uint32, section *imap.BodySectionName) ([]byte, error) {
	seqset := &imap.SeqSet{}
	seqset.AddNum(seqNum)

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- ic.connection.Fetch(seqset, []imap.FetchItem{section.FetchItem()}, messages)
	}()

	var body []byte
	var readErr error
	found := false
	for msg := range messages {
		r := msg.GetBody(section)
		if r == nil {
			// some servers echo the section differently, a single section
			// was requested so take whatever came back
			for _, literal := range msg.Body {
				r = literal
				break
			}
		}
		if r == nil || found {
			continue
		}

		body, readErr = ioutil.ReadAll(r)
		found = true
	}

	err := <-done
	if err != nil {
		return nil, fmt.Errorf("could not fetch message %d: %w", seqNum, err)
	}
	if readErr != nil {
		return nil, fmt.Errorf("could not read message %d: %w", seqNum, readErr)
	}
	if !found {
		return nil, fmt.Errorf("server returned no data for message %d in %s", seqNum, ic.selectedFolder)
	}

	return body, nil
}

func (ic *ImapConnection) List(reference, pattern string) ([]string, error) {
	handler := &listHandler{}
	status, err := ic.connection.Execute(&commands.List{Reference: reference, Mailbox: pattern}, handler)
	if err != nil {
		return nil, fmt.Errorf("could not list folders: %w", err)
	}
	if err := status.Err(); err != nil {
		return nil, fmt.Errorf("could not list folders: %w", err)
	}
	if handler.err != nil {
		return nil, fmt.Errorf("could not read list response: %w", handler.err)
	}

	ic.l.WithFields(logrus.Fields{"reference": reference, "pattern": pattern, "folders": len(handler.lines)}).Debug("Listed folders")
	return handler.lines, nil
}

func (ic *ImapConnection) Close() error {
	return ic.connection.Logout()
}
