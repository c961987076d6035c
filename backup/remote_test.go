// SPDX-License-Identifier: GPL-3.0-or-later
package backup

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/CrawX/go-imap-backup/domain/mocks"
	"github.com/CrawX/go-imap-backup/mail"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const TEST_FOLDER = "INBOX"

func idHeader(messageId string) []byte {
	return []byte("Message-ID: " + messageId + "\r\n\r\n")
}

func TestScanRemote(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	session := mocks.NewMockImapSession(ctrl)
	b := testBackup(t, session)

	gomock.InOrder(
		session.EXPECT().SelectReadOnly(TEST_FOLDER).Return(uint32(3), nil),
		session.EXPECT().FetchHeaderFields(uint32(1), gomock.Eq(mail.IdFields)).Return(idHeader("<a@example.com>"), nil),
		session.EXPECT().FetchHeaderFields(uint32(2), gomock.Eq(mail.IdFields)).Return([]byte("Message-Id:\r\n  <b@\r\n example.com>\r\n\r\n"), nil),
		session.EXPECT().FetchHeaderFields(uint32(3), gomock.Eq(mail.IdFields)).Return(idHeader("<c@example.com>"), nil),
	)

	index, err := b.ScanRemote(context.Background(), TEST_FOLDER)
	require.NoError(t, err)
	assert.Equal(t, RemoteIndex{"<a@example.com>": 1, "<b@ example.com>": 2, "<c@example.com>": 3}, index)
}

// Duplicate Message-Ids within a folder keep the lowest sequence number,
// the same policy the archive scanner applies to stored messages.
func TestScanRemoteFirstWinsDedupPolicy(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	session := mocks.NewMockImapSession(ctrl)
	b := testBackup(t, session)

	session.EXPECT().SelectReadOnly(TEST_FOLDER).Return(uint32(4), nil)
	session.EXPECT().FetchHeaderFields(uint32(1), mail.IdFields).Return(idHeader("<x@example.com>"), nil)
	session.EXPECT().FetchHeaderFields(uint32(2), mail.IdFields).Return(idHeader("<y@example.com>"), nil)
	session.EXPECT().FetchHeaderFields(uint32(3), mail.IdFields).Return(idHeader("<x@example.com>"), nil)
	session.EXPECT().FetchHeaderFields(uint32(4), mail.IdFields).Return(idHeader("<y@example.com>"), nil)

	index, err := b.ScanRemote(context.Background(), TEST_FOLDER)
	require.NoError(t, err)
	assert.Equal(t, RemoteIndex{"<x@example.com>": 1, "<y@example.com>": 2}, index)
}

func TestScanRemoteSynthesizes(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	session := mocks.NewMockImapSession(ctrl)
	b := testBackup(t, session)

	envelope := []byte("From: alice@example.com\r\nTo: bob@example.com\r\nSubject: no id\r\n\r\n")
	gomock.InOrder(
		session.EXPECT().SelectReadOnly(TEST_FOLDER).Return(uint32(2), nil),
		session.EXPECT().FetchHeaderFields(uint32(1), mail.IdFields).Return([]byte("\r\n"), nil),
		session.EXPECT().FetchHeaderFields(uint32(1), gomock.Eq(mail.EnvelopeFields)).Return(envelope, nil),
		session.EXPECT().FetchHeaderFields(uint32(2), mail.IdFields).Return([]byte("Message-Id: \r\n\r\n"), nil),
		session.EXPECT().FetchHeaderFields(uint32(2), mail.EnvelopeFields).Return(envelope, nil),
	)

	index, err := b.ScanRemote(context.Background(), TEST_FOLDER)
	require.NoError(t, err)

	// identical envelopes collapse into one identity
	assert.Equal(t, RemoteIndex{mail.SynthesizeId(envelope): 1}, index)
}

func TestScanRemoteEmptyFolder(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	session := mocks.NewMockImapSession(ctrl)
	b := testBackup(t, session)

	session.EXPECT().SelectReadOnly(TEST_FOLDER).Return(uint32(0), nil)

	index, err := b.ScanRemote(context.Background(), TEST_FOLDER)
	require.NoError(t, err)
	assert.Empty(t, index)
}

func TestScanRemoteSkips(t *testing.T) {
	serverErr := fmt.Errorf("NO server said no")
	tests := []struct {
		name   string
		setup  func(session *mocks.MockImapSession)
		reason string
	}{
		{
			"select",
			func(session *mocks.MockImapSession) {
				session.EXPECT().SelectReadOnly(TEST_FOLDER).Return(uint32(0), serverErr)
			},
			"could not select folder",
		},
		{
			"idfetch",
			func(session *mocks.MockImapSession) {
				session.EXPECT().SelectReadOnly(TEST_FOLDER).Return(uint32(3), nil)
				session.EXPECT().FetchHeaderFields(uint32(1), mail.IdFields).Return(idHeader("<a@example.com>"), nil)
				session.EXPECT().FetchHeaderFields(uint32(2), mail.IdFields).Return(nil, serverErr)
			},
			"could not fetch Message-Id",
		},
		{
			"envelopefetch",
			func(session *mocks.MockImapSession) {
				session.EXPECT().SelectReadOnly(TEST_FOLDER).Return(uint32(1), nil)
				session.EXPECT().FetchHeaderFields(uint32(1), mail.IdFields).Return([]byte("\r\n"), nil)
				session.EXPECT().FetchHeaderFields(uint32(1), mail.EnvelopeFields).Return(nil, serverErr)
			},
			"could not fetch envelope headers",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			session := mocks.NewMockImapSession(ctrl)
			b := testBackup(t, session)
			tc.setup(session)

			index, err := b.ScanRemote(context.Background(), TEST_FOLDER)
			assert.Nil(t, index)

			var skip *SkipFolderError
			require.True(t, errors.As(err, &skip))
			assert.Equal(t, TEST_FOLDER, skip.Folder)
			assert.Equal(t, tc.reason, skip.Reason)
			assert.True(t, errors.Is(err, serverErr))
		})
	}
}

func TestScanRemoteCancelled(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	session := mocks.NewMockImapSession(ctrl)
	b := testBackup(t, session)

	ctx, cancel := context.WithCancel(context.Background())
	session.EXPECT().SelectReadOnly(TEST_FOLDER).Return(uint32(5), nil)
	session.EXPECT().FetchHeaderFields(uint32(1), mail.IdFields).DoAndReturn(func(uint32, []string) ([]byte, error) {
		cancel()
		return idHeader("<a@example.com>"), nil
	})

	index, err := b.ScanRemote(ctx, TEST_FOLDER)
	assert.Nil(t, index)
	assert.True(t, errors.Is(err, context.Canceled))
}
