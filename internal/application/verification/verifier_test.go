package verification

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/dmstore/dmstore/internal/domain/mailbox"
	"github.com/dmstore/dmstore/internal/domain/mailbox/mocks"
)

const txid = "ABCDEFGHIJ1234567"

var cred = mailbox.Credential{Address: "shop@example.com", AppPassword: "app-pass"}

func window(n int, hitAt int) []mailbox.Summary {
	out := make([]mailbox.Summary, n)
	for i := range out {
		out[i] = mailbox.Summary{Subject: fmt.Sprintf("msg %d", i), From: "pay@example.com", Body: "nothing here"}
	}
	if hitAt >= 0 {
		out[hitAt].Body = "You received a payment. Transaction ID: " + txid
	}
	return out
}

func TestVerifyFound(t *testing.T) {
	fetcher := new(mocks.MockFetcher)
	scans := new(mocks.MockScanRepository)
	fetcher.On("Recent", mock.Anything, cred, 10).Return(window(10, 7), nil)
	scans.On("Create", mock.Anything, mock.MatchedBy(func(s *mailbox.Scan) bool {
		return s.Found && len(s.Messages) == 10 && s.Error == nil && s.TransactionID == txid
	})).Return(nil)

	v := NewVerifier(fetcher, scans, 10, zerolog.Nop())
	assert.True(t, v.Verify(context.Background(), Request{Identity: "id", UserID: "u1", Credential: cred, TransactionID: txid}))
	fetcher.AssertExpectations(t)
	scans.AssertExpectations(t)
}

func TestVerifyNotFound(t *testing.T) {
	fetcher := new(mocks.MockFetcher)
	scans := new(mocks.MockScanRepository)
	fetcher.On("Recent", mock.Anything, cred, 10).Return(window(10, -1), nil)
	scans.On("Create", mock.Anything, mock.MatchedBy(func(s *mailbox.Scan) bool {
		return !s.Found && s.Error == nil
	})).Return(nil)

	v := NewVerifier(fetcher, scans, 10, zerolog.Nop())
	assert.False(t, v.Verify(context.Background(), Request{Credential: cred, TransactionID: txid}))
	scans.AssertExpectations(t)
}

func TestVerifyOutsideWindow(t *testing.T) {
	fetcher := new(mocks.MockFetcher)
	scans := new(mocks.MockScanRepository)
	// A fetcher returning more than asked is trimmed to the newest messages.
	fetcher.On("Recent", mock.Anything, cred, 10).Return(window(12, 0), nil)
	scans.On("Create", mock.Anything, mock.MatchedBy(func(s *mailbox.Scan) bool {
		return !s.Found && len(s.Messages) == 10
	})).Return(nil)

	v := NewVerifier(fetcher, scans, 10, zerolog.Nop())
	assert.False(t, v.Verify(context.Background(), Request{Credential: cred, TransactionID: txid}))
}

func TestVerifyMailboxErrorDegrades(t *testing.T) {
	fetcher := new(mocks.MockFetcher)
	scans := new(mocks.MockScanRepository)
	fetcher.On("Recent", mock.Anything, cred, 10).Return(nil, errors.New("auth failed"))
	scans.On("Create", mock.Anything, mock.MatchedBy(func(s *mailbox.Scan) bool {
		return !s.Found && s.Error != nil && *s.Error == "auth failed"
	})).Return(nil)

	v := NewVerifier(fetcher, scans, 0, zerolog.Nop())
	assert.False(t, v.Verify(context.Background(), Request{Credential: cred, TransactionID: txid}))
	scans.AssertExpectations(t)
}

func TestVerifyIncompleteCredential(t *testing.T) {
	fetcher := new(mocks.MockFetcher)
	scans := new(mocks.MockScanRepository)
	scans.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down"))

	v := NewVerifier(fetcher, scans, 10, zerolog.Nop())
	assert.False(t, v.Verify(context.Background(), Request{Credential: mailbox.Credential{Address: "a"}, TransactionID: txid}))
	fetcher.AssertNotCalled(t, "Recent", mock.Anything, mock.Anything, mock.Anything)
}
