package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dmstore/dmstore/internal/domain/mailbox"
)

// MockFetcher is a mock implementation of mailbox.Fetcher
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Recent(ctx context.Context, cred mailbox.Credential, limit int) ([]mailbox.Summary, error) {
	args := m.Called(ctx, cred, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]mailbox.Summary), args.Error(1)
}

// MockScanRepository is a mock implementation of mailbox.ScanRepository
type MockScanRepository struct {
	mock.Mock
}

func (m *MockScanRepository) Create(ctx context.Context, scan *mailbox.Scan) error {
	args := m.Called(ctx, scan)
	return args.Error(0)
}
