package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dmstore/dmstore/internal/domain/conversation"
)

// MockRepository is a mock implementation of conversation.Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Load(ctx context.Context, key conversation.Key) (*conversation.State, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*conversation.State), args.Error(1)
}

func (m *MockRepository) Save(ctx context.Context, state *conversation.State) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}
