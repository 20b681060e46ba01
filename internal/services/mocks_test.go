package services

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockBroadcaster is a mock for the Broadcaster interface
type MockBroadcaster struct {
	mock.Mock
}

func (m *MockBroadcaster) BroadcastJSONContext(ctx context.Context, msgType string, data any) error {
	args := m.Called(ctx, msgType, data)
	return args.Error(0)
}

type fixedCounter int

func (c fixedCounter) ClientCount() int { return int(c) }
