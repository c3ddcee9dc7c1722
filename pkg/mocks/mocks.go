// Package mocks provides testify mocks for the service-layer collaborators.
package mocks

import (
	"context"

	"github.com/BolajiAyodeji/lightning/pkg/eventbus"
	"github.com/BolajiAyodeji/lightning/pkg/limiter"
	"github.com/BolajiAyodeji/lightning/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockEventPublisher is a mock implementation of eventbus.EventPublisher.
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, key string, event eventbus.Event) error {
	args := m.Called(ctx, key, event)

	return args.Error(0)
}

// MockRunQueue is a mock implementation of queue.RunQueue.
type MockRunQueue struct {
	mock.Mock
}

func (m *MockRunQueue) Enqueue(ctx context.Context, projectID string, run *models.Run) error {
	args := m.Called(ctx, projectID, run)

	return args.Error(0)
}

func (m *MockRunQueue) Close() error {
	args := m.Called()

	return args.Error(0)
}

// MockLimiter is a mock implementation of limiter.Limiter.
type MockLimiter struct {
	mock.Mock
}

func (m *MockLimiter) Check(ctx context.Context, req limiter.Request) error {
	args := m.Called(ctx, req)

	return args.Error(0)
}
