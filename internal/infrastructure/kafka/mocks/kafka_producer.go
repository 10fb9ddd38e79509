package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockKafkaProducer struct {
	mock.Mock
}

func NewMockKafkaProducer() *MockKafkaProducer {
	return &MockKafkaProducer{}
}

func (m *MockKafkaProducer) Send(ctx context.Context, topic, key string, value []byte) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

func (m *MockKafkaProducer) Close() error {
	return m.Called().Error(0)
}
