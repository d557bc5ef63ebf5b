package store

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockCollection is a mock implementation of Collection using testify/mock.
type MockCollection struct {
	mock.Mock
}

func (m *MockCollection) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockCollection) Count() int {
	args := m.Called()
	return args.Int(0)
}

func (m *MockCollection) Has(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockCollection) Add(ctx context.Context, docs []Document) error {
	args := m.Called(ctx, docs)
	return args.Error(0)
}

func (m *MockCollection) Query(ctx context.Context, texts []string, n int) ([][]Result, error) {
	args := m.Called(ctx, texts, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]Result), args.Error(1)
}
