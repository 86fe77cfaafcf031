package server

import (
	"github.com/stretchr/testify/mock"

	"payment-widget/internal/store"
)

// MockRepository is a mock implementation of store.Repository for testing.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Save(entry *store.Entry) error {
	args := m.Called(entry)
	return args.Error(0)
}

func (m *MockRepository) Get(id string) (*store.Entry, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Entry), args.Error(1)
}

func (m *MockRepository) List() ([]*store.Entry, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*store.Entry), args.Error(1)
}

func (m *MockRepository) Exists(id string) bool {
	args := m.Called(id)
	return args.Bool(0)
}

func (m *MockRepository) Delete(id string) error {
	args := m.Called(id)
	return args.Error(0)
}
