// Package mocks provides testify mocks for the reconciliation engine's
// collaborator interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/marigold-cafe/pos-backend/pkg/recon"
)

type MockOrderStore struct {
	mock.Mock
}

func (m *MockOrderStore) GetOrderByExternalID(ctx context.Context, externalID string) (*recon.Order, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*recon.Order), args.Error(1)
}

func (m *MockOrderStore) LinkOrderByNumber(ctx context.Context, orderNumber, externalID string) (*recon.Order, error) {
	args := m.Called(ctx, orderNumber, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*recon.Order), args.Error(1)
}

func (m *MockOrderStore) InsertOrder(ctx context.Context, o *recon.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockOrderStore) UpdateOrder(ctx context.Context, o *recon.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockOrderStore) ReplaceItems(ctx context.Context, orderID string, items []recon.OrderItem) error {
	args := m.Called(ctx, orderID, items)
	return args.Error(0)
}

type MockCustomerStore struct {
	mock.Mock
}

func (m *MockCustomerStore) GetCustomerByID(ctx context.Context, id string) (*recon.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*recon.Customer), args.Error(1)
}

func (m *MockCustomerStore) FindCustomerByEmail(ctx context.Context, email string) (*recon.Customer, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*recon.Customer), args.Error(1)
}

func (m *MockCustomerStore) CreateCustomer(ctx context.Context, c *recon.Customer) (string, error) {
	args := m.Called(ctx, c)
	return args.String(0), args.Error(1)
}

func (m *MockCustomerStore) BackfillCustomer(ctx context.Context, id, firstName, lastName, phone string) error {
	args := m.Called(ctx, id, firstName, lastName, phone)
	return args.Error(0)
}

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) KnownProducts(ctx context.Context, ids []string) (map[string]bool, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]bool), args.Error(1)
}

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) RetrieveOrder(ctx context.Context, externalID string) (*recon.OrderFragment, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*recon.OrderFragment), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(n recon.Notification) {
	m.Called(n)
}
