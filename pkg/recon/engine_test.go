package recon_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/marigold-cafe/pos-backend/pkg/recon"
	"github.com/marigold-cafe/pos-backend/pkg/recon/mocks"
)

type engineFixture struct {
	orders    *mocks.MockOrderStore
	customers *mocks.MockCustomerStore
	catalog   *mocks.MockCatalog
	fetcher   *mocks.MockFetcher
	notifier  *mocks.MockNotifier
	engine    *recon.Engine
}

func newEngineFixture() *engineFixture {
	f := &engineFixture{
		orders:    new(mocks.MockOrderStore),
		customers: new(mocks.MockCustomerStore),
		catalog:   new(mocks.MockCatalog),
		fetcher:   new(mocks.MockFetcher),
		notifier:  new(mocks.MockNotifier),
	}
	f.engine = recon.NewEngine(f.orders, f.customers, f.catalog, f.fetcher, f.notifier)
	return f
}

func TestProcessEventSparseFragmentTriggersFetch(t *testing.T) {
	f := newEngineFixture()

	// fragment with completed fulfillment but zero line items
	sparse := &recon.OrderFragment{ID: "sq_123", State: "OPEN"}
	sparse.Fulfillments = []recon.Fulfillment{{Type: "PICKUP", State: "COMPLETED"}}

	full := twoItemFrag()
	full.Fulfillments = sparse.Fulfillments

	existing := &recon.Order{ID: "ord_1", ExternalID: "sq_123", Status: recon.StatusReady, PaymentStatus: recon.PaymentApproved}

	f.orders.On("GetOrderByExternalID", mock.Anything, "sq_123").Return(existing, nil)
	f.fetcher.On("RetrieveOrder", mock.Anything, "sq_123").Return(full, nil).Once()
	f.catalog.On("KnownProducts", mock.Anything, mock.Anything).Return(map[string]bool{"prod_1": true, "prod_2": true}, nil)
	f.orders.On("UpdateOrder", mock.Anything, existing).Return(nil)

	var replaced []recon.OrderItem
	f.orders.On("ReplaceItems", mock.Anything, "ord_1", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		replaced = args.Get(2).([]recon.OrderItem)
	})
	f.notifier.On("Notify", mock.Anything).Maybe()

	ev := &recon.CanonicalEvent{Type: "order.updated", ExternalOrderID: "sq_123", Order: sparse}
	res, err := f.engine.ProcessEvent(context.Background(), ev)
	require.NoError(t, err)

	// the authoritative order's items win over the empty fragment
	assert.Equal(t, recon.ActionUpdated, res.Action)
	assert.Equal(t, recon.StatusPickedUp, res.Status)
	assert.Len(t, replaced, 2)
	f.fetcher.AssertExpectations(t)
}

func TestProcessEventFetchFailureProceedsWithFragment(t *testing.T) {
	f := newEngineFixture()

	sparse := &recon.OrderFragment{ID: "sq_123", State: "OPEN"}
	sparse.Fulfillments = []recon.Fulfillment{{State: "PREPARED"}}

	existing := &recon.Order{ID: "ord_1", ExternalID: "sq_123", Status: recon.StatusInProgress, PaymentStatus: recon.PaymentApproved, TotalCents: 4000, SubtotalCents: 4000}

	f.orders.On("GetOrderByExternalID", mock.Anything, "sq_123").Return(existing, nil)
	// retried once, then the engine settles for the webhook fragment
	f.fetcher.On("RetrieveOrder", mock.Anything, "sq_123").Return(nil, assert.AnError).Twice()
	f.orders.On("UpdateOrder", mock.Anything, existing).Return(nil)
	f.notifier.On("Notify", mock.Anything).Maybe()

	ev := &recon.CanonicalEvent{Type: "order.updated", ExternalOrderID: "sq_123", Order: sparse}
	res, err := f.engine.ProcessEvent(context.Background(), ev)
	require.NoError(t, err)

	assert.Equal(t, recon.StatusReady, res.Status)
	assert.Equal(t, int64(4000), existing.TotalCents)
	f.fetcher.AssertExpectations(t)
}

func TestProcessEventPaymentForKnownOrderSkipsFetch(t *testing.T) {
	f := newEngineFixture()

	existing := &recon.Order{ID: "ord_1", ExternalID: "sq_123", Status: recon.StatusReady, PaymentStatus: recon.PaymentApproved}
	f.orders.On("GetOrderByExternalID", mock.Anything, "sq_123").Return(existing, nil)
	f.orders.On("UpdateOrder", mock.Anything, existing).Return(nil)
	f.notifier.On("Notify", mock.Anything).Maybe()

	ev := &recon.CanonicalEvent{
		Type:            "payment.updated",
		ExternalOrderID: "sq_123",
		Payment:         &recon.PaymentFragment{OrderID: "sq_123", Status: "VOIDED"},
	}
	res, err := f.engine.ProcessEvent(context.Background(), ev)
	require.NoError(t, err)

	assert.Equal(t, recon.StatusCanceled, res.Status)
	f.fetcher.AssertNotCalled(t, "RetrieveOrder", mock.Anything, mock.Anything)
}

func TestProcessEventPaymentForUnknownOrderFetches(t *testing.T) {
	f := newEngineFixture()

	full := twoItemFrag()
	f.orders.On("GetOrderByExternalID", mock.Anything, "sq_123").Return(nil, recon.ErrNotFound)
	f.fetcher.On("RetrieveOrder", mock.Anything, "sq_123").Return(full, nil).Once()
	f.catalog.On("KnownProducts", mock.Anything, mock.Anything).Return(map[string]bool{"prod_1": true, "prod_2": true}, nil)
	f.orders.On("InsertOrder", mock.Anything, mock.Anything).Return(nil)
	f.orders.On("ReplaceItems", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.notifier.On("Notify", mock.Anything).Maybe()

	ev := &recon.CanonicalEvent{
		Type:            "payment.created",
		ExternalOrderID: "sq_123",
		Payment:         &recon.PaymentFragment{OrderID: "sq_123", Status: "APPROVED"},
	}
	res, err := f.engine.ProcessEvent(context.Background(), ev)
	require.NoError(t, err)

	assert.Equal(t, recon.ActionCreated, res.Action)
	assert.Equal(t, recon.StatusInProgress, res.Status)
}

func TestProcessEventNotifiesOnStatusChange(t *testing.T) {
	f := newEngineFixture()

	existing := &recon.Order{
		ID: "ord_1", ExternalID: "sq_123",
		Status: recon.StatusInProgress, PaymentStatus: recon.PaymentApproved,
		Contact: &recon.Contact{Email: "pat@example.com"},
	}

	frag := twoItemFrag()
	frag.Fulfillments = []recon.Fulfillment{{Type: "PICKUP", State: "PREPARED"}}
	frag.Fulfillments[0].PickupDetails.Recipient = recon.Recipient{DisplayName: "Pat Doe", EmailAddress: "pat@example.com"}

	f.orders.On("GetOrderByExternalID", mock.Anything, "sq_123").Return(existing, nil)
	f.customers.On("FindCustomerByEmail", mock.Anything, "pat@example.com").Return(nil, recon.ErrNotFound)
	f.customers.On("CreateCustomer", mock.Anything, mock.Anything).Return("cust_1", nil)
	f.catalog.On("KnownProducts", mock.Anything, mock.Anything).Return(map[string]bool{"prod_1": true, "prod_2": true}, nil)
	f.orders.On("UpdateOrder", mock.Anything, existing).Return(nil)
	f.orders.On("ReplaceItems", mock.Anything, "ord_1", mock.Anything).Return(nil)

	f.notifier.On("Notify", mock.MatchedBy(func(n recon.Notification) bool {
		return n.Kind == recon.NotifyStatusChange && n.Email == "pat@example.com" && n.Status == recon.StatusReady
	})).Once()

	ev := &recon.CanonicalEvent{Type: "order.updated", ExternalOrderID: "sq_123", Order: frag}
	_, err := f.engine.ProcessEvent(context.Background(), ev)
	require.NoError(t, err)
	f.notifier.AssertExpectations(t)
}

func TestReconcileFullUsedByBackfillJob(t *testing.T) {
	f := newEngineFixture()

	frag := twoItemFrag()
	f.orders.On("GetOrderByExternalID", mock.Anything, "sq_123").Return(nil, recon.ErrNotFound)
	f.catalog.On("KnownProducts", mock.Anything, mock.Anything).Return(map[string]bool{"prod_1": true, "prod_2": true}, nil)
	f.orders.On("InsertOrder", mock.Anything, mock.Anything).Return(nil)
	f.orders.On("ReplaceItems", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.notifier.On("Notify", mock.Anything).Maybe()

	res, err := f.engine.ReconcileFull(context.Background(), frag)
	require.NoError(t, err)
	assert.Equal(t, recon.ActionCreated, res.Action)

	// nil and id-less fragments are skipped, not errors
	res, err = f.engine.ReconcileFull(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, recon.ActionSkipped, res.Action)
}
