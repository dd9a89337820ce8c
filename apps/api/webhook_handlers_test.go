package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/marigold-cafe/pos-backend/pkg/recon"
	"github.com/marigold-cafe/pos-backend/pkg/recon/mocks"
	"github.com/marigold-cafe/pos-backend/pkg/square"
)

const testSecret = "test_webhook_secret"

type webhookFixture struct {
	app     *App
	orders  *mocks.MockOrderStore
	catalog *mocks.MockCatalog
	fetcher *mocks.MockFetcher
}

func newWebhookFixture() *webhookFixture {
	f := &webhookFixture{
		orders:  new(mocks.MockOrderStore),
		catalog: new(mocks.MockCatalog),
		fetcher: new(mocks.MockFetcher),
	}
	customers := new(mocks.MockCustomerStore)
	cfg := Config{Square: square.Config{WebhookSecret: testSecret}}
	f.app = &App{
		Engine: recon.NewEngine(f.orders, customers, f.catalog, f.fetcher, nil),
		Cfg:    cfg,
	}
	return f
}

func postWebhook(t *testing.T, app *App, body []byte, sign bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/square", bytes.NewReader(body))
	if sign {
		req.Header.Set(signatureHeader, square.SignBody(body, testSecret))
	}
	rr := httptest.NewRecorder()
	app.SquareWebhook(rr, req)
	return rr
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	f := newWebhookFixture()
	body := []byte(`{"type":"order.updated","data":{"id":"sq_1"}}`)

	rr := postWebhook(t, f.app, body, false)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/square", bytes.NewReader(body))
	req.Header.Set(signatureHeader, square.SignBody([]byte("other body"), testSecret))
	rr = httptest.NewRecorder()
	f.app.SquareWebhook(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	f.orders.AssertNotCalled(t, "GetOrderByExternalID", mock.Anything, mock.Anything)
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	f := newWebhookFixture()
	for name, body := range map[string][]byte{
		"broken json":  []byte(`{"type":`),
		"missing type": []byte(`{"data":{"id":"sq_1"}}`),
		"missing data": []byte(`{"type":"order.updated"}`),
		"no usable id": []byte(`{"type":"order.updated","data":{"foo":1}}`),
	} {
		t.Run(name, func(t *testing.T) {
			rr := postWebhook(t, f.app, body, true)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestWebhookAcknowledgesUnknownType(t *testing.T) {
	f := newWebhookFixture()
	body := []byte(`{"type":"catalog.updated","data":{"id":"obj_1"}}`)

	rr := postWebhook(t, f.app, body, true)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp webhookResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "catalog.updated", resp.EventType)
	assert.False(t, resp.Processed)
	f.orders.AssertNotCalled(t, "GetOrderByExternalID", mock.Anything, mock.Anything)
}

func TestWebhookProcessesOrderUpdated(t *testing.T) {
	f := newWebhookFixture()

	f.orders.On("GetOrderByExternalID", mock.Anything, "sq_123").Return(nil, recon.ErrNotFound)
	f.catalog.On("KnownProducts", mock.Anything, mock.Anything).Return(map[string]bool{"prod_1": true}, nil)
	f.orders.On("InsertOrder", mock.Anything, mock.Anything).Return(nil)
	f.orders.On("ReplaceItems", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	body := []byte(`{
		"type": "order.updated",
		"data": {
			"object": {
				"order": {
					"id": "sq_123",
					"state": "OPEN",
					"line_items": [{"catalog_object_id": "prod_1", "name": "Latte", "quantity": 2, "total_money": {"amount": 900}}],
					"total_money": {"amount": 900, "currency": "USD"}
				}
			}
		}
	}`)

	rr := postWebhook(t, f.app, body, true)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp webhookResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.True(t, resp.Processed)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, recon.ActionCreated, resp.Results[0].Action)
	assert.Equal(t, recon.StatusInProgress, resp.Results[0].Status)
}

func TestWebhookReportsStoreFailureWithCorrelationID(t *testing.T) {
	f := newWebhookFixture()

	f.orders.On("GetOrderByExternalID", mock.Anything, "sq_9").Return(nil, assert.AnError)

	body := []byte(`{"type":"payment.updated","data":{"id":"pay_1","order_id":"sq_9","status":"APPROVED"}}`)
	rr := postWebhook(t, f.app, body, true)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
