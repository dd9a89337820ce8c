package recon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapStatusFulfillmentAxis(t *testing.T) {
	tests := []struct {
		fulfillment string
		want        Status
	}{
		{"PROPOSED", StatusInProgress},
		{"RESERVED", StatusInProgress},
		{"PREPARED", StatusReady},
		{"COMPLETED", StatusPickedUp},
		{"CANCELED", StatusCanceled},
	}
	for _, tt := range tests {
		t.Run(tt.fulfillment, func(t *testing.T) {
			got := MapStatus(tt.fulfillment, "OPEN", PaymentNone, StatusNew)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMapStatusCoarseFallback(t *testing.T) {
	tests := []struct {
		state string
		want  Status
	}{
		{"DRAFT", StatusNew},
		{"OPEN", StatusInProgress},
		{"COMPLETED", StatusCompleted},
		{"CANCELED", StatusCanceled},
	}
	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			got := MapStatus("", tt.state, PaymentNone, StatusNew)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMapStatusPaymentOverrides(t *testing.T) {
	// refunded wins over any fulfillment signal
	assert.Equal(t, StatusRefunded, MapStatus("PREPARED", "OPEN", PaymentRefunded, StatusReady))
	// canceled/failed/voided force Canceled
	for _, p := range []PaymentStatus{PaymentCanceled, PaymentFailed, PaymentVoided} {
		assert.Equal(t, StatusCanceled, MapStatus("", "OPEN", p, StatusReady), string(p))
	}
}

func TestMapStatusApprovedPromotesNewOnly(t *testing.T) {
	// brand-new order moves out of its initial state once
	assert.Equal(t, StatusInProgress, MapStatus("", "DRAFT", PaymentApproved, ""))
	// but an approved payment never advances a fulfillment-derived status
	assert.Equal(t, StatusReady, MapStatus("PREPARED", "OPEN", PaymentApproved, StatusInProgress))
	assert.Equal(t, StatusInProgress, MapStatus("RESERVED", "OPEN", PaymentCompleted, StatusInProgress))
}

func TestMapStatusTerminalIsSticky(t *testing.T) {
	// once refunded, fulfillment-only events cannot move the status
	assert.Equal(t, StatusRefunded, MapStatus("PREPARED", "OPEN", PaymentRefunded, StatusRefunded))
	assert.Equal(t, StatusRefunded, MapStatus("COMPLETED", "", PaymentNone, StatusRefunded))
	assert.Equal(t, StatusPickedUp, MapStatus("PREPARED", "OPEN", PaymentNone, StatusPickedUp))
	assert.Equal(t, StatusCanceled, MapStatus("PROPOSED", "OPEN", PaymentNone, StatusCanceled))
}

func TestMapStatusNoSignalKeepsCurrent(t *testing.T) {
	assert.Equal(t, StatusReady, MapStatus("", "", PaymentNone, StatusReady))
	assert.Equal(t, StatusNew, MapStatus("", "", PaymentNone, ""))
}

func TestNormalizePaymentStatus(t *testing.T) {
	assert.Equal(t, PaymentApproved, NormalizePaymentStatus("APPROVED"))
	assert.Equal(t, PaymentCompleted, NormalizePaymentStatus("COMPLETED"))
	assert.Equal(t, PaymentVoided, NormalizePaymentStatus("voided"))
	assert.Equal(t, PaymentRefunded, NormalizePaymentStatus(" REFUNDED "))
	assert.Equal(t, PaymentNone, NormalizePaymentStatus(""))
	assert.Equal(t, PaymentStatus("weird"), NormalizePaymentStatus("WEIRD"))
}
