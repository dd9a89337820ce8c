package recon

import "strings"

// Status is the single customer-facing order status. It merges the POS
// platform's fulfillment and payment signals; the two raw axes stay in
// separate columns so out-of-order payment and fulfillment webhooks cannot
// fight over one field.
type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "in_progress"
	StatusReady      Status = "ready"
	StatusPickedUp   Status = "picked_up"
	StatusCompleted  Status = "completed"
	StatusCanceled   Status = "canceled"
	StatusRefunded   Status = "refunded"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusPickedUp, StatusCompleted, StatusCanceled, StatusRefunded:
		return true
	}
	return false
}

// PaymentStatus is the independent payment axis persisted alongside Status.
type PaymentStatus string

const (
	PaymentNone      PaymentStatus = ""
	PaymentPending   PaymentStatus = "pending"
	PaymentApproved  PaymentStatus = "approved"
	PaymentCompleted PaymentStatus = "completed"
	PaymentRefunded  PaymentStatus = "refunded"
	PaymentCanceled  PaymentStatus = "canceled"
	PaymentFailed    PaymentStatus = "failed"
	PaymentVoided    PaymentStatus = "voided"
)

// NormalizePaymentStatus maps the platform's uppercase payment states onto
// the local enum. Unknown states pass through lowercased so they are at
// least visible in the column.
func NormalizePaymentStatus(raw string) PaymentStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "":
		return PaymentNone
	case "PENDING":
		return PaymentPending
	case "APPROVED", "AUTHORIZED":
		return PaymentApproved
	case "COMPLETED", "CAPTURED", "SUCCESS", "SUCCESSFUL":
		return PaymentCompleted
	case "REFUNDED":
		return PaymentRefunded
	case "CANCELED", "CANCELLED":
		return PaymentCanceled
	case "FAILED", "ERROR":
		return PaymentFailed
	case "VOIDED":
		return PaymentVoided
	}
	return PaymentStatus(strings.ToLower(raw))
}

// MapStatus derives the customer-facing status from the fulfillment state,
// the coarse order state, the effective payment status, and the currently
// stored status. Pure.
//
// Terminal statuses never change. For non-terminal orders, a refunded
// payment forces Refunded and a canceled/failed/voided payment forces
// Canceled. Otherwise fulfillment state wins over coarse order state, and a
// successful payment only promotes a brand-new order into In Progress.
func MapStatus(fulfillmentState, orderState string, pay PaymentStatus, current Status) Status {
	if current.Terminal() {
		return current
	}
	switch pay {
	case PaymentRefunded:
		return StatusRefunded
	case PaymentCanceled, PaymentFailed, PaymentVoided:
		return StatusCanceled
	}

	next := current
	switch strings.ToUpper(fulfillmentState) {
	case "PROPOSED", "RESERVED":
		next = StatusInProgress
	case "PREPARED":
		next = StatusReady
	case "COMPLETED":
		next = StatusPickedUp
	case "CANCELED", "CANCELLED":
		next = StatusCanceled
	default:
		switch strings.ToUpper(orderState) {
		case "DRAFT":
			next = StatusNew
		case "OPEN":
			next = StatusInProgress
		case "COMPLETED":
			next = StatusCompleted
		case "CANCELED", "CANCELLED":
			next = StatusCanceled
		default:
			if next == "" {
				next = StatusNew
			}
		}
	}

	if next == StatusNew && (pay == PaymentApproved || pay == PaymentCompleted) {
		next = StatusInProgress
	}
	return next
}

func lower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
