package recon

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedEvent marks a delivery whose payload matched none of the known
// envelope shapes and carried no usable order id. Handlers reject these with
// 400 rather than crashing.
var ErrMalformedEvent = errors.New("malformed event")

type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type Recipient struct {
	DisplayName  string `json:"display_name"`
	EmailAddress string `json:"email_address"`
	PhoneNumber  string `json:"phone_number"`
}

type Fulfillment struct {
	Type          string `json:"type"`
	State         string `json:"state"`
	PickupDetails struct {
		Recipient Recipient `json:"recipient"`
	} `json:"pickup_details"`
}

type LineItem struct {
	CatalogObjectID string `json:"catalog_object_id"`
	Name            string `json:"name"`
	Quantity        int64  `json:"quantity"`
	BasePrice       Money  `json:"base_price_money"`
	TotalPrice      Money  `json:"total_money"`
}

type ShippingContact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// OrderFragment is the order data embedded in (or fetched to replace) a
// webhook delivery. Field layout follows the POS platform's order object.
type OrderFragment struct {
	ID              string            `json:"id"`
	ReferenceID     string            `json:"reference_id"`
	LocationID      string            `json:"location_id"`
	State           string            `json:"state"`
	LineItems       []LineItem        `json:"line_items"`
	SubtotalMoney   Money             `json:"subtotal_money"`
	TaxMoney        Money             `json:"total_tax_money"`
	ShippingMoney   Money             `json:"shipping_money"`
	TotalMoney      Money             `json:"total_money"`
	Fulfillments    []Fulfillment     `json:"fulfillments"`
	ShippingContact *ShippingContact  `json:"shipping_contact"`
	Metadata        map[string]string `json:"metadata"`
	Note            string            `json:"note"`
}

type PaymentFragment struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	Status      string `json:"status"`
	AmountMoney Money  `json:"amount_money"`
	BuyerEmail  string `json:"buyer_email_address"`
}

// CanonicalEvent is the normalized form every historical envelope shape
// collapses into.
type CanonicalEvent struct {
	Type            string
	ExternalOrderID string
	Order           *OrderFragment
	Payment         *PaymentFragment
}

type envelope struct {
	Type    string          `json:"type"`
	EventID string          `json:"event_id"`
	Data    json.RawMessage `json:"data"`
}

// A shapeMatcher tries one historical payload layout and reports no-match by
// returning false. Matchers are pure.
type shapeMatcher func(eventType string, data json.RawMessage) (*CanonicalEvent, bool)

// Ordered by precedence: current nested shape first, legacy flattened shape,
// then the id-only stub some notifications degrade to.
var shapeMatchers = []shapeMatcher{
	matchNestedObject,
	matchFlattened,
	matchIDStub,
}

// Normalize parses a raw webhook body into a CanonicalEvent, trying each
// known envelope shape in precedence order. It fails closed: if no shape
// matches and no order id can be extracted, ErrMalformedEvent is returned.
func Normalize(raw []byte) (*CanonicalEvent, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if env.Type == "" || len(env.Data) == 0 {
		return nil, fmt.Errorf("%w: missing type or data", ErrMalformedEvent)
	}
	for _, match := range shapeMatchers {
		if ev, ok := match(env.Type, env.Data); ok {
			return ev, nil
		}
	}
	return nil, fmt.Errorf("%w: unrecognized payload shape for %q", ErrMalformedEvent, env.Type)
}

// matchNestedObject handles the current shape: the fragment sits under a
// named key inside data.object.
func matchNestedObject(eventType string, data json.RawMessage) (*CanonicalEvent, bool) {
	var d struct {
		ID     string `json:"id"`
		Object struct {
			Order   *OrderFragment   `json:"order"`
			Payment *PaymentFragment `json:"payment"`
		} `json:"object"`
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, false
	}
	if d.Object.Order == nil && d.Object.Payment == nil {
		return nil, false
	}
	ev := &CanonicalEvent{Type: eventType, Order: d.Object.Order, Payment: d.Object.Payment}
	switch {
	case ev.Order != nil && ev.Order.ID != "":
		ev.ExternalOrderID = ev.Order.ID
	case ev.Payment != nil && ev.Payment.OrderID != "":
		ev.ExternalOrderID = ev.Payment.OrderID
	case d.ID != "":
		ev.ExternalOrderID = d.ID
	default:
		return nil, false
	}
	return ev, true
}

// matchFlattened handles the legacy shape where the fragment's fields sit
// directly on the data object.
func matchFlattened(eventType string, data json.RawMessage) (*CanonicalEvent, bool) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, false
	}
	if _, nested := keys["object"]; nested {
		return nil, false
	}
	if _, isPayment := keys["order_id"]; isPayment {
		var p PaymentFragment
		if err := json.Unmarshal(data, &p); err != nil || p.OrderID == "" {
			return nil, false
		}
		return &CanonicalEvent{Type: eventType, ExternalOrderID: p.OrderID, Payment: &p}, true
	}
	orderish := false
	for _, k := range []string{"state", "line_items", "total_money", "fulfillments"} {
		if _, ok := keys[k]; ok {
			orderish = true
			break
		}
	}
	if !orderish {
		return nil, false
	}
	var o OrderFragment
	if err := json.Unmarshal(data, &o); err != nil || o.ID == "" {
		return nil, false
	}
	return &CanonicalEvent{Type: eventType, ExternalOrderID: o.ID, Order: &o}, true
}

// matchIDStub handles the degenerate "something changed" notification that
// carries only an id. The caller must fetch the full order.
func matchIDStub(eventType string, data json.RawMessage) (*CanonicalEvent, bool) {
	var d struct {
		ID      string `json:"id"`
		OrderID string `json:"order_id"`
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, false
	}
	id := d.OrderID
	if id == "" {
		id = d.ID
	}
	if id == "" {
		return nil, false
	}
	return &CanonicalEvent{Type: eventType, ExternalOrderID: id}, true
}

// Sufficient reports whether the fragment carries enough data to reconcile
// financials and items. A sparse "state changed" notification must never
// zero out previously recorded totals/items, so the caller fetches the full
// order when this returns false.
func (f *OrderFragment) Sufficient() bool {
	if f == nil || len(f.LineItems) == 0 {
		return false
	}
	if f.TotalMoney.Amount > 0 {
		return true
	}
	for _, li := range f.LineItems {
		if li.TotalPrice.Amount <= 0 {
			return false
		}
	}
	return true
}

// FulfillmentState returns the first fulfillment's state, or "".
func (f *OrderFragment) FulfillmentState() string {
	if f == nil || len(f.Fulfillments) == 0 {
		return ""
	}
	return f.Fulfillments[0].State
}

// FulfillmentMethod returns the first fulfillment's type lowercased,
// defaulting to pickup.
func (f *OrderFragment) FulfillmentMethod() string {
	if f != nil && len(f.Fulfillments) > 0 && f.Fulfillments[0].Type != "" {
		return lower(f.Fulfillments[0].Type)
	}
	return "pickup"
}

// ContactInfo extracts the best-available recipient contact: pickup
// recipient first, shipping contact as fallback. Nothing is fabricated;
// empty strings mean the signal is absent.
func (f *OrderFragment) ContactInfo() (name, email, phone string) {
	if f == nil {
		return "", "", ""
	}
	for _, ful := range f.Fulfillments {
		rec := ful.PickupDetails.Recipient
		if rec.DisplayName != "" || rec.EmailAddress != "" || rec.PhoneNumber != "" {
			return rec.DisplayName, rec.EmailAddress, rec.PhoneNumber
		}
	}
	if f.ShippingContact != nil {
		return f.ShippingContact.Name, f.ShippingContact.Email, f.ShippingContact.Phone
	}
	return "", "", ""
}
