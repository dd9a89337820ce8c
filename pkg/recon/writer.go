package recon

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionSkipped = "skipped"
)

// Result reports what one reconciliation pass did to the store.
type Result struct {
	Action        string `json:"action"`
	OrderID       string `json:"order_id,omitempty"`
	OrderNumber   string `json:"order_number,omitempty"`
	Status        Status `json:"status,omitempty"`
	StatusChanged bool   `json:"status_changed"`
	ContactEmail  string `json:"-"`
}

// Writer performs the idempotent read-modify-write against the order tables.
// Replaying the same event converges to the same row state: creates detect
// the unique-violation loser and fall through to the update path, and item
// sets are replaced as a unit, never patched.
type Writer struct {
	orders  OrderStore
	catalog Catalog
}

func NewWriter(orders OrderStore, catalog Catalog) *Writer {
	return &Writer{orders: orders, catalog: catalog}
}

// Reconcile applies one canonical order/payment fragment pair. frag may be
// nil (pure payment event) or insufficient (sparse delivery whose
// authoritative fetch failed); in both cases existing financial data and
// items are left untouched and only statuses move.
func (wr *Writer) Reconcile(ctx context.Context, externalID string, frag *OrderFragment, pay *PaymentFragment, customerID *string) (Result, error) {
	existing, err := wr.orders.GetOrderByExternalID(ctx, externalID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Result{}, err
	}

	if existing == nil {
		if frag == nil {
			// payment signal for an order we cannot materialize; a later
			// delivery or the backfill job will bring the order itself
			log.Warn().Str("external_id", externalID).Msg("payment event for unknown order with no order data, skipping")
			return Result{Action: ActionSkipped}, nil
		}
		res, err := wr.create(ctx, externalID, frag, pay, customerID)
		if !errors.Is(err, ErrDuplicateOrder) {
			return res, err
		}
		// lost the create race to a concurrent delivery of the same order
		log.Info().Str("external_id", externalID).Msg("create conflict, retrying as update")
		existing, err = wr.orders.GetOrderByExternalID(ctx, externalID)
		if err != nil {
			return Result{}, err
		}
	}

	return wr.update(ctx, existing, frag, pay, customerID)
}

func (wr *Writer) create(ctx context.Context, externalID string, frag *OrderFragment, pay *PaymentFragment, customerID *string) (Result, error) {
	// a checkout-created row carrying the platform reference gets linked
	// instead of duplicated
	if frag.ReferenceID != "" {
		linked, err := wr.orders.LinkOrderByNumber(ctx, frag.ReferenceID, externalID)
		switch {
		case err == nil:
			log.Info().Str("external_id", externalID).Str("order_id", linked.ID).Msg("linked checkout order to external id")
			return wr.update(ctx, linked, frag, pay, customerID)
		case errors.Is(err, ErrNotFound):
			// nothing to adopt, fall through to insert
		default:
			return Result{}, err
		}
	}

	now := time.Now().UTC()
	o := &Order{
		ID:                uuid.NewString(),
		ExternalID:        externalID,
		OrderNumber:       orderNumber(externalID, frag),
		CustomerID:        customerID,
		PaymentStatus:     effectivePayment(PaymentNone, pay),
		Currency:          fragCurrency(frag),
		FulfillmentMethod: frag.FulfillmentMethod(),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	o.Status = MapStatus(frag.FulfillmentState(), frag.State, o.PaymentStatus, "")
	applyFinancials(o, frag)
	o.Contact = contactSnapshot(frag)

	if err := wr.orders.InsertOrder(ctx, o); err != nil {
		return Result{}, err
	}
	if len(frag.LineItems) > 0 {
		if err := wr.replaceItems(ctx, o.ID, frag); err != nil {
			return Result{}, err
		}
	}
	return Result{
		Action:        ActionCreated,
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		Status:        o.Status,
		StatusChanged: true,
		ContactEmail:  contactEmail(o.Contact),
	}, nil
}

func (wr *Writer) update(ctx context.Context, o *Order, frag *OrderFragment, pay *PaymentFragment, customerID *string) (Result, error) {
	prev := o.Status
	o.PaymentStatus = effectivePayment(o.PaymentStatus, pay)
	o.Status = MapStatus(frag.FulfillmentState(), fragState(frag), o.PaymentStatus, prev)
	if customerID != nil {
		// link, never unlink
		o.CustomerID = customerID
	}
	if frag.Sufficient() {
		applyFinancials(o, frag)
	}
	if c := contactSnapshot(frag); c != nil {
		// order-scoped snapshot: last reconciliation wins
		o.Contact = c
	}
	o.UpdatedAt = time.Now().UTC()

	if err := wr.orders.UpdateOrder(ctx, o); err != nil {
		return Result{}, err
	}
	// re-applied even when the status is unchanged: the item data may have
	// just been backfilled via the authoritative fetch path. A fragment that
	// fails the completeness gate never touches the item set, so a sparse
	// delivery cannot overwrite priced lines with zero-priced ones.
	if frag.Sufficient() {
		if err := wr.replaceItems(ctx, o.ID, frag); err != nil {
			return Result{}, err
		}
	}
	return Result{
		Action:        ActionUpdated,
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		Status:        o.Status,
		StatusChanged: o.Status != prev,
		ContactEmail:  contactEmail(o.Contact),
	}, nil
}

// replaceItems swaps the full item set in one atomic unit, dropping lines
// whose product id is unknown locally.
func (wr *Writer) replaceItems(ctx context.Context, orderID string, frag *OrderFragment) error {
	ids := make([]string, 0, len(frag.LineItems))
	for _, li := range frag.LineItems {
		if li.CatalogObjectID != "" {
			ids = append(ids, li.CatalogObjectID)
		}
	}
	known, err := wr.catalog.KnownProducts(ctx, ids)
	if err != nil {
		return err
	}

	items := make([]OrderItem, 0, len(frag.LineItems))
	for _, li := range frag.LineItems {
		if !known[li.CatalogObjectID] {
			log.Warn().
				Str("order_id", orderID).
				Str("product_id", li.CatalogObjectID).
				Str("name", li.Name).
				Msg("line item references unknown product, skipping")
			continue
		}
		qty := li.Quantity
		if qty <= 0 {
			qty = 1
		}
		unit := li.BasePrice.Amount
		if unit == 0 {
			unit = li.TotalPrice.Amount / qty
		}
		sub := li.TotalPrice.Amount
		if sub == 0 {
			sub = unit * qty
		}
		items = append(items, OrderItem{
			ID:             uuid.NewString(),
			OrderID:        orderID,
			ProductID:      li.CatalogObjectID,
			Name:           li.Name,
			Quantity:       qty,
			UnitPriceCents: unit,
			SubtotalCents:  sub,
		})
	}
	return wr.orders.ReplaceItems(ctx, orderID, items)
}

// applyFinancials copies the fragment's money fields onto the order,
// restoring the total == subtotal + tax + shipping invariant when the
// fragment is missing one side of it.
func applyFinancials(o *Order, frag *OrderFragment) {
	o.SubtotalCents = frag.SubtotalMoney.Amount
	o.TaxCents = frag.TaxMoney.Amount
	o.ShippingCents = frag.ShippingMoney.Amount
	o.TotalCents = frag.TotalMoney.Amount

	if o.TotalCents == 0 {
		for _, li := range frag.LineItems {
			o.TotalCents += li.TotalPrice.Amount
		}
		o.TotalCents += o.TaxCents + o.ShippingCents
	}
	if o.SubtotalCents == 0 {
		o.SubtotalCents = o.TotalCents - o.TaxCents - o.ShippingCents
	}
	if got := o.SubtotalCents + o.TaxCents + o.ShippingCents; got != o.TotalCents {
		log.Warn().
			Str("external_id", o.ExternalID).
			Int64("total", o.TotalCents).
			Int64("parts", got).
			Msg("order totals do not add up, trusting total")
		o.SubtotalCents = o.TotalCents - o.TaxCents - o.ShippingCents
	}
}

func contactSnapshot(frag *OrderFragment) *Contact {
	name, email, phone := frag.ContactInfo()
	if name == "" && email == "" && phone == "" {
		return nil
	}
	return &Contact{Name: name, Email: NormalizeEmail(email), Phone: phone}
}

func contactEmail(c *Contact) string {
	if c == nil {
		return ""
	}
	return c.Email
}

// effectivePayment merges the incoming payment signal with the stored
// payment status; absence of a payment fragment leaves the axis alone.
func effectivePayment(stored PaymentStatus, pay *PaymentFragment) PaymentStatus {
	if pay == nil {
		return stored
	}
	if p := NormalizePaymentStatus(pay.Status); p != PaymentNone {
		return p
	}
	return stored
}

func fragState(frag *OrderFragment) string {
	if frag == nil {
		return ""
	}
	return frag.State
}

func fragCurrency(frag *OrderFragment) string {
	if frag != nil && frag.TotalMoney.Currency != "" {
		return frag.TotalMoney.Currency
	}
	return "USD"
}

// orderNumber picks the platform's human-readable reference when present,
// otherwise derives one from the external id tail.
func orderNumber(externalID string, frag *OrderFragment) string {
	if frag != nil && frag.ReferenceID != "" {
		return frag.ReferenceID
	}
	tail := externalID
	if len(tail) > 6 {
		tail = tail[len(tail)-6:]
	}
	return "SQ-" + strings.ToUpper(tail)
}
