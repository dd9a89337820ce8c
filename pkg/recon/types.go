package recon

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by stores and the order fetcher when the
	// referenced row/resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateOrder is returned by InsertOrder when another delivery
	// already created the row for the same external id.
	ErrDuplicateOrder = errors.New("duplicate external order id")
)

// Contact is the denormalized recipient snapshot stored on the order row.
// Last reconciliation wins for this snapshot; the backfill-only rule applies
// to the customers table, not here.
type Contact struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type Order struct {
	ID                string
	ExternalID        string
	OrderNumber       string
	CustomerID        *string
	Status            Status
	PaymentStatus     PaymentStatus
	SubtotalCents     int64
	TaxCents          int64
	ShippingCents     int64
	TotalCents        int64
	Currency          string
	FulfillmentMethod string
	Contact           *Contact
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type OrderItem struct {
	ID             string
	OrderID        string
	ProductID      string
	Name           string
	Quantity       int64
	UnitPriceCents int64
	SubtotalCents  int64
}

type Customer struct {
	ID        string
	Email     string
	FirstName *string
	LastName  *string
	Phone     *string
	CreatedAt time.Time
}

// OrderStore is the reconciliation engine's view of the orders tables.
// external_id must be unique at the storage layer; the create/update race
// between concurrent deliveries is resolved by that constraint, not by
// in-process locking.
type OrderStore interface {
	GetOrderByExternalID(ctx context.Context, externalID string) (*Order, error)
	// LinkOrderByNumber attaches externalID to a checkout-created row that
	// has no external id yet, returning the linked order. ErrNotFound when
	// no such row exists, ErrDuplicateOrder when the external id is already
	// taken.
	LinkOrderByNumber(ctx context.Context, orderNumber, externalID string) (*Order, error)
	InsertOrder(ctx context.Context, o *Order) error
	UpdateOrder(ctx context.Context, o *Order) error
	// ReplaceItems deletes and re-inserts the full item set for one order
	// atomically.
	ReplaceItems(ctx context.Context, orderID string, items []OrderItem) error
}

// CustomerStore backs the identity reconciler. email must be unique at the
// storage layer.
type CustomerStore interface {
	GetCustomerByID(ctx context.Context, id string) (*Customer, error)
	FindCustomerByEmail(ctx context.Context, email string) (*Customer, error)
	// CreateCustomer returns the id of the row owning the email, whether
	// this call created it or lost a race to a concurrent delivery.
	CreateCustomer(ctx context.Context, c *Customer) (string, error)
	// BackfillCustomer fills name/phone only where the stored value is
	// currently null. It never overwrites customer-entered data.
	BackfillCustomer(ctx context.Context, id, firstName, lastName, phone string) error
}

// Catalog reports which product ids exist locally so unknown references can
// be skipped instead of aborting reconciliation.
type Catalog interface {
	KnownProducts(ctx context.Context, ids []string) (map[string]bool, error)
}

// OrderFetcher retrieves the authoritative full order from the POS platform
// when the webhook fragment is sparse.
type OrderFetcher interface {
	RetrieveOrder(ctx context.Context, externalID string) (*OrderFragment, error)
}

const (
	NotifyConfirmation = "confirmation"
	NotifyStatusChange = "status_change"
	NotifyOpsAlert     = "ops_alert"
)

type Notification struct {
	Kind          string `json:"kind"`
	OrderID       string `json:"order_id,omitempty"`
	OrderNumber   string `json:"order_number,omitempty"`
	Email         string `json:"email,omitempty"`
	Status        Status `json:"status,omitempty"`
	Detail        string `json:"detail,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// Notifier is fire-and-forget: implementations swallow and log their own
// failures. Reconciliation success never depends on notification success.
type Notifier interface {
	Notify(n Notification)
}
