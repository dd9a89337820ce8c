package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marigold-cafe/pos-backend/pkg/recon"
)

// pgxPool is the slice of *pgxpool.Pool the store uses. Tests substitute a
// pgxmock pool for it.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Postgres implements the recon store interfaces over pgx. The schema
// declares orders.external_id and customers.email unique; those constraints
// are the backbone of idempotency under concurrent deliveries.
type Postgres struct {
	pool pgxPool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// ---- orders ----

const orderColumns = `
	id, external_id, order_number, customer_id, status, payment_status,
	subtotal_cents, tax_cents, shipping_cents, total_cents, currency,
	fulfillment_method, contact, created_at, updated_at`

func scanOrder(row pgx.Row) (*recon.Order, error) {
	var o recon.Order
	err := row.Scan(
		&o.ID, &o.ExternalID, &o.OrderNumber, &o.CustomerID, &o.Status, &o.PaymentStatus,
		&o.SubtotalCents, &o.TaxCents, &o.ShippingCents, &o.TotalCents, &o.Currency,
		&o.FulfillmentMethod, &o.Contact, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, recon.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (p *Postgres) GetOrderByExternalID(ctx context.Context, externalID string) (*recon.Order, error) {
	return scanOrder(p.pool.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE external_id=$1
	`, externalID))
}

// LinkOrderByNumber adopts a checkout-created row (external_id still null)
// for the webhook stream, claiming it with the platform's id.
func (p *Postgres) LinkOrderByNumber(ctx context.Context, orderNumber, externalID string) (*recon.Order, error) {
	o, err := scanOrder(p.pool.QueryRow(ctx, `
		UPDATE orders
		SET external_id=$2, updated_at=now()
		WHERE order_number=$1 AND external_id IS NULL
		RETURNING `+orderColumns+`
	`, orderNumber, externalID))
	if isUniqueViolation(err) {
		return nil, recon.ErrDuplicateOrder
	}
	return o, err
}

func (p *Postgres) InsertOrder(ctx context.Context, o *recon.Order) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO orders
			(id, external_id, order_number, customer_id, status, payment_status,
			 subtotal_cents, tax_cents, shipping_cents, total_cents, currency,
			 fulfillment_method, contact, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, o.ID, o.ExternalID, o.OrderNumber, o.CustomerID, o.Status, o.PaymentStatus,
		o.SubtotalCents, o.TaxCents, o.ShippingCents, o.TotalCents, o.Currency,
		o.FulfillmentMethod, o.Contact, o.CreatedAt, o.UpdatedAt)
	if isUniqueViolation(err) {
		return recon.ErrDuplicateOrder
	}
	return err
}

func (p *Postgres) UpdateOrder(ctx context.Context, o *recon.Order) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE orders
		SET status=$2, payment_status=$3, customer_id=$4,
		    subtotal_cents=$5, tax_cents=$6, shipping_cents=$7, total_cents=$8,
		    currency=$9, fulfillment_method=$10, contact=$11, updated_at=now()
		WHERE id=$1
	`, o.ID, o.Status, o.PaymentStatus, o.CustomerID,
		o.SubtotalCents, o.TaxCents, o.ShippingCents, o.TotalCents,
		o.Currency, o.FulfillmentMethod, o.Contact)
	return err
}

// ReplaceItems swaps the full item set for one order inside a single
// transaction, so a duplicate concurrent delivery racing this one leaves
// behind one coherent set, never a mix.
func (p *Postgres) ReplaceItems(ctx context.Context, orderID string, items []recon.OrderItem) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id=$1`, orderID); err != nil {
		return err
	}
	for _, it := range items {
		id := it.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items
				(id, order_id, product_id, name, quantity, unit_price_cents, subtotal_cents)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, id, orderID, it.ProductID, it.Name, it.Quantity, it.UnitPriceCents, it.SubtotalCents); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// ---- customers ----

const customerColumns = `id, email, first_name, last_name, phone, created_at`

func scanCustomer(row pgx.Row) (*recon.Customer, error) {
	var c recon.Customer
	err := row.Scan(&c.ID, &c.Email, &c.FirstName, &c.LastName, &c.Phone, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, recon.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (p *Postgres) GetCustomerByID(ctx context.Context, id string) (*recon.Customer, error) {
	return scanCustomer(p.pool.QueryRow(ctx, `
		SELECT `+customerColumns+` FROM customers WHERE id=$1
	`, id))
}

func (p *Postgres) FindCustomerByEmail(ctx context.Context, email string) (*recon.Customer, error) {
	return scanCustomer(p.pool.QueryRow(ctx, `
		SELECT `+customerColumns+` FROM customers WHERE email=$1
	`, recon.NormalizeEmail(email)))
}

// CreateCustomer inserts a guest customer. A concurrent promotion for the
// same email resolves through the unique constraint: the loser re-reads and
// returns the winner's id.
func (p *Postgres) CreateCustomer(ctx context.Context, c *recon.Customer) (string, error) {
	id := uuid.NewString()
	email := recon.NormalizeEmail(c.Email)
	err := p.pool.QueryRow(ctx, `
		INSERT INTO customers (id, email, first_name, last_name, phone)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (email) DO NOTHING
		RETURNING id
	`, id, email, c.FirstName, c.LastName, c.Phone).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		err = p.pool.QueryRow(ctx, `SELECT id FROM customers WHERE email=$1`, email).Scan(&id)
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// BackfillCustomer fills name/phone only where currently null. Profile edits
// always win over webhook-derived data.
func (p *Postgres) BackfillCustomer(ctx context.Context, id, firstName, lastName, phone string) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE customers
		SET first_name = COALESCE(first_name, NULLIF($2,'')),
		    last_name  = COALESCE(last_name,  NULLIF($3,'')),
		    phone      = COALESCE(phone,      NULLIF($4,'')),
		    updated_at = now()
		WHERE id=$1
	`, id, firstName, lastName, phone)
	return err
}

// ---- catalog ----

func (p *Postgres) KnownProducts(ctx context.Context, ids []string) (map[string]bool, error) {
	known := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return known, nil
	}
	rows, err := p.pool.Query(ctx, `SELECT id FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		known[id] = true
	}
	return known, rows.Err()
}

// ---- webhook audit ----

// InsertWebhookEvent keeps the raw delivery for replay debugging.
func (p *Postgres) InsertWebhookEvent(ctx context.Context, provider, eventType, reference string, payload []byte) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO webhook_events (provider, event_type, reference, payload)
		VALUES ($1, $2, NULLIF($3,''), $4::jsonb)
	`, provider, eventType, reference, string(payload))
	return err
}
