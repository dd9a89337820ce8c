package recon

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

// note fallback for platform configurations that cannot carry structured
// metadata, e.g. "customer_id: 7f3a..."
var noteCustomerRe = regexp.MustCompile(`customer_id:\s*([A-Za-z0-9-]+)`)

// IdentityReconciler resolves the local customer an order belongs to, or nil
// when the order stays a pure guest order.
type IdentityReconciler struct {
	customers CustomerStore
}

func NewIdentityReconciler(customers CustomerStore) *IdentityReconciler {
	return &IdentityReconciler{customers: customers}
}

// Resolve walks the resolution ladder: explicit metadata customer id, note
// token, email lookup against recipient/shipping contact, guest promotion,
// then nil. A matched customer gets name/phone backfilled only where the
// stored field is null.
func (ir *IdentityReconciler) Resolve(ctx context.Context, frag *OrderFragment) (*string, error) {
	if frag == nil {
		return nil, nil
	}

	if id := strings.TrimSpace(frag.Metadata["customer_id"]); id != "" {
		c, err := ir.lookupByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if c != nil {
			return &c.ID, nil
		}
		log.Warn().Str("customer_id", id).Msg("metadata references unknown customer, falling through")
	}

	if m := noteCustomerRe.FindStringSubmatch(frag.Note); m != nil {
		c, err := ir.lookupByID(ctx, m[1])
		if err != nil {
			return nil, err
		}
		if c != nil {
			return &c.ID, nil
		}
		log.Warn().Str("customer_id", m[1]).Msg("note references unknown customer, falling through")
	}

	name, email, phone := frag.ContactInfo()
	email = NormalizeEmail(email)
	if email == "" {
		// no identity signal at all: contact info stays on the order row
		// only, nothing is fabricated
		return nil, nil
	}

	first, last := splitName(name)

	existing, err := ir.customers.FindCustomerByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		if err := ir.customers.BackfillCustomer(ctx, existing.ID, first, last, phone); err != nil {
			// backfill is best-effort; the link itself still stands
			log.Error().Err(err).Str("customer_id", existing.ID).Msg("customer backfill failed")
		}
		return &existing.ID, nil
	}

	// guest promotion: the unique email constraint makes concurrent
	// promotions for the same address converge on one row
	c := &Customer{Email: email}
	if first != "" {
		c.FirstName = &first
	}
	if last != "" {
		c.LastName = &last
	}
	if phone != "" {
		c.Phone = &phone
	}
	id, err := ir.customers.CreateCustomer(ctx, c)
	if err != nil {
		return nil, err
	}
	log.Info().Str("customer_id", id).Str("email", email).Msg("guest customer created")
	return &id, nil
}

func (ir *IdentityReconciler) lookupByID(ctx context.Context, id string) (*Customer, error) {
	c, err := ir.customers.GetCustomerByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// NormalizeEmail is the natural-key normalization shared by lookup and
// storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func splitName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}
	parts := strings.SplitN(full, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.TrimSpace(parts[1])
}
