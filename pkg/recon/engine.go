package recon

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// Engine wires the pipeline for one delivery: completeness gate →
// authoritative fetch → identity resolution → idempotent write → fire-and-
// forget notification. Each call is stateless; correctness under concurrent
// deliveries rests on the store's unique constraints.
type Engine struct {
	orders   OrderStore
	writer   *Writer
	identity *IdentityReconciler
	fetcher  OrderFetcher
	notifier Notifier

	// per-attempt bound on outbound fetches; no store lock is ever held
	// while waiting on this
	fetchTimeout time.Duration
}

func NewEngine(orders OrderStore, customers CustomerStore, catalog Catalog, fetcher OrderFetcher, notifier Notifier) *Engine {
	return &Engine{
		orders:       orders,
		writer:       NewWriter(orders, catalog),
		identity:     NewIdentityReconciler(customers),
		fetcher:      fetcher,
		notifier:     notifier,
		fetchTimeout: 3 * time.Second,
	}
}

// ProcessEvent reconciles one canonical event. Upstream fetch failures and
// notification failures degrade (partial reconciliation beats none); only
// store failures surface as errors.
func (e *Engine) ProcessEvent(ctx context.Context, ev *CanonicalEvent) (Result, error) {
	frag := ev.Order

	if !frag.Sufficient() {
		known, err := e.orderKnown(ctx, ev.ExternalOrderID)
		if err != nil {
			return Result{}, err
		}
		// fetch when the fragment cannot safely overwrite financial data,
		// or when there is nothing local to fall back on
		if frag != nil || !known {
			if full := e.fetchWithRetry(ctx, ev.ExternalOrderID); full != nil {
				frag = full
			}
		}
	}

	customerID, err := e.identity.Resolve(ctx, frag)
	if err != nil {
		return Result{}, err
	}

	res, err := e.writer.Reconcile(ctx, ev.ExternalOrderID, frag, ev.Payment, customerID)
	if err != nil {
		return res, err
	}
	e.notifyOutcome(res)
	return res, nil
}

// ReconcileFull applies an authoritative full order, used by the out-of-band
// reconciliation job walking the platform's order list.
func (e *Engine) ReconcileFull(ctx context.Context, frag *OrderFragment) (Result, error) {
	if frag == nil || frag.ID == "" {
		return Result{Action: ActionSkipped}, nil
	}
	customerID, err := e.identity.Resolve(ctx, frag)
	if err != nil {
		return Result{}, err
	}
	res, err := e.writer.Reconcile(ctx, frag.ID, frag, nil, customerID)
	if err != nil {
		return res, err
	}
	e.notifyOutcome(res)
	return res, nil
}

func (e *Engine) orderKnown(ctx context.Context, externalID string) (bool, error) {
	_, err := e.orders.GetOrderByExternalID(ctx, externalID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// fetchWithRetry asks the platform for the authoritative order, retrying
// once. On repeated failure it returns nil and the caller proceeds with the
// best-available fragment.
func (e *Engine) fetchWithRetry(ctx context.Context, externalID string) *OrderFragment {
	for attempt := 1; attempt <= 2; attempt++ {
		fctx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
		full, err := e.fetcher.RetrieveOrder(fctx, externalID)
		cancel()
		if err == nil {
			return full
		}
		if errors.Is(err, ErrNotFound) {
			log.Warn().Str("external_id", externalID).Msg("order not found upstream")
			return nil
		}
		log.Warn().Err(err).Str("external_id", externalID).Int("attempt", attempt).Msg("order fetch failed")
	}
	log.Error().Str("external_id", externalID).Msg("order fetch exhausted, proceeding with webhook fragment")
	return nil
}

func (e *Engine) notifyOutcome(res Result) {
	if e.notifier == nil || res.ContactEmail == "" {
		return
	}
	switch {
	case res.Action == ActionCreated:
		e.notifier.Notify(Notification{
			Kind:        NotifyConfirmation,
			OrderID:     res.OrderID,
			OrderNumber: res.OrderNumber,
			Email:       res.ContactEmail,
			Status:      res.Status,
		})
	case res.Action == ActionUpdated && res.StatusChanged:
		e.notifier.Notify(Notification{
			Kind:        NotifyStatusChange,
			OrderID:     res.OrderID,
			OrderNumber: res.OrderNumber,
			Email:       res.ContactEmail,
			Status:      res.Status,
		})
	}
}
