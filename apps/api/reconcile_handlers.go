package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/marigold-cafe/pos-backend/pkg/recon"
)

type reconcileReq struct {
	BeginTime  *time.Time `json:"begin_time,omitempty"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	LocationID string     `json:"location_id,omitempty"`
}

// AdminReconcile walks the platform's order list for a time range and
// reconciles each full order. It is the safety net for deliveries the
// webhook path never received, not a per-event mechanism.
func (app *App) AdminReconcile(w http.ResponseWriter, r *http.Request) {
	// empty body is fine: defaults to the last 24 hours
	var body reconcileReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		httpError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	end := time.Now().UTC()
	if body.EndTime != nil {
		end = body.EndTime.UTC()
	}
	begin := end.Add(-24 * time.Hour)
	if body.BeginTime != nil {
		begin = body.BeginTime.UTC()
	}
	if !begin.Before(end) {
		httpError(w, http.StatusBadRequest, "invalid_time_range")
		return
	}

	orders, err := app.Square.SearchOrders(r.Context(), begin, end, body.LocationID)
	if err != nil {
		log.Error().Err(err).Msg("order list fetch failed")
		httpError(w, http.StatusBadGateway, "square_error")
		return
	}

	var created, updated, failed int
	for _, frag := range orders {
		res, err := app.Engine.ReconcileFull(r.Context(), frag)
		if err != nil {
			failed++
			log.Error().Err(err).Str("external_id", frag.ID).Msg("backfill reconcile failed")
			continue
		}
		switch res.Action {
		case recon.ActionCreated:
			created++
		case recon.ActionUpdated:
			updated++
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"scanned": len(orders),
			"created": created,
			"updated": updated,
			"failed":  failed,
		},
	})
}
