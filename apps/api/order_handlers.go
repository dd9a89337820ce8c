package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

type orderDTO struct {
	ID            string    `json:"id"`
	ExternalID    *string   `json:"externalId,omitempty"`
	OrderNumber   string    `json:"orderNumber"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"paymentStatus"`
	TotalCents    int64     `json:"totalCents"`
	Currency      string    `json:"currency"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ListRecentOrders is a staff convenience view over the reconciled rows.
func (app *App) ListRecentOrders(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	rows, err := app.DB.Query(r.Context(), `
		SELECT id, external_id, order_number, status, payment_status, total_cents, currency, created_at, updated_at
		FROM orders
		ORDER BY updated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to query orders")
		httpError(w, http.StatusInternalServerError, "db_error")
		return
	}
	defer rows.Close()

	var out []orderDTO
	for rows.Next() {
		var o orderDTO
		if err := rows.Scan(&o.ID, &o.ExternalID, &o.OrderNumber, &o.Status, &o.PaymentStatus, &o.TotalCents, &o.Currency, &o.CreatedAt, &o.UpdatedAt); err != nil {
			log.Error().Err(err).Msg("failed to scan order row")
			httpError(w, http.StatusInternalServerError, "scan_error")
			return
		}
		out = append(out, o)
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}
