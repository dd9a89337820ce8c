// apps/api/webhook_handlers.go
package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/marigold-cafe/pos-backend/pkg/recon"
	"github.com/marigold-cafe/pos-backend/pkg/square"
)

const signatureHeader = "X-Square-Hmacsha256-Signature"

// handledEventTypes are the lifecycle events this engine reconciles.
// Everything else is acknowledged and ignored so the platform stops
// retrying.
var handledEventTypes = map[string]bool{
	"order.updated":   true,
	"payment.created": true,
	"payment.updated": true,
}

type webhookResponse struct {
	Success   bool           `json:"success"`
	EventType string         `json:"event_type"`
	Processed bool           `json:"processed"`
	Results   []recon.Result `json:"results"`
}

// SquareWebhook ingests one at-least-once, no-ordering delivery. The body is
// read exactly once and the same raw bytes feed both signature verification
// and parsing; anything that deserializes first would break the HMAC check.
func (app *App) SquareWebhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	_ = r.Body.Close()
	if err != nil {
		httpError(w, http.StatusBadRequest, "unreadable_body")
		return
	}

	if !square.VerifySignature(raw, r.Header.Get(signatureHeader), app.Cfg.Square.WebhookSecret) {
		httpError(w, http.StatusForbidden, "invalid_signature")
		return
	}

	var head struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &head); err != nil || head.Type == "" || len(head.Data) == 0 {
		httpError(w, http.StatusBadRequest, "malformed_payload")
		return
	}

	if !handledEventTypes[head.Type] {
		log.Debug().Str("event_type", head.Type).Msg("ignoring unhandled webhook type")
		writeJSON(w, http.StatusOK, webhookResponse{Success: true, EventType: head.Type, Processed: false, Results: []recon.Result{}})
		return
	}

	ev, err := recon.Normalize(raw)
	if err != nil {
		log.Warn().Err(err).Str("event_type", head.Type).Msg("rejecting malformed event")
		httpError(w, http.StatusBadRequest, "malformed_payload")
		return
	}

	// raw delivery kept for replay debugging; best-effort
	if app.Store != nil {
		if err := app.Store.InsertWebhookEvent(r.Context(), "square", ev.Type, ev.ExternalOrderID, raw); err != nil {
			log.Error().Err(err).Msg("webhook audit insert failed")
		}
	}

	res, err := app.Engine.ProcessEvent(r.Context(), ev)
	if err != nil {
		corrID := reqIDFromCtx(r.Context())
		log.Error().
			Err(err).
			Str("correlation_id", corrID).
			Str("event_type", ev.Type).
			Str("external_id", ev.ExternalOrderID).
			Msg("reconciliation failed")
		if app.Notifier != nil && !errors.Is(err, recon.ErrMalformedEvent) {
			app.Notifier.Notify(recon.Notification{
				Kind:          recon.NotifyOpsAlert,
				Detail:        "reconciliation failed: " + err.Error(),
				CorrelationID: corrID,
			})
		}
		httpError(w, http.StatusInternalServerError, "internal_error: "+corrID)
		return
	}

	writeJSON(w, http.StatusOK, webhookResponse{
		Success:   true,
		EventType: ev.Type,
		Processed: res.Action != recon.ActionSkipped,
		Results:   []recon.Result{res},
	})
}
