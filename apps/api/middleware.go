package main

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/marigold-cafe/pos-backend/pkg/recon"
)

// unique key type for request-id in context; avoids clashing with other files
type reqIDKeyType struct{}

var reqIDKey reqIDKeyType

// RequestIDMiddleware attaches/returns a request ID. It doubles as the
// correlation id: on a 500 the same value lands in the response body and in
// the ops alert so on-call staff can find the exact failed delivery.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		ctx := context.WithValue(r.Context(), reqIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SecurityHeadersMiddleware sets a safe baseline of security headers.
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// ----- tiny helpers: status capture + ctx getter -----

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func wrapWriter(w http.ResponseWriter) *statusWriter {
	return &statusWriter{ResponseWriter: w, status: http.StatusOK}
}

func reqIDFromCtx(ctx context.Context) string {
	if v := ctx.Value(reqIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// AccessLogMiddleware logs a concise structured access log per request and
// converts panics into a 500 carrying the correlation id.
func (app *App) AccessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := wrapWriter(w)
		corrID := reqIDFromCtx(r.Context())

		defer func() {
			if rec := recover(); rec != nil {
				log.Error().
					Interface("panic", rec).
					Str("correlation_id", corrID).
					Str("url", r.URL.String()).
					Msg("panic recovered")
				if app.Notifier != nil {
					app.Notifier.Notify(recon.Notification{
						Kind:          recon.NotifyOpsAlert,
						Detail:        "panic during request handling",
						CorrelationID: corrID,
					})
				}
				httpError(ww, http.StatusInternalServerError, "internal_error: "+corrID)
			}
		}()

		next.ServeHTTP(ww, r)
		duration := time.Since(start)

		if ww.status >= 400 {
			log.Error().
				Str("method", r.Method).
				Str("url", r.URL.String()).
				Str("correlation_id", corrID).
				Int("status", ww.status).
				Dur("duration", duration).
				Msg("request failed")
		} else {
			log.Debug().
				Str("method", r.Method).
				Str("url", r.URL.String()).
				Int("status", ww.status).
				Dur("duration", duration).
				Msg("request completed")
		}
	})
}
