package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	a "github.com/marigold-cafe/pos-backend/pkg/auth"
)

// Staff accounts are provisioned out of band; this service only verifies
// them and issues short-lived access tokens for the operational endpoints.

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResp struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

func (app *App) Login(w http.ResponseWriter, r *http.Request) {
	var body loginReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	if email == "" || body.Password == "" {
		httpError(w, http.StatusBadRequest, "email_and_password_required")
		return
	}

	var id, hash, role string
	err := app.DB.QueryRow(r.Context(),
		`SELECT id, password_hash, role FROM staff_users WHERE email=$1`, email).
		Scan(&id, &hash, &role)
	if errors.Is(err, pgx.ErrNoRows) {
		httpError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("email", email).Msg("select staff user on login failed")
		httpError(w, http.StatusInternalServerError, "db_error")
		return
	}

	ok, err := a.CheckPassword(body.Password, hash)
	if err != nil || !ok {
		httpError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	token, err := a.GenerateAccess(app.JWTSecret, id, role, app.Cfg.AccessTokenTTL)
	if err != nil {
		log.Error().Err(err).Str("user_id", id).Msg("token issue failed")
		httpError(w, http.StatusInternalServerError, "token_issue_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": loginResp{Token: token, Role: role}})
}

// ---- helpers ----

func httpError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": map[string]string{"code": msg}})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
