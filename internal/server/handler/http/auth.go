// Package http provides the HTTP handlers of the CertTrack API: login and
// user administration, certificates and Drive folder routing.
package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/atinyakov/CertTrack/internal/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AuthService defines the authentication operations required by the
// HTTP handlers.
type AuthService interface {
	// Login checks the credentials and returns the caller's claims.
	Login(ctx context.Context, username, password string) (*models.Claims, error)
	// ListUsers returns every user without credentials.
	ListUsers(ctx context.Context) ([]models.User, error)
	// ChangePassword enforces the minimum password length.
	ChangePassword(ctx context.Context, username, newPassword string) error
	// ResetPassword only requires a non-empty password.
	ResetPassword(ctx context.Context, username, newPassword string) error
}

// AuthHandler handles login and password management requests.
type AuthHandler struct {
	// AuthService performs the underlying authentication operations.
	AuthService AuthService
	Log         *zap.Logger
}

// LoginRequest represents the JSON payload for login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// PasswordRequest is the body of both password endpoints. Username is only
// read by the legacy endpoint.
type PasswordRequest struct {
	Username    string `json:"username"`
	NewPassword string `json:"newPassword"`
}

// Login handles POST /api/auth/login.
// It responds with the username, role and company of the caller.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request")
		return
	}

	claims, err := h.AuthService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, claims)
}

// Users handles GET /api/auth/users.
func (h *AuthHandler) Users(w http.ResponseWriter, r *http.Request) {
	users, err := h.AuthService.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// ChangePassword handles PUT /api/admin/users/{username}/password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req PasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request")
		return
	}

	username := chi.URLParam(r, "username")
	if err := h.AuthService.ChangePassword(r.Context(), username, req.NewPassword); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// ResetPassword handles the legacy PUT /api/admin/users/password, which
// carries the username in the body.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req PasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request")
		return
	}

	if err := h.AuthService.ResetPassword(r.Context(), req.Username, req.NewPassword); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
