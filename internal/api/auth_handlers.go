package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/terra-clan/bumpstory/internal/auth"
	"github.com/terra-clan/bumpstory/internal/models"
)

// respondAuthError maps auth service errors onto HTTP statuses
func respondAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, auth.ErrEmailTaken):
		respondError(w, http.StatusConflict, "email_taken", "an account with this email already exists")
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
	default:
		slog.Error("auth error", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "authentication failed")
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := s.auth.Register(r.Context(), req)
	if err != nil {
		respondAuthError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := s.auth.Login(r.Context(), req)
	if err != nil {
		respondAuthError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	revoked, err := s.auth.Logout(r.Context(), claims)
	if err != nil {
		slog.Error("failed to revoke token", "error", err, "user_id", claims.UserID)
		respondError(w, http.StatusServiceUnavailable, "revocation_failed", "failed to revoke access token")
		return
	}

	// revoked=false tells clients the token stays valid until it expires
	respondJSON(w, http.StatusOK, models.LogoutResponse{
		Message: "logged out",
		Revoked: revoked,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	user, err := s.repo.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		respondStorageError(w, err, "user")
		return
	}

	respondJSON(w, http.StatusOK, user)
}
