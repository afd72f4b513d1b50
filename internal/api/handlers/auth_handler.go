package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/cartosante/internal/api/middleware"
	"github.com/zatekoja/cartosante/internal/domain/entities"
)

// SessionManager signs users in and out.
type SessionManager interface {
	SignIn(ctx context.Context, identifier, password string) (*entities.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// AuthHandler serves authentication endpoints.
type AuthHandler struct {
	sessions SessionManager
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(sessions SessionManager) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

type signInRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// SignIn handles POST /api/auth/sign-in
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	session, err := h.sessions.SignIn(r.Context(), req.Identifier, req.Password)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, session)
}

// SignOut handles POST /api/auth/sign-out
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.SignOut(r.Context(), middleware.BearerToken(r)); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PatientSession handles GET /api/patient/session. The patient guard has
// already run, so the session is in the context.
func (h *AuthHandler) PatientSession(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())
	if session == nil {
		respondWithError(w, http.StatusUnauthorized, "sign in required")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":    session.UserID,
		"email":      session.Email,
		"roles":      session.Roles,
		"expires_at": session.ExpiresAt,
	})
}
