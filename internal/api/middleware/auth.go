package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/zatekoja/cartosante/internal/domain/entities"
	apperrors "github.com/zatekoja/cartosante/pkg/errors"
)

// Authenticator resolves bearer tokens to sessions and enforces role gates.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*entities.Session, error)
	EnsureAdmin(session *entities.Session) error
	EnsurePatient(ctx context.Context, session *entities.Session) error
}

type sessionKey struct{}

// WithSession returns ctx carrying session.
func WithSession(ctx context.Context, session *entities.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// SessionFromContext returns the authenticated session, or nil.
func SessionFromContext(ctx context.Context) *entities.Session {
	session, _ := ctx.Value(sessionKey{}).(*entities.Session)
	return session
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// RequireAdmin only lets admin sessions through.
func RequireAdmin(auth Authenticator) func(http.Handler) http.Handler {
	return requireSession(auth, func(_ *http.Request, s *entities.Session) error {
		return auth.EnsureAdmin(s)
	})
}

// RequirePatient only lets patient-only sessions through. Other sessions are
// signed out by the authenticator.
func RequirePatient(auth Authenticator) func(http.Handler) http.Handler {
	return requireSession(auth, func(r *http.Request, s *entities.Session) error {
		return auth.EnsurePatient(r.Context(), s)
	})
}

func requireSession(auth Authenticator, check func(*http.Request, *entities.Session) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := auth.Authenticate(r.Context(), BearerToken(r))
			if err == nil {
				err = check(r, session)
			}
			if err != nil {
				writeAuthError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

func writeAuthError(w http.ResponseWriter, err error) {
	status := http.StatusUnauthorized
	switch {
	case apperrors.IsType(err, apperrors.ErrorTypeForbidden):
		status = http.StatusForbidden
	case apperrors.IsType(err, apperrors.ErrorTypeInternal), apperrors.IsType(err, apperrors.ErrorTypeExternal):
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": apperrors.UserMessage(err)})
}
