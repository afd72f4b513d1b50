package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/cartosante/internal/api/middleware"
	"github.com/zatekoja/cartosante/internal/domain/entities"
	apperrors "github.com/zatekoja/cartosante/pkg/errors"
)

type fakeAuthenticator struct {
	sessions  map[string]*entities.Session
	rolesDown bool
	signedOut []string
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, token string) (*entities.Session, error) {
	if f.rolesDown {
		return nil, apperrors.NewInternalError("failed to load user roles", assert.AnError)
	}
	s, ok := f.sessions[token]
	if !ok {
		return nil, apperrors.NewUnauthorizedError("invalid or expired session")
	}
	return s, nil
}

func (f *fakeAuthenticator) EnsureAdmin(s *entities.Session) error {
	if !s.IsAdmin() {
		return apperrors.NewForbiddenError("admin role required")
	}
	return nil
}

func (f *fakeAuthenticator) EnsurePatient(_ context.Context, s *entities.Session) error {
	if s.IsPatientOnly() {
		return nil
	}
	f.signedOut = append(f.signedOut, s.AccessToken)
	return apperrors.NewForbiddenError("access denied")
}

func newFakeAuth() *fakeAuthenticator {
	return &fakeAuthenticator{sessions: map[string]*entities.Session{
		"admin":   {UserID: "a1", AccessToken: "admin", Roles: []string{"super_admin"}},
		"patient": {UserID: "p1", AccessToken: "patient", Roles: []string{"patient"}},
		"doctor":  {UserID: "d1", AccessToken: "doctor", Roles: []string{"patient", "doctor"}},
	}}
}

func echoUser(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(middleware.SessionFromContext(r.Context()).UserID))
}

func call(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRequireAdmin(t *testing.T) {
	auth := newFakeAuth()
	h := middleware.RequireAdmin(auth)(http.HandlerFunc(echoUser))

	rec := call(h, "admin")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a1", rec.Body.String())

	assert.Equal(t, http.StatusForbidden, call(h, "patient").Code)
	assert.Equal(t, http.StatusUnauthorized, call(h, "").Code)
	assert.Equal(t, http.StatusUnauthorized, call(h, "forged").Code)
}

func TestRequirePatient(t *testing.T) {
	auth := newFakeAuth()
	h := middleware.RequirePatient(auth)(http.HandlerFunc(echoUser))

	rec := call(h, "patient")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "p1", rec.Body.String())

	rec = call(h, "doctor")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"access denied"}`, rec.Body.String())
	assert.Equal(t, []string{"doctor"}, auth.signedOut)

	assert.Equal(t, http.StatusForbidden, call(h, "admin").Code)
}

func TestRequireSession_RoleLookupFailure(t *testing.T) {
	auth := newFakeAuth()
	auth.rolesDown = true
	rec := call(middleware.RequireAdmin(auth)(http.HandlerFunc(echoUser)), "admin")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", middleware.BearerToken(req))

	req.Header.Set("Authorization", "bearer  abc ")
	assert.Equal(t, "abc", middleware.BearerToken(req))

	req.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, "", middleware.BearerToken(req))
}
