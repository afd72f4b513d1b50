package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/zatekoja/cartosante/pkg/errors"
)

func TestHTTPAuthProvider_SignIn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "awa@example.ga", body["email"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "tok-1",
			"expires_in":   3600,
			"user":         map[string]string{"id": "u1", "email": "awa@example.ga"},
		})
	}))
	defer server.Close()

	p := NewHTTPAuthProvider(server.URL+"/auth/v1/", "anon-key")
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	session, err := p.SignIn(context.Background(), "awa@example.ga", "secret")
	require.NoError(t, err)
	assert.Equal(t, "u1", session.UserID)
	assert.Equal(t, "tok-1", session.AccessToken)
	assert.Equal(t, fixed.Add(time.Hour), session.ExpiresAt)
	assert.Empty(t, session.Roles)
}

func TestHTTPAuthProvider_SignInRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
	}))
	defer server.Close()

	_, err := NewHTTPAuthProvider(server.URL, "").SignIn(context.Background(), "x", "y")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))
}

func TestHTTPAuthProvider_SignInUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewHTTPAuthProvider(server.URL, "").SignIn(context.Background(), "x", "y")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
}

func TestHTTPAuthProvider_SignOut(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.Header.Get("Authorization") == "Bearer expired" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	p := NewHTTPAuthProvider(server.URL, "")
	require.NoError(t, p.SignOut(context.Background(), "tok-1"))
	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.NoError(t, p.SignOut(context.Background(), "expired"))
}
