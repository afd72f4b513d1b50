package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zatekoja/cartosante/internal/domain/entities"
	"github.com/zatekoja/cartosante/internal/domain/providers"
	apperrors "github.com/zatekoja/cartosante/pkg/errors"
)

// HTTPAuthProvider talks to the hosted authentication service over its
// password-grant REST API.
type HTTPAuthProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	now        func() time.Time
}

// NewHTTPAuthProvider creates an auth provider for the service at baseURL.
func NewHTTPAuthProvider(baseURL, apiKey string) *HTTPAuthProvider {
	return &HTTPAuthProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		now: time.Now,
	}
}

var _ providers.AuthProvider = (*HTTPAuthProvider)(nil)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	User        struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Message          string `json:"msg"`
}

// SignIn exchanges credentials for a session.
func (p *HTTPAuthProvider) SignIn(ctx context.Context, identifier, password string) (*entities.Session, error) {
	body, err := json.Marshal(map[string]string{"email": identifier, "password": password})
	if err != nil {
		return nil, err
	}

	var out tokenResponse
	status, err := p.doJSON(ctx, http.MethodPost, p.baseURL+"/token?grant_type=password", "", bytes.NewReader(body), &out)
	if err != nil {
		if status == http.StatusBadRequest || status == http.StatusUnauthorized {
			return nil, apperrors.NewUnauthorizedError("invalid credentials")
		}
		return nil, apperrors.NewExternalError("authentication service unavailable", err)
	}
	if out.AccessToken == "" || out.User.ID == "" {
		return nil, apperrors.NewExternalError("authentication service returned an incomplete session", nil)
	}

	return &entities.Session{
		UserID:      out.User.ID,
		Email:       out.User.Email,
		AccessToken: out.AccessToken,
		ExpiresAt:   p.now().Add(time.Duration(out.ExpiresIn) * time.Second).UTC(),
	}, nil
}

// SignOut revokes the session behind accessToken. An already expired token
// counts as signed out.
func (p *HTTPAuthProvider) SignOut(ctx context.Context, accessToken string) error {
	status, err := p.doJSON(ctx, http.MethodPost, p.baseURL+"/logout", accessToken, nil, nil)
	if err != nil && status != http.StatusUnauthorized && status != http.StatusNotFound {
		return apperrors.NewExternalError("failed to sign out", err)
	}
	return nil
}

func (p *HTTPAuthProvider) doJSON(ctx context.Context, method, endpoint, bearer string, body io.Reader, out interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("apikey", p.apiKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return resp.StatusCode, fmt.Errorf("auth service returned status %d: %s", resp.StatusCode, firstNonEmpty(e.ErrorDescription, e.Message, e.Error))
	}

	if out == nil {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, err
	}
	return resp.StatusCode, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
