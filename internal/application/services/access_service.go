package services

import (
	"context"
	"strings"

	"github.com/zatekoja/cartosante/internal/domain/entities"
	"github.com/zatekoja/cartosante/internal/domain/providers"
	"github.com/zatekoja/cartosante/internal/domain/repositories"
	"github.com/zatekoja/cartosante/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/cartosante/pkg/errors"
)

// AccessService signs users in and out and enforces role-gated areas.
type AccessService struct {
	auth     providers.AuthProvider
	verifier providers.TokenVerifier
	roles    repositories.RoleRepository
}

// NewAccessService creates a new access service
func NewAccessService(auth providers.AuthProvider, verifier providers.TokenVerifier, roles repositories.RoleRepository) *AccessService {
	return &AccessService{auth: auth, verifier: verifier, roles: roles}
}

// SignIn authenticates the user and attaches their roles to the session.
func (s *AccessService) SignIn(ctx context.Context, identifier, password string) (*entities.Session, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, apperrors.NewValidationError("identifier and password are required")
	}

	session, err := s.auth.SignIn(ctx, identifier, password)
	if err != nil {
		return nil, err
	}
	if err := s.attachRoles(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// SignOut ends the session behind accessToken.
func (s *AccessService) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return apperrors.NewUnauthorizedError("missing access token")
	}
	return s.auth.SignOut(ctx, accessToken)
}

// Authenticate verifies a bearer token and resolves the caller's roles.
func (s *AccessService) Authenticate(ctx context.Context, accessToken string) (*entities.Session, error) {
	if accessToken == "" {
		return nil, apperrors.NewUnauthorizedError("missing access token")
	}
	session, err := s.verifier.Verify(accessToken)
	if err != nil {
		return nil, apperrors.NewUnauthorizedError("invalid or expired session")
	}
	if err := s.attachRoles(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// EnsurePatient rejects sessions that carry an admin or professional role.
// Such sessions are signed out before FORBIDDEN is returned.
func (s *AccessService) EnsurePatient(ctx context.Context, session *entities.Session) error {
	if session == nil {
		return apperrors.NewUnauthorizedError("sign in required")
	}
	if session.IsPatientOnly() {
		return nil
	}

	if err := s.auth.SignOut(ctx, session.AccessToken); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("user_id", session.UserID).
			Msg("failed to sign out non-patient session")
	}
	return apperrors.NewForbiddenError("access denied")
}

// EnsureAdmin rejects sessions without an admin role.
func (s *AccessService) EnsureAdmin(session *entities.Session) error {
	if session == nil {
		return apperrors.NewUnauthorizedError("sign in required")
	}
	if !session.IsAdmin() {
		return apperrors.NewForbiddenError("admin role required")
	}
	return nil
}

func (s *AccessService) attachRoles(ctx context.Context, session *entities.Session) error {
	if s.roles == nil {
		return nil
	}
	roles, err := s.roles.GetUserRoles(ctx, session.UserID)
	if err != nil {
		return apperrors.NewInternalError("failed to load user roles", err)
	}
	session.Roles = mergeRoles(session.Roles, roles)
	return nil
}

func mergeRoles(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, r := range append(append([]string(nil), a...), b...) {
		key := strings.ToLower(strings.TrimSpace(r))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}
