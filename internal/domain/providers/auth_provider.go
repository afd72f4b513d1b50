package providers

import (
	"context"

	"github.com/zatekoja/cartosante/internal/domain/entities"
)

// AuthProvider is the hosted authentication service.
type AuthProvider interface {
	// SignIn exchanges an identifier and password for a session. Roles are not populated.
	SignIn(ctx context.Context, identifier, password string) (*entities.Session, error)

	// SignOut invalidates the session behind accessToken.
	SignOut(ctx context.Context, accessToken string) error
}

// TokenVerifier validates a bearer access token issued by the authentication
// service and returns the session it describes, without roles.
type TokenVerifier interface {
	Verify(accessToken string) (*entities.Session, error)
}
