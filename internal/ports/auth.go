package ports

import (
	"context"

	"github.com/psu-rc/rcops/internal/domain"
)

type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// RefreshFunc is called once for every access token the authorizer refreshes.
type RefreshFunc func(ctx context.Context, cred domain.StoredCredential) error

type AuthorizationFlow interface {
	Start(redirectURL string, scopes []string) (domain.AuthorizationRequest, error)
	Exchange(ctx context.Context, req domain.AuthorizationRequest, code string) (domain.StoredCredential, error)
	TokenSource(ctx context.Context, cred domain.StoredCredential, onRefresh RefreshFunc) TokenSource
}

// AuthCodeSource hands the authorize URL to the user and returns the
// one-time code they bring back.
type AuthCodeSource interface {
	RedirectURL() string
	AwaitCode(ctx context.Context, req domain.AuthorizationRequest) (string, error)
}
