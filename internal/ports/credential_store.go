package ports

import (
	"context"

	"github.com/psu-rc/rcops/internal/domain"
)

// CredentialStore persists one credential per application identity.
// Load returns domain.ErrCredentialNotFound when nothing is cached.
type CredentialStore interface {
	Load(ctx context.Context) (domain.StoredCredential, error)
	Save(ctx context.Context, cred domain.StoredCredential) error
	Delete(ctx context.Context) error
}
