package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/psu-rc/rcops/internal/domain"
	"github.com/psu-rc/rcops/internal/ports"
)

const (
	credentialFormatVersion = "1.0"
	DefaultResourceServer   = "transfer.api.globus.org"
)

type credentialDocument struct {
	FormatVersion string                     `json:"format_version"`
	Data          map[string]tokenDataSchema `json:"data"`
}

type tokenDataSchema struct {
	ResourceServer   string `json:"resource_server"`
	Scope            string `json:"scope"`
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type,omitempty"`
	ExpiresAtSeconds int64  `json:"expires_at_seconds"`
}

// CredentialCache stores a credential as a JSON token document under one
// key of a SecretStore, keyed inside by resource server.
type CredentialCache struct {
	store          ports.SecretStore
	key            string
	resourceServer string
}

var _ ports.CredentialStore = (*CredentialCache)(nil)

func NewCredentialCache(store ports.SecretStore, key string, resourceServer string) *CredentialCache {
	if resourceServer == "" {
		resourceServer = DefaultResourceServer
	}
	return &CredentialCache{store: store, key: key, resourceServer: resourceServer}
}

func (c *CredentialCache) Load(ctx context.Context) (domain.StoredCredential, error) {
	doc, err := c.readDocument(ctx)
	if err != nil {
		return domain.StoredCredential{}, err
	}

	entry, ok := doc.Data[c.resourceServer]
	if !ok {
		return domain.StoredCredential{}, fmt.Errorf("%w: no %s tokens in %s", domain.ErrCredentialNotFound, c.resourceServer, c.key)
	}
	if strings.TrimSpace(entry.RefreshToken) == "" {
		return domain.StoredCredential{}, fmt.Errorf("credential %s is missing refresh_token", c.key)
	}

	return fromTokenData(entry), nil
}

func (c *CredentialCache) Save(ctx context.Context, cred domain.StoredCredential) error {
	doc, err := c.readDocument(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrCredentialNotFound) {
			return err
		}
		doc = credentialDocument{}
	}
	if doc.Data == nil {
		doc.Data = map[string]tokenDataSchema{}
	}
	doc.FormatVersion = credentialFormatVersion

	if cred.ResourceServer == "" {
		cred.ResourceServer = c.resourceServer
	}
	doc.Data[cred.ResourceServer] = toTokenData(cred)

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}

	if err := c.store.Put(ctx, c.key, string(payload)); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	return nil
}

func (c *CredentialCache) Delete(ctx context.Context) error {
	if err := c.store.Delete(ctx, c.key); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

func (c *CredentialCache) readDocument(ctx context.Context) (credentialDocument, error) {
	raw, err := c.store.Get(ctx, c.key)
	if err != nil {
		if errors.Is(err, domain.ErrSecretNotFound) {
			return credentialDocument{}, fmt.Errorf("%w: %s", domain.ErrCredentialNotFound, c.key)
		}
		return credentialDocument{}, fmt.Errorf("load credential: %w", err)
	}

	var doc credentialDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return credentialDocument{}, fmt.Errorf("decode credential %s: %w", c.key, err)
	}
	return doc, nil
}

func toTokenData(cred domain.StoredCredential) tokenDataSchema {
	scopes := append([]string(nil), cred.Scopes...)
	sort.Strings(scopes)

	var expiresAt int64
	if !cred.ExpiresAt.IsZero() {
		expiresAt = cred.ExpiresAt.Unix()
	}

	return tokenDataSchema{
		ResourceServer:   cred.ResourceServer,
		Scope:            strings.Join(scopes, " "),
		AccessToken:      cred.AccessToken,
		RefreshToken:     cred.RefreshToken,
		TokenType:        cred.TokenType,
		ExpiresAtSeconds: expiresAt,
	}
}

func fromTokenData(entry tokenDataSchema) domain.StoredCredential {
	var expiresAt time.Time
	if entry.ExpiresAtSeconds > 0 {
		expiresAt = time.Unix(entry.ExpiresAtSeconds, 0).UTC()
	}

	return domain.StoredCredential{
		ResourceServer: entry.ResourceServer,
		Scopes:         strings.Fields(entry.Scope),
		AccessToken:    entry.AccessToken,
		RefreshToken:   entry.RefreshToken,
		TokenType:      entry.TokenType,
		ExpiresAt:      expiresAt,
	}
}
