package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/psu-rc/rcops/internal/domain"
	"github.com/psu-rc/rcops/internal/ports"
)

type AuthService struct {
	flow   ports.AuthorizationFlow
	source ports.AuthCodeSource
	store  ports.CredentialStore
	logger *slog.Logger
}

func NewAuthService(flow ports.AuthorizationFlow, source ports.AuthCodeSource, store ports.CredentialStore, logger *slog.Logger) *AuthService {
	return &AuthService{
		flow:   flow,
		source: source,
		store:  store,
		logger: loggerOrDiscard(logger),
	}
}

// Authorize returns a token source backed by the cached credential, running
// the interactive flow first when nothing is cached. The returned state is
// TOKEN_LOADED or TOKEN_STORED depending on the path taken.
func (s *AuthService) Authorize(ctx context.Context, scopes []string) (ports.TokenSource, domain.AuthState, error) {
	cred, err := s.store.Load(ctx)
	switch {
	case err == nil:
		s.transition(domain.AuthStateTokenFilePresent, domain.AuthStateTokenLoaded)
		s.transition(domain.AuthStateTokenLoaded, domain.AuthStateAuthorized)
		return s.tokenSource(ctx, cred), domain.AuthStateTokenLoaded, nil
	case !errors.Is(err, domain.ErrCredentialNotFound):
		return nil, "", err
	}

	cred, err = s.interactive(ctx, scopes)
	if err != nil {
		return nil, "", err
	}
	s.transition(domain.AuthStateTokenStored, domain.AuthStateAuthorized)

	return s.tokenSource(ctx, cred), domain.AuthStateTokenStored, nil
}

// Login forces a fresh interactive flow when force is set, discarding any
// cached credential first. A cached credential that lacks one of scopes is
// discarded the same way.
func (s *AuthService) Login(ctx context.Context, scopes []string, force bool) (ports.TokenSource, domain.AuthState, error) {
	if !force {
		cred, err := s.store.Load(ctx)
		if err == nil && !cred.HasScopes(scopes...) {
			s.logger.Info("cached credential lacks requested scopes, logging in again", "granted", cred.Scopes, "requested", scopes)
			force = true
		}
	}
	if force {
		if err := s.store.Delete(ctx); err != nil {
			return nil, "", err
		}
	}
	return s.Authorize(ctx, scopes)
}

func (s *AuthService) Logout(ctx context.Context) error {
	return s.store.Delete(ctx)
}

func (s *AuthService) interactive(ctx context.Context, scopes []string) (domain.StoredCredential, error) {
	s.transition(domain.AuthStateNoTokenFile, domain.AuthStateAwaitingUserCode)

	req, err := s.flow.Start(s.source.RedirectURL(), scopes)
	if err != nil {
		return domain.StoredCredential{}, fmt.Errorf("start authorization: %w", err)
	}

	code, err := s.source.AwaitCode(ctx, req)
	if err != nil {
		return domain.StoredCredential{}, fmt.Errorf("await authorization code: %w", err)
	}

	cred, err := s.flow.Exchange(ctx, req, code)
	if err != nil {
		return domain.StoredCredential{}, fmt.Errorf("exchange authorization code: %w", err)
	}

	if err := s.store.Save(ctx, cred); err != nil {
		return domain.StoredCredential{}, fmt.Errorf("persist credential: %w", err)
	}
	s.transition(domain.AuthStateAwaitingUserCode, domain.AuthStateTokenStored)

	return cred, nil
}

func (s *AuthService) tokenSource(ctx context.Context, cred domain.StoredCredential) ports.TokenSource {
	return s.flow.TokenSource(ctx, cred, func(ctx context.Context, refreshed domain.StoredCredential) error {
		s.logger.Debug("access token refreshed", "resource_server", refreshed.ResourceServer, "expires_at", refreshed.ExpiresAt)
		return s.store.Save(ctx, refreshed)
	})
}

func (s *AuthService) transition(from, to domain.AuthState) {
	s.logger.Debug("auth state", "from", from, "to", to)
}
