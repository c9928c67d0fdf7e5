package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/psu-rc/rcops/internal/domain"
	"github.com/psu-rc/rcops/internal/ports"
)

const (
	DefaultAuthBaseURL    = "https://auth.globus.org"
	DefaultResourceServer = "transfer.api.globus.org"
	TransferScope         = "urn:globus:auth:scope:transfer.api.globus.org:all"
	HostedRedirectPath    = "/v2/web/auth-code"
	authorizePath         = "/v2/oauth2/authorize"
	tokenPath             = "/v2/oauth2/token"
)

var _ ports.AuthorizationFlow = (*NativeAppFlow)(nil)

// NativeAppFlow is the authorization-code grant with PKCE used by native
// (secretless) Globus Auth clients.
type NativeAppFlow struct {
	clientID   string
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

type NativeAppOption func(*NativeAppFlow)

func WithAuthBaseURL(baseURL string) NativeAppOption {
	return func(f *NativeAppFlow) {
		if baseURL != "" {
			f.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func WithHTTPClient(client *http.Client) NativeAppOption {
	return func(f *NativeAppFlow) {
		f.httpClient = client
	}
}

func NewNativeAppFlow(clientID string, opts ...NativeAppOption) *NativeAppFlow {
	f := &NativeAppFlow{
		clientID: clientID,
		baseURL:  DefaultAuthBaseURL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// HostedRedirectURL is the page that shows the one-time code to the user.
func (f *NativeAppFlow) HostedRedirectURL() string {
	return f.baseURL + HostedRedirectPath
}

func (f *NativeAppFlow) Start(redirectURL string, scopes []string) (domain.AuthorizationRequest, error) {
	if f.clientID == "" {
		return domain.AuthorizationRequest{}, errors.New("client id is required")
	}
	if redirectURL == "" {
		return domain.AuthorizationRequest{}, errors.New("redirect url is required")
	}

	state, err := NewState()
	if err != nil {
		return domain.AuthorizationRequest{}, fmt.Errorf("generate state: %w", err)
	}
	verifier := oauth2.GenerateVerifier()

	cfg := f.config(redirectURL, scopes)
	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))

	return domain.AuthorizationRequest{
		URL:         authURL,
		State:       state,
		RedirectURL: redirectURL,
		Verifier:    verifier,
		Scopes:      append([]string(nil), scopes...),
	}, nil
}

func (f *NativeAppFlow) Exchange(ctx context.Context, req domain.AuthorizationRequest, code string) (domain.StoredCredential, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.StoredCredential{}, errors.New("authorization code is required")
	}
	if req.Verifier == "" {
		return domain.StoredCredential{}, errors.New("code verifier is required")
	}

	cfg := f.config(req.RedirectURL, req.Scopes)
	tok, err := cfg.Exchange(f.clientContext(ctx), code, oauth2.VerifierOption(req.Verifier))
	if err != nil {
		return domain.StoredCredential{}, fmt.Errorf("exchange code for tokens: %w", err)
	}
	if tok.RefreshToken == "" {
		return domain.StoredCredential{}, errors.New("token response missing refresh_token")
	}

	return credentialFromToken(tok, domain.StoredCredential{Scopes: req.Scopes}), nil
}

// TokenSource returns a source that refreshes the access token when it
// expires and calls onRefresh once for each refreshed token.
func (f *NativeAppFlow) TokenSource(ctx context.Context, cred domain.StoredCredential, onRefresh ports.RefreshFunc) ports.TokenSource {
	cfg := f.config("", cred.Scopes)
	initial := f.tokenFromCredential(cred)

	return &notifyingTokenSource{
		base:      cfg.TokenSource(f.clientContext(ctx), initial),
		last:      initial.AccessToken,
		cred:      cred,
		onRefresh: onRefresh,
	}
}

func (f *NativeAppFlow) config(redirectURL string, scopes []string) *oauth2.Config {
	return &oauth2.Config{
		ClientID: f.clientID,
		Endpoint: oauth2.Endpoint{
			AuthURL:   f.baseURL + authorizePath,
			TokenURL:  f.baseURL + tokenPath,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: redirectURL,
		Scopes:      scopes,
	}
}

func (f *NativeAppFlow) clientContext(ctx context.Context) context.Context {
	if f.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, f.httpClient)
}

func (f *NativeAppFlow) tokenFromCredential(cred domain.StoredCredential) *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		TokenType:    cred.TokenType,
		Expiry:       cred.ExpiresAt,
	}
	// oauth2 treats a zero expiry as never expiring.
	if cred.Expired(f.now(), 0) {
		tok.Expiry = f.now().Add(-time.Minute)
	}
	return tok
}

type notifyingTokenSource struct {
	mu        sync.Mutex
	base      oauth2.TokenSource
	last      string
	cred      domain.StoredCredential
	onRefresh ports.RefreshFunc
}

func (s *notifyingTokenSource) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, err := s.base.Token()
	if err != nil {
		return "", fmt.Errorf("refresh access token: %w", err)
	}
	if tok.AccessToken == s.last {
		return tok.AccessToken, nil
	}

	s.last = tok.AccessToken
	s.cred = credentialFromToken(tok, s.cred)
	if s.onRefresh != nil {
		if err := s.onRefresh(ctx, s.cred); err != nil {
			return "", fmt.Errorf("persist refreshed credential: %w", err)
		}
	}
	return tok.AccessToken, nil
}

// credentialFromToken fills fields the token response omits from prev.
func credentialFromToken(tok *oauth2.Token, prev domain.StoredCredential) domain.StoredCredential {
	cred := domain.StoredCredential{
		ResourceServer: prev.ResourceServer,
		Scopes:         prev.Scopes,
		AccessToken:    tok.AccessToken,
		RefreshToken:   tok.RefreshToken,
		TokenType:      tok.TokenType,
		ExpiresAt:      tok.Expiry,
	}
	if rs, ok := tok.Extra("resource_server").(string); ok && rs != "" {
		cred.ResourceServer = rs
	}
	if cred.ResourceServer == "" {
		cred.ResourceServer = DefaultResourceServer
	}
	if scope, ok := tok.Extra("scope").(string); ok && strings.TrimSpace(scope) != "" {
		cred.Scopes = strings.Fields(scope)
	}
	if cred.RefreshToken == "" {
		cred.RefreshToken = prev.RefreshToken
	}
	return cred
}

func NewState() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(raw), nil
}
