package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psu-rc/rcops/internal/domain"
)

var transferScopes = []string{"urn:globus:auth:scope:transfer.api.globus.org:all"}

func TestAuthServiceAuthorizeRunsFlowOnEmptyCache(t *testing.T) {
	issued := domain.StoredCredential{AccessToken: "a1", RefreshToken: "r1", ExpiresAt: time.Now().Add(time.Hour)}
	flow := &stubFlow{issued: issued}
	source := &stubCodeSource{code: "one-time-code"}
	store := &memoryCredentialStore{}
	service := NewAuthService(flow, source, store, nil)

	tokens, state, err := service.Authorize(context.Background(), transferScopes)
	require.NoError(t, err)

	assert.Equal(t, domain.AuthStateTokenStored, state)
	assert.Equal(t, []string{"one-time-code"}, flow.exchanged)
	assert.Equal(t, 1, source.calls)
	assert.Equal(t, 1, store.saves)

	token, err := tokens.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a1", token)
}

func TestAuthServiceAuthorizeIsIdempotentWithCache(t *testing.T) {
	cached := domain.StoredCredential{AccessToken: "a1", RefreshToken: "r1"}
	flow := &stubFlow{}
	source := &stubCodeSource{}
	store := &memoryCredentialStore{cred: &cached}
	service := NewAuthService(flow, source, store, nil)

	for range 2 {
		_, state, err := service.Authorize(context.Background(), transferScopes)
		require.NoError(t, err)
		assert.Equal(t, domain.AuthStateTokenLoaded, state)
	}

	assert.Zero(t, source.calls)
	assert.Zero(t, flow.starts)
	assert.Zero(t, store.saves)
}

func TestAuthServiceRefreshWritesCacheOnce(t *testing.T) {
	cached := domain.StoredCredential{AccessToken: "stale", RefreshToken: "r1"}
	refreshed := domain.StoredCredential{AccessToken: "fresh", RefreshToken: "r2", ExpiresAt: time.Now().Add(time.Hour)}
	flow := &stubFlow{refreshed: refreshed}
	store := &memoryCredentialStore{cred: &cached}
	service := NewAuthService(flow, &stubCodeSource{}, store, nil)

	tokens, _, err := service.Authorize(context.Background(), transferScopes)
	require.NoError(t, err)

	for range 3 {
		token, err := tokens.AccessToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "fresh", token)
	}

	assert.Equal(t, 1, store.saves)
	require.NotNil(t, store.cred)
	assert.Equal(t, "r2", store.cred.RefreshToken)
}

func TestAuthServiceLoginForceDiscardsCache(t *testing.T) {
	cached := domain.StoredCredential{AccessToken: "old", RefreshToken: "r0"}
	issued := domain.StoredCredential{AccessToken: "new", RefreshToken: "r1"}
	flow := &stubFlow{issued: issued}
	source := &stubCodeSource{code: "code"}
	store := &memoryCredentialStore{cred: &cached}
	service := NewAuthService(flow, source, store, nil)

	_, state, err := service.Login(context.Background(), transferScopes, true)
	require.NoError(t, err)

	assert.Equal(t, domain.AuthStateTokenStored, state)
	assert.Equal(t, 1, store.deletes)
	assert.Equal(t, 1, source.calls)
	assert.Equal(t, "new", store.cred.AccessToken)
}

func TestAuthServiceLoginKeepsCacheWithRequestedScopes(t *testing.T) {
	cached := domain.StoredCredential{AccessToken: "a1", RefreshToken: "r1", Scopes: transferScopes}
	source := &stubCodeSource{}
	store := &memoryCredentialStore{cred: &cached}
	service := NewAuthService(&stubFlow{}, source, store, nil)

	_, state, err := service.Login(context.Background(), transferScopes, false)
	require.NoError(t, err)

	assert.Equal(t, domain.AuthStateTokenLoaded, state)
	assert.Zero(t, store.deletes)
	assert.Zero(t, source.calls)
}

func TestAuthServiceLoginReplacesCacheMissingScopes(t *testing.T) {
	cached := domain.StoredCredential{AccessToken: "a1", RefreshToken: "r1", Scopes: []string{"openid"}}
	issued := domain.StoredCredential{AccessToken: "a2", RefreshToken: "r2", Scopes: transferScopes}
	source := &stubCodeSource{code: "code"}
	store := &memoryCredentialStore{cred: &cached}
	service := NewAuthService(&stubFlow{issued: issued}, source, store, nil)

	_, state, err := service.Login(context.Background(), transferScopes, false)
	require.NoError(t, err)

	assert.Equal(t, domain.AuthStateTokenStored, state)
	assert.Equal(t, 1, store.deletes)
	assert.Equal(t, 1, source.calls)
	assert.Equal(t, "r2", store.cred.RefreshToken)
}

func TestAuthServiceLogout(t *testing.T) {
	cached := domain.StoredCredential{RefreshToken: "r"}
	store := &memoryCredentialStore{cred: &cached}
	service := NewAuthService(&stubFlow{}, &stubCodeSource{}, store, nil)

	require.NoError(t, service.Logout(context.Background()))
	assert.Nil(t, store.cred)
}
