package domain

import (
	"slices"
	"strings"
	"time"
)

type AuthState string

const (
	AuthStateNoTokenFile      AuthState = "NO_TOKEN_FILE"
	AuthStateAwaitingUserCode AuthState = "AWAITING_USER_CODE"
	AuthStateTokenStored      AuthState = "TOKEN_STORED"
	AuthStateTokenFilePresent AuthState = "TOKEN_FILE_PRESENT"
	AuthStateTokenLoaded      AuthState = "TOKEN_LOADED"
	AuthStateAuthorized       AuthState = "AUTHORIZED"
)

type StoredCredential struct {
	ResourceServer string
	Scopes         []string
	AccessToken    string
	RefreshToken   string
	TokenType      string
	ExpiresAt      time.Time
}

// Expired reports whether the access token is unusable at now+skew.
// A zero ExpiresAt is treated as expired so a refresh is forced.
func (c StoredCredential) Expired(now time.Time, skew time.Duration) bool {
	if c.AccessToken == "" || c.ExpiresAt.IsZero() {
		return true
	}
	return !c.ExpiresAt.After(now.Add(skew))
}

// HasScopes reports whether every scope was granted. A dependent scope such
// as "X[*Y]" counts as a grant of X.
func (c StoredCredential) HasScopes(scopes ...string) bool {
	for _, scope := range scopes {
		granted := slices.ContainsFunc(c.Scopes, func(have string) bool {
			return have == scope || strings.HasPrefix(have, scope+"[")
		})
		if !granted {
			return false
		}
	}
	return true
}

// AuthorizationRequest is the client-side half of an authorization-code
// exchange that must survive until the user hands back the code.
type AuthorizationRequest struct {
	URL         string
	State       string
	RedirectURL string
	Verifier    string
	Scopes      []string
}
