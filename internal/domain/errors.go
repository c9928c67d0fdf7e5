package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrEndpointNotFound   = errors.New("endpoint not found")
	ErrCredentialNotFound = errors.New("credential not found")
	ErrSecretNotFound     = errors.New("secret not found")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrTaskNotFound       = errors.New("task not found")
	ErrPollLimitReached   = errors.New("poll limit reached before task finished")
)

// ConsentRequiredError means the stored grant lacks a scope the service now
// requires. It is the only recoverable submission failure.
type ConsentRequiredError struct {
	RequiredScopes []string
	Message        string
}

func (e *ConsentRequiredError) Error() string {
	msg := "consent required"
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if len(e.RequiredScopes) > 0 {
		msg += fmt.Sprintf(" (required scopes: %s)", strings.Join(e.RequiredScopes, " "))
	}
	return msg
}
