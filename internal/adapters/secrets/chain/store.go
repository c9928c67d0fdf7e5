package chain

import (
	"context"
	"errors"
	"fmt"

	filestore "github.com/psu-rc/rcops/internal/adapters/secrets/file"
	passstore "github.com/psu-rc/rcops/internal/adapters/secrets/pass"
	"github.com/psu-rc/rcops/internal/domain"
	"github.com/psu-rc/rcops/internal/ports"
)

type Backend struct {
	Name  string
	Store ports.SecretStore
}

// Store walks its backends in order. Reads and writes stop at the first
// backend that succeeds; deletes reach every backend so a token written to
// a fallback while the primary was down does not survive a logout.
type Store struct {
	backends []Backend
}

var _ ports.SecretStore = (*Store)(nil)

var errNoBackends = errors.New("secret store chain has no backends")

func NewStore(backends ...Backend) (*Store, error) {
	if len(backends) == 0 {
		return nil, errNoBackends
	}
	for i, backend := range backends {
		if backend.Store == nil {
			return nil, fmt.Errorf("secret store chain: backend %d (%s) is nil", i, backend.Name)
		}
	}

	return &Store{backends: backends}, nil
}

// NewPassFirstWithFileFallback prefers the pass password store and keeps
// working on hosts without pass or gpg through files under fileRoot.
func NewPassFirstWithFileFallback(fileRoot string) (*Store, error) {
	return NewStore(
		Backend{Name: "pass", Store: passstore.NewStore()},
		Backend{Name: "file", Store: filestore.NewStore(fileRoot)},
	)
}

func (s *Store) Put(ctx context.Context, key string, value string) error {
	var failures []error
	for _, backend := range s.backends {
		err := backend.Store.Put(ctx, key, value)
		if err == nil {
			return nil
		}
		if isContextError(err) {
			return err
		}
		failures = append(failures, fmt.Errorf("%s put: %w", backend.Name, err))
	}

	return errors.Join(failures...)
}

// Get reports domain.ErrSecretNotFound only when the last backend misses;
// earlier failures are kept in the message.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var failures []error
	for _, backend := range s.backends {
		value, err := backend.Store.Get(ctx, key)
		if err == nil {
			return value, nil
		}
		if isContextError(err) {
			return "", err
		}
		failures = append(failures, fmt.Errorf("%s get: %w", backend.Name, err))
	}

	last := failures[len(failures)-1]
	if errors.Is(last, domain.ErrSecretNotFound) && len(failures) > 1 {
		return "", fmt.Errorf("%v; %w", errors.Join(failures[:len(failures)-1]...), last)
	}
	return "", errors.Join(failures...)
}

// Delete succeeds when at least one backend removed the key or reported it
// missing.
func (s *Store) Delete(ctx context.Context, key string) error {
	var failures []error
	deleted := false
	for _, backend := range s.backends {
		err := backend.Store.Delete(ctx, key)
		switch {
		case err == nil, errors.Is(err, domain.ErrSecretNotFound):
			deleted = true
		case isContextError(err):
			return err
		default:
			failures = append(failures, fmt.Errorf("%s delete: %w", backend.Name, err))
		}
	}

	if deleted {
		return nil
	}
	return errors.Join(failures...)
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
