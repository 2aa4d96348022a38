// Package auth verifies login credentials. Two backends exist: the SQLite
// credential store and the host's native account database. A deployment
// runs exactly one, chosen by configuration at startup.
package auth

import (
	"context"
	"errors"

	"rasdevd/internal/auth/store"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials covers both an unknown username and a wrong
// password; callers must not be able to tell which part failed.
var ErrInvalidCredentials = errors.New("invalid credentials")

type Identity struct {
	Username string
	Roles    []string
}

type Authenticator interface {
	// Authenticate verifies the username/password pair and returns the
	// resolved identity, or ErrInvalidCredentials.
	Authenticate(ctx context.Context, username, password string) (*Identity, error)
	// Exists reports whether the subject still resolves to an account.
	// Token verification treats a vanished subject as invalid.
	Exists(ctx context.Context, username string) (bool, error)
}

// StoreAuthenticator verifies against bcrypt digests in the credential
// store.
type StoreAuthenticator struct {
	store *store.Store
}

func NewStoreAuthenticator(s *store.Store) *StoreAuthenticator {
	return &StoreAuthenticator{store: s}
}

func (a *StoreAuthenticator) Authenticate(ctx context.Context, username, password string) (*Identity, error) {
	u, err := a.store.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &Identity{Username: u.Username, Roles: u.Roles}, nil
}

func (a *StoreAuthenticator) Exists(ctx context.Context, username string) (bool, error) {
	return a.store.Exists(ctx, username)
}
