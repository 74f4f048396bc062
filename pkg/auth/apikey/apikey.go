// Package apikey provides an API key authenticator that validates
// bearer tokens against a static key store using SHA-256 hashing
// and constant-time comparison.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/dirigent-dev/dirigent/pkg/auth"
)

// Entry is the configuration format for one API key.
type Entry struct {
	Key      string
	Identity auth.Identity
}

// hashedEntry maps a key hash to an identity.
type hashedEntry struct {
	keyHash  [32]byte
	identity auth.Identity
}

// Authenticator validates bearer tokens against a static key store.
type Authenticator struct {
	keys []hashedEntry
}

var _ auth.Authenticator = (*Authenticator)(nil)

// New creates an API key authenticator from a list of raw keys and
// identities. Keys are hashed immediately; plaintext keys are not stored.
func New(entries []Entry) *Authenticator {
	a := &Authenticator{}
	for _, e := range entries {
		a.keys = append(a.keys, hashedEntry{
			keyHash:  sha256.Sum256([]byte(e.Key)),
			identity: e.Identity,
		})
	}
	return a
}

// Authenticate extracts the bearer token and validates it.
// Returns Yes if valid, No if a bearer token is present but invalid,
// Abstain if there is no Authorization header or it is not a Bearer token.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	header := r.Header.Get("Authorization")
	if header == "" {
		return auth.Result{Decision: auth.Abstain}
	}

	// Must be Bearer token.
	if !strings.HasPrefix(header, "Bearer ") {
		return auth.Result{Decision: auth.Abstain}
	}

	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" {
		return auth.Result{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	// Hash the token and compare against stored hashes.
	tokenHash := sha256.Sum256([]byte(token))

	for _, entry := range a.keys {
		if subtle.ConstantTimeCompare(tokenHash[:], entry.keyHash[:]) == 1 {
			// Copy identity to avoid shared state.
			id := entry.identity
			return auth.Result{Decision: auth.Yes, Identity: &id}
		}
	}

	// Bearer token present but not found.
	return auth.Result{Decision: auth.No, Err: auth.ErrUnauthenticated}
}
