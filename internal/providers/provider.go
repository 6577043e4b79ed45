// Package providers implements external identity provider handshakes.
package providers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// Profile is the external identity returned by a completed handshake
type Profile struct {
	ID       string // Stable user id at the provider
	Email    string
	Username string
	Name     string
}

// Provider is one external identity provider. Implementations perform the
// authorize-redirect / code-exchange round trip and return a Profile.
type Provider interface {
	Name() string
	AuthorizationURL(state, redirectURI string) string
	HandleCallback(ctx context.Context, code, redirectURI string) (*Profile, error)
}

// Registry maps provider names to implementations. It is constructed at
// startup and passed to the connection service explicitly; there is no
// process-wide provider state.
type Registry map[string]Provider

// NewRegistry builds a registry from the given providers
func NewRegistry(providers ...Provider) Registry {
	registry := make(Registry, len(providers))
	for _, p := range providers {
		registry[p.Name()] = p
	}
	return registry
}

// Get returns the named provider
func (r Registry) Get(name string) (Provider, error) {
	p, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("unknown auth provider %q", name)
	}
	return p, nil
}

// NewState generates a random opaque state value for the OAuth round trip
func NewState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
