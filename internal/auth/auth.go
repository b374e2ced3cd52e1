package auth

import (
	"context"
	"strings"
	"sync"

	"boardcast/pkg/domain"
)

// Authenticator resolves a bearer credential to an identity. It makes no
// access decisions; board-level authorization happens upstream of the hub.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.Identity, error)
}

// StaticTokenAuthenticator resolves tokens from a fixed in-memory table,
// typically loaded from the auth section of the config file.
type StaticTokenAuthenticator struct {
	mu     sync.RWMutex
	tokens map[string]domain.Identity
}

// NewStaticTokenAuthenticator creates an authenticator over a token table
func NewStaticTokenAuthenticator(tokens map[string]domain.Identity) *StaticTokenAuthenticator {
	t := make(map[string]domain.Identity, len(tokens))
	for k, v := range tokens {
		t[k] = v
	}
	return &StaticTokenAuthenticator{tokens: t}
}

// Authenticate implements Authenticator
func (a *StaticTokenAuthenticator) Authenticate(_ context.Context, token string) (domain.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Identity{}, domain.ErrUnauthenticated
	}

	a.mu.RLock()
	identity, ok := a.tokens[token]
	a.mu.RUnlock()

	if !ok || !identity.IsAuthenticated() {
		return domain.Identity{}, domain.ErrUnauthenticated
	}
	return identity, nil
}

// Add registers a token at runtime. Used by tests and the demo server.
func (a *StaticTokenAuthenticator) Add(token string, identity domain.Identity) {
	a.mu.Lock()
	a.tokens[token] = identity
	a.mu.Unlock()
}

// BearerToken extracts the credential from an Authorization header value or,
// failing that, returns the fallback (browser websocket clients cannot set
// headers and pass the token as a query parameter instead).
func BearerToken(authorization, fallback string) string {
	const prefix = "Bearer "
	if strings.HasPrefix(authorization, prefix) {
		return strings.TrimSpace(authorization[len(prefix):])
	}
	return strings.TrimSpace(fallback)
}
