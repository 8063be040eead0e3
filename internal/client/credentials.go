package client

import (
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// APIKeyHeader is the header carrying a static API key credential.
const APIKeyHeader = "x-api-key"

// Credentials holds the authentication material attached to outbound
// requests. Exactly one of the bearer token or the static API key may be
// armed at a time; arming one clears the other.
type Credentials struct {
	mu        sync.RWMutex
	bearer    string
	apiKey    string
	expiresAt time.Time
}

// NewCredentials creates an empty (unauthenticated) credential holder
func NewCredentials() *Credentials {
	return &Credentials{}
}

// SetBearerToken arms the session bearer token and clears any static API key
func (c *Credentials) SetBearerToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.bearer = token
	c.apiKey = ""
	c.expiresAt = tokenExpiry(token)
}

// SetAPIKey arms a static API key and clears any bearer token
func (c *Credentials) SetAPIKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.apiKey = key
	c.bearer = ""
	c.expiresAt = time.Time{}
}

// Clear disarms all credentials
func (c *Credentials) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.bearer = ""
	c.apiKey = ""
	c.expiresAt = time.Time{}
}

// HasBearerToken returns true if a bearer token is armed
func (c *Credentials) HasBearerToken() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bearer != ""
}

// HasAPIKey returns true if a static API key is armed
func (c *Credentials) HasAPIKey() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey != ""
}

// BearerToken returns the armed bearer token, if any
func (c *Credentials) BearerToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bearer
}

// TokenExpiry returns the expiry claim of the armed bearer token. The zero
// time means no token is armed or the token carries no parseable expiry.
func (c *Credentials) TokenExpiry() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.expiresAt
}

// apply overlays exactly one auth header onto the outbound request.
// A static key wins over a bearer token; with neither armed the request
// goes out unauthenticated.
func (c *Credentials) apply(req *http.Request) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch {
	case c.apiKey != "":
		req.Header.Set(APIKeyHeader, c.apiKey)
	case c.bearer != "":
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
}

// tokenExpiry extracts the exp claim from a JWT session token without
// verifying the signature. Validation is the server's job; the claim is only
// used for local expiry observability.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}

	return exp.Time
}
