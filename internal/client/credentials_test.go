package client

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, expiresAt time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "admin",
		"exp": expiresAt.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestCredentials_Exclusivity(t *testing.T) {
	creds := NewCredentials()

	creds.SetBearerToken("session-token")
	assert.True(t, creds.HasBearerToken())
	assert.False(t, creds.HasAPIKey())

	// Setting a static key clears the bearer token
	creds.SetAPIKey("emk_12345")
	assert.False(t, creds.HasBearerToken())
	assert.True(t, creds.HasAPIKey())

	// And vice versa
	creds.SetBearerToken("another-token")
	assert.True(t, creds.HasBearerToken())
	assert.False(t, creds.HasAPIKey())
}

func TestCredentials_Clear(t *testing.T) {
	creds := NewCredentials()
	creds.SetAPIKey("emk_12345")

	creds.Clear()

	assert.False(t, creds.HasBearerToken())
	assert.False(t, creds.HasAPIKey())
	assert.True(t, creds.TokenExpiry().IsZero())
}

func TestCredentials_Apply(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(*Credentials)
		wantAuth   string
		wantAPIKey string
	}{
		{
			name:  "no credentials",
			setup: func(c *Credentials) {},
		},
		{
			name:     "bearer token",
			setup:    func(c *Credentials) { c.SetBearerToken("tok123") },
			wantAuth: "Bearer tok123",
		},
		{
			name:       "api key",
			setup:      func(c *Credentials) { c.SetAPIKey("emk_999") },
			wantAPIKey: "emk_999",
		},
		{
			name: "api key wins after bearer cleared",
			setup: func(c *Credentials) {
				c.SetBearerToken("tok123")
				c.SetAPIKey("emk_999")
			},
			wantAPIKey: "emk_999",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds := NewCredentials()
			tt.setup(creds)

			req, err := http.NewRequest(http.MethodGet, "http://example.com/api/status/", nil)
			require.NoError(t, err)

			creds.apply(req)

			assert.Equal(t, tt.wantAuth, req.Header.Get("Authorization"))
			assert.Equal(t, tt.wantAPIKey, req.Header.Get(APIKeyHeader))

			// Never both
			if tt.wantAuth != "" {
				assert.Empty(t, req.Header.Get(APIKeyHeader))
			}
			if tt.wantAPIKey != "" {
				assert.Empty(t, req.Header.Get("Authorization"))
			}
		})
	}
}

func TestCredentials_TokenExpiry(t *testing.T) {
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)

	creds := NewCredentials()
	creds.SetBearerToken(signedToken(t, exp))

	assert.WithinDuration(t, exp, creds.TokenExpiry(), time.Second)
}

func TestCredentials_TokenExpiry_Opaque(t *testing.T) {
	// Not a JWT; expiry is simply unknown
	creds := NewCredentials()
	creds.SetBearerToken("opaque-session-token")

	assert.True(t, creds.TokenExpiry().IsZero())
}
