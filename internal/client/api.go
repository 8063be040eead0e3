package client

import (
	"context"
	"fmt"
	"net/http"
)

// Login authenticates with the management API and returns the issued
// session token. The request itself goes out unauthenticated.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var resp LoginResponse
	err := c.Do(ctx, http.MethodPost, "/api/auth/login", &LoginRequest{
		Username: username,
		Password: password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout invalidates the current session on the server
func (c *Client) Logout(ctx context.Context) error {
	return c.Do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// Me fetches the identity tied to the armed credential
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.Do(ctx, http.MethodGet, "/api/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ChangePassword changes the current user's password
func (c *Client) ChangePassword(ctx context.Context, current, updated string) error {
	return c.Do(ctx, http.MethodPost, "/api/auth/change-password", &ChangePasswordRequest{
		CurrentPassword: current,
		NewPassword:     updated,
	}, nil)
}

// CreateAPIKey creates a new API key; the full secret is only returned here
func (c *Client) CreateAPIKey(ctx context.Context, req APIKeyCreateRequest) (*APIKeyCreated, error) {
	var created APIKeyCreated
	if err := c.Do(ctx, http.MethodPost, "/api/auth/api-keys", &req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ListAPIKeys lists the current user's API keys
func (c *Client) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	var list apiKeyList
	if err := c.Do(ctx, http.MethodGet, "/api/auth/api-keys", nil, &list); err != nil {
		return nil, err
	}
	return list.APIKeys, nil
}

// DeleteAPIKey permanently deletes an API key
func (c *Client) DeleteAPIKey(ctx context.Context, id int) error {
	return c.Do(ctx, http.MethodDelete, fmt.Sprintf("/api/auth/api-keys/%d", id), nil, nil)
}

// APIKeyScopes lists the available API key scopes
func (c *Client) APIKeyScopes(ctx context.Context) (*ScopeList, error) {
	var scopes ScopeList
	if err := c.Do(ctx, http.MethodGet, "/api/auth/api-keys/scopes", nil, &scopes); err != nil {
		return nil, err
	}
	return &scopes, nil
}

// ListServers lists all managed servers with config and status
func (c *Client) ListServers(ctx context.Context) (map[string]ManagedServer, error) {
	var list serverList
	if err := c.Do(ctx, http.MethodGet, "/api/servers/", nil, &list); err != nil {
		return nil, err
	}
	return list.Servers, nil
}

// ServerStatus fetches the current status of one managed server
func (c *Client) ServerStatus(ctx context.Context, name string) (*ServerStatus, error) {
	var status ServerStatus
	if err := c.Do(ctx, http.MethodGet, "/api/servers/"+name+"/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// StartServer starts a managed server
func (c *Client) StartServer(ctx context.Context, name string, req StartServerRequest) (*ServerStatus, error) {
	var status ServerStatus
	if err := c.Do(ctx, http.MethodPost, "/api/servers/"+name+"/start", &req, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// StopServer stops a managed server
func (c *Client) StopServer(ctx context.Context, name string) (*ServerStatus, error) {
	var status ServerStatus
	if err := c.Do(ctx, http.MethodPost, "/api/servers/"+name+"/stop", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ServerDetails fetches capability and endpoint detail for one server
func (c *Client) ServerDetails(ctx context.Context, name string) (*ServerDetails, error) {
	var details ServerDetails
	if err := c.Do(ctx, http.MethodGet, "/api/servers/"+name+"/mcp", nil, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

// GlobalConfig fetches the service-wide configuration
func (c *Client) GlobalConfig(ctx context.Context) (*GlobalConfig, error) {
	var cfg GlobalConfig
	if err := c.Do(ctx, http.MethodGet, "/api/config/global", nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ServerConfigs fetches the configuration of every managed server
func (c *Client) ServerConfigs(ctx context.Context) (map[string]ServerConfig, error) {
	configs := make(map[string]ServerConfig)
	if err := c.Do(ctx, http.MethodGet, "/api/config/servers", nil, &configs); err != nil {
		return nil, err
	}
	return configs, nil
}

// UpdateServerConfig replaces the configuration of one managed server
func (c *Client) UpdateServerConfig(ctx context.Context, name string, cfg ServerConfig) (*ServerConfig, error) {
	var updated ServerConfig
	if err := c.Do(ctx, http.MethodPut, "/api/config/servers/"+name, &cfg, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteServerConfig deletes the configuration of one managed server.
// The service answers 204 on success.
func (c *Client) DeleteServerConfig(ctx context.Context, name string) error {
	return c.Do(ctx, http.MethodDelete, "/api/config/servers/"+name, nil, nil)
}

// SystemStatus fetches the coarse liveness summary; no credential required
func (c *Client) SystemStatus(ctx context.Context) (*SystemStatus, error) {
	var status SystemStatus
	if err := c.Do(ctx, http.MethodGet, "/api/status/", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Health fetches the component health report; no credential required
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var health HealthStatus
	if err := c.Do(ctx, http.MethodGet, "/api/status/health", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// Metrics fetches request and performance counters; no credential required
func (c *Client) Metrics(ctx context.Context) (*SystemMetrics, error) {
	var metrics SystemMetrics
	if err := c.Do(ctx, http.MethodGet, "/api/status/metrics", nil, &metrics); err != nil {
		return nil, err
	}
	return &metrics, nil
}

// Statistics fetches near-real-time call counters; no credential required
func (c *Client) Statistics(ctx context.Context) (*Statistics, error) {
	var stats Statistics
	if err := c.Do(ctx, http.MethodGet, "/api/status/mcp-statistics", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
