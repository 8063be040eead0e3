package client

import "encoding/json"

// User identifies the logged-in console user
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// LoginRequest is the credential payload for POST /api/auth/login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the session token issued on successful login
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	User        User   `json:"user"`
}

// ChangePasswordRequest is the payload for POST /api/auth/change-password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// APIKeyCreateRequest is the payload for POST /api/auth/api-keys
type APIKeyCreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// APIKey describes a stored API key record (the secret is never returned)
type APIKey struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	KeyPrefix   string   `json:"key_prefix"`
	Scopes      []string `json:"scopes"`
	IsActive    bool     `json:"is_active"`
	CreatedAt   string   `json:"created_at"`
	LastUsed    string   `json:"last_used,omitempty"`
}

// APIKeyCreated is returned once on creation and includes the full secret
type APIKeyCreated struct {
	ID        int      `json:"id"`
	Name      string   `json:"name"`
	APIKey    string   `json:"api_key"`
	KeyPrefix string   `json:"key_prefix"`
	Scopes    []string `json:"scopes"`
	CreatedAt string   `json:"created_at"`
	Message   string   `json:"message,omitempty"`
}

// apiKeyList is the wire envelope for GET /api/auth/api-keys
type apiKeyList struct {
	APIKeys []APIKey `json:"api_keys"`
}

// ScopeList maps API key scope names to their descriptions
type ScopeList struct {
	Scopes map[string]string `json:"scopes"`
}

// ServerStatus describes the runtime state of one managed server
type ServerStatus struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	State        string            `json:"state"`
	LastActivity string            `json:"last_activity"`
	Error        string            `json:"error,omitempty"`
	Endpoints    map[string]string `json:"endpoints"`
	Capabilities map[string]int    `json:"capabilities"`
}

// ManagedServer pairs a server's configuration with its current status
type ManagedServer struct {
	Name   string          `json:"name"`
	Config json.RawMessage `json:"config"`
	Status ServerStatus    `json:"status"`
}

// serverList is the wire envelope for GET /api/servers/
type serverList struct {
	Servers map[string]ManagedServer `json:"servers"`
}

// StartServerRequest carries options for POST /api/servers/{name}/start
type StartServerRequest struct {
	Stateless    bool              `json:"stateless"`
	AllowOrigins []string          `json:"allow_origins,omitempty"`
	Env          map[string]string `json:"env,omitempty"`
}

// ServerDetails carries capability and endpoint detail for one server
type ServerDetails struct {
	ServerName   string            `json:"server_name"`
	Status       ServerStatus      `json:"status"`
	Capabilities map[string]int    `json:"capabilities"`
	Endpoints    map[string]string `json:"endpoints"`
}

// GlobalConfig is the service-wide configuration record
type GlobalConfig struct {
	Stateless       bool                   `json:"stateless"`
	LogLevel        string                 `json:"log_level"`
	PassEnvironment bool                   `json:"pass_environment"`
	Auth            map[string]interface{} `json:"auth,omitempty"`
}

// ServerConfig is the declarative configuration for one managed server
type ServerConfig struct {
	Transport json.RawMessage `json:"transport"`
	Enabled   bool            `json:"enabled"`
	Timeout   int             `json:"timeout"`
}

// SystemStatus is the coarse liveness summary
type SystemStatus struct {
	Version         string            `json:"version"`
	APILastActivity string            `json:"api_last_activity"`
	ServerInstances map[string]string `json:"server_instances"`
	Uptime          float64           `json:"uptime"`
}

// HealthStatus is the component health report
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// SystemMetrics carries request and performance counters
type SystemMetrics struct {
	Timestamp   string             `json:"timestamp"`
	Servers     map[string]int     `json:"servers"`
	Requests    map[string]int     `json:"requests"`
	Performance map[string]float64 `json:"performance,omitempty"`
	Environment map[string]string  `json:"environment,omitempty"`
}

// ServerCallCounts tallies calls by capability class for one server
type ServerCallCounts struct {
	Tools     int `json:"tools"`
	Prompts   int `json:"prompts"`
	Resources int `json:"resources"`
}

// ServerStatistics carries near-real-time counters for one server
type ServerStatistics struct {
	Name              string           `json:"name"`
	Status            string           `json:"status"`
	CallCounts        ServerCallCounts `json:"call_counts"`
	ActiveConnections int              `json:"active_connections"`
	UptimeSeconds     float64          `json:"uptime_seconds"`
	LastActivity      string           `json:"last_activity"`
}

// Statistics aggregates call counters across all managed servers
type Statistics struct {
	Timestamp              string                      `json:"timestamp"`
	Servers                map[string]ServerStatistics `json:"servers"`
	TotalActiveConnections int                         `json:"total_active_connections"`
	TotalCalls             map[string]int              `json:"total_calls"`
}
