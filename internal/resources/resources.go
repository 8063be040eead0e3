// Package resources declares every remote resource the console reads, with
// its cache key, freshness window, and polling cadence. All remote reads go
// through the registry so each resource has exactly one definition.
package resources

import (
	"context"
	"strings"
	"time"

	"mcp-console/internal/client"
	"mcp-console/internal/query"
)

// Cache keys for the singleton resources
var (
	KeyServers       = query.NewKey("servers", "list")
	KeyGlobalConfig  = query.NewKey("config", "global")
	KeyServerConfigs = query.NewKey("config", "servers")
	KeyAPIKeys       = query.NewKey("auth", "api-keys")
	KeyScopes        = query.NewKey("auth", "scopes")
	KeyStatus        = query.NewKey("status")
	KeyHealth        = query.NewKey("status", "health")
	KeyMetrics       = query.NewKey("status", "metrics")
	KeyStatistics    = query.NewKey("status", "statistics")
)

// KeyServerStatus addresses the live status of one managed server
func KeyServerStatus(name string) query.Key {
	return query.NewKey("servers", name, "status")
}

// Intervals carries the polling cadence for the periodically refreshed
// resources. Freshness windows derive from these: a resource is considered
// stale at half its polling interval.
type Intervals struct {
	Status     time.Duration
	Health     time.Duration
	Metrics    time.Duration
	Statistics time.Duration
	Servers    time.Duration
}

// DefaultIntervals returns the polling cadence used by the console daemon
func DefaultIntervals() Intervals {
	return Intervals{
		Status:     60 * time.Second,
		Health:     120 * time.Second,
		Metrics:    120 * time.Second,
		Statistics: 20 * time.Second,
		Servers:    30 * time.Second,
	}
}

// configStaleTime bounds how long configuration reads are served from cache
const configStaleTime = 5 * time.Minute

// Registry binds the management API client to the query orchestrator
type Registry struct {
	client    *client.Client
	orch      *query.Orchestrator
	intervals Intervals
}

// NewRegistry creates the resource registry
func NewRegistry(c *client.Client, orch *query.Orchestrator, intervals Intervals) *Registry {
	return &Registry{client: c, orch: orch, intervals: intervals}
}

// Servers is the managed server inventory
func (r *Registry) Servers() query.Resource {
	return query.Resource{
		Key:          KeyServers,
		StaleTime:    r.intervals.Servers / 2,
		PollInterval: r.intervals.Servers,
		Fetch: func(ctx context.Context) (interface{}, error) {
			return r.client.ListServers(ctx)
		},
	}
}

// ServerStatus is the live status of one managed server. It is not polled
// on a fixed cadence; the status tracker drives refreshes while a server is
// in a transitional state.
func (r *Registry) ServerStatus(name string) query.Resource {
	return query.Resource{
		Key:       KeyServerStatus(name),
		StaleTime: r.intervals.Servers / 2,
		Fetch: func(ctx context.Context) (interface{}, error) {
			return r.client.ServerStatus(ctx, name)
		},
	}
}

// GlobalConfig is the service-wide configuration
func (r *Registry) GlobalConfig() query.Resource {
	return query.Resource{
		Key:       KeyGlobalConfig,
		StaleTime: configStaleTime,
		Fetch: func(ctx context.Context) (interface{}, error) {
			return r.client.GlobalConfig(ctx)
		},
	}
}

// ServerConfigs is the per-server configuration map
func (r *Registry) ServerConfigs() query.Resource {
	return query.Resource{
		Key:       KeyServerConfigs,
		StaleTime: configStaleTime,
		Fetch: func(ctx context.Context) (interface{}, error) {
			return r.client.ServerConfigs(ctx)
		},
	}
}

// APIKeys is the current user's API key inventory
func (r *Registry) APIKeys() query.Resource {
	return query.Resource{
		Key:       KeyAPIKeys,
		StaleTime: configStaleTime,
		Fetch: func(ctx context.Context) (interface{}, error) {
			return r.client.ListAPIKeys(ctx)
		},
	}
}

// Scopes is the set of assignable API key scopes. Scope definitions only
// change across service releases, so the window is generous.
func (r *Registry) Scopes() query.Resource {
	return query.Resource{
		Key:       KeyScopes,
		StaleTime: time.Hour,
		Fetch: func(ctx context.Context) (interface{}, error) {
			return r.client.APIKeyScopes(ctx)
		},
	}
}

// SystemStatus is the coarse liveness summary; readable without a session
func (r *Registry) SystemStatus() query.Resource {
	return query.Resource{
		Key:          KeyStatus,
		StaleTime:    r.intervals.Status / 2,
		PollInterval: r.intervals.Status,
		NoAuth:       true,
		Fetch: func(ctx context.Context) (interface{}, error) {
			return r.client.SystemStatus(ctx)
		},
	}
}

// Health is the component health report; readable without a session
func (r *Registry) Health() query.Resource {
	return query.Resource{
		Key:          KeyHealth,
		StaleTime:    r.intervals.Health / 2,
		PollInterval: r.intervals.Health,
		NoAuth:       true,
		Fetch: func(ctx context.Context) (interface{}, error) {
			return r.client.Health(ctx)
		},
	}
}

// Metrics is the request and performance counter set; readable without a
// session
func (r *Registry) Metrics() query.Resource {
	return query.Resource{
		Key:          KeyMetrics,
		StaleTime:    r.intervals.Metrics / 2,
		PollInterval: r.intervals.Metrics,
		NoAuth:       true,
		Fetch: func(ctx context.Context) (interface{}, error) {
			return r.client.Metrics(ctx)
		},
	}
}

// Statistics is the near-real-time call counter feed; readable without a
// session
func (r *Registry) Statistics() query.Resource {
	return query.Resource{
		Key:          KeyStatistics,
		StaleTime:    r.intervals.Statistics / 2,
		PollInterval: r.intervals.Statistics,
		NoAuth:       true,
		Fetch: func(ctx context.Context) (interface{}, error) {
			return r.client.Statistics(ctx)
		},
	}
}

// StartPolling registers every periodically refreshed resource with the
// orchestrator's polling loops
func (r *Registry) StartPolling() {
	r.orch.StartPolling(r.SystemStatus())
	r.orch.StartPolling(r.Health())
	r.orch.StartPolling(r.Metrics())
	r.orch.StartPolling(r.Statistics())
	r.orch.StartPolling(r.Servers())
}

// Lookup resolves a cache key string back to its resource definition. Used
// by the refresh surface, which addresses resources by key.
func (r *Registry) Lookup(key string) (query.Resource, bool) {
	switch key {
	case KeyServers.String():
		return r.Servers(), true
	case KeyGlobalConfig.String():
		return r.GlobalConfig(), true
	case KeyServerConfigs.String():
		return r.ServerConfigs(), true
	case KeyAPIKeys.String():
		return r.APIKeys(), true
	case KeyScopes.String():
		return r.Scopes(), true
	case KeyStatus.String():
		return r.SystemStatus(), true
	case KeyHealth.String():
		return r.Health(), true
	case KeyMetrics.String():
		return r.Metrics(), true
	case KeyStatistics.String():
		return r.Statistics(), true
	}

	// Dynamic per-server status keys: servers/{name}/status
	parts := strings.Split(key, "/")
	if len(parts) == 3 && parts[0] == "servers" && parts[2] == "status" && parts[1] != "" {
		return r.ServerStatus(parts[1]), true
	}

	return query.Resource{}, false
}

// FetchServers reads the managed server inventory through the cache
func (r *Registry) FetchServers(ctx context.Context) (map[string]client.ManagedServer, error) {
	value, err := r.orch.Read(ctx, r.Servers())
	if err != nil {
		return nil, err
	}
	return value.(map[string]client.ManagedServer), nil
}

// FetchServerStatus reads one server's live status through the cache
func (r *Registry) FetchServerStatus(ctx context.Context, name string) (*client.ServerStatus, error) {
	value, err := r.orch.Read(ctx, r.ServerStatus(name))
	if err != nil {
		return nil, err
	}
	return value.(*client.ServerStatus), nil
}

// FetchStatistics reads the call counter feed through the cache
func (r *Registry) FetchStatistics(ctx context.Context) (*client.Statistics, error) {
	value, err := r.orch.Read(ctx, r.Statistics())
	if err != nil {
		return nil, err
	}
	return value.(*client.Statistics), nil
}

// FetchHealth reads the component health report through the cache
func (r *Registry) FetchHealth(ctx context.Context) (*client.HealthStatus, error) {
	value, err := r.orch.Read(ctx, r.Health())
	if err != nil {
		return nil, err
	}
	return value.(*client.HealthStatus), nil
}

// FetchSystemStatus reads the liveness summary through the cache
func (r *Registry) FetchSystemStatus(ctx context.Context) (*client.SystemStatus, error) {
	value, err := r.orch.Read(ctx, r.SystemStatus())
	if err != nil {
		return nil, err
	}
	return value.(*client.SystemStatus), nil
}
