package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"mcp-console/internal/client"
	"mcp-console/internal/config"
	"mcp-console/internal/logging"
	"mcp-console/internal/notify"
	"mcp-console/internal/query"
	"mcp-console/internal/resources"
	"mcp-console/internal/session"
	"mcp-console/internal/tokenstore"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a one-shot summary of the managed service",
	Long: `Fetch and print the service's liveness, health, and call statistics.
The status surface needs no session; managed server detail is included when
a stored session is available.`,
	RunE: runStatusCommand,
}

var statusTimeout int

func init() {
	statusCmd.Flags().IntVar(&statusTimeout, "timeout", 30, "Status timeout in seconds")

	rootCmd.AddCommand(statusCmd)
}

func runStatusCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.Initialize(cfg.LogLevel)

	store, err := tokenstore.Open(cfg.StatePath)
	if err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}
	defer store.Close()

	retry := client.DefaultRetryPolicy()
	retry.MaxRetries = cfg.MaxRetries
	retry.BaseDelay = cfg.RetryBaseDelay()

	apiClient, err := client.New(&client.Config{
		BaseURL: cfg.ServerURL,
		Timeout: 30 * time.Second,
		Retry:   retry,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create API client: %w", err)
	}
	defer apiClient.Close()

	cache := query.NewCache()
	hub := notify.NewHub(logger)
	sess := session.NewManager(apiClient, store, cache, hub, logger)

	// A one-shot read is always "visible"
	orch := query.NewOrchestrator(cache, sess, query.AlwaysVisible, logger)
	defer orch.Close()

	registry := resources.NewRegistry(apiClient, orch, resources.DefaultIntervals())

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(statusTimeout)*time.Second)
	defer cancel()

	if err := sess.Boot(ctx); err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}

	status, err := registry.FetchSystemStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch service status: %w", err)
	}

	fmt.Printf("Service:  %s\n", cfg.ServerURL)
	fmt.Printf("Version:  %s\n", status.Version)
	fmt.Printf("Uptime:   %s\n", (time.Duration(status.Uptime) * time.Second).String())

	if health, err := registry.FetchHealth(ctx); err == nil {
		fmt.Printf("Health:   %s\n", health.Status)
		names := make([]string, 0, len(health.Checks))
		for name := range health.Checks {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("  %-12s %s\n", name, health.Checks[name])
		}
	} else {
		fmt.Printf("Health:   unavailable (%s)\n", client.Message(err))
	}

	if stats, err := registry.FetchStatistics(ctx); err == nil {
		fmt.Printf("Active connections: %d\n", stats.TotalActiveConnections)
	}

	// Server detail needs a session; skip quietly when logged out
	if sess.Authenticated() {
		servers, err := registry.FetchServers(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch servers: %w", err)
		}

		names := make([]string, 0, len(servers))
		for name := range servers {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Printf("\nManaged servers (%d):\n", len(names))
		for _, name := range names {
			fmt.Printf("  %-20s %s\n", name, servers[name].Status.State)
		}
	} else {
		fmt.Println("\nNot logged in; run 'mcp-console login' for server detail.")
	}

	return nil
}
