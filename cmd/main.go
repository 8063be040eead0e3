package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mcp-console/internal/client"
	"mcp-console/internal/config"
	"mcp-console/internal/console"
	"mcp-console/internal/logging"
	"mcp-console/internal/mutation"
	"mcp-console/internal/notify"
	"mcp-console/internal/poller"
	"mcp-console/internal/query"
	"mcp-console/internal/resources"
	"mcp-console/internal/session"
	"mcp-console/internal/tokenstore"

	"github.com/spf13/cobra"
)

var (
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "mcp-console",
	Short: "MCP Console - local control surface for an MCP proxy service",
	Long: `A local agent that connects to an MCP proxy management service and
serves a console surface for operating it. The agent maintains the login
session, keeps remote state cached with bounded staleness, and pushes
updates to attached console frontends over WebSocket.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runDaemon() error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger := logging.Initialize(cfg.LogLevel)
	if cfg.LogFile != "" {
		if err := logging.SetupFileLogging(logger, cfg.LogFile); err != nil {
			logger.WithError(err).Warn("Failed to set up file logging")
		}
	}

	logger.WithField("server_url", cfg.ServerURL).Info("Console agent starting up")

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

	var server *console.Server
	orch := query.NewOrchestrator(cache, sess, func() bool { return server.Visible() }, logger)
	defer orch.Close()

	registry := resources.NewRegistry(apiClient, orch, resources.Intervals{
		Status:     time.Duration(cfg.StatusInterval) * time.Second,
		Health:     time.Duration(cfg.HealthInterval) * time.Second,
		Metrics:    time.Duration(cfg.MetricsInterval) * time.Second,
		Statistics: time.Duration(cfg.StatisticsInterval) * time.Second,
		Servers:    time.Duration(cfg.ServersInterval) * time.Second,
	})
	runner := mutation.NewRunner(cache, hub, logger)
	tracker := poller.NewTracker(cache, poller.DefaultConfig(), logger)
	defer tracker.StopAll()

	server = console.NewServer(cfg.ListenAddr, apiClient, sess, registry, orch, cache, runner, tracker, hub, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sess.Boot(ctx); err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}

	registry.StartPolling()

	if err := server.Start(ctx); err != nil {
		return err
	}

	logger.Info("Console agent shut down")
	return nil
}
