package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"mcp-console/internal/client"
	"mcp-console/internal/config"
	"mcp-console/internal/logging"
	"mcp-console/internal/query"
	"mcp-console/internal/session"
	"mcp-console/internal/tokenstore"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the management service",
	Long: `Authenticate against the management service and persist the issued
session token, so the console agent starts authenticated.`,
	RunE: runLoginCommand,
}

var (
	loginUsername string
	loginPassword string
	loginTimeout  int
)

func init() {
	loginCmd.Flags().StringVar(&loginUsername, "username", "", "Username (required)")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Password (prompted when omitted)")
	loginCmd.Flags().IntVar(&loginTimeout, "timeout", 30, "Login timeout in seconds")
	loginCmd.MarkFlagRequired("username")

	rootCmd.AddCommand(loginCmd)
}

// cliNotifier prints notifications straight to the terminal for one-shot
// commands, where no console frontend is attached
type cliNotifier struct{}

func (cliNotifier) Success(message string) { fmt.Printf("✓ %s\n", message) }
func (cliNotifier) Error(message string)   { fmt.Printf("✗ %s\n", message) }
func (cliNotifier) Info(message string)    { fmt.Println(message) }

// newOneShotSession builds the minimal stack a one-shot auth command needs
func newOneShotSession(cfg *config.Config) (*session.Manager, func(), error) {
	logger := logging.Initialize(cfg.LogLevel)

	store, err := tokenstore.Open(cfg.StatePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open state store: %w", err)
	}

	retry := client.DefaultRetryPolicy()
	retry.MaxRetries = cfg.MaxRetries
	retry.BaseDelay = cfg.RetryBaseDelay()

	apiClient, err := client.New(&client.Config{
		BaseURL: cfg.ServerURL,
		Timeout: 30 * time.Second,
		Retry:   retry,
	}, logger)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to create API client: %w", err)
	}

	manager := session.NewManager(apiClient, store, query.NewCache(), cliNotifier{}, logger)

	cleanup := func() {
		apiClient.Close()
		store.Close()
	}
	return manager, cleanup, nil
}

func runLoginCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	password := loginPassword
	if password == "" {
		fmt.Print("Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	manager, cleanup, err := newOneShotSession(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(loginTimeout)*time.Second)
	defer cancel()

	fmt.Printf("Logging in to %s\n", cfg.ServerURL)

	if err := manager.Login(ctx, loginUsername, password); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	fmt.Println("The session token has been stored. Start the console agent to use it.")
	return nil
}
