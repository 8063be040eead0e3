package main

import (
	"context"
	"fmt"
	"time"

	"mcp-console/internal/config"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and discard the stored session",
	Long: `End the current session. The service-side session is invalidated on a
best-effort basis; the locally stored token is removed either way.`,
	RunE: runLogoutCommand,
}

var logoutTimeout int

func init() {
	logoutCmd.Flags().IntVar(&logoutTimeout, "timeout", 30, "Logout timeout in seconds")

	rootCmd.AddCommand(logoutCmd)
}

func runLogoutCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	manager, cleanup, err := newOneShotSession(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(logoutTimeout)*time.Second)
	defer cancel()

	// Restore the stored token so the remote invalidation is authenticated
	if err := manager.Boot(ctx); err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}

	if !manager.Authenticated() {
		fmt.Println("No active session.")
		return nil
	}

	manager.Logout(ctx)
	return nil
}
