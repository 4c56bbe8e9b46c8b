// Command consentctl runs the scheduled membership jobs and operator tasks.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/membership-consent-api/internal/app"
	"github.com/noah-isme/membership-consent-api/pkg/config"
	"github.com/noah-isme/membership-consent-api/pkg/logger"
)

var version = "1.0.0-dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "consentctl",
		Short:         "Operate the membership consent service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newMigrateCmd(),
		newSyncCmd(),
		newCheckUpdatesCmd(),
		newSweepCmd(),
		newDigestCmd(),
		newStatusCmd(),
		newTokenCmd(),
	)
	return rootCmd
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("initialising logger: %w", err)
	}
	return cfg, logr, nil
}

// withContainer wires the services, runs fn and releases every connection.
func withContainer(ctx context.Context, fn func(*app.Container) error) error {
	cfg, logr, err := loadConfig()
	if err != nil {
		return err
	}
	defer logr.Sync() //nolint:errcheck

	container, err := app.Build(ctx, cfg, logr)
	if err != nil {
		return fmt.Errorf("wiring services: %w", err)
	}
	defer container.Close()
	return fn(container)
}
