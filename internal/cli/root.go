// Package cli holds the arcreview-server commands.
package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the command tree. Configuration comes from the
// ARCREVIEW_ environment (and .env files); see internal/config.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "arcreview-server",
		Short:         "HOA architectural review workflow service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newSeedDevCmd(),
		newDeadlinesCmd(),
		newAuditCmd(),
		newEligibleCmd(),
	)
	return root
}

// withApp loads configuration, wires the app, sweeps overdue deadlines and
// runs fn.
func withApp(ctx context.Context, fn func(ctx context.Context, a *app) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	// Errors are logged by the monitor; the command proceeds.
	_, _ = a.monitor.Sweep(ctx)
	return fn(ctx, a)
}
