package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/arcreview/internal/arcreview/types"
	"github.com/BrandonDHaskell/arcreview/internal/db"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			conn, driver, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer conn.Close()
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", driver)
			return err
		},
	}
}

func newSeedDevCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-dev",
		Short: "Insert the development member roster",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Env != "dev" {
				return fmt.Errorf("seed-dev refuses to run with ARCREVIEW_ENV=%s", cfg.Env)
			}
			conn, _, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			members := db.DevMembers()
			if err := db.SeedDev(cmd.Context(), conn, db.SeedDevOptions{Members: members}); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "seeded %d members\n", len(members))
			return err
		},
	}
}

func newDeadlinesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deadlines",
		Short: "Statutory review deadline operations",
	}

	apply := &cobra.Command{
		Use:   "apply",
		Short: "Auto-approve every stage whose deadline has passed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				applied, err := a.workflow.ApplyExpiredDeadlines(ctx)
				if applied == nil {
					applied = []string{}
				}
				if werr := writeJSON(cmd.OutOrStdout(), map[string]any{"auto_approved": applied}); werr != nil {
					return werr
				}
				return err
			})
		},
	}

	var upcomingDays int
	upcoming := &cobra.Command{
		Use:   "upcoming",
		Short: "List open requests whose deadline falls within --days",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				days := upcomingDays
				if days == 0 {
					days = a.cfg.DeadlineWarningDays
				}
				reqs, err := a.workflow.RequestsNearingDeadline(ctx, days)
				if err != nil {
					return err
				}
				rows := make([]map[string]any, 0, len(reqs))
				for _, r := range reqs {
					rows = append(rows, map[string]any{
						"id":          r.ID,
						"status":      r.Status,
						"cycle":       r.Cycle,
						"deadline_at": r.DeadlineAt,
					})
				}
				return writeJSON(cmd.OutOrStdout(), rows)
			})
		},
	}
	upcoming.Flags().IntVar(&upcomingDays, "days", 0, "Lookahead in days (default ARCREVIEW_DEADLINE_WARNING_DAYS)")

	var warnDays int
	warn := &cobra.Command{
		Use:   "warn",
		Short: "Send deadline_warning notifications for requests nearing their deadline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				days := warnDays
				if days == 0 {
					days = a.cfg.DeadlineWarningDays
				}
				sent, err := a.workflow.WarnNearingDeadlines(ctx, days)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{"days": days, "sent": sent})
			})
		},
	}
	warn.Flags().IntVar(&warnDays, "days", 0, "Lookahead in days (default ARCREVIEW_DEADLINE_WARNING_DAYS)")

	cmd.AddCommand(apply, upcoming, warn)
	return cmd
}

func newAuditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit <request-id>",
		Short: "Print the audit history of a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				entries, err := a.workflow.GetAuditHistory(ctx, args[0])
				if err != nil {
					return err
				}
				if entries == nil {
					entries = []types.AuditEntry{}
				}
				return writeJSON(cmd.OutOrStdout(), entries)
			})
		},
	}
}

func newEligibleCmd() *cobra.Command {
	var (
		stage string
		cycle int
	)
	cmd := &cobra.Command{
		Use:   "eligible <request-id>",
		Short: "List eligible voters for a request's stage, with recusals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := types.StageNone
			if stage != "" {
				var err error
				if st, err = types.ParseStage(stage); err != nil {
					return err
				}
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				voters, err := a.workflow.EligibleVoters(ctx, args[0], st, cycle)
				if err != nil {
					return err
				}
				if voters == nil {
					voters = []types.EligibleVoter{}
				}
				return writeJSON(cmd.OutOrStdout(), voters)
			})
		},
	}
	cmd.Flags().StringVar(&stage, "stage", "", "arc or board (default: the request's current stage)")
	cmd.Flags().IntVar(&cycle, "cycle", 0, "Review cycle (default: current)")
	return cmd
}
