package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/membership-consent-api/internal/app"
	"github.com/noah-isme/membership-consent-api/internal/models"
	"github.com/noah-isme/membership-consent-api/internal/service"
	"github.com/noah-isme/membership-consent-api/pkg/database"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logr, err := loadConfig()
			if err != nil {
				return err
			}
			defer logr.Sync() //nolint:errcheck

			db, err := database.NewPostgres(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := database.Migrate(cmd.Context(), db.DB)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s).\n", applied)
			return nil
		},
	}
}

func newSyncCmd() *cobra.Command {
	var documentID string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync legal documents from the document source",
		Long:  "Syncs every active document, or a single document with --document. Meant to run hourly.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContainer(cmd.Context(), func(c *app.Container) error {
				out := cmd.OutOrStdout()
				if documentID != "" {
					result, err := c.Sync.SyncDocument(cmd.Context(), documentID)
					if result != nil {
						printSyncResults(out, []models.SyncResult{*result})
					}
					return err
				}
				report, err := c.Sync.SyncAll(cmd.Context())
				if err != nil {
					return err
				}
				printSyncResults(out, report.Results)
				fmt.Fprintf(out, "\n%d updated, %d unchanged, %d skipped, %d failed in %s\n",
					report.Count(models.SyncOutcomeUpdated),
					report.Count(models.SyncOutcomeUnchanged),
					report.Count(models.SyncOutcomeSkipped),
					report.Count(models.SyncOutcomeFailed),
					report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&documentID, "document", "d", "", "Sync only this document id")
	return cmd
}

func newCheckUpdatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-updates",
		Short: "List documents changed at the source since the last sync",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContainer(cmd.Context(), func(c *app.Container) error {
				docs, err := c.Sync.CheckForUpdates(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(docs) == 0 {
					fmt.Fprintln(out, "All documents are up to date.")
					return nil
				}
				w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tFOLDER")
				for _, doc := range docs {
					fmt.Fprintf(w, "%s\t%s\t%s\n", doc.ID, doc.Name, doc.Folder())
				}
				return w.Flush()
			})
		},
	}
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Notify members whose required consent lapsed",
		Long:  "Finds members with an active role and a lapsed required consent and notifies each one. Meant to run daily at 04:30.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContainer(cmd.Context(), func(c *app.Container) error {
				c.Queue.Start(cmd.Context())
				summary, err := c.Compliance.Sweep(cmd.Context())
				if err != nil {
					return err
				}
				if err := c.Queue.Wait(cmd.Context()); err != nil {
					return fmt.Errorf("waiting for notifications: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d lapsed member(s), %d notification(s) queued, %d failed to queue\n",
					len(summary.Lapsed), summary.Enqueued, summary.Failed)
				return nil
			})
		},
	}
}

func newDigestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "digest",
		Short: "Send the board compliance digest for the previous day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContainer(cmd.Context(), func(c *app.Container) error {
				digest, sent, err := c.Compliance.Digest(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !sent {
					fmt.Fprintf(out, "No digest sent for %s.\n", digest.Date)
					return nil
				}
				fmt.Fprintf(out, "Digest for %s sent: %d new version(s), %d non-compliant member(s).\n",
					digest.Date, len(digest.NewVersions), digest.NonCompliantCount)
				return nil
			})
		},
	}
}

func newStatusCmd() *cobra.Command {
	var scopeID string

	cmd := &cobra.Command{
		Use:   "status <user-id>",
		Short: "Show the derived membership status of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd.Context(), func(c *app.Container) error {
				status, err := c.Calculator.Evaluate(cmd.Context(), args[0], scopeID)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), status)
			})
		},
	}
	cmd.Flags().StringVarP(&scopeID, "scope", "s", "", "Scope id (defaults to everyone)")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		userID string
		role   string
		email  string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for an operator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			tokens := service.NewTokenService(service.TokenConfig{
				Secret:     cfg.JWT.Secret,
				Issuer:     cfg.JWT.Issuer,
				Expiration: cfg.JWT.Expiration,
			})
			token, expiresAt, err := tokens.Issue(userID, models.UserRole(role), email, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "User id carried by the token (required)")
	cmd.Flags().StringVarP(&role, "role", "r", string(models.RoleAdmin), "ADMIN, BOARD or MEMBER")
	cmd.Flags().StringVar(&email, "email", "", "Optional email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to JWT_EXPIRATION)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func printSyncResults(out io.Writer, results []models.SyncResult) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DOCUMENT\tOUTCOME\tVERSION\tMESSAGE")
	for _, res := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", res.DocumentName, res.Outcome, res.VersionNumber, res.Message)
	}
	_ = w.Flush()
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
