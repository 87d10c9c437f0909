package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dapursambal/storefront/internal/application/services"
	"github.com/dapursambal/storefront/internal/config"
	"github.com/dapursambal/storefront/internal/infrastructure/database"
	"github.com/dapursambal/storefront/internal/infrastructure/mailer"
	"github.com/dapursambal/storefront/internal/infrastructure/payments"
	"github.com/spf13/cobra"
)

// adminPasswordEnv lets scripts pass the password without exposing it in ps output
const adminPasswordEnv = "STOREFRONT_ADMIN_PASSWORD"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "storefrontctl",
		Short:         "Dapur Sambal storefront maintenance",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			config.LoadDotEnv()
		},
	}

	admin := &cobra.Command{Use: "admin", Short: "Manage admin accounts"}
	admin.AddCommand(newAdminCreateCmd())

	campaign := &cobra.Command{Use: "campaign", Short: "Email campaigns"}
	campaign.AddCommand(newCampaignSendCmd())

	outbox := &cobra.Command{Use: "outbox", Short: "Event outbox housekeeping"}
	outbox.AddCommand(newOutboxCleanupCmd())

	sessions := &cobra.Command{Use: "sessions", Short: "Admin session housekeeping"}
	sessions.AddCommand(newSessionsPurgeCmd())

	root.AddCommand(newMigrateCmd(), admin, campaign, outbox, sessions)
	return root
}

// env is the wiring a command needs. Workers are not started.
type env struct {
	conn     *database.Connection
	services *services.ServiceManager
}

func (e *env) Close() {
	_ = e.conn.Close()
}

func openEnv(ctx context.Context) (*env, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	conn, err := database.Open(ctx, settings.Database)
	if err != nil {
		return nil, err
	}
	mail, err := mailer.New(settings.Mail)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &env{
		conn:     conn,
		services: services.NewServiceManager(conn, settings, mail, payments.New(settings.Payments)),
	}, nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := config.Load()
			if err != nil {
				return err
			}
			conn, err := database.Open(cmd.Context(), settings.Database)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := database.Migrate(cmd.Context(), conn); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✅ Schema is up to date")
			return nil
		},
	}
}

func newAdminCreateCmd() *cobra.Command {
	var email, name, password string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an admin account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv(adminPasswordEnv)
			}
			if password == "" {
				return fmt.Errorf("password is required (--password or %s)", adminPasswordEnv)
			}

			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			user, err := e.services.Auth.CreateAdmin(cmd.Context(), email, name, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Admin %s created (id %s)\n", user.Email, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&password, "password", "", "initial password (prefer "+adminPasswordEnv+")")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newCampaignSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <campaign-id>",
		Short: "Send a broadcast campaign now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			sent, err := e.services.Campaigns.SendNow(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "📤 Sent %d email(s)\n", sent)
			return nil
		},
	}
}

func newOutboxCleanupCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete processed outbox events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			n, err := e.services.Outbox.CleanupProcessed(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🧹 Removed %d processed event(s)\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "age of processed events to delete")
	return cmd
}

func newSessionsPurgeCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete expired or revoked admin sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			n, err := e.services.Auth.PurgeExpiredSessions(cmd.Context(), time.Now().UTC().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🧹 Removed %d session(s)\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "keep sessions that ended more recently than this")
	return cmd
}
