// Command syncctl runs maintenance tasks against the sync server's store.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/screenscape/sync-server-go/internal/config"
	"github.com/screenscape/sync-server-go/internal/database"
	"github.com/screenscape/sync-server-go/internal/jobs"
	"github.com/screenscape/sync-server-go/internal/repository"
	"github.com/screenscape/sync-server-go/internal/store"
	"github.com/screenscape/sync-server-go/internal/util"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var backend string

	rootCmd := &cobra.Command{
		Use:          "syncctl",
		Short:        "Maintenance commands for the ScreenScape sync server",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "Store backend (overrides STORE_BACKEND)")

	loadConfig := func() (*config.Config, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		if backend != "" {
			cfg.StoreBackend = backend
		}
		if err := cfg.Validate(false); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	rootCmd.AddCommand(
		newMigrateCmd(),
		newCleanupCmd(loadConfig),
		newInspectCodeCmd(loadConfig),
	)
	return rootCmd
}

func newMigrateCmd() *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if databaseURL == "" {
				databaseURL = os.Getenv("DATABASE_URL")
			}
			if databaseURL == "" {
				return fmt.Errorf("DATABASE_URL or --database-url is required")
			}

			db, err := database.Connect(databaseURL)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer db.Close()

			if err := database.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "Postgres connection URL")
	return cmd
}

func newCleanupCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired entries once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			backend, err := store.Open(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer backend.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			count, err := jobs.RunOnce(ctx, backend.Store)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired entries\n", count)
			return nil
		},
	}
}

func newInspectCodeCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect-code CODE",
		Short: "Show the guest and expiry behind a link code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			backend, err := store.Open(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer backend.Close()

			code := util.NormalizeCode(args[0])
			session, err := repository.NewLinkSessionRepository(backend.Store).FindByCode(cmd.Context(), code)
			if err != nil {
				return err
			}
			if session == nil {
				return fmt.Errorf("link code %s not found", code)
			}

			state := "active"
			if session.IsExpired(time.Now()) {
				state = "expired"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "code=%s guest=%s device=%q expires=%s state=%s\n",
				code,
				session.GuestID,
				session.DeviceName,
				time.UnixMilli(session.ExpiresAt).UTC().Format(time.RFC3339),
				state,
			)
			return nil
		},
	}
}
