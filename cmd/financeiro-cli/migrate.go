package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"financeiro/internal/auth"
	"financeiro/internal/core"
	"financeiro/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := loadConfig()
		if err := storage.RunMigrations(cfg.SQLiteDBPath); err != nil {
			return err
		}
		version, dirty, err := storage.MigrationVersion(cfg.SQLiteDBPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%v) at %s\n", version, dirty, cfg.SQLiteDBPath)
		return nil
	},
}

var (
	flagEmail string
	flagTTL   time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for --user, signed with AUTH_JWT_SECRET",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := loadConfig()
		if len(cfg.AuthJWTSecret) == 0 {
			return fmt.Errorf("AUTH_JWT_SECRET is not set")
		}
		tok, err := auth.IssueToken(cfg.AuthJWTSecret, cfg.AuthAudience, core.UserID(flagUser), flagEmail, flagTTL)
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&flagEmail, "email", "", "Email claim")
	tokenCmd.Flags().DurationVar(&flagTTL, "ttl", 24*time.Hour, "Token lifetime")
	rootCmd.AddCommand(migrateCmd, tokenCmd)
}
