package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"financeiro/internal/auth"
	"financeiro/internal/backend"
	"financeiro/internal/cli"
	"financeiro/internal/config"
	"financeiro/internal/core"
	"financeiro/internal/log"
)

var (
	flagDBPath   string
	flagUser     string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:           "financeiro-cli",
	Short:         "Operator tools for the financeiro budget service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		cli.LoadEnvFile()
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "SQLite database path (default: SQLITE_DB_PATH)")
	rootCmd.PersistentFlags().StringVarP(&flagUser, "user", "u", "", "User id the command acts as")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "Log level written to stderr")
}

// loadConfig reads the environment and applies command line overrides.
func loadConfig() *config.Config {
	cfg := config.Load()
	if flagDBPath != "" {
		cfg.SQLiteDBPath = flagDBPath
	}
	return cfg
}

func newLogger() *log.Logger {
	level, _ := log.ParseLevel(flagLogLevel)
	logger := log.New(log.Config{Level: level, Component: log.ComponentCLI, Output: os.Stderr})
	log.SetDefault(logger)
	return logger
}

// userContext returns a context acting as --user.
func userContext() (context.Context, error) {
	user := core.UserID(flagUser)
	if user.IsZero() {
		return nil, fmt.Errorf("--user is required")
	}
	return auth.WithUser(context.Background(), user), nil
}

// openBackend wires the budget service over the SQLite database. Events are
// published when AMQP_URL is set so the mirror worker sees CLI entries too.
func openBackend(ctx context.Context) (*backend.BackendResult, error) {
	cfg := loadConfig()
	return backend.NewFactory(newLogger()).CreateBackend(ctx, backend.Config{
		Type:         backend.SQLiteBackend,
		SQLiteDBPath: cfg.SQLiteDBPath,
		AMQPURL:      cfg.AMQPURL,
		AMQPExchange: cfg.AMQPExchange,
		AMQPQueue:    cfg.AMQPQueue,
	})
}

func closeBackend(result *backend.BackendResult) {
	if result.Cleanup == nil {
		return
	}
	if err := result.Cleanup(); err != nil {
		fmt.Fprintln(os.Stderr, "cleanup:", err)
	}
}
