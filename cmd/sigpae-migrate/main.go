package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/noah-isme/sigpae-api/pkg/config"
	"github.com/noah-isme/sigpae-api/pkg/database"
)

var rootCmd = &cobra.Command{
	Use:           "sigpae-migrate",
	Short:         "Manage the SIGPAE database schema",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		m, err := newMigrator(cmd)
		if err != nil {
			return err
		}
		defer closeMigrator(m)
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("apply migrations: %w", err)
		}
		fmt.Println("migrations applied")
		return nil
	},
}

var downCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Roll back migrations, one step by default",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps := 1
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return fmt.Errorf("steps must be a positive integer, got %q", args[0])
			}
			steps = n
		}
		m, err := newMigrator(cmd)
		if err != nil {
			return err
		}
		defer closeMigrator(m)
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("roll back migrations: %w", err)
		}
		fmt.Printf("rolled back %d migration(s)\n", steps)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	RunE: func(cmd *cobra.Command, _ []string) error {
		m, err := newMigrator(cmd)
		if err != nil {
			return err
		}
		defer closeMigrator(m)
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("no migrations applied")
			return nil
		}
		if err != nil {
			return fmt.Errorf("read version: %w", err)
		}
		fmt.Printf("version %d (dirty=%t)\n", version, dirty)
		return nil
	},
}

func newMigrator(cmd *cobra.Command) (*migrate.Migrate, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	source := cfg.Migrations.Source
	if flag, _ := cmd.Flags().GetString("source"); flag != "" {
		source = flag
	}
	dbURL := database.URL(cfg.Database)
	if flag, _ := cmd.Flags().GetString("db"); flag != "" {
		dbURL = flag
	}
	m, err := migrate.New(source, dbURL)
	if err != nil {
		return nil, fmt.Errorf("init migrations: %w", err)
	}
	return m, nil
}

func closeMigrator(m *migrate.Migrate) {
	srcErr, dbErr := m.Close()
	if srcErr != nil {
		fmt.Fprintf(os.Stderr, "close source: %v\n", srcErr)
	}
	if dbErr != nil {
		fmt.Fprintf(os.Stderr, "close database: %v\n", dbErr)
	}
}

func main() {
	rootCmd.PersistentFlags().String("db", "", "Database URL (defaults to DB_* settings)")
	rootCmd.PersistentFlags().String("source", "", "Migrations source (defaults to MIGRATIONS_SOURCE)")
	rootCmd.AddCommand(upCmd, downCmd, versionCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
