// Package main implements the spt CLI tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/amonks/spacetodo/internal/config"
	"github.com/amonks/spacetodo/internal/logging"
	"github.com/amonks/spacetodo/record"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "spt: %v\n", err)
		var exitErr interface{ ExitCode() int }
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "spt",
	Short:         "spacetodo - shared task catalogs and todo lists",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	flagBackend  string
	flagDataDir  string
	flagLogLevel string
	flagUser     string
	flagOutput   = outputTable
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagBackend, "backend", "", "store backend: file, memory, sqlite, or redis")
	flags.StringVar(&flagDataDir, "data-dir", "", "data directory (or sqlite database path)")
	flags.StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, or error")
	flags.StringVar(&flagUser, "user", "", "id (or id prefix) of the user new todos belong to")
	flags.VarP(&flagOutput, "output", "o", "output format: table, json, or yaml")
}

// app is what every command runs against.
type app struct {
	cfg    *config.Config
	logger *log.Logger
	store  record.Store
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close store", "err", err)
	}
}

// openApp loads the configuration for the working directory, applies the
// persistent flags, and opens the store.
func openApp(cmd *cobra.Command) (*app, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		return nil, exitWith(exitUsage, err)
	}
	if flagBackend != "" {
		cfg.Store.Backend = flagBackend
	}
	if flagDataDir != "" {
		cfg.Store.Path = flagDataDir
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	if flagUser != "" {
		cfg.User.ID = flagUser
	}
	if err := cfg.Validate(); err != nil {
		return nil, exitWith(exitUsage, err)
	}

	logger := logging.New(cmd.ErrOrStderr(), logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Prefix: "spt",
	})

	store, err := openStore(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Debug("opened store", "backend", cfg.Backend())
	return &app{cfg: cfg, logger: logger, store: store}, nil
}
