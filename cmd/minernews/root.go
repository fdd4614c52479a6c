// minernews fetches Bitcoin mining news, asks an AI model for an analysis of
// each new article and writes one Markdown report per article.
//
// Usage:
//
//	minernews run [--articles=<file.yaml>] [--dry-run]
//	minernews serve
//	minernews export [--days=N] [-o digest.docx]
//	minernews ledger rebuild
//	minernews ledger check <url>
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hoanghai1803/minernews/internal/config"
	"github.com/hoanghai1803/minernews/internal/logging"
	"github.com/hoanghai1803/minernews/internal/storage"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
	envFile    string
	logLevel   string
}

var rootCmd = &cobra.Command{
	Use:   "minernews",
	Short: "AI analysis reports for Bitcoin mining news",
	Long:  "minernews polls mining news feeds, sends each unseen article to an AI model\nand stores the analysis as a Markdown report.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&rootFlags.configPath, "config", "config.toml", "path to config file (created with defaults if missing)")
	f.StringVar(&rootFlags.envFile, "env-file", ".env", "dotenv file loaded before the config")
	f.StringVar(&rootFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(ledgerCmd)
	rootCmd.Version = version
}

// loadConfig reads the dotenv file and config, then installs the logger.
func loadConfig() (*config.Config, error) {
	if err := config.LoadEnvFile(rootFlags.envFile); err != nil {
		return nil, err
	}

	_, statErr := os.Stat(rootFlags.configPath)
	created := errors.Is(statErr, fs.ErrNotExist)

	cfg, err := config.Load(rootFlags.configPath)
	if err != nil {
		return nil, err
	}
	if rootFlags.logLevel != "" {
		cfg.Log.Level = rootFlags.logLevel
	}

	if _, err := logging.Setup(cfg.Log.Level, cfg.Log.Format, os.Stderr); err != nil {
		return nil, err
	}

	if created {
		slog.Info("created default config file", "path", rootFlags.configPath)
	}
	if cfg.AI.APIKey == "" {
		slog.Warn("ai.api_key is empty: analysis will be skipped; set it in the config file or via AI_API_KEY",
			"provider", cfg.AI.Provider)
	}
	return cfg, nil
}

// openStore opens the ledger database, applies migrations and seeds the
// default feed sources.
func openStore(ctx context.Context, cfg *config.Config) (*storage.Store, error) {
	db, err := storage.OpenDatabase(cfg.Run.LedgerPath)
	if err != nil {
		return nil, err
	}

	if err := storage.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", cfg.Run.LedgerPath, err)
	}

	store := storage.NewStore(db)
	if err := store.SeedDefaults(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("seeding feed sources: %w", err)
	}
	return store, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Debug("command failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
