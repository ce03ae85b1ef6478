// Package cli implements the notifier command-line interface.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/arnotify/notifier/internal/control"
	"github.com/arnotify/notifier/internal/core/config"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "notifier",
	Short: "AO event notification service",
	Long:  `Notifier ingests AO process events from an Arweave GraphQL indexer, fans them out to email, webhook and social channels, and monitors AR.IO gateway health.`,
	Run:   runNotifier,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

// setupLogging installs the tinted slog handler as the default logger.
func setupLogging(level slog.Level) {
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	})))
}

func runNotifier(cmd *cobra.Command, args []string) {
	_ = godotenv.Load()

	setupLogging(slog.LevelInfo)

	// Load Configuration
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	if isDebug || cfg.Logging.Level == "debug" {
		setupLogging(slog.LevelDebug)
	}

	// Initialize Notifier
	app, err := control.NewNotifier(cfg)
	if err != nil {
		slog.Error("Failed to initialize notifier", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := app.Start(ctx); err != nil {
		slog.Error("Failed to start notifier", "error", err)
		os.Exit(1)
	}

	slog.Info("Notifier started", "config", cfgPath)

	sig := <-sigChan
	slog.Info("Received signal, shutting down...", "signal", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}
}
