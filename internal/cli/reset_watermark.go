package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/arnotify/notifier/internal/core/config"
	"github.com/arnotify/notifier/internal/infra/storage/postgres"
)

var resetWatermarkCmd = &cobra.Command{
	Use:   "reset-watermark [process_id] [block_height]",
	Short: "Drop events above a block height so the process re-fetches from there",
	Args:  cobra.ExactArgs(2),
	Run:   runResetWatermark,
}

func init() {
	rootCmd.AddCommand(resetWatermarkCmd)
}

func runResetWatermark(cmd *cobra.Command, args []string) {
	processID := args[0]
	height, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		fmt.Printf("Invalid block height: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	events := postgres.NewEventRepo(db)
	deleted, err := events.DeleteAboveHeight(ctx, processID, height)
	if err != nil {
		slog.Error("Failed to reset watermark", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Deleted %d events above block %d for %s\n", deleted, height, processID)
}
