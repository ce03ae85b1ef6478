package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/arnotify/notifier/internal/core/config"
	"github.com/arnotify/notifier/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-process ingest progress and gateway monitor state",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
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

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "PROCESS\tNONCE\tBLOCK")
	for _, p := range cfg.Processes {
		nonce, ok, err := events.LatestNonce(ctx, p.ID)
		if err != nil {
			slog.Error("Failed to query events", "process", p.ID, "error", err)
			continue
		}
		height, err := events.LatestBlockHeight(ctx, p.ID)
		if err != nil {
			slog.Error("Failed to query events", "process", p.ID, "error", err)
			continue
		}
		nonceStr := "-"
		if ok {
			nonceStr = fmt.Sprintf("%d", nonce)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\n", p.ID, nonceStr, height)
	}
	_ = w.Flush()

	fmt.Println()

	monitors := postgres.NewMonitorRepo(db)
	all, err := monitors.GetAll(ctx)
	if err != nil {
		slog.Error("Failed to query monitors", "error", err)
		os.Exit(1)
	}

	mw := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(mw, "GATEWAY\tSTATUS\tFAILURES\tLAST CHECK")
	for _, m := range all {
		lastCheck := "-"
		if m.LastCheckAt != nil {
			lastCheck = m.LastCheckAt.Format("2006-01-02 15:04:05")
		}
		_, _ = fmt.Fprintf(mw, "%s\t%s\t%d\t%s\n", m.FQDN, m.Status, m.ConsecutiveFailures, lastCheck)
	}
	_ = mw.Flush()
}
