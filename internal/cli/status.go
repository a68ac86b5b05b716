package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/buildforge/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last-known-good snapshot of every source",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if cfg.Database.URL == "" {
		slog.Error("Snapshots are only persisted with a database; set database.url")
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

	rows, err := db.QueryContext(ctx,
		"SELECT source_id, kind, fetched_at FROM source_snapshots ORDER BY source_id, kind")
	if err != nil {
		slog.Error("Failed to query snapshots", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = rows.Close()
	}()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "SOURCE\tKIND\tFETCHED\tAGE")

	now := time.Now()
	for rows.Next() {
		var sourceID, kind string
		var fetchedAt time.Time
		if err := rows.Scan(&sourceID, &kind, &fetchedAt); err != nil {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", sourceID, kind,
			fetchedAt.Format(time.RFC3339), now.Sub(fetchedAt).Truncate(time.Second))
	}
	_ = w.Flush()
}
