// Package jobs registers the scheduled maintenance jobs.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/pocketbase/pocketbase/core"
)

// MatchPruner deletes match history rows that ended before a cutoff
type MatchPruner interface {
	PruneMatches(ctx context.Context, before time.Time) (int, error)
}

// RegisterPruneMatchHistory sets up a daily cron job that deletes match history
// older than retentionDays. A non-positive retention disables the job.
func RegisterPruneMatchHistory(app core.App, pruner MatchPruner, retentionDays int, logger *slog.Logger) {
	if retentionDays <= 0 {
		logger.Info("Match history pruning disabled", "component", "JOBS")
		return
	}

	// Run daily at 4 AM
	app.Cron().MustAdd("prune_match_history", "0 4 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		pruneMatchHistory(ctx, pruner, retentionDays, logger)
	})

	logger.Info("Registered cron job to prune match history", "component", "JOBS", "retention_days", retentionDays)
}

func pruneMatchHistory(ctx context.Context, pruner MatchPruner, retentionDays int, logger *slog.Logger) int {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	pruned, err := pruner.PruneMatches(ctx, cutoff)
	if err != nil {
		logger.Error("Prune job failed", "component", "PRUNE_JOB", "error", err)
		return 0
	}

	logger.Info("Prune job completed",
		"component", "PRUNE_JOB",
		"pruned_matches", pruned,
		"cutoff_date", cutoff.Format("2006-01-02"))
	return pruned
}
