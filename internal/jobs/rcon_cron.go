package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/pocketbase/pocketbase/core"
)

// Commander runs a raw RCON command
type Commander interface {
	Execute(ctx context.Context, cmd string) (string, error)
}

// RegisterRconHeartbeat checks every minute that the game server still answers
// RCON, keeping the connection warm between matches.
func RegisterRconHeartbeat(app core.App, rcon Commander, logger *slog.Logger) {
	app.Cron().MustAdd("rcon_heartbeat", "* * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		heartbeat(ctx, rcon, logger)
	})

	logger.Info("Registered cron job to check RCON every minute", "component", "JOBS")
}

func heartbeat(ctx context.Context, rcon Commander, logger *slog.Logger) bool {
	if _, err := rcon.Execute(ctx, "status"); err != nil {
		logger.Warn("RCON heartbeat failed", "component", "RCON_JOB", "error", err)
		return false
	}
	logger.Debug("RCON heartbeat ok", "component", "RCON_JOB")
	return true
}
