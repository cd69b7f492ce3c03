package jobs

import (
	"context"
	"log/slog"
	"time"

	"sunday-scrims/internal/a2s"

	"github.com/pocketbase/pocketbase/core"
)

// StatusRefresher re-queries the game server's public info
type StatusRefresher interface {
	Refresh(ctx context.Context) a2s.Status
}

// RegisterServerQuery refreshes the A2S server status every minute
func RegisterServerQuery(app core.App, monitor StatusRefresher, logger *slog.Logger) {
	app.Cron().MustAdd("a2s_server_info", "* * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		status := monitor.Refresh(ctx)
		logger.Debug("Queried server info", "component", "A2S", "online", status.Online, "players", status.Info.Players, "map", status.Info.Map)
	})

	logger.Info("Registered cron job to query server info every minute", "component", "JOBS")
}
