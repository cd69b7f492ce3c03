package app

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"sunday-scrims/internal/a2s"
	"sunday-scrims/internal/config"
	"sunday-scrims/internal/effects"
	"sunday-scrims/internal/handlers"
	"sunday-scrims/internal/jobs"
	"sunday-scrims/internal/logger"
	"sunday-scrims/internal/match"
	"sunday-scrims/internal/parser"
	"sunday-scrims/internal/ratingstore"
	"sunday-scrims/internal/rcon"
	"sunday-scrims/internal/watcher"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
)

const pidFile = "sunday-scrims.pid"

// App wraps PocketBase with the scrim engine and the pieces that feed it
type App struct {
	*pocketbase.PocketBase // Embed PocketBase - all its methods are available

	Config     *config.Config
	Ratings    *ratingstore.Store
	Rcon       *rcon.Client
	Engine     *match.Engine
	Dispatcher *handlers.Dispatcher
	Watcher    *watcher.Watcher
	Monitor    *a2s.Monitor

	customLogger *slog.Logger // Logger with TeeHandler (writes to both console and file)
	fileWriter   *logger.FileWriter
	simulation   *simulation
	roster       *jobs.RosterDebouncer

	// Version information (injected at build time via ldflags)
	Version string
	Commit  string
	Date    string
}

// New creates the application with development version info
func New() (*App, error) {
	return NewWithVersion("dev", "unknown", "unknown")
}

// NewWithVersion creates a new app with version information
func NewWithVersion(version, commit, date string) (*App, error) {
	app := &App{
		PocketBase: pocketbase.New(),
		Version:    version,
		Commit:     commit,
		Date:       date,
	}

	if err := app.setupServices(); err != nil {
		return nil, fmt.Errorf("failed to setup services: %w", err)
	}

	app.setupPlugins()

	return app, nil
}

// setupServices loads the configuration. Everything that needs the database is
// built in onServe.
func (app *App) setupServices() error {
	cfgVal := app.Store().GetOrSet("config", func() any {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		return cfg
	})

	if err, ok := cfgVal.(error); ok {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app.Config = cfgVal.(*config.Config)

	app.OnBootstrap().BindFunc(func(e *core.BootstrapEvent) error {
		if err := e.Next(); err != nil {
			return err
		}
		if err := app.setupLogger(); err != nil {
			// keep running on the PocketBase logger
			app.PocketBase.Logger().Warn("Failed to setup file logging", "component", "APP", "error", err)
		}
		return nil
	})

	return nil
}

// setupPlugins registers migrations and the extra CLI commands
func (app *App) setupPlugins() {
	migratecmd.MustRegister(app.PocketBase, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	app.RootCmd.AddCommand(newVersionCmd(app.Version, app.Commit, app.Date))
	app.RootCmd.AddCommand(newInitConfigCmd())
	app.RootCmd.AddCommand(newRconCmd(app.Config))
	app.RootCmd.AddCommand(newQueryCmd(app.Config))
	app.RootCmd.AddCommand(newReplayCmd())
}

// Bootstrap registers the lifecycle hooks
func (app *App) Bootstrap() error {
	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		// Write PID file for graceful shutdown coordination
		pidData := []byte(fmt.Sprintf("%d", os.Getpid()))
		if err := os.WriteFile(pidFile, pidData, 0644); err != nil {
			app.Logger().Warn("Failed to write PID file", "error", err)
		}
		return app.onServe(e)
	})

	app.OnTerminate().BindFunc(func(e *core.TerminateEvent) error {
		os.Remove(pidFile)
		return app.onTerminate(e)
	})

	return nil
}

// onServe builds the engine pipeline and starts the simulation loop and the log watcher
func (app *App) onServe(e *core.ServeEvent) error {
	log := app.Logger().With("component", "APP")
	log.Info("Starting sunday-scrims", "version", app.Version, "server", app.Config.Server.Name)

	if err := app.Config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	app.Ratings = ratingstore.New(app)

	app.Rcon = rcon.NewClient(rcon.ClientConfig{
		Address:  app.Config.Server.RconAddress,
		Password: app.Config.Server.RconPassword,
		Timeout:  app.Config.RconTimeoutDuration(),
	}, app.Logger().With("component", "RCON"))

	fx := effects.NewRcon(app.Rcon, app.Config.Commands, app.Config.RconTimeoutDuration(), app.Logger().With("component", "EFFECTS"))

	app.Engine = match.NewEngine(app.Ratings, fx, app.Logger().With("component", "ENGINE"))
	app.Engine.SetRecorder(app.Ratings)

	app.Dispatcher = handlers.NewDispatcher(app.Engine, app.Ratings, app.Config, app.Logger().With("component", "DISPATCH"))

	w, err := watcher.NewWatcher(app.Config.Server.LogDir, parser.NewLogParser(time.Local), app.Dispatcher, app.Logger().With("component", "WATCHER"))
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	app.Watcher = w

	var server handlers.ServerStatus
	if addr := app.Config.Server.QueryAddress; addr != "" {
		app.Monitor = a2s.NewMonitor(a2s.NewClient(app.Config.RconTimeoutDuration()), addr, app.Logger().With("component", "A2S"))
		server = app.Monitor
		jobs.RegisterServerQuery(app, app.Monitor, app.Logger().With("component", "A2S_JOB"))
	}

	handlers.BindRoutes(e, app.Engine, app.Ratings, server)

	jobs.RegisterPruneMatchHistory(app, app.Ratings, app.Config.History.RetentionDays, app.Logger().With("component", "PRUNE_JOB"))
	jobs.RegisterRconHeartbeat(app, app.Rcon, app.Logger().With("component", "RCON_JOB"))

	// switch and disconnect bursts are re-checked against RCON status
	app.roster = jobs.NewRosterDebouncer(app.Rcon, app.Dispatcher, 5*time.Second, 20*time.Second, app.Logger().With("component", "ROSTER_DEBOUNCER"))
	app.Dispatcher.SetRosterTrigger(app.roster)

	app.simulation = startSimulation(app.Engine, app.Config.TickInterval())

	if err := app.Watcher.Start(); err != nil {
		app.simulation.stop()
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	return e.Next()
}

// onTerminate stops reading the log, drains the engine and releases connections
func (app *App) onTerminate(e *core.TerminateEvent) error {
	if app.Watcher != nil {
		app.Watcher.Stop()
	}

	if app.roster != nil {
		app.roster.Stop()
	}

	drainPipeline(app.Dispatcher, app.Engine, app.simulation)

	if app.Rcon != nil {
		if err := app.Rcon.Close(); err != nil {
			app.Logger().Warn("Failed to close RCON connection", "component", "APP", "error", err)
		}
	}

	if app.fileWriter != nil {
		if err := app.fileWriter.Close(); err != nil {
			app.PocketBase.Logger().Error("Failed to close log file writer", "component", "APP", "error", err)
		}
	}

	return e.Next()
}

func (app *App) Logger() *slog.Logger {
	if app.customLogger != nil {
		return app.customLogger
	}
	return app.PocketBase.Logger()
}

// setupLogger tees the PocketBase logger into a rotating file.
// This must be called AFTER the app is bootstrapped
func (app *App) setupLogger() error {
	if app.Config == nil {
		return fmt.Errorf("config not loaded")
	}
	logCfg := app.Config.Logging

	l, fw, err := logger.New(app.PocketBase.Logger().Handler(), logger.ParseLevel(logCfg.Level), logger.FileWriterConfig{
		FilePath:   logFilePath(time.Now()),
		MaxSize:    int64(logCfg.MaxSizeMB) * 1024 * 1024,
		MaxBackups: logCfg.MaxBackups,
	})
	if err != nil {
		return err
	}

	app.customLogger = l
	app.fileWriter = fw
	return nil
}

// logFilePath returns a date-based log filename: logs/sunday-scrims.2025-11-21.log
func logFilePath(now time.Time) string {
	return fmt.Sprintf("logs/sunday-scrims.%s.log", now.Format("2006-01-02"))
}
