// Package effects turns engine requests into RCON console commands.
package effects

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"sunday-scrims/internal/config"
	"sunday-scrims/internal/match"
)

// Executor runs a console command on the game server.
type Executor interface {
	Execute(ctx context.Context, command string) (string, error)
}

// ErrUnavailable is returned without contacting the server while a recent
// command failure is still backing off.
var ErrUnavailable = errors.New("rcon unavailable")

// DefaultBackoff is how long commands are skipped after a failed one.
const DefaultBackoff = 10 * time.Second

// Rcon implements match.Effects over an Executor using the configured command templates.
// After a failed command every effect fails fast with ErrUnavailable until the
// backoff passes.
type Rcon struct {
	exec     Executor
	commands config.CommandsConfig
	timeout  time.Duration
	backoff  time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	downUntil time.Time
}

func NewRcon(exec Executor, commands config.CommandsConfig, timeout time.Duration, logger *slog.Logger) *Rcon {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Rcon{
		exec:     exec,
		commands: commands,
		timeout:  timeout,
		backoff:  DefaultBackoff,
		logger:   logger,
		now:      time.Now,
	}
}

func (r *Rcon) SwitchTeam(id match.PlayerID, team match.Team) error {
	if !team.Playing() {
		return fmt.Errorf("cannot switch %s to team %s", id, team)
	}
	return r.run(render(r.commands.SwitchTeam, id, team, ""))
}

func (r *Rcon) Broadcast(text string) error {
	return r.run(render(r.commands.Broadcast, 0, match.TeamNone, text))
}

func (r *Rcon) RestartMatch() error {
	return r.run(r.commands.Restart)
}

func (r *Rcon) Tell(id match.PlayerID, text string) error {
	return r.run(render(r.commands.Tell, id, match.TeamNone, text))
}

func (r *Rcon) run(command string) error {
	r.mu.Lock()
	if r.now().Before(r.downUntil) {
		r.mu.Unlock()
		return fmt.Errorf("rcon %q: %w", command, ErrUnavailable)
	}
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	out, err := r.exec.Execute(ctx, command)
	if err != nil {
		r.mu.Lock()
		r.downUntil = r.now().Add(r.backoff)
		r.mu.Unlock()
		r.logger.Warn("Game command failed, pausing commands", "command", command, "backoff", r.backoff, "error", err)
		return fmt.Errorf("rcon %q: %w", command, err)
	}

	r.mu.Lock()
	r.downUntil = time.Time{}
	r.mu.Unlock()
	r.logger.Debug("Sent game command", "command", command, "response", out)
	return nil
}

// render fills {steamid}, {team} and {text}. Quotes and line breaks in text are
// stripped so chat text cannot break out of the console command.
func render(template string, id match.PlayerID, team match.Team, text string) string {
	text = strings.NewReplacer(`"`, "'", "\n", " ", "\r", " ", ";", ",").Replace(text)
	return strings.NewReplacer(
		"{steamid}", id.String(),
		"{team}", team.String(),
		"{text}", text,
	).Replace(template)
}
