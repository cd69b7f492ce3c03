// Package handlers routes game events to the match engine and serves the scrims API.
package handlers

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"sunday-scrims/internal/config"
	"sunday-scrims/internal/events"
	"sunday-scrims/internal/match"
	"sunday-scrims/internal/ratingstore"
	"sunday-scrims/internal/watcher"

	"github.com/sourcegraph/conc"
)

// storeTimeout bounds background ladder reads and name writes
const storeTimeout = 5 * time.Second

// Ladder is the part of the rating store the dispatcher and routes use.
type Ladder interface {
	TopRatings(ctx context.Context, limit int) ([]ratingstore.LadderEntry, error)
	RememberName(ctx context.Context, id match.PlayerID, name string) error
}

// Dispatcher turns log events into engine calls. It tracks who is on the server
// and the latest team scores so a Game Over can be settled.
type Dispatcher struct {
	engine *match.Engine
	ladder Ladder
	cfg    *config.Config
	logger *slog.Logger

	mu     sync.Mutex
	roster map[match.PlayerID]match.Presence
	scores map[match.Team]int

	trigger RosterTrigger

	tasks conc.WaitGroup
}

// RosterTrigger is told about team switches and disconnects so the server can be
// re-checked once a burst of them settles.
type RosterTrigger interface {
	Trigger()
}

func NewDispatcher(engine *match.Engine, ladder Ladder, cfg *config.Config, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		engine: engine,
		ladder: ladder,
		cfg:    cfg,
		logger: logger,
		roster: make(map[match.PlayerID]match.Presence),
		scores: make(map[match.Team]int),
	}
}

// SetRosterTrigger sets who is notified of switch and disconnect events. Optional.
func (d *Dispatcher) SetRosterTrigger(t RosterTrigger) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.trigger = t
}

// Restore rebuilds the roster from the startup catch-up. A roster whose match
// already ended restores presence only.
func (d *Dispatcher) Restore(r watcher.Roster) {
	players := make([]match.Presence, 0, len(r.Players))
	d.mu.Lock()
	d.roster = make(map[match.PlayerID]match.Presence, len(r.Players))
	d.scores = make(map[match.Team]int)
	for _, p := range r.Players {
		d.roster[p.ID] = p
		if r.Ended {
			p.Team = match.TeamNone
		}
		players = append(players, p)
	}
	d.mu.Unlock()

	d.engine.Restore(players)
}

// HandleEvent implements watcher.Sink
func (d *Dispatcher) HandleEvent(ev events.Event) {
	switch ev.Kind {
	case events.TypePlayerConnect:
		d.logger.Debug("Player connecting", "player", ev.Player.ID, "name", ev.Player.Name)

	case events.TypePlayerEntered:
		d.mu.Lock()
		p := ev.Player
		if known, ok := d.roster[p.ID]; ok {
			p.Team = known.Team
		}
		d.roster[p.ID] = p
		d.mu.Unlock()

		d.rememberName(p)
		if team, ok := d.engine.PlayerJoined(p); ok {
			d.logger.Info("Player joined live match", "player", p.ID, "name", p.Name, "team", team.String())
		} else {
			d.logger.Info("Player joined", "player", p.ID, "name", p.Name)
		}

	case events.TypePlayerSwitchTeam:
		d.mu.Lock()
		p := ev.Player
		if known, ok := d.roster[p.ID]; ok && p.Name == "" {
			p.Name = known.Name
		}
		d.roster[p.ID] = p
		d.mu.Unlock()

		d.checkHalftime(ev)
		d.notifyRosterChange()

	case events.TypePlayerDisconnect:
		d.mu.Lock()
		delete(d.roster, ev.Player.ID)
		d.mu.Unlock()
		d.engine.PlayerLeft(ev.Player.ID)
		d.logger.Info("Player left", "player", ev.Player.ID, "name", ev.Player.Name)
		d.notifyRosterChange()

	case events.TypeChat:
		d.handleChat(ev)

	case events.TypeMatchStart:
		d.resetScores()
		d.logger.Info("Match started", "map", ev.Map)

	case events.TypeTeamScored:
		d.mu.Lock()
		d.scores[ev.Team] = ev.Score
		d.mu.Unlock()

	case events.TypeGameOver:
		d.gameOver(ev)
	}
}

// checkHalftime swaps the engine's sides once every connected assigned player has
// moved from their assigned side to the opposite one. Only a move away from the
// assigned side starts the check, so our own switch commands never trigger it.
func (d *Dispatcher) checkHalftime(ev events.Event) {
	assigned := d.engine.Assignments()
	side, ok := assigned[ev.Player.ID]
	if !ok || ev.FromTeam != side || ev.Player.Team != side.Opponent() {
		return
	}

	d.mu.Lock()
	moved := 0
	for id, team := range assigned {
		p, present := d.roster[id]
		if !present {
			continue
		}
		if p.Team != team.Opponent() {
			d.mu.Unlock()
			return
		}
		moved++
	}
	d.mu.Unlock()

	if moved > 0 && d.engine.SwapSides() {
		d.logger.Info("Halftime side swap", "players", moved)
	}
}

// ReconcilePresence drops everyone whose name is not in connected, the player
// names the server currently reports. Returns how many players were dropped.
func (d *Dispatcher) ReconcilePresence(connected []string) int {
	names := make(map[string]bool, len(connected))
	for _, name := range connected {
		names[name] = true
	}

	var gone []match.PlayerID
	d.mu.Lock()
	for id, p := range d.roster {
		if p.Name != "" && !names[p.Name] {
			gone = append(gone, id)
			delete(d.roster, id)
		}
	}
	d.mu.Unlock()

	for _, id := range gone {
		d.engine.PlayerLeft(id)
		d.logger.Info("Player no longer on server", "player", id)
	}
	return len(gone)
}

func (d *Dispatcher) notifyRosterChange() {
	d.mu.Lock()
	t := d.trigger
	d.mu.Unlock()
	if t != nil {
		t.Trigger()
	}
}

// gameOver settles the match using the last reported team scores, falling back to
// the Game Over line itself.
func (d *Dispatcher) gameOver(ev events.Event) {
	d.mu.Lock()
	ct, t := ev.CTScore, ev.TScore
	if ctScore, ok := d.scores[match.TeamCounterTerrorist]; ok {
		ct = ctScore
	}
	if tScore, ok := d.scores[match.TeamTerrorist]; ok {
		t = tScore
	}
	d.scores = make(map[match.Team]int)
	d.mu.Unlock()

	result := d.engine.MatchEnd(ct, t)
	if result == nil {
		d.logger.Info("Game over without rating change", "map", ev.Map, "ct", ct, "t", t)
		return
	}
	d.logger.Info("Game over", "map", ev.Map, "winner", result.Winner.String(), "ct", ct, "t", t, "delta", result.Delta)
}

func (d *Dispatcher) resetScores() {
	d.mu.Lock()
	d.scores = make(map[match.Team]int)
	d.mu.Unlock()
}

// Players returns the ids of everyone on the server in ascending order
func (d *Dispatcher) Players() []match.PlayerID {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]match.PlayerID, 0, len(d.roster))
	for id := range d.roster {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Name returns the last seen name for a player
func (d *Dispatcher) Name(id match.PlayerID) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.roster[id]
	return p.Name, ok
}

func (d *Dispatcher) rememberName(p match.Presence) {
	if d.ladder == nil || p.Name == "" {
		return
	}
	d.tasks.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := d.ladder.RememberName(ctx, p.ID, p.Name); err != nil {
			d.logger.Warn("Failed to store player name", "player", p.ID, "error", err)
		}
	})
}

// Wait blocks until background store work has finished
func (d *Dispatcher) Wait() {
	if r := d.tasks.WaitAndRecover(); r != nil {
		d.logger.Error("Dispatcher task panicked", "panic", r.Value)
	}
}
