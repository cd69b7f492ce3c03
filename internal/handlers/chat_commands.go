package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sunday-scrims/internal/events"
	"sunday-scrims/internal/match"
)

const topLimit = 5

// handleChat runs a chat command. Anything not starting with ! is ignored.
func (d *Dispatcher) handleChat(ev events.Event) {
	fields := strings.Fields(ev.Message)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "!") {
		return
	}
	command := strings.ToLower(fields[0])
	player := ev.Player

	d.logger.Info("Chat command", "player", player.ID, "name", player.Name, "command", command)

	switch command {
	case "!balance":
		if !d.requireAdmin(player, command) {
			return
		}
		d.resetScores()
		if _, err := d.engine.Balance(d.Players()); err != nil {
			if errors.Is(err, match.ErrInsufficientPlayers) {
				d.engine.Tell(player.ID, fmt.Sprintf("Need at least %d players to balance", match.MinBalancePlayers))
				return
			}
			d.logger.Error("Balance failed", "error", err)
		}

	case "!reset":
		if !d.requireAdmin(player, command) {
			return
		}
		d.resetScores()
		d.engine.Reset()
		d.engine.Announce("Teams reset, ratings unchanged")

	case "!rating", "!elo":
		d.engine.Tell(player.ID, fmt.Sprintf("Your rating is %d", d.engine.Rating(player.ID)))

	case "!top":
		d.announceTop(player.ID)

	case "!help":
		d.engine.Tell(player.ID, "Commands: !rating, !top, !balance (admin), !reset (admin)")
	}
}

func (d *Dispatcher) requireAdmin(player match.Presence, command string) bool {
	if d.cfg == nil || d.cfg.IsAdmin(player.ID.String()) {
		return true
	}
	d.logger.Warn("Admin command refused", "player", player.ID, "command", command)
	d.engine.Tell(player.ID, fmt.Sprintf("%s is admin only", command))
	return false
}

// announceTop reads the ladder in the background and broadcasts it
func (d *Dispatcher) announceTop(requester match.PlayerID) {
	if d.ladder == nil {
		return
	}
	d.tasks.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		top, err := d.ladder.TopRatings(ctx, topLimit)
		if err != nil {
			d.logger.Warn("Failed to read ladder", "error", err)
			d.engine.Tell(requester, "Ladder unavailable, try again later")
			return
		}
		if len(top) == 0 {
			d.engine.Tell(requester, "No rated matches yet")
			return
		}

		parts := make([]string, len(top))
		for i, entry := range top {
			name := entry.Name
			if name == "" {
				name = entry.SteamID
			}
			parts[i] = fmt.Sprintf("#%d %s %d", i+1, name, entry.Rating)
		}
		d.engine.Announce("Top players: " + strings.Join(parts, " | "))
	})
}
