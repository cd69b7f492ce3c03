package watcher

import (
	"time"

	"sunday-scrims/internal/events"
	"sunday-scrims/internal/match"
	"sunday-scrims/internal/parser"
	"sunday-scrims/internal/tail"
)

// MaxCatchupAge is how recently the newest log must have been written for the
// startup catch-up to trust it.
const MaxCatchupAge = 6 * time.Hour

// Roster is the server population rebuilt from a log.
type Roster struct {
	// Players in the order they first appeared
	Players []match.Presence
	// Ended is true when a Game Over was logged after the last match start
	Ended bool
}

// RosterBuilder folds events into a Roster.
type RosterBuilder struct {
	order   []match.PlayerID
	players map[match.PlayerID]match.Presence
	ended   bool
}

func NewRosterBuilder() *RosterBuilder {
	return &RosterBuilder{players: make(map[match.PlayerID]match.Presence)}
}

func (b *RosterBuilder) Apply(ev events.Event) {
	switch ev.Kind {
	case events.TypePlayerConnect, events.TypePlayerEntered:
		if _, ok := b.players[ev.Player.ID]; !ok {
			b.add(match.Presence{ID: ev.Player.ID, Name: ev.Player.Name})
		}
	case events.TypePlayerSwitchTeam:
		if _, ok := b.players[ev.Player.ID]; !ok {
			b.add(ev.Player)
			return
		}
		p := b.players[ev.Player.ID]
		p.Team = ev.Player.Team
		b.players[p.ID] = p
	case events.TypePlayerDisconnect:
		delete(b.players, ev.Player.ID)
	case events.TypeMatchStart:
		b.ended = false
	case events.TypeGameOver:
		b.ended = true
	}
}

func (b *RosterBuilder) add(p match.Presence) {
	b.order = append(b.order, p.ID)
	b.players[p.ID] = p
}

func (b *RosterBuilder) Roster() Roster {
	roster := Roster{Ended: b.ended}
	seen := make(map[match.PlayerID]bool, len(b.players))
	for _, id := range b.order {
		p, ok := b.players[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		roster.Players = append(roster.Players, p)
	}
	return roster
}

// catchup replays a log from the start and returns the roster plus a follower
// positioned after the last complete line.
func catchup(path string, p *parser.LogParser) (Roster, *tail.Follower, error) {
	builder := NewRosterBuilder()
	follower := tail.NewFollower(path, 0)
	_, err := follower.ReadLines(func(line string) {
		if ev, ok := p.Parse(line); ok {
			builder.Apply(ev)
		}
	})
	return builder.Roster(), follower, err
}
