// Package events holds the game events read from the server log.
package events

import (
	"time"

	"sunday-scrims/internal/match"
)

// Kind identifies a game event
type Kind string

const (
	// Player events
	TypePlayerConnect    Kind = "player_connect"
	TypePlayerEntered    Kind = "player_entered"
	TypePlayerSwitchTeam Kind = "player_switch_team"
	TypePlayerDisconnect Kind = "player_disconnect"

	// Chat events
	TypeChat Kind = "chat"

	// Match events
	TypeMatchStart Kind = "match_start"
	TypeTeamScored Kind = "team_scored"
	TypeGameOver   Kind = "game_over"
)

// Event is one parsed log line. Only the fields relevant to Kind are set.
type Event struct {
	Kind Kind
	Time time.Time

	// Player is set for player and chat events. Player.Team is the side the
	// player is on after the event.
	Player   match.Presence
	FromTeam match.Team

	Message  string
	TeamChat bool

	// Team and Score are set for TypeTeamScored.
	Team  match.Team
	Score int

	// CTScore and TScore are set for TypeGameOver.
	Map     string
	CTScore int
	TScore  int
}
