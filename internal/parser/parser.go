// Package parser turns CS2 server log lines into events.
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"sunday-scrims/internal/events"
	"sunday-scrims/internal/match"
)

// steamID64Base is the SteamID64 of account id 0 in the public universe
const steamID64Base = 76561197960265728

// LogParser parses CS2 log lines
type LogParser struct {
	patterns *logPatterns
	location *time.Location
}

// logPatterns contains compiled regex patterns for log parsing
type logPatterns struct {
	Line             *regexp.Regexp
	PlayerConnect    *regexp.Regexp
	PlayerEntered    *regexp.Regexp
	PlayerSwitchTeam *regexp.Regexp
	PlayerDisconnect *regexp.Regexp
	Chat             *regexp.Regexp
	MatchStart       *regexp.Regexp
	TeamScored       *regexp.Regexp
	GameOver         *regexp.Regexp
}

// player section: "Name<userid><steamid><team>"
const playerSection = `"(.*?)<(\d+)><([^>]*)><([^>]*)>"`

func newLogPatterns() *logPatterns {
	return &logPatterns{
		// L 10/18/2026 - 20:15:03: <body>
		Line: regexp.MustCompile(`^L (\d{2}/\d{2}/\d{4} - \d{2}:\d{2}:\d{2})(?:\.\d+)?: (.*)$`),

		PlayerConnect:    regexp.MustCompile(`^` + playerSection + ` connected, address`),
		PlayerEntered:    regexp.MustCompile(`^` + playerSection + ` entered the game$`),
		PlayerSwitchTeam: regexp.MustCompile(`^"(.*?)<(\d+)><([^>]*)>" switched from team <([^>]*)> to <([^>]*)>$`),
		PlayerDisconnect: regexp.MustCompile(`^` + playerSection + ` disconnected`),
		Chat:             regexp.MustCompile(`^` + playerSection + ` (say|say_team) "(.*)"$`),

		MatchStart: regexp.MustCompile(`^World triggered "Match_Start" on "([^"]+)"`),
		TeamScored: regexp.MustCompile(`^Team "([^"]+)" scored "(\d+)" with "(\d+)" players$`),
		GameOver:   regexp.MustCompile(`^Game Over: \S+ \S+ (\S+) score (\d+):(\d+)`),
	}
}

type presencePattern struct {
	kind events.Kind
	re   *regexp.Regexp
}

func (lp *logPatterns) presenceEvents() [3]presencePattern {
	return [3]presencePattern{
		{events.TypePlayerConnect, lp.PlayerConnect},
		{events.TypePlayerEntered, lp.PlayerEntered},
		{events.TypePlayerDisconnect, lp.PlayerDisconnect},
	}
}

// NewLogParser creates a parser. Log timestamps are interpreted in loc (time.Local if nil).
func NewLogParser(loc *time.Location) *LogParser {
	if loc == nil {
		loc = time.Local
	}
	return &LogParser{patterns: newLogPatterns(), location: loc}
}

// Parse returns the event for a recognised line. Lines about bots and lines that
// are not player or match events return false.
func (p *LogParser) Parse(line string) (events.Event, bool) {
	line = strings.TrimRight(line, "\r\n")
	m := p.patterns.Line.FindStringSubmatch(line)
	if m == nil {
		return events.Event{}, false
	}

	timestamp, err := time.ParseInLocation("01/02/2006 - 15:04:05", m[1], p.location)
	if err != nil {
		return events.Event{}, false
	}

	ev, ok := p.parseBody(m[2])
	if !ok {
		return events.Event{}, false
	}
	ev.Time = timestamp
	return ev, true
}

func (p *LogParser) parseBody(body string) (events.Event, bool) {
	// Try chat first: a message body may itself contain text that looks like another event
	if m := p.patterns.Chat.FindStringSubmatch(body); m != nil {
		player, ok := presence(m[1], m[3], m[4])
		if !ok {
			return events.Event{}, false
		}
		return events.Event{
			Kind:     events.TypeChat,
			Player:   player,
			TeamChat: m[5] == "say_team",
			Message:  m[6],
		}, true
	}

	if m := p.patterns.PlayerSwitchTeam.FindStringSubmatch(body); m != nil {
		player, ok := presence(m[1], m[3], m[5])
		if !ok {
			return events.Event{}, false
		}
		return events.Event{
			Kind:     events.TypePlayerSwitchTeam,
			Player:   player,
			FromTeam: ParseTeam(m[4]),
		}, true
	}

	for _, pp := range p.patterns.presenceEvents() {
		if m := pp.re.FindStringSubmatch(body); m != nil {
			player, ok := presence(m[1], m[3], m[4])
			if !ok {
				return events.Event{}, false
			}
			return events.Event{Kind: pp.kind, Player: player}, true
		}
	}

	if m := p.patterns.TeamScored.FindStringSubmatch(body); m != nil {
		team := ParseTeam(m[1])
		if !team.Playing() {
			return events.Event{}, false
		}
		score, _ := strconv.Atoi(m[2])
		return events.Event{Kind: events.TypeTeamScored, Team: team, Score: score}, true
	}

	if m := p.patterns.GameOver.FindStringSubmatch(body); m != nil {
		ct, _ := strconv.Atoi(m[2])
		t, _ := strconv.Atoi(m[3])
		return events.Event{Kind: events.TypeGameOver, Map: m[1], CTScore: ct, TScore: t}, true
	}

	if m := p.patterns.MatchStart.FindStringSubmatch(body); m != nil {
		return events.Event{Kind: events.TypeMatchStart, Map: m[1]}, true
	}

	return events.Event{}, false
}

func presence(name, steamID, team string) (match.Presence, bool) {
	id, err := ParseSteamID(steamID)
	if err != nil {
		return match.Presence{}, false
	}
	return match.Presence{ID: id, Name: name, Team: ParseTeam(team)}, true
}

// ParseTeam maps a log team name to a match.Team
func ParseTeam(name string) match.Team {
	switch strings.ToUpper(name) {
	case "CT":
		return match.TeamCounterTerrorist
	case "TERRORIST", "T":
		return match.TeamTerrorist
	}
	return match.TeamNone
}

// ParseSteamID converts a log steam id ([U:1:N], STEAM_X:Y:Z or a SteamID64) to a SteamID64.
// Bots and unauthenticated players are rejected.
func ParseSteamID(s string) (match.PlayerID, error) {
	switch {
	case strings.HasPrefix(s, "[U:1:") && strings.HasSuffix(s, "]"):
		account, err := strconv.ParseUint(s[len("[U:1:"):len(s)-1], 10, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid steam id %q: %w", s, err)
		}
		return match.PlayerID(steamID64Base + account), nil

	case strings.HasPrefix(s, "STEAM_"):
		parts := strings.Split(s[len("STEAM_"):], ":")
		if len(parts) != 3 {
			return 0, fmt.Errorf("invalid steam id %q", s)
		}
		y, err := strconv.ParseUint(parts[1], 10, 1)
		if err != nil {
			return 0, fmt.Errorf("invalid steam id %q: %w", s, err)
		}
		z, err := strconv.ParseUint(parts[2], 10, 31)
		if err != nil {
			return 0, fmt.Errorf("invalid steam id %q: %w", s, err)
		}
		return match.PlayerID(steamID64Base + z*2 + y), nil

	case len(s) == 17 && strings.HasPrefix(s, "7656"):
		return match.ParsePlayerID(s)
	}
	return 0, fmt.Errorf("not a player steam id: %q", s)
}
