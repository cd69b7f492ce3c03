package match

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// DefaultRating is used for players with no stored record and whenever a store read fails.
const DefaultRating Rating = 1000

// MinBalancePlayers is the smallest roster Balance accepts.
const MinBalancePlayers = 2

var (
	// ErrInsufficientPlayers is returned by Balance when fewer than two eligible players are given.
	ErrInsufficientPlayers = errors.New("not enough players to balance")

	// ErrStoreUnavailable wraps every RatingStore failure.
	ErrStoreUnavailable = errors.New("rating store unavailable")
)

// PlayerID is a player's SteamID64.
type PlayerID uint64

func (id PlayerID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParsePlayerID parses a decimal SteamID64.
func ParsePlayerID(s string) (PlayerID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid player id %q: %w", s, err)
	}
	return PlayerID(v), nil
}

// Rating is an Elo-style skill score.
type Rating int

// Team values match the game's own team numbers.
type Team int

const (
	TeamNone             Team = 0
	TeamTerrorist        Team = 2
	TeamCounterTerrorist Team = 3
)

// Playing reports whether the team is one of the two playing sides.
func (t Team) Playing() bool {
	return t == TeamTerrorist || t == TeamCounterTerrorist
}

// Opponent returns the other playing side.
func (t Team) Opponent() Team {
	switch t {
	case TeamTerrorist:
		return TeamCounterTerrorist
	case TeamCounterTerrorist:
		return TeamTerrorist
	}
	return TeamNone
}

func (t Team) String() string {
	switch t {
	case TeamTerrorist:
		return "T"
	case TeamCounterTerrorist:
		return "CT"
	}
	return "NONE"
}

// State is the match lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateLive
)

func (s State) String() string {
	if s == StateLive {
		return "live"
	}
	return "idle"
}

// Presence describes a connected player as reported by the game server.
type Presence struct {
	ID   PlayerID
	Name string
	Team Team
}

// RatingStore is the durable rating backend. Calls may be slow or never return;
// the engine only issues them from background goroutines.
type RatingStore interface {
	// FetchRating returns DefaultRating when the player has no record.
	FetchRating(ctx context.Context, id PlayerID) (Rating, error)
	// UpsertRating inserts DefaultRating+delta for unknown players, otherwise adds delta,
	// and bumps the win or loss counter and the last played time.
	UpsertRating(ctx context.Context, id PlayerID, delta int, isWin bool) error
}

// Effects are requests to the game server. They are only invoked from the
// goroutine draining the ActionQueue.
type Effects interface {
	SwitchTeam(id PlayerID, team Team) error
	Broadcast(text string) error
	RestartMatch() error
	Tell(id PlayerID, text string) error
}

// MatchRecorder persists decisive match results.
type MatchRecorder interface {
	RecordMatch(ctx context.Context, result MatchResult) error
}

// MatchResult is the outcome of a decisive match end.
type MatchResult struct {
	Winner    Team
	CTScore   int
	TScore    int
	Delta     int
	WinnerAvg float64
	LoserAvg  float64
	Winners   []PlayerID
	Losers    []PlayerID
}

// BalanceResult is the assignment produced by Balance.
type BalanceResult struct {
	CounterTerrorists []PlayerID
	Terrorists        []PlayerID
	CTAverage         float64
	TAverage          float64
}
