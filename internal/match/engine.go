package match

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"
)

// Engine owns the live match state: ratings, team assignments and the Idle/Live
// lifecycle. Its methods may be called from any goroutine except Tick and Run,
// which belong to the single simulation goroutine that applies game effects.
//
// Store calls happen on background goroutines only. Anything that touches the
// game server is queued and runs on the next Tick.
type Engine struct {
	ratings *RatingCache
	teams   *TeamRegistry
	queue   *ActionQueue
	store   RatingStore
	effects Effects
	logger  *slog.Logger

	recorderMu sync.RWMutex
	recorder   MatchRecorder

	state atomic.Int32

	// mu serializes lifecycle transitions and guards present.
	mu      sync.Mutex
	present map[PlayerID]bool

	tasks conc.WaitGroup
}

// NewEngine creates an idle engine.
func NewEngine(store RatingStore, effects Effects, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		ratings: NewRatingCache(),
		teams:   NewTeamRegistry(),
		queue:   NewActionQueue(logger.With("component", "ACTION_QUEUE")),
		store:   store,
		effects: effects,
		logger:  logger,
		present: make(map[PlayerID]bool),
	}
}

// SetRecorder sets where decisive match results are persisted. Optional.
func (e *Engine) SetRecorder(r MatchRecorder) {
	e.recorderMu.Lock()
	defer e.recorderMu.Unlock()
	e.recorder = r
}

func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) setState(s State) {
	if old := State(e.state.Swap(int32(s))); old != s {
		e.logger.Info("Match state changed", "from", old.String(), "to", s.String())
	}
}

// Rating returns the cached rating for a player.
func (e *Engine) Rating(id PlayerID) Rating {
	return e.ratings.Get(id)
}

// Assignments returns a copy of the current team assignments.
func (e *Engine) Assignments() map[PlayerID]Team {
	return e.teams.Snapshot()
}

// Pending returns the number of queued actions waiting for the next tick.
func (e *Engine) Pending() int {
	return e.queue.Len()
}

// Balance splits the given players into two teams and starts a live match.
// Duplicate ids are ignored. Fewer than two players fails with ErrInsufficientPlayers
// and leaves all state untouched.
func (e *Engine) Balance(players []PlayerID) (BalanceResult, error) {
	eligible := uniquePlayers(players)
	if len(eligible) < MinBalancePlayers {
		e.logger.Info("Too few players to balance", "players", len(eligible))
		return BalanceResult{}, fmt.Errorf("%w: have %d, need %d", ErrInsufficientPlayers, len(eligible), MinBalancePlayers)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	teamA, teamB := Balance(eligible, e.ratings)

	mapping := make(map[PlayerID]Team, len(eligible))
	for _, id := range teamA {
		mapping[id] = TeamCounterTerrorist
	}
	for _, id := range teamB {
		mapping[id] = TeamTerrorist
	}

	e.teams.SetAll(mapping)
	for _, id := range eligible {
		e.present[id] = true
	}
	e.setState(StateLive)

	result := BalanceResult{
		CounterTerrorists: teamA,
		Terrorists:        teamB,
		CTAverage:         AverageRating(teamA, e.ratings),
		TAverage:          AverageRating(teamB, e.ratings),
	}

	for _, id := range teamA {
		e.enqueueSwitch(id, TeamCounterTerrorist)
	}
	for _, id := range teamB {
		e.enqueueSwitch(id, TeamTerrorist)
	}
	e.queue.Enqueue(e.effects.RestartMatch)
	e.Announce(fmt.Sprintf("Teams balanced: CT avg %.0f vs T avg %.0f", result.CTAverage, result.TAverage))

	e.logger.Info("Balanced players",
		"players", len(eligible),
		"ct", len(teamA),
		"t", len(teamB),
		"ctAvg", result.CTAverage,
		"tAvg", result.TAverage)

	return result, nil
}

// Reset drops all assignments and pending actions and returns to Idle.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.teams.Clear()
	e.queue.Clear()
	e.setState(StateIdle)
	e.logger.Info("Match reset")
}

// MatchEnd closes a live match. A decisive score moves ratings from the losing
// roster to the winning one; a tie changes nothing. Players who are no longer
// connected are left out of both rosters. Returns nil when no ratings moved.
func (e *Engine) MatchEnd(ctScore, tScore int) *MatchResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.State() != StateLive {
		e.logger.Debug("Match ended while idle, ignoring", "ct", ctScore, "t", tScore)
		return nil
	}

	snapshot := e.teams.Snapshot()
	e.teams.Clear()
	e.setState(StateIdle)

	if ctScore == tScore {
		e.logger.Info("Match ended in a draw, ratings unchanged", "ct", ctScore, "t", tScore)
		e.Announce(fmt.Sprintf("Match drawn %d-%d, ratings unchanged", ctScore, tScore))
		return nil
	}

	winner := TeamTerrorist
	if ctScore > tScore {
		winner = TeamCounterTerrorist
	}

	var winners, losers []PlayerID
	for id, team := range snapshot {
		if !e.present[id] {
			e.logger.Debug("Skipping disconnected player", "player", id)
			continue
		}
		switch team {
		case winner:
			winners = append(winners, id)
		case winner.Opponent():
			losers = append(losers, id)
		}
	}
	slices.Sort(winners)
	slices.Sort(losers)

	result := e.applyElo(winners, losers)
	result.Winner = winner
	result.CTScore = ctScore
	result.TScore = tScore

	e.Announce(fmt.Sprintf("%s won %d-%d. Winners +%d, losers -%d", winner, max(ctScore, tScore), min(ctScore, tScore), result.Delta, result.Delta))
	e.record(result)

	e.logger.Info("Match ended",
		"winner", winner.String(),
		"ct", ctScore,
		"t", tScore,
		"delta", result.Delta,
		"winners", len(winners),
		"losers", len(losers))

	return &result
}

// applyElo adjusts cached ratings immediately and persists each player's change
// in the background.
func (e *Engine) applyElo(winners, losers []PlayerID) MatchResult {
	winnerAvg := AverageRating(winners, e.ratings)
	loserAvg := AverageRating(losers, e.ratings)
	delta := RatingDelta(winnerAvg, loserAvg)

	for _, id := range winners {
		e.ratings.Adjust(id, delta)
		e.persistRating(id, delta, true)
	}
	for _, id := range losers {
		e.ratings.Adjust(id, -delta)
		e.persistRating(id, -delta, false)
	}

	return MatchResult{
		Delta:     delta,
		WinnerAvg: winnerAvg,
		LoserAvg:  loserAvg,
		Winners:   winners,
		Losers:    losers,
	}
}

// persistRating writes one player's change. Failures are logged and not retried;
// the cached rating keeps the change either way.
func (e *Engine) persistRating(id PlayerID, delta int, isWin bool) {
	e.tasks.Go(func() {
		if err := e.store.UpsertRating(context.Background(), id, delta, isWin); err != nil {
			e.logger.Warn("Failed to persist rating update", "player", id, "delta", delta, "win", isWin, "error", err)
		}
	})
}

func (e *Engine) record(result MatchResult) {
	e.recorderMu.RLock()
	recorder := e.recorder
	e.recorderMu.RUnlock()

	if recorder == nil {
		return
	}

	e.tasks.Go(func() {
		if err := recorder.RecordMatch(context.Background(), result); err != nil {
			e.logger.Warn("Failed to record match", "winner", result.Winner.String(), "error", err)
		}
	})
}

// Restore rebuilds state after a restart from the players currently on the server.
// Anyone already on a playing side keeps it and the match is Live if there is at
// least one such player.
func (e *Engine) Restore(roster []Presence) {
	e.mu.Lock()
	mapping := make(map[PlayerID]Team)
	e.present = make(map[PlayerID]bool, len(roster))
	for _, p := range roster {
		e.present[p.ID] = true
		if p.Team.Playing() {
			mapping[p.ID] = p.Team
		}
	}
	e.teams.SetAll(mapping)
	if len(mapping) > 0 {
		e.setState(StateLive)
	} else {
		e.setState(StateIdle)
	}
	e.mu.Unlock()

	e.logger.Info("Restored match state", "players", len(roster), "assigned", len(mapping), "state", e.State().String())

	for _, p := range roster {
		e.seedRating(p.ID, nil)
	}
}

// PlayerJoined records a connecting player, loads their rating in the background
// and, during a live match, puts them on a team.
func (e *Engine) PlayerJoined(p Presence) (Team, bool) {
	e.mu.Lock()
	e.present[p.ID] = true
	e.mu.Unlock()

	e.seedRating(p.ID, func(r Rating) {
		e.Tell(p.ID, fmt.Sprintf("Welcome %s, your rating is %d", p.Name, r))
	})

	return e.LateJoin(p.ID)
}

// PlayerLeft marks a player as gone. Their assignment is kept so a reconnect
// puts them back on the same side.
func (e *Engine) PlayerLeft(id PlayerID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.present, id)
}

// LateJoin assigns a player joining a live match. A player who already has an
// assignment is sent back to it; anyone else goes to the weaker team.
// Returns false while idle.
func (e *Engine) LateJoin(id PlayerID) (Team, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.State() != StateLive {
		return TeamNone, false
	}

	team, ok := e.teams.Get(id)
	if !ok {
		team = e.WeakerTeam()
		e.teams.Set(id, team)
		e.logger.Info("Assigned late joiner", "player", id, "team", team.String())
	} else {
		e.logger.Info("Restored assignment", "player", id, "team", team.String())
	}

	e.enqueueSwitch(id, team)
	return team, true
}

// SwapSides moves every assignment to the opposite side. The game swaps the two
// rosters at halftime; without this, scores and late joins would use the old labels.
// Returns false while idle.
func (e *Engine) SwapSides() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.State() != StateLive {
		return false
	}

	snapshot := e.teams.Snapshot()
	swapped := make(map[PlayerID]Team, len(snapshot))
	for id, team := range snapshot {
		swapped[id] = team.Opponent()
	}
	e.teams.SetAll(swapped)

	e.logger.Info("Swapped sides", "players", len(swapped))
	return true
}

// WeakerTeam returns the side with the lower average cached rating. An empty side
// averages 0. Ties go to the terrorists.
func (e *Engine) WeakerTeam() Team {
	var sumT, sumCT float64
	var countT, countCT int

	for id, team := range e.teams.Snapshot() {
		r := float64(e.ratings.Get(id))
		switch team {
		case TeamTerrorist:
			sumT += r
			countT++
		case TeamCounterTerrorist:
			sumCT += r
			countCT++
		}
	}

	var avgT, avgCT float64
	if countT > 0 {
		avgT = sumT / float64(countT)
	}
	if countCT > 0 {
		avgCT = sumCT / float64(countCT)
	}

	if avgCT < avgT {
		return TeamCounterTerrorist
	}
	return TeamTerrorist
}

// seedRating loads a rating from the store into the cache in the background.
// A failed read seeds DefaultRating. A non-nil then receives the cached rating.
func (e *Engine) seedRating(id PlayerID, then func(Rating)) {
	e.tasks.Go(func() {
		rating, err := e.store.FetchRating(context.Background(), id)
		if err != nil {
			e.logger.Warn("Failed to fetch rating, using default", "player", id, "error", err)
			rating = DefaultRating
		}
		e.ratings.Seed(id, rating)

		if then != nil {
			then(e.ratings.Get(id))
		}
	})
}

func (e *Engine) enqueueSwitch(id PlayerID, team Team) {
	e.queue.Enqueue(func() error {
		return e.effects.SwitchTeam(id, team)
	})
}

// Tell queues a private message to one player.
func (e *Engine) Tell(id PlayerID, text string) {
	e.queue.Enqueue(func() error {
		return e.effects.Tell(id, text)
	})
}

// Announce queues a message to everyone on the server.
func (e *Engine) Announce(text string) {
	e.queue.Enqueue(func() error {
		return e.effects.Broadcast(text)
	})
}

// Tick applies every queued action. Call only from the simulation goroutine.
func (e *Engine) Tick() int {
	return e.queue.DrainAndRun()
}

// Run is the simulation goroutine: it ticks every interval until ctx is done,
// then drains once more.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info("Simulation loop started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			e.Tick()
			e.logger.Info("Simulation loop stopped")
			return
		case <-ticker.C:
			e.Tick()
		}
	}
}

// Wait blocks until all background store work has finished.
func (e *Engine) Wait() {
	if r := e.tasks.WaitAndRecover(); r != nil {
		e.logger.Error("Background task panicked", "panic", r.Value)
	}
}

func uniquePlayers(players []PlayerID) []PlayerID {
	seen := make(map[PlayerID]bool, len(players))
	out := make([]PlayerID, 0, len(players))
	for _, id := range players {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
