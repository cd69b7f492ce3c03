package jobs

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// PresenceReconciler drops players the server no longer reports
type PresenceReconciler interface {
	ReconcilePresence(connected []string) int
}

// RosterDebouncer re-checks who is on the server after team switches and
// disconnects. Bursts of events within the debounce window (a halftime swap, a
// map change) result in a single RCON status query. If events keep arriving the
// check is forced after maxWait.
type RosterDebouncer struct {
	rcon           Commander
	target         PresenceReconciler
	logger         *slog.Logger
	debounceWindow time.Duration
	maxWait        time.Duration

	mu             sync.Mutex
	timer          *time.Timer
	firstTriggerAt time.Time
	stopped        bool
	running        sync.WaitGroup
}

// NewRosterDebouncer creates a debouncer. maxWait should be a few times debounceWindow.
func NewRosterDebouncer(rcon Commander, target PresenceReconciler, debounceWindow, maxWait time.Duration, logger *slog.Logger) *RosterDebouncer {
	return &RosterDebouncer{
		rcon:           rcon,
		target:         target,
		logger:         logger,
		debounceWindow: debounceWindow,
		maxWait:        maxWait,
	}
}

// Trigger signals that the roster may have changed
func (d *RosterDebouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	now := time.Now()
	if d.firstTriggerAt.IsZero() {
		d.firstTriggerAt = now
	}
	sinceFirst := now.Sub(d.firstTriggerAt)

	if d.timer != nil && d.timer.Stop() {
		d.running.Done()
	}
	d.timer = nil

	if sinceFirst >= d.maxWait {
		d.logger.Debug("Max wait exceeded, forcing roster check", "sinceFirst", sinceFirst)
		d.firstTriggerAt = time.Time{}
		d.running.Add(1)
		go func() {
			defer d.running.Done()
			d.reconcile()
		}()
		return
	}

	d.running.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(d.debounceWindow, func() {
		defer d.running.Done()

		d.mu.Lock()
		if d.timer != timer {
			// replaced or stopped before firing
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.firstTriggerAt = time.Time{}
		d.mu.Unlock()

		d.reconcile()
	})
	d.timer = timer
}

func (d *RosterDebouncer) reconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	response, err := d.rcon.Execute(ctx, "status")
	if err != nil {
		d.logger.Warn("Roster check failed", "error", err)
		return
	}

	names, ok := parseStatusPlayers(response)
	if !ok {
		d.logger.Warn("Unrecognised status response, skipping roster check")
		return
	}

	dropped := d.target.ReconcilePresence(names)
	d.logger.Debug("Roster check complete", "connected", len(names), "dropped", dropped)
}

// Stop cancels a pending check and waits for a running one to finish
func (d *RosterDebouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	if d.timer != nil && d.timer.Stop() {
		d.running.Done()
	}
	d.timer = nil
	d.mu.Unlock()

	d.running.Wait()
}

// parseStatusPlayers returns the player names from a CS2 status response.
// ok is false when the response has no player table.
//
//	---------players--------
//	  id     time ping loss      state   rate adr name
//	65535 [NoChan]    0    0 challenging      0unknown ''
//	    2    06:51   19    0     active 786432 10.0.0.5:27005 'Alice'
//	#end
func parseStatusPlayers(response string) ([]string, bool) {
	names := []string{}
	inTable := false

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if !inTable {
			inTable = strings.Contains(line, "---------players--------")
			continue
		}
		if line == "#end" {
			break
		}
		if line == "" || strings.HasPrefix(line, "id ") || strings.HasPrefix(line, "65535 ") {
			continue
		}

		first := strings.IndexByte(line, '\'')
		last := strings.LastIndexByte(line, '\'')
		if first < 0 || last <= first {
			continue
		}
		names = append(names, line[first+1:last])
	}

	return names, inTable
}
