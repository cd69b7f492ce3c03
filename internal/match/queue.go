package match

import (
	"fmt"
	"log/slog"
	"sync"
)

// Action is a deferred effect executed on the simulation goroutine.
type Action func() error

// ActionQueue is a multi-producer, single-consumer FIFO of deferred actions.
// Producers never block; the consumer drains everything queued so far once per tick.
type ActionQueue struct {
	mu      sync.Mutex
	pending []Action
	logger  *slog.Logger
}

func NewActionQueue(logger *slog.Logger) *ActionQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActionQueue{
		logger: logger,
	}
}

// Enqueue appends an action. Safe from any goroutine.
func (q *ActionQueue) Enqueue(a Action) {
	if a == nil {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, a)
	q.mu.Unlock()
}

// DrainAndRun runs every action queued before the call, in order, and returns how
// many ran. A failing or panicking action is logged and the drain continues.
// Actions enqueued while draining are left for the next call.
func (q *ActionQueue) DrainAndRun() int {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	for i, action := range batch {
		if err := runAction(action); err != nil {
			q.logger.Error("Deferred action failed", "index", i, "batch", len(batch), "error", err)
		}
	}

	return len(batch)
}

// Clear discards all pending actions; none of them will run.
func (q *ActionQueue) Clear() {
	q.mu.Lock()
	q.pending = nil
	q.mu.Unlock()
}

func (q *ActionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func runAction(action Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panicked: %v", r)
		}
	}()
	return action()
}
