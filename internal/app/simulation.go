package app

import (
	"context"
	"time"

	"sunday-scrims/internal/handlers"
	"sunday-scrims/internal/match"
)

// simulation runs Engine.Run on its own goroutine
type simulation struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func startSimulation(engine *match.Engine, interval time.Duration) *simulation {
	ctx, cancel := context.WithCancel(context.Background())
	sim := &simulation{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(sim.done)
		engine.Run(ctx, interval)
	}()
	return sim
}

// stop cancels the loop and waits for its final drain
func (s *simulation) stop() {
	s.cancel()
	<-s.done
}

// drainPipeline waits for background store work, whose results queue game
// effects, and then stops the loop so its final drain applies them. Callers
// close the RCON connection only after this returns.
func drainPipeline(dispatcher *handlers.Dispatcher, engine *match.Engine, sim *simulation) {
	if dispatcher != nil {
		dispatcher.Wait()
	}
	if engine != nil {
		engine.Wait()
	}
	if sim != nil {
		sim.stop()
	}
}
