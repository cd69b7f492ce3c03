package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"sunday-scrims/internal/config"
	"sunday-scrims/internal/match"
	"sunday-scrims/internal/ratingstore"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type effectCall struct {
	Kind   string
	Player match.PlayerID
	Team   match.Team
	Text   string
}

type recordingEffects struct {
	mu    sync.Mutex
	calls []effectCall
}

func (f *recordingEffects) add(c effectCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *recordingEffects) SwitchTeam(id match.PlayerID, team match.Team) error {
	f.add(effectCall{Kind: "switch", Player: id, Team: team})
	return nil
}

func (f *recordingEffects) Broadcast(text string) error {
	f.add(effectCall{Kind: "broadcast", Text: text})
	return nil
}

func (f *recordingEffects) RestartMatch() error {
	f.add(effectCall{Kind: "restart"})
	return nil
}

func (f *recordingEffects) Tell(id match.PlayerID, text string) error {
	f.add(effectCall{Kind: "tell", Player: id, Text: text})
	return nil
}

func (f *recordingEffects) find(kind, contains string) (effectCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c.Kind == kind && strings.Contains(c.Text, contains) {
			return c, true
		}
	}
	return effectCall{}, false
}

func (f *recordingEffects) count(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

// memoryStore serves both the engine and the ladder.
type memoryStore struct {
	mu       sync.Mutex
	ratings  map[match.PlayerID]match.Rating
	names    map[match.PlayerID]string
	ladder   []ratingstore.LadderEntry
	failTop  bool
	topLimit int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		ratings: make(map[match.PlayerID]match.Rating),
		names:   make(map[match.PlayerID]string),
	}
}

func (s *memoryStore) FetchRating(ctx context.Context, id match.PlayerID) (match.Rating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.ratings[id]; ok {
		return r, nil
	}
	return match.DefaultRating, nil
}

func (s *memoryStore) UpsertRating(ctx context.Context, id match.PlayerID, delta int, isWin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.ratings[id]
	if !ok {
		r = match.DefaultRating
	}
	s.ratings[id] = r + match.Rating(delta)
	return nil
}

func (s *memoryStore) RememberName(ctx context.Context, id match.PlayerID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[id] = name
	return nil
}

func (s *memoryStore) TopRatings(ctx context.Context, limit int) ([]ratingstore.LadderEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topLimit = limit
	if s.failTop {
		return nil, errors.New("database is locked")
	}
	if limit < len(s.ladder) {
		return s.ladder[:limit], nil
	}
	return s.ladder, nil
}

func (s *memoryStore) rating(id match.PlayerID) match.Rating {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ratings[id]
}

func (s *memoryStore) name(id match.PlayerID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.names[id]
}

type testRig struct {
	dispatcher *Dispatcher
	engine     *match.Engine
	store      *memoryStore
	effects    *recordingEffects
}

func newTestRig(t *testing.T, admins ...string) *testRig {
	t.Helper()
	store := newMemoryStore()
	effects := &recordingEffects{}
	engine := match.NewEngine(store, effects, discardLogger())
	cfg := &config.Config{Admins: admins}
	return &testRig{
		dispatcher: NewDispatcher(engine, store, cfg, discardLogger()),
		engine:     engine,
		store:      store,
		effects:    effects,
	}
}

// settle waits for background work and then runs every queued effect.
func (r *testRig) settle() {
	r.dispatcher.Wait()
	r.engine.Wait()
	r.engine.Tick()
}
