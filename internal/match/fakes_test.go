package match

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type effectCall struct {
	Kind   string
	Player PlayerID
	Team   Team
	Text   string
}

// recordingEffects records every effect in call order.
type recordingEffects struct {
	mu    sync.Mutex
	calls []effectCall
}

func (f *recordingEffects) add(c effectCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *recordingEffects) SwitchTeam(id PlayerID, team Team) error {
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

func (f *recordingEffects) Tell(id PlayerID, text string) error {
	f.add(effectCall{Kind: "tell", Player: id, Text: text})
	return nil
}

func (f *recordingEffects) Calls() []effectCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]effectCall(nil), f.calls...)
}

func (f *recordingEffects) switches() map[PlayerID]Team {
	out := make(map[PlayerID]Team)
	for _, c := range f.Calls() {
		if c.Kind == "switch" {
			out[c.Player] = c.Team
		}
	}
	return out
}

type upsert struct {
	Delta int
	Win   bool
}

// memoryStore is an in-memory RatingStore that can be told to fail.
type memoryStore struct {
	mu       sync.Mutex
	ratings  map[PlayerID]Rating
	upserts  map[PlayerID][]upsert
	failRead bool
	failAll  bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		ratings: make(map[PlayerID]Rating),
		upserts: make(map[PlayerID][]upsert),
	}
}

func (s *memoryStore) FetchRating(ctx context.Context, id PlayerID) (Rating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failRead || s.failAll {
		return 0, fmt.Errorf("%w: connection refused", ErrStoreUnavailable)
	}
	if r, ok := s.ratings[id]; ok {
		return r, nil
	}
	return DefaultRating, nil
}

func (s *memoryStore) UpsertRating(ctx context.Context, id PlayerID, delta int, isWin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failAll {
		return fmt.Errorf("%w: connection refused", ErrStoreUnavailable)
	}
	r, ok := s.ratings[id]
	if !ok {
		r = DefaultRating
	}
	s.ratings[id] = r + Rating(delta)
	s.upserts[id] = append(s.upserts[id], upsert{Delta: delta, Win: isWin})
	return nil
}

func (s *memoryStore) upsertsFor(id PlayerID) []upsert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]upsert(nil), s.upserts[id]...)
}

type recordingRecorder struct {
	mu      sync.Mutex
	results []MatchResult
}

func (r *recordingRecorder) RecordMatch(ctx context.Context, result MatchResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
	return nil
}
