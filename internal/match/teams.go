package match

import (
	"maps"
	"sync"
)

// TeamRegistry maps players to their assigned side for the current match.
// Bulk replacement is atomic for readers.
type TeamRegistry struct {
	mu          sync.RWMutex
	assignments map[PlayerID]Team
}

func NewTeamRegistry() *TeamRegistry {
	return &TeamRegistry{
		assignments: make(map[PlayerID]Team),
	}
}

func (r *TeamRegistry) Get(id PlayerID) (Team, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.assignments[id]
	return t, ok
}

func (r *TeamRegistry) Set(id PlayerID, team Team) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assignments[id] = team
}

// SetAll replaces every assignment with a copy of mapping.
func (r *TeamRegistry) SetAll(mapping map[PlayerID]Team) {
	next := maps.Clone(mapping)
	if next == nil {
		next = make(map[PlayerID]Team)
	}

	r.mu.Lock()
	r.assignments = next
	r.mu.Unlock()
}

func (r *TeamRegistry) Clear() {
	r.SetAll(nil)
}

// Snapshot returns a copy of the current assignments.
func (r *TeamRegistry) Snapshot() map[PlayerID]Team {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.assignments)
}

func (r *TeamRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.assignments)
}
