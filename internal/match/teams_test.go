package match

import (
	"sync"
	"testing"
)

func TestTeamRegistryBasics(t *testing.T) {
	r := NewTeamRegistry()

	if _, ok := r.Get(1); ok {
		t.Error("Get() on empty registry should report no assignment")
	}

	r.Set(1, TeamTerrorist)
	if team, ok := r.Get(1); !ok || team != TeamTerrorist {
		t.Errorf("Get() = %v, %v; want T, true", team, ok)
	}

	r.Set(1, TeamCounterTerrorist)
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}

	snap := r.Snapshot()
	snap[2] = TeamTerrorist
	if _, ok := r.Get(2); ok {
		t.Error("mutating a snapshot must not affect the registry")
	}

	r.Clear()
	if len(r.Snapshot()) != 0 {
		t.Errorf("Snapshot() after Clear has %d entries, want 0", len(r.Snapshot()))
	}
}

func TestTeamRegistrySetAllIsAllOrNothing(t *testing.T) {
	r := NewTeamRegistry()

	oldMapping := map[PlayerID]Team{}
	newMapping := map[PlayerID]Team{}
	for i := PlayerID(1); i <= 20; i++ {
		oldMapping[i] = TeamTerrorist
		newMapping[i] = TeamCounterTerrorist
	}
	r.SetAll(oldMapping)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	mixed := make(chan bool, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			snap := r.Snapshot()
			var nT, nCT int
			for _, team := range snap {
				if team == TeamTerrorist {
					nT++
				} else {
					nCT++
				}
			}
			if nT > 0 && nCT > 0 {
				select {
				case mixed <- true:
				default:
				}
			}
		}
	}()

	for i := 0; i < 200; i++ {
		if i%2 == 0 {
			r.SetAll(newMapping)
		} else {
			r.SetAll(oldMapping)
		}
	}
	close(stop)
	wg.Wait()

	select {
	case <-mixed:
		t.Error("reader observed a mix of old and new assignments")
	default:
	}

	newMapping[99] = TeamTerrorist
	r.SetAll(newMapping)
	delete(newMapping, 99)
	if _, ok := r.Get(99); !ok {
		t.Error("SetAll should copy the mapping it is given")
	}
}
