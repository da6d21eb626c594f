package store

import (
	"context"
	"slices"
	"sync"

	"github.com/ezBadminton/tourneyflow/core"
)

// MemoryStore implements core.Store using in-memory storage.
// Snapshots are copied on the way in and out.
type MemoryStore struct {
	mu          sync.RWMutex
	tournaments map[string]*core.Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tournaments: make(map[string]*core.Snapshot),
	}
}

// Stores a tournament, replacing an existing one with the same id
func (r *MemoryStore) Save(ctx context.Context, snapshot *core.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tournaments[snapshot.TournamentID] = snapshot.Clone()
	return nil
}

func (r *MemoryStore) LoadSnapshot(ctx context.Context, tournamentID string) (*core.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.tournaments[tournamentID]
	if !ok {
		return nil, core.ErrTournamentNotFound
	}
	return s.Clone(), nil
}

func (r *MemoryStore) UpdateMatchTeams(ctx context.Context, tournamentID string, patch core.MatchPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.tournaments[tournamentID]
	if !ok {
		return core.ErrTournamentNotFound
	}
	if m := s.Match(patch.MatchID); m != nil {
		patch.ApplyTo(m)
	}
	return nil
}

func (r *MemoryStore) UpdateTeamGroup(ctx context.Context, tournamentID string, patch core.TeamGroupPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.tournaments[tournamentID]
	if !ok {
		return core.ErrTournamentNotFound
	}
	if t := s.Team(patch.TeamID); t != nil && t.Group == "" {
		t.Group = patch.Group
	}
	return nil
}

func (r *MemoryStore) TransitionPhase(ctx context.Context, tournamentID string, transition core.PhaseTransition) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.tournaments[tournamentID]
	if !ok {
		return false, core.ErrTournamentNotFound
	}

	expected := map[string]core.PhaseStatus{}
	if transition.FinishedPhaseID != "" {
		expected[transition.FinishedPhaseID] = core.PhaseActive
	}
	if transition.ActivatedPhaseID != "" {
		expected[transition.ActivatedPhaseID] = core.PhasePending
	}
	for id, status := range expected {
		i := slices.IndexFunc(s.Phases, func(p *core.Phase) bool { return p.ID == id })
		if i < 0 || s.Phases[i].Status != status {
			return false, nil
		}
	}

	transition.ApplyTo(s.Phases)
	return true, nil
}

func (r *MemoryStore) WriteSeeds(ctx context.Context, tournamentID string, seeds []core.SeedAssignment, drawsUsed int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.tournaments[tournamentID]
	if !ok {
		return core.ErrTournamentNotFound
	}
	for _, seed := range seeds {
		if t := s.Team(seed.TeamID); t != nil {
			t.Seed = seed.Rank
		}
	}
	s.RandomDrawsUsed = drawsUsed
	return nil
}

func (r *MemoryStore) ActiveTournaments(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.tournaments))
	for id, s := range r.tournaments {
		if core.ActivePhase(s.Phases) != nil {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}
