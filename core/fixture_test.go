package core

import "fmt"

// Builds tournament snapshots for the tests
type fixture struct {
	s *Snapshot
}

func newFixture() *fixture {
	return &fixture{s: &Snapshot{TournamentID: "t1", Config: DefaultConfig()}}
}

func (f *fixture) phase(id string, order int, status PhaseStatus) *fixture {
	f.s.Phases = append(f.s.Phases, &Phase{ID: id, Name: id, Order: order, Status: status})
	return f
}

func (f *fixture) team(id, group string) *Team {
	if t := f.s.Team(id); t != nil {
		return t
	}
	t := &Team{ID: id, Name: id, Group: group}
	f.s.Teams = append(f.s.Teams, t)
	return t
}

// Adds a group and its teams
func (f *fixture) group(id, name, phaseID string, teamIDs ...string) *fixture {
	f.s.Groups = append(f.s.Groups, &Group{ID: id, Name: name, PhaseID: phaseID, TeamIDs: teamIDs})
	for _, t := range teamIDs {
		f.team(t, name)
	}
	return f
}

// Adds a finished match. The runs are given as pairs per set.
func (f *fixture) played(id, phaseID, local, visitor string, runs ...int) *Match {
	m := &Match{ID: id, PhaseID: phaseID, Status: MatchLive, LocalTeamID: local, VisitorTeamID: visitor}
	sets := f.sets(id, SetFinished, runs...)
	if err := m.Finish(sets); err != nil {
		panic(fmt.Sprintf("invalid fixture match %s: %v", id, err))
	}
	f.s.Matches = append(f.s.Matches, m)
	return m
}

// Adds a match that gets its opponents from sources
func (f *fixture) pending(id, phaseID string, home, away *SourceRef) *Match {
	m := &Match{ID: id, PhaseID: phaseID, Status: MatchScheduled, SourceHome: home, SourceAway: away}
	f.s.Matches = append(f.s.Matches, m)
	return m
}

func (f *fixture) sets(matchID string, status SetStatus, runs ...int) []*Set {
	sets := make([]*Set, 0, len(runs)/2)
	for i := 0; i+1 < len(runs); i += 2 {
		set := &Set{
			ID:          fmt.Sprintf("%s-s%d", matchID, i/2+1),
			MatchID:     matchID,
			SetNumber:   i/2 + 1,
			Status:      status,
			LocalRuns:   runs[i],
			VisitorRuns: runs[i+1],
		}
		sets = append(sets, set)
		f.s.Sets = append(f.s.Sets, set)
	}
	return sets
}

// Finishes a match of the snapshot with the given runs
func (f *fixture) finish(id string, runs ...int) {
	m := f.s.Match(id)
	m.Status = MatchLive
	if err := m.Finish(f.sets(id, SetFinished, runs...)); err != nil {
		panic(fmt.Sprintf("invalid fixture result %s: %v", id, err))
	}
}

// A group stage with two groups of three and a knockout
// with semi-finals, a final and a match for third place
func knockoutFixture() *fixture {
	f := newFixture().
		phase("groups", 1, PhaseActive).
		phase("knockout", 2, PhasePending).
		group("ga", "A", "groups", "a1", "a2", "a3").
		group("gb", "B", "groups", "b1", "b2", "b3")

	f.pending("sf1", "knockout", GroupPosition("ga", 1), GroupPosition("gb", 2))
	f.pending("sf2", "knockout", GroupPosition("gb", 1), GroupPosition("ga", 2))
	f.pending("final", "knockout", WinnerOf("sf1"), WinnerOf("sf2"))
	f.pending("third", "knockout", LoserOf("sf1"), LoserOf("sf2"))

	return f
}

// Plays all group matches of knockoutFixture. The teams
// finish in the order of their names.
func (f *fixture) playGroups() *fixture {
	for _, g := range []string{"a", "b"} {
		f.played(g+"12", "groups", g+"1", g+"2", 5, 3)
		f.played(g+"13", "groups", g+"1", g+"3", 5, 1)
		f.played(g+"23", "groups", g+"2", g+"3", 4, 2)
	}
	return f
}
