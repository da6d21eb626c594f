package core

import "slices"

// The changed team ids of a match. Nil fields are unchanged,
// an empty string clears a previously resolved team.
type MatchPatch struct {
	MatchID       string  `json:"matchId"`
	LocalTeamID   *string `json:"localTeamId,omitempty"`
	VisitorTeamID *string `json:"visitorTeamId,omitempty"`
}

// Writes the changed team ids into the match. Finished matches
// are left untouched.
func (p MatchPatch) ApplyTo(m *Match) {
	if m.IsFinished() {
		return
	}
	if p.LocalTeamID != nil {
		m.LocalTeamID = *p.LocalTeamID
	}
	if p.VisitorTeamID != nil {
		m.VisitorTeamID = *p.VisitorTeamID
	}
}

// A group assignment for a team that had none
type TeamGroupPatch struct {
	TeamID string `json:"teamId"`
	Group  string `json:"group"`
}

// A match side whose source reference is malformed and
// was skipped by the resolver
type SkippedSource struct {
	MatchID string
	Side    Side
	Err     error
}

type ResolveResult struct {
	// One patch per match whose team ids changed
	Patches []MatchPatch
	// Number of matches updated, equal to len(Patches)
	Updated int

	GroupBackfills []TeamGroupPatch
	Skipped        []SkippedSource

	// Number of passes until the fixed point was reached
	Passes int

	Graph *ResolutionGraph
}

// Returns true when the result contains no writes
func (r *ResolveResult) Empty() bool {
	return len(r.Patches) == 0 && len(r.GroupBackfills) == 0
}

// Resolves the symbolic sources of all matches that are not finished.
//
// Every reference is resolved again on every call so corrections of
// upstream results propagate into the dependant matches. A reference
// whose prerequisite is not known yet resolves to no team. Malformed
// references are skipped and reported, and their side is left without
// a team so the match can not be started.
//
// The patches are applied to a working copy and the resolution is
// repeated until nothing changes anymore. The given snapshot is not
// modified.
func ResolvePending(s *Snapshot) *ResolveResult {
	work := s.Clone()
	result := &ResolveResult{}

	result.GroupBackfills = backfillGroups(work)

	g := NewResolutionGraph(work.Matches, work.Groups)
	result.Graph = g

	r := &resolver{snapshot: work, graph: g}
	maxPasses := len(work.Matches) + 1
	for result.Passes < maxPasses {
		result.Passes += 1
		if !r.pass() {
			break
		}
	}

	for i, original := range s.Matches {
		resolved := work.Matches[i]
		patch := MatchPatch{MatchID: original.ID}
		changed := false
		if resolved.LocalTeamID != original.LocalTeamID {
			patch.LocalTeamID = &resolved.LocalTeamID
			changed = true
		}
		if resolved.VisitorTeamID != original.VisitorTeamID {
			patch.VisitorTeamID = &resolved.VisitorTeamID
			changed = true
		}
		if changed {
			result.Patches = append(result.Patches, patch)
		}
	}
	result.Updated = len(result.Patches)

	for _, m := range work.Matches {
		if m.IsFinished() {
			continue
		}
		for _, side := range []Side{Home, Away} {
			if err := g.Invalid(m.ID, side); err != nil {
				result.Skipped = append(result.Skipped, SkippedSource{MatchID: m.ID, Side: side, Err: err})
			}
		}
	}

	return result
}

type resolver struct {
	snapshot *Snapshot
	graph    *ResolutionGraph

	// Standings of the groups in the current pass
	groupStandings map[string][]StandingRecord
}

// Runs one resolution pass over the working copy.
// Returns true when any team id changed.
func (r *resolver) pass() bool {
	r.groupStandings = make(map[string][]StandingRecord)

	changed := false
	for _, m := range r.snapshot.Matches {
		if m.IsFinished() {
			continue
		}
		for _, side := range []Side{Home, Away} {
			ref := m.SourceOn(side)
			if ref == nil {
				continue
			}
			teamID := ""
			if r.graph.Invalid(m.ID, side) == nil {
				teamID = r.resolve(ref)
			}
			if m.TeamOn(side) != teamID {
				m.setTeamOn(side, teamID)
				changed = true
			}
		}
	}
	return changed
}

// Returns the team id that the reference currently points at
// or an empty string if it can not be resolved yet
func (r *resolver) resolve(ref *SourceRef) string {
	switch ref.Kind {
	case SourceTeam:
		return ref.TeamID
	case SourceGroupPos:
		standings, ok := r.groupStandings[ref.GroupID]
		if !ok {
			standings, _ = GroupStandings(r.snapshot, ref.GroupID)
			r.groupStandings[ref.GroupID] = standings
		}
		if ref.Index < 1 || ref.Index > len(standings) {
			return ""
		}
		return standings[ref.Index-1].TeamID
	case SourceMatchWinner, SourceMatchLoser:
		source := r.snapshot.Match(ref.MatchID)
		if source == nil || !source.IsFinished() || source.WinnerTeamID == "" {
			return ""
		}
		if ref.Kind == SourceMatchWinner {
			return source.WinnerTeamID
		}
		return source.LoserTeamID()
	}
	return ""
}

// Assigns a group to every team without one by looking the team up in
// the group membership lists. Groups of earlier phases take precedence.
func backfillGroups(s *Snapshot) []TeamGroupPatch {
	phaseOrder := make(map[string]int, len(s.Phases))
	for _, p := range s.Phases {
		phaseOrder[p.ID] = p.Order
	}
	groups := slices.Clone(s.Groups)
	slices.SortStableFunc(groups, func(a, b *Group) int { return phaseOrder[a.PhaseID] - phaseOrder[b.PhaseID] })

	patches := make([]TeamGroupPatch, 0)
	for _, t := range s.Teams {
		if t.Group != "" {
			continue
		}
		for _, g := range groups {
			if slices.Contains(g.TeamIDs, t.ID) {
				t.Group = g.Label()
				patches = append(patches, TeamGroupPatch{TeamID: t.ID, Group: t.Group})
				break
			}
		}
	}
	return patches
}
