package tiebreak

import "github.com/ezBadminton/tourneyflow/core"

// Finds the point ties in the standings of the groups of a phase.
// All groups are checked when phaseID is empty.
func DetectTies(s *core.Snapshot, phaseID string) []Input {
	var ties []Input
	for _, g := range s.Groups {
		if phaseID != "" && g.PhaseID != phaseID {
			continue
		}

		standings, ok := core.GroupStandings(s, g.ID)
		if !ok {
			continue
		}
		for _, tie := range core.PointTies(standings) {
			ties = append(ties, Input{
				Group:        g.Label(),
				OriginalRank: tie.Rank,
				TeamIDs:      tie.TeamIDs,
			})
		}
	}
	return ties
}
