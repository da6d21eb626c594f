package core

import (
	"cmp"
	"slices"
)

// A team's derived ranking statistics. Standing records are
// recomputed from scratch and never persisted by the engine.
type StandingRecord struct {
	// 1-based position in the standings
	Rank   int    `json:"rank"`
	TeamID string `json:"teamId"`
	Group  string `json:"group"`

	GamesPlayed int `json:"gamesPlayed"`
	Wins        int `json:"wins"`
	Losses      int `json:"losses"`
	Points      int `json:"points"`

	RunsScored  int `json:"runsScored"`
	RunsAllowed int `json:"runsAllowed"`

	Seed int `json:"seed"`
}

func (r *StandingRecord) RunDiff() int {
	return r.RunsScored - r.RunsAllowed
}

// Computes the ordered standings of the given teams.
//
// When phaseID is not empty only the matches of that phase are counted.
// Every supplied team gets a record, teams without any results
// get a zero-valued one.
func ComputeStandings(
	teams []*Team,
	matches []*Match,
	sets []*Set,
	phaseID string,
	cfg Config,
) []StandingRecord {
	if phaseID != "" {
		matches = slices.DeleteFunc(slices.Clone(matches), func(m *Match) bool { return m.PhaseID != phaseID })
	}

	metrics := CreateMetrics(matches, sets, nil)

	records := make([]StandingRecord, 0, len(teams))
	seen := make(map[string]bool, len(teams))
	for _, t := range teams {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true

		record := StandingRecord{TeamID: t.ID, Group: t.Group, Seed: t.Seed}
		if m, ok := metrics[t.ID]; ok {
			record.GamesPlayed = m.NumMatches
			record.Wins = m.Wins
			record.Losses = m.Losses
			record.Points = m.Wins*cfg.PointsForWin + m.Losses*cfg.PointsForLoss
			record.RunsScored = m.RunsScored
			record.RunsAllowed = m.RunsAllowed
		}
		records = append(records, record)
	}

	SortStandings(records)

	return records
}

// Sorts the records and assigns their ranks.
//
// The order is points descending, then run differential descending,
// then runs scored descending. Within records of equal points the
// seeded records (seed != 0) are reordered among the positions they
// occupy by ascending seed, so a lower seed always ranks above a higher
// one regardless of the run statistics. The team id decides last.
func SortStandings(records []StandingRecord) {
	slices.SortStableFunc(records, compareStatistics)

	for _, bucket := range pointBuckets(records) {
		reorderSeeded(bucket)
	}

	for i := range records {
		records[i].Rank = i + 1
	}
}

// Compares two records by the full tie-break sequence: points,
// seed (only when both are seeded), run differential, runs scored.
// Returns a negative number when a ranks above b. Distinct teams
// never compare equal.
func CompareStandings(a, b *StandingRecord) int {
	if c := cmp.Compare(b.Points, a.Points); c != 0 {
		return c
	}
	if a.Seed != 0 && b.Seed != 0 {
		if c := cmp.Compare(a.Seed, b.Seed); c != 0 {
			return c
		}
	}
	return compareRuns(a, b)
}

func compareStatistics(a, b StandingRecord) int {
	if c := cmp.Compare(b.Points, a.Points); c != 0 {
		return c
	}
	return compareRuns(&a, &b)
}

func compareRuns(a, b *StandingRecord) int {
	if c := cmp.Compare(b.RunDiff(), a.RunDiff()); c != 0 {
		return c
	}
	if c := cmp.Compare(b.RunsScored, a.RunsScored); c != 0 {
		return c
	}
	return cmp.Compare(a.TeamID, b.TeamID)
}

func reorderSeeded(bucket []StandingRecord) {
	positions := make([]int, 0, len(bucket))
	seeded := make([]StandingRecord, 0, len(bucket))
	for i, r := range bucket {
		if r.Seed != 0 {
			positions = append(positions, i)
			seeded = append(seeded, r)
		}
	}
	if len(seeded) < 2 {
		return
	}

	slices.SortStableFunc(seeded, func(a, b StandingRecord) int {
		if c := cmp.Compare(a.Seed, b.Seed); c != 0 {
			return c
		}
		return compareRuns(&a, &b)
	})

	for i, p := range positions {
		bucket[p] = seeded[i]
	}
}

// Splits sorted records into sub-slices of equal points
func pointBuckets(records []StandingRecord) [][]StandingRecord {
	buckets := make([][]StandingRecord, 0, len(records))
	for start := 0; start < len(records); {
		end := start + 1
		for end < len(records) && records[end].Points == records[start].Points {
			end += 1
		}
		buckets = append(buckets, records[start:end])
		start = end
	}
	return buckets
}

// Computes the standings of a group from all matches of the
// tournament. The group is looked up by id or name. These are the
// standings that group positions resolve from.
func GroupStandings(s *Snapshot, groupRef string) ([]StandingRecord, bool) {
	group := s.Group(groupRef)
	if group == nil {
		return nil, false
	}

	return ComputeStandings(s.GroupTeams(group), s.Matches, s.Sets, "", s.Config), true
}

// Like GroupStandings but only the matches of the group's own
// phase are counted. Groups without a phase count all matches.
func PhaseGroupStandings(s *Snapshot, groupRef string) ([]StandingRecord, bool) {
	group := s.Group(groupRef)
	if group == nil {
		return nil, false
	}

	matches := s.Matches
	if group.PhaseID != "" {
		matches = s.MatchesOfPhase(group.PhaseID)
	}
	return ComputeStandings(s.GroupTeams(group), matches, s.Sets, "", s.Config), true
}

// A run of consecutive standing records that are tied
type Tie struct {
	// Rank of the first team of the tie
	Rank    int
	Group   string
	TeamIDs []string
}

// Returns the runs of two or more records with equal points.
// Runs whose teams are already separated by distinct seeds are
// not returned. The records have to be sorted.
func PointTies(records []StandingRecord) []Tie {
	return findTies(records, func(a, b *StandingRecord) bool {
		return a.Points == b.Points
	})
}

// Returns the runs of two or more records that the standings
// calculator can not separate: equal points, run differential and
// runs scored. Runs that are already separated by distinct seeds
// are not returned. The records have to be sorted.
func UnbrokenTies(records []StandingRecord) []Tie {
	return findTies(records, func(a, b *StandingRecord) bool {
		return a.Points == b.Points &&
			a.RunDiff() == b.RunDiff() &&
			a.RunsScored == b.RunsScored
	})
}

func findTies(records []StandingRecord, tied func(a, b *StandingRecord) bool) []Tie {
	ties := make([]Tie, 0, 2)
	for start := 0; start < len(records); {
		end := start + 1
		for end < len(records) && tied(&records[start], &records[end]) {
			end += 1
		}

		run := records[start:end]
		if len(run) > 1 && !seedSeparated(run) {
			teamIDs := make([]string, 0, len(run))
			for _, r := range run {
				teamIDs = append(teamIDs, r.TeamID)
			}
			ties = append(ties, Tie{Rank: run[0].Rank, Group: run[0].Group, TeamIDs: teamIDs})
		}

		start = end
	}
	return ties
}

func seedSeparated(run []StandingRecord) bool {
	seeds := make(map[int]bool, len(run))
	for _, r := range run {
		if r.Seed == 0 || seeds[r.Seed] {
			return false
		}
		seeds[r.Seed] = true
	}
	return true
}
