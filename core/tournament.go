package core

import (
	"cmp"
	"slices"
)

const DefaultRandomDrawLimit = 3

type PhaseStatus string

const (
	PhasePending  PhaseStatus = "pending"
	PhaseActive   PhaseStatus = "active"
	PhaseFinished PhaseStatus = "finished"
)

// A sequential stage of a tournament (e.g. group stage, semi-finals).
type Phase struct {
	ID     string
	Name   string
	Order  int
	Status PhaseStatus
}

// A group of a phase. The order of the team ids is fixed
// once the phase starts.
type Group struct {
	ID      string
	Name    string
	PhaseID string
	TeamIDs []string
}

// Returns the name that is written into the team's
// group assignment
func (g *Group) Label() string {
	if g.Name != "" {
		return g.Name
	}
	return g.ID
}

type RuleType string

const (
	RuleDirectMatch RuleType = "direct_match"
	RuleRunDiff     RuleType = "run_diff"
	RuleRunsScored  RuleType = "runs_scored"
	RuleRandom      RuleType = "random"
)

func (t RuleType) Valid() bool {
	switch t {
	case RuleDirectMatch, RuleRunDiff, RuleRunsScored, RuleRandom:
		return true
	}
	return false
}

type TiebreakerRule struct {
	Type  RuleType `json:"type"`
	Order int      `json:"order"`
}

// Scoring and tie-breaking settings of a tournament
type Config struct {
	PointsForWin  int
	PointsForLoss int

	TiebreakerRules []TiebreakerRule

	// Maximum number of random draws per tournament.
	// 0 means DefaultRandomDrawLimit, a negative value
	// means unlimited.
	RandomDrawLimit int
}

func DefaultConfig() Config {
	return Config{
		PointsForWin:  3,
		PointsForLoss: 0,
		TiebreakerRules: []TiebreakerRule{
			{Type: RuleDirectMatch, Order: 1},
			{Type: RuleRunDiff, Order: 2},
			{Type: RuleRunsScored, Order: 3},
		},
	}
}

// Returns the effective tie-break rule chain.
//
// The rules are ordered by their Order field. Unknown and
// repeated types are dropped. The chain always ends with
// RuleRandom so every tie is eventually breakable.
func (c Config) RuleChain() []RuleType {
	rules := slices.Clone(c.TiebreakerRules)
	slices.SortStableFunc(rules, func(a, b TiebreakerRule) int { return cmp.Compare(a.Order, b.Order) })

	chain := make([]RuleType, 0, len(rules)+1)
	for _, r := range rules {
		if !r.Type.Valid() || slices.Contains(chain, r.Type) {
			continue
		}
		chain = append(chain, r.Type)
		if r.Type == RuleRandom {
			return chain
		}
	}

	return append(chain, RuleRandom)
}

// Returns the random draw limit or -1 for unlimited draws
func (c Config) DrawLimit() int {
	switch {
	case c.RandomDrawLimit == 0:
		return DefaultRandomDrawLimit
	case c.RandomDrawLimit < 0:
		return -1
	}
	return c.RandomDrawLimit
}

// A point in time view of all data of a tournament that the
// engine needs. The engine never mutates a snapshot it is given.
type Snapshot struct {
	TournamentID string

	Teams   []*Team
	Matches []*Match
	Sets    []*Set
	Phases  []*Phase
	Groups  []*Group

	Config Config

	// Number of random tie-break draws already used
	RandomDrawsUsed int
}

func (s *Snapshot) Team(id string) *Team {
	i := slices.IndexFunc(s.Teams, func(t *Team) bool { return t.ID == id })
	if i < 0 {
		return nil
	}
	return s.Teams[i]
}

func (s *Snapshot) Match(id string) *Match {
	i := slices.IndexFunc(s.Matches, func(m *Match) bool { return m.ID == id })
	if i < 0 {
		return nil
	}
	return s.Matches[i]
}

// Finds a group by id or, failing that, by name
func (s *Snapshot) Group(ref string) *Group {
	i := slices.IndexFunc(s.Groups, func(g *Group) bool { return g.ID == ref })
	if i < 0 {
		i = slices.IndexFunc(s.Groups, func(g *Group) bool { return g.Name != "" && g.Name == ref })
	}
	if i < 0 {
		return nil
	}
	return s.Groups[i]
}

// Returns the teams of a group in membership order.
// Ids without a team in the snapshot are skipped.
func (s *Snapshot) GroupTeams(g *Group) []*Team {
	teams := make([]*Team, 0, len(g.TeamIDs))
	for _, id := range g.TeamIDs {
		if t := s.Team(id); t != nil {
			teams = append(teams, t)
		}
	}
	return teams
}

func (s *Snapshot) MatchesOfPhase(phaseID string) []*Match {
	matches := make([]*Match, 0, len(s.Matches))
	for _, m := range s.Matches {
		if m.PhaseID == phaseID {
			matches = append(matches, m)
		}
	}
	return matches
}

// Returns a deep copy of the snapshot
func (s *Snapshot) Clone() *Snapshot {
	c := *s

	c.Teams = make([]*Team, len(s.Teams))
	for i, t := range s.Teams {
		team := *t
		c.Teams[i] = &team
	}
	c.Matches = make([]*Match, len(s.Matches))
	for i, m := range s.Matches {
		c.Matches[i] = m.Clone()
	}
	c.Sets = make([]*Set, len(s.Sets))
	for i, set := range s.Sets {
		clone := *set
		c.Sets[i] = &clone
	}
	c.Phases = make([]*Phase, len(s.Phases))
	for i, p := range s.Phases {
		phase := *p
		c.Phases[i] = &phase
	}
	c.Groups = make([]*Group, len(s.Groups))
	for i, g := range s.Groups {
		group := *g
		group.TeamIDs = slices.Clone(g.TeamIDs)
		c.Groups[i] = &group
	}
	c.Config.TiebreakerRules = slices.Clone(s.Config.TiebreakerRules)

	return &c
}

// Returns a copy of the snapshot with the resolution
// result and the phase transition applied
func (s *Snapshot) Apply(result *ResolveResult, transition *PhaseTransition) *Snapshot {
	c := s.Clone()

	if result != nil {
		for _, backfill := range result.GroupBackfills {
			if t := c.Team(backfill.TeamID); t != nil {
				t.Group = backfill.Group
			}
		}
		for _, patch := range result.Patches {
			if m := c.Match(patch.MatchID); m != nil {
				patch.ApplyTo(m)
			}
		}
	}

	if transition != nil {
		transition.ApplyTo(c.Phases)
	}

	return c
}

// A final rank of a team produced by the tiebreaker
// workflow which is persisted as the team's seed.
type SeedAssignment struct {
	TeamID string `json:"teamId"`
	Rank   int    `json:"rank"`
}
