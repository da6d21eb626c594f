package tiebreak

import (
	"cmp"

	"github.com/ezBadminton/tourneyflow/core"
)

// Head-to-head statistics of a team, counted only over the
// matches between the members of its tied group
type Stats struct {
	Wins       int `json:"wins"`
	RunDiff    int `json:"runDiff"`
	RunsScored int `json:"runsScored"`
}

// Returns the statistic that a rule sorts by
func (s Stats) value(rule core.RuleType) int {
	switch rule {
	case core.RuleDirectMatch:
		return s.Wins
	case core.RuleRunDiff:
		return s.RunDiff
	case core.RuleRunsScored:
		return s.RunsScored
	}
	return 0
}

func headToHead(matches []*core.Match, sets []*core.Set, teams []string) map[string]Stats {
	metrics := core.CreateMetrics(matches, sets, teams)

	stats := make(map[string]Stats, len(teams))
	for _, t := range teams {
		m, ok := metrics[t]
		if !ok {
			stats[t] = Stats{}
			continue
		}
		stats[t] = Stats{
			Wins:       m.Wins,
			RunDiff:    m.RunDifference,
			RunsScored: m.RunsScored,
		}
	}
	return stats
}

// Compares two teams by the given rules in order, descending.
// Returns 0 when all rules yield equal values.
func compareByRules(a, b Stats, rules []core.RuleType) int {
	for _, rule := range rules {
		if c := cmp.Compare(b.value(rule), a.value(rule)); c != 0 {
			return c
		}
	}
	return 0
}
