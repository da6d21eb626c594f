package core

import "slices"

type MatchMetrics struct {
	NumMatches int `json:"gamesPlayed"`
	Wins       int `json:"wins"`
	Losses     int `json:"losses"`

	NumSets   int `json:"numSets"`
	SetWins   int `json:"setWins"`
	SetLosses int `json:"setLosses"`

	RunsScored  int `json:"runsScored"`
	RunsAllowed int `json:"runsAllowed"`

	RunDifference int `json:"-"`
}

func (m *MatchMetrics) UpdateDifferences() {
	m.RunDifference = m.RunsScored - m.RunsAllowed
}

// Creates a MatchMetrics struct for each team in the matches.
// If the teams slice is not nil/empty only the matches where both
// opponents are in the slice are counted.
//
// The runs of finished sets are counted regardless of the match status.
// Wins and losses are only counted for finished matches.
func CreateMetrics(
	matches []*Match,
	sets []*Set,
	teams []string,
) map[string]*MatchMetrics {
	metrics := make(map[string]*MatchMetrics)
	index := setsByMatch(sets)
	for _, match := range matches {
		extractMatchMetrics(match, index[match.ID], teams, metrics)
	}
	addZeroMetrics(metrics, teams)

	for _, m := range metrics {
		m.UpdateDifferences()
	}

	return metrics
}

func extractMatchMetrics(
	match *Match,
	sets []*Set,
	teams []string,
	metrics map[string]*MatchMetrics,
) {
	t1 := match.LocalTeamID
	t2 := match.VisitorTeamID
	if t1 == "" || t2 == "" || t1 == t2 {
		return
	}

	doCount1 := len(teams) == 0 || slices.Contains(teams, t1)
	doCount2 := len(teams) == 0 || slices.Contains(teams, t2)
	if !doCount1 || !doCount2 {
		return
	}

	finishedSets := make([]*Set, 0, len(sets))
	for _, s := range sets {
		if s.Status == SetFinished {
			finishedSets = append(finishedSets, s)
		}
	}

	finished := match.IsFinished()
	if len(finishedSets) == 0 && !finished {
		return
	}

	m1 := metricsOf(metrics, t1)
	m2 := metricsOf(metrics, t2)

	setWins1, setWins2 := 0, 0
	for _, s := range finishedSets {
		m1.NumSets += 1
		m2.NumSets += 1

		m1.RunsScored += s.LocalRuns
		m1.RunsAllowed += s.VisitorRuns
		m2.RunsScored += s.VisitorRuns
		m2.RunsAllowed += s.LocalRuns

		if s.LocalRuns == s.VisitorRuns {
			continue
		}
		if s.LocalRuns > s.VisitorRuns {
			setWins1 += 1
		} else {
			setWins2 += 1
		}
	}

	m1.SetWins += setWins1
	m1.SetLosses += setWins2
	m2.SetWins += setWins2
	m2.SetLosses += setWins1

	if !finished {
		return
	}

	m1.NumMatches += 1
	m2.NumMatches += 1

	switch winner := matchWinner(match, setWins1, setWins2); winner {
	case t1:
		m1.Wins += 1
		m2.Losses += 1
	case t2:
		m2.Wins += 1
		m1.Losses += 1
	}
}

// The side with more set-wins wins the match. When the set-wins
// are equal (e.g. a walkover without any played sets) the stored
// winner decides, otherwise there is no winner.
func matchWinner(match *Match, setWins1, setWins2 int) string {
	switch {
	case setWins1 > setWins2:
		return match.LocalTeamID
	case setWins2 > setWins1:
		return match.VisitorTeamID
	}
	if match.WinnerTeamID == match.LocalTeamID || match.WinnerTeamID == match.VisitorTeamID {
		return match.WinnerTeamID
	}
	return ""
}

func metricsOf(metrics map[string]*MatchMetrics, teamID string) *MatchMetrics {
	m, ok := metrics[teamID]
	if !ok {
		m = &MatchMetrics{}
		metrics[teamID] = m
	}
	return m
}

// Adds zeroed metrics to the metrics map for teams which are
// not already present in the map but are in the teams slice
func addZeroMetrics(metrics map[string]*MatchMetrics, teams []string) {
	for _, t := range teams {
		_, ok := metrics[t]
		if !ok {
			metrics[t] = &MatchMetrics{}
		}
	}
}
