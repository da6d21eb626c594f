package tiebreak

import (
	"errors"
	"math/rand"
	"slices"
	"testing"

	"github.com/ezBadminton/tourneyflow/core"
)

type result struct {
	local, visitor         string
	localRuns, visitorRuns int
}

// Creates a snapshot of one group where every result is a
// finished single-set match
func groupSnapshot(teamIDs []string, results []result) *core.Snapshot {
	s := &core.Snapshot{
		TournamentID: "t1",
		Config:       core.DefaultConfig(),
		Phases:       []*core.Phase{{ID: "p1", Order: 1, Status: core.PhaseActive}},
		Groups:       []*core.Group{{ID: "g1", Name: "A", PhaseID: "p1", TeamIDs: teamIDs}},
	}
	for _, id := range teamIDs {
		s.Teams = append(s.Teams, &core.Team{ID: id, Name: id, Group: "A"})
	}
	for i, r := range results {
		matchID := "m" + string(rune('a'+i))
		winner := r.local
		if r.visitorRuns > r.localRuns {
			winner = r.visitor
		}
		s.Matches = append(s.Matches, &core.Match{
			ID:            matchID,
			PhaseID:       "p1",
			Status:        core.MatchFinished,
			LocalTeamID:   r.local,
			VisitorTeamID: r.visitor,
			WinnerTeamID:  winner,
		})
		s.Sets = append(s.Sets, &core.Set{
			ID:          matchID + "s1",
			MatchID:     matchID,
			SetNumber:   1,
			Status:      core.SetFinished,
			LocalRuns:   r.localRuns,
			VisitorRuns: r.visitorRuns,
		})
	}
	return s
}

// Every team wins once with equal runs
func circularSnapshot(teamIDs ...string) *core.Snapshot {
	results := make([]result, 0, len(teamIDs))
	for i, id := range teamIDs {
		results = append(results, result{id, teamIDs[(i+1)%len(teamIDs)], 5, 3})
	}
	return groupSnapshot(teamIDs, results)
}

func TestDirectMatchResolvesPair(t *testing.T) {
	s := groupSnapshot([]string{"a", "b"}, []result{{"b", "a", 2, 3}})

	session, err := NewSession(s, []Input{{Group: "A", OriginalRank: 1, TeamIDs: []string{"b", "a"}}})
	if err != nil {
		t.Fatal(err)
	}

	resolved, err := session.ApplyRule(0)
	if err != nil {
		t.Fatal(err)
	}
	if !resolved {
		t.Fatal("The direct match did not resolve the tie of two teams")
	}
	if !slices.Equal(session.Groups[0].Teams, []string{"a", "b"}) {
		t.Fatal("The winner of the direct match is not ranked first")
	}

	_, err = session.ApplyRule(0)
	if !errors.Is(err, ErrGroupResolved) {
		t.Fatal("Applying a rule to a resolved group did not fail")
	}
}

func TestRunDiffBreaksCircularTie(t *testing.T) {
	s := groupSnapshot([]string{"a", "b", "c"}, []result{
		{"a", "b", 10, 0},
		{"b", "c", 5, 4},
		{"c", "a", 6, 5},
	})

	session, err := NewSession(s, []Input{{Group: "A", OriginalRank: 1, TeamIDs: []string{"a", "b", "c"}}})
	if err != nil {
		t.Fatal(err)
	}

	resolved, err := session.ApplyRule(0)
	if err != nil || resolved {
		t.Fatal("The direct match rule resolved a circular tie")
	}
	rule, _ := session.CurrentRule(0)
	if rule != core.RuleRunDiff {
		t.Fatal("The run differential did not become the active rule")
	}

	resolved, err = session.ApplyRule(0)
	if err != nil || !resolved {
		t.Fatal("The run differential did not resolve the tie")
	}
	if !slices.Equal(session.Groups[0].Teams, []string{"a", "c", "b"}) {
		t.Fatalf("Unexpected order %v", session.Groups[0].Teams)
	}
}

func TestRunAutomaticStopsAtDraw(t *testing.T) {
	s := circularSnapshot("a", "b", "c")

	session, err := NewSession(s, []Input{{Group: "A", OriginalRank: 2, TeamIDs: []string{"a", "b", "c"}}})
	if err != nil {
		t.Fatal(err)
	}

	resolved, err := session.RunAutomatic(0)
	if err != nil {
		t.Fatal(err)
	}
	if resolved {
		t.Fatal("A fully tied group was resolved without a draw")
	}
	rule, _ := session.CurrentRule(0)
	if rule != core.RuleRandom {
		t.Fatal("The random draw is not the active rule after the automatic run")
	}

	if _, err := session.ApplyRule(0); !errors.Is(err, ErrDrawRequired) {
		t.Fatal("Applying the random rule did not require an explicit draw")
	}
	if _, err := session.Finalize(); !errors.Is(err, ErrUnresolvedGroups) {
		t.Fatal("An unresolved session could be finalized")
	}
}

func TestAutoDraw(t *testing.T) {
	s := circularSnapshot("a", "b", "c")

	session, err := NewSession(
		s,
		[]Input{{Group: "A", OriginalRank: 2, TeamIDs: []string{"a", "b", "c"}}},
		WithRand(rand.New(rand.NewSource(7))),
	)
	if err != nil {
		t.Fatal(err)
	}

	if err := session.AutoDraw(0); !errors.Is(err, ErrNotDrawRule) {
		t.Fatal("A draw was possible before the other rules were applied")
	}

	session.RunAutomatic(0)
	if err := session.AutoDraw(0); err != nil {
		t.Fatal(err)
	}

	if session.DrawsUsed != 1 || session.RemainingDraws() != core.DefaultRandomDrawLimit-1 {
		t.Fatal("The draw was not counted against the budget")
	}

	teams := slices.Clone(session.Groups[0].Teams)
	slices.Sort(teams)
	if !slices.Equal(teams, []string{"a", "b", "c"}) {
		t.Fatal("The draw changed the members of the group")
	}

	seeds, err := session.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	for i, seed := range seeds {
		if seed.Rank != 2+i || seed.TeamID != session.Groups[0].Teams[i] {
			t.Fatal("The final ranks do not follow the drawn order starting at the original rank")
		}
	}
}

func TestAutoDrawKeepsSeparatedTeams(t *testing.T) {
	// d loses its matches against the others and ends last by direct match
	s := groupSnapshot([]string{"a", "b", "c", "d"}, []result{
		{"a", "b", 5, 3},
		{"b", "c", 5, 3},
		{"c", "a", 5, 3},
		{"a", "d", 5, 3},
		{"b", "d", 5, 3},
		{"c", "d", 5, 3},
	})

	for seed := range int64(20) {
		session, err := NewSession(
			s,
			[]Input{{Group: "A", OriginalRank: 1, TeamIDs: []string{"d", "c", "b", "a"}}},
			WithRand(rand.New(rand.NewSource(seed))),
			WithDrawLimit(-1),
		)
		if err != nil {
			t.Fatal(err)
		}
		session.RunAutomatic(0)
		if err := session.AutoDraw(0); err != nil {
			t.Fatal(err)
		}
		if session.Groups[0].Teams[3] != "d" {
			t.Fatal("The draw moved a team that was already separated by the rules")
		}
	}
}

func TestDrawBudget(t *testing.T) {
	s := circularSnapshot("a", "b", "c", "d", "e", "f")
	s.Config.RandomDrawLimit = 1

	session, err := NewSession(s, []Input{
		{Group: "A", OriginalRank: 1, TeamIDs: []string{"a", "c"}},
		{Group: "A", OriginalRank: 3, TeamIDs: []string{"b", "d"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	// The pairs did not play each other, every rule leaves them tied
	session.RunAutomatic(0)
	session.RunAutomatic(1)

	if err := session.AutoDraw(0); err != nil {
		t.Fatal(err)
	}
	if session.RemainingDraws() != 0 {
		t.Fatal("The budget is not used up after the only draw")
	}

	if err := session.AutoDraw(1); !errors.Is(err, ErrDrawBudgetExhausted) {
		t.Fatal("An automatic draw was possible with an exhausted budget")
	}
	if err := session.StartManualDraw(1); !errors.Is(err, ErrDrawBudgetExhausted) {
		t.Fatal("A manual draw was possible with an exhausted budget")
	}

	session.ResetDrawBudget()
	if err := session.AutoDraw(1); err != nil {
		t.Fatal("The draw was still blocked after the budget reset")
	}
	if !session.Resolved() {
		t.Fatal("The session is not resolved after all draws")
	}
}

func TestManualDraw(t *testing.T) {
	s := circularSnapshot("a", "b", "c")

	session, err := NewSession(s, []Input{{Group: "A", OriginalRank: 1, TeamIDs: []string{"a", "b", "c"}}})
	if err != nil {
		t.Fatal(err)
	}
	session.RunAutomatic(0)

	if err := session.MoveTeam(0, "a", 1); !errors.Is(err, ErrNoManualDraw) {
		t.Fatal("A team was moved outside of a manual draw")
	}

	if err := session.StartManualDraw(0); err != nil {
		t.Fatal(err)
	}
	before := slices.Clone(session.Groups[0].Teams)
	first := before[0]

	if err := session.MoveTeam(0, first, -1); !errors.Is(err, ErrInvalidMove) {
		t.Fatal("The first team could be moved up")
	}
	if err := session.MoveTeam(0, first, 2); !errors.Is(err, ErrInvalidMove) {
		t.Fatal("A team could be moved by more than one position")
	}
	if err := session.MoveTeam(0, "x", 1); !errors.Is(err, ErrTeamNotInGroup) {
		t.Fatal("An unknown team could be moved")
	}

	if err := session.MoveTeam(0, first, 1); err != nil {
		t.Fatal(err)
	}
	if session.Groups[0].Teams[1] != first {
		t.Fatal("The team was not moved down")
	}

	if err := session.CancelManualDraw(0); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(session.Groups[0].Teams, before) {
		t.Fatal("Cancelling the manual draw did not restore the order")
	}
	if session.DrawsUsed != 0 {
		t.Fatal("A cancelled manual draw was counted")
	}

	session.StartManualDraw(0)
	last := session.Groups[0].Teams[2]
	session.MoveTeam(0, last, -1)
	session.MoveTeam(0, last, -1)
	if err := session.ConfirmManualDraw(0); err != nil {
		t.Fatal(err)
	}

	seeds, err := session.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	if seeds[0].TeamID != last || seeds[0].Rank != 1 {
		t.Fatal("The manually arranged order was not finalized")
	}
	if session.DrawsUsed != 1 {
		t.Fatal("The manual draw was not counted")
	}
}

func TestReset(t *testing.T) {
	s := groupSnapshot([]string{"a", "b"}, []result{{"b", "a", 2, 3}})

	session, err := NewSession(s, []Input{{Group: "A", OriginalRank: 1, TeamIDs: []string{"b", "a"}}})
	if err != nil {
		t.Fatal(err)
	}
	session.ApplyRule(0)
	if err := session.Reset(0); err != nil {
		t.Fatal(err)
	}

	g := session.Groups[0]
	if g.Resolved || g.ActiveRule != 0 || !slices.Equal(g.Teams, []string{"b", "a"}) {
		t.Fatal("The group was not reset to its initial state")
	}

	if err := session.Reset(3); !errors.Is(err, ErrUnknownGroup) {
		t.Fatal("An unknown group could be reset")
	}
}

func TestSessionIsolatedFromSnapshot(t *testing.T) {
	s := groupSnapshot([]string{"a", "b"}, []result{{"b", "a", 2, 3}})

	session, err := NewSession(s, []Input{{Group: "A", OriginalRank: 1, TeamIDs: []string{"b", "a"}}})
	if err != nil {
		t.Fatal(err)
	}

	s.Sets[0].LocalRuns = 10
	s.Matches[0].WinnerTeamID = "b"

	session.ApplyRule(0)
	if session.Groups[0].Teams[0] != "a" {
		t.Fatal("Changes of the snapshot leaked into the session")
	}
}

func TestInvalidInput(t *testing.T) {
	s := circularSnapshot("a", "b", "c")

	_, err := NewSession(s, []Input{{Group: "A", TeamIDs: []string{"a"}}})
	if !errors.Is(err, ErrTooFewTeams) {
		t.Fatal("A tie of one team was accepted")
	}

	_, err = NewSession(s, []Input{
		{Group: "A", TeamIDs: []string{"a", "b"}},
		{Group: "A", TeamIDs: []string{"b", "c"}},
	})
	if !errors.Is(err, ErrDuplicateTeam) {
		t.Fatal("A team was accepted in two ties")
	}
}

func TestDetectTies(t *testing.T) {
	s := groupSnapshot([]string{"a", "b", "c", "d"}, []result{
		{"a", "b", 5, 3},
		{"c", "d", 5, 3},
	})

	ties := DetectTies(s, "p1")
	if len(ties) != 2 {
		t.Fatalf("Expected 2 ties, got %d", len(ties))
	}

	eq1 := ties[0].OriginalRank == 1 && len(ties[0].TeamIDs) == 2
	eq2 := ties[1].OriginalRank == 3 && len(ties[1].TeamIDs) == 2
	if !eq1 || !eq2 {
		t.Fatal("The ties are not at the rank boundaries of equal points")
	}
	if ties[0].Group != "A" {
		t.Fatal("The tie is not labelled with the group name")
	}

	if len(DetectTies(s, "p2")) != 0 {
		t.Fatal("Ties were detected in a phase without groups")
	}
}

func TestConvergenceWithinFourSteps(t *testing.T) {
	s := circularSnapshot("a", "b", "c", "d")
	// Cross matches so every team has played every other with equal results
	s.Matches = append(s.Matches,
		&core.Match{ID: "x1", PhaseID: "p1", Status: core.MatchFinished, LocalTeamID: "a", VisitorTeamID: "c", WinnerTeamID: "a"},
		&core.Match{ID: "x2", PhaseID: "p1", Status: core.MatchFinished, LocalTeamID: "d", VisitorTeamID: "b", WinnerTeamID: "d"},
	)
	s.Sets = append(s.Sets,
		&core.Set{ID: "x1s1", MatchID: "x1", SetNumber: 1, Status: core.SetFinished, LocalRuns: 5, VisitorRuns: 3},
		&core.Set{ID: "x2s1", MatchID: "x2", SetNumber: 1, Status: core.SetFinished, LocalRuns: 5, VisitorRuns: 3},
	)

	ties := DetectTies(s, "p1")
	session, err := NewSession(s, ties)
	if err != nil {
		t.Fatal(err)
	}

	for i := range session.Groups {
		steps := 0
		for !session.Groups[i].Resolved {
			steps += 1
			if steps > 4 {
				t.Fatal("The tie was not resolved within 4 rule applications")
			}
			if _, err := session.ApplyRule(i); errors.Is(err, ErrDrawRequired) {
				if err := session.AutoDraw(i); err != nil {
					t.Fatal(err)
				}
			}
		}
	}

	if !session.Resolved() {
		t.Fatal("The session did not converge")
	}
}

func TestFourthDrawBlocked(t *testing.T) {
	s := circularSnapshot("a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l")

	// None of the pairs played each other
	session, err := NewSession(s, []Input{
		{Group: "A", OriginalRank: 1, TeamIDs: []string{"a", "c"}},
		{Group: "A", OriginalRank: 3, TeamIDs: []string{"e", "g"}},
		{Group: "A", OriginalRank: 5, TeamIDs: []string{"i", "k"}},
		{Group: "A", OriginalRank: 7, TeamIDs: []string{"b", "d"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	for i := range 3 {
		session.RunAutomatic(i)
		if err := session.AutoDraw(i); err != nil {
			t.Fatal(err)
		}
	}

	session.RunAutomatic(3)
	if err := session.AutoDraw(3); !errors.Is(err, ErrDrawBudgetExhausted) {
		t.Fatal("A fourth automatic draw was not blocked")
	}
	if err := session.StartManualDraw(3); !errors.Is(err, ErrDrawBudgetExhausted) {
		t.Fatal("A fourth manual draw was not blocked")
	}
	for i := range 3 {
		if !session.Groups[i].Resolved {
			t.Fatal("The exhausted budget affected an already resolved group")
		}
	}

	session.ResetDrawBudget()
	if err := session.StartManualDraw(3); err != nil {
		t.Fatal(err)
	}
	if err := session.ConfirmManualDraw(3); err != nil {
		t.Fatal(err)
	}
	if !session.Resolved() {
		t.Fatal("The session is not resolved after the budget reset")
	}
}
