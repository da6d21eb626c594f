// Package tiebreak implements the interactive resolution of ranking ties.
//
// A Session holds one or more tied groups (teams with equal points at a
// rank boundary of the same group). Each group is broken by the
// tournament's rule chain. The last rule is always a random draw which
// has to be triggered explicitly, either automatically or as a manual
// draw by the organizer, and counts against a per-tournament budget.
// When every group is resolved the session is finalized into seeds.
//
// A Session is driven by a single organizer and is not safe for
// concurrent use.
package tiebreak

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/ezBadminton/tourneyflow/core"
)

var (
	ErrTooFewTeams          = errors.New("a tied group needs at least 2 teams")
	ErrDuplicateTeam        = errors.New("team is part of more than one tied group")
	ErrUnknownGroup         = errors.New("tied group does not exist")
	ErrGroupResolved        = errors.New("tied group is already resolved")
	ErrDrawRequired         = errors.New("the active rule is a random draw which has to be started explicitly")
	ErrNotDrawRule          = errors.New("the active rule is not a random draw")
	ErrDrawBudgetExhausted  = errors.New("random draw budget of the tournament is exhausted")
	ErrManualDrawInProgress = errors.New("a manual draw is in progress")
	ErrNoManualDraw         = errors.New("no manual draw in progress")
	ErrTeamNotInGroup       = errors.New("team is not part of the tied group")
	ErrInvalidMove          = errors.New("teams can only be moved one position at a time inside the group")
	ErrUnresolvedGroups     = errors.New("not all tied groups are resolved")
)

// The teams of a tie that is to be broken
type Input struct {
	Group string
	// Rank of the first team of the tie in the group standings
	OriginalRank int
	TeamIDs      []string
}

// The state of one tie in a session
type TiedGroup struct {
	Group        string
	OriginalRank int

	// The current order of the teams
	Teams []string

	// Index into the session's rule chain
	ActiveRule int
	Resolved   bool

	// True while the organizer is reordering the teams by hand
	ManualDraw bool

	initial      []string
	beforeManual []string
}

type Option func(*Session)

func WithRand(rng *rand.Rand) Option {
	return func(s *Session) { s.rng = rng }
}

// Overrides the draw limit of the tournament config.
// A negative limit means unlimited draws.
func WithDrawLimit(limit int) Option {
	return func(s *Session) { s.DrawLimit = limit }
}

type Session struct {
	ID           uuid.UUID
	TournamentID string

	Groups []*TiedGroup

	// The rule chain, always ending with core.RuleRandom
	Rules []core.RuleType

	// Maximum number of random draws, negative for unlimited
	DrawLimit int
	DrawsUsed int

	// Copies of the results between tied teams taken at session start
	matches []*core.Match
	sets    []*core.Set

	rng *rand.Rand
}

// Starts a session for the given ties.
//
// The matches and sets between the tied teams are copied from the
// snapshot so later changes of the underlying data do not affect the
// session.
func NewSession(s *core.Snapshot, ties []Input, opts ...Option) (*Session, error) {
	session := &Session{
		ID:           uuid.New(),
		TournamentID: s.TournamentID,
		Groups:       make([]*TiedGroup, 0, len(ties)),
		Rules:        s.Config.RuleChain(),
		DrawLimit:    s.Config.DrawLimit(),
		DrawsUsed:    s.RandomDrawsUsed,
	}

	tiedTeams := make(map[string]bool)
	for _, tie := range ties {
		if len(tie.TeamIDs) < 2 {
			return nil, ErrTooFewTeams
		}
		for _, id := range tie.TeamIDs {
			if tiedTeams[id] {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateTeam, id)
			}
			tiedTeams[id] = true
		}

		session.Groups = append(session.Groups, &TiedGroup{
			Group:        tie.Group,
			OriginalRank: max(tie.OriginalRank, 1),
			Teams:        slices.Clone(tie.TeamIDs),
			initial:      slices.Clone(tie.TeamIDs),
		})
	}

	matchIDs := make(map[string]bool)
	for _, m := range s.Matches {
		if tiedTeams[m.LocalTeamID] && tiedTeams[m.VisitorTeamID] {
			session.matches = append(session.matches, m.Clone())
			matchIDs[m.ID] = true
		}
	}
	for _, set := range s.Sets {
		if matchIDs[set.MatchID] {
			clone := *set
			session.sets = append(session.sets, &clone)
		}
	}

	for _, opt := range opts {
		opt(session)
	}
	if session.rng == nil {
		session.rng = newRand(time.Now().UnixNano())
	}

	return session, nil
}

func (s *Session) group(i int) (*TiedGroup, error) {
	if i < 0 || i >= len(s.Groups) {
		return nil, ErrUnknownGroup
	}
	return s.Groups[i], nil
}

// Returns the head-to-head statistics of the teams of a tied group
func (s *Session) Stats(i int) (map[string]Stats, error) {
	g, err := s.group(i)
	if err != nil {
		return nil, err
	}
	return headToHead(s.matches, s.sets, g.Teams), nil
}

// Returns the rule that the next step of the group applies
func (s *Session) CurrentRule(i int) (core.RuleType, error) {
	g, err := s.group(i)
	if err != nil {
		return "", err
	}
	return s.Rules[g.ActiveRule], nil
}

// Applies the active rule to the tied group.
//
// The teams are sorted lexicographically by the statistics of all
// rules applied so far, the active rule last. Teams separated by an
// earlier rule keep their order and the active rule only orders teams
// that are still equal under the earlier rules. Two adjacent teams
// count as tied only when all applied statistics are equal. When no
// adjacent teams are tied the group is resolved, otherwise the next
// rule becomes active.
// Returns ErrDrawRequired when the active rule is the random draw.
func (s *Session) ApplyRule(i int) (bool, error) {
	g, err := s.group(i)
	if err != nil {
		return false, err
	}
	if g.Resolved {
		return true, ErrGroupResolved
	}
	if g.ManualDraw {
		return false, ErrManualDrawInProgress
	}

	rule := s.Rules[g.ActiveRule]
	if rule == core.RuleRandom {
		return false, ErrDrawRequired
	}

	stats := headToHead(s.matches, s.sets, g.Teams)
	applied := s.Rules[:g.ActiveRule+1]

	slices.SortStableFunc(g.Teams, func(a, b string) int {
		return compareByRules(stats[a], stats[b], applied)
	})

	for k := 1; k < len(g.Teams); k++ {
		if compareByRules(stats[g.Teams[k-1]], stats[g.Teams[k]], applied) == 0 {
			g.ActiveRule += 1
			return false, nil
		}
	}

	g.Resolved = true
	return true, nil
}

// Applies rules to the group until it is resolved or
// the random draw is reached
func (s *Session) RunAutomatic(i int) (bool, error) {
	for {
		resolved, err := s.ApplyRule(i)
		switch {
		case errors.Is(err, ErrDrawRequired):
			return false, nil
		case errors.Is(err, ErrGroupResolved):
			return true, nil
		case err != nil:
			return false, err
		case resolved:
			return true, nil
		}
	}
}

// Returns the number of draws left or -1 if unlimited
func (s *Session) RemainingDraws() int {
	if s.DrawLimit < 0 {
		return -1
	}
	return max(s.DrawLimit-s.DrawsUsed, 0)
}

func (s *Session) canDraw() bool {
	return s.DrawLimit < 0 || s.DrawsUsed < s.DrawLimit
}

// Explicit organizer decision to allow new random draws
func (s *Session) ResetDrawBudget() {
	s.DrawsUsed = 0
}

func (s *Session) drawableGroup(i int) (*TiedGroup, error) {
	g, err := s.group(i)
	if err != nil {
		return nil, err
	}
	if g.Resolved {
		return nil, ErrGroupResolved
	}
	if s.Rules[g.ActiveRule] != core.RuleRandom {
		return nil, ErrNotDrawRule
	}
	if !s.canDraw() {
		return nil, ErrDrawBudgetExhausted
	}
	return g, nil
}

// Resolves the group by a random draw.
//
// Only the teams that are still tied after the previously applied
// rules are shuffled among each other.
func (s *Session) AutoDraw(i int) error {
	g, err := s.drawableGroup(i)
	if err != nil {
		return err
	}
	if g.ManualDraw {
		return ErrManualDrawInProgress
	}

	stats := headToHead(s.matches, s.sets, g.Teams)
	applied := s.Rules[:g.ActiveRule]
	shuffleTiedRuns(g.Teams, func(a, b string) bool {
		return compareByRules(stats[a], stats[b], applied) == 0
	}, s.rng)

	s.DrawsUsed += 1
	g.Resolved = true
	return nil
}

// Starts a manual draw in which the organizer orders the teams
// by hand with MoveTeam and finishes with ConfirmManualDraw
func (s *Session) StartManualDraw(i int) error {
	g, err := s.drawableGroup(i)
	if err != nil {
		return err
	}
	if g.ManualDraw {
		return ErrManualDrawInProgress
	}
	g.ManualDraw = true
	g.beforeManual = slices.Clone(g.Teams)
	return nil
}

// Moves a team one position up (delta -1) or down (delta 1)
// during a manual draw
func (s *Session) MoveTeam(i int, teamID string, delta int) error {
	g, err := s.group(i)
	if err != nil {
		return err
	}
	if !g.ManualDraw {
		return ErrNoManualDraw
	}

	from := slices.Index(g.Teams, teamID)
	if from < 0 {
		return ErrTeamNotInGroup
	}
	to := from + delta
	if (delta != 1 && delta != -1) || to < 0 || to >= len(g.Teams) {
		return ErrInvalidMove
	}

	g.Teams[from], g.Teams[to] = g.Teams[to], g.Teams[from]
	return nil
}

// Resolves the group with the manually arranged order
func (s *Session) ConfirmManualDraw(i int) error {
	g, err := s.group(i)
	if err != nil {
		return err
	}
	if !g.ManualDraw {
		return ErrNoManualDraw
	}
	if !s.canDraw() {
		return ErrDrawBudgetExhausted
	}

	s.DrawsUsed += 1
	g.ManualDraw = false
	g.beforeManual = nil
	g.Resolved = true
	return nil
}

// Aborts a manual draw and restores the order it started with
func (s *Session) CancelManualDraw(i int) error {
	g, err := s.group(i)
	if err != nil {
		return err
	}
	if !g.ManualDraw {
		return ErrNoManualDraw
	}
	g.Teams = g.beforeManual
	g.beforeManual = nil
	g.ManualDraw = false
	return nil
}

// Puts the group back to its initial order and the first rule.
// Draws that were already used are not refunded.
func (s *Session) Reset(i int) error {
	g, err := s.group(i)
	if err != nil {
		return err
	}
	g.Teams = slices.Clone(g.initial)
	g.ActiveRule = 0
	g.Resolved = false
	g.ManualDraw = false
	g.beforeManual = nil
	return nil
}

// Returns true when every tied group is resolved
func (s *Session) Resolved() bool {
	for _, g := range s.Groups {
		if !g.Resolved {
			return false
		}
	}
	return true
}

// Returns the final ranks of all tied teams. Each team's rank is the
// original rank of its tie plus its position within the tie.
func (s *Session) Finalize() ([]core.SeedAssignment, error) {
	if !s.Resolved() {
		return nil, ErrUnresolvedGroups
	}

	seeds := make([]core.SeedAssignment, 0, 2*len(s.Groups))
	for _, g := range s.Groups {
		for i, teamID := range g.Teams {
			seeds = append(seeds, core.SeedAssignment{TeamID: teamID, Rank: g.OriginalRank + i})
		}
	}
	return seeds, nil
}
