package core

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrMatchStarted     = errors.New("match already started")
	ErrMatchNotStarted  = errors.New("match cannot end before it started")
	ErrMatchFinished    = errors.New("match already finished")
	ErrUnresolvedSource = errors.New("match has an unresolved opponent")
	ErrNoFinishedSets   = errors.New("match has no finished sets")
	ErrEqualSetWins     = errors.New("both opponents won an equal number of sets")
)

type MatchStatus string

const (
	MatchScheduled MatchStatus = "scheduled"
	MatchLive      MatchStatus = "live"
	MatchFinished  MatchStatus = "finished"
)

type SetStatus string

const (
	SetPending  SetStatus = "pending"
	SetLive     SetStatus = "live"
	SetFinished SetStatus = "finished"
)

// A Team is a participant of a tournament.
type Team struct {
	ID   string
	Name string

	// The name of the group the team plays in.
	// Empty until it is assigned or backfilled
	// from the group membership lists.
	Group string

	// Rank override written by the tiebreaker workflow.
	// 0 means unset.
	Seed int
}

// A match between a local and a visiting team.
//
// The team ids are empty until the symbolic sources
// are resolved (e.g. the teams of a final are the
// winners of the semi-finals).
type Match struct {
	ID      string
	PhaseID string
	Status  MatchStatus

	LocalTeamID   string
	VisitorTeamID string

	// Symbolic references that the team ids are resolved from.
	// A nil source means the team id is assigned directly.
	SourceHome *SourceRef
	SourceAway *SourceRef

	// Set once the match is finished
	WinnerTeamID string
}

func (m *Match) IsFinished() bool {
	return m.Status == MatchFinished
}

// Returns the team id occupying the given side
func (m *Match) TeamOn(side Side) string {
	if side == Home {
		return m.LocalTeamID
	}
	return m.VisitorTeamID
}

// Returns the source reference of the given side
func (m *Match) SourceOn(side Side) *SourceRef {
	if side == Home {
		return m.SourceHome
	}
	return m.SourceAway
}

func (m *Match) setTeamOn(side Side, teamID string) {
	if side == Home {
		m.LocalTeamID = teamID
	} else {
		m.VisitorTeamID = teamID
	}
}

// Returns the id of the side that did not win.
// Empty when the match has no winner yet or the winner
// is not one of the two sides.
func (m *Match) LoserTeamID() string {
	switch m.WinnerTeamID {
	case "":
		return ""
	case m.LocalTeamID:
		return m.VisitorTeamID
	case m.VisitorTeamID:
		return m.LocalTeamID
	}
	return ""
}

// Returns true when both opponents are known
func (m *Match) Startable() bool {
	return m.LocalTeamID != "" && m.VisitorTeamID != ""
}

func (m *Match) Start() error {
	if m.Status != MatchScheduled {
		return ErrMatchStarted
	}
	if !m.Startable() {
		return ErrUnresolvedSource
	}
	m.Status = MatchLive
	return nil
}

// Finishes the match and derives the winner from the
// set-wins of the given sets. Only finished sets of this
// match are counted.
func (m *Match) Finish(sets []*Set) error {
	switch m.Status {
	case MatchScheduled:
		return ErrMatchNotStarted
	case MatchFinished:
		return ErrMatchFinished
	}

	localWins, visitorWins, finished := 0, 0, 0
	for _, s := range sets {
		if s.MatchID != m.ID || s.Status != SetFinished {
			continue
		}
		finished += 1
		if s.LocalRuns > s.VisitorRuns {
			localWins += 1
		}
		if s.VisitorRuns > s.LocalRuns {
			visitorWins += 1
		}
	}

	if finished == 0 {
		return ErrNoFinishedSets
	}
	if localWins == visitorWins {
		return ErrEqualSetWins
	}

	if localWins > visitorWins {
		m.WinnerTeamID = m.LocalTeamID
	} else {
		m.WinnerTeamID = m.VisitorTeamID
	}
	m.Status = MatchFinished
	return nil
}

func (m *Match) Clone() *Match {
	c := *m
	c.SourceHome = m.SourceHome.Clone()
	c.SourceAway = m.SourceAway.Clone()
	return &c
}

func (m *Match) String() string {
	var sb strings.Builder
	sb.WriteString(m.ID)
	sb.WriteString(": ")
	writeSide := func(teamID string, source *SourceRef) {
		switch {
		case teamID != "":
			sb.WriteString(teamID)
		case source != nil:
			sb.WriteString(source.String())
		default:
			sb.WriteString("[Empty]")
		}
	}
	writeSide(m.LocalTeamID, m.SourceHome)
	sb.WriteString(" vs. ")
	writeSide(m.VisitorTeamID, m.SourceAway)
	sb.WriteString(fmt.Sprintf(" (%s)", m.Status))
	return sb.String()
}

// A set of a match with the runs of both sides.
type Set struct {
	ID        string
	MatchID   string
	SetNumber int
	Status    SetStatus

	LocalRuns   int
	VisitorRuns int
}

// Indexes the sets by their match id. The sets of
// each match are ordered by set number.
func setsByMatch(sets []*Set) map[string][]*Set {
	index := make(map[string][]*Set)
	for _, s := range sets {
		index[s.MatchID] = append(index[s.MatchID], s)
	}
	for _, matchSets := range index {
		slices.SortStableFunc(matchSets, func(a, b *Set) int { return a.SetNumber - b.SetNumber })
	}
	return index
}

// Side of a match
type Side int

const (
	Home Side = iota
	Away
)

func (s Side) String() string {
	if s == Home {
		return "home"
	}
	return "away"
}
