package store

import (
	"database/sql"

	"github.com/ezBadminton/tourneyflow/core"
)

// Rows of the tables in schema.sql. The legacy columns are
// normalized when a row is converted to its core type.

type tournamentRow struct {
	ID              string `db:"id"`
	PointsForWin    int    `db:"points_for_win"`
	PointsForLoss   int    `db:"points_for_loss"`
	TiebreakerRules string `db:"tiebreaker_rules"`
	RandomDrawLimit int    `db:"random_draw_limit"`
	RandomDrawsUsed int    `db:"random_draws_used"`
}

type phaseRow struct {
	ID           string           `db:"id"`
	TournamentID string           `db:"tournament_id"`
	Name         string           `db:"name"`
	Order        int              `db:"phase_order"`
	Status       core.PhaseStatus `db:"status"`
}

func (r phaseRow) phase() *core.Phase {
	return &core.Phase{ID: r.ID, Name: r.Name, Order: r.Order, Status: r.Status}
}

// A group joined with one of its members
type groupMemberRow struct {
	ID      string         `db:"id"`
	Name    string         `db:"name"`
	PhaseID sql.NullString `db:"phase_id"`
	TeamID  sql.NullString `db:"team_id"`
}

type teamRow struct {
	ID           string         `db:"id"`
	TournamentID string         `db:"tournament_id"`
	Name         string         `db:"name"`
	Group        sql.NullString `db:"group_name"`
	Seed         sql.NullInt64  `db:"seed"`
}

func newTeamRow(tournamentID string, t *core.Team) teamRow {
	return teamRow{
		ID:           t.ID,
		TournamentID: tournamentID,
		Name:         t.Name,
		Group:        nullString(t.Group),
		Seed:         sql.NullInt64{Int64: int64(t.Seed), Valid: t.Seed != 0},
	}
}

func (r teamRow) team() *core.Team {
	return &core.Team{ID: r.ID, Name: r.Name, Group: r.Group.String, Seed: int(r.Seed.Int64)}
}

type matchRow struct {
	ID            string           `db:"id"`
	TournamentID  string           `db:"tournament_id"`
	PhaseID       sql.NullString   `db:"phase_id"`
	Status        core.MatchStatus `db:"status"`
	LocalTeamID   sql.NullString   `db:"local_team_id"`
	VisitorTeamID sql.NullString   `db:"visitor_team_id"`
	HomeTeamID    sql.NullString   `db:"home_team_id"`
	AwayTeamID    sql.NullString   `db:"away_team_id"`
	SourceHome    sql.NullString   `db:"source_home"`
	SourceAway    sql.NullString   `db:"source_away"`
	WinnerTeamID  sql.NullString   `db:"winner_team_id"`
}

// The source references are decoded by the store
func (r matchRow) match() *core.Match {
	return &core.Match{
		ID:            r.ID,
		PhaseID:       r.PhaseID.String,
		Status:        r.Status,
		LocalTeamID:   firstString(r.LocalTeamID, r.HomeTeamID),
		VisitorTeamID: firstString(r.VisitorTeamID, r.AwayTeamID),
		WinnerTeamID:  r.WinnerTeamID.String,
	}
}

type setRow struct {
	ID          string         `db:"id"`
	MatchID     string         `db:"match_id"`
	SetNumber   int            `db:"set_number"`
	Status      core.SetStatus `db:"status"`
	LocalRuns   sql.NullInt64  `db:"local_runs"`
	VisitorRuns sql.NullInt64  `db:"visitor_runs"`
	HomeScore   sql.NullInt64  `db:"home_score"`
	AwayScore   sql.NullInt64  `db:"away_score"`
}

func newSetRow(s *core.Set) setRow {
	return setRow{
		ID:          s.ID,
		MatchID:     s.MatchID,
		SetNumber:   s.SetNumber,
		Status:      s.Status,
		LocalRuns:   sql.NullInt64{Int64: int64(s.LocalRuns), Valid: true},
		VisitorRuns: sql.NullInt64{Int64: int64(s.VisitorRuns), Valid: true},
	}
}

func (r setRow) set() *core.Set {
	return &core.Set{
		ID:          r.ID,
		MatchID:     r.MatchID,
		SetNumber:   r.SetNumber,
		Status:      r.Status,
		LocalRuns:   firstInt(r.LocalRuns, r.HomeScore),
		VisitorRuns: firstInt(r.VisitorRuns, r.AwayScore),
	}
}

// Returns the first non-NULL value
func firstString(values ...sql.NullString) string {
	for _, v := range values {
		if v.Valid {
			return v.String
		}
	}
	return ""
}

func firstInt(values ...sql.NullInt64) int {
	for _, v := range values {
		if v.Valid {
			return int(v.Int64)
		}
	}
	return 0
}
