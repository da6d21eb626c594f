package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ezBadminton/tourneyflow/core"
)

// An SQLStore persists tournaments in the tables of schema.sql
type SQLStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

type Option func(*SQLStore)

func WithLogger(logger *zap.Logger) Option {
	return func(s *SQLStore) { s.logger = logger }
}

// Creates a store on a database opened with Open. The placeholders of
// the queries are rebound for the driver of the database.
func NewSQLStore(db *sqlx.DB, opts ...Option) *SQLStore {
	s := &SQLStore{db: db, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SQLStore) q(query string) string {
	return s.db.Rebind(query)
}

func (s *SQLStore) LoadSnapshot(ctx context.Context, tournamentID string) (*core.Snapshot, error) {
	snapshot := &core.Snapshot{TournamentID: tournamentID}
	if err := s.loadTournament(ctx, snapshot); err != nil {
		return nil, err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.loadTeams(ctx, snapshot) })
	g.Go(func() error { return s.loadMatches(ctx, snapshot) })
	g.Go(func() error { return s.loadSets(ctx, snapshot) })
	g.Go(func() error { return s.loadPhases(ctx, snapshot) })
	g.Go(func() error { return s.loadGroups(ctx, snapshot) })

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (s *SQLStore) loadTournament(ctx context.Context, snapshot *core.Snapshot) error {
	query := s.q(`
		SELECT id, points_for_win, points_for_loss, tiebreaker_rules, random_draw_limit, random_draws_used
		FROM tournaments
		WHERE id = ?`)

	var row tournamentRow
	err := s.db.GetContext(ctx, &row, query, snapshot.TournamentID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrTournamentNotFound
	}
	if err != nil {
		return fmt.Errorf("load tournament: %w", err)
	}

	snapshot.RandomDrawsUsed = row.RandomDrawsUsed
	snapshot.Config = core.Config{
		PointsForWin:    row.PointsForWin,
		PointsForLoss:   row.PointsForLoss,
		TiebreakerRules: core.DefaultConfig().TiebreakerRules,
		RandomDrawLimit: row.RandomDrawLimit,
	}

	if row.TiebreakerRules != "" {
		var decoded []core.TiebreakerRule
		if err := json.Unmarshal([]byte(row.TiebreakerRules), &decoded); err != nil {
			s.logger.Warn("invalid tiebreaker rules, using the default rules",
				zap.String("tournament_id", snapshot.TournamentID),
				zap.Error(err),
			)
		} else {
			snapshot.Config.TiebreakerRules = decoded
		}
	}
	return nil
}

func (s *SQLStore) loadTeams(ctx context.Context, snapshot *core.Snapshot) error {
	query := s.q(`
		SELECT id, tournament_id, name, group_name, seed
		FROM teams
		WHERE tournament_id = ?
		ORDER BY id`)

	var rows []teamRow
	if err := s.db.SelectContext(ctx, &rows, query, snapshot.TournamentID); err != nil {
		return fmt.Errorf("load teams: %w", err)
	}

	snapshot.Teams = make([]*core.Team, 0, len(rows))
	for _, row := range rows {
		snapshot.Teams = append(snapshot.Teams, row.team())
	}
	return nil
}

func (s *SQLStore) loadMatches(ctx context.Context, snapshot *core.Snapshot) error {
	query := s.q(`
		SELECT
			id, tournament_id, phase_id, status,
			local_team_id, visitor_team_id, home_team_id, away_team_id,
			source_home, source_away, winner_team_id
		FROM matches
		WHERE tournament_id = ?
		ORDER BY id`)

	var rows []matchRow
	if err := s.db.SelectContext(ctx, &rows, query, snapshot.TournamentID); err != nil {
		return fmt.Errorf("load matches: %w", err)
	}

	snapshot.Matches = make([]*core.Match, 0, len(rows))
	for _, row := range rows {
		m := row.match()
		m.SourceHome = s.decodeSource(m.ID, row.SourceHome.String)
		m.SourceAway = s.decodeSource(m.ID, row.SourceAway.String)
		snapshot.Matches = append(snapshot.Matches, m)
	}
	return nil
}

// Decodes a stored source reference. A reference that can not be
// decoded is kept with an invalid kind so the resolver skips it
// instead of treating the team as directly assigned.
func (s *SQLStore) decodeSource(matchID, data string) *core.SourceRef {
	ref, err := core.ParseSourceRef([]byte(data))
	if err != nil {
		s.logger.Warn("undecodable source reference",
			zap.String("match_id", matchID),
			zap.Error(err),
		)
		return &core.SourceRef{Kind: "undecodable"}
	}
	return ref
}

func (s *SQLStore) loadSets(ctx context.Context, snapshot *core.Snapshot) error {
	query := s.q(`
		SELECT
			s.id, s.match_id, s.set_number, s.status,
			s.local_runs, s.visitor_runs, s.home_score, s.away_score
		FROM sets s
		JOIN matches m ON m.id = s.match_id
		WHERE m.tournament_id = ?
		ORDER BY s.match_id, s.set_number`)

	var rows []setRow
	if err := s.db.SelectContext(ctx, &rows, query, snapshot.TournamentID); err != nil {
		return fmt.Errorf("load sets: %w", err)
	}

	snapshot.Sets = make([]*core.Set, 0, len(rows))
	for _, row := range rows {
		snapshot.Sets = append(snapshot.Sets, row.set())
	}
	return nil
}

func (s *SQLStore) loadPhases(ctx context.Context, snapshot *core.Snapshot) error {
	query := s.q(`
		SELECT id, tournament_id, name, phase_order, status
		FROM phases
		WHERE tournament_id = ?
		ORDER BY phase_order`)

	var rows []phaseRow
	if err := s.db.SelectContext(ctx, &rows, query, snapshot.TournamentID); err != nil {
		return fmt.Errorf("load phases: %w", err)
	}

	snapshot.Phases = make([]*core.Phase, 0, len(rows))
	for _, row := range rows {
		snapshot.Phases = append(snapshot.Phases, row.phase())
	}
	return nil
}

func (s *SQLStore) loadGroups(ctx context.Context, snapshot *core.Snapshot) error {
	query := s.q(`
		SELECT g.id, g.name, g.phase_id, gm.team_id
		FROM phase_groups g
		LEFT JOIN group_members gm ON gm.group_id = g.id
		WHERE g.tournament_id = ?
		ORDER BY g.id, gm.member_order`)

	var rows []groupMemberRow
	if err := s.db.SelectContext(ctx, &rows, query, snapshot.TournamentID); err != nil {
		return fmt.Errorf("load groups: %w", err)
	}

	groups := make([]*core.Group, 0)
	var current *core.Group
	for _, row := range rows {
		if current == nil || current.ID != row.ID {
			current = &core.Group{ID: row.ID, Name: row.Name, PhaseID: row.PhaseID.String}
			groups = append(groups, current)
		}
		if row.TeamID.Valid {
			current.TeamIDs = append(current.TeamIDs, row.TeamID.String)
		}
	}

	snapshot.Groups = groups
	return nil
}

// Writes the team ids of a match. Clearing a team also clears the
// legacy column so the old value does not come back on the next load.
// Finished matches are not modified.
func (s *SQLStore) UpdateMatchTeams(ctx context.Context, tournamentID string, patch core.MatchPatch) error {
	type column struct {
		name, legacy string
		value        *string
	}
	columns := []column{
		{"local_team_id", "home_team_id", patch.LocalTeamID},
		{"visitor_team_id", "away_team_id", patch.VisitorTeamID},
	}

	for _, c := range columns {
		if c.value == nil {
			continue
		}
		query := s.q(fmt.Sprintf(`
			UPDATE matches
			SET %s = ?, %s = NULL
			WHERE id = ? AND tournament_id = ? AND status <> ?`, c.name, c.legacy))

		_, err := s.db.ExecContext(ctx, query, nullString(*c.value), patch.MatchID, tournamentID, core.MatchFinished)
		if err != nil {
			return fmt.Errorf("update %s of match %s: %w", c.name, patch.MatchID, err)
		}
	}
	return nil
}

func (s *SQLStore) UpdateTeamGroup(ctx context.Context, tournamentID string, patch core.TeamGroupPatch) error {
	query := s.q(`
		UPDATE teams
		SET group_name = ?
		WHERE id = ? AND tournament_id = ? AND (group_name IS NULL OR group_name = '')`)

	if _, err := s.db.ExecContext(ctx, query, patch.Group, patch.TeamID, tournamentID); err != nil {
		return fmt.Errorf("update group of team %s: %w", patch.TeamID, err)
	}
	return nil
}

// Applies the transition in one transaction. Each phase update only
// matches when the phase is still in the expected status.
func (s *SQLStore) TransitionPhase(ctx context.Context, tournamentID string, transition core.PhaseTransition) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	steps := []struct {
		phaseID  string
		from, to core.PhaseStatus
	}{
		{transition.FinishedPhaseID, core.PhaseActive, core.PhaseFinished},
		{transition.ActivatedPhaseID, core.PhasePending, core.PhaseActive},
	}

	query := s.q(`
		UPDATE phases
		SET status = ?
		WHERE id = ? AND tournament_id = ? AND status = ?`)

	for _, step := range steps {
		if step.phaseID == "" {
			continue
		}
		result, err := tx.ExecContext(ctx, query, step.to, step.phaseID, tournamentID, step.from)
		if err != nil {
			return false, fmt.Errorf("update phase %s: %w", step.phaseID, err)
		}
		if err := checkAffectedRows(result, errPhaseChanged); err != nil {
			if errors.Is(err, errPhaseChanged) {
				return false, nil
			}
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit phase transition: %w", err)
	}
	return true, nil
}

var errPhaseChanged = errors.New("phase status changed")

func checkAffectedRows(result sql.Result, notFoundError error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return notFoundError
	}
	return nil
}

func (s *SQLStore) WriteSeeds(ctx context.Context, tournamentID string, seeds []core.SeedAssignment, drawsUsed int) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		s.q(`UPDATE tournaments SET random_draws_used = ? WHERE id = ?`),
		drawsUsed, tournamentID,
	)
	if err != nil {
		return fmt.Errorf("update random draws: %w", err)
	}
	if err := checkAffectedRows(result, core.ErrTournamentNotFound); err != nil {
		return err
	}

	query := s.q(`UPDATE teams SET seed = ? WHERE id = ? AND tournament_id = ?`)
	for _, seed := range seeds {
		if _, err := tx.ExecContext(ctx, query, seed.Rank, seed.TeamID, tournamentID); err != nil {
			return fmt.Errorf("update seed of team %s: %w", seed.TeamID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seeds: %w", err)
	}
	return nil
}

func (s *SQLStore) ActiveTournaments(ctx context.Context) ([]string, error) {
	query := s.q(`
		SELECT DISTINCT tournament_id
		FROM phases
		WHERE status = ?
		ORDER BY tournament_id`)

	ids := make([]string, 0)
	if err := s.db.SelectContext(ctx, &ids, query, core.PhaseActive); err != nil {
		return nil, fmt.Errorf("list active tournaments: %w", err)
	}
	return ids, nil
}

// Inserts a complete tournament in one transaction
func (s *SQLStore) CreateTournament(ctx context.Context, snapshot *core.Snapshot) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	id := snapshot.TournamentID
	cfg := snapshot.Config

	tournament := tournamentRow{
		ID:              id,
		PointsForWin:    cfg.PointsForWin,
		PointsForLoss:   cfg.PointsForLoss,
		RandomDrawLimit: cfg.RandomDrawLimit,
		RandomDrawsUsed: snapshot.RandomDrawsUsed,
	}
	if len(cfg.TiebreakerRules) > 0 {
		data, err := json.Marshal(cfg.TiebreakerRules)
		if err != nil {
			return fmt.Errorf("encode tiebreaker rules: %w", err)
		}
		tournament.TiebreakerRules = string(data)
	}

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO tournaments
			(id, points_for_win, points_for_loss, tiebreaker_rules, random_draw_limit, random_draws_used)
		VALUES (:id, :points_for_win, :points_for_loss, :tiebreaker_rules, :random_draw_limit, :random_draws_used)`,
		tournament,
	)
	if err != nil {
		return fmt.Errorf("insert tournament: %w", err)
	}

	for _, p := range snapshot.Phases {
		row := phaseRow{ID: p.ID, TournamentID: id, Name: p.Name, Order: p.Order, Status: p.Status}
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO phases (id, tournament_id, name, phase_order, status)
			VALUES (:id, :tournament_id, :name, :phase_order, :status)`, row)
		if err != nil {
			return fmt.Errorf("insert phase %s: %w", p.ID, err)
		}
	}

	insertGroup := tx.Rebind(`INSERT INTO phase_groups (id, tournament_id, phase_id, name) VALUES (?, ?, ?, ?)`)
	insertMember := tx.Rebind(`INSERT INTO group_members (group_id, team_id, member_order) VALUES (?, ?, ?)`)
	for _, g := range snapshot.Groups {
		if _, err := tx.ExecContext(ctx, insertGroup, g.ID, id, nullString(g.PhaseID), g.Name); err != nil {
			return fmt.Errorf("insert group %s: %w", g.ID, err)
		}
		for i, teamID := range g.TeamIDs {
			if _, err := tx.ExecContext(ctx, insertMember, g.ID, teamID, i); err != nil {
				return fmt.Errorf("insert member %s of group %s: %w", teamID, g.ID, err)
			}
		}
	}

	for _, t := range snapshot.Teams {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO teams (id, tournament_id, name, group_name, seed)
			VALUES (:id, :tournament_id, :name, :group_name, :seed)`, newTeamRow(id, t))
		if err != nil {
			return fmt.Errorf("insert team %s: %w", t.ID, err)
		}
	}

	for _, m := range snapshot.Matches {
		row := matchRow{
			ID:            m.ID,
			TournamentID:  id,
			PhaseID:       nullString(m.PhaseID),
			Status:        m.Status,
			LocalTeamID:   nullString(m.LocalTeamID),
			VisitorTeamID: nullString(m.VisitorTeamID),
			WinnerTeamID:  nullString(m.WinnerTeamID),
		}
		if row.SourceHome, err = encodeSource(m.SourceHome); err != nil {
			return err
		}
		if row.SourceAway, err = encodeSource(m.SourceAway); err != nil {
			return err
		}
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO matches
				(id, tournament_id, phase_id, status, local_team_id, visitor_team_id, source_home, source_away, winner_team_id)
			VALUES
				(:id, :tournament_id, :phase_id, :status, :local_team_id, :visitor_team_id, :source_home, :source_away, :winner_team_id)`,
			row,
		)
		if err != nil {
			return fmt.Errorf("insert match %s: %w", m.ID, err)
		}
	}

	for _, set := range snapshot.Sets {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO sets (id, match_id, set_number, status, local_runs, visitor_runs)
			VALUES (:id, :match_id, :set_number, :status, :local_runs, :visitor_runs)`, newSetRow(set))
		if err != nil {
			return fmt.Errorf("insert set %s: %w", set.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tournament: %w", err)
	}
	return nil
}

func encodeSource(ref *core.SourceRef) (sql.NullString, error) {
	if ref == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(ref)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode source reference %s: %w", ref, err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
