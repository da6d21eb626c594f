package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrTournamentNotFound = errors.New("tournament not found")
)

// The data store that holds the tournaments. The engine reads a full
// snapshot per pass and writes back targeted updates.
type Store interface {
	LoadSnapshot(ctx context.Context, tournamentID string) (*Snapshot, error)

	// Writes the changed team ids of a match. Stores must not
	// modify matches that are already finished.
	UpdateMatchTeams(ctx context.Context, tournamentID string, patch MatchPatch) error

	// Writes a group assignment of a team that has none
	UpdateTeamGroup(ctx context.Context, tournamentID string, patch TeamGroupPatch) error

	// Applies the transition only if the phase to finish is still active
	// and the phase to activate is still pending (compare-and-swap).
	// Returns false when the phases changed in the meantime.
	TransitionPhase(ctx context.Context, tournamentID string, transition PhaseTransition) (bool, error)

	// Persists the tiebreaker ranks as team seeds together with
	// the number of random draws used by the tournament
	WriteSeeds(ctx context.Context, tournamentID string, seeds []SeedAssignment, drawsUsed int) error

	// Returns the ids of the tournaments that have an active phase
	ActiveTournaments(ctx context.Context) ([]string, error)
}

// The outcome of one engine pass over a tournament
type PassReport struct {
	TournamentID string

	Resolve    *ResolveResult
	Transition *PhaseTransition
	// False when the transition was not applied because
	// another writer changed the phases first
	TransitionApplied bool

	// Standings of every group keyed by group label
	Standings map[string][]StandingRecord

	// The snapshot with all changes of the pass applied
	Snapshot *Snapshot
}

// Computes a full engine pass without any I/O: source resolution,
// group backfill, phase advancement and group standings.
func Pass(s *Snapshot) *PassReport {
	resolved := ResolvePending(s)
	after := s.Apply(resolved, nil)

	transition := AdvancePhase(after.Phases, after.Matches)
	if transition != nil {
		transition.ApplyTo(after.Phases)
	}

	standings := make(map[string][]StandingRecord, len(after.Groups))
	for _, g := range after.Groups {
		standings[g.Label()], _ = GroupStandings(after, g.ID)
	}

	return &PassReport{
		TournamentID: s.TournamentID,
		Resolve:      resolved,
		Transition:   transition,
		Standings:    standings,
		Snapshot:     after,
	}
}

type EngineOption func(*Engine)

func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// Sets how often a failing store operation is attempted
// and the initial delay between attempts
func WithRetry(attempts int, delay time.Duration) EngineOption {
	return func(e *Engine) {
		e.retryAttempts = max(attempts, 1)
		e.retryDelay = delay
	}
}

// Sets the classification of errors that are worth retrying
func WithRetryable(retryable func(error) bool) EngineOption {
	return func(e *Engine) { e.retryable = retryable }
}

// Sets how many tournaments RunAll processes at the same time
func WithConcurrency(n int) EngineOption {
	return func(e *Engine) { e.concurrency = max(n, 1) }
}

// The Engine runs passes against a Store.
//
// Passes for the same tournament are serialized. Together with the
// compare-and-swap of Store.TransitionPhase this guarantees that a
// completed phase is transitioned at most once.
type Engine struct {
	store  Store
	logger *zap.Logger

	retryAttempts int
	retryDelay    time.Duration
	retryable     func(error) bool
	concurrency   int

	mu    sync.Mutex
	locks map[string]*tournamentLock
}

func NewEngine(store Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store:         store,
		logger:        zap.NewNop(),
		retryAttempts: 3,
		retryDelay:    100 * time.Millisecond,
		retryable:     defaultRetryable,
		concurrency:   4,
		locks:         make(map[string]*tournamentLock),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func defaultRetryable(err error) bool {
	return !errors.Is(err, ErrTournamentNotFound) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// A per-tournament mutex. Entries are removed from the engine
// once no pass holds or waits for them.
type tournamentLock struct {
	mu   sync.Mutex
	refs int
}

func (e *Engine) lock(tournamentID string) func() {
	e.mu.Lock()
	l, ok := e.locks[tournamentID]
	if !ok {
		l = &tournamentLock{}
		e.locks[tournamentID] = l
	}
	l.refs += 1
	e.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		e.mu.Lock()
		l.refs -= 1
		if l.refs == 0 {
			delete(e.locks, tournamentID)
		}
		e.mu.Unlock()
	}
}

// Runs one pass over the tournament and writes the results back.
//
// The report is returned even when some writes failed. The computed
// state stays valid in that case and rerunning the pass is safe.
func (e *Engine) Run(ctx context.Context, tournamentID string) (*PassReport, error) {
	unlock := e.lock(tournamentID)
	defer unlock()

	logger := e.logger.With(zap.String("tournament_id", tournamentID))

	var snapshot *Snapshot
	err := e.retry(ctx, func(ctx context.Context) error {
		s, err := e.store.LoadSnapshot(ctx, tournamentID)
		snapshot = s
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load snapshot of tournament %s: %w", tournamentID, err)
	}

	report := Pass(snapshot)
	resolved := report.Resolve

	var errs []error

	for _, backfill := range resolved.GroupBackfills {
		err := e.retry(ctx, func(ctx context.Context) error {
			return e.store.UpdateTeamGroup(ctx, tournamentID, backfill)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("backfill group of team %s: %w", backfill.TeamID, err))
		}
	}

	for _, patch := range resolved.Patches {
		err := e.retry(ctx, func(ctx context.Context) error {
			return e.store.UpdateMatchTeams(ctx, tournamentID, patch)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("update teams of match %s: %w", patch.MatchID, err))
			continue
		}
		logger.Debug("resolved match opponents",
			zap.String("match_id", patch.MatchID),
			zap.Int("dependants", len(resolved.Graph.Dependants(patch.MatchID))),
		)
	}

	for _, skipped := range resolved.Skipped {
		logger.Warn("skipped malformed source reference",
			zap.String("match_id", skipped.MatchID),
			zap.Stringer("side", skipped.Side),
			zap.Error(skipped.Err),
		)
	}

	if t := report.Transition; t != nil {
		var applied bool
		err := e.retry(ctx, func(ctx context.Context) error {
			ok, err := e.store.TransitionPhase(ctx, tournamentID, *t)
			applied = ok
			return err
		})
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("transition phase %s: %w", t.FinishedPhaseID, err))
		case applied:
			report.TransitionApplied = true
			logger.Info("phase finished",
				zap.String("phase_id", t.FinishedPhaseID),
				zap.String("activated_phase_id", t.ActivatedPhaseID),
			)
		default:
			logger.Info("phase transition was already applied", zap.String("phase_id", t.FinishedPhaseID))
		}
	}

	logger.Debug("engine pass complete",
		zap.Int("updated_matches", resolved.Updated),
		zap.Int("group_backfills", len(resolved.GroupBackfills)),
		zap.Int("resolution_passes", resolved.Passes),
	)

	return report, errors.Join(errs...)
}

// Runs a pass over every tournament with an active phase.
// A failing tournament does not stop the others.
func (e *Engine) RunAll(ctx context.Context) error {
	var ids []string
	err := e.retry(ctx, func(ctx context.Context) error {
		var err error
		ids, err = e.store.ActiveTournaments(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("list active tournaments: %w", err)
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(e.concurrency)

	for _, id := range ids {
		g.Go(func() error {
			if _, err := e.Run(ctx, id); err != nil {
				e.logger.Error("engine pass failed", zap.String("tournament_id", id), zap.Error(err))
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

// Persists the final ranks of a tiebreaker session as team seeds
func (e *Engine) ApplySeeds(ctx context.Context, tournamentID string, seeds []SeedAssignment, drawsUsed int) error {
	unlock := e.lock(tournamentID)
	defer unlock()

	err := e.retry(ctx, func(ctx context.Context) error {
		return e.store.WriteSeeds(ctx, tournamentID, seeds, drawsUsed)
	})
	if err != nil {
		return fmt.Errorf("write seeds of tournament %s: %w", tournamentID, err)
	}

	e.logger.Info("tiebreaker seeds written",
		zap.String("tournament_id", tournamentID),
		zap.Int("seeds", len(seeds)),
		zap.Int("draws_used", drawsUsed),
	)
	return nil
}

// Calls op until it succeeds, the error is not retryable or the
// attempts are used up. The delay doubles after every attempt.
func (e *Engine) retry(ctx context.Context, op func(context.Context) error) error {
	delay := e.retryDelay
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil || attempt >= e.retryAttempts || !e.retryable(err) {
			return err
		}

		e.logger.Debug("retrying store operation", zap.Int("attempt", attempt), zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
		delay *= 2
	}
}
