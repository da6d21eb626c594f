// Command progressd keeps tournaments moving: it resolves the opponents
// of pending matches and advances completed phases on a schedule.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/ezBadminton/tourneyflow/core"
	"github.com/ezBadminton/tourneyflow/internal/config"
	"github.com/ezBadminton/tourneyflow/internal/logger"
	"github.com/ezBadminton/tourneyflow/internal/scheduler"
	"github.com/ezBadminton/tourneyflow/internal/store"
)

func main() {
	once := flag.String("once", "", "run a single pass over the tournament with this id and print the report")
	migrate := flag.Bool("migrate", false, "create the database tables before starting")
	flag.Parse()

	if err := run(*once, *migrate); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(once string, migrate bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseURL, cfg.ConnectTimeout)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if migrate {
		if err := store.Migrate(ctx, db); err != nil {
			return err
		}
		log.Info("database schema migrated")
	}

	sqlStore := store.NewSQLStore(db, store.WithLogger(log))
	engine := core.NewEngine(sqlStore,
		core.WithLogger(log),
		core.WithRetry(cfg.WriteRetryAttempts, cfg.WriteRetryDelay),
		core.WithRetryable(store.Transient),
		core.WithConcurrency(cfg.Concurrency),
	)

	if once != "" {
		report, err := engine.Run(ctx, once)
		if report != nil {
			if err := printReport(report); err != nil {
				return err
			}
		}
		return err
	}

	s := scheduler.New(engine, cfg.ResolveSchedule, log)
	if err := s.Start(); err != nil {
		return err
	}
	s.RunNow()

	<-ctx.Done()
	log.Info("shutting down", zap.NamedError("cause", context.Cause(ctx)))
	s.Stop()
	return nil
}

type skippedJSON struct {
	MatchID string `json:"matchId"`
	Side    string `json:"side"`
	Error   string `json:"error"`
}

type reportJSON struct {
	TournamentID      string                           `json:"tournamentId"`
	Patches           []core.MatchPatch                `json:"patches"`
	GroupBackfills    []core.TeamGroupPatch            `json:"groupBackfills"`
	Skipped           []skippedJSON                    `json:"skipped"`
	Passes            int                              `json:"passes"`
	Transition        *core.PhaseTransition            `json:"transition,omitempty"`
	TransitionApplied bool                             `json:"transitionApplied"`
	Standings         map[string][]core.StandingRecord `json:"standings"`
}

func printReport(report *core.PassReport) error {
	out := reportJSON{
		TournamentID:      report.TournamentID,
		Patches:           report.Resolve.Patches,
		GroupBackfills:    report.Resolve.GroupBackfills,
		Passes:            report.Resolve.Passes,
		Transition:        report.Transition,
		TransitionApplied: report.TransitionApplied,
		Standings:         report.Standings,
	}
	for _, s := range report.Resolve.Skipped {
		out.Skipped = append(out.Skipped, skippedJSON{MatchID: s.MatchID, Side: s.Side.String(), Error: s.Err.Error()})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
