package app

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/openladder/laddercore/internal/config"
	"github.com/openladder/laddercore/internal/infrastructure/feed"
	"github.com/openladder/laddercore/internal/infrastructure/repository/postgres"
	"github.com/openladder/laddercore/internal/platform/logging"
	"github.com/openladder/laddercore/internal/usecase"
)

// Worker bundles the wired reconciliation pipeline and its DB handle.
type Worker struct {
	Cycle *usecase.CycleService
	Query *usecase.LadderQueryService
	db    *sqlx.DB
}

func (w *Worker) Close() error {
	if w.db == nil {
		return nil
	}
	return w.db.Close()
}

func NewWorker(cfg config.Config, logger *logging.Logger) (*Worker, error) {
	if logger == nil {
		logger = logging.Default()
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	teamRepo := postgres.NewTeamRepository(db)
	stateRepo := postgres.NewTeamStateRepository(db)
	matchRepo := postgres.NewMatchRepository(db)
	clanRepo := postgres.NewClanRepository(db)
	populationRepo := postgres.NewPopulationRepository(db)
	cheaterRepo := postgres.NewCheaterRepository(db)
	scanRepo := postgres.NewScanRepository(db)
	cycleRepo := postgres.NewCycleRepository(db)

	mergeSvc := usecase.NewSnapshotMergeService(teamRepo, stateRepo, usecase.SnapshotMergeConfig{
		ResetGameBudget: cfg.ResetGameBudget,
		SeasonGrace:     cfg.SeasonGrace,
	}, logger)
	stateSvc := usecase.NewTeamStateService(stateRepo, usecase.TeamStateConfig{
		ChunkSize:     cfg.StateChunkSize,
		TTL:           cfg.StateTTL,
		ArchiveWindow: cfg.StateArchiveWindow,
		PrimaryQueue:  cfg.PrimaryQueue,
	}, logger)
	populationSvc := usecase.NewPopulationService(teamRepo, populationRepo, logger)
	rankSvc := usecase.NewRankService(teamRepo, cheaterRepo, populationRepo, logger)
	resolveSvc := usecase.NewMatchResolveService(matchRepo, teamRepo, stateRepo, scanRepo, usecase.MatchResolveConfig{
		Window:       cfg.MatchWindow,
		ScanLookback: cfg.ScanLookback,
		Workers:      cfg.ResolveWorkers,
	}, logger)
	clanSvc := usecase.NewClanEventService(clanRepo, logger)

	source := feed.NewFileSource(cfg.FeedDir, logger)
	cycleSvc := usecase.NewCycleService(
		source,
		mergeSvc,
		stateSvc,
		populationSvc,
		rankSvc,
		resolveSvc,
		clanSvc,
		scanRepo,
		cycleRepo,
		usecase.CycleConfig{
			Workers:         cfg.CycleWorkers,
			ResolveLookback: cfg.ScanLookback,
		},
		logger,
	)

	querySvc := usecase.NewLadderQueryService(teamRepo, stateRepo, clanRepo)

	return &Worker{Cycle: cycleSvc, Query: querySvc, db: db}, nil
}

func openDB(cfg config.Config) (*sqlx.DB, error) {
	db, err := otelsqlx.Open("postgres", cfg.DBURL,
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
		otelsql.WithDBName(dbNameFromURL(cfg.DBURL)),
	)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}
